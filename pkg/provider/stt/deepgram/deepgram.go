// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// streaming WebSocket API. It implements the stt.Provider interface.
//
// Each Transcribe call opens one stream, pushes the clip as linear16 chunks,
// sends CloseStream and collects every final result until Deepgram closes
// the connection.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/hearcoach/pkg/audio"
	"github.com/MrWong99/hearcoach/pkg/provider/stt"
	"github.com/MrWong99/hearcoach/pkg/types"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-2"
	defaultLanguage  = "en"
	defaultTimeout   = 20 * time.Second

	// chunkDuration is how much audio goes into one binary frame.
	chunkDuration = 100 * time.Millisecond
)

var closeStreamMsg = []byte(`{"type":"CloseStream"}`)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-2", "nova-3").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the language used when Transcribe is called without one.
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

// WithEndpoint overrides the streaming endpoint. Intended for tests and
// self-hosted deployments.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// WithTimeout bounds one Transcribe call, dial to close.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.timeout = d }
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey   string
	model    string
	language string
	endpoint string
	timeout  time.Duration
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		endpoint: deepgramEndpoint,
		timeout:  defaultTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe streams clip to Deepgram and returns the concatenated finals.
func (p *Provider) Transcribe(ctx context.Context, clip audio.Clip, language string) (types.Transcript, error) {
	if clip.Empty() {
		return types.Transcript{}, stt.ErrEmptyAudio
	}
	clip = audio.Convert(clip, stt.RecognitionFormat)
	if language == "" {
		language = p.language
	}

	wsURL, err := p.buildURL(language)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return types.Transcript{}, fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.CloseNow()

	done := make(chan collected, 1)
	go func() { done <- collect(ctx, conn) }()

	if err := sendClip(ctx, conn, clip); err != nil {
		cancel()
		<-done
		return types.Transcript{}, fmt.Errorf("deepgram: send audio: %w", err)
	}

	res := <-done
	if res.err != nil {
		return types.Transcript{}, fmt.Errorf("deepgram: read results: %w", res.err)
	}

	tr := res.transcript
	tr.Language = language
	tr.Duration = clip.Duration()
	return tr, nil
}

// buildURL constructs the streaming endpoint URL for a language.
func (p *Provider) buildURL(language string) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", language)
	q.Set("punctuate", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(stt.RecognitionFormat.SampleRate))
	q.Set("channels", strconv.Itoa(stt.RecognitionFormat.Channels))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// sendClip writes the PCM in fixed-duration binary frames and then asks
// Deepgram to flush and close.
func sendClip(ctx context.Context, conn *websocket.Conn, clip audio.Clip) error {
	step := int(chunkDuration.Seconds()*float64(clip.SampleRate)) * clip.Channels * 2
	for off := 0; off < len(clip.Data); off += step {
		end := min(off+step, len(clip.Data))
		if err := conn.Write(ctx, websocket.MessageBinary, clip.Data[off:end]); err != nil {
			return err
		}
	}
	return conn.Write(ctx, websocket.MessageText, closeStreamMsg)
}

type collected struct {
	transcript types.Transcript
	err        error
}

// collect reads results until Deepgram sends its closing Metadata message or
// closes the socket normally.
func collect(ctx context.Context, conn *websocket.Conn) collected {
	var (
		texts   []string
		confSum float64
		finals  int
		words   []types.WordDetail
	)
	result := func() collected {
		tr := types.Transcript{Text: strings.Join(texts, " "), Words: words}
		if finals > 0 {
			tr.Confidence = confSum / float64(finals)
		}
		return collected{transcript: tr}
	}

	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return result()
			}
			return collected{err: err}
		}

		var head struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(msg, &head) == nil && head.Type == "Metadata" {
			return result()
		}

		r, ok := parseDeepgramResponse(msg)
		if !ok || !r.final {
			continue
		}
		if text := strings.TrimSpace(r.transcript.Text); text != "" {
			texts = append(texts, text)
			confSum += r.transcript.Confidence
			finals++
			words = append(words, r.transcript.Words...)
		}
	}
}

// deepgramResponse is the JSON structure returned by Deepgram for a Results event.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string  `json:"word"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type parsedResult struct {
	transcript types.Transcript
	final      bool
}

// parseDeepgramResponse parses a raw Deepgram WebSocket message.
// Returns false if the message is not a usable Results event.
func parseDeepgramResponse(data []byte) (parsedResult, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return parsedResult{}, false
	}
	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return parsedResult{}, false
	}

	alt := resp.Channel.Alternatives[0]
	words := make([]types.WordDetail, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, types.WordDetail{
			Word:       w.Word,
			Start:      time.Duration(w.Start * float64(time.Second)),
			End:        time.Duration(w.End * float64(time.Second)),
			Confidence: w.Confidence,
		})
	}
	return parsedResult{
		transcript: types.Transcript{Text: alt.Transcript, Confidence: alt.Confidence, Words: words},
		final:      resp.IsFinal,
	}, true
}
