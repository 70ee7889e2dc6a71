// Package whisper provides a whisper.cpp-backed STT provider.
//
// It talks to a running whisper-server binary (whisper.cpp's examples/server),
// which exposes a REST API at POST /inference. Each call uploads the clip as a
// 16 kHz mono WAV file in a multipart form and reads back the verbose JSON
// result.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithModel("base"))
//	tr, err := p.Transcribe(ctx, clip, "zh")
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/MrWong99/hearcoach/pkg/audio"
	"github.com/MrWong99/hearcoach/pkg/provider/stt"
	"github.com/MrWong99/hearcoach/pkg/types"
)

const (
	defaultPath    = "/inference"
	defaultTimeout = 30 * time.Second
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// markerPattern matches the non-speech annotations whisper emits for silent or
// noisy input, e.g. "[BLANK_AUDIO]" or "(wind blowing)".
var markerPattern = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the server. When empty the
// server uses whichever model it was started with; this is the default.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithPath overrides the inference path (default "/inference").
func WithPath(path string) Option {
	return func(p *Provider) { p.path = path }
}

// WithTimeout sets the HTTP client timeout for one inference request.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// WithHTTPClient replaces the HTTP client entirely.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements stt.Provider backed by a whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	path       string
	model      string
	httpClient *http.Client
}

// New creates a Provider for the whisper.cpp server at serverURL
// (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		path:       defaultPath,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// inferenceResponse is the verbose_json body returned by whisper-server.
// Plain "json" responses only carry Text, which decodes into the same struct.
type inferenceResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text       string  `json:"text"`
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		AvgLogprob float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// Transcribe uploads clip to the server and returns the recognised text.
func (p *Provider) Transcribe(ctx context.Context, clip audio.Clip, language string) (types.Transcript, error) {
	if clip.Empty() {
		return types.Transcript{}, stt.ErrEmptyAudio
	}
	clip = audio.Convert(clip, stt.RecognitionFormat)

	body, contentType, err := p.buildForm(clip, language)
	if err != nil {
		return types.Transcript{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+p.path, body)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.Transcript{}, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var result inferenceResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	tr := types.Transcript{
		Text:       cleanText(result.Text),
		Language:   language,
		Confidence: segmentConfidence(result),
		Duration:   clip.Duration(),
	}
	if result.Language != "" {
		tr.Language = result.Language
	}
	return tr, nil
}

// buildForm encodes clip as a WAV upload plus the optional hint fields.
func (p *Provider) buildForm(clip audio.Clip, language string) (io.Reader, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(audio.EncodeWAV(clip)); err != nil {
		return nil, "", fmt.Errorf("whisper: write wav data: %w", err)
	}

	fields := [][2]string{
		{"response_format", "verbose_json"},
		{"temperature", "0"},
	}
	if language != "" {
		fields = append(fields, [2]string{"language", language})
	}
	if p.model != "" {
		fields = append(fields, [2]string{"model", p.model})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("whisper: write %s field: %w", f[0], err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}
	return &body, mw.FormDataContentType(), nil
}

// cleanText drops non-speech markers and surrounding whitespace.
func cleanText(s string) string {
	s = markerPattern.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// segmentConfidence maps the mean per-segment average log-probability to
// (0, 1]. Responses without segments report zero confidence.
func segmentConfidence(r inferenceResponse) float64 {
	if len(r.Segments) == 0 {
		return 0
	}
	var sum float64
	for _, s := range r.Segments {
		sum += s.AvgLogprob
	}
	return math.Min(1, math.Exp(sum/float64(len(r.Segments))))
}
