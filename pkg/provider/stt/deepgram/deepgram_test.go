package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/hearcoach/pkg/audio"
	"github.com/MrWong99/hearcoach/pkg/provider/stt"
)

// ---- URL / query-param tests ----

func TestBuildURL_Defaults(t *testing.T) {
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL("en")
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "model", "nova-2", q.Get("model"))
	assertEqual(t, "language", "en", q.Get("language"))
	assertEqual(t, "punctuate", "true", q.Get("punctuate"))
	assertEqual(t, "encoding", "linear16", q.Get("encoding"))
	assertEqual(t, "sample_rate", "16000", q.Get("sample_rate"))
	assertEqual(t, "channels", "1", q.Get("channels"))
}

func TestBuildURL_CustomModel(t *testing.T) {
	p, err := New("key", WithModel("nova-3"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL("zh")
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, _ := url.Parse(rawURL)
	q := u.Query()
	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "zh", q.Get("language"))
}

// ---- JSON parsing tests ----

func TestParseDeepgramResponse_Final(t *testing.T) {
	raw := []byte(`{
		"type": "Results",
		"is_final": true,
		"channel": {
			"alternatives": [{
				"transcript": "Hello world",
				"confidence": 0.95,
				"words": [
					{"word": "Hello", "start": 0.1, "end": 0.5, "confidence": 0.97},
					{"word": "world", "start": 0.6, "end": 1.0, "confidence": 0.93}
				]
			}]
		}
	}`)

	r, ok := parseDeepgramResponse(raw)
	if !ok {
		t.Fatal("expected ok=true for valid Results message")
	}
	if !r.final {
		t.Error("expected final=true")
	}
	assertEqual(t, "text", "Hello world", r.transcript.Text)
	if r.transcript.Confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %f", r.transcript.Confidence)
	}
	if len(r.transcript.Words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(r.transcript.Words))
	}
	if r.transcript.Words[0].Start != time.Duration(0.1*float64(time.Second)) {
		t.Errorf("unexpected start: %v", r.transcript.Words[0].Start)
	}
}

func TestParseDeepgramResponse_Ignored(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"metadata", `{"type":"Metadata","request_id":"abc"}`},
		{"empty alternatives", `{"type":"Results","is_final":true,"channel":{"alternatives":[]}}`},
		{"invalid json", `{invalid`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := parseDeepgramResponse([]byte(tt.raw)); ok {
				t.Error("expected ok=false")
			}
		})
	}
}

// ---- Constructor tests ----

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestNew_Defaults(t *testing.T) {
	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	assertEqual(t, "model", defaultModel, p.model)
	assertEqual(t, "language", defaultLanguage, p.language)
	if p.timeout != defaultTimeout {
		t.Errorf("timeout = %v, want %v", p.timeout, defaultTimeout)
	}
}

// ---- end-to-end against a fake Deepgram ----

func result(text string, conf float64, final bool) string {
	return fmt.Sprintf(`{"type":"Results","is_final":%t,"channel":{"alternatives":[{"transcript":%q,"confidence":%g,"words":[]}]}}`, final, text, conf)
}

type streamSeen struct {
	bytes int
	auth  string
}

// fakeDeepgram accepts one stream, counts the binary bytes it receives and,
// after CloseStream, replies with msgs followed by Metadata.
func fakeDeepgram(t *testing.T, msgs []string) (*httptest.Server, <-chan streamSeen) {
	t.Helper()
	seenCh := make(chan streamSeen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen := streamSeen{auth: r.Header.Get("Authorization")}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageBinary {
				seen.bytes += len(data)
				continue
			}
			if strings.Contains(string(data), "CloseStream") {
				break
			}
		}
		seenCh <- seen
		for _, m := range msgs {
			if err := conn.Write(ctx, websocket.MessageText, []byte(m)); err != nil {
				return
			}
		}
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"Metadata"}`))
	}))
	return srv, seenCh
}

func TestTranscribe_CollectsFinals(t *testing.T) {
	srv, seenCh := fakeDeepgram(t, []string{
		result("hello", 0.5, false),
		result("hello there", 0.8, true),
		result("", 0, true),
		result("general kenobi", 0.6, true),
	})
	defer srv.Close()

	p, err := New("secret", WithEndpoint("ws"+strings.TrimPrefix(srv.URL, "http")))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	clip := audio.FromSamples(make([]int16, 8000), audio.Format{SampleRate: 16000, Channels: 1})
	tr, err := p.Transcribe(context.Background(), clip, "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	assertEqual(t, "text", "hello there general kenobi", tr.Text)
	if tr.Confidence < 0.699 || tr.Confidence > 0.701 {
		t.Errorf("confidence = %v, want 0.7", tr.Confidence)
	}
	assertEqual(t, "language", "en", tr.Language)

	seen := <-seenCh
	assertEqual(t, "authorization", "Token secret", seen.auth)
	if seen.bytes != len(clip.Data) {
		t.Errorf("server received %d bytes, want %d", seen.bytes, len(clip.Data))
	}
}

func TestTranscribe_EmptyClip(t *testing.T) {
	p, _ := New("key", WithEndpoint("ws://127.0.0.1:1"))
	if _, err := p.Transcribe(context.Background(), audio.Clip{}, "en"); !errors.Is(err, stt.ErrEmptyAudio) {
		t.Errorf("err = %v, want ErrEmptyAudio", err)
	}
}

func TestTranscribe_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, _ := New("bad", WithEndpoint("ws"+strings.TrimPrefix(srv.URL, "http")))
	clip := audio.FromSamples(make([]int16, 160), audio.Format{SampleRate: 16000, Channels: 1})
	if _, err := p.Transcribe(context.Background(), clip, "en"); err == nil {
		t.Fatal("expected dial error")
	}
}

// ---- helpers ----

func assertEqual(t *testing.T, label, want, got string) {
	t.Helper()
	if want != got {
		t.Errorf("%s: want %q, got %q", label, want, got)
	}
}
