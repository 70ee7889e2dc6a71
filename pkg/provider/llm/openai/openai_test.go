package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/hearcoach/pkg/provider/llm"
	"github.com/MrWong99/hearcoach/pkg/types"
)

func TestConvertMessage_Roles(t *testing.T) {
	t.Parallel()
	tests := []struct {
		role  string
		check func(t *testing.T, m types.Message)
	}{
		{types.RoleSystem, func(t *testing.T, m types.Message) {
			p, err := convertMessage(m)
			if err != nil || p.OfSystem == nil {
				t.Fatalf("system: param=%+v err=%v", p, err)
			}
		}},
		{types.RoleUser, func(t *testing.T, m types.Message) {
			p, err := convertMessage(m)
			if err != nil || p.OfUser == nil {
				t.Fatalf("user: param=%+v err=%v", p, err)
			}
		}},
		{types.RoleAssistant, func(t *testing.T, m types.Message) {
			p, err := convertMessage(m)
			if err != nil || p.OfAssistant == nil {
				t.Fatalf("assistant: param=%+v err=%v", p, err)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			t.Parallel()
			tt.check(t, types.Message{Role: tt.role, Content: "hi"})
		})
	}
}

func TestConvertMessage_UnknownRole(t *testing.T) {
	t.Parallel()
	if _, err := convertMessage(types.Message{Role: "tool", Content: "x"}); err == nil {
		t.Fatal("expected error for unsupported role")
	}
}

func TestBuildParams(t *testing.T) {
	t.Parallel()
	p, err := New("sk-test", "gpt-4.1-mini")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "Return JSON.",
		Messages:     []types.Message{{Role: types.RoleUser, Content: "Give me a sentence."}},
		Temperature:  0.7,
		MaxTokens:    200,
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("first message should be the system prompt")
	}
	if string(params.Model) != "gpt-4.1-mini" {
		t.Errorf("Model = %q", params.Model)
	}
	if params.Temperature.Value != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", params.Temperature.Value)
	}
	if params.MaxCompletionTokens.Value != 200 {
		t.Errorf("MaxCompletionTokens = %v, want 200", params.MaxCompletionTokens.Value)
	}
}

func TestBuildParams_Empty(t *testing.T) {
	t.Parallel()
	p, err := New("sk-test", "gpt-4o")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.buildParams(llm.CompletionRequest{}); err == nil {
		t.Fatal("expected error for empty request")
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	if _, err := New("", "gpt-4o"); !errors.Is(err, llm.ErrMissingCredentials) {
		t.Errorf("empty key: err = %v, want ErrMissingCredentials", err)
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("expected error for empty model")
	}
}

func TestModelCapabilities(t *testing.T) {
	t.Parallel()
	tests := []struct {
		model        string
		wantContext  int
		supportsJSON bool
	}{
		{"gpt-4.1-mini", 1_047_576, true},
		{"gpt-4o-mini", 128_000, true},
		{"gpt-4", 8_192, true},
		{"gpt-3.5-turbo", 16_385, false},
		{"o3-mini", 200_000, true},
		{"some-local-model", 128_000, true},
	}
	for _, tt := range tests {
		caps := modelCapabilities(tt.model)
		if caps.ContextWindow != tt.wantContext {
			t.Errorf("%s: ContextWindow = %d, want %d", tt.model, caps.ContextWindow, tt.wantContext)
		}
		if caps.SupportsJSON != tt.supportsJSON {
			t.Errorf("%s: SupportsJSON = %v, want %v", tt.model, caps.SupportsJSON, tt.supportsJSON)
		}
	}
}

// chatServer answers every chat completion with content and finishReason.
func chatServer(t *testing.T, content, finishReason string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4.1-mini",
			"choices":[{"index":0,"finish_reason":%q,"message":{"role":"assistant","content":%q}}],
			"usage":{"prompt_tokens":12,"completion_tokens":5,"total_tokens":17}}`, finishReason, content)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete(t *testing.T) {
	t.Parallel()
	req := llm.CompletionRequest{Messages: []types.Message{{Role: types.RoleUser, Content: "One sentence, please."}}}

	t.Run("stop", func(t *testing.T) {
		t.Parallel()
		srv := chatServer(t, `{"text": "Good morning."}`, "stop")
		p, err := New("sk-test", "gpt-4.1-mini", WithBaseURL(srv.URL+"/"))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		resp, err := p.Complete(context.Background(), req)
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if resp.Content != `{"text": "Good morning."}` || resp.Usage.TotalTokens != 17 {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		t.Parallel()
		srv := chatServer(t, `{"text": "Good mor`, "length")
		p, err := New("sk-test", "gpt-4.1-mini", WithBaseURL(srv.URL+"/"))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, err := p.Complete(context.Background(), req); !errors.Is(err, llm.ErrTruncated) {
			t.Errorf("err = %v, want ErrTruncated", err)
		}
	})
}
