package corpus_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/MrWong99/hearcoach/internal/corpus"
	"github.com/MrWong99/hearcoach/internal/practice"
	"github.com/MrWong99/hearcoach/pkg/provider/llm"
	llmmock "github.com/MrWong99/hearcoach/pkg/provider/llm/mock"
)

func TestExpandTier_PadsToTarget(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{Replies: []string{
		"```json\n{\"easy\": [\"apple.\", \"pear\", \"Apple\"], \"medium\": [], \"hard\": []}\n```",
		`{"easy": ["plum", "fig", "kiwi"]}`,
	}}
	e := corpus.NewExpander(p, corpus.WithPace(0), corpus.WithPerCall(3))

	got, err := e.ExpandTier(context.Background(), practice.English, practice.Easy, []string{"banana"}, 4)
	if err != nil {
		t.Fatalf("ExpandTier: %v", err)
	}
	want := []string{"banana", "apple", "pear", "plum"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("items = %v, want %v", got, want)
	}
	if p.CallCount() != 2 {
		t.Errorf("calls = %d, want 2", p.CallCount())
	}
}

func TestExpandTier_PromptCarriesForbiddenItems(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{Replies: []string{`{"medium": ["我们一起吃饭。"]}`}}
	e := corpus.NewExpander(p, corpus.WithPace(0))

	if _, err := e.ExpandTier(context.Background(), practice.Chinese, practice.Medium, []string{"今天天气很好。"}, 2); err != nil {
		t.Fatalf("ExpandTier: %v", err)
	}
	req := p.Requests[0]
	if !strings.Contains(req.SystemPrompt, "中文") {
		t.Errorf("system prompt is not the Chinese one: %q", req.SystemPrompt)
	}
	user := req.Messages[0].Content
	if !strings.Contains(user, "今天天气很好。") {
		t.Errorf("user prompt lacks forbidden item: %q", user)
	}
	if !strings.Contains(user, "Count: 1") {
		t.Errorf("user prompt asks for wrong count: %q", user)
	}
	if req.Temperature != corpus.DefaultTemperature {
		t.Errorf("temperature = %v", req.Temperature)
	}
}

func TestExpandTier_HalvesOnEmptyBatchAndGivesUp(t *testing.T) {
	t.Parallel()
	var counts []string
	p := &llmmock.Provider{CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		for _, line := range strings.Split(req.Messages[0].Content, "\n") {
			if strings.HasPrefix(line, "Count: ") {
				counts = append(counts, strings.TrimPrefix(line, "Count: "))
			}
		}
		return &llm.CompletionResponse{Content: "not json at all"}, nil
	}}
	e := corpus.NewExpander(p, corpus.WithPace(0), corpus.WithPerCall(4))

	got, err := e.ExpandTier(context.Background(), practice.English, practice.Hard, nil, 10)
	if err != nil {
		t.Fatalf("ExpandTier: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("items = %v, want none", got)
	}
	if want := "[4 2 1]"; fmt.Sprint(counts) != want {
		t.Errorf("requested counts = %v, want %s", counts, want)
	}
}

func TestExpandTier_DuplicatesOnlyHalveAndGiveUp(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{Replies: []string{`{"easy": ["Apple.", "banana", "apple"]}`}}
	e := corpus.NewExpander(p, corpus.WithPace(0), corpus.WithPerCall(4))

	got, err := e.ExpandTier(context.Background(), practice.English, practice.Easy, []string{"apple", "banana"}, 10)
	if err != nil {
		t.Fatalf("ExpandTier: %v", err)
	}
	if want := "[apple banana]"; fmt.Sprint(got) != want {
		t.Errorf("items = %v, want %s", got, want)
	}
	if p.CallCount() != 3 {
		t.Errorf("calls = %d, want 3 (batch 4, 2, 1)", p.CallCount())
	}
}

func TestExpandTier_ProviderErrorKeepsPartial(t *testing.T) {
	t.Parallel()
	boom := errors.New("rate limited")
	calls := 0
	p := &llmmock.Provider{CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		calls++
		if calls > 1 {
			return nil, boom
		}
		return &llm.CompletionResponse{Content: `{"hard": ["One."]}`}, nil
	}}
	e := corpus.NewExpander(p, corpus.WithPace(0))

	got, err := e.ExpandTier(context.Background(), practice.English, practice.Hard, nil, 5)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if len(got) != 1 || got[0] != "One." {
		t.Errorf("partial = %v, want [One.]", got)
	}
}

func TestExpandAll_SkipsFullTiers(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		user := req.Messages[0].Content
		switch {
		case strings.Contains(user, "Level: easy"):
			return &llm.CompletionResponse{Content: `{"easy": ["new word"]}`}, nil
		case strings.Contains(user, "Level: medium"):
			return &llm.CompletionResponse{Content: `{"medium": ["A new sentence."]}`}, nil
		default:
			return &llm.CompletionResponse{Content: `{"hard": ["A lyrical new line."]}`}, nil
		}
	}}
	e := corpus.NewExpander(p, corpus.WithPace(0))

	full := &corpus.Corpus{Language: practice.English, Easy: []string{"a", "b"}, Medium: []string{"c", "d"}, Hard: []string{"e", "f"}}
	short := &corpus.Corpus{Language: practice.English, Easy: []string{"a"}, Medium: []string{"b"}, Hard: []string{"c"}}

	if err := e.ExpandAll(context.Background(), []*corpus.Corpus{full, short}, 2); err != nil {
		t.Fatalf("ExpandAll: %v", err)
	}
	if full.Len() != 6 {
		t.Errorf("full corpus changed: %+v", full)
	}
	if short.Len() != 6 {
		t.Errorf("short corpus Len = %d, want 6", short.Len())
	}
	if p.CallCount() != 3 {
		t.Errorf("calls = %d, want 3", p.CallCount())
	}
}

func TestExpandTier_ContextCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := corpus.NewExpander(&llmmock.Provider{}, corpus.WithPace(0))
	if _, err := e.ExpandTier(ctx, practice.English, practice.Easy, nil, 3); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
