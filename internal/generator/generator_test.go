package generator_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode"

	"github.com/MrWong99/hearcoach/internal/corpus"
	"github.com/MrWong99/hearcoach/internal/generator"
	genmock "github.com/MrWong99/hearcoach/internal/generator/mock"
	"github.com/MrWong99/hearcoach/internal/practice"
	"github.com/MrWong99/hearcoach/internal/resilience"
	"github.com/MrWong99/hearcoach/pkg/provider/llm"
	llmmock "github.com/MrWong99/hearcoach/pkg/provider/llm/mock"
)

func testCorpus(lang practice.Language) *corpus.Corpus {
	if lang == practice.Chinese {
		return &corpus.Corpus{
			Language: lang,
			Easy:     []string{"苹果", "米饭"},
			Medium:   []string{"我喜欢吃苹果。"},
			Common:   []string{"你好"},
		}
	}
	return &corpus.Corpus{
		Language: lang,
		Easy:     []string{"apple", "rice"},
		Medium:   []string{"I like to eat apples.", "I like to drink tea.", "We like to walk in the park."},
		Common:   []string{"hello"},
	}
}

func newOffline(opts ...generator.OfflineOption) *generator.Offline {
	opts = append([]generator.OfflineOption{
		generator.WithCorpus(testCorpus(practice.Chinese)),
		generator.WithCorpus(testCorpus(practice.English)),
	}, opts...)
	return generator.NewOffline(opts...)
}

func TestOffline_VerbatimFromTier(t *testing.T) {
	t.Parallel()
	o := newOffline()
	for range 20 {
		s, err := o.Generate(context.Background(), practice.GenerationRequest{
			Language: practice.English, Tier: practice.Medium, DesiredLength: practice.LengthMedium,
			VocabBucket: "medium-medium", Topic: "food",
		})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !slices.Contains(testCorpus(practice.English).Medium, s.Text) {
			t.Fatalf("text %q not a medium corpus item", s.Text)
		}
		if s.ID == "" || s.Language != practice.English || s.Tier != practice.Medium || s.Topic != "food" || s.VocabBucket != "medium-medium" {
			t.Fatalf("sentence = %+v", s)
		}
	}
}

func TestOffline_FallbackChain(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		corpus *corpus.Corpus
		want   []string
	}{
		{
			name:   "empty tier uses common",
			corpus: &corpus.Corpus{Language: practice.Chinese, Easy: []string{"苹果"}, Common: []string{"你好"}},
			want:   []string{"你好"},
		},
		{
			name:   "empty corpus uses hardcoded list",
			corpus: &corpus.Corpus{Language: practice.Chinese},
			want:   []string{"你好", "谢谢", "早上好", "我喜欢喝茶。", "今天天气很好。"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o := generator.NewOffline(generator.WithCorpus(tt.corpus), generator.WithCorpus(testCorpus(practice.English)))
			s, err := o.Generate(context.Background(), practice.GenerationRequest{Language: practice.Chinese, Tier: practice.Hard})
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if !slices.Contains(tt.want, s.Text) {
				t.Errorf("text = %q, want one of %v", s.Text, tt.want)
			}
		})
	}
}

func TestOffline_SameSeedSameSequence(t *testing.T) {
	t.Parallel()
	draw := func() []string {
		o := newOffline(generator.WithSeed(42))
		var out []string
		for range 10 {
			s, _ := o.Generate(context.Background(), practice.GenerationRequest{Language: practice.English, Tier: practice.Medium})
			out = append(out, s.Text)
		}
		return out
	}
	a, b := draw(), draw()
	if !slices.Equal(a, b) {
		t.Errorf("sequences differ:\n%v\n%v", a, b)
	}
}

func TestOffline_ChainWalk(t *testing.T) {
	t.Parallel()
	o := newOffline(generator.WithChainWalk(true))
	for range 20 {
		s, _ := o.Generate(context.Background(), practice.GenerationRequest{
			Language: practice.English, Tier: practice.Medium, DesiredLength: practice.LengthShort,
		})
		if !strings.HasSuffix(s.Text, ".") {
			t.Fatalf("text %q does not end with a period", s.Text)
		}
		if r := []rune(s.Text)[0]; !unicode.IsUpper(r) {
			t.Fatalf("text %q is not capitalised", s.Text)
		}
		words := strings.Fields(strings.TrimSuffix(s.Text, "."))
		if slices.Contains(testCorpus(practice.English).Medium, s.Text) {
			continue
		}
		if len(words) < 3 || len(words) > 5 {
			t.Fatalf("walked %d words in %q, want 3..5", len(words), s.Text)
		}
	}
}

func TestOffline_ChainWalkChinese(t *testing.T) {
	t.Parallel()
	o := newOffline(generator.WithChainWalk(true))
	s, _ := o.Generate(context.Background(), practice.GenerationRequest{
		Language: practice.Chinese, Tier: practice.Medium, DesiredLength: practice.LengthShort,
	})
	if strings.ContainsAny(s.Text, " ") {
		t.Errorf("text %q contains separators", s.Text)
	}
}

func TestOffline_ConcurrentUse(t *testing.T) {
	t.Parallel()
	o := newOffline()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				if _, err := o.Generate(context.Background(), practice.GenerationRequest{Language: practice.Chinese, Tier: practice.Easy}); err != nil {
					t.Errorf("Generate: %v", err)
				}
			}
		}()
	}
	wg.Wait()
}

func TestRemote_ParsesReply(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{Replies: []string{"Sure! ```json\n{\"text\": \"  我每天早上喝茶。 \"}\n```"}}
	r := generator.NewRemote(p)

	s, err := r.Generate(context.Background(), practice.GenerationRequest{
		Language: practice.Chinese, Tier: practice.Medium, DesiredLength: practice.LengthMedium, Topic: "food",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if s.Text != "我每天早上喝茶。" {
		t.Errorf("text = %q", s.Text)
	}
	prompt := p.Requests[0].Messages[0].Content
	for _, want := range []string{"Simplified Chinese", "Level: medium", "6 to 10 characters", "Topic: food"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestRemote_Errors(t *testing.T) {
	t.Parallel()
	boom := errors.New("quota exceeded")
	tests := []struct {
		name    string
		gen     *generator.Remote
		wantErr error
	}{
		{"no provider", generator.NewRemote(nil), llm.ErrMissingCredentials},
		{"provider error", generator.NewRemote(&llmmock.Provider{CompleteErr: boom}), boom},
		{"empty text", generator.NewRemote(&llmmock.Provider{Replies: []string{`{"text": " "}`}}), generator.ErrEmptySentence},
		{"no json", generator.NewRemote(&llmmock.Provider{Replies: []string{"I cannot do that"}}), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.gen.Generate(context.Background(), practice.GenerationRequest{Language: practice.English, Tier: practice.Easy})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChain_OnlineUsesRemote(t *testing.T) {
	t.Parallel()
	remote := &genmock.Generator{Texts: []string{"from remote"}}
	offline := &genmock.Generator{Texts: []string{"from offline"}}
	c := generator.NewChain(offline, generator.WithRemote("llm", remote), generator.WithOnline(true))

	s, err := c.Generate(context.Background(), practice.GenerationRequest{Language: practice.English})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if s.Text != "from remote" {
		t.Errorf("text = %q, want from remote", s.Text)
	}
	if offline.CallCount() != 0 {
		t.Errorf("offline calls = %d, want 0", offline.CallCount())
	}
}

func TestChain_SilentFallback(t *testing.T) {
	t.Parallel()
	remote := &genmock.Generator{Err: errors.New("401 unauthorized")}
	offline := &genmock.Generator{Texts: []string{"from offline"}}
	var fallbacks int
	c := generator.NewChain(offline,
		generator.WithRemote("llm", remote),
		generator.WithOnline(true),
		generator.WithOnFallback(func(error) { fallbacks++ }),
	)

	s, err := c.Generate(context.Background(), practice.GenerationRequest{Language: practice.English})
	if err != nil {
		t.Fatalf("Generate returned %v, want silent fallback", err)
	}
	if s.Text != "from offline" {
		t.Errorf("text = %q, want from offline", s.Text)
	}
	if fallbacks != 1 {
		t.Errorf("fallbacks = %d, want 1", fallbacks)
	}
}

func TestChain_OptOutSkipsRemote(t *testing.T) {
	t.Parallel()
	remote := &genmock.Generator{}
	offline := &genmock.Generator{Texts: []string{"from offline"}}
	c := generator.NewChain(offline, generator.WithRemote("llm", remote))

	if c.Online() {
		t.Fatal("Online() = true without opt-in")
	}
	if _, err := c.Generate(context.Background(), practice.GenerationRequest{}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if remote.CallCount() != 0 {
		t.Errorf("remote calls = %d, want 0", remote.CallCount())
	}

	c.SetOnline(true)
	if _, err := c.Generate(context.Background(), practice.GenerationRequest{}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if remote.CallCount() != 1 {
		t.Errorf("remote calls after opt-in = %d, want 1", remote.CallCount())
	}
}

func TestChain_NoRemoteMeansOffline(t *testing.T) {
	t.Parallel()
	c := generator.NewChain(&genmock.Generator{}, generator.WithOnline(true))
	if c.Online() {
		t.Error("Online() = true without remotes")
	}
	if c.Remote() != nil {
		t.Error("Remote() != nil without remotes")
	}
}

func TestChain_OpenBreakerSkipsRemote(t *testing.T) {
	t.Parallel()
	remote := &genmock.Generator{Err: errors.New("down")}
	c := generator.NewChain(&genmock.Generator{},
		generator.WithRemote("llm", remote),
		generator.WithOnline(true),
		generator.WithFallbackConfig(resilience.FallbackConfig{
			CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 1},
		}),
	)
	for range 3 {
		if _, err := c.Generate(context.Background(), practice.GenerationRequest{}); err != nil {
			t.Fatalf("Generate: %v", err)
		}
	}
	if remote.CallCount() != 1 {
		t.Errorf("remote calls = %d, want 1 (breaker open after first failure)", remote.CallCount())
	}
}

func TestChain_CancelledContext(t *testing.T) {
	t.Parallel()
	remote := &genmock.Generator{Block: true}
	offline := &genmock.Generator{}
	c := generator.NewChain(offline, generator.WithRemote("llm", remote), generator.WithOnline(true))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Generate(ctx, practice.GenerationRequest{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if offline.CallCount() != 0 {
		t.Errorf("offline calls = %d, want 0", offline.CallCount())
	}
}

func TestChain_SlowRemoteFallsBackOffline(t *testing.T) {
	t.Parallel()
	remote := &genmock.Generator{Block: true}
	offline := &genmock.Generator{Texts: []string{"from offline"}}
	var fallbacks int
	c := generator.NewChain(offline,
		generator.WithRemote("llm", remote),
		generator.WithOnline(true),
		generator.WithGenerationTimeout(20*time.Millisecond),
		generator.WithOnFallback(func(error) { fallbacks++ }),
	)

	start := time.Now()
	s, err := c.Generate(context.Background(), practice.GenerationRequest{Language: practice.English})
	if err != nil {
		t.Fatalf("Generate returned %v, want offline sentence", err)
	}
	if s.Text != "from offline" {
		t.Errorf("text = %q, want from offline", s.Text)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Generate took %v, want about the generation timeout", elapsed)
	}
	if remote.CallCount() != 1 || fallbacks != 1 {
		t.Errorf("remote calls = %d, fallbacks = %d, want 1 and 1", remote.CallCount(), fallbacks)
	}

	// A non-positive timeout restores the default rather than disabling it.
	c.SetGenerationTimeout(0)
	remote.SetBlock(false)
	remote.Texts = []string{"from remote"}
	if s, err := c.Generate(context.Background(), practice.GenerationRequest{}); err != nil || s.Text != "from remote" {
		t.Errorf("Generate after reset = %q, %v", s.Text, err)
	}
}

func TestTestConnection(t *testing.T) {
	t.Parallel()
	if err := generator.TestConnection(context.Background(), nil); !practice.IsKind(err, practice.ConfigurationFailure) {
		t.Errorf("nil generator: err = %v, want configuration failure", err)
	}

	missing := generator.NewRemote(nil)
	err := generator.TestConnection(context.Background(), missing)
	if !practice.IsKind(err, practice.ConfigurationFailure) || !errors.Is(err, llm.ErrMissingCredentials) {
		t.Errorf("missing credentials: err = %v", err)
	}

	ok := generator.NewRemote(&llmmock.Provider{Replies: []string{`{"text": "hello"}`}})
	if err := generator.TestConnection(context.Background(), ok); err != nil {
		t.Errorf("working provider: err = %v", err)
	}
}

func TestPlanner_Progression(t *testing.T) {
	t.Parallel()
	p := generator.NewPlanner(7)
	tests := []struct {
		completed int
		want      practice.Length
	}{
		{0, practice.LengthWord},
		{4, practice.LengthWord},
		{5, practice.LengthShort},
		{14, practice.LengthShort},
		{15, practice.LengthMedium},
		{29, practice.LengthMedium},
		{30, practice.LengthLong},
		{500, practice.LengthLong},
	}
	for _, tt := range tests {
		req := p.Next(practice.English, practice.Medium, tt.completed)
		if req.DesiredLength != tt.want {
			t.Errorf("completed=%d: length = %s, want %s", tt.completed, req.DesiredLength, tt.want)
		}
		if !slices.Contains(practice.Topics, req.Topic) {
			t.Errorf("topic %q not in topic set", req.Topic)
		}
		if req.VocabBucket != "medium-"+string(tt.want) {
			t.Errorf("bucket = %q", req.VocabBucket)
		}
	}
}
