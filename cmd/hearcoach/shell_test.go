package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/hearcoach/internal/app"
	"github.com/MrWong99/hearcoach/internal/config"
	"github.com/MrWong99/hearcoach/internal/observe"
	audiomock "github.com/MrWong99/hearcoach/pkg/audio/mock"
	"github.com/MrWong99/hearcoach/pkg/provider/llm"
	llmmock "github.com/MrWong99/hearcoach/pkg/provider/llm/mock"
	"github.com/MrWong99/hearcoach/pkg/store/memstore"
)

func newTestShell(t *testing.T) (*shell, *bytes.Buffer) {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(`
practice:
  online_generation: true
providers:
  llm:
    name: test-llm
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	reg := config.NewRegistry()
	reg.RegisterLLM("test-llm", func(config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{Replies: []string{`{"text": "Good morning."}`}}, nil
	})
	a, err := app.New(context.Background(), cfg, reg,
		app.WithStore(memstore.New()),
		app.WithMetrics(metrics),
		app.WithSpeaker(&audiomock.Speaker{}),
	)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	var buf bytes.Buffer
	return newShell(a, &buf), &buf
}

// output returns everything printed so far.
func (s *shell) output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.(*bytes.Buffer).String()
}

func waitOutput(t *testing.T, s *shell, want string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !strings.Contains(s.output(), want) {
		if time.Now().After(deadline) {
			t.Fatalf("output never contained %q:\n%s", want, s.output())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestShell_PracticeFlow(t *testing.T) {
	sh, _ := newTestShell(t)
	go sh.watch()
	ctx := context.Background()

	steps := []struct {
		line string
		want string
	}{
		{"next", "No session running"},
		{"start", "Session started"},
	}
	for _, st := range steps {
		if sh.exec(ctx, st.line) {
			t.Fatalf("%q asked to quit", st.line)
		}
		waitOutput(t, sh, st.want)
	}
	waitOutput(t, sh, "New sentence")

	sh.exec(ctx, "say")
	waitOutput(t, sh, "usage: say <text>")

	sh.exec(ctx, "say good morning")
	waitOutput(t, sh, "Correct!")

	sh.exec(ctx, "say good morning")
	waitOutput(t, sh, `Type "next" for a new sentence.`)

	sh.exec(ctx, "stop")
	waitOutput(t, sh, "Not recording")

	sh.exec(ctx, "status")
	waitOutput(t, sh, "practised today")

	sh.exec(ctx, "end")
	waitOutput(t, sh, "Session summary: 1 attempts, 1 correct")

	sh.exec(ctx, "dance")
	waitOutput(t, sh, `unknown command "dance"`)

	if !sh.exec(ctx, "quit") {
		t.Error("quit did not stop the shell")
	}
}

func TestShell_TestCommand(t *testing.T) {
	sh, _ := newTestShell(t)
	sh.exec(context.Background(), "test")
	waitOutput(t, sh, "Online generator is working")
}

func TestShell_RunUntilQuit(t *testing.T) {
	sh, _ := newTestShell(t)
	err := sh.run(context.Background(), strings.NewReader("help\nquit\nstart\n"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	out := sh.output()
	if !strings.Contains(out, "commands:") {
		t.Errorf("help not printed:\n%s", out)
	}
	if strings.Contains(out, "Session started") {
		t.Error("commands after quit were executed")
	}
}

func TestShell_RunStopsAtEOF(t *testing.T) {
	sh, _ := newTestShell(t)
	if err := sh.run(context.Background(), strings.NewReader("status\n")); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(sh.output(), "phase: idle") {
		t.Errorf("status not printed:\n%s", sh.output())
	}
}

func TestShell_RunStopsOnCancel(t *testing.T) {
	sh, _ := newTestShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sh.run(ctx, blockingReader{}); err != context.Canceled {
		t.Errorf("run = %v, want context.Canceled", err)
	}
}

// blockingReader never returns.
type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) { select {} }
