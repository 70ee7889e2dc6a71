package generator

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MrWong99/hearcoach/internal/practice"
	"github.com/MrWong99/hearcoach/internal/resilience"
)

// DefaultGenerationTimeout bounds one remote generation attempt when no
// other timeout is configured.
const DefaultGenerationTimeout = 10 * time.Second

// Chain routes requests to remote generators while online generation is
// enabled and falls back to an offline generator otherwise. Remote failures,
// including running past the generation timeout, are logged and never
// returned; only a cancelled caller context is.
type Chain struct {
	remotes    *resilience.FallbackGroup[Generator]
	offline    Generator
	online     atomic.Bool
	timeout    atomic.Int64
	onFallback func(err error)
}

var _ Generator = (*Chain)(nil)

// ChainOption configures a [Chain].
type ChainOption func(*chainConfig)

type chainConfig struct {
	remotes    []namedGenerator
	online     bool
	timeout    time.Duration
	fallback   resilience.FallbackConfig
	onFallback func(err error)
}

type namedGenerator struct {
	name string
	gen  Generator
}

// WithRemote appends a remote generator. Remotes are tried in the order
// they are added, each behind its own circuit breaker.
func WithRemote(name string, gen Generator) ChainOption {
	return func(c *chainConfig) {
		if gen != nil {
			c.remotes = append(c.remotes, namedGenerator{name: name, gen: gen})
		}
	}
}

// WithOnline sets the initial online opt-in. Defaults to false.
func WithOnline(enabled bool) ChainOption {
	return func(c *chainConfig) { c.online = enabled }
}

// WithGenerationTimeout bounds the time spent on remote generators for one
// request. Past it the request is served offline. Defaults to
// [DefaultGenerationTimeout].
func WithGenerationTimeout(d time.Duration) ChainOption {
	return func(c *chainConfig) { c.timeout = d }
}

// WithFallbackConfig configures the circuit breakers and failover hook of
// the remote group.
func WithFallbackConfig(cfg resilience.FallbackConfig) ChainOption {
	return func(c *chainConfig) { c.fallback = cfg }
}

// WithOnFallback registers fn to be called every time a request was served
// offline because the remote generators failed.
func WithOnFallback(fn func(err error)) ChainOption {
	return func(c *chainConfig) { c.onFallback = fn }
}

// NewChain returns a Chain that falls back to offline.
func NewChain(offline Generator, opts ...ChainOption) *Chain {
	cfg := chainConfig{timeout: DefaultGenerationTimeout}
	for _, o := range opts {
		o(&cfg)
	}
	c := &Chain{
		remotes:    resilience.NewFallbackGroup[Generator](cfg.fallback),
		offline:    offline,
		onFallback: cfg.onFallback,
	}
	for _, r := range cfg.remotes {
		c.remotes.Add(r.name, r.gen)
	}
	c.online.Store(cfg.online)
	c.SetGenerationTimeout(cfg.timeout)
	return c
}

// SetOnline changes the online opt-in. Safe to call concurrently with
// Generate.
func (c *Chain) SetOnline(enabled bool) { c.online.Store(enabled) }

// SetGenerationTimeout changes the remote generation timeout. Non-positive
// values restore [DefaultGenerationTimeout].
func (c *Chain) SetGenerationTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultGenerationTimeout
	}
	c.timeout.Store(int64(d))
}

// Online reports whether remote generation will be attempted: the user opted
// in and at least one remote generator is configured.
func (c *Chain) Online() bool {
	return c.online.Load() && c.remotes.Len() > 0
}

// Remote returns the chain's remote group as a single [Generator] for
// [TestConnection], or nil when no remote is configured.
func (c *Chain) Remote() Generator {
	if c.remotes.Len() == 0 {
		return nil
	}
	return remoteGroup{c.remotes}
}

// Generate implements [Generator].
func (c *Chain) Generate(ctx context.Context, req practice.GenerationRequest) (practice.Sentence, error) {
	if c.Online() {
		rctx, cancel := context.WithTimeout(ctx, time.Duration(c.timeout.Load()))
		s, err := resilience.ExecuteWithResult(rctx, c.remotes, func(ctx context.Context, g Generator) (practice.Sentence, error) {
			return g.Generate(ctx, req)
		})
		cancel()
		if err == nil {
			return s, nil
		}
		if ctx.Err() != nil {
			return practice.Sentence{}, ctx.Err()
		}
		slog.Warn("remote generation failed, using offline corpus",
			"language", req.Language, "tier", req.Tier, "err", err)
		if c.onFallback != nil {
			c.onFallback(err)
		}
	}
	return c.offline.Generate(ctx, req)
}

type remoteGroup struct {
	g *resilience.FallbackGroup[Generator]
}

func (r remoteGroup) Generate(ctx context.Context, req practice.GenerationRequest) (practice.Sentence, error) {
	return resilience.ExecuteWithResult(ctx, r.g, func(ctx context.Context, g Generator) (practice.Sentence, error) {
		return g.Generate(ctx, req)
	})
}
