// Package mock provides in-memory implementations of the [audio.Recorder],
// [audio.Player] and speaker seams for use in unit tests.
//
// All mocks are safe for concurrent use. They record every call so that tests
// can assert on call counts and arguments, and they expose fields that the
// test sets to control return values.
//
// Typical usage:
//
//	rec := &mock.Recorder{Clip: audio.Clip{Data: pcm, SampleRate: 16000, Channels: 1}}
//	r, _ := rec.Start(ctx)
//	clip, _ := r.Stop(ctx)
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/hearcoach/pkg/audio"
)

// ─── Recorder ────────────────────────────────────────────────────────────────

// Recorder is a mock implementation of [audio.Recorder].
type Recorder struct {
	mu sync.Mutex

	// Clip is returned by Stop on every recording started by this recorder.
	Clip audio.Clip

	// StartErr is returned by Start.
	StartErr error

	// StopErr is returned by Stop.
	StopErr error

	// StartCalls counts Start invocations.
	StartCalls int

	// StopCalls counts Stop invocations across all recordings.
	StopCalls int

	// CancelCalls counts Cancel invocations across all recordings.
	CancelCalls int
}

var _ audio.Recorder = (*Recorder)(nil)

// Start implements [audio.Recorder].
func (r *Recorder) Start(_ context.Context) (audio.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StartCalls++
	if r.StartErr != nil {
		return nil, r.StartErr
	}
	return &recording{parent: r}, nil
}

// Reset clears recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StartCalls, r.StopCalls, r.CancelCalls = 0, 0, 0
}

type recording struct {
	parent *Recorder
}

func (rc *recording) Stop(_ context.Context) (audio.Clip, error) {
	rc.parent.mu.Lock()
	defer rc.parent.mu.Unlock()
	rc.parent.StopCalls++
	if rc.parent.StopErr != nil {
		return audio.Clip{}, rc.parent.StopErr
	}
	return rc.parent.Clip, nil
}

func (rc *recording) Cancel() {
	rc.parent.mu.Lock()
	defer rc.parent.mu.Unlock()
	rc.parent.CancelCalls++
}

// ─── Player ──────────────────────────────────────────────────────────────────

// Player is a mock implementation of [audio.Player]. Play returns
// immediately unless Block is set, in which case it waits for ctx.
type Player struct {
	mu sync.Mutex

	// Err is returned by Play.
	Err error

	// Block makes Play wait until its context is cancelled.
	Block bool

	// Played records every clip passed to Play.
	Played []audio.Clip
}

var _ audio.Player = (*Player)(nil)

// Play implements [audio.Player].
func (p *Player) Play(ctx context.Context, clip audio.Clip) error {
	p.mu.Lock()
	p.Played = append(p.Played, clip)
	block, err := p.Block, p.Err
	p.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

// ─── Speaker ─────────────────────────────────────────────────────────────────

// SpeakCall records one Speak invocation.
type SpeakCall struct {
	Text     string
	Language string
	Rate     float64
	Pitch    float64
}

// Speaker mocks the engine's speech-synthesis seam (the shape of
// [audio.Speaker.Speak]).
type Speaker struct {
	mu sync.Mutex

	// Duration is returned by Speak on success.
	Duration time.Duration

	// Err is returned by Speak.
	Err error

	// Block makes Speak wait until its context is cancelled, then return
	// ctx.Err(). Useful for exercising playback supersession.
	Block bool

	// Calls records every Speak invocation in order.
	Calls []SpeakCall

	// Started receives a value every time Speak begins. Optional.
	Started chan struct{}
}

// Speak records the call and returns the configured result.
func (s *Speaker) Speak(ctx context.Context, text, language string, rate, pitch float64) (time.Duration, error) {
	s.mu.Lock()
	s.Calls = append(s.Calls, SpeakCall{Text: text, Language: language, Rate: rate, Pitch: pitch})
	d, err, block, started := s.Duration, s.Err, s.Block, s.Started
	s.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return d, err
}

// CallCount returns the number of Speak invocations so far.
func (s *Speaker) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

// Reset clears recorded calls.
func (s *Speaker) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = nil
}
