package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrWong99/hearcoach/internal/observe"
)

// Notification is an asynchronous event published on
// [Engine.Notifications].
type Notification interface{ notification() }

// SentenceReady announces that the sentence for Turn is current and playing.
// The text stays hidden until it is revealed.
type SentenceReady struct{ Turn uint64 }

// PlaybackFinished reports a completed playback and how long it lasted.
type PlaybackFinished struct{ Duration time.Duration }

// PlaybackFailed reports a playback that could not be completed.
type PlaybackFailed struct{ Err error }

// GoalReached fires the first time a day's practice time reaches the goal.
type GoalReached struct{ DateKey string }

func (SentenceReady) notification()    {}
func (PlaybackFinished) notification() {}
func (PlaybackFailed) notification()   {}
func (GoalReached) notification()      {}

// send delivers n without blocking.
func (e *Engine) send(n Notification) {
	select {
	case e.notify <- n:
	default:
		slog.Debug("engine: notification dropped, channel full", "notification", n)
	}
}

// play starts playback of text, superseding any playback in progress. e.mu
// must be held.
func (e *Engine) play(text string) {
	e.stopPlayback()
	if e.speaker == nil {
		return
	}
	token := e.playToken
	ctx, cancel := context.WithCancel(e.sessionCtx)
	e.cancelPlay = cancel
	lang := string(e.state.Sentence.Language)
	if lang == "" {
		lang = string(e.settings.Language)
	}
	rate, pitch := e.settings.SpeechRate, e.settings.Pitch

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()

		var played time.Duration
		err := observe.Stage(ctx, "speak sentence", e.metrics.SynthesisDuration, func(ctx context.Context) error {
			var err error
			played, err = e.speaker.Speak(ctx, text, lang, rate, pitch)
			return err
		})

		e.mu.Lock()
		current := token == e.playToken
		if current {
			e.cancelPlay = nil
		}
		e.mu.Unlock()
		if !current {
			return
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			slog.Warn("engine: playback failed", "err", err)
			e.send(PlaybackFailed{Err: err})
			return
		}
		e.send(PlaybackFinished{Duration: played})
		e.addUsage(e.base, played)
	}()
}

// stopPlayback cancels playback in progress and invalidates its completion.
// e.mu must be held.
func (e *Engine) stopPlayback() {
	e.playToken++
	if e.cancelPlay != nil {
		e.cancelPlay()
		e.cancelPlay = nil
	}
}

// addUsage adds d to today's practice time and announces the goal when it is
// reached. Must be called without e.mu held.
func (e *Engine) addUsage(ctx context.Context, d time.Duration) {
	if e.usage == nil || d <= 0 {
		return
	}
	reached, key, err := e.usage.Add(ctx, d)
	if err != nil {
		slog.Warn("engine: could not record practice time", "err", err, "duration", d)
		return
	}
	if reached {
		slog.Info("daily goal reached", "date", key, "goal", e.usage.Goal())
		e.metrics.RecordGoalReached(ctx)
		e.send(GoalReached{DateKey: key})
	}
}
