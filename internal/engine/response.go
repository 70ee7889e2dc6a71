package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrWong99/hearcoach/internal/observe"
	"github.com/MrWong99/hearcoach/internal/practice"
	"github.com/MrWong99/hearcoach/internal/scoring"
	"github.com/MrWong99/hearcoach/pkg/audio"
	"github.com/MrWong99/hearcoach/pkg/types"
)

// Outcome is the verdict on one response.
type Outcome struct {
	Attempt  practice.Attempt
	Feedback Feedback

	// Reference is the sentence text when the verdict reveals it, else "".
	Reference string
}

// turnRef identifies the sentence and attempt a response was given for.
type turnRef struct {
	turn     uint64
	sentence practice.Sentence
	attempt  int
	settings Settings
	ctx      context.Context
}

// beginResponse checks that a response may be submitted now and moves the
// machine to scoring. e.mu must be held.
func (e *Engine) beginResponse() (turnRef, error) {
	if !e.state.Active() {
		return turnRef{}, ErrNotActive
	}
	switch e.state.Phase {
	case LoadingSentence:
		return turnRef{}, ErrNotReady
	case ScoringResponse:
		return turnRef{}, ErrBusy
	case CorrectAndWaitNext, RevealAndWaitNext:
		return turnRef{}, ErrAwaitingNext
	}
	ref := turnRef{
		turn:     e.state.Turn,
		sentence: e.state.Sentence,
		attempt:  e.state.Attempt,
		settings: e.settings,
		ctx:      e.sessionCtx,
	}
	e.apply(EventSubmit{})
	return ref, nil
}

// SubmitText scores a typed response. typing is the time spent typing; it
// counts towards daily practice time.
func (e *Engine) SubmitText(ctx context.Context, text string, typing time.Duration) (Outcome, error) {
	e.mu.Lock()
	if e.recording != nil {
		e.mu.Unlock()
		return Outcome{}, ErrBusy
	}
	ref, err := e.beginResponse()
	e.mu.Unlock()
	if err != nil {
		return Outcome{}, err
	}

	e.addUsage(ctx, typing)
	res := e.scorer.Score(ref.sentence.Text, text, ref.attempt, nil)
	return e.finishResponse(ctx, ref, practice.ModeText, text, res, nil)
}

// StartRecording opens the microphone for a voice response.
func (e *Engine) StartRecording(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.Active() {
		return ErrNotActive
	}
	if e.recording != nil {
		return ErrBusy
	}
	switch e.state.Phase {
	case LoadingSentence:
		return ErrNotReady
	case ScoringResponse:
		return ErrBusy
	case CorrectAndWaitNext, RevealAndWaitNext:
		return ErrAwaitingNext
	}
	if e.recorder == nil {
		return practice.Fail(practice.CaptureFailure, "start recording", errNoRecorder)
	}
	rec, err := e.recorder.Start(ctx)
	if err != nil {
		return practice.Fail(practice.CaptureFailure, "start recording", err)
	}
	e.recording = rec
	e.recordingTurn = e.state.Turn
	return nil
}

// CancelRecording discards a recording in progress.
func (e *Engine) CancelRecording() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recording != nil {
		e.recording.Cancel()
		e.recording = nil
	}
}

// StopRecording ends the recording, recognises and rates it, and scores the
// response. Capture and recognition problems are returned as
// [practice.Failure] values; the attempt number is left unchanged so the
// user can try again.
func (e *Engine) StopRecording(ctx context.Context) (Outcome, error) {
	e.mu.Lock()
	rec := e.recording
	if rec == nil {
		e.mu.Unlock()
		return Outcome{}, ErrNotRecording
	}
	e.recording = nil
	if e.recordingTurn != e.state.Turn {
		e.mu.Unlock()
		rec.Cancel()
		return Outcome{}, ErrStale
	}
	ref, err := e.beginResponse()
	e.mu.Unlock()
	if err != nil {
		rec.Cancel()
		return Outcome{}, err
	}

	clip, err := rec.Stop(ctx)
	if err != nil {
		return Outcome{}, e.failResponse(ref, practice.Fail(practice.CaptureFailure, "stop recording", err))
	}
	e.addUsage(ctx, clip.Duration())

	rctx, cancel := context.WithTimeout(ctx, ref.settings.ResponseTimeout)
	defer cancel()
	stop := context.AfterFunc(ref.ctx, cancel)
	defer stop()

	transcript, pron, err := e.recognize(rctx, clip, ref)
	if err != nil {
		observe.Logger(rctx).Warn("engine: response could not be processed", "err", err)
		return Outcome{}, e.failResponse(ref, err)
	}
	res := e.scorer.Score(ref.sentence.Text, transcript, ref.attempt, pron)
	return e.finishResponse(ctx, ref, practice.ModeVoice, transcript, res, pron)
}

// recognize transcribes clip and, when a rater is configured, rates it.
func (e *Engine) recognize(ctx context.Context, clip audio.Clip, ref turnRef) (string, *types.PronunciationScores, error) {
	if e.recognizer == nil {
		return "", nil, practice.Fail(practice.RecognitionFailure, "recognize", errNoRecognizer)
	}
	var tr types.Transcript
	err := observe.Stage(ctx, "recognize response", e.metrics.RecognitionDuration, func(ctx context.Context) error {
		var err error
		tr, err = e.recognizer.Transcribe(ctx, clip, string(ref.sentence.Language))
		return err
	})
	e.metrics.RecordProviderRequest(ctx, e.recognizerName, "stt", err)
	if err != nil {
		return "", nil, practice.Fail(practice.RecognitionFailure, "recognize", err)
	}
	if e.rater == nil {
		return tr.Text, nil, nil
	}

	var scores types.PronunciationScores
	err = observe.Stage(ctx, "rate pronunciation", e.metrics.PronunciationDuration, func(ctx context.Context) error {
		var err error
		scores, err = e.rater.Rate(ctx, clip, ref.sentence.Text, tr.Text)
		return err
	})
	e.metrics.RecordProviderRequest(ctx, e.raterName, "pronunciation", err)
	if err != nil {
		return "", nil, practice.Fail(practice.RecognitionFailure, "rate pronunciation", err)
	}
	scores = scores.Clamp()
	return tr.Text, &scores, nil
}

// failResponse returns the machine to awaiting a response. When the turn has
// moved on meanwhile, ErrStale replaces err.
func (e *Engine) failResponse(ref turnRef, err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev := e.state
	e.apply(EventScoringFailed{Turn: ref.turn})
	if e.state == prev {
		return ErrStale
	}
	return err
}

// finishResponse records the verdict if the turn is still current.
func (e *Engine) finishResponse(ctx context.Context, ref turnRef, mode practice.ResponseMode, transcript string, res scoring.Result, pron *types.PronunciationScores) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	effects := e.apply(EventScored{Turn: ref.turn, Correct: res.Correct})
	if len(effects) == 0 {
		return Outcome{}, ErrStale
	}

	var out Outcome
	for _, eff := range effects {
		switch eff := eff.(type) {
		case RecordAttempt:
			out.Attempt = practice.Attempt{
				ID:            practice.NewID(),
				SentenceID:    ref.sentence.ID,
				SentenceText:  ref.sentence.Text,
				Timestamp:     e.now(),
				Number:        eff.Number,
				Mode:          mode,
				Correct:       res.Correct,
				Similarity:    res.Similarity,
				Pronunciation: pron,
				Transcript:    transcript,
				ItemScore:     res.ItemScore,
			}
			e.session.Attempts = append(e.session.Attempts, out.Attempt)
			e.metrics.RecordAttempt(ctx, string(mode), res.Correct, res.ItemScore)
		case ShowFeedback:
			out.Feedback = eff.Feedback
		}
	}
	if e.state.Revealed {
		out.Reference = ref.sentence.Text
	}
	if out.Feedback == FeedbackReveal {
		e.metrics.RecordReveal(ctx)
	}
	slog.Debug("response scored", "session_id", e.session.ID, "attempt", out.Attempt.Number,
		"mode", mode, "correct", res.Correct, "similarity", res.Similarity, "item_score", res.ItemScore)
	return out, nil
}
