package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/hearcoach/internal/app"
	"github.com/MrWong99/hearcoach/internal/engine"
	"github.com/MrWong99/hearcoach/internal/practice"
)

const helpText = `commands:
  start          begin a practice session
  next           move on to the next sentence
  replay         hear the sentence again
  hint           show part of the sentence (after 4 replays)
  say <text>     answer by typing
  rec / stop     answer by voice: start and stop recording
  cancel         discard a recording in progress
  status         show the session and today's practice time
  test           check the online generator configuration
  end            finish the session and show a summary
  quit           end the session and exit`

// shell reads commands line by line and drives the engine. Output from the
// command loop and from notifications is serialised through mu.
type shell struct {
	app *app.App
	eng *engine.Engine
	now func() time.Time

	mu       sync.Mutex
	out      io.Writer
	promptAt time.Time
}

func newShell(a *app.App, out io.Writer) *shell {
	return &shell{app: a, eng: a.Engine(), out: out, now: time.Now}
}

func (s *shell) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format+"\n", args...)
}

func (s *shell) prompt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promptAt = s.now()
	fmt.Fprint(s.out, "> ")
}

// run processes lines from in until quit, end of input or ctx cancellation.
func (s *shell) run(ctx context.Context, in io.Reader) error {
	go s.watch()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	s.printf("HearCoach: type \"start\" to begin, \"help\" for commands.")
	for {
		s.prompt()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case line := <-lines:
			if s.exec(ctx, line) {
				return nil
			}
		}
	}
}

// watch prints engine notifications until the engine is closed.
func (s *shell) watch() {
	for n := range s.eng.Notifications() {
		switch n := n.(type) {
		case engine.SentenceReady:
			s.printf("* New sentence. Listen, then \"say <text>\" or \"rec\".")
		case engine.PlaybackFailed:
			s.printf("! Playback failed: %v", n.Err)
		case engine.GoalReached:
			s.printf("* Daily goal reached for %s. Well done!", n.DateKey)
		}
	}
}

// exec runs one command and reports whether the shell should exit.
func (s *shell) exec(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch strings.ToLower(cmd) {
	case "":
	case "help", "?":
		s.printf("%s", helpText)
	case "start":
		if err = s.eng.Start(ctx); err == nil {
			s.printf("* Session started.")
		}
	case "next":
		err = s.eng.Next(ctx)
	case "replay":
		err = s.eng.Replay(ctx)
	case "hint":
		var hint string
		if hint, err = s.eng.Hint(); err == nil {
			s.printf("Hint: %s", hint)
		}
	case "say":
		if arg == "" {
			s.printf("usage: say <text>")
			break
		}
		s.mu.Lock()
		typing := s.now().Sub(s.promptAt)
		s.mu.Unlock()
		var out engine.Outcome
		if out, err = s.eng.SubmitText(ctx, arg, typing); err == nil {
			s.printOutcome(out)
		}
	case "rec":
		if err = s.eng.StartRecording(ctx); err == nil {
			s.printf("* Recording. Type \"stop\" when you are done.")
		}
	case "stop":
		var out engine.Outcome
		if out, err = s.eng.StopRecording(ctx); err == nil {
			s.printOutcome(out)
		}
	case "cancel":
		s.eng.CancelRecording()
	case "status":
		s.printStatus(ctx)
	case "test":
		if err = s.app.TestConnection(ctx); err == nil {
			s.printf("* Online generator is working.")
		}
	case "end":
		err = s.end(ctx)
	case "quit", "exit":
		if err := s.end(ctx); err != nil && !errors.Is(err, engine.ErrNotActive) {
			s.printf("! %s", describe(err))
		}
		return true
	default:
		s.printf("unknown command %q, type \"help\"", cmd)
	}
	if err != nil {
		s.printf("! %s", describe(err))
	}
	return false
}

func (s *shell) end(ctx context.Context) error {
	sess, err := s.eng.End(ctx)
	if err != nil {
		return err
	}
	s.printf("Session summary: %d attempts, %d correct, average score %.1f",
		sess.TotalAttempts(), sess.CorrectAttempts(), sess.AverageScore())
	return nil
}

func (s *shell) printOutcome(out engine.Outcome) {
	a := out.Attempt
	switch out.Feedback {
	case engine.FeedbackCorrect:
		s.printf("Correct! score %.1f. Type \"next\" to continue.", a.ItemScore)
	case engine.FeedbackTryAgain:
		s.printf("Not quite (similarity %.0f%%), attempt %d. Try again or \"replay\".", a.Similarity*100, a.Number)
	case engine.FeedbackReveal:
		s.printf("The sentence was: %s", out.Reference)
		s.printf("Type \"next\" to continue.")
	}
	if a.Mode == practice.ModeVoice && a.Transcript != "" {
		s.printf("  heard: %q", a.Transcript)
	}
	if p := a.Pronunciation; p != nil {
		s.printf("  pronunciation: accuracy %d, fluency %d, completeness %d, prosody %d",
			p.Accuracy, p.Fluency, p.Completeness, p.Prosody)
	}
}

func (s *shell) printStatus(ctx context.Context) {
	snap := s.eng.Snapshot()
	s.printf("phase: %s, language: %s, tier: %s", snap.Phase, snap.Language, snap.Tier)
	if snap.Phase != engine.Idle && snap.Phase != engine.Ended {
		s.printf("attempt %d/%d, replays %d, hint available: %t",
			snap.Attempt, snap.MaxAttempts, snap.Replays, snap.HintAvailable)
		s.printf("session: %d attempts, %d correct, average %.1f",
			snap.TotalAttempts, snap.CorrectAttempts, snap.AverageScore)
	}
	if key, total, err := s.app.Tracker().Today(ctx); err == nil {
		s.printf("practised today (%s): %s of %s", key, total.Round(time.Second), s.app.Tracker().Goal())
	}
}

// describe turns engine and failure errors into short user-facing text.
func describe(err error) string {
	switch {
	case errors.Is(err, engine.ErrNotActive):
		return "No session running. Type \"start\"."
	case errors.Is(err, engine.ErrActive):
		return "A session is already running."
	case errors.Is(err, engine.ErrNotReady):
		return "The sentence is still loading."
	case errors.Is(err, engine.ErrBusy):
		return "Still scoring your last answer."
	case errors.Is(err, engine.ErrAwaitingNext):
		return "Type \"next\" for a new sentence."
	case errors.Is(err, engine.ErrTurnOpen):
		return "Answer the current sentence first."
	case errors.Is(err, engine.ErrStale):
		return "That answer arrived too late and was discarded."
	case errors.Is(err, engine.ErrNotRecording):
		return "Not recording. Type \"rec\" first."
	case errors.Is(err, engine.ErrHintUnavailable):
		return "Replay the sentence a few more times to unlock a hint."
	case practice.IsKind(err, practice.CaptureFailure):
		return "Could not record audio: " + err.Error()
	case practice.IsKind(err, practice.RecognitionFailure):
		return "Could not understand the recording, please try again."
	case practice.IsKind(err, practice.ConfigurationFailure):
		return "Online generator check failed: " + err.Error()
	}
	return err.Error()
}
