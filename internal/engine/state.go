package engine

import "github.com/MrWong99/hearcoach/internal/practice"

// Phase is the position of a session in the turn cycle.
type Phase int

const (
	Idle Phase = iota
	LoadingSentence
	AwaitingResponse
	ScoringResponse
	CorrectAndWaitNext
	RevealAndWaitNext
	Ended
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case LoadingSentence:
		return "loading"
	case AwaitingResponse:
		return "awaiting response"
	case ScoringResponse:
		return "scoring"
	case CorrectAndWaitNext:
		return "correct"
	case RevealAndWaitNext:
		return "revealed"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// hintReplays is the replay count at which the hint becomes available.
const hintReplays = 4

// State is the in-memory state of one session. The zero value is Idle.
type State struct {
	Phase    Phase
	Sentence practice.Sentence

	// Attempt is the 1-based attempt number within the current turn. It
	// reaches MaxAttempts+1 only after the final wrong answer.
	Attempt     int
	MaxAttempts int
	Replays     int
	Revealed    bool

	// Turn increases whenever the current sentence is superseded or the
	// session ends. Asynchronous results carry the turn they were started
	// for and are ignored once it no longer matches.
	Turn uint64
}

// Active reports whether a session is running.
func (s State) Active() bool {
	return s.Phase != Idle && s.Phase != Ended
}

// HasSentence reports whether a sentence is current.
func (s State) HasSentence() bool {
	switch s.Phase {
	case AwaitingResponse, ScoringResponse, CorrectAndWaitNext, RevealAndWaitNext:
		return true
	}
	return false
}

// HintAvailable reports whether the user has replayed the current sentence
// often enough to ask for a hint.
func (s State) HintAvailable() bool {
	return s.HasSentence() && s.Replays >= hintReplays
}

// Event is an input to [Transition].
type Event interface{ event() }

// EventStart begins a session.
type EventStart struct{ MaxAttempts int }

// EventSentenceReady delivers the sentence requested for Turn.
type EventSentenceReady struct {
	Turn     uint64
	Sentence practice.Sentence
}

// EventReplay asks for the current sentence to be played again.
type EventReplay struct{}

// EventSubmit marks the start of scoring a response.
type EventSubmit struct{}

// EventScored delivers the verdict for the response submitted in Turn.
type EventScored struct {
	Turn    uint64
	Correct bool
}

// EventScoringFailed reports that the response submitted in Turn could not
// be scored.
type EventScoringFailed struct{ Turn uint64 }

// EventNext advances past a correct or revealed sentence.
type EventNext struct{}

// EventEnd ends the session.
type EventEnd struct{}

func (EventStart) event()         {}
func (EventSentenceReady) event() {}
func (EventReplay) event()        {}
func (EventSubmit) event()        {}
func (EventScored) event()        {}
func (EventScoringFailed) event() {}
func (EventNext) event()          {}
func (EventEnd) event()           {}

// Feedback is what the user is told after a scored response.
type Feedback int

const (
	FeedbackCorrect Feedback = iota + 1
	FeedbackTryAgain
	FeedbackReveal
)

// String returns the feedback name.
func (f Feedback) String() string {
	switch f {
	case FeedbackCorrect:
		return "correct"
	case FeedbackTryAgain:
		return "try again"
	case FeedbackReveal:
		return "reveal"
	default:
		return "none"
	}
}

// Effect is a side effect requested by [Transition].
type Effect interface{ effect() }

// RequestSentence asks for a sentence for Turn.
type RequestSentence struct{ Turn uint64 }

// PlaySentence plays the current sentence, superseding any playback in
// progress.
type PlaySentence struct{ Text string }

// CancelPlayback stops playback in progress.
type CancelPlayback struct{}

// CancelWork cancels outstanding generation, recording and recognition.
type CancelWork struct{}

// RecordAttempt appends the scored response as attempt Number.
type RecordAttempt struct{ Number int }

// ShowFeedback presents a verdict.
type ShowFeedback struct{ Feedback Feedback }

// PersistSession finalises the session.
type PersistSession struct{}

func (RequestSentence) effect() {}
func (PlaySentence) effect()    {}
func (CancelPlayback) effect()  {}
func (CancelWork) effect()      {}
func (RecordAttempt) effect()   {}
func (ShowFeedback) effect()    {}
func (PersistSession) effect()  {}

// Transition computes the state following ev and the effects the caller must
// carry out. Events that make no sense in the current state return s
// unchanged and no effects.
func Transition(s State, ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case EventStart:
		if s.Active() {
			return s, nil
		}
		next := State{
			Phase:       LoadingSentence,
			MaxAttempts: max(ev.MaxAttempts, 1),
			Turn:        s.Turn + 1,
		}
		return next, []Effect{RequestSentence{Turn: next.Turn}}

	case EventSentenceReady:
		if s.Phase != LoadingSentence || ev.Turn != s.Turn {
			return s, nil
		}
		s.Phase = AwaitingResponse
		s.Sentence = ev.Sentence
		s.Attempt = 1
		s.Replays = 0
		s.Revealed = false
		return s, []Effect{PlaySentence{Text: s.Sentence.Text}}

	case EventReplay:
		if !s.HasSentence() {
			return s, nil
		}
		s.Replays++
		return s, []Effect{PlaySentence{Text: s.Sentence.Text}}

	case EventSubmit:
		if s.Phase != AwaitingResponse {
			return s, nil
		}
		s.Phase = ScoringResponse
		return s, nil

	case EventScored:
		if s.Phase != ScoringResponse || ev.Turn != s.Turn {
			return s, nil
		}
		record := RecordAttempt{Number: s.Attempt}
		switch {
		case ev.Correct:
			s.Phase = CorrectAndWaitNext
			s.Revealed = true
			return s, []Effect{record, ShowFeedback{Feedback: FeedbackCorrect}}
		case s.Attempt < s.MaxAttempts:
			s.Phase = AwaitingResponse
			s.Attempt++
			return s, []Effect{record, ShowFeedback{Feedback: FeedbackTryAgain}}
		default:
			s.Phase = RevealAndWaitNext
			s.Attempt = s.MaxAttempts + 1
			s.Revealed = true
			return s, []Effect{record, ShowFeedback{Feedback: FeedbackReveal}}
		}

	case EventScoringFailed:
		if s.Phase != ScoringResponse || ev.Turn != s.Turn {
			return s, nil
		}
		s.Phase = AwaitingResponse
		return s, nil

	case EventNext:
		if s.Phase != CorrectAndWaitNext && s.Phase != RevealAndWaitNext {
			return s, nil
		}
		next := State{
			Phase:       LoadingSentence,
			MaxAttempts: s.MaxAttempts,
			Turn:        s.Turn + 1,
		}
		return next, []Effect{CancelPlayback{}, RequestSentence{Turn: next.Turn}}

	case EventEnd:
		if !s.Active() {
			return s, nil
		}
		return State{Phase: Ended, Turn: s.Turn + 1}, []Effect{CancelPlayback{}, CancelWork{}, PersistSession{}}
	}
	return s, nil
}
