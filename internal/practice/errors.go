package practice

import (
	"errors"
	"fmt"
)

// FailureKind classifies errors that cross the session-engine boundary.
type FailureKind int

const (
	// GenerationFailure: network, auth or quota problems while producing a
	// sentence. Always recovered by falling back to offline generation.
	GenerationFailure FailureKind = iota + 1

	// CaptureFailure: the microphone could not be opened or the recording
	// failed. The turn is not advanced.
	CaptureFailure

	// RecognitionFailure: speech recognition or pronunciation rating failed
	// or timed out. The turn is not scored and may be retried.
	RecognitionFailure

	// ConfigurationFailure: a provider is misconfigured (for example missing
	// credentials). Reported to whoever initiated the configuration action.
	ConfigurationFailure
)

// String returns the name of the kind.
func (k FailureKind) String() string {
	switch k {
	case GenerationFailure:
		return "generation failure"
	case CaptureFailure:
		return "capture failure"
	case RecognitionFailure:
		return "recognition failure"
	case ConfigurationFailure:
		return "configuration failure"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// Failure wraps a provider error with its category and the operation that
// produced it.
type Failure struct {
	Kind FailureKind
	Op   string
	Err  error
}

// Error implements error.
func (f *Failure) Error() string {
	if f.Op == "" {
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("%s: %s: %v", f.Kind, f.Op, f.Err)
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error { return f.Err }

// Retryable reports whether the user may simply try the same action again.
func (f *Failure) Retryable() bool {
	return f.Kind == CaptureFailure || f.Kind == RecognitionFailure
}

// Fail builds a *Failure. A nil err yields nil.
func Fail(kind FailureKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Failure{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether err wraps a *Failure of the given kind.
func IsKind(err error, kind FailureKind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == kind
}
