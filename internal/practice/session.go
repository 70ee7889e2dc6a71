package practice

import (
	"time"

	"github.com/MrWong99/hearcoach/pkg/types"
)

// Attempt is one scored response to a sentence. Attempts are never mutated
// after creation.
type Attempt struct {
	ID            string                     `json:"id" yaml:"id"`
	SentenceID    string                     `json:"sentenceId" yaml:"sentence_id"`
	SentenceText  string                     `json:"sentenceText" yaml:"sentence_text"`
	Timestamp     time.Time                  `json:"timestamp" yaml:"timestamp"`
	Number        int                        `json:"attemptNumberWithinTurn" yaml:"attempt_number"`
	Mode          ResponseMode               `json:"responseMode" yaml:"response_mode"`
	Correct       bool                       `json:"isCorrect" yaml:"is_correct"`
	Similarity    float64                    `json:"textSimilarity" yaml:"text_similarity"`
	Pronunciation *types.PronunciationScores `json:"pronunciationScores,omitempty" yaml:"pronunciation_scores,omitempty"`
	Transcript    string                     `json:"transcript,omitempty" yaml:"transcript,omitempty"`
	ItemScore     float64                    `json:"itemScore" yaml:"item_score"`
}

// Session is one practice session. The attempt totals are derived from
// Attempts and never stored separately in memory.
type Session struct {
	ID        string    `json:"id" yaml:"id"`
	Language  Language  `json:"language" yaml:"language"`
	StartedAt time.Time `json:"startedAt" yaml:"started_at"`
	EndedAt   time.Time `json:"endedAt,omitzero" yaml:"ended_at,omitempty"`
	Attempts  []Attempt `json:"attempts" yaml:"attempts"`
}

// NewSession starts an empty session.
func NewSession(lang Language, startedAt time.Time) Session {
	return Session{ID: NewID(), Language: lang, StartedAt: startedAt}
}

// TotalAttempts returns len(Attempts).
func (s Session) TotalAttempts() int {
	return len(s.Attempts)
}

// CorrectAttempts returns how many attempts were judged correct.
func (s Session) CorrectAttempts() int {
	n := 0
	for _, a := range s.Attempts {
		if a.Correct {
			n++
		}
	}
	return n
}

// AverageScore returns the unweighted mean item score, or 0 for a session
// without attempts.
func (s Session) AverageScore() float64 {
	if len(s.Attempts) == 0 {
		return 0
	}
	var sum float64
	for _, a := range s.Attempts {
		sum += a.ItemScore
	}
	return sum / float64(len(s.Attempts))
}

// Duration returns EndedAt - StartedAt, or 0 while the session is open.
func (s Session) Duration() time.Duration {
	if s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Clone returns a deep copy whose attempt slice can be appended to without
// affecting s.
func (s Session) Clone() Session {
	c := s
	c.Attempts = make([]Attempt, len(s.Attempts))
	copy(c.Attempts, s.Attempts)
	return c
}
