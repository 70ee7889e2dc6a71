package practice

// Topics is the fixed topic set a turn's topic is drawn from.
var Topics = []string{
	"daily life",
	"food",
	"travel",
	"weather",
	"family",
	"work",
	"school",
	"shopping",
	"health",
	"nature",
	"hobbies",
	"city",
}

// LengthForSessions maps the number of completed sessions to the sentence
// length requested for the next turn. Length widens monotonically as the
// user accumulates sessions.
func LengthForSessions(completed int) Length {
	switch {
	case completed < 5:
		return LengthWord
	case completed < 15:
		return LengthShort
	case completed < 30:
		return LengthMedium
	default:
		return LengthLong
	}
}
