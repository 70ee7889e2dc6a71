package scoring

import (
	"math"
	"testing"

	"github.com/MrWong99/hearcoach/pkg/types"
)

var samples = []string{
	"The weather is nice today.",
	"whether is nice today",
	"请把水杯放在桌子上。",
	"请把水杯放在桌子上",
	"hello",
	"Hello, world!",
	"春风拂面，花香四溢。",
	"a",
	"",
	"。！？",
}

func TestClean(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"The weather is nice today.", "theweatherisnicetoday"},
		{"请把水杯放在桌子上。", "请把水杯放在桌子上"},
		{"  Hello,\tWorld!  ", "helloworld"},
		{"“你好”，（朋友）！", "你好朋友"},
		{"it's   a—test…", "itsatest"},
		{"。！？", ""},
	}
	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSimilarity_Identity(t *testing.T) {
	t.Parallel()
	for _, s := range samples {
		if Clean(s) == "" {
			continue
		}
		if got := Similarity(s, s); got != 1 {
			t.Errorf("Similarity(%q, %q) = %v, want 1", s, s, got)
		}
	}
}

func TestSimilarity_EmptyIsZero(t *testing.T) {
	t.Parallel()
	tests := [][2]string{{"", ""}, {"。", "！"}, {"", "hello"}, {"hello", "  "}}
	for _, tt := range tests {
		if got := Similarity(tt[0], tt[1]); got != 0 {
			t.Errorf("Similarity(%q, %q) = %v, want 0", tt[0], tt[1], got)
		}
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	t.Parallel()
	for _, a := range samples {
		for _, b := range samples {
			if ab, ba := Similarity(a, b), Similarity(b, a); ab != ba {
				t.Errorf("Similarity(%q, %q) = %v but reversed = %v", a, b, ab, ba)
			}
		}
	}
}

func TestSimilarity_Range(t *testing.T) {
	t.Parallel()
	for _, a := range samples {
		for _, b := range samples {
			if s := Similarity(a, b); s < 0 || s > 1 {
				t.Errorf("Similarity(%q, %q) = %v, out of [0,1]", a, b, s)
			}
		}
	}
}

func TestSimilarity_KnownDistance(t *testing.T) {
	t.Parallel()
	// kitten → sitting is the textbook distance-3 pair; max length 7.
	want := 1 - 3.0/7.0
	if got := Similarity("kitten", "sitting"); math.Abs(got-want) > 1e-9 {
		t.Errorf("Similarity(kitten, sitting) = %v, want %v", got, want)
	}
	// One substituted character out of nine.
	want = 1 - 1.0/9.0
	if got := Similarity("请把水杯放在桌子上", "请把水杯放在椅子上"); math.Abs(got-want) > 1e-9 {
		t.Errorf("Similarity(zh one substitution) = %v, want %v", got, want)
	}
}

func TestSimilarity_WordsForSentences(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a, b string
		want float64
	}{
		// "the" dropped and "weather" misheard: 2 of 5 words.
		{"The weather is nice today.", "whether is nice today", 0.6},
		{"Good morning.", "good morning", 1},
		{"hello", "hello world", 0.5},
		{"I like green tea.", "I like tea green.", 0.5},
		// Single words are still compared letter by letter.
		{"apple", "aple", 0.8},
	}
	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestJaccard(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a, b string
		want float64
	}{
		{"the cat sat", "the cat sat", 1},
		{"the cat sat", "sat the cat", 1},
		{"The cat.", "the dog", 1.0 / 3.0},
		{"", "anything", 0},
		{"你好", "你们好", 2.0 / 3.0},
	}
	for _, tt := range tests {
		if got := Jaccard(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Jaccard(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestScore_TextThresholdIsStrict(t *testing.T) {
	t.Parallel()
	// 10-rune reference, 2 substitutions → similarity exactly 0.8.
	r := Score("abcdefghij", "abcdefghXY", 1, nil)
	if math.Abs(r.Similarity-0.8) > 1e-9 {
		t.Fatalf("Similarity = %v, want 0.8", r.Similarity)
	}
	if r.Correct {
		t.Error("similarity == 0.80 must not be correct")
	}

	r = Score("abcdefghij", "abcdefghiX", 1, nil)
	if !r.Correct {
		t.Errorf("similarity %v should be correct", r.Similarity)
	}
}

func TestScore_VoiceRequiresAccuracy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		accuracy int
		want     bool
	}{
		{"above", 71, true},
		{"boundary", 70, false},
		{"below", 40, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &types.PronunciationScores{Accuracy: tt.accuracy, Fluency: 90, Completeness: 90, Prosody: 90}
			if got := Score("hello there", "hello there", 1, p).Correct; got != tt.want {
				t.Errorf("Correct = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScore_Fusion(t *testing.T) {
	t.Parallel()
	p := &types.PronunciationScores{Accuracy: 80, Fluency: 60, Completeness: 100, Prosody: 60}
	r := Score("hello", "hello", 1, p)
	// (100 + mean(80,60,100,60)=75) / 2
	if r.ItemScore != 87.5 {
		t.Errorf("ItemScore = %v, want 87.5", r.ItemScore)
	}
}

func TestScore_PenaltyMonotonicAndNonNegative(t *testing.T) {
	t.Parallel()
	pron := []*types.PronunciationScores{nil, {Accuracy: 50, Fluency: 50, Completeness: 50, Prosody: 50}}
	for _, p := range pron {
		prev := math.Inf(1)
		for attempt := 1; attempt <= 15; attempt++ {
			r := Score("The weather is nice today.", "whether is nice today", attempt, p)
			if r.ItemScore > prev {
				t.Errorf("attempt %d: score %v increased from %v", attempt, r.ItemScore, prev)
			}
			if r.ItemScore < 0 {
				t.Errorf("attempt %d: negative score %v", attempt, r.ItemScore)
			}
			prev = r.ItemScore
		}
		if prev != 0 {
			t.Errorf("score after 15 attempts = %v, want clamped 0", prev)
		}
	}
}

func TestScore_Scenarios(t *testing.T) {
	t.Parallel()
	r := Score("请把水杯放在桌子上。", "请把水杯放在桌子上", 1, nil)
	if r.Similarity != 1 || !r.Correct || r.ItemScore != 100 {
		t.Errorf("missing full stop: got %+v, want similarity 1, correct, score 100", r)
	}

	r = Score("The weather is nice today.", "whether is nice today", 2, nil)
	if math.Abs(r.Similarity-0.6) > 1e-9 || r.Correct {
		t.Errorf("weather/whether: got %+v, want similarity 0.6 and incorrect", r)
	}
	if want := 50.0; math.Abs(r.ItemScore-want) > 1e-9 {
		t.Errorf("ItemScore = %v, want %v", r.ItemScore, want)
	}
}

func TestScorer_Options(t *testing.T) {
	t.Parallel()
	s := New(WithThreshold(0.5), WithAttemptPenalty(0), WithMetric(TokenJaccard))
	r := s.Score("sat the cat", "the cat sat", 3, nil)
	if !r.Correct || r.ItemScore != 100 {
		t.Errorf("got %+v, want correct with score 100", r)
	}
}
