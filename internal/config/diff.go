package config

import "time"

// ConfigDiff lists the changes between two configs that can be applied to
// a running app. Everything else needs a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PracticeChanged is true when any hot-reloadable practice setting
	// differs; Practice then holds the new values.
	PracticeChanged bool
	Practice        PracticeConfig

	DailyGoalChanged bool
	OnlineChanged    bool

	// RestartRequired names changed settings that only take effect after a
	// restart.
	RestartRequired []string
}

// Changed reports whether anything hot-reloadable changed.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.PracticeChanged
}

// Diff compares old and new.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{Practice: new.Practice}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	op, np := old.Practice, new.Practice
	d.DailyGoalChanged = op.DailyGoal != np.DailyGoal
	d.OnlineChanged = op.OnlineGeneration != np.OnlineGeneration
	d.PracticeChanged = op.Language != np.Language ||
		op.Tier != np.Tier ||
		op.MaxAttempts != np.MaxAttempts ||
		op.SpeechRate != np.SpeechRate ||
		op.Pitch != np.Pitch ||
		op.ResponseTimeout != np.ResponseTimeout ||
		op.GenerationTimeout != np.GenerationTimeout ||
		d.DailyGoalChanged || d.OnlineChanged

	restart := []struct {
		name    string
		changed bool
	}{
		{"server.admin_addr", old.Server.AdminAddr != new.Server.AdminAddr},
		{"practice.corpus_path", op.CorpusPath != np.CorpusPath},
		{"practice.chain_walk", op.ChainWalk != np.ChainWalk},
		{"practice.seed", op.Seed != np.Seed},
		{"providers", !providersEqual(old.Providers, new.Providers)},
		{"store", old.Store != new.Store},
		{"audio", !audioEqual(old.Audio, new.Audio)},
	}
	for _, r := range restart {
		if r.changed {
			d.RestartRequired = append(d.RestartRequired, r.name)
		}
	}
	return d
}

func providersEqual(a, b ProvidersConfig) bool {
	if !entryEqual(a.LLM, b.LLM) || !entryEqual(a.STT, b.STT) ||
		!entryEqual(a.TTS, b.TTS) || !entryEqual(a.Pronunciation, b.Pronunciation) {
		return false
	}
	return entriesEqual(a.LLMFallbacks, b.LLMFallbacks) && entriesEqual(a.STTFallbacks, b.STTFallbacks)
}

func entriesEqual(a, b []ProviderEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !entryEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func entryEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	if len(a.Options) != len(b.Options) {
		return false
	}
	for k, v := range a.Options {
		if w, ok := b.Options[k]; !ok || !optionEqual(v, w) {
			return false
		}
	}
	return true
}

// optionEqual compares scalar option values; nested values are treated as
// changed.
func optionEqual(a, b any) bool {
	switch a.(type) {
	case string, bool, int, float64, time.Duration, nil:
		return a == b
	}
	return false
}

func audioEqual(a, b AudioConfig) bool {
	return a.RecordingsDir == b.RecordingsDir &&
		a.SampleRate == b.SampleRate &&
		stringsEqual(a.RecordCommand, b.RecordCommand) &&
		stringsEqual(a.PlayCommand, b.PlayCommand)
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
