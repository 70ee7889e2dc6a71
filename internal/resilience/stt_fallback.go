package resilience

import (
	"context"

	"github.com/MrWong99/hearcoach/pkg/audio"
	"github.com/MrWong99/hearcoach/pkg/provider/stt"
	"github.com/MrWong99/hearcoach/pkg/types"
)

// STTFallback implements [stt.Provider] with failover across several speech
// recognisers, e.g. Deepgram first and a local whisper.cpp server second.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback returns an empty STTFallback; register recognisers with Add.
func NewSTTFallback(cfg FallbackConfig) *STTFallback {
	return &STTFallback{group: NewFallbackGroup[stt.Provider](cfg)}
}

// Add registers a recogniser. The first one added is the primary.
func (f *STTFallback) Add(name string, p stt.Provider) {
	f.group.Add(name, p)
}

// Transcribe recognises clip with the first healthy recogniser.
func (f *STTFallback) Transcribe(ctx context.Context, clip audio.Clip, language string) (types.Transcript, error) {
	return ExecuteWithResult(ctx, f.group, func(ctx context.Context, p stt.Provider) (types.Transcript, error) {
		return p.Transcribe(ctx, clip, language)
	})
}
