package audio

import (
	"log/slog"
	"math"
)

// Convert returns clip in the target format. A clip already in the target
// format is returned unchanged. Sample-rate conversion uses linear
// interpolation and happens before channel conversion so that a stereo source
// headed for mono is only resampled once.
//
// Only mono and stereo are converted between; any other channel layout is
// downmixed by averaging every frame.
func Convert(clip Clip, target Format) Clip {
	if clip.Format() == target {
		return clip
	}
	if len(clip.Data)%bytesPerSample != 0 {
		slog.Warn("audio: odd byte count in PCM data, trailing byte dropped",
			"bytes", len(clip.Data),
			"format", clip.Format().String(),
		)
	}

	channels := max(clip.Channels, 1)
	samples := clip.Samples()

	if clip.SampleRate != target.SampleRate && clip.SampleRate > 0 && target.SampleRate > 0 {
		samples = resample(samples, channels, clip.SampleRate, target.SampleRate)
	}
	if target.Channels > 0 && channels != target.Channels {
		samples = remix(samples, channels, target.Channels)
		channels = target.Channels
	}

	rate := target.SampleRate
	if rate <= 0 {
		rate = clip.SampleRate
	}
	return FromSamples(samples, Format{SampleRate: rate, Channels: channels})
}

// resample converts interleaved samples between rates, channel by channel.
func resample(samples []int16, channels, srcRate, dstRate int) []int16 {
	srcFrames := len(samples) / channels
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}
	out := make([]int16, dstFrames*channels)
	step := float64(srcRate) / float64(dstRate)
	for i := range dstFrames {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)
		next := min(idx+1, srcFrames-1)
		for ch := range channels {
			a := float64(samples[idx*channels+ch])
			b := float64(samples[next*channels+ch])
			out[i*channels+ch] = int16(a + (b-a)*frac)
		}
	}
	return out
}

// remix changes the channel count of interleaved samples. Upmixing copies the
// first channel into every output channel; downmixing averages each frame.
func remix(samples []int16, from, to int) []int16 {
	frames := len(samples) / from
	out := make([]int16, frames*to)
	for i := range frames {
		frame := samples[i*from : (i+1)*from]
		if to > from {
			for ch := range to {
				out[i*to+ch] = frame[min(ch, from-1)]
			}
			continue
		}
		var sum int32
		for _, s := range frame {
			sum += int32(s)
		}
		avg := clampInt16(sum / int32(from))
		for ch := range to {
			out[i*to+ch] = avg
		}
	}
	return out
}

func clampInt16(v int32) int16 {
	return int16(min(max(v, math.MinInt16), math.MaxInt16))
}
