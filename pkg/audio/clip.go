// Package audio holds the audio value types and device seams used by a
// practice session: recorded and synthesised clips, WAV encoding, PCM format
// conversion, and the Recorder / Player / Speaker capabilities.
//
// All PCM in this package is signed 16-bit little-endian, interleaved when
// there is more than one channel.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// bytesPerSample is the size of one int16 PCM sample.
const bytesPerSample = 2

// Format describes the sample rate and channel count of PCM audio.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns a human-readable form, e.g. "16000Hz mono".
func (f Format) String() string {
	switch f.Channels {
	case 1:
		return fmt.Sprintf("%dHz mono", f.SampleRate)
	case 2:
		return fmt.Sprintf("%dHz stereo", f.SampleRate)
	default:
		return fmt.Sprintf("%dHz %dch", f.SampleRate, f.Channels)
	}
}

// Clip is a complete piece of PCM audio: one recorded response or one
// synthesised sentence.
type Clip struct {
	// Data is little-endian int16 PCM.
	Data []byte

	// SampleRate in Hz.
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int
}

// Format returns the clip's sample rate and channel count.
func (c Clip) Format() Format {
	return Format{SampleRate: c.SampleRate, Channels: c.Channels}
}

// Empty reports whether the clip holds no samples.
func (c Clip) Empty() bool {
	return len(c.Data) < bytesPerSample
}

// Frames returns the number of sample frames (one sample per channel).
func (c Clip) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Data) / (bytesPerSample * c.Channels)
}

// Duration returns the playback length of the clip.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// Samples decodes the PCM payload into int16 samples. A trailing odd byte is
// ignored.
func (c Clip) Samples() []int16 {
	out := make([]int16, len(c.Data)/bytesPerSample)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(c.Data[i*2:]))
	}
	return out
}

// FromSamples builds a clip from int16 samples.
func FromSamples(samples []int16, f Format) Clip {
	data := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return Clip{Data: data, SampleRate: f.SampleRate, Channels: f.Channels}
}

// FrameLevels splits a mono view of the clip into windows of the given length
// and returns the RMS level of each window, normalised to 0–1.
func (c Clip) FrameLevels(window time.Duration) []float64 {
	mono := c
	if c.Channels > 1 {
		mono = Convert(c, Format{SampleRate: c.SampleRate, Channels: 1})
	}
	samples := mono.Samples()
	size := int(int64(mono.SampleRate) * int64(window) / int64(time.Second))
	if size <= 0 || len(samples) == 0 {
		return nil
	}
	levels := make([]float64, 0, len(samples)/size+1)
	for start := 0; start < len(samples); start += size {
		end := min(start+size, len(samples))
		levels = append(levels, rms(samples[start:end])/math.MaxInt16)
	}
	return levels
}

func rms(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
