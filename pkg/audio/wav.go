package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrUnsupportedWAV is returned by [DecodeWAV] for WAV files that are not
// 16-bit integer PCM.
var ErrUnsupportedWAV = errors.New("audio: unsupported WAV encoding (want 16-bit PCM)")

// EncodeWAV wraps the clip in a canonical 44-byte RIFF/WAVE header.
func EncodeWAV(clip Clip) []byte {
	channels := max(clip.Channels, 1)
	blockAlign := channels * bytesPerSample
	size := len(clip.Data)

	var buf bytes.Buffer
	buf.Grow(44 + size)
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+size))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, struct {
		ChunkSize     uint32
		AudioFormat   uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
	}{
		ChunkSize:     16,
		AudioFormat:   1,
		Channels:      uint16(channels),
		SampleRate:    uint32(clip.SampleRate),
		ByteRate:      uint32(clip.SampleRate * blockAlign),
		BlockAlign:    uint16(blockAlign),
		BitsPerSample: 8 * bytesPerSample,
	})

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(size))
	buf.Write(clip.Data)
	return buf.Bytes()
}

// DecodeWAV reads a RIFF/WAVE stream holding 16-bit PCM. Chunks other than
// "fmt " and "data" (LIST, fact, ...) are skipped.
func DecodeWAV(r io.Reader) (Clip, error) {
	var riff struct {
		ID   [4]byte
		Size uint32
		Wave [4]byte
	}
	if err := binary.Read(r, binary.LittleEndian, &riff); err != nil {
		return Clip{}, fmt.Errorf("audio: read RIFF header: %w", err)
	}
	if string(riff.ID[:]) != "RIFF" || string(riff.Wave[:]) != "WAVE" {
		return Clip{}, errors.New("audio: not a RIFF/WAVE stream")
	}

	var (
		clip    Clip
		haveFmt bool
	)
	for {
		var hdr struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
			if errors.Is(err, io.EOF) {
				return Clip{}, errors.New("audio: WAV stream has no data chunk")
			}
			return Clip{}, fmt.Errorf("audio: read chunk header: %w", err)
		}

		switch string(hdr.ID[:]) {
		case "fmt ":
			if hdr.Size < 16 {
				return Clip{}, fmt.Errorf("audio: fmt chunk too short (%d bytes)", hdr.Size)
			}
			body := make([]byte, hdr.Size+hdr.Size%2)
			if _, err := io.ReadFull(r, body); err != nil {
				return Clip{}, fmt.Errorf("audio: read fmt chunk: %w", err)
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			bits := binary.LittleEndian.Uint16(body[14:16])
			// 0xFFFE is WAVE_FORMAT_EXTENSIBLE, which wraps plain PCM.
			if (format != 1 && format != 0xFFFE) || bits != 16 {
				return Clip{}, ErrUnsupportedWAV
			}
			clip.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			haveFmt = true

		case "data":
			if !haveFmt {
				return Clip{}, errors.New("audio: data chunk before fmt chunk")
			}
			data, err := io.ReadAll(io.LimitReader(r, int64(hdr.Size)))
			if err != nil {
				return Clip{}, fmt.Errorf("audio: read data chunk: %w", err)
			}
			// Recorders killed mid-write leave a truncated data chunk; keep
			// whatever whole samples arrived.
			clip.Data = data[:len(data)-len(data)%bytesPerSample]
			return clip, nil

		default:
			if _, err := io.CopyN(io.Discard, r, int64(hdr.Size+hdr.Size%2)); err != nil {
				return Clip{}, fmt.Errorf("audio: skip %q chunk: %w", hdr.ID[:], err)
			}
		}
	}
}
