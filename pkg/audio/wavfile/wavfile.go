// Package wavfile implements the audio device seams on top of WAV files and
// external command-line tools (arecord, sox, afplay, ...).
//
// Playback writes each clip to a WAV file and either hands it to a player
// command or, when no command is configured, waits for the clip's duration so
// that usage accounting still sees realistic timings. Recording runs a capture
// command that writes a WAV file and stops it with SIGINT.
package wavfile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/hearcoach/pkg/audio"
)

// filePlaceholder is replaced by the WAV path in command arguments. When no
// argument contains it, the path is appended as the final argument.
const filePlaceholder = "{file}"

// stopGrace bounds how long a capture command may take to exit after SIGINT.
const stopGrace = 3 * time.Second

// Compile-time interface assertions.
var (
	_ audio.Player   = (*Player)(nil)
	_ audio.Recorder = (*Recorder)(nil)
	_ audio.Recorder = (*FileRecorder)(nil)
)

// expandArgs substitutes path into args.
func expandArgs(args []string, path string) []string {
	out := make([]string, 0, len(args)+1)
	found := false
	for _, a := range args {
		if strings.Contains(a, filePlaceholder) {
			found = true
			a = strings.ReplaceAll(a, filePlaceholder, path)
		}
		out = append(out, a)
	}
	if !found {
		out = append(out, path)
	}
	return out
}

// ─── Player ──────────────────────────────────────────────────────────────────

// Player writes clips to dir and plays them with an optional command.
type Player struct {
	dir     string
	command []string
	seq     atomic.Uint64
	keep    bool
}

// PlayerOption configures a [Player].
type PlayerOption func(*Player)

// WithPlayCommand sets the command used to play a WAV file, e.g.
// []string{"aplay", "-q"}.
func WithPlayCommand(command []string) PlayerOption {
	return func(p *Player) { p.command = command }
}

// WithKeepFiles keeps played WAV files on disk instead of removing them.
func WithKeepFiles(keep bool) PlayerOption {
	return func(p *Player) { p.keep = keep }
}

// NewPlayer creates a Player that stages WAV files in dir.
func NewPlayer(dir string, opts ...PlayerOption) (*Player, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("wavfile: create playback dir: %w", err)
	}
	p := &Player{dir: dir}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Play implements [audio.Player].
func (p *Player) Play(ctx context.Context, clip audio.Clip) error {
	path := filepath.Join(p.dir, fmt.Sprintf("playback-%06d.wav", p.seq.Add(1)))
	if err := os.WriteFile(path, audio.EncodeWAV(clip), 0o644); err != nil {
		return fmt.Errorf("wavfile: write %s: %w", path, err)
	}
	if !p.keep {
		defer os.Remove(path)
	}

	if len(p.command) == 0 {
		t := time.NewTimer(clip.Duration())
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	args := expandArgs(p.command[1:], path)
	cmd := exec.CommandContext(ctx, p.command[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("wavfile: %s: %w (%s)", p.command[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// ─── Recorder ────────────────────────────────────────────────────────────────

// Recorder captures audio by running a command that writes a WAV file, e.g.
// []string{"arecord", "-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "{file}"}.
type Recorder struct {
	dir     string
	command []string
	target  audio.Format
	seq     atomic.Uint64
}

// NewRecorder returns a Recorder that stages captures in dir and converts
// them to target.
func NewRecorder(dir string, command []string, target audio.Format) (*Recorder, error) {
	if len(command) == 0 {
		return nil, errors.New("wavfile: record command is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("wavfile: create recordings dir: %w", err)
	}
	return &Recorder{dir: dir, command: command, target: target}, nil
}

// Start implements [audio.Recorder]. The capture command outlives ctx; it is
// ended by Stop or Cancel.
func (r *Recorder) Start(_ context.Context) (audio.Recording, error) {
	path := filepath.Join(r.dir, fmt.Sprintf("response-%06d.wav", r.seq.Add(1)))
	cmd := exec.Command(r.command[0], expandArgs(r.command[1:], path)...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("wavfile: start %s: %w", r.command[0], err)
	}
	rec := &commandRecording{cmd: cmd, path: path, target: r.target, done: make(chan error, 1)}
	go func() { rec.done <- cmd.Wait() }()
	slog.Debug("wavfile: recording started", "path", path, "pid", cmd.Process.Pid)
	return rec, nil
}

type commandRecording struct {
	cmd    *exec.Cmd
	path   string
	target audio.Format
	done   chan error
	once   sync.Once
}

// halt interrupts the capture command and waits for it to exit, killing it
// if it ignores the interrupt.
func (c *commandRecording) halt(ctx context.Context) {
	c.once.Do(func() {
		_ = c.cmd.Process.Signal(os.Interrupt)
		t := time.NewTimer(stopGrace)
		defer t.Stop()
		select {
		case <-c.done:
		case <-t.C:
			_ = c.cmd.Process.Kill()
			<-c.done
		case <-ctx.Done():
			_ = c.cmd.Process.Kill()
			<-c.done
		}
	})
}

func (c *commandRecording) Stop(ctx context.Context) (audio.Clip, error) {
	c.halt(ctx)
	defer os.Remove(c.path)
	return readClip(c.path, c.target)
}

func (c *commandRecording) Cancel() {
	c.halt(context.Background())
	_ = os.Remove(c.path)
}

// ─── FileRecorder ────────────────────────────────────────────────────────────

// FileRecorder "records" by reading an existing WAV file chosen when the
// recording is stopped. It lets scripted sessions and terminals without a
// microphone answer by voice.
type FileRecorder struct {
	// Source returns the WAV path to use for the recording being stopped.
	Source func() (string, error)

	// Target is the format clips are converted to.
	Target audio.Format
}

// Start implements [audio.Recorder].
func (f *FileRecorder) Start(_ context.Context) (audio.Recording, error) {
	if f.Source == nil {
		return nil, errors.New("wavfile: file recorder has no source")
	}
	return fileRecording{rec: f}, nil
}

type fileRecording struct{ rec *FileRecorder }

func (f fileRecording) Stop(_ context.Context) (audio.Clip, error) {
	path, err := f.rec.Source()
	if err != nil {
		return audio.Clip{}, fmt.Errorf("wavfile: resolve recording source: %w", err)
	}
	return readClip(path, f.rec.Target)
}

func (fileRecording) Cancel() {}

func readClip(path string, target audio.Format) (audio.Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("wavfile: open %s: %w", path, err)
	}
	defer f.Close()
	clip, err := audio.DecodeWAV(f)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("wavfile: decode %s: %w", path, err)
	}
	if target.SampleRate > 0 {
		clip = audio.Convert(clip, target)
	}
	return clip, nil
}
