// Package audio converts validated audio sources into normalized waveforms.
//
// WAV files already at 16 kHz mono are decoded in-process via go-audio.
// Everything else is converted through ffmpeg into a scratch WAV first.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// SampleRate is the fixed model input rate.
const SampleRate = 16000

// ErrDecode wraps any failure of the underlying decode capability.
// Decode failures are deterministic for a given file and are never retried.
var ErrDecode = errors.New("audio: decode failed")

// Waveform is a mono float32 signal normalized to [-1.0, 1.0].
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the waveform length in seconds.
func (w *Waveform) Duration() float64 {
	if w.SampleRate == 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Decoder produces Waveforms from raw audio bytes.
type Decoder struct {
	// FFmpegPath overrides the ffmpeg binary name; empty means "ffmpeg" on PATH.
	FFmpegPath string
	// ScratchDir holds per-run scratch files; empty means the system temp dir.
	ScratchDir string
	Log        *slog.Logger
}

func (d *Decoder) logger() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

// Decode converts data (with its file extension) into a 16 kHz mono waveform.
// Scratch files are uniquely named per call and removed on every exit path.
func (d *Decoder) Decode(ctx context.Context, data []byte, ext string) (*Waveform, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	if ext == ".wav" {
		if w, err := decodeWAV(data); err == nil {
			return w, nil
		}
		// Wrong rate, multi-channel or non-PCM WAV: fall through to ffmpeg.
	}
	return d.decodeViaFFmpeg(ctx, data, ext)
}

// decodeWAV handles the no-conversion fast path: PCM WAV already at the
// target rate and channel count.
func decodeWAV(data []byte) (*Waveform, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid wav file", ErrDecode)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: non-PCM wav format %d", ErrDecode, dec.WavAudioFormat)
	}
	if buf.Format.SampleRate != SampleRate || buf.Format.NumChannels != 1 {
		return nil, fmt.Errorf("%w: wav is %d Hz / %d ch, want %d Hz mono",
			ErrDecode, buf.Format.SampleRate, buf.Format.NumChannels, SampleRate)
	}
	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	samples := make([]float32, len(buf.Data))
	scale := float32(int(1) << (bitDepth - 1))
	for i, v := range buf.Data {
		samples[i] = clip(float32(v) / scale)
	}
	return &Waveform{Samples: samples, SampleRate: SampleRate}, nil
}

// decodeViaFFmpeg writes the payload to a scratch file, converts it to a
// 16 kHz mono WAV and decodes that.
func (d *Decoder) decodeViaFFmpeg(ctx context.Context, data []byte, ext string) (*Waveform, error) {
	scratchDir := d.ScratchDir
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	id := uuid.New().String()
	inPath := filepath.Join(scratchDir, id+ext)
	outPath := filepath.Join(scratchDir, id+"_16k.wav")

	if err := os.WriteFile(inPath, data, 0644); err != nil {
		return nil, fmt.Errorf("%w: scratch write: %v", ErrDecode, err)
	}
	defer os.Remove(inPath)
	defer os.Remove(outPath)

	ffmpeg := d.FFmpegPath
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, ffmpeg,
		"-y", "-i", inPath,
		"-ac", "1", "-ar", fmt.Sprint(SampleRate),
		"-f", "wav",
		outPath,
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		d.logger().Warn("ffmpeg conversion failed", "ext", ext, "err", err)
		return nil, fmt.Errorf("%w: ffmpeg: %v: %s", ErrDecode, err, lastLine(stderr.String()))
	}

	converted, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read converted wav: %v", ErrDecode, err)
	}
	return decodeWAV(converted)
}

// clip defends against out-of-range samples from lossy codecs.
func clip(v float32) float32 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}

func lastLine(s string) string {
	lines := bytes.Split(bytes.TrimSpace([]byte(s)), []byte("\n"))
	if len(lines) == 0 {
		return ""
	}
	return string(lines[len(lines)-1])
}
