//go:build !whispercpp

package engine

import (
	"context"
	"errors"
)

// ErrWhisperUnavailable indicates the binary was built without the whispercpp tag.
var ErrWhisperUnavailable = errors.New("whisper: native backend not compiled in (build with -tags whispercpp)")

// NativeAvailable reports whether the whisper.cpp backend is compiled in.
func NativeAvailable() bool { return false }

// WhisperEngine is a placeholder that satisfies the Engine interface when the
// native backend is absent.
type WhisperEngine struct{}

// NewWhisperEngine returns an error when the native backend is not built.
func NewWhisperEngine(modelPath string) (*WhisperEngine, error) {
	return nil, ErrWhisperUnavailable
}

func (e *WhisperEngine) Transcribe(ctx context.Context, samples []float32, opts Options) (Result, error) {
	return Result{}, ErrWhisperUnavailable
}

func (e *WhisperEngine) Close() error { return nil }
