// Package transcribe maps run options onto an engine invocation and shapes
// the structured result.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ronaldomelofz/conversoraudio/internal/audio"
	"github.com/ronaldomelofz/conversoraudio/internal/engine"
)

// ErrInference wraps any failure raised by the underlying model. It is never
// retried here; retry policy lives in the pipeline.
var ErrInference = errors.New("transcribe: inference failed")

// Options is the normalized per-run option set. Immutable per run.
type Options struct {
	// Model is the variant name (tiny, base, small, medium, large).
	Model string
	// Language is an ISO code, or "auto"/"auto-detect" for detection.
	Language string
	// Timestamps requests segment timing data.
	Timestamps bool
	// Temperature is passed through to the model unchanged.
	Temperature float32
}

// Result is the structured transcription for one run. Segments keep the
// model's original order.
type Result struct {
	Text     string
	Segments []engine.Segment
	Language string
}

// NormalizeLanguage maps the auto-detect spellings onto the engine's "auto"
// hint; anything else passes through verbatim.
func NormalizeLanguage(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "", "auto", "auto-detect":
		return "auto"
	default:
		return strings.TrimSpace(lang)
	}
}

// Invoke runs the engine over the waveform with the given options.
func Invoke(ctx context.Context, eng engine.Engine, w *audio.Waveform, opts Options) (Result, error) {
	res, err := eng.Transcribe(ctx, w.Samples, engine.Options{
		Language:    NormalizeLanguage(opts.Language),
		Timestamps:  opts.Timestamps,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInference, err)
	}

	out := Result{
		Text:     strings.TrimSpace(res.Text),
		Language: res.Language,
	}
	if opts.Timestamps {
		out.Segments = res.Segments
	}
	if out.Language == "" || out.Language == "auto" {
		out.Language = "desconhecido"
	}
	return out, nil
}
