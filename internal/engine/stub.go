package engine

import (
	"context"
	"fmt"
	"log/slog"
)

// StubEngine produces deterministic transcripts without invoking a model.
type StubEngine struct {
	log     *slog.Logger
	variant string
}

// NewStubEngine returns an Engine that generates placeholder transcripts.
func NewStubEngine(logger *slog.Logger, variant string) *StubEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubEngine{
		log:     logger.With("component", "engine.stub", "model_variant", variant),
		variant: variant,
	}
}

func (e *StubEngine) Transcribe(ctx context.Context, samples []float32, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	duration := float64(len(samples)) / 16000.0
	text := fmt.Sprintf("[stub:%s] %d amostras, %.1fs de audio", e.variant, len(samples), duration)
	e.log.Debug("stub transcript", "samples", len(samples), "language", opts.Language)

	lang := opts.Language
	if lang == "" || lang == "auto" {
		lang = "pt"
	}

	res := Result{Text: text, Language: lang}
	if opts.Timestamps {
		res.Segments = []Segment{{Start: 0, End: duration, Text: text}}
	}
	return res, nil
}

func (e *StubEngine) Close() error { return nil }
