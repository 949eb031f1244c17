// Package pipeline sequences one transcription run: decode, model lookup,
// inference, statistics and artifact writing. It holds no per-run state; the
// model cache is the only persistent state it touches.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ronaldomelofz/conversoraudio/internal/audio"
	"github.com/ronaldomelofz/conversoraudio/internal/ingest"
	"github.com/ronaldomelofz/conversoraudio/internal/modelcache"
	"github.com/ronaldomelofz/conversoraudio/internal/report"
	"github.com/ronaldomelofz/conversoraudio/internal/transcribe"
)

// retryTemperature is the fixed alternate parameter used by the bounded
// inference retry.
const retryTemperature = 0.2

// Request describes one run.
type Request struct {
	Source    *ingest.Source
	Options   transcribe.Options
	Label     string
	OutputDir string
}

// Outcome bundles the result, statistics and artifact path of one run.
type Outcome struct {
	Result       transcribe.Result
	Stats        report.Stats
	ArtifactPath string
}

// Runner drives runs against shared collaborators.
type Runner struct {
	Decoder *audio.Decoder
	Cache   *modelcache.Cache
	Writer  *report.Writer
	Log     *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

// Run executes one request end to end. The first failing stage aborts the
// run; decode scratch files are cleaned up inside the decoder regardless.
func (r *Runner) Run(ctx context.Context, req Request) (*Outcome, error) {
	log := r.logger().With("file", req.Source.Filename, "model", req.Options.Model)

	wave, err := r.Decoder.Decode(ctx, req.Source.Data, req.Source.Ext)
	if err != nil {
		return nil, err
	}
	log.Info("audio decoded", "duration_s", wave.Duration(), "samples", len(wave.Samples))

	eng, err := r.Cache.GetOrLoad(ctx, req.Options.Model)
	if err != nil {
		return nil, err
	}

	// Processing time covers the inference attempts only; decode and
	// ingestion are excluded.
	started := time.Now()
	res, err := transcribe.Invoke(ctx, eng, wave, req.Options)
	if err != nil && errors.Is(err, transcribe.ErrInference) && ctx.Err() == nil {
		// Bounded retry with a fixed alternate temperature. Kept here, not in
		// the invoker, so the policy stays observable and testable.
		retryOpts := req.Options
		retryOpts.Temperature = retryTemperature
		log.Warn("inference failed, retrying with alternate temperature",
			"err", err, "temperature", retryTemperature)
		res, err = transcribe.Invoke(ctx, eng, wave, retryOpts)
	}
	processing := time.Since(started)
	if err != nil {
		return nil, err
	}

	stats := report.ComputeStats(res.Text, wave.Duration(), processing.Seconds())
	log.Info("transcription complete",
		"processing_s", stats.ProcessingTime,
		"speed_ratio", stats.SpeedRatio,
		"language", res.Language,
		"chars", stats.Chars,
	)

	path, err := r.Writer.Write(res, stats, report.RunContext{
		OriginalFile:      req.Source.Filename,
		Label:             req.Label,
		OutputDir:         req.OutputDir,
		Model:             req.Options.Model,
		Timestamp:         time.Now(),
		FileSizeMB:        req.Source.SizeMB(),
		IncludeTimestamps: req.Options.Timestamps,
	})
	if err != nil {
		return nil, err
	}
	log.Info("artifact written", "path", path)

	return &Outcome{Result: res, Stats: stats, ArtifactPath: path}, nil
}
