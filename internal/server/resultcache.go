package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/ronaldomelofz/conversoraudio/internal/engine"
	"github.com/ronaldomelofz/conversoraudio/internal/pipeline"
	"github.com/ronaldomelofz/conversoraudio/internal/report"
	"github.com/ronaldomelofz/conversoraudio/internal/transcribe"
)

// ResultCache stores completed runs in Redis keyed by payload digest so
// repeated uploads of the same audio skip inference. A nil *ResultCache is a
// disabled cache; all methods are nil-safe.
type ResultCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *slog.Logger
}

// NewResultCache wraps an existing Redis client.
func NewResultCache(client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *ResultCache {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = "conversor:result:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ResultCache{client: client, prefix: prefix, ttl: ttl, log: logger.With("component", "resultcache")}
}

// CachedRun is the serialized form of one completed run.
type CachedRun struct {
	Text           string           `json:"text"`
	Segments       []engine.Segment `json:"segments,omitempty"`
	Language       string           `json:"language"`
	AudioDuration  float64          `json:"audio_duration"`
	ProcessingTime float64          `json:"processing_time"`
	SpeedRatio     float64          `json:"speed_ratio"`
	Chars          int              `json:"chars"`
	Words          int              `json:"words"`
	ArtifactPath   string           `json:"artifact_path"`
}

func fromOutcome(o *pipeline.Outcome) *CachedRun {
	return &CachedRun{
		Text:           o.Result.Text,
		Segments:       o.Result.Segments,
		Language:       o.Result.Language,
		AudioDuration:  o.Stats.AudioDuration,
		ProcessingTime: o.Stats.ProcessingTime,
		SpeedRatio:     o.Stats.SpeedRatio,
		Chars:          o.Stats.Chars,
		Words:          o.Stats.Words,
		ArtifactPath:   o.ArtifactPath,
	}
}

func (r *CachedRun) outcome() *pipeline.Outcome {
	return &pipeline.Outcome{
		Result: transcribe.Result{
			Text:     r.Text,
			Segments: r.Segments,
			Language: r.Language,
		},
		Stats: report.Stats{
			AudioDuration:  r.AudioDuration,
			ProcessingTime: r.ProcessingTime,
			SpeedRatio:     r.SpeedRatio,
			Chars:          r.Chars,
			Words:          r.Words,
		},
		ArtifactPath: r.ArtifactPath,
	}
}

// CacheKey digests the payload and the options that affect the result.
func CacheKey(data []byte, opts transcribe.Options) string {
	h := sha256.New()
	h.Write(data)
	fmt.Fprintf(h, "|%s|%s|%t|%.2f", opts.Model, transcribe.NormalizeLanguage(opts.Language), opts.Timestamps, opts.Temperature)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a cached run, if present. Cache errors are logged and treated
// as misses.
func (rc *ResultCache) Get(ctx context.Context, key string) (*CachedRun, bool) {
	if rc == nil || rc.client == nil {
		return nil, false
	}
	payload, err := rc.client.Get(ctx, rc.prefix+key).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		rc.log.Warn("result cache get failed", "err", err)
		return nil, false
	}
	var run CachedRun
	if err := json.Unmarshal([]byte(payload), &run); err != nil {
		rc.log.Warn("result cache entry corrupt", "err", err)
		return nil, false
	}
	return &run, true
}

// Put stores a run; failures are logged and otherwise ignored.
func (rc *ResultCache) Put(ctx context.Context, key string, run *CachedRun) {
	if rc == nil || rc.client == nil {
		return
	}
	payload, err := json.Marshal(run)
	if err != nil {
		rc.log.Warn("result cache marshal failed", "err", err)
		return
	}
	if err := rc.client.Set(ctx, rc.prefix+key, payload, rc.ttl).Err(); err != nil {
		rc.log.Warn("result cache set failed", "err", err)
	}
}
