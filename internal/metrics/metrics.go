// Package metrics tracks process-wide transcription counters.
package metrics

import (
	"sync/atomic"
	"time"
)

// Recorder accumulates run totals. All methods are safe for concurrent use.
type Recorder struct {
	requests     atomic.Uint64
	failures     atomic.Uint64
	audioMillis  atomic.Uint64
	invokeMillis atomic.Uint64
	cacheHits    atomic.Uint64
}

// Snapshot is an immutable view of the recorder totals.
type Snapshot struct {
	Requests       uint64  `json:"requests"`
	Failures       uint64  `json:"failures"`
	AudioSeconds   float64 `json:"audio_seconds"`
	ProcessSeconds float64 `json:"processing_seconds"`
	CacheHits      uint64  `json:"cache_hits"`
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordRun accounts one completed transcription run.
func (r *Recorder) RecordRun(audioDuration, processing time.Duration) {
	r.requests.Add(1)
	r.audioMillis.Add(uint64(audioDuration.Milliseconds()))
	r.invokeMillis.Add(uint64(processing.Milliseconds()))
}

// RecordFailure accounts one failed request.
func (r *Recorder) RecordFailure() {
	r.requests.Add(1)
	r.failures.Add(1)
}

// RecordCacheHit accounts a request served from the result cache.
func (r *Recorder) RecordCacheHit() {
	r.requests.Add(1)
	r.cacheHits.Add(1)
}

// Snapshot returns the current totals.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		Requests:       r.requests.Load(),
		Failures:       r.failures.Load(),
		AudioSeconds:   float64(r.audioMillis.Load()) / 1000,
		ProcessSeconds: float64(r.invokeMillis.Load()) / 1000,
		CacheHits:      r.cacheHits.Load(),
	}
}
