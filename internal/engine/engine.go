// Package engine provides the speech-to-text backends.
//
// Supported backends:
//   - whisper: local whisper.cpp via Go bindings (build tag whispercpp)
//   - remote:  a websocket transcription server
//   - stub:    deterministic transcripts without inference, for tests and
//     deployments without model weights
package engine

import "context"

// Options configures a single transcription call.
type Options struct {
	// Language is an ISO code hint, or "auto" for detection by the model.
	Language string
	// Timestamps requests segment (and, where supported, word) timing data.
	Timestamps bool
	// Temperature controls decoding determinism; passed through unchanged.
	Temperature float32
}

// Segment is a contiguous span of transcribed speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is a structured transcription produced by an Engine.
type Result struct {
	Text     string
	Segments []Segment
	Language string
}

// Engine converts a normalized waveform into text.
type Engine interface {
	// Transcribe processes mono 16 kHz float32 samples.
	Transcribe(ctx context.Context, samples []float32, opts Options) (Result, error)
	// Close releases backend resources.
	Close() error
}
