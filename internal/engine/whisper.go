//go:build whispercpp

package engine

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// NativeAvailable reports whether the whisper.cpp backend is compiled in.
func NativeAvailable() bool { return true }

// WhisperEngine runs whisper.cpp through its Go bindings. The model is loaded
// once and shared; inference calls are serialized on a per-call context.
type WhisperEngine struct {
	mu    sync.Mutex
	model whisper.Model
}

// NewWhisperEngine loads a ggml model from disk.
func NewWhisperEngine(modelPath string) (*WhisperEngine, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("whisper: model path required")
	}
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	return &WhisperEngine{model: model}, nil
}

func (e *WhisperEngine) Transcribe(ctx context.Context, samples []float32, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	wctx, err := e.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("whisper: create context: %w", err)
	}

	wctx.SetTranslate(false)
	wctx.SetTemperature(opts.Temperature)
	wctx.SetTokenTimestamps(opts.Timestamps)

	lang := strings.TrimSpace(opts.Language)
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return Result{}, fmt.Errorf("whisper: set language %q: %w", lang, err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("whisper: process: %w", err)
	}

	var (
		builder  strings.Builder
		segments []Segment
	)
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("whisper: next segment: %w", err)
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(text)
		if opts.Timestamps {
			segments = append(segments, Segment{
				Start: seg.Start.Seconds(),
				End:   seg.End.Seconds(),
				Text:  text,
			})
		}
	}

	detected := wctx.DetectedLanguage()
	if detected == "" {
		detected = lang
	}

	return Result{
		Text:     builder.String(),
		Segments: segments,
		Language: detected,
	}, nil
}

func (e *WhisperEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model != nil {
		err := e.model.Close()
		e.model = nil
		return err
	}
	return nil
}
