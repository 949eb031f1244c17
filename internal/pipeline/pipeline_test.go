package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/ronaldomelofz/conversoraudio/internal/audio"
	"github.com/ronaldomelofz/conversoraudio/internal/engine"
	"github.com/ronaldomelofz/conversoraudio/internal/ingest"
	"github.com/ronaldomelofz/conversoraudio/internal/modelcache"
	"github.com/ronaldomelofz/conversoraudio/internal/report"
	"github.com/ronaldomelofz/conversoraudio/internal/transcribe"
)

func makeWAVSource(t *testing.T, seconds float64) *ingest.Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, audio.SampleRate, 16, 1, 1)
	n := int(seconds * float64(audio.SampleRate))
	data := make([]int, n)
	for i := range data {
		data[i] = int(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(audio.SampleRate)))
	}
	if err := enc.Write(&goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: audio.SampleRate},
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	src, err := ingest.Validator{}.FromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	return src
}

func stubRunner(t *testing.T) *Runner {
	t.Helper()
	cache := modelcache.New(func(ctx context.Context, variant string) (engine.Engine, error) {
		return engine.NewStubEngine(nil, variant), nil
	}, nil)
	t.Cleanup(func() { cache.Close() })
	return &Runner{
		Decoder: &audio.Decoder{},
		Cache:   cache,
		Writer:  &report.Writer{},
	}
}

func TestRunEndToEnd(t *testing.T) {
	const seconds = 2.0
	outDir := t.TempDir()
	runner := stubRunner(t)

	out, err := runner.Run(context.Background(), Request{
		Source:    makeWAVSource(t, seconds),
		Options:   transcribe.Options{Model: "tiny", Language: "pt", Timestamps: true},
		OutputDir: outDir,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if math.Abs(out.Stats.AudioDuration-seconds) > 0.01 {
		t.Errorf("expected audio duration %.2f, got %.2f", seconds, out.Stats.AudioDuration)
	}
	if out.Result.Text == "" {
		t.Error("expected non-empty transcript")
	}
	if filepath.Base(out.ArtifactPath) != "sample_transcricao.txt" {
		t.Errorf("unexpected artifact name %s", filepath.Base(out.ArtifactPath))
	}

	raw, err := os.ReadFile(out.ArtifactPath)
	if err != nil {
		t.Fatal(err)
	}
	content := string(raw)
	if !strings.Contains(content, "Modelo Whisper: tiny") {
		t.Error("report missing model header")
	}
	if !strings.Contains(content, "TRANSCRIÇÃO COMPLETA:") {
		t.Error("report missing transcript section")
	}
}

func TestRunSecondArtifactSuffixed(t *testing.T) {
	outDir := t.TempDir()
	runner := stubRunner(t)
	src := makeWAVSource(t, 1)
	req := Request{
		Source:    src,
		Options:   transcribe.Options{Model: "tiny"},
		OutputDir: outDir,
	}

	first, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	firstContent, err := os.ReadFile(first.ArtifactPath)
	if err != nil {
		t.Fatal(err)
	}

	second, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(second.ArtifactPath) != "sample_transcricao_1.txt" {
		t.Errorf("expected _1 suffix, got %s", filepath.Base(second.ArtifactPath))
	}

	after, err := os.ReadFile(first.ArtifactPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(firstContent) {
		t.Error("first artifact modified by second run")
	}
}

// flakyEngine fails until attempts reaches failures, recording the options of
// each call.
type flakyEngine struct {
	failures int
	calls    []engine.Options
}

func (e *flakyEngine) Transcribe(ctx context.Context, samples []float32, opts engine.Options) (engine.Result, error) {
	e.calls = append(e.calls, opts)
	if len(e.calls) <= e.failures {
		return engine.Result{}, fmt.Errorf("transient inference failure")
	}
	return engine.Result{Text: "recovered", Language: "pt"}, nil
}

func (e *flakyEngine) Close() error { return nil }

func TestRunRetriesOnceWithAlternateTemperature(t *testing.T) {
	flaky := &flakyEngine{failures: 1}
	cache := modelcache.New(func(ctx context.Context, variant string) (engine.Engine, error) {
		return flaky, nil
	}, nil)
	runner := &Runner{
		Decoder: &audio.Decoder{},
		Cache:   cache,
		Writer:  &report.Writer{},
	}

	out, err := runner.Run(context.Background(), Request{
		Source:    makeWAVSource(t, 1),
		Options:   transcribe.Options{Model: "tiny", Temperature: 0},
		OutputDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if out.Result.Text != "recovered" {
		t.Errorf("unexpected text %q", out.Result.Text)
	}
	if len(flaky.calls) != 2 {
		t.Fatalf("expected 2 inference attempts, got %d", len(flaky.calls))
	}
	if flaky.calls[1].Temperature != retryTemperature {
		t.Errorf("expected retry temperature %v, got %v", retryTemperature, flaky.calls[1].Temperature)
	}
}

func TestRunGivesUpAfterRetry(t *testing.T) {
	flaky := &flakyEngine{failures: 2}
	cache := modelcache.New(func(ctx context.Context, variant string) (engine.Engine, error) {
		return flaky, nil
	}, nil)
	runner := &Runner{
		Decoder: &audio.Decoder{},
		Cache:   cache,
		Writer:  &report.Writer{},
	}

	_, err := runner.Run(context.Background(), Request{
		Source:    makeWAVSource(t, 1),
		Options:   transcribe.Options{Model: "tiny"},
		OutputDir: t.TempDir(),
	})
	if !errors.Is(err, transcribe.ErrInference) {
		t.Fatalf("expected ErrInference after exhausted retry, got %v", err)
	}
	if len(flaky.calls) != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", len(flaky.calls))
	}
}

func TestRunPropagatesDecodeFailure(t *testing.T) {
	runner := stubRunner(t)
	runner.Decoder = &audio.Decoder{FFmpegPath: "ffmpeg-missing-binary"}

	_, err := runner.Run(context.Background(), Request{
		Source:    &ingest.Source{Data: []byte("not audio"), Filename: "x.mp3", Ext: ".mp3"},
		Options:   transcribe.Options{Model: "tiny"},
		OutputDir: t.TempDir(),
	})
	if !errors.Is(err, audio.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}
