package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ronaldomelofz/conversoraudio/internal/audio"
	"github.com/ronaldomelofz/conversoraudio/internal/engine"
	"github.com/ronaldomelofz/conversoraudio/internal/ingest"
	"github.com/ronaldomelofz/conversoraudio/internal/modelcache"
	"github.com/ronaldomelofz/conversoraudio/internal/models"
	"github.com/ronaldomelofz/conversoraudio/internal/pipeline"
	"github.com/ronaldomelofz/conversoraudio/internal/report"
	"github.com/ronaldomelofz/conversoraudio/internal/transcribe"
)

const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorBlue  = "\033[34m"
	colorRed   = "\033[31m"
)

var quiet bool

func info(msg string, a ...any) {
	if quiet {
		return
	}
	fmt.Fprintf(os.Stderr, colorBlue+"[info] "+colorReset+msg+"\n", a...)
}

func ok(msg string, a ...any) {
	if quiet {
		return
	}
	fmt.Fprintf(os.Stderr, colorGreen+"[ok] "+colorReset+msg+"\n", a...)
}

func fail(msg string, a ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[error] "+colorReset+msg+"\n", a...)
}

func main() {
	var (
		inPath       string
		model        string
		label        string
		outDir       string
		language     string
		noTimestamps bool
		temperature  float64
		listModels   bool
		modelsDir    string
		backend      string
		remoteURL    string
	)

	flag.StringVar(&inPath, "file", "", "Audio/video file to transcribe (-f)")
	flag.StringVar(&inPath, "f", "", "Audio/video file to transcribe")
	flag.StringVar(&model, "model", "base", "Whisper model: tiny|base|small|medium|large (-m)")
	flag.StringVar(&model, "m", "base", "Whisper model")
	flag.StringVar(&label, "label", "", "Label to group output artifacts (-l)")
	flag.StringVar(&label, "l", "", "Label to group output artifacts")
	flag.StringVar(&outDir, "out-dir", "transcricoes", "Output directory (-o)")
	flag.StringVar(&outDir, "o", "transcricoes", "Output directory")
	flag.StringVar(&language, "language", "pt", "Audio language code, or 'auto' to detect")
	flag.BoolVar(&noTimestamps, "no-timestamps", false, "Skip the timestamped segment listing")
	flag.Float64Var(&temperature, "temperature", 0.0, "Sampling temperature (0.0-1.0) (-t)")
	flag.Float64Var(&temperature, "t", 0.0, "Sampling temperature")
	flag.BoolVar(&quiet, "quiet", false, "Less output (-q)")
	flag.BoolVar(&quiet, "q", false, "Less output")
	flag.BoolVar(&listModels, "list-models", false, "List available models and exit")
	flag.StringVar(&modelsDir, "models-dir", "models", "Directory holding ggml model weights")
	flag.StringVar(&backend, "backend", "whisper", "Engine backend: whisper|remote|stub")
	flag.StringVar(&remoteURL, "remote-url", "", "Websocket URL for the remote backend")
	flag.Parse()

	if listModels {
		printModels()
		return
	}
	if inPath == "" {
		fail("missing --file/-f audio path")
		flag.Usage()
		os.Exit(1)
	}
	if !models.IsValid(model) {
		fail("unknown model %q (supported: %v)", model, models.Names())
		os.Exit(1)
	}
	if temperature < 0 || temperature > 1 {
		fail("temperature must be in [0.0, 1.0], got %.2f", temperature)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cliLogLevel(),
	}))
	slog.SetDefault(logger)

	if err := run(inPath, model, label, outDir, language, !noTimestamps, float32(temperature), modelsDir, backend, remoteURL, logger); err != nil {
		fail("%v", err)
		os.Exit(1)
	}
}

func run(inPath, model, label, outDir, language string, timestamps bool, temperature float32, modelsDir, backend, remoteURL string, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	info("Validating %s...", inPath)
	src, err := ingest.Validator{}.FromPath(inPath)
	if err != nil {
		return err
	}
	ok("File valid: %.2f MB, format %s", src.SizeMB(), src.Ext)

	manager, err := models.NewManager(modelsDir, logger)
	if err != nil {
		return err
	}
	factory := engine.FactoryConfig{
		Backend:   backend,
		RemoteURL: remoteURL,
		Manager:   manager,
		Log:       logger,
	}
	cache := modelcache.New(factory.Loader(), logger)
	defer cache.Close()

	runner := &pipeline.Runner{
		Decoder: &audio.Decoder{Log: logger},
		Cache:   cache,
		Writer:  &report.Writer{},
		Log:     logger,
	}

	info("Transcribing with model %q...", model)
	out, err := runner.Run(ctx, pipeline.Request{
		Source: src,
		Options: transcribe.Options{
			Model:       model,
			Language:    language,
			Timestamps:  timestamps,
			Temperature: temperature,
		},
		Label:     label,
		OutputDir: outDir,
	})
	if err != nil {
		return err
	}

	ok("Transcription done in %.1fs (%.1fx real time)", out.Stats.ProcessingTime, out.Stats.SpeedRatio)
	ok("Audio: %.1fs, language: %s, %d chars, %d words",
		out.Stats.AudioDuration, out.Result.Language, out.Stats.Chars, out.Stats.Words)
	ok("Wrote %s", out.ArtifactPath)

	if !quiet {
		preview := out.Result.Text
		if len([]rune(preview)) > 300 {
			preview = string([]rune(preview)[:300]) + "..."
		}
		fmt.Println(preview)
	}
	return nil
}

func printModels() {
	fmt.Println("Available Whisper models:")
	for _, v := range models.Manifest {
		fmt.Printf("  %-8s %-10s speed: %-8s accuracy: %s\n", v.Name, v.SizeLabel, v.Speed, v.Accuracy)
	}
	fmt.Println("\nUse 'base' for most cases; 'small' or 'medium' for higher accuracy.")
}

func cliLogLevel() slog.Level {
	if quiet {
		return slog.LevelError
	}
	return slog.LevelWarn
}
