package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ronaldomelofz/conversoraudio/internal/models"
)

func main() {
	var (
		variant = flag.String("variant", "base", "model variant to download (tiny|base|small|medium|large)")
		dir     = flag.String("dir", "models", "directory where the ggml weights will be stored")
	)
	flag.Parse()

	if strings.TrimSpace(*dir) == "" {
		fmt.Fprintln(os.Stderr, "download_model: --dir must not be empty")
		os.Exit(2)
	}
	if !models.IsValid(*variant) {
		fmt.Fprintf(os.Stderr, "download_model: unknown variant %q (supported: %v)\n", *variant, models.Names())
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	manager, err := models.NewManager(*dir, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "download_model: init manager: %v\n", err)
		os.Exit(1)
	}

	path, err := manager.Ensure(ctx, *variant)
	if err != nil {
		fmt.Fprintf(os.Stderr, "download_model: ensure variant %q: %v\n", *variant, err)
		os.Exit(1)
	}

	fmt.Printf("Model %q ready at %s\n", *variant, path)
}
