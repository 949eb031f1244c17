package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ronaldomelofz/conversoraudio/internal/models"
)

// FactoryConfig selects and configures a backend.
type FactoryConfig struct {
	// Backend is one of "whisper", "remote" or "stub"; empty means "whisper".
	Backend string
	// RemoteURL is the websocket server address for the remote backend.
	RemoteURL string
	// Manager resolves and downloads model weights for the whisper backend.
	Manager *models.Manager
	Log     *slog.Logger
}

// Loader returns a per-variant constructor suitable for a model cache: each
// call loads one engine for the requested variant.
func (c FactoryConfig) Loader() func(ctx context.Context, variant string) (Engine, error) {
	logger := c.Log
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, variant string) (Engine, error) {
		if !models.IsValid(variant) {
			return nil, fmt.Errorf("engine: unknown model variant %q", variant)
		}
		switch c.Backend {
		case "stub":
			logger.Warn("stub engine selected by configuration", "model_variant", variant)
			return NewStubEngine(logger, variant), nil
		case "remote":
			return NewRemoteEngine(c.RemoteURL, variant)
		case "whisper", "":
			if c.Manager == nil {
				return nil, fmt.Errorf("engine: whisper backend requires a model manager")
			}
			path, err := c.Manager.Ensure(ctx, variant)
			if err != nil {
				return nil, err
			}
			eng, err := NewWhisperEngine(path)
			if err != nil {
				return nil, err
			}
			logger.Info("whisper engine ready", "model_variant", variant, "model_path", path)
			return eng, nil
		default:
			return nil, fmt.Errorf("engine: unknown backend %q (supported: whisper, remote, stub)", c.Backend)
		}
	}
}
