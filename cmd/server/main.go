package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"

	"github.com/ronaldomelofz/conversoraudio/internal/audio"
	"github.com/ronaldomelofz/conversoraudio/internal/config"
	"github.com/ronaldomelofz/conversoraudio/internal/engine"
	"github.com/ronaldomelofz/conversoraudio/internal/metrics"
	"github.com/ronaldomelofz/conversoraudio/internal/modelcache"
	"github.com/ronaldomelofz/conversoraudio/internal/models"
	"github.com/ronaldomelofz/conversoraudio/internal/pipeline"
	"github.com/ronaldomelofz/conversoraudio/internal/report"
	"github.com/ronaldomelofz/conversoraudio/internal/server"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "config.yaml", "Configuration file path")
	flag.Parse()

	// No .env file is fine; environment variables still apply.
	_ = godotenv.Load()

	cfg, err := config.Loader{Path: configFile}.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	manager, err := models.NewManager(cfg.Models.Dir, logger)
	if err != nil {
		logger.Error("failed to init model manager", "err", err)
		os.Exit(1)
	}

	factory := engine.FactoryConfig{
		Backend:   cfg.Engine.Backend,
		RemoteURL: cfg.Engine.RemoteURL,
		Manager:   manager,
		Log:       logger,
	}
	cache := modelcache.New(factory.Loader(), logger)
	defer cache.Close()

	for _, variant := range cfg.Models.Preload {
		if _, err := cache.GetOrLoad(context.Background(), variant); err != nil {
			logger.Warn("model preload failed", "model_variant", variant, "err", err)
		}
	}

	var results *server.ResultCache
	if cfg.Cache.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		results = server.NewResultCache(client, cfg.Cache.Prefix,
			time.Duration(cfg.Cache.TTLMinutes)*time.Minute, logger)
		logger.Info("result cache enabled", "addr", cfg.Cache.RedisAddr)
	}

	runner := &pipeline.Runner{
		Decoder: &audio.Decoder{Log: logger},
		Cache:   cache,
		Writer:  &report.Writer{},
		Log:     logger,
	}

	srv := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		MaxUploadBytes:  cfg.MaxUploadBytes(),
		DefaultModel:    cfg.Models.Default,
		DefaultLanguage: cfg.Transcription.Language,
		OutputDir:       cfg.Transcription.OutputDir,
	}, runner, cache, results, metrics.NewRecorder(), logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	if err := srv.Stop(); err != nil {
		logger.Error("shutdown error", "err", err)
	}
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
