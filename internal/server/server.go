// Package server exposes the transcription pipeline over HTTP.
//
// Two request styles are accepted on each POST endpoint: a multipart file
// upload or a JSON body carrying base64 audio. Both are normalized into the
// same internal request before the pipeline runs; only serialization differs
// between the legacy and extended response shapes.
package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ronaldomelofz/conversoraudio/internal/ingest"
	"github.com/ronaldomelofz/conversoraudio/internal/metrics"
	"github.com/ronaldomelofz/conversoraudio/internal/modelcache"
	"github.com/ronaldomelofz/conversoraudio/internal/models"
	"github.com/ronaldomelofz/conversoraudio/internal/pipeline"
	"github.com/ronaldomelofz/conversoraudio/internal/transcribe"
)

// Config carries the service policies.
type Config struct {
	Host            string
	Port            int
	MaxUploadBytes  int64
	DefaultModel    string
	DefaultLanguage string
	OutputDir       string
}

// Server drives the pipeline per request. A failure in one request never
// stops the process or touches the model cache.
type Server struct {
	cfg        Config
	app        *fiber.App
	runner     *pipeline.Runner
	modelCache *modelcache.Cache
	results    *ResultCache
	rec        *metrics.Recorder
	validator  ingest.Validator
	log        *slog.Logger
	started    time.Time
}

// New wires the routes. resultCache may be nil to disable response caching.
func New(cfg Config, runner *pipeline.Runner, modelCache *modelcache.Cache, resultCache *ResultCache, rec *metrics.Recorder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = metrics.NewRecorder()
	}
	app := fiber.New(fiber.Config{
		AppName:               "conversoraudio",
		DisableStartupMessage: true,
		// Headroom over the payload cap so multipart framing never trips the limit first.
		BodyLimit: int(cfg.MaxUploadBytes) + (1 << 20),
	})

	s := &Server{
		cfg:        cfg,
		app:        app,
		runner:     runner,
		modelCache: modelCache,
		results:    resultCache,
		rec:        rec,
		validator:  ingest.Validator{MaxBytes: cfg.MaxUploadBytes},
		log:        logger.With("component", "server"),
		started:    time.Now(),
	}

	app.Post("/transcrever", s.handleLegacy)
	app.Post("/api/v1/transcribe", s.handleTranscribe)
	app.Get("/models", s.handleModels)
	app.Get("/health", s.handleHealth)
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

// Start blocks serving requests until Stop is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.log.Info("HTTP server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Stop gracefully shuts the listener down.
func (s *Server) Stop() error {
	return s.app.Shutdown()
}

// normalized is the single internal request representation produced by the
// alternate payload parsers. Business logic never branches on payload shape
// past this point.
type normalized struct {
	source *ingest.Source
	opts   transcribe.Options
	label  string
}

func (s *Server) handleLegacy(c *fiber.Ctx) error {
	src, err := s.parseLegacyPayload(c)
	if err != nil {
		s.rec.RecordFailure()
		return s.fail(c, err)
	}

	req := normalized{
		source: src,
		opts: transcribe.Options{
			Model:      s.cfg.DefaultModel,
			Language:   s.cfg.DefaultLanguage,
			Timestamps: true,
		},
		label: "api",
	}

	run, err := s.execute(c, req)
	if err != nil {
		s.rec.RecordFailure()
		return s.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"transcription": run.Result.Text,
		"success":       true,
		"metadata": fiber.Map{
			"duration":        run.Stats.AudioDuration,
			"model":           req.opts.Model,
			"language":        run.Result.Language,
			"processing_time": run.Stats.ProcessingTime,
		},
	})
}

func (s *Server) handleTranscribe(c *fiber.Ctx) error {
	req, err := s.parseExtendedPayload(c)
	if err != nil {
		s.rec.RecordFailure()
		return s.fail(c, err)
	}

	run, err := s.execute(c, req)
	if err != nil {
		s.rec.RecordFailure()
		return s.fail(c, err)
	}

	data := fiber.Map{
		"transcription": run.Result.Text,
		"metadata": fiber.Map{
			"filename":          req.source.Filename,
			"duration_seconds":  run.Stats.AudioDuration,
			"model_used":        req.opts.Model,
			"language_detected": run.Result.Language,
			"processing_time":   run.Stats.ProcessingTime,
			"characters":        run.Stats.Chars,
			"words":             run.Stats.Words,
			"speed_ratio":       run.Stats.SpeedRatio,
		},
	}
	if req.opts.Timestamps && len(run.Result.Segments) > 0 {
		data["segments"] = run.Result.Segments
	}
	return c.JSON(fiber.Map{"success": true, "data": data})
}

// execute consults the result cache, then drives the pipeline.
func (s *Server) execute(c *fiber.Ctx, req normalized) (*pipeline.Outcome, error) {
	key := CacheKey(req.source.Data, req.opts)
	if cached, ok := s.results.Get(c.Context(), key); ok {
		s.rec.RecordCacheHit()
		s.log.Info("result cache hit", "file", req.source.Filename)
		return cached.outcome(), nil
	}

	run, err := s.runner.Run(c.Context(), pipeline.Request{
		Source:    req.source,
		Options:   req.opts,
		Label:     req.label,
		OutputDir: s.cfg.OutputDir,
	})
	if err != nil {
		return nil, err
	}

	s.rec.RecordRun(
		time.Duration(run.Stats.AudioDuration*float64(time.Second)),
		time.Duration(run.Stats.ProcessingTime*float64(time.Second)),
	)
	s.results.Put(c.Context(), key, fromOutcome(run))
	return run, nil
}

type legacyJSONBody struct {
	Data string `json:"data"`
}

// parseLegacyPayload accepts multipart field "audio" or JSON {"data": base64}.
func (s *Server) parseLegacyPayload(c *fiber.Ctx) (*ingest.Source, error) {
	if fh, err := c.FormFile("audio"); err == nil {
		data, err := readUpload(fh)
		if err != nil {
			return nil, err
		}
		return s.validator.FromUpload(fh.Filename, data)
	}

	if isJSON(c) {
		var body legacyJSONBody
		if err := c.BodyParser(&body); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON body: %v", ingest.ErrMalformedPayload, err)
		}
		if body.Data == "" {
			return nil, fmt.Errorf("%w: campo 'data' necessário no JSON", ingest.ErrMalformedPayload)
		}
		return s.validator.FromBase64("audio_upload.wav", body.Data)
	}

	return nil, fmt.Errorf("%w: envie um arquivo via form-data ou dados base64 via JSON", ingest.ErrMalformedPayload)
}

type extendedJSONBody struct {
	AudioFile struct {
		Content  string `json:"content"`
		Filename string `json:"filename"`
	} `json:"audio_file"`
	Model      string `json:"model"`
	Language   string `json:"language"`
	Timestamps *bool  `json:"timestamps"`
	Label      string `json:"label"`
}

// parseExtendedPayload accepts multipart fields or the audio_file JSON shape.
func (s *Server) parseExtendedPayload(c *fiber.Ctx) (normalized, error) {
	var (
		src        *ingest.Source
		model      = "base"
		language   = "auto"
		timestamps = true
		label      = "api_upload"
		err        error
	)

	if isJSON(c) {
		var body extendedJSONBody
		if err := c.BodyParser(&body); err != nil {
			return normalized{}, fmt.Errorf("%w: invalid JSON body: %v", ingest.ErrMalformedPayload, err)
		}
		if body.AudioFile.Content == "" {
			return normalized{}, fmt.Errorf("%w: formato JSON inválido, use audio_file.content para base64", ingest.ErrMalformedPayload)
		}
		filename := body.AudioFile.Filename
		if filename == "" {
			filename = "upload.wav"
		}
		if body.Model != "" {
			model = body.Model
		}
		if body.Language != "" {
			language = body.Language
		}
		if body.Timestamps != nil {
			timestamps = *body.Timestamps
		}
		if body.Label != "" {
			label = body.Label
		}
		if !models.IsValid(model) {
			return normalized{}, errInvalidModel(model)
		}
		src, err = s.validator.FromBase64(filename, body.AudioFile.Content)
		if err != nil {
			return normalized{}, err
		}
	} else {
		fh, ferr := c.FormFile("audio")
		if ferr != nil {
			return normalized{}, fmt.Errorf("%w: campo audio necessário no form-data", ingest.ErrMalformedPayload)
		}
		if v := c.FormValue("model"); v != "" {
			model = v
		}
		if v := c.FormValue("language"); v != "" {
			language = v
		}
		if v := c.FormValue("timestamps"); v != "" {
			timestamps = strings.EqualFold(v, "true")
		}
		if v := c.FormValue("label"); v != "" {
			label = v
		}
		if !models.IsValid(model) {
			return normalized{}, errInvalidModel(model)
		}
		data, rerr := readUpload(fh)
		if rerr != nil {
			return normalized{}, rerr
		}
		src, err = s.validator.FromUpload(fh.Filename, data)
		if err != nil {
			return normalized{}, err
		}
	}

	return normalized{
		source: src,
		opts: transcribe.Options{
			Model:      model,
			Language:   language,
			Timestamps: timestamps,
		},
		label: label,
	}, nil
}

func (s *Server) handleModels(c *fiber.Ctx) error {
	info := fiber.Map{}
	for _, v := range models.Manifest {
		info[v.Name] = fiber.Map{"size": v.SizeLabel, "speed": v.Speed, "accuracy": v.Accuracy}
	}
	return c.JSON(fiber.Map{
		"available_models": models.Names(),
		"loaded_models":    s.modelCache.Loaded(),
		"recommendations": fiber.Map{
			"speed":     "tiny",
			"balance":   "base",
			"quality":   "small",
			"precision": "medium",
			"maximum":   "large",
		},
		"model_info": info,
	})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":                "healthy",
		"system":                "conversoraudio",
		"whisper_models_loaded": s.modelCache.Loaded(),
		"supported_formats":     ingest.SupportedFormats,
		"uptime_seconds":        time.Since(s.started).Seconds(),
		"metrics":               s.rec.Snapshot(),
		"timestamp":             time.Now().Format(time.RFC3339),
	})
}

// errInvalidModel mirrors the validation message clients already depend on.
func errInvalidModel(model string) error {
	return &validationError{msg: fmt.Sprintf("modelo %s inválido. Use: %s", model, strings.Join(models.Names(), ", "))}
}

type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }

// fail maps internal failures onto the JSON error envelope: validation
// problems are 400, everything else 500.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var ve *validationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, ingest.ErrUnsupportedFormat),
		errors.Is(err, ingest.ErrPayloadTooLarge),
		errors.Is(err, ingest.ErrMalformedPayload):
		status = fiber.StatusBadRequest
	}
	if status == fiber.StatusInternalServerError {
		s.log.Error("request failed", "err", err)
	} else {
		s.log.Warn("request rejected", "err", err)
	}
	return c.Status(status).JSON(fiber.Map{"success": false, "error": err.Error()})
}

func isJSON(c *fiber.Ctx) bool {
	return strings.Contains(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open upload: %v", ingest.ErrMalformedPayload, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read upload: %v", ingest.ErrMalformedPayload, err)
	}
	return data, nil
}
