// Package config loads service configuration from a yaml file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ronaldomelofz/conversoraudio/internal/models"
)

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000
	DefaultMaxUploadMB = 400
	DefaultOutputDir   = "transcricoes"
	DefaultModel       = "base"
	DefaultLanguage    = "pt"
	DefaultModelsDir   = "models"
	DefaultBackend     = "whisper"
	DefaultLogLevel    = "info"
)

// Config is the full service configuration.
type Config struct {
	Server struct {
		Host        string `yaml:"host"`
		Port        int    `yaml:"port"`
		MaxUploadMB int    `yaml:"max_upload_mb"`
	} `yaml:"server"`
	Engine struct {
		Backend   string `yaml:"backend"`
		RemoteURL string `yaml:"remote_url"`
	} `yaml:"engine"`
	Models struct {
		Dir     string   `yaml:"dir"`
		Default string   `yaml:"default"`
		Preload []string `yaml:"preload"`
	} `yaml:"models"`
	Transcription struct {
		OutputDir string `yaml:"output_dir"`
		Language  string `yaml:"language"`
	} `yaml:"transcription"`
	Cache struct {
		RedisAddr  string `yaml:"redis_addr"`
		Prefix     string `yaml:"prefix"`
		TTLMinutes int    `yaml:"ttl_minutes"`
	} `yaml:"cache"`
	LogLevel string `yaml:"log_level"`
}

// Loader reads configuration. Tests can override Lookup to inject
// deterministic environment maps.
type Loader struct {
	// Path is the yaml file; empty or missing files are skipped.
	Path   string
	Lookup func(string) (string, bool)
}

// Load reads the file (if any), applies environment overrides and validates.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	var cfg Config
	if l.Path != "" {
		data, err := os.ReadFile(l.Path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", l.Path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read %s: %w", l.Path, err)
		}
	}

	overrideString(l.Lookup, "CONVERSOR_HOST", &cfg.Server.Host)
	overrideInt(l.Lookup, "CONVERSOR_PORT", &cfg.Server.Port)
	overrideInt(l.Lookup, "CONVERSOR_MAX_UPLOAD_MB", &cfg.Server.MaxUploadMB)
	overrideString(l.Lookup, "CONVERSOR_ENGINE_BACKEND", &cfg.Engine.Backend)
	overrideString(l.Lookup, "CONVERSOR_REMOTE_URL", &cfg.Engine.RemoteURL)
	overrideString(l.Lookup, "CONVERSOR_MODELS_DIR", &cfg.Models.Dir)
	overrideString(l.Lookup, "CONVERSOR_DEFAULT_MODEL", &cfg.Models.Default)
	overrideString(l.Lookup, "CONVERSOR_OUTPUT_DIR", &cfg.Transcription.OutputDir)
	overrideString(l.Lookup, "CONVERSOR_LANGUAGE", &cfg.Transcription.Language)
	overrideString(l.Lookup, "REDIS_ADDR", &cfg.Cache.RedisAddr)
	overrideString(l.Lookup, "CONVERSOR_LOG_LEVEL", &cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate applies defaults and rejects out-of-range values.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = DefaultMaxUploadMB
	}
	if c.Server.MaxUploadMB < 0 {
		return fmt.Errorf("config: max_upload_mb must be positive, got %d", c.Server.MaxUploadMB)
	}
	if c.Engine.Backend == "" {
		c.Engine.Backend = DefaultBackend
	}
	switch c.Engine.Backend {
	case "whisper", "remote", "stub":
	default:
		return fmt.Errorf("config: unknown engine backend %q (supported: whisper, remote, stub)", c.Engine.Backend)
	}
	if c.Engine.Backend == "remote" && c.Engine.RemoteURL == "" {
		return fmt.Errorf("config: remote backend requires remote_url")
	}
	if c.Models.Dir == "" {
		c.Models.Dir = DefaultModelsDir
	}
	if c.Models.Default == "" {
		c.Models.Default = DefaultModel
	}
	if !models.IsValid(c.Models.Default) {
		return fmt.Errorf("config: unknown default model %q (supported: %v)", c.Models.Default, models.Names())
	}
	for _, v := range c.Models.Preload {
		if !models.IsValid(v) {
			return fmt.Errorf("config: unknown preload model %q (supported: %v)", v, models.Names())
		}
	}
	if c.Transcription.OutputDir == "" {
		c.Transcription.OutputDir = DefaultOutputDir
	}
	if c.Transcription.Language == "" {
		c.Transcription.Language = DefaultLanguage
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	return nil
}

// MaxUploadBytes returns the upload cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			*target = n
		}
	}
}
