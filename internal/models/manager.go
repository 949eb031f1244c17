package models

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

// Manager resolves model variants to local weight files, downloading missing
// ones on demand.
type Manager struct {
	baseDir string
	log     *slog.Logger
	client  *http.Client
}

// NewManager creates a Manager rooted at baseDir.
func NewManager(baseDir string, logger *slog.Logger) (*Manager, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("models: base directory required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("models: create %s: %w", baseDir, err)
	}
	return &Manager{
		baseDir: filepath.Clean(baseDir),
		log:     logger.With("component", "models.Manager"),
		client:  http.DefaultClient,
	}, nil
}

// Path returns the local file path for a variant without checking existence.
func (m *Manager) Path(variant string) (string, error) {
	v, ok := Lookup(variant)
	if !ok {
		return "", fmt.Errorf("models: unknown variant %q (supported: %v)", variant, Names())
	}
	return filepath.Join(m.baseDir, v.File), nil
}

// Downloaded reports whether the weights for variant are present locally.
func (m *Manager) Downloaded(variant string) bool {
	path, err := m.Path(variant)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// Ensure returns the local path for variant, downloading the weights first
// when they are missing.
func (m *Manager) Ensure(ctx context.Context, variant string) (string, error) {
	v, ok := Lookup(variant)
	if !ok {
		return "", fmt.Errorf("models: unknown variant %q (supported: %v)", variant, Names())
	}
	path := filepath.Join(m.baseDir, v.File)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return path, nil
	}
	m.log.Info("downloading model weights", "variant", variant, "url", v.URL)
	if err := m.download(ctx, v.URL, path); err != nil {
		return "", fmt.Errorf("models: download %s: %w", variant, err)
	}
	m.log.Info("model weights ready", "variant", variant, "path", path)
	return path, nil
}

// download fetches url into path via a temp file so a partial download never
// masquerades as valid weights.
func (m *Manager) download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(m.baseDir, ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
