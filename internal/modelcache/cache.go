// Package modelcache owns the loaded inference engines, keyed by model
// variant. Loads happen once per variant for the process lifetime; there is
// no eviction.
package modelcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ronaldomelofz/conversoraudio/internal/engine"
)

// ErrModelLoad wraps failures of the underlying engine loader. A failed load
// never populates the cache, so a later call retries.
var ErrModelLoad = errors.New("modelcache: model load failed")

// LoadFunc constructs an engine for one model variant.
type LoadFunc func(ctx context.Context, variant string) (engine.Engine, error)

type entry struct {
	mu  sync.Mutex
	eng engine.Engine
}

// Cache is process-wide shared state; all methods are safe for concurrent use.
// Concurrent first-time requests for the same variant are serialized on a
// per-variant lock so the engine is loaded exactly once.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	load    LoadFunc
	log     *slog.Logger
}

// New creates an empty cache backed by load.
func New(load LoadFunc, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries: make(map[string]*entry),
		load:    load,
		log:     logger.With("component", "modelcache"),
	}
}

// GetOrLoad returns the cached engine for variant, loading it on first use.
func (c *Cache) GetOrLoad(ctx context.Context, variant string) (engine.Engine, error) {
	c.mu.Lock()
	e, ok := c.entries[variant]
	if !ok {
		e = &entry{}
		c.entries[variant] = e
	}
	c.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.eng != nil {
		return e.eng, nil
	}

	c.log.Info("loading model", "model_variant", variant)
	eng, err := c.load(ctx, variant)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, variant, err)
	}
	e.eng = eng
	c.log.Info("model loaded", "model_variant", variant)
	return eng, nil
}

// Loaded returns the sorted list of variants currently held in the cache.
func (c *Cache) Loaded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var loaded []string
	for variant, e := range c.entries {
		// TryLock skips entries whose load is still in flight.
		if !e.mu.TryLock() {
			continue
		}
		if e.eng != nil {
			loaded = append(loaded, variant)
		}
		e.mu.Unlock()
	}
	sort.Strings(loaded)
	return loaded
}

// Close releases every loaded engine. The cache must not be used afterwards.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for variant, e := range c.entries {
		e.mu.Lock()
		if e.eng != nil {
			if err := e.eng.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("modelcache: close %s: %w", variant, err)
			}
			e.eng = nil
		}
		e.mu.Unlock()
	}
	return firstErr
}
