package modelcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ronaldomelofz/conversoraudio/internal/engine"
)

func countingLoader(loads *atomic.Int32) LoadFunc {
	return func(ctx context.Context, variant string) (engine.Engine, error) {
		loads.Add(1)
		return engine.NewStubEngine(nil, variant), nil
	}
}

func TestGetOrLoadIdempotent(t *testing.T) {
	var loads atomic.Int32
	c := New(countingLoader(&loads), nil)

	first, err := c.GetOrLoad(context.Background(), "base")
	if err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	second, err := c.GetOrLoad(context.Background(), "base")
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}
	if first != second {
		t.Error("expected the identical cached handle on the second call")
	}
	if loads.Load() != 1 {
		t.Errorf("expected exactly one load, got %d", loads.Load())
	}
}

func TestGetOrLoadDistinctVariants(t *testing.T) {
	var loads atomic.Int32
	c := New(countingLoader(&loads), nil)

	if _, err := c.GetOrLoad(context.Background(), "tiny"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetOrLoad(context.Background(), "base"); err != nil {
		t.Fatal(err)
	}
	if loads.Load() != 2 {
		t.Errorf("expected two loads for two variants, got %d", loads.Load())
	}

	loaded := c.Loaded()
	if len(loaded) != 2 || loaded[0] != "base" || loaded[1] != "tiny" {
		t.Errorf("unexpected loaded list: %v", loaded)
	}
}

func TestFailedLoadNotCached(t *testing.T) {
	var calls atomic.Int32
	load := func(ctx context.Context, variant string) (engine.Engine, error) {
		if calls.Add(1) == 1 {
			return nil, fmt.Errorf("weights missing")
		}
		return engine.NewStubEngine(nil, variant), nil
	}
	c := New(load, nil)

	_, err := c.GetOrLoad(context.Background(), "base")
	if !errors.Is(err, ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad, got %v", err)
	}
	if len(c.Loaded()) != 0 {
		t.Error("failed load must not populate the cache")
	}

	// The next call retries and succeeds.
	if _, err := c.GetOrLoad(context.Background(), "base"); err != nil {
		t.Fatalf("retry after failed load did not succeed: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 loader calls, got %d", calls.Load())
	}
}

func TestConcurrentLoadExactlyOnce(t *testing.T) {
	var loads atomic.Int32
	c := New(countingLoader(&loads), nil)

	const goroutines = 16
	handles := make([]engine.Engine, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			eng, err := c.GetOrLoad(context.Background(), "base")
			if err != nil {
				t.Errorf("concurrent load failed: %v", err)
				return
			}
			handles[i] = eng
		}(i)
	}
	wg.Wait()

	if loads.Load() != 1 {
		t.Errorf("expected exactly one load under concurrency, got %d", loads.Load())
	}
	for i := 1; i < goroutines; i++ {
		if handles[i] != handles[0] {
			t.Fatal("concurrent callers received different handles")
		}
	}
}

func TestClose(t *testing.T) {
	var loads atomic.Int32
	c := New(countingLoader(&loads), nil)
	if _, err := c.GetOrLoad(context.Background(), "base"); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if len(c.Loaded()) != 0 {
		t.Error("expected empty cache after Close")
	}
}
