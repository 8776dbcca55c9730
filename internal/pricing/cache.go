// Package pricing implements the persistent per-token pricing cache: a
// resolve-then-freeze lookup over a hardcoded provider-family table, with
// user overrides that are never silently replaced.
package pricing

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Entry is a single cached pricing record.
type Entry struct {
	InputPerMillion   float64 `json:"input_per_million"`
	OutputPerMillion  float64 `json:"output_per_million"`
	CacheReadDiscount float64 `json:"cache_read_discount"`
	UserSet           bool    `json:"user_set"`
}

// Cache is a persistent JSON map of model id to Entry. Grounded on
// rustant-core's PricingCache: resolve-then-freeze semantics where
// user_set entries are never overwritten, and an atomic temp+rename flush.
type Cache struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
	dirty   bool
}

// Load reads the cache file at path, treating an absent file as an empty
// cache.
func Load(path string) (*Cache, error) {
	c := &Cache{path: path, entries: make(map[string]Entry)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("pricing cache: reading %s: %w", path, err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &c.entries); err != nil {
			return nil, fmt.Errorf("pricing cache: parsing %s: %w", path, err)
		}
	}
	return c, nil
}

// Resolve returns (input, output) per-million pricing for model. It checks
// the persistent cache first, then the hardcoded table (caching the result
// with user_set=false), returning ok=false only for a wholly unknown model.
func (c *Cache) Resolve(model string) (input, output float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, found := c.entries[model]; found {
		return entry.InputPerMillion, entry.OutputPerMillion, true
	}

	in, out, found := lookupHardcoded(model)
	if !found {
		return 0, 0, false
	}
	c.entries[model] = Entry{
		InputPerMillion:   in,
		OutputPerMillion:  out,
		CacheReadDiscount: cacheReadDiscount(model),
		UserSet:           false,
	}
	c.dirty = true
	return in, out, true
}

// SetPricing records a user-specified override, which Resolve will never
// replace.
func (c *Cache) SetPricing(model string, input, output float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[model] = Entry{
		InputPerMillion:   input,
		OutputPerMillion:  output,
		CacheReadDiscount: cacheReadDiscount(model),
		UserSet:           true,
	}
	c.dirty = true
}

// CacheReadDiscount returns the cached entry's discount if one is known,
// else computes it from the family table.
func (c *Cache) CacheReadDiscount(model string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, found := c.entries[model]; found {
		return entry.CacheReadDiscount
	}
	return cacheReadDiscount(model)
}

// Flush writes the cache to disk atomically (temp file + rename) if dirty,
// and is a no-op otherwise.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

func (c *Cache) flushLocked() error {
	if !c.dirty {
		return nil
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("pricing cache: marshaling: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pricing cache: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".pricing-*.json.tmp")
	if err != nil {
		return fmt.Errorf("pricing cache: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("pricing cache: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("pricing cache: closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("pricing cache: renaming into place: %w", err)
	}

	c.dirty = false
	return nil
}

// Close flushes any pending writes. Callers should defer Close on a Cache
// obtained from Load.
func (c *Cache) Close() error { return c.Flush() }

// cacheReadDiscount returns the fixed per-family multiplier applied to
// cache-read tokens: 10% of full price (90% discount) for claude/gemini,
// 50% for gpt/o3/o4, no discount otherwise.
func cacheReadDiscount(model string) float64 {
	switch {
	case strings.HasPrefix(model, "claude-"):
		return 0.10
	case strings.HasPrefix(model, "gpt-"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return 0.50
	case strings.HasPrefix(model, "gemini-"):
		return 0.10
	default:
		return 1.0
	}
}
