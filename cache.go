package defscan

import (
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	sig     Signature
	summary DefsSummary
}

// SummaryCache answers defs-summary queries per mod root, rescanning only
// when the mod's signature has changed since the last computation. It is
// constructed once and shared; concurrent queries are safe, and queries for
// the same mod root are coalesced so at most one scan runs per key at a time.
//
// Entries are only ever replaced, never evicted; they live as long as the
// cache does.
type SummaryCache struct {
	scanner *Scanner
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]cacheEntry

	group singleflight.Group
}

// NewSummaryCache creates a cache backed by scanner.
func NewSummaryCache(scanner *Scanner, logger *slog.Logger) *SummaryCache {
	return &SummaryCache{
		scanner: scanner,
		logger:  ensureLogger(logger),
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the defs summary for the mod rooted at modPath. It never
// fails: a missing or empty mod root yields the zero-valued summary. When
// the stored signature still matches the on-disk state the stored summary is
// returned without parsing a single file; the cost is one directory
// enumeration plus stats.
func (c *SummaryCache) Get(modPath string) DefsSummary {
	key := canonicalKey(modPath)
	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		return c.lookup(key, modPath), nil
	})
	// Hand out a copy so callers cannot mutate the stored entry.
	return v.(DefsSummary).clone()
}

// Len reports how many mod roots have cached summaries.
func (c *SummaryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *SummaryCache) lookup(key, modPath string) DefsSummary {
	sig := ComputeSignature(c.scanner.fs, modPath)

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && entry.sig.Equal(sig) {
		return entry.summary
	}

	c.logger.Debug("defs signature changed, rescanning",
		"mod", key, "files", sig.Files)
	summary := c.scanner.Scan(modPath)

	c.mu.Lock()
	c.entries[key] = cacheEntry{sig: sig, summary: summary}
	c.mu.Unlock()
	return summary
}

// snapshot copies all entries, for persistence.
func (c *SummaryCache) snapshot() map[string]cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]cacheEntry, len(c.entries))
	for key, entry := range c.entries {
		entry.summary = entry.summary.clone()
		out[key] = entry
	}
	return out
}

// restore seeds the cache with previously persisted entries. Existing
// entries for the same keys are kept; a live entry is never older than a
// persisted one.
func (c *SummaryCache) restore(entries map[string]cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range entries {
		if _, ok := c.entries[key]; ok {
			continue
		}
		c.entries[key] = entry
	}
}

// canonicalKey resolves a mod path to the absolute form used as cache key.
func canonicalKey(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return NormalizePath(abs)
}
