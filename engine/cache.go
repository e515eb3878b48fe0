package engine

import (
	"sync"
	"time"

	"github.com/dueldanov/embedscript/internal/script"
)

// scriptCache memoizes parse results keyed by filename+source text, so
// Manager.Load and Manager.Check do not re-lex/re-parse identical source
// repeatedly submitted by the host (e.g. a hot-reload loop that resends
// an unchanged file). Grounded on lockbox/lockscript/cache.go's
// timestamped map with hourly TTL and size-triggered eviction.
type scriptCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	maxSize int
}

type cacheEntry struct {
	script    *script.Script
	diags     []script.Diagnostic
	timestamp time.Time
}

func newScriptCache(maxSize int) *scriptCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &scriptCache{
		entries: make(map[string]*cacheEntry),
		ttl:     time.Hour,
		maxSize: maxSize,
	}
}

func cacheKey(filename, source string) string { return filename + "\x00" + source }

func (c *scriptCache) get(filename, source string) (*script.Script, []script.Diagnostic, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[cacheKey(filename, source)]
	if !ok {
		return nil, nil, false
	}
	if time.Since(entry.timestamp) > c.ttl {
		return nil, nil, false
	}
	return entry.script, entry.diags, true
}

func (c *scriptCache) put(filename, source string, parsed *script.Script, diags []script.Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey(filename, source)] = &cacheEntry{
		script:    parsed,
		diags:     diags,
		timestamp: time.Now(),
	}
	if len(c.entries) > c.maxSize {
		c.evictOld()
	}
}

func (c *scriptCache) evictOld() {
	cutoff := time.Now().Add(-c.ttl)
	for key, entry := range c.entries {
		if entry.timestamp.Before(cutoff) {
			delete(c.entries, key)
		}
	}
	for len(c.entries) > c.maxSize {
		var oldestKey string
		var oldest time.Time
		for key, entry := range c.entries {
			if oldestKey == "" || entry.timestamp.Before(oldest) {
				oldestKey, oldest = key, entry.timestamp
			}
		}
		delete(c.entries, oldestKey)
	}
}

func (c *scriptCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

func (c *scriptCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
