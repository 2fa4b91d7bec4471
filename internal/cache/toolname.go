package cache

import (
	"sync"
	"time"
)

const (
	toolNameTTL        = 30 * time.Minute
	toolNameSweepEvery = 10 * time.Minute
	toolNameCapacity   = 512
)

type toolNameKey struct {
	sessionID     string
	model         string
	sanitizedName string
}

type toolNameEntry struct {
	originalName string
	insertAt     time.Time
}

// ToolNameCache maps (session, model, sanitized tool name) back to the
// original name a client sent before sanitize_tool_name mangled it, so
// outbound functionCall.name values can be restored. Bounded to
// toolNameCapacity entries, evicted FIFO by insertion order once full,
// and independently pruned by TTL every toolNameSweepEvery. The sweep
// self-stops once the map empties and restarts lazily on the next Put
// (spec §5, §9), mirroring SignatureCache.
type ToolNameCache struct {
	mu       sync.Mutex
	entries  map[toolNameKey]toolNameEntry
	order    []toolNameKey
	sweeping bool
	stop     chan struct{}
	closed   bool
	now      func() time.Time
}

// NewToolNameCache constructs an empty cache. Its sweeper starts lazily
// on the first Put rather than running while the cache is empty.
func NewToolNameCache() *ToolNameCache {
	return &ToolNameCache{
		entries: make(map[toolNameKey]toolNameEntry),
		now:     time.Now,
	}
}

// Put records that sanitizedName came from originalName within the
// given session/model namespace. If the sanitized form did not differ
// from the original, callers should not call Put.
func (c *ToolNameCache) Put(sessionID, model, sanitizedName, originalName string) {
	key := toolNameKey{sessionID: sessionID, model: model, sanitizedName: sanitizedName}
	c.mu.Lock()

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = toolNameEntry{originalName: originalName, insertAt: c.now()}

	for len(c.entries) > toolNameCapacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	needsSweeper := !c.sweeping && !c.closed
	if needsSweeper {
		c.sweeping = true
		c.stop = make(chan struct{})
	}
	stop := c.stop
	c.mu.Unlock()

	if needsSweeper {
		go c.sweepLoop(stop)
	}
}

// Get returns the original name for sanitizedName within the given
// session/model namespace, or false if there is no live mapping.
func (c *ToolNameCache) Get(sessionID, model, sanitizedName string) (string, bool) {
	key := toolNameKey{sessionID: sessionID, model: model, sanitizedName: sanitizedName}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().Sub(entry.insertAt) > toolNameTTL {
		delete(c.entries, key)
		return "", false
	}
	return entry.originalName, true
}

// Len reports the number of live entries.
func (c *ToolNameCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close permanently stops any running sweeper and prevents a new one
// from starting, for use at process shutdown. Safe to call multiple
// times.
func (c *ToolNameCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.sweeping {
		close(c.stop)
		c.sweeping = false
	}
}

func (c *ToolNameCache) sweepLoop(stop chan struct{}) {
	ticker := time.NewTicker(toolNameSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if c.sweepOnce() {
				return
			}
		}
	}
}

// sweepOnce prunes expired entries and reports whether the sweeper
// should stop (the map became empty).
func (c *ToolNameCache) sweepOnce() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	live := c.order[:0]
	for _, key := range c.order {
		entry, ok := c.entries[key]
		if !ok {
			continue
		}
		if now.Sub(entry.insertAt) > toolNameTTL {
			delete(c.entries, key)
			continue
		}
		live = append(live, key)
	}
	c.order = live

	if len(c.entries) == 0 {
		c.sweeping = false
		return true
	}
	return false
}
