// Package cache holds the two bounded, TTL-based caches shared across
// translator requests: thought signatures and sanitized tool-name
// mappings (spec §3, §4.2.3, §4.2.2).
package cache

import (
	"sync"
	"time"
)

const (
	signatureTTL          = 2 * time.Hour
	signatureSweepEvery   = 5 * time.Minute
	signatureMinCacheable = 50 // bytes; shorter values are placeholders
)

// SkipThoughtSignatureSentinel is substituted on the way in when no
// cached signature exists and the upstream requires the field present.
const SkipThoughtSignatureSentinel = "skip_thought_signature_validator"

type signatureEntry struct {
	signature string
	insertAt  time.Time
}

// SignatureCache maps a tool_use_id to the thought signature Gemini
// attached to the matching functionCall part, so a later turn that
// dropped the field (some clients strip unknown fields) can be
// refilled. Entries expire after signatureTTL; a background sweep
// prunes expired entries every signatureSweepEvery and stops itself
// once the map is empty, restarting lazily on the next Put.
type SignatureCache struct {
	mu       sync.Mutex
	entries  map[string]signatureEntry
	sweeping bool
	stop     chan struct{}
	now      func() time.Time
}

// NewSignatureCache constructs an empty cache.
func NewSignatureCache() *SignatureCache {
	return &SignatureCache{
		entries: make(map[string]signatureEntry),
		now:     time.Now,
	}
}

// Put records a signature for toolUseID if it is long enough to be a
// real signature rather than a placeholder. Starts the sweeper if it
// is not already running.
func (c *SignatureCache) Put(toolUseID, signature string) {
	if toolUseID == "" || len(signature) < signatureMinCacheable {
		return
	}
	c.mu.Lock()
	c.entries[toolUseID] = signatureEntry{signature: signature, insertAt: c.now()}
	needsSweeper := !c.sweeping
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

// Get returns the cached signature for toolUseID, pruning it first if
// expired.
func (c *SignatureCache) Get(toolUseID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[toolUseID]
	if !ok {
		return "", false
	}
	if c.now().Sub(entry.insertAt) > signatureTTL {
		delete(c.entries, toolUseID)
		return "", false
	}
	return entry.signature, true
}

// Len reports the number of live entries, for tests and status output.
func (c *SignatureCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *SignatureCache) sweepLoop(stop chan struct{}) {
	ticker := time.NewTicker(signatureSweepEvery)
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
func (c *SignatureCache) sweepOnce() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, entry := range c.entries {
		if now.Sub(entry.insertAt) > signatureTTL {
			delete(c.entries, id)
		}
	}
	if len(c.entries) == 0 {
		c.sweeping = false
		return true
	}
	return false
}
