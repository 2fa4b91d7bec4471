package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureCacheRoundTrip(t *testing.T) {
	c := NewSignatureCache()
	longSig := "0123456789012345678901234567890123456789012345678901234567890"
	c.Put("call-1", longSig)

	got, ok := c.Get("call-1")
	require.True(t, ok)
	assert.Equal(t, longSig, got)
}

func TestSignatureCacheIgnoresShortPlaceholders(t *testing.T) {
	c := NewSignatureCache()
	c.Put("call-1", "short")
	_, ok := c.Get("call-1")
	assert.False(t, ok)
}

func TestSignatureCacheExpires(t *testing.T) {
	c := NewSignatureCache()
	fakeNow := time.Now()
	c.now = func() time.Time { return fakeNow }

	longSig := "0123456789012345678901234567890123456789012345678901234567890"
	c.Put("call-1", longSig)

	fakeNow = fakeNow.Add(3 * time.Hour)
	_, ok := c.Get("call-1")
	assert.False(t, ok, "entry older than TTL should be pruned on read")
}

func TestSignatureCacheSweeperStopsWhenEmpty(t *testing.T) {
	c := NewSignatureCache()
	longSig := "0123456789012345678901234567890123456789012345678901234567890"
	c.Put("call-1", longSig)

	assert.Eventually(t, func() bool {
		c.mu.Lock()
		sweeping := c.sweeping
		c.mu.Unlock()
		return sweeping
	}, time.Second, time.Millisecond)

	stopped := c.sweepOnce()
	assert.False(t, stopped, "entry not yet expired")

	c.mu.Lock()
	c.entries = map[string]signatureEntry{}
	c.mu.Unlock()

	stopped = c.sweepOnce()
	assert.True(t, stopped)
}

func TestToolNameCacheRoundTrip(t *testing.T) {
	c := NewToolNameCache()
	defer c.Close()

	c.Put("sess-1", "gemini-2.5-pro", "my_tool", "my.tool!!")
	got, ok := c.Get("sess-1", "gemini-2.5-pro", "my_tool")
	require.True(t, ok)
	assert.Equal(t, "my.tool!!", got)

	_, ok = c.Get("sess-1", "other-model", "my_tool")
	assert.False(t, ok, "namespace is scoped by model")
}

func TestToolNameCacheFIFOEviction(t *testing.T) {
	c := NewToolNameCache()
	defer c.Close()

	for i := 0; i < toolNameCapacity+10; i++ {
		c.Put("sess", "model", itoa(i), "orig")
	}
	assert.Equal(t, toolNameCapacity, c.Len())

	_, ok := c.Get("sess", "model", itoa(0))
	assert.False(t, ok, "oldest entries should have been evicted")

	_, ok = c.Get("sess", "model", itoa(toolNameCapacity+9))
	assert.True(t, ok, "most recent entry should survive")
}

func TestToolNameCacheSweeperStopsWhenEmpty(t *testing.T) {
	c := NewToolNameCache()
	defer c.Close()

	c.Put("sess", "model", "safe_name", "unsafe!name")

	assert.Eventually(t, func() bool {
		c.mu.Lock()
		sweeping := c.sweeping
		c.mu.Unlock()
		return sweeping
	}, time.Second, time.Millisecond)

	c.mu.Lock()
	c.entries = map[toolNameKey]toolNameEntry{}
	c.order = nil
	c.mu.Unlock()

	stopped := c.sweepOnce()
	assert.True(t, stopped)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}
