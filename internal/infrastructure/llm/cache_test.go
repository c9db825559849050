package llm

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	base := Fingerprint("role", "prompt", 0.3, 2048)

	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), string(base))
	assert.Equal(t, base, Fingerprint("role", "prompt", 0.3, 2048))
	assert.Equal(t, base, Fingerprint("  role\n", "\tprompt  ", 0.3, 2048))

	assert.NotEqual(t, base, Fingerprint("role", "prompt", 0.4, 2048))
	assert.NotEqual(t, base, Fingerprint("role", "prompt", 0.3, 1024))
	assert.NotEqual(t, base, Fingerprint("prompt", "role", 0.3, 2048))
	assert.NotEqual(t, base, Fingerprint("role", "prompt!", 0.3, 2048))
}

func TestCache_BoundedLRU(t *testing.T) {
	c := NewCache(2, time.Hour)

	c.Put("a", "1")
	c.Put("b", "2")
	_, _ = c.Get("a") // a is now most recent
	c.Put("c", "3")

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, 2, c.Len())

	stats := c.Stats()
	assert.Equal(t, CacheStats{Size: 2, Hits: 2, Misses: 1}, stats)

	c.Purge()
	assert.Zero(t, c.Len())
}

func TestCache_Expires(t *testing.T) {
	c := NewCache(10, 20*time.Millisecond)
	c.Put("a", "1")

	assert.Eventually(t, func() bool {
		_, ok := c.Get("a")
		return !ok
	}, time.Second, 10*time.Millisecond)
}
