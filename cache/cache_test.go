package cache

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetCachePath_Deterministic(t *testing.T) {
	first := GetCachePath("posts", "hello-world")
	second := GetCachePath("posts", "hello-world")
	assert.Equal(t, first, second)

	other := GetCachePath("categories", "hello-world")
	assert.NotEqual(t, first, other)
}

func TestWriteReadClear(t *testing.T) {
	t.Cleanup(func() { os.RemoveAll("cache") })

	assert.NoError(t, WriteCache("posts", "roundtrip", "<p>hi</p>"))

	html, ok := ReadCache("posts", "roundtrip", time.Minute)
	assert.True(t, ok)
	assert.Equal(t, "<p>hi</p>", html)

	assert.NoError(t, ClearCache("posts", "roundtrip"))
	_, ok = ReadCache("posts", "roundtrip", time.Minute)
	assert.False(t, ok)
}

func TestReadCache_ExpiredEntry(t *testing.T) {
	t.Cleanup(func() { os.RemoveAll("cache") })

	assert.NoError(t, WriteCache("posts", "stale", "<p>old</p>"))

	// Age the file past any reasonable TTL.
	past := time.Now().Add(-2 * time.Hour)
	assert.NoError(t, os.Chtimes(GetCachePath("posts", "stale"), past, past))

	_, ok := ReadCache("posts", "stale", time.Hour)
	assert.False(t, ok)
}

func TestClearCache_MissingFileIsNotAnError(t *testing.T) {
	assert.NoError(t, ClearCache("posts", "never-written"))
}
