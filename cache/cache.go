package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
)

// File-backed cache for rendered post HTML. Entries are keyed by a
// collection kind ("posts", "categories") and a slug; the xxhash suffix
// keeps filenames safe for slugs that collide after truncation.

func GetCachePath(kind, slug string) string {
	hash := generateHash(kind + slug)
	shortHash := hash[:16]
	cacheDir := filepath.Join("cache", kind)
	return filepath.Join(cacheDir, fmt.Sprintf("%s_%s.html", slug, shortHash))
}

func generateHash(s string) string {
	hash := xxhash.Sum64String(s)
	return fmt.Sprintf("%016x", hash)
}

func EnsureCacheDir(kind string) error {
	cacheDir := filepath.Join("cache", kind)
	return os.MkdirAll(cacheDir, 0755)
}

// WriteCache stores rendered HTML for a slug.
func WriteCache(kind, slug, html string) error {
	if err := EnsureCacheDir(kind); err != nil {
		return err
	}
	return os.WriteFile(GetCachePath(kind, slug), []byte(html), 0644)
}

// ReadCache returns the cached HTML if present and younger than maxAge.
func ReadCache(kind, slug string, maxAge time.Duration) (string, bool) {
	cachePath := GetCachePath(kind, slug)

	info, err := os.Stat(cachePath)
	if err != nil {
		return "", false
	}
	if time.Since(info.ModTime()) > maxAge {
		return "", false
	}

	content, err := os.ReadFile(cachePath)
	if err != nil {
		return "", false
	}
	return string(content), true
}

// ClearCache removes the entry for a slug; missing files are not an error.
func ClearCache(kind, slug string) error {
	err := os.Remove(GetCachePath(kind, slug))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ClearOldCache removes entries older than maxAge across all kinds.
func ClearOldCache(maxAge time.Duration) error {
	return filepath.Walk("cache", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".html" {
			return nil
		}
		if time.Since(info.ModTime()) > maxAge {
			os.Remove(path)
		}
		return nil
	})
}
