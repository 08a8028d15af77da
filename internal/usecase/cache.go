package usecase

import (
	"hash/crc32"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/eliteGoblin/ccswitch/internal/domain"
)

type cacheEntry struct {
	fingerprint domain.Fingerprint
	content     string
	cachedAt    time.Time
}

// ContentCache serves file contents without I/O while an entry is fresh.
// An entry is fresh when it is younger than ttl by the injected clock and
// the file's mtime on disk is not newer than the cached fingerprint.
// The LRU bounds the entry count and its own TTL evicts abandoned entries.
type ContentCache struct {
	fs      domain.FileSystem
	ttl     time.Duration
	now     domain.Clock
	entries *expirable.LRU[string, cacheEntry]
}

// NewContentCache creates a cache holding at most size entries.
func NewContentCache(fsys domain.FileSystem, size int, ttl time.Duration, now domain.Clock) *ContentCache {
	if size <= 0 {
		size = 1
	}
	if now == nil {
		now = time.Now
	}
	return &ContentCache{
		fs:      fsys,
		ttl:     ttl,
		now:     now,
		entries: expirable.NewLRU[string, cacheEntry](size, nil, ttl),
	}
}

// Get returns the content of path, reading it only when no fresh entry exists.
func (c *ContentCache) Get(path string) (string, error) {
	info, err := c.fs.Stat(path)
	if err != nil {
		c.entries.Remove(path)
		return "", domain.NewError(domain.ErrFileSystem, "read", path, err)
	}

	if entry, ok := c.entries.Get(path); ok {
		fresh := c.now().Sub(entry.cachedAt) < c.ttl
		unchanged := !info.ModTime().After(entry.fingerprint.ModifiedTime)
		if fresh && unchanged {
			return entry.content, nil
		}
	}

	data, err := c.fs.ReadFile(path)
	if err != nil {
		c.entries.Remove(path)
		return "", domain.NewError(domain.ErrFileSystem, "read", path, err)
	}

	c.entries.Add(path, cacheEntry{
		fingerprint: domain.Fingerprint{
			ModifiedTime: info.ModTime(),
			Size:         int64(len(data)),
			Checksum:     crc32.ChecksumIEEE(data),
		},
		content:  string(data),
		cachedAt: c.now(),
	})
	return string(data), nil
}

// Invalidate drops the entry for path.
func (c *ContentCache) Invalidate(path string) {
	c.entries.Remove(path)
}

// Clear drops all entries.
func (c *ContentCache) Clear() {
	c.entries.Purge()
}

// Len returns the number of cached entries.
func (c *ContentCache) Len() int {
	return c.entries.Len()
}
