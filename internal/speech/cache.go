package speech

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/core"
)

const cacheFileMode = 0o644

// CachedSynthesizer wraps another synthesizer with a disk-backed LRU cache
// keyed by provider, voice and text.
type CachedSynthesizer struct {
	next     core.Synthesizer
	provider string
	dir      string
	maxBytes int64
	log      *logger.Logger

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	size       int64
	accessedAt time.Time
	path       string
	format     string
}

// NewCachedSynthesizer creates dir if needed and indexes any clips already in it.
func NewCachedSynthesizer(
	next core.Synthesizer,
	provider, dir string,
	maxBytes int64,
	log *logger.Logger,
) (*CachedSynthesizer, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("cache: create dir: %w", err)
	}

	cache := &CachedSynthesizer{
		next:     next,
		provider: provider,
		dir:      dir,
		maxBytes: maxBytes,
		log:      log,
		entries:  make(map[string]*cacheEntry),
	}
	cache.loadExisting()

	return cache, nil
}

// CacheKey produces a deterministic SHA-256 hex key from synthesis parameters.
func CacheKey(provider, voice, text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "provider=%s\nvoice=%s\ntext=%s\n", provider, voice, text)

	return fmt.Sprintf("%x", h.Sum(nil))
}

// Synthesize returns a cached clip or delegates and stores the result.
// Cache write failures are logged and never fail the call.
func (c *CachedSynthesizer) Synthesize(ctx context.Context, text, voice string) (*core.AudioClip, error) {
	key := CacheKey(c.provider, voice, text)

	clip, ok := c.get(key)
	if ok {
		return clip, nil
	}

	clip, err := c.next.Synthesize(ctx, text, voice)
	if err != nil {
		return nil, err
	}

	err = c.put(key, clip)
	if err != nil {
		c.log.Warn("Failed to cache clip for voice %s: %v", voice, err)
	}

	return clip, nil
}

// Len returns the number of cached clips.
func (c *CachedSynthesizer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *CachedSynthesizer) get(key string) (*core.AudioClip, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	data, err := os.ReadFile(entry.path)
	if err != nil {
		c.log.Warn("Cache file %s unreadable, removing entry: %v", entry.path, err)
		delete(c.entries, key)

		return nil, false
	}

	entry.accessedAt = time.Now()

	return &core.AudioClip{Data: data, Format: entry.format}, true
}

// put stores data under key, evicting least-recently-used entries first.
// Clips larger than the whole cache are skipped.
func (c *CachedSynthesizer) put(key string, clip *core.AudioClip) error {
	newSize := int64(len(clip.Data))
	if newSize > c.maxBytes {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		_ = os.Remove(old.path)
		delete(c.entries, key)
	}

	c.evict(newSize)

	path := filepath.Join(c.dir, key+"."+clip.Format)

	err := os.WriteFile(path, clip.Data, cacheFileMode)
	if err != nil {
		return fmt.Errorf("cache: write: %w", err)
	}

	c.entries[key] = &cacheEntry{size: newSize, accessedAt: time.Now(), path: path, format: clip.Format}

	return nil
}

// evict removes least-recently-used entries until total+needed fits. Must be called with mu held.
func (c *CachedSynthesizer) evict(needed int64) {
	total := c.totalSize()
	for total+needed > c.maxBytes {
		oldest := c.oldestKey()
		if oldest == "" {
			break
		}

		entry := c.entries[oldest]
		_ = os.Remove(entry.path)
		delete(c.entries, oldest)
		total -= entry.size
	}
}

func (c *CachedSynthesizer) totalSize() int64 {
	var total int64
	for _, entry := range c.entries {
		total += entry.size
	}

	return total
}

func (c *CachedSynthesizer) oldestKey() string {
	var (
		oldest     string
		oldestTime time.Time
	)

	for key, entry := range c.entries {
		if oldest == "" || entry.accessedAt.Before(oldestTime) {
			oldest = key
			oldestTime = entry.accessedAt
		}
	}

	return oldest
}

// loadExisting rebuilds the index from files left by a previous run.
func (c *CachedSynthesizer) loadExisting() {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		c.log.Warn("Cache: failed to list %s: %v", c.dir, err)

		return
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		key, format, found := strings.Cut(file.Name(), ".")
		if !found || len(key) != sha256.Size*2 {
			continue
		}

		info, infoErr := file.Info()
		if infoErr != nil {
			continue
		}

		c.entries[key] = &cacheEntry{
			size:       info.Size(),
			accessedAt: info.ModTime(),
			path:       filepath.Join(c.dir, file.Name()),
			format:     format,
		}
	}

	if len(c.entries) > 0 {
		c.log.Info("Loaded %d cached clips (%d bytes)", len(c.entries), c.totalSize())
		c.evict(0)
	}
}
