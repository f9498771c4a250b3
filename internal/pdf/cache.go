package pdf

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const cacheFileVersion = "1.0"

// TranslationCache stores translations keyed by a hash of the source text,
// so identical blocks are translated once per run and across runs.
type TranslationCache struct {
	cachePath string
	cache     map[string]CacheEntry // hash -> CacheEntry
	mu        sync.RWMutex
}

// NewTranslationCache creates a cache backed by the given file path.
// An empty path makes the cache memory-only.
func NewTranslationCache(cachePath string) *TranslationCache {
	return &TranslationCache{
		cachePath: cachePath,
		cache:     make(map[string]CacheEntry),
	}
}

// ComputeHash returns the SHA-256 hex digest of the text.
func (c *TranslationCache) ComputeHash(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}

// Get returns the cached translation for text, if present.
func (c *TranslationCache) Get(text string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.cache[c.ComputeHash(text)]
	if !ok {
		return "", false
	}
	return entry.Translation, true
}

// Set stores a translation for text.
func (c *TranslationCache) Set(text, translation string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := c.ComputeHash(text)
	c.cache[hash] = CacheEntry{
		Hash:        hash,
		Original:    text,
		Translation: translation,
		CreatedAt:   time.Now(),
	}
}

// Load reads the cache file into memory. A missing file yields an empty
// cache without error.
func (c *TranslationCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachePath == "" {
		return nil
	}

	if _, err := os.Stat(c.cachePath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(c.cachePath)
	if err != nil {
		return NewPDFError(ErrCacheFailed, "failed to read cache file", err)
	}

	var cacheFile CacheFile
	if err := json.Unmarshal(data, &cacheFile); err != nil {
		return NewPDFError(ErrCacheFailed, "failed to parse cache file", err)
	}

	c.cache = make(map[string]CacheEntry, len(cacheFile.Entries))
	for _, entry := range cacheFile.Entries {
		c.cache[entry.Hash] = entry
	}

	return nil
}

// Save writes the cache to its file.
func (c *TranslationCache) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cachePath == "" {
		return nil
	}

	entries := make([]CacheEntry, 0, len(c.cache))
	for _, entry := range c.cache {
		entries = append(entries, entry)
	}

	cacheFile := CacheFile{
		Version: cacheFileVersion,
		Entries: entries,
	}

	data, err := json.MarshalIndent(cacheFile, "", "  ")
	if err != nil {
		return NewPDFError(ErrCacheFailed, "failed to marshal cache", err)
	}

	if dir := filepath.Dir(c.cachePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return NewPDFError(ErrCacheFailed, "failed to create cache directory", err)
		}
	}

	if err := os.WriteFile(c.cachePath, data, 0644); err != nil {
		return NewPDFError(ErrCacheFailed, "failed to write cache file", err)
	}

	return nil
}

// FilterCached partitions blocks into those with a cached translation and
// those that still need the backend.
func (c *TranslationCache) FilterCached(blocks []TextBlock) (cached []TranslatedBlock, uncached []TextBlock) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached = make([]TranslatedBlock, 0)
	uncached = make([]TextBlock, 0)

	for _, block := range blocks {
		if entry, ok := c.cache[c.ComputeHash(block.Text)]; ok {
			cached = append(cached, TranslatedBlock{
				TextBlock:      block,
				TranslatedText: entry.Translation,
				FromCache:      true,
			})
		} else {
			uncached = append(uncached, block)
		}
	}

	return cached, uncached
}

// Size returns the number of cached entries.
func (c *TranslationCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Clear removes all entries.
func (c *TranslationCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]CacheEntry)
}

// GetCachePath returns the cache file path.
func (c *TranslationCache) GetCachePath() string {
	return c.cachePath
}

// SetCachePath sets the cache file path.
func (c *TranslationCache) SetCachePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cachePath = path
}
