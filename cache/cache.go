package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"klik-api/models"
	"klik-api/utils"
)

// Cache provides a simple in-memory cache with TTL for profile summaries
// looked up by username and for the trending hashtag list.
type Cache struct {
	profileCache      map[string]*profileCacheEntry
	profileCacheMutex sync.RWMutex
	trendingCache     *trendingCacheEntry
	trendingMutex     sync.RWMutex
	profileTTL        time.Duration
	trendingTTL       time.Duration
}

type profileCacheEntry struct {
	profile   models.ProfileSummary
	timestamp time.Time
}

type trendingCacheEntry struct {
	hashtags  []utils.HashtagCount
	timestamp time.Time
}

// New creates a new Cache instance. Call Run to evict expired entries.
func New(profileTTL, trendingTTL time.Duration) *Cache {
	return &Cache{
		profileCache: make(map[string]*profileCacheEntry),
		profileTTL:   profileTTL,
		trendingTTL:  trendingTTL,
	}
}

func key(username string) string {
	return strings.ToLower(username)
}

// GetProfiles resolves usernames to profile summaries, using loader for cache
// misses. Unknown usernames are absent from the result.
func (c *Cache) GetProfiles(usernames []string, loader func([]string) (map[string]models.ProfileSummary, error)) (map[string]models.ProfileSummary, error) {
	result := make(map[string]models.ProfileSummary)
	var missed []string

	c.profileCacheMutex.RLock()
	for _, username := range usernames {
		if entry, exists := c.profileCache[key(username)]; exists {
			if time.Since(entry.timestamp) < c.profileTTL {
				result[key(username)] = entry.profile
				continue
			}
		}
		missed = append(missed, username)
	}
	c.profileCacheMutex.RUnlock()

	if len(missed) == 0 {
		return result, nil
	}

	loaded, err := loader(missed)
	if err != nil {
		return nil, err
	}

	c.profileCacheMutex.Lock()
	now := time.Now()
	for username, profile := range loaded {
		c.profileCache[key(username)] = &profileCacheEntry{
			profile:   profile,
			timestamp: now,
		}
		result[key(username)] = profile
	}
	c.profileCacheMutex.Unlock()

	return result, nil
}

// InvalidateProfile drops a cached username, e.g. after a rename or avatar change.
func (c *Cache) InvalidateProfile(username string) {
	c.profileCacheMutex.Lock()
	delete(c.profileCache, key(username))
	c.profileCacheMutex.Unlock()
}

// GetTrending returns the cached trending hashtags or calls the loader.
func (c *Cache) GetTrending(loader func() ([]utils.HashtagCount, error)) ([]utils.HashtagCount, error) {
	c.trendingMutex.RLock()
	if c.trendingCache != nil && time.Since(c.trendingCache.timestamp) < c.trendingTTL {
		hashtags := c.trendingCache.hashtags
		c.trendingMutex.RUnlock()
		return hashtags, nil
	}
	c.trendingMutex.RUnlock()

	hashtags, err := loader()
	if err != nil {
		return nil, err
	}

	c.trendingMutex.Lock()
	c.trendingCache = &trendingCacheEntry{
		hashtags:  hashtags,
		timestamp: time.Now(),
	}
	c.trendingMutex.Unlock()

	return hashtags, nil
}

func (c *Cache) InvalidateTrending() {
	c.trendingMutex.Lock()
	c.trendingCache = nil
	c.trendingMutex.Unlock()
}

// Run periodically removes expired entries until ctx is cancelled.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *Cache) cleanup() {
	c.profileCacheMutex.Lock()
	now := time.Now()
	for username, entry := range c.profileCache {
		if now.Sub(entry.timestamp) > c.profileTTL {
			delete(c.profileCache, username)
		}
	}
	c.profileCacheMutex.Unlock()

	c.trendingMutex.Lock()
	if c.trendingCache != nil && time.Since(c.trendingCache.timestamp) > c.trendingTTL {
		c.trendingCache = nil
	}
	c.trendingMutex.Unlock()
}
