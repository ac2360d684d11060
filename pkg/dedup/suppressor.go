// Package dedup suppresses redelivered webhook events for a short window.
package dedup

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"reviewhook/pkg/event"
)

// DefaultTTL is how long a delivery fingerprint stays registered.
const DefaultTTL = 60 * time.Second

const defaultCacheSize = 4096

// Cache is the key-value contract the suppressor needs. The in-memory
// implementation below is the default; a server-side cache with atomic
// check-and-set can be swapped in behind the same interface.
type Cache interface {
	Exists(key string) bool
	Put(key string)
}

// Suppressor detects near-simultaneous redeliveries of the same webhook.
//
// The check-then-insert is not atomic across processes. Worst case is a
// rare double-processing, which downstream automation tolerates because it
// is idempotent per PR and commit.
type Suppressor struct {
	platform event.Platform
	cache    Cache
}

// New creates a Suppressor scoped to one platform with an in-memory TTL
// cache. A zero ttl uses DefaultTTL.
func New(platform event.Platform, ttl time.Duration) *Suppressor {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Suppressor{
		platform: platform,
		cache:    newMemoryCache(ttl),
	}
}

// NewWithCache creates a Suppressor backed by a caller-provided cache.
func NewWithCache(platform event.Platform, cache Cache) *Suppressor {
	return &Suppressor{platform: platform, cache: cache}
}

// IsDuplicate reports whether this (resource, event type, fingerprint)
// triple has been seen within the TTL window, registering it if not.
func (s *Suppressor) IsDuplicate(resourceID, eventType string, fingerprint map[string]interface{}) bool {
	key := s.cacheKey(resourceID, eventType, fingerprint)
	if s.cache.Exists(key) {
		return true
	}
	s.cache.Put(key)
	return false
}

func (s *Suppressor) cacheKey(resourceID, eventType string, fingerprint map[string]interface{}) string {
	return fmt.Sprintf("webhook:%s:%s:%s", s.platform, resourceID, Fingerprint(resourceID, eventType, fingerprint))
}

// Fingerprint computes a stable hash over a normalized subset of the
// payload. Only caller-selected identifying fields participate, so
// incidental field reordering in the raw payload cannot defeat the match.
func Fingerprint(resourceID, eventType string, fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(resourceID)
	b.WriteByte('|')
	b.WriteString(eventType)
	for _, key := range keys {
		b.WriteByte('|')
		b.WriteString(key)
		b.WriteByte('=')
		fmt.Fprintf(&b, "%v", fields[key])
	}

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// memoryCache adapts an expiring LRU to the Cache interface. The TTL is
// fixed per cache instance.
type memoryCache struct {
	entries *lru.LRU[string, struct{}]
}

func newMemoryCache(ttl time.Duration) *memoryCache {
	return &memoryCache{
		entries: lru.NewLRU[string, struct{}](defaultCacheSize, nil, ttl),
	}
}

func (c *memoryCache) Exists(key string) bool {
	_, ok := c.entries.Get(key)
	return ok
}

func (c *memoryCache) Put(key string) {
	c.entries.Add(key, struct{}{})
}
