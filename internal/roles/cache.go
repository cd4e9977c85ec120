package roles

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-erp/meridian/internal/hierarchy"
)

// Cache stores resolved effective permission sets in Redis. Keys embed the
// version of the role and of every ancestor, so any edit anywhere on the
// chain structurally misses the stale entry; no explicit invalidation walk
// is needed and old keys age out by TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client degrades to always
// missing, which keeps tests and development setups simple.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Key builds the version-chain cache key for a role within a snapshot.
func (c *Cache) Key(snap *hierarchy.Snapshot, roleID string) string {
	h := fnv.New64a()
	if role, ok := snap.Role(roleID); ok {
		fmt.Fprintf(h, "%s@%d", role.ID, role.Version)
	}
	for _, ancestor := range snap.Ancestors(roleID) {
		fmt.Fprintf(h, "|%s@%d", ancestor.ID, ancestor.Version)
	}
	return fmt.Sprintf("roles:eff:%s:%x", roleID, h.Sum64())
}

// Get loads a cached effective set. The second return reports a hit.
func (c *Cache) Get(ctx context.Context, key string) ([]hierarchy.PermissionEntry, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var entries []hierarchy.PermissionEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

// Set stores an effective set under the given key.
func (c *Cache) Set(ctx context.Context, key string, entries []hierarchy.PermissionEntry) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, raw, c.ttl)
}
