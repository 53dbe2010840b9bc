// Package client implements the session-side view of posts: an addressable
// cache of server responses plus optimistic vote and comment mutations that
// are reconciled or rolled back against the server's answer.
package client

import "sync"

// ResourceKind names a cached view family.
type ResourceKind string

const (
	// ResourcePostDetail caches one post's detail view.
	ResourcePostDetail ResourceKind = "post-detail"
	// ResourceFeed caches the today's-posts feed. A single feed exists per
	// session, addressed with an empty id.
	ResourceFeed ResourceKind = "todays-feed"
	// ResourceUserVote caches the session user's vote on one post.
	ResourceUserVote ResourceKind = "user-vote"
	// ResourceComments caches the fetched comment pages of one post.
	ResourceComments ResourceKind = "comments"
)

// EntryKey addresses one cached view.
type EntryKey struct {
	Kind ResourceKind
	ID   string
}

// ViewCache is the session's addressable view store. Entries are replaced
// whole, never mutated in place; that discipline is what makes Snapshot and
// Restore exact.
type ViewCache struct {
	mu      sync.RWMutex
	entries map[EntryKey]interface{}
}

// NewViewCache constructs an empty cache.
func NewViewCache() *ViewCache {
	return &ViewCache{entries: make(map[EntryKey]interface{})}
}

// Get returns the cached value for the key, if present.
func (c *ViewCache) Get(key EntryKey) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.entries[key]
	return value, ok
}

// Set stores a value under the key.
func (c *ViewCache) Set(key EntryKey, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

// Invalidate drops the key so the next read refetches from the server.
func (c *ViewCache) Invalidate(keys ...EntryKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
}

// snapshotEntry records a value together with whether it existed at all, so
// restoring can distinguish "was absent" from "was nil".
type snapshotEntry struct {
	value   interface{}
	present bool
}

// Snapshot captures the exact state of the given keys for later rollback.
type Snapshot struct {
	entries map[EntryKey]snapshotEntry
}

// Snapshot captures the listed keys' current values and presence.
func (c *ViewCache) Snapshot(keys ...EntryKey) Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snapshot := Snapshot{entries: make(map[EntryKey]snapshotEntry, len(keys))}
	for _, key := range keys {
		value, ok := c.entries[key]
		snapshot.entries[key] = snapshotEntry{value: value, present: ok}
	}
	return snapshot
}

// Restore puts every snapshotted key back to its captured state, removing
// entries that did not exist at capture time.
func (c *ViewCache) Restore(snapshot Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range snapshot.entries {
		if entry.present {
			c.entries[key] = entry.value
		} else {
			delete(c.entries, key)
		}
	}
}
