// Package cache provides short-lived memoization of the two hottest store
// queries — turn count and the recent-turn window — keyed per conversation.
// Entries expire after a fixed TTL; invalidation after a write is a
// correctness requirement, not an optimization: without it a burst of calls
// could assemble a context missing the just-written turn.
package cache

import (
	"sync"
	"time"

	"github.com/mbeaufort/mnemo/pkg/memory"
)

// DefaultTTL is the entry lifetime when none is configured.
const DefaultTTL = 5 * time.Second

// Clock abstracts time for deterministic TTL tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

type countEntry struct {
	value      int
	capturedAt time.Time
}

type turnsEntry struct {
	value      []memory.Turn
	capturedAt time.Time
}

// turnsKey identifies one recent-turns window variant.
type turnsKey struct {
	conversationID string
	limit          int
}

// Cache memoizes turn counts and recent-turn windows. Safe for concurrent
// use; keys are always conversation-scoped, so a race can only ever yield a
// stale read bounded by the TTL, never cross-conversation data.
type Cache struct {
	mu     sync.Mutex
	ttl    time.Duration
	clock  Clock
	counts map[string]countEntry
	turns  map[turnsKey]turnsEntry
}

// New creates a cache. A non-positive ttl falls back to DefaultTTL; a nil
// clock falls back to the wall clock.
func New(ttl time.Duration, clock Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = realClock{}
	}
	return &Cache{
		ttl:    ttl,
		clock:  clock,
		counts: make(map[string]countEntry),
		turns:  make(map[turnsKey]turnsEntry),
	}
}

// TurnCount returns the cached count for a conversation, if fresh.
func (c *Cache) TurnCount(conversationID string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.counts[conversationID]
	if !ok {
		return 0, false
	}
	if c.expired(e.capturedAt) {
		delete(c.counts, conversationID)
		return 0, false
	}
	return e.value, true
}

// SetTurnCount stores a count for a conversation.
func (c *Cache) SetTurnCount(conversationID string, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[conversationID] = countEntry{value: count, capturedAt: c.clock.Now()}
}

// RecentTurns returns the cached window for (conversation, limit), if fresh.
// The returned slice is a copy; callers cannot alias cache state.
func (c *Cache) RecentTurns(conversationID string, limit int) ([]memory.Turn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := turnsKey{conversationID: conversationID, limit: limit}
	e, ok := c.turns[key]
	if !ok {
		return nil, false
	}
	if c.expired(e.capturedAt) {
		delete(c.turns, key)
		return nil, false
	}

	out := make([]memory.Turn, len(e.value))
	copy(out, e.value)
	return out, true
}

// SetRecentTurns stores a window for (conversation, limit). The slice is
// copied on write as well, so the caller may keep mutating its own copy.
func (c *Cache) SetRecentTurns(conversationID string, limit int, turns []memory.Turn) {
	stored := make([]memory.Turn, len(turns))
	copy(stored, turns)

	c.mu.Lock()
	defer c.mu.Unlock()
	key := turnsKey{conversationID: conversationID, limit: limit}
	c.turns[key] = turnsEntry{value: stored, capturedAt: c.clock.Now()}
}

// Invalidate evicts every entry for a conversation: the count and all
// limit variants of the recent-turn window. Called immediately after any
// new turn is persisted for the conversation.
func (c *Cache) Invalidate(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.counts, conversationID)
	for key := range c.turns {
		if key.conversationID == conversationID {
			delete(c.turns, key)
		}
	}
}

// Purge drops every entry in both caches.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = make(map[string]countEntry)
	c.turns = make(map[turnsKey]turnsEntry)
}

// Len returns the total number of live entries across both caches.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.counts) + len(c.turns)
}

func (c *Cache) expired(capturedAt time.Time) bool {
	return c.clock.Now().Sub(capturedAt) >= c.ttl
}
