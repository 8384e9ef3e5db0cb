// Package cache remembers portfolio data fetched for the selected portfolio
// so reopening it within the freshness window needs no network round-trip.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/metrics"
	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/state"
)

// Kind is the kind of cached data.
type Kind string

const (
	KindHistory   Kind = "history"
	KindLastValue Kind = "lastValue"
	KindPositions Kind = "positions"
)

// Scope partitions entries by session so one user's data is never served to
// another on the same device.
type Scope string

// ScopeOf derives a session scope from a token without persisting the token.
func ScopeOf(token string) Scope {
	sum := sha256.Sum256([]byte(token))
	return Scope(hex.EncodeToString(sum[:6]))
}

// MakeKey builds the persisted key for kind, scope and portfolio id.
func MakeKey(kind Kind, scope Scope, id models.PortfolioID) string {
	return string(kind) + "_" + string(scope) + "_" + id.String()
}

// entry wraps cached data with the time it was fetched.
type entry struct {
	data      json.RawMessage
	fetchedAt time.Time
}

// SelectionCache is a write-through cache: entries live in memory and in the
// persisted state store, so they survive restarts. A zero TTL for a kind
// means its entries never go stale on their own.
// Thread-safe with sync.RWMutex.
type SelectionCache struct {
	mu     sync.RWMutex
	items  map[string]entry
	store  *state.Store
	ttl    map[Kind]time.Duration
	now    func() time.Time
	logger *common.Logger
}

// New creates a SelectionCache persisting to store.
func New(store *state.Store, ttl map[Kind]time.Duration, logger *common.Logger) *SelectionCache {
	return &SelectionCache{
		items:  make(map[string]entry),
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// SetClock replaces the clock used for freshness checks and timestamps.
func (c *SelectionCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get decodes a fresh entry into dst. It reports false when the entry is
// missing or older than the kind's TTL; the caller must then re-fetch and Put.
func (c *SelectionCache) Get(ctx context.Context, scope Scope, kind Kind, id models.PortfolioID, dst any) bool {
	e, ok := c.lookup(ctx, MakeKey(kind, scope, id))
	if !ok {
		c.record(kind, id, "miss")
		return false
	}
	if ttl := c.ttl[kind]; ttl > 0 && !common.IsFreshAt(e.fetchedAt, c.clock(), ttl) {
		c.record(kind, id, "stale")
		return false
	}
	if err := json.Unmarshal(e.data, dst); err != nil {
		c.record(kind, id, "miss")
		return false
	}
	c.record(kind, id, "hit")
	return true
}

// Peek decodes an entry into dst regardless of age and returns when it was
// fetched. It backs stale-while-revalidate reads.
func (c *SelectionCache) Peek(ctx context.Context, scope Scope, kind Kind, id models.PortfolioID, dst any) (time.Time, bool) {
	e, ok := c.lookup(ctx, MakeKey(kind, scope, id))
	if !ok {
		return time.Time{}, false
	}
	if err := json.Unmarshal(e.data, dst); err != nil {
		return time.Time{}, false
	}
	return e.fetchedAt, true
}

// Put stores data fetched now.
func (c *SelectionCache) Put(ctx context.Context, scope Scope, kind Kind, id models.PortfolioID, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s cache entry: %w", kind, err)
	}
	key := MakeKey(kind, scope, id)
	e := entry{data: raw, fetchedAt: c.clock()}

	if err := c.store.PutEntry(ctx, key, e.data, e.fetchedAt); err != nil {
		return err
	}

	c.mu.Lock()
	c.items[key] = e
	c.mu.Unlock()
	return nil
}

// Clear drops every entry, in memory and persisted, across all scopes.
func (c *SelectionCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.items = make(map[string]entry)
	c.mu.Unlock()

	removed, err := c.store.ClearCache(ctx)
	if err != nil {
		return err
	}
	c.logger.Debug().Int("removed", removed).Msg("selection cache cleared")
	return nil
}

func (c *SelectionCache) lookup(ctx context.Context, key string) (entry, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if ok {
		return e, true
	}

	var raw json.RawMessage
	fetchedAt, ok, err := c.store.Entry(ctx, key, &raw)
	if err != nil {
		c.logger.Warn().Str("key", key).Err(err).Msg("failed to read cache entry")
		return entry{}, false
	}
	if !ok {
		return entry{}, false
	}

	e = entry{data: raw, fetchedAt: fetchedAt}
	c.mu.Lock()
	if _, exists := c.items[key]; !exists {
		c.items[key] = e
	}
	c.mu.Unlock()
	return e, true
}

func (c *SelectionCache) clock() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now()
}

func (c *SelectionCache) record(kind Kind, id models.PortfolioID, result string) {
	metrics.CacheLookupsTotal.WithLabelValues(string(kind), result).Inc()
	c.logger.Debug().Str("kind", string(kind)).Str("portfolio_id", id.String()).Str("result", result).Msg("cache lookup")
}
