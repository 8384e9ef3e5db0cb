// Package state persists the portal's client state (session token, selected
// portfolio and cached portfolio data) in a KeyValueStorage.
//
// Every value is stored in a versioned JSON envelope. A value that does not
// decode as the current version is treated as absent and removed, so older
// layouts never break a running portal.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/interfaces"
	"github.com/bobmcallan/folio-portal/internal/models"
)

// SchemaVersion is bumped whenever a persisted layout changes.
const SchemaVersion = 1

// Persisted keys.
const (
	KeyToken             = "token"
	KeySelectedID        = "selectedPortfolioId"
	KeySelectedName      = "selectedPortfolioName"
	KeySelectedPortfolio = "selectedPortfolioData"
)

// Prefixes of cache entries. The first three are the session-scoped layout
// written by the cache package; the rest are legacy unscoped layouts that are
// never read, only purged.
var cachePrefixes = []string{
	"history_",
	"lastValue_",
	"positions_",
	"portfolio-value-history-",
}

type envelope struct {
	Version   int             `json:"v"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp,omitzero"`
}

// Store reads and writes typed client state.
type Store struct {
	kv     interfaces.KeyValueStorage
	logger *common.Logger
}

// New creates a Store over kv.
func New(kv interfaces.KeyValueStorage, logger *common.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// Token returns the persisted session token, or "" when there is none.
func (s *Store) Token(ctx context.Context) (string, error) {
	var tok string
	_, ok, err := s.read(ctx, KeyToken, &tok)
	if err != nil || !ok {
		return "", err
	}
	return tok, nil
}

// SetToken persists the session token.
func (s *Store) SetToken(ctx context.Context, token string) error {
	return s.write(ctx, KeyToken, token, time.Time{})
}

// DeleteToken removes the session token.
func (s *Store) DeleteToken(ctx context.Context) error {
	return s.kv.Delete(ctx, KeyToken)
}

// Selection returns the last selected portfolio, or nil when none is stored.
// The id is authoritative; name and snapshot are optional.
func (s *Store) Selection(ctx context.Context) (*models.Selection, error) {
	var sel models.Selection
	_, ok, err := s.read(ctx, KeySelectedID, &sel.ID)
	if err != nil || !ok || sel.ID == "" {
		return nil, err
	}
	if _, _, err := s.read(ctx, KeySelectedName, &sel.Name); err != nil {
		return nil, err
	}
	if _, _, err := s.read(ctx, KeySelectedPortfolio, &sel.Portfolio); err != nil {
		return nil, err
	}
	if sel.Portfolio.ID == "" {
		sel.Portfolio.ID = sel.ID
	}
	if sel.Name == "" {
		sel.Name = sel.Portfolio.Name
	}
	return &sel, nil
}

// SetSelection persists the selected portfolio.
func (s *Store) SetSelection(ctx context.Context, sel models.Selection) error {
	if sel.ID == "" {
		return errors.New("selection requires a portfolio id")
	}
	if err := s.write(ctx, KeySelectedID, sel.ID, time.Time{}); err != nil {
		return err
	}
	if err := s.write(ctx, KeySelectedName, sel.Name, time.Time{}); err != nil {
		return err
	}
	return s.write(ctx, KeySelectedPortfolio, sel.Portfolio, time.Time{})
}

// ClearSelection removes the selected portfolio.
func (s *Store) ClearSelection(ctx context.Context) error {
	for _, k := range []string{KeySelectedID, KeySelectedName, KeySelectedPortfolio} {
		if err := s.kv.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// Entry reads a timestamped cache entry into dst. ok is false when the key
// is missing or unreadable.
func (s *Store) Entry(ctx context.Context, key string, dst any) (fetchedAt time.Time, ok bool, err error) {
	return s.read(ctx, key, dst)
}

// PutEntry writes a timestamped cache entry.
func (s *Store) PutEntry(ctx context.Context, key string, data any, fetchedAt time.Time) error {
	return s.write(ctx, key, data, fetchedAt)
}

// ClearCache removes every cache entry, in every scope and legacy layout.
// It returns the number of keys removed.
func (s *Store) ClearCache(ctx context.Context) (int, error) {
	all, err := s.kv.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for key := range all {
		if !isCacheKey(key) {
			continue
		}
		if err := s.kv.Delete(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func isCacheKey(key string) bool {
	for _, p := range cachePrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func (s *Store) read(ctx context.Context, key string, dst any) (time.Time, bool, error) {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil || env.Version != SchemaVersion {
		s.discard(ctx, key, "unsupported layout")
		return time.Time{}, false, nil
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		s.discard(ctx, key, "undecodable data")
		return time.Time{}, false, nil
	}
	return env.Timestamp, true, nil
}

func (s *Store) write(ctx context.Context, key string, data any, ts time.Time) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	raw, err := json.Marshal(envelope{Version: SchemaVersion, Data: payload, Timestamp: ts})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, string(raw))
}

func (s *Store) discard(ctx context.Context, key, reason string) {
	s.logger.Warn().Str("key", key).Str("reason", reason).Msg("discarding persisted value")
	if err := s.kv.Delete(ctx, key); err != nil {
		s.logger.Warn().Str("key", key).Err(err).Msg("failed to discard persisted value")
	}
}
