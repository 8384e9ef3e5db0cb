// Package portfolio fetches portfolio data for the current session, serving
// the selection cache first where its freshness window allows.
package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/folio-portal/internal/cache"
	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/interfaces"
	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/session"
)

// Service is the data layer shared by the viewer, the MCP tools and the CLI.
type Service struct {
	api     interfaces.PortfolioAPI
	cache   *cache.SelectionCache
	session *session.Manager
	logger  *common.Logger
}

// NewService creates a Service.
func NewService(api interfaces.PortfolioAPI, c *cache.SelectionCache, sess *session.Manager, logger *common.Logger) *Service {
	return &Service{api: api, cache: c, session: sess, logger: logger}
}

// Session returns the session manager.
func (s *Service) Session() *session.Manager { return s.session }

// Portfolios lists the user's portfolios. The list is never cached.
func (s *Service) Portfolios(ctx context.Context) ([]models.Portfolio, error) {
	token, err := s.session.Token()
	if err != nil {
		return nil, err
	}
	list, err := s.api.ListPortfolios(ctx, token)
	if err != nil {
		return nil, s.fail(ctx, token, "portfolios", "", err)
	}
	return list, nil
}

// Portfolio finds one portfolio by id in the user's list.
func (s *Service) Portfolio(ctx context.Context, id models.PortfolioID) (models.Portfolio, error) {
	list, err := s.Portfolios(ctx)
	if err != nil {
		return models.Portfolio{}, err
	}
	for _, p := range list {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Portfolio{}, fmt.Errorf("portfolio %s: %w", id, interfaces.ErrNotFound)
}

// History returns the value history of id, from the cache while fresh.
func (s *Service) History(ctx context.Context, id models.PortfolioID) (*models.ValueHistory, error) {
	token, err := s.session.Token()
	if err != nil {
		return nil, err
	}
	scope := cache.ScopeOf(token)

	var cached models.ValueHistory
	if s.cache.Get(ctx, scope, cache.KindHistory, id, &cached) {
		return &cached, nil
	}

	history, err := s.api.ValueHistory(ctx, token, id)
	if err != nil {
		return nil, s.fail(ctx, token, "value_history", id, err)
	}
	s.put(ctx, token, cache.KindHistory, id, history)
	return history, nil
}

// Positions returns the open positions of id, from the cache while fresh.
func (s *Service) Positions(ctx context.Context, id models.PortfolioID) ([]models.Position, error) {
	token, err := s.session.Token()
	if err != nil {
		return nil, err
	}
	scope := cache.ScopeOf(token)

	var cached []models.Position
	if s.cache.Get(ctx, scope, cache.KindPositions, id, &cached) {
		return cached, nil
	}

	list, err := s.api.Positions(ctx, token, id)
	if err != nil {
		return nil, s.fail(ctx, token, "positions", id, err)
	}
	s.put(ctx, token, cache.KindPositions, id, list)
	return list, nil
}

// LastValue always fetches the latest value and refreshes the cached copy.
func (s *Service) LastValue(ctx context.Context, id models.PortfolioID) (*models.LastValue, error) {
	token, err := s.session.Token()
	if err != nil {
		return nil, err
	}

	last, err := s.api.LastValue(ctx, token, id)
	if err != nil {
		return nil, s.fail(ctx, token, "value_last", id, err)
	}
	s.put(ctx, token, cache.KindLastValue, id, last)
	return last, nil
}

// CachedLastValue returns the last value seen for id in this session, of any
// age, for display while LastValue revalidates.
func (s *Service) CachedLastValue(ctx context.Context, id models.PortfolioID) (*models.LastValue, time.Time, bool) {
	token, err := s.session.Token()
	if err != nil {
		return nil, time.Time{}, false
	}
	var last models.LastValue
	at, ok := s.cache.Peek(ctx, cache.ScopeOf(token), cache.KindLastValue, id, &last)
	if !ok {
		return nil, time.Time{}, false
	}
	return &last, at, true
}

// put caches data fetched with token, unless the session has ended or
// changed since the fetch started.
func (s *Service) put(ctx context.Context, token string, kind cache.Kind, id models.PortfolioID, data any) {
	stored, err := s.session.WhileCurrent(token, func() error {
		return s.cache.Put(ctx, cache.ScopeOf(token), kind, id, data)
	})
	if err != nil {
		s.logger.Warn().Str("kind", string(kind)).Str("portfolio_id", id.String()).Err(err).Msg("failed to cache response")
		return
	}
	if !stored {
		s.logger.Debug().Str("kind", string(kind)).Str("portfolio_id", id.String()).Msg("session ended during fetch, response not cached")
	}
}

func (s *Service) fail(ctx context.Context, token, endpoint string, id models.PortfolioID, err error) error {
	s.logger.Warn().Str("endpoint", endpoint).Str("portfolio_id", id.String()).Err(err).Msg("portfolio API call failed")
	return s.session.HandleError(ctx, token, err)
}
