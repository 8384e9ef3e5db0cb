package interfaces

import (
	"context"

	"github.com/bobmcallan/folio-portal/internal/models"
)

// PortfolioAPI is the remote portfolio API as consumed by the portal.
// Every call but Login is authenticated with the bearer token.
type PortfolioAPI interface {
	Login(ctx context.Context, username, password string) (string, error)
	ListPortfolios(ctx context.Context, token string) ([]models.Portfolio, error)
	ValueHistory(ctx context.Context, token string, id models.PortfolioID) (*models.ValueHistory, error)
	LastValue(ctx context.Context, token string, id models.PortfolioID) (*models.LastValue, error)
	Positions(ctx context.Context, token string, id models.PortfolioID) ([]models.Position, error)
}
