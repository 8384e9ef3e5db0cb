package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bobmcallan/folio-portal/internal/metrics"
	"github.com/bobmcallan/folio-portal/internal/models"
)

const maxBodyBytes = 1 << 20

// PortfolioClient communicates with the remote portfolio REST API.
type PortfolioClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewPortfolioClient creates a client targeting baseURL with the given
// per-request timeout.
func NewPortfolioClient(baseURL string, timeout time.Duration) *PortfolioClient {
	return &PortfolioClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Login exchanges credentials for an access token.
// POST /login (form-encoded) -> { access_token } or { detail }
func (c *PortfolioClient) Login(ctx context.Context, username, password string) (token string, err error) {
	defer func(start time.Time) { metrics.ObserveAPI("login", start, err) }(time.Now())

	form := url.Values{"username": {username}, "password": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req, "login")
	if err != nil {
		return "", err
	}

	if status < 200 || status > 299 {
		var failure struct {
			Detail json.RawMessage `json:"detail"`
		}
		_ = json.Unmarshal(body, &failure)
		if status >= 400 && status < 500 {
			return "", &AuthError{StatusCode: status, Detail: detailText(failure.Detail)}
		}
		return "", &StatusError{Endpoint: "login", StatusCode: status, Body: string(body)}
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse login response: %w", err)
	}
	if result.AccessToken == "" {
		return "", &AuthError{StatusCode: status, Detail: "no access token returned"}
	}
	return result.AccessToken, nil
}

// ListPortfolios fetches the user's portfolios.
// GET /portfolios/ -> [Portfolio]
func (c *PortfolioClient) ListPortfolios(ctx context.Context, token string) (list []models.Portfolio, err error) {
	defer func(start time.Time) { metrics.ObserveAPI("portfolios", start, err) }(time.Now())
	if err = c.getJSON(ctx, token, "/portfolios/", "portfolios", &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Portfolio{}
	}
	return list, nil
}

// ValueHistory fetches the daily value series of a portfolio.
// GET /portfolios/{id}/value-history -> { daily_values: [DailyValue] }
func (c *PortfolioClient) ValueHistory(ctx context.Context, token string, id models.PortfolioID) (history *models.ValueHistory, err error) {
	defer func(start time.Time) { metrics.ObserveAPI("value_history", start, err) }(time.Now())
	var result models.ValueHistory
	if err = c.getJSON(ctx, token, "/portfolios/"+url.PathEscape(id.String())+"/value-history", "value_history", &result); err != nil {
		return nil, err
	}
	if result.DailyValues == nil {
		result.DailyValues = []models.DailyValue{}
	}
	return &result, nil
}

// LastValue fetches the latest value point with its income and tax totals.
// GET /portfolios/{id}/value-last -> DailyValue + net_dividends, net_bonds, net_interests, taxes_paid
func (c *PortfolioClient) LastValue(ctx context.Context, token string, id models.PortfolioID) (last *models.LastValue, err error) {
	defer func(start time.Time) { metrics.ObserveAPI("value_last", start, err) }(time.Now())
	var result models.LastValue
	if err = c.getJSON(ctx, token, "/portfolios/"+url.PathEscape(id.String())+"/value-last", "value_last", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Positions fetches open positions with their per-range performance.
// GET /portfolios/{id}/positions/performance -> [Position]
func (c *PortfolioClient) Positions(ctx context.Context, token string, id models.PortfolioID) (list []models.Position, err error) {
	defer func(start time.Time) { metrics.ObserveAPI("positions", start, err) }(time.Now())
	if err = c.getJSON(ctx, token, "/portfolios/"+url.PathEscape(id.String())+"/positions/performance", "positions", &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Position{}
	}
	return list, nil
}

// getJSON performs an authenticated GET and decodes a 2xx body into dst.
// A 401 always maps to ErrUnauthorized.
func (c *PortfolioClient) getJSON(ctx context.Context, token, path, endpoint string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req, endpoint)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		return fmt.Errorf("%s: %w", endpoint, ErrUnauthorized)
	}
	if status < 200 || status > 299 {
		return &StatusError{Endpoint: endpoint, StatusCode: status, Body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", endpoint, err)
	}
	return nil
}

func (c *PortfolioClient) do(req *http.Request, endpoint string) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &NetworkError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, &NetworkError{Endpoint: endpoint, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	return resp.StatusCode, body, nil
}

// detailText renders a FastAPI-style detail, which is either a string or a
// list of validation errors with a msg field.
func detailText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
