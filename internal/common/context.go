package common

import "context"

type contextKey int

const (
	correlationIDKey contextKey = iota
	csrfTokenKey
)

// WithCorrelationID stores the request correlation ID in ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext returns the request correlation ID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// WithCSRFToken stores the request's CSRF token in ctx so pages can embed it
// in their forms.
func WithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfTokenKey, token)
}

// CSRFTokenFromContext returns the request's CSRF token, or "".
func CSRFTokenFromContext(ctx context.Context) string {
	tok, _ := ctx.Value(csrfTokenKey).(string)
	return tok
}
