package models

import "time"

// Session is the persisted authentication state. It is authenticated iff the
// token is non-empty.
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAuthenticated reports whether the session holds a token.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Token != ""
}

// Selection is the portfolio the user last opened.
type Selection struct {
	ID        PortfolioID `json:"id"`
	Name      string      `json:"name"`
	Portfolio Portfolio   `json:"portfolio"`
}
