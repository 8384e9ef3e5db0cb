// Package navigation maps the portal's logical locations to visible paths.
//
// The location is never stored: it is re-derived from the requested path and
// the session on every navigation, so back/forward always land on a location
// consistent with the current state.
package navigation

import "strings"

// Location is a logical page.
type Location string

const (
	Login           Location = "login"
	Home            Location = "home"
	PortfolioDetail Location = "portfolio-detail"
)

// Visible paths.
const (
	PathLogin           = "/login"
	PathHome            = "/homepage"
	PathPortfolioDetail = "/portfolio-chart"
)

// Path returns the visible path of l.
func (l Location) Path() string {
	switch l {
	case Login:
		return PathLogin
	case PortfolioDetail:
		return PathPortfolioDetail
	}
	return PathHome
}

// FromPath maps a visible path to its location. ok is false for paths that
// are not a page.
func FromPath(path string) (Location, bool) {
	if path != "/" {
		path = strings.TrimRight(path, "/")
	}
	switch path {
	case PathLogin:
		return Login, true
	case PathHome:
		return Home, true
	case PathPortfolioDetail:
		return PortfolioDetail, true
	}
	return "", false
}

// Context is the session state a location depends on.
type Context struct {
	Authenticated bool
	HasSelection  bool
}

// Resolve returns the location to show for a requested path:
//   - without a session every path shows Login;
//   - with a session, Login and unknown paths show Home;
//   - PortfolioDetail without a selected portfolio shows Home.
func Resolve(path string, ctx Context) Location {
	if !ctx.Authenticated {
		return Login
	}
	loc, ok := FromPath(path)
	if !ok || loc == Login {
		return Home
	}
	if loc == PortfolioDetail && !ctx.HasSelection {
		return Home
	}
	return loc
}

// Redirect reports the path to redirect to when the resolved location's path
// differs from the requested one.
func Redirect(path string, ctx Context) (string, bool) {
	target := Resolve(path, ctx).Path()
	if loc, ok := FromPath(path); ok && loc.Path() == target {
		return "", false
	}
	return target, true
}
