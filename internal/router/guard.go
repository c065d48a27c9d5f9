package router

import (
	"context"
	"log/slog"

	"github.com/starford/studytrack/internal/gateway"
	"github.com/starford/studytrack/internal/models"
	"github.com/starford/studytrack/internal/session"
)

// UserLookup resolves the current user, or nil when nobody is signed in.
type UserLookup func(ctx context.Context) (*models.User, error)

// FreshLookup asks the gateway on every navigation.
func FreshLookup(auth gateway.Auth) UserLookup {
	return auth.GetCurrentUser
}

// CachedLookup reads the user already held by the session state.
func CachedLookup(s *session.Session) UserLookup {
	return func(context.Context) (*models.User, error) {
		return s.User(), nil
	}
}

// Decision is the guard's verdict. An empty Redirect means proceed.
type Decision struct {
	Redirect string
	User     *models.User
}

// Proceed reports whether navigation continues to the requested page.
func (d Decision) Proceed() bool { return d.Redirect == "" }

// Guard decides, before every navigation, whether to proceed or redirect.
type Guard struct {
	table  *Table
	lookup UserLookup
	logger *slog.Logger
}

// NewGuard returns a guard over table using lookup for the session check.
func NewGuard(table *Table, lookup UserLookup, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{table: table, lookup: lookup, logger: logger}
}

// Check evaluates reqPath against the current session. The rules apply in
// order and the first that fires wins:
//  1. a matched route requires auth and there is no session: go to login;
//  2. the target is login or register and there is a session: go home;
//  3. otherwise proceed.
//
// A failed lookup counts as no session. Unknown paths always proceed.
func (g *Guard) Check(ctx context.Context, reqPath string) Decision {
	user, err := g.lookup(ctx)
	if err != nil {
		g.logger.Warn("session lookup failed", slog.String("path", reqPath), slog.String("error", err.Error()))
		user = nil
	}

	m, ok := g.table.Match(reqPath)
	if !ok {
		return Decision{User: user}
	}
	if m.RequiresAuth() && user == nil {
		return Decision{Redirect: g.table.URL(LoginPath)}
	}
	if leaf := m.Leaf().Name; (leaf == Login || leaf == Register) && user != nil {
		return Decision{Redirect: g.table.URL(HomePath), User: user}
	}
	return Decision{User: user}
}
