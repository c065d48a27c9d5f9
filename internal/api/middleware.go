// Package api implements the studytrack HTTP surface using chi: guarded
// pages and the JSON API under /api.
package api

import (
	"log/slog"
	"net/http"

	"github.com/starford/studytrack/internal/router"
)

// RequireSession rejects API requests with 401 when lookup finds no signed-in user.
func RequireSession(lookup router.UserLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := lookup(r.Context())
			if err != nil {
				logger.Warn("session lookup failed", slog.String("error", err.Error()))
			}
			if user == nil {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// GuardPages runs the navigation guard before every page. A redirect
// decision is answered with 302 and no body.
func GuardPages(g *router.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.Check(r.Context(), r.URL.Path)
			if !d.Proceed() {
				w.Header().Set("Location", d.Redirect)
				w.WriteHeader(http.StatusFound)
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), d.User)))
		})
	}
}
