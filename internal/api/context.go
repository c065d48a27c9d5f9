package api

import (
	"context"

	"github.com/starford/studytrack/internal/models"
)

type userKey struct{}

func withUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// userFrom returns the user resolved by the middleware for this request, or nil.
func userFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey{}).(*models.User)
	return u
}
