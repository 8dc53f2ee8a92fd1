package auth

import (
	"context"

	"github.com/dukerupert/fileflow/internal/model"
)

type contextKey struct{}

// AuthContext is attached to requests that carry a valid login session.
type AuthContext struct {
	User      *model.User
	SessionID int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

// User returns the authenticated user, or nil.
func User(ctx context.Context) *model.User {
	ac, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	return ac.User
}

func UserID(ctx context.Context) int64 {
	if u := User(ctx); u != nil {
		return u.ID
	}
	return 0
}

func IsStaff(ctx context.Context) bool {
	u := User(ctx)
	return u != nil && (u.IsStaff || u.IsSuperuser)
}
