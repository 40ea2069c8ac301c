package session

import "context"

type ctxkey string

var userCtxKey ctxkey = "session_user_context_key"

// WithUser adds the authenticated user to the passed context.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// FromContext retrieves the authenticated User from the passed context. The
// second return value indicates whether a user was present. For this to
// succeed the caller must be downstream of the boundary's auth middleware.
func FromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userCtxKey).(*User)
	if !ok {
		return nil, false
	}
	return user, ok
}
