package auth

import "context"

type ctxKey string

const userKey ctxKey = "userClaims"

// Claims is the validated identity attached to an authenticated request.
type Claims struct {
	UserID         uint
	DocumentNumber string
	JWTID          string
}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, userKey, c)
}

func FromContext(ctx context.Context) Claims {
	if v, ok := ctx.Value(userKey).(Claims); ok {
		return v
	}
	return Claims{}
}

// UserID returns the authenticated user's id, or zero when the request is
// anonymous.
func UserID(ctx context.Context) uint {
	return FromContext(ctx).UserID
}
