package auth

import (
	"context"
)

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	claimsKey    contextKey = "jwt_claims"
)

// NewContextWithSessionID stores the desktop session id in ctx.
func NewContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionIDFromContext returns the stored session id, or "" when none is set.
func SessionIDFromContext(ctx context.Context) string {
	sessionID, _ := ctx.Value(sessionIDKey).(string)
	return sessionID
}

// AddClaimsToContext stores claims and their session id.
func AddClaimsToContext(ctx context.Context, claims *GuestClaims) context.Context {
	ctx = context.WithValue(ctx, claimsKey, claims)
	if claims != nil {
		ctx = NewContextWithSessionID(ctx, claims.SessionID)
	}
	return ctx
}

func GetClaimsFromContext(ctx context.Context) (*GuestClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*GuestClaims)
	return claims, ok
}
