package backend

import (
	"context"
	"strings"
)

type bearerKey struct{}

// WithBearerToken forwards the caller's token to backend requests.
func WithBearerToken(ctx context.Context, token string) context.Context {
	token = strings.TrimSpace(token)
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, bearerKey{}, token)
}

// BearerTokenFromContext returns the forwarded token, if any.
func BearerTokenFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	token, _ := ctx.Value(bearerKey{}).(string)
	return token
}
