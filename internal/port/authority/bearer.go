package authority

import "context"

type bearerCtxKey struct{}

// WithBearer stores the caller's bearer token so a Checker can forward it
// to the authority.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerCtxKey{}, token)
}

// BearerFromContext returns the token stored by WithBearer, or "".
func BearerFromContext(ctx context.Context) string {
	s, _ := ctx.Value(bearerCtxKey{}).(string)
	return s
}
