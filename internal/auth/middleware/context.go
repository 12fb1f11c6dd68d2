package auth

import "context"

type ctxKey string

const (
	ctxKeyUserID ctxKey = "uid"
	ctxKeyToken  ctxKey = "token"
)

func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, id)
}

// UserIDFromContext returns 0 for unauthenticated requests.
func UserIDFromContext(ctx context.Context) int64 {
	if v, ok := ctx.Value(ctxKeyUserID).(int64); ok {
		return v
	}
	return 0
}

func WithToken(ctx context.Context, tok string) context.Context {
	return context.WithValue(ctx, ctxKeyToken, tok)
}

// TokenFromContext is the caller's raw JWT, forwarded to the catalog services.
func TokenFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKeyToken).(string)
	return s
}
