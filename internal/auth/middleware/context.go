package auth

import "context"

type ctxKey struct{}

// WithSubject stores the authenticated username, used as the actor in logs.
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxKey{}, sub)
}

func SubjectFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKey{}).(string); ok {
		return s
	}
	return ""
}
