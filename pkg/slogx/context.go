package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// WithUser attaches the canonical user name to the contextual logger so
// every downstream decision log line carries it.
func WithUser(ctx context.Context, user string) context.Context {
	l := FromContext(ctx)
	return WithContext(ctx, l.With("user", user))
}
