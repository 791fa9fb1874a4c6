package o11y

import (
	"context"
	"log/slog"
)

func LoggerFromContext(ctx context.Context) *slog.Logger {
	span := GetSpan(ctx)
	if span == nil {
		return slog.Default()
	}
	return slog.New(slog.NewJSONHandler(span, nil))
}
