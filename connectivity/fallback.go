package connectivity

import (
	"context"
	"log/slog"
)

// WithFallback returns a HandlerMiddleware that falls back to a second
// handler when the primary fails. The page host uses this shape: apply_fill
// wrapped with a close-preview fallback, so a failed fill never strands the
// overlay on the page.
//
// Context cancellation is NOT retried — it means the caller gave up, not
// that the primary failed.
func WithFallback(fallback Handler, service string, logger *slog.Logger) HandlerMiddleware {
	return func(next Handler) Handler {
		if fallback == nil {
			return next
		}
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			resp, err := next(ctx, payload)
			if err == nil {
				return resp, nil
			}
			if ctx.Err() != nil {
				return nil, err
			}
			if logger != nil {
				logger.WarnContext(ctx, "primary failed, falling back",
					"service", service,
					"primary_error", err)
			}
			return fallback(ctx, payload)
		}
	}
}
