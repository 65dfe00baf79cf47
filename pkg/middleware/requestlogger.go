package middleware

import (
	"log/slog"
	"net/http"

	"github.com/obaraelijah/LeafLine-Server/pkg/logger"
)

// RequestLogger stores a logger enriched with the request's correlation ID,
// user ID and span in the context. Mount it after RequestLogging, Tracing and
// Auth so those fields are already present.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if userID := UserIDFromContext(ctx); userID != "" {
				ctx = logger.WithUserID(ctx, userID)
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
