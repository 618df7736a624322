package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/phrazzld/connkeeper/internal/platform/logger"
)

// RequestLogger stores base and the request id in the request context so
// handlers and the store package log with the same correlation id. It reuses
// the id assigned by chi's RequestID middleware when present.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chimw.GetReqID(r.Context())
			if id == "" {
				id = uuid.NewString()
			}

			ctx := logger.WithRequestID(logger.WithLogger(r.Context(), base), id)
			log := logger.FromContext(ctx)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			log.Debug("request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("elapsed", time.Since(start)))
		})
	}
}
