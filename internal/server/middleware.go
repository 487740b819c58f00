package server

import (
	"context"
	"net/http"
	"time"

	"github.com/fieldsync/fieldsync/internal/observability/log"
)

type contextKey uint8

const ownerKey contextKey = iota

// userHeader carries the already-authenticated user id, installed by the
// upstream gateway. Authentication itself is outside this service.
const userHeader = "X-User-ID"

// ownerFrom returns the authenticated owner id stored by withIdentity.
func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey).(string)
	return owner
}

// withIdentity rejects requests without an identity header and stashes the
// owner id in the request context.
func (s *Server) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(userHeader)
		if owner == "" {
			s.writeError(w, http.StatusUnauthorized, ErrMissingIdentity)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey, owner)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestLog logs one line per request.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request handled",
			log.String("method", r.Method),
			log.String("path", r.URL.Path),
			log.Int("status", rec.status),
			log.Duration("duration", time.Since(start)))
	})
}
