package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/raterudder/solarwatch/pkg/log"
	"github.com/raterudder/solarwatch/pkg/types"
)

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware tags the request's logger with an id, reusing the
// caller's id when one is sent.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := log.WithAttrs(r.Context(), slog.String("requestID", id), slog.String("reqPath", r.URL.Path))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// handle registers h under pattern, counting requests and timing them by
// pattern.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			s.metrics.HTTPRequests.WithLabelValues(pattern, strconv.Itoa(rec.code)).Inc()
			s.metrics.HTTPRequestDuration.WithLabelValues(pattern).Observe(s.clock.Since(start).Seconds())
		}()
		h(rec, r)
	})
}

// cacheControl caches ranges that ended before today in the plant's zone for
// a day, anything else for a minute.
func (s *Server) cacheControl(w http.ResponseWriter, end types.Date) {
	today := types.DateOf(s.clock.Now().In(s.loc))
	if end.Before(today) {
		w.Header().Set("Cache-Control", "private, max-age=86400")
	} else {
		w.Header().Set("Cache-Control", "private, max-age=60")
	}
}
