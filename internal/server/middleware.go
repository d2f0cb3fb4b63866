package server

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/raglab-go/internal/logging"
)

const (
	// requestIDHeader carries the request id in both directions.
	requestIDHeader = "X-Request-ID"
	// maxRequestIDLen bounds caller-supplied ids; longer ones are replaced.
	maxRequestIDLen = 64
)

// requestLogger tags every request with an id (the caller's X-Request-ID
// when it is short enough, a fresh uuid otherwise), stores a logger
// carrying that id in the request context and logs one summary line per
// request. 5xx responses log at error level and 4xx at warn. A panicking
// handler is logged with its stack and answered with 500.
func requestLogger(base *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" || len(reqID) > maxRequestIDLen {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		ctx, log := logging.With(logging.WithLogger(r.Context(), base),
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				log.Error("server: handler panic",
					slog.Any("panic", p),
					slog.String("stack", string(debug.Stack())),
				)
				if !rw.wrote {
					writeError(rw, http.StatusInternalServerError, "internal error")
				}
			}

			level := slog.LevelInfo
			switch {
			case rw.status >= 500:
				level = slog.LevelError
			case rw.status >= 400:
				level = slog.LevelWarn
			}
			log.Log(ctx, level, "request",
				slog.Int("status", rw.status),
				slog.Duration("duration", time.Since(start)),
			)
		}()

		next.ServeHTTP(rw, r.WithContext(ctx))
	})
}

// responseWriter records the status code and whether anything was sent.
// It forwards Flush so SSE handlers keep streaming through it.
type responseWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wrote {
		rw.status = code
		rw.wrote = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wrote = true
	return rw.ResponseWriter.Write(b)
}

// Flush implements [http.Flusher] when the underlying writer does.
func (rw *responseWriter) Flush() {
	rw.wrote = true
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to [http.ResponseController].
func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
