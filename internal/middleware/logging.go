package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
	userID string
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// recorderFor reuses a recorder installed by an outer middleware.
func recorderFor(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w}
}

// routeName returns the matched mux route template, or the raw path when
// the request did not match a route.
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// Logging returns a middleware that logs every HTTP request.
// It logs the method, route, status, user ID and duration.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := recorderFor(w)

		next.ServeHTTP(rec, r)

		attrs := []any{
			"method", r.Method,
			"route", routeName(r),
			"status", rec.code(),
			"user_id", rec.userID,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch status := rec.code(); {
		case status >= 500:
			slog.Error("HTTP error", attrs...)
		case status >= 400:
			slog.Warn("HTTP error", attrs...)
		default:
			slog.Info("HTTP ok", attrs...)
		}
	})
}
