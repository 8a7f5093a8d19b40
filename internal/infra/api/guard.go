package api

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-private-group/internal/domain/model"
	"telegram-private-group/internal/infra/logging"
	"telegram-private-group/internal/infra/metrics"
)

type Middleware func(http.Handler) http.Handler

// TraceID tags the request context. An incoming X-Request-ID is reused.
func TraceID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tid := r.Header.Get("X-Request-ID")
			if tid == "" {
				tid = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", tid)
			ctx := logging.WithTraceID(r.Context(), tid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// accessNote holds what a handler learned about the request: whose
// subscription it touched, which plan, and how it ended.
type accessNote struct {
	customer string
	plan     string
	outcome  string
	code     string
}

type accessNoteKey struct{}

// noteFor returns the note RequestLog attached to r. Outside that middleware
// the returned note is discarded.
func noteFor(r *http.Request) *accessNote {
	if n, ok := r.Context().Value(accessNoteKey{}).(*accessNote); ok {
		return n
	}
	return &accessNote{}
}

func noteCustomer(r *http.Request, username string) {
	noteFor(r).customer = model.NormalizeUsername(username)
}

// RequestLog writes one access line per request keyed by the route pattern.
// 4xx answers log at warn and 5xx at error.
func RequestLog(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			note := &accessNote{}
			r = r.WithContext(context.WithValue(r.Context(), accessNoteKey{}, note))
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			route := routePattern(r)
			elapsed := time.Since(start)
			metrics.ObserveAPIRequest(route, ww.status, note.code, elapsed)

			l := logging.With(r.Context(), logger)
			ev := l.Info()
			switch {
			case ww.status >= http.StatusInternalServerError:
				ev = l.Error()
			case ww.status >= http.StatusBadRequest:
				ev = l.Warn()
			}
			ev = ev.Str("method", r.Method).
				Str("route", route).
				Int("status", ww.status).
				Int("bytes", ww.bytes).
				Dur("duration", elapsed)
			if note.customer != "" {
				ev = ev.Str("customer", note.customer)
			}
			if note.plan != "" {
				ev = ev.Str("plan", note.plan)
			}
			if note.outcome != "" {
				ev = ev.Str("outcome", note.outcome)
			}
			if note.code != "" {
				ev = ev.Str("code", note.code)
			}
			ev.Msg("http_request")
		})
	}
}

// routePattern is the matched chi pattern, or "unmatched" for a 404 route.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

type respWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *respWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Recover turns a handler panic into a JSON 500 and marks the access line.
func Recover(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					noteFor(r).code = "panic"
					l := logging.With(r.Context(), logger)
					l.Error().
						Str("method", r.Method).
						Str("route", routePattern(r)).
						Interface("panic", rec).
						Bytes("stack", debug.Stack()).
						Msg("panic recovered")
					render.Status(r, http.StatusInternalServerError)
					render.JSON(w, r, Error("internal error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Timeout bounds the request context; ledger lookups inherit it.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
