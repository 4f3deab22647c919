package main

import (
	"fmt"
	"github.com/google/uuid"
	"github.com/myrjola/sagaboard/internal/contexthelpers"
	"github.com/myrjola/sagaboard/internal/logging"
	"github.com/myrjola/sagaboard/internal/workflow"
	"log/slog"
	"net/http"
	"time"
)

const (
	sessionCampaignKey = "campaignID"
	sessionStyleKey    = "style"
)

func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'; img-src 'self'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "origin-when-cross-origin")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-XSS-Protection", "0")

		next.ServeHTTP(w, r)
	})
}

// cacheForeverHeaders is safe for the image area because image files are never overwritten.
func cacheForeverHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func (app *application) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			start     = time.Now()
			requestID = uuid.NewString()
			proto     = r.Proto
			method    = r.Method
			uri       = r.URL.RequestURI()
		)
		r = contexthelpers.SetRequestID(r, requestID)
		ctx := logging.WithAttrs(r.Context(), slog.String("requestID", requestID))
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-Id", requestID)

		app.logger.LogAttrs(ctx, slog.LevelDebug, "received request",
			slog.String("proto", proto), slog.String("method", method), slog.String("uri", uri))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		app.logger.LogAttrs(ctx, slog.LevelInfo, "request handled",
			slog.String("method", method), slog.String("uri", uri),
			slog.Int("status", rec.status), slog.Duration("duration", time.Since(start)))
	})
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				app.serverError(w, r, fmt.Errorf("%s", err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// loadSession puts the user's selected campaign and style into the request context. It must run after the session
// manager has loaded the session.
func (app *application) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess := workflow.Session{
			CampaignID: app.sessionManager.GetString(ctx, sessionCampaignKey),
			Style:      app.sessionManager.GetString(ctx, sessionStyleKey),
		}
		next.ServeHTTP(w, contexthelpers.SetSession(r, sess))
	})
}
