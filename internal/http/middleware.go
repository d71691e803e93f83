package http

import (
	"context"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const (
	requestIDHeader  = "X-Request-ID"
	sentryFlushAfter = 2 * time.Second
)

// requestIDMiddleware reuses a caller supplied UUID request id or mints a new one.
func (s *Server) requestIDMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		reqID := uuid.NewString()
		if incoming := strings.TrimSpace(ctx.Header(requestIDHeader)); incoming != "" {
			if parsed, err := uuid.Parse(incoming); err == nil {
				reqID = parsed.String()
			}
		}

		goCtx := context.WithValue(ctx.Context(), requestIDContextKey, reqID)
		ctx = huma.WithContext(ctx, goCtx)
		ctx.SetHeader(requestIDHeader, reqID)

		if hub := sentry.GetHubFromContext(goCtx); hub != nil {
			hub.Scope().SetTag("request_id", reqID)
		}

		next(ctx)
	}
}

// accessLogMiddleware writes one entry per request. Failed requests are logged
// at warn level because the failure itself is recorded where it happened.
func (s *Server) accessLogMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.logger == nil {
			next(ctx)
			return
		}

		started := time.Now()
		next(ctx)

		status := ctx.Status()
		if status == 0 {
			status = stdhttp.StatusOK
		}

		entry := s.logger.WithFields(logrus.Fields{
			"http_method": ctx.Method(),
			"http_status": status,
			"latency_ms":  time.Since(started).Milliseconds(),
			"user_agent":  ctx.Header("User-Agent"),
		})
		if op := ctx.Operation(); op != nil {
			entry = entry.WithField("operation", op.OperationID)
		}
		if req, _ := humago.Unwrap(ctx); req != nil {
			entry = entry.WithField("path", req.URL.Path)
		}
		if requestID := RequestIDFromContext(ctx.Context()); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}

		switch {
		case status >= 400:
			entry.Warn("dinebot request failed")
		default:
			entry.Info("dinebot request served")
		}
	}
}

// panicMiddleware turns a handler panic into a 500 problem response.
func (s *Server) panicMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			err, ok := rec.(error)
			if ok {
				err = eris.Wrap(err, "handler panic")
			} else {
				err = eris.Errorf("handler panic: %v", rec)
			}

			fields := logrus.Fields{"http_method": ctx.Method()}
			if op := ctx.Operation(); op != nil {
				fields["operation"] = op.OperationID
			}
			s.recordError(ctx.Context(), err, "recovered from handler panic", fields)

			ctx.SetHeader("Content-Type", "application/problem+json")
			ctx.SetStatus(stdhttp.StatusInternalServerError)
			_, _ = ctx.BodyWriter().Write([]byte(`{"status":500,"title":"Internal Server Error","detail":"` + errorFallbackMessage + `"}`))
		}()

		next(ctx)
	}
}

// sentryHubMiddleware gives each request its own hub so tags stay request scoped.
func (s *Server) sentryHubMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.sentry == nil {
			next(ctx)
			return
		}

		hub := s.sentry.Clone()
		scope := hub.Scope()
		scope.SetTag("http.method", ctx.Method())
		if op := ctx.Operation(); op != nil {
			scope.SetTag("http.route", op.Path)
		}

		goCtx := sentry.SetHubOnContext(ctx.Context(), hub)
		ctx = huma.WithContext(ctx, goCtx)

		defer hub.Flush(sentryFlushAfter)

		next(ctx)
	}
}
