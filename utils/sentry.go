package utils

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

// InitSentry configures error reporting. An empty dsn leaves Sentry disabled and
// CaptureError becomes a no-op. The returned func flushes pending events.
func InitSentry(dsn, environment, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// CaptureError reports err with the request id when Sentry is enabled.
func CaptureError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub.Client() == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		if gc, ok := ctx.(*gin.Context); ok {
			scope.SetTag(RequestIDKey, gc.GetString(RequestIDKey))
			scope.SetRequest(gc.Request)
		}
		hub.CaptureException(err)
	})
}
