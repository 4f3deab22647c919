// Package contexthelpers stores request scoped values in the request context.
package contexthelpers

import (
	"context"
	"github.com/myrjola/sagaboard/internal/workflow"
	"net/http"
)

type contextKey string

const (
	sessionContextKey   = contextKey("session")
	requestIDContextKey = contextKey("requestID")
)

func SetSession(r *http.Request, sess workflow.Session) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), sessionContextKey, sess))
}

// Session returns the zero session when none is stored.
func Session(ctx context.Context) workflow.Session {
	sess, ok := ctx.Value(sessionContextKey).(workflow.Session)
	if !ok {
		return workflow.Session{}
	}
	return sess
}

func SetRequestID(r *http.Request, requestID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), requestIDContextKey, requestID))
}

func RequestID(ctx context.Context) string {
	requestID, ok := ctx.Value(requestIDContextKey).(string)
	if !ok {
		return ""
	}
	return requestID
}
