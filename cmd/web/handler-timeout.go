package main

import (
	"net/http"
	"time"
)

const timeoutBody = `{"error":"the request took too long, please retry"}`

// timeoutHandler responds with a 503 Service Unavailable error when the handler does not meet the deadline.
func timeoutHandler(h http.Handler, defaultTimeout time.Duration) http.Handler {
	// The timeout is a little shorter than the server's write timeout so that the timeout handler has a chance to
	// respond before the server closes the connection.
	httpHandlerTimeout := defaultTimeout - 500*time.Millisecond //nolint:mnd // 500ms
	return http.TimeoutHandler(h, httpHandlerTimeout, timeoutBody)
}
