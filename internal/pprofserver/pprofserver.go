// Package pprofserver serves the runtime profiles on a separate listener so that they are never exposed through the
// public address.
package pprofserver

import (
	"context"
	"github.com/myrjola/sagaboard/internal/errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"time"
)

func Handle(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
}

// Launch starts a pprof server on addr, e.g. localhost:6060, and returns the bound address. The server stops when
// ctx is done.
func Launch(ctx context.Context, addr string, logger *slog.Logger) (string, error) {
	logger = logger.With("source", "pprofserver")
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", errors.Wrap(err, "pprof listen", slog.String("addr", addr))
	}
	mux := http.NewServeMux()
	Handle(mux)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		<-ctx.Done()
		if shutdownErr := srv.Close(); shutdownErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "close pprof server", errors.SlogError(shutdownErr))
		}
	}()
	go func() {
		if serveErr := srv.Serve(listener); !errors.Is(serveErr, http.ErrServerClosed) {
			logger.LogAttrs(ctx, slog.LevelError, "pprof server stopped", errors.SlogError(serveErr))
		}
	}()

	bound := listener.Addr().String()
	logger.LogAttrs(ctx, slog.LevelInfo, "starting pprof server", slog.String("addr", bound))
	return bound, nil
}
