package main

import (
	"context"
	"github.com/myrjola/sagaboard/internal/e2etest"
	"github.com/stretchr/testify/require"
	"io"
	"testing"
)

// testEnv returns a lookupEnv serving a fresh data directory and a random port merged with extra.
func testEnv(t *testing.T, extra map[string]string) func(string) (string, bool) {
	t.Helper()
	env := map[string]string{
		"SAGABOARD_ADDR":     "localhost:0",
		"SAGABOARD_DATA_DIR": t.TempDir(),
	}
	for k, v := range extra {
		env[k] = v
	}
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

// startTestServer starts the server and stops it before the test's temporary directories are removed.
func startTestServer(t *testing.T, lookupEnv func(string) (string, bool)) *e2etest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	server, err := e2etest.StartServer(ctx, io.Discard, lookupEnv, run)
	if err != nil {
		cancel()
		require.NoError(t, err)
	}
	t.Cleanup(func() {
		cancel()
		<-server.Done()
	})
	return server
}
