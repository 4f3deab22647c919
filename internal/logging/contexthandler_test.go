package logging_test

import (
	"bytes"
	"context"
	"github.com/myrjola/sagaboard/internal/logging"
	"github.com/stretchr/testify/require"
	"log/slog"
	"testing"
)

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(&buf, nil))).With("source", "test")

	parent := logging.WithAttrs(context.Background(), slog.String("requestID", "r1"))
	first := logging.WithAttrs(parent, slog.String("campaignID", "c1"))
	second := logging.WithAttrs(parent, slog.String("campaignID", "c2"))

	logger.InfoContext(first, "hello")
	require.Contains(t, buf.String(), "source=test")
	require.Contains(t, buf.String(), "requestID=r1")
	require.Contains(t, buf.String(), "campaignID=c1")

	buf.Reset()
	logger.InfoContext(second, "hello")
	require.Contains(t, buf.String(), "campaignID=c2")
	require.NotContains(t, buf.String(), "campaignID=c1")
}
