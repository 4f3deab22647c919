package errors

import (
	"github.com/stretchr/testify/require"
	"log/slog"
	"slices"
	"testing"
)

func TestAnnotatedError(t *testing.T) {
	err := New("test error", slog.String("id", "123"))
	require.Equal(t, "test error", err.Error())

	// Assert that wrapping sentinel errors work as expected.
	sentinel := NewSentinel("test error")
	require.NotErrorIs(t, err, NewSentinel("test error"))
	wrapped := Wrap(sentinel, "load document", slog.String("collection", "scenes"))
	require.ErrorIs(t, wrapped, sentinel)
	require.Equal(t, "load document: test error", wrapped.Error())

	// Ensure log values are coming through.
	var annotated AnnotatedError
	require.True(t, As(err, &annotated))
	group := annotated.LogValue().Group()
	require.Contains(t, group, slog.String("id", "123"))

	// Assert there's a valid source
	sourceIdx := slices.IndexFunc(group, func(attr slog.Attr) bool {
		return attr.Key == "source"
	})
	source := group[sourceIdx]
	require.Contains(t, source.Value.String(), "annotatederror_test.go")
}

func TestWrapNil(t *testing.T) {
	require.NoError(t, Wrap(nil, "nothing to wrap"))
}

func TestSlogError(t *testing.T) {
	inner := New("inner", slog.String("scene_id", "abc"))
	outer := Wrap(inner, "outer", slog.String("campaign_id", "xyz"))

	attr := SlogError(outer)
	require.Equal(t, "error", attr.Key)
	group := attr.Value.Resolve().Group()
	require.Contains(t, group, slog.String("campaign_id", "xyz"))
	require.Contains(t, group, slog.String("scene_id", "abc"))
	require.Contains(t, group, slog.String("msg", "outer: inner"))

	plain := SlogError(NewSentinel("plain"))
	require.Equal(t, "plain", plain.Value.String())
}
