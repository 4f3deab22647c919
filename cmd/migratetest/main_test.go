package main

import (
	"context"
	"github.com/myrjola/sagaboard/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func envWith(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "campaigns.json"),
		[]byte(`{"c1": {"id": "c1", "name": "Saga", "character_ids": [], "scene_ids": []}}`), 0o600))

	err := run(context.Background(), testhelpers.NewLogger(io.Discard), envWith(map[string]string{
		"SAGABOARD_DATA_DIR": dir,
	}))
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "sessions.sqlite"))
}

func TestRun_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scenes.json"), []byte(`{not json`), 0o600))

	err := run(context.Background(), testhelpers.NewLogger(io.Discard), envWith(map[string]string{
		"SAGABOARD_DATA_DIR": dir,
	}))
	require.ErrorContains(t, err, "corrupt collections")
}

func TestRun_RequiresDataDir(t *testing.T) {
	err := run(context.Background(), testhelpers.NewLogger(io.Discard), envWith(nil))
	require.ErrorContains(t, err, "SAGABOARD_DATA_DIR")
}
