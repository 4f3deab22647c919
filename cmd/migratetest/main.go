package main

import (
	"context"
	"github.com/myrjola/sagaboard/internal/config"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/jsondb"
	"github.com/myrjola/sagaboard/internal/sqlite"
	"github.com/myrjola/sagaboard/internal/testhelpers"
	"log/slog"
	"os"
	"time"
)

// run migrates the session database and loads every document collection of the configured data directory. Point it at
// a copy of production data before deploying a schema change.
func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	cfg, err := config.Load(lookupEnv)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if _, ok := lookupEnv("SAGABOARD_DATA_DIR"); !ok {
		return errors.New("SAGABOARD_DATA_DIR not set")
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, cfg.SessionDB, logger); err != nil {
		return errors.Wrap(err, "open session database", slog.String("url", cfg.SessionDB))
	}
	defer func() {
		_ = db.Close()
	}()

	var total, live int
	row := db.ReadOnly.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE expiry > julianday('now')) FROM sessions`)
	if err = row.Scan(&total, &live); err != nil {
		return errors.Wrap(err, "count sessions")
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "session count", slog.Int("total", total), slog.Int("live", live))

	docs, err := jsondb.Open(cfg.DataDir, logger)
	if err != nil {
		return errors.Wrap(err, "open document database")
	}
	collections := []jsondb.Collection{jsondb.Campaigns, jsondb.Scenes, jsondb.Characters}
	if err = docs.View(ctx, func(tx *jsondb.Tx) error {
		for _, c := range collections {
			doc, docErr := tx.Document(c)
			if docErr != nil {
				return docErr
			}
			logger.LogAttrs(ctx, slog.LevelInfo, "collection loaded",
				slog.String("collection", string(c)), slog.Int("records", doc.Len()))
		}
		return nil
	}, collections...); err != nil {
		return errors.Wrap(err, "load collections")
	}
	if corrupted := docs.Corrupted(); len(corrupted) > 0 {
		return errors.New("corrupt collections found", slog.Int("count", len(corrupted)))
	}
	return nil
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:mnd // 5 seconds

	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "migration test failed", errors.SlogError(err))
		cancel()
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Migration test successful 🙌", slog.Duration("duration", time.Since(start)))
	cancel()
}
