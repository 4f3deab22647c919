package main

import (
	"context"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/joho/godotenv"
	"github.com/myrjola/sagaboard/internal/ai"
	"github.com/myrjola/sagaboard/internal/config"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/logging"
	"github.com/myrjola/sagaboard/internal/pprofserver"
	"github.com/myrjola/sagaboard/internal/sqlite"
	"github.com/myrjola/sagaboard/internal/workflow"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"
)

type application struct {
	logger         *slog.Logger
	cfg            config.Config
	service        *workflow.Service
	aiClient       *ai.Client
	sessionManager *scs.SessionManager
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	cfg, err := config.Load(lookupEnv)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	service, aiClient, err := workflow.Open(ctx, cfg, logger)
	if err != nil {
		return errors.Wrap(err, "open workflow")
	}

	if cfg.PprofAddr != "" {
		if _, err = pprofserver.Launch(ctx, cfg.PprofAddr, logger); err != nil {
			return errors.Wrap(err, "launch pprof server")
		}
	}

	sessionDB, err := sqlite.NewDatabase(ctx, cfg.SessionDB, logger)
	if err != nil {
		return errors.Wrap(err, "open session database")
	}
	defer func() {
		if closeErr := sessionDB.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed to close session database", errors.SlogError(closeErr))
		}
	}()
	go sessionDB.StartOptimizer(ctx, time.Hour)

	store := sqlite3store.NewWithCleanupInterval(sessionDB.ReadWrite, time.Hour)
	defer store.StopCleanup()
	sessionManager := scs.New()
	sessionManager.Store = store
	sessionManager.Lifetime = 12 * time.Hour //nolint:mnd // half a day
	sessionManager.Cookie.Name = "sagaboard_session"
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode

	app := application{
		logger:         logger,
		cfg:            cfg,
		service:        service,
		aiClient:       aiClient,
		sessionManager: sessionManager,
	}
	if err = app.configureAndStartServer(ctx, cfg.Addr); err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   true,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.LogAttrs(ctx, slog.LevelError, "failed to load .env", errors.SlogError(err))
		os.Exit(1)
	}

	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
