package main

import (
	"context"
	"github.com/myrjola/sagaboard/internal/e2etest"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/logging"
	"github.com/myrjola/sagaboard/internal/models"
	"github.com/myrjola/sagaboard/internal/workflow"
	"log/slog"
	"os"
	"time"
)

// smokeTest walks through health, campaign creation, campaign selection, and scene listing.
func smokeTest(ctx context.Context, client *e2etest.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()

	health, err := client.Healthy(ctx)
	if err != nil {
		return errors.Wrap(err, "health check")
	}
	if !health.AIEnabled {
		slog.Default().LogAttrs(ctx, slog.LevelWarn, "AI features are disabled on the server")
	}

	campaign, err := client.CreateCampaign(ctx, models.NewCampaign{
		Name:        "Smoke test " + time.Now().UTC().Format(time.RFC3339),
		Description: "Created by the smoke test.",
	})
	if err != nil {
		return err
	}
	if err = client.SelectCampaign(ctx, workflow.Session{CampaignID: campaign.ID, Style: ""}); err != nil {
		return err
	}
	scenes, err := client.ListScenes(ctx)
	if err != nil {
		return err
	}
	if len(scenes) != 0 {
		return errors.New("new campaign has scenes", slog.Int("count", len(scenes)))
	}
	return nil
}

func main() {
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	slog.SetDefault(logger)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only the base URL to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <base-url>")
		os.Exit(1)
	}

	var (
		url    = os.Args[1]
		client *e2etest.Client
		err    error
	)
	ctx = logging.WithAttrs(ctx, slog.String("url", url))

	if client, err = e2etest.NewClient(url); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", errors.SlogError(err))
		os.Exit(1)
	}
	if err = smokeTest(ctx, client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "smoke test failed", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌")
}
