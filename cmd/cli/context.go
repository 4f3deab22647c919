package main

import (
	"context"
	"github.com/myrjola/sagaboard/cmd/cli/img"
	"github.com/myrjola/sagaboard/internal/ai"
	"github.com/myrjola/sagaboard/internal/config"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/logging"
	"github.com/myrjola/sagaboard/internal/workflow"
	"io"
	"log/slog"
	"sync"
)

// commandContext lazily opens the data directory shared by the commands of one invocation.
type commandContext struct {
	lookupEnv func(string) (string, bool)
	session   workflow.Session
	verbose   bool

	once     sync.Once
	service  *workflow.Service
	aiClient *ai.Client
	cfg      config.Config
	err      error
}

func newCommandContext(lookupEnv func(string) (string, bool)) *commandContext {
	return &commandContext{lookupEnv: lookupEnv} //nolint:exhaustruct // the rest is filled on first use
}

func (c *commandContext) open(ctx context.Context, stderr io.Writer) (*workflow.Service, error) {
	c.once.Do(func() {
		level := slog.LevelWarn
		if c.verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(stderr, &slog.HandlerOptions{
			AddSource:   false,
			Level:       level,
			ReplaceAttr: nil,
		})))

		if c.cfg, c.err = config.Load(c.lookupEnv); c.err != nil {
			c.err = errors.Wrap(c.err, "load config")
			return
		}
		c.service, c.aiClient, c.err = workflow.Open(ctx, c.cfg, logger)
	})
	return c.service, c.err
}

// sessionFor returns the session selected with flags, falling back to $SAGABOARD_CAMPAIGN for the campaign.
func (c *commandContext) sessionFor() workflow.Session {
	sess := c.session
	if sess.CampaignID == "" {
		sess.CampaignID, _ = c.lookupEnv("SAGABOARD_CAMPAIGN")
	}
	return sess
}

func (c *commandContext) imageGenerator(ctx context.Context, stderr io.Writer) (img.Generator, string, error) {
	if _, err := c.open(ctx, stderr); err != nil {
		return nil, "", err
	}
	return c.aiClient, c.cfg.ImageSize, nil
}
