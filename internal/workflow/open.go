package workflow

import (
	"context"
	"github.com/myrjola/sagaboard/internal/ai"
	"github.com/myrjola/sagaboard/internal/config"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/imagestore"
	"github.com/myrjola/sagaboard/internal/jsondb"
	"github.com/myrjola/sagaboard/internal/montage"
	"github.com/myrjola/sagaboard/internal/publish"
	"github.com/myrjola/sagaboard/internal/repositories"
	"log/slog"
)

// Open prepares the data directory and wires the stores, the generative client, the exporter, and the optional
// publisher into a service. A configured API key is validated once; the returned client is disabled when the key is
// missing or fails validation.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Service, *ai.Client, error) {
	if err := cfg.EnsureWritable(); err != nil {
		return nil, nil, errors.Wrap(err, "prepare data directory")
	}

	db, err := jsondb.Open(cfg.DataDir, logger)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open document database")
	}
	for collection, preserved := range db.Corrupted() {
		logger.LogAttrs(ctx, slog.LevelWarn, "collection was corrupt at startup",
			slog.String("collection", string(collection)), slog.String("preserved", preserved))
	}
	images, err := imagestore.New(cfg.DataDir, logger)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open image store")
	}
	repos := repositories.New(db, images, cfg.HistoryLimit, logger)

	aiClient := ai.NewClient(ai.Config{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		TextModel:  cfg.TextModel,
		ImageModel: cfg.ImageModel,
		ImageSize:  cfg.ImageSize,
		Timeout:    cfg.AITimeout,
	}, logger)
	if cfg.AIEnabled() {
		if verifyErr := aiClient.Verify(ctx); verifyErr != nil {
			logger.LogAttrs(ctx, slog.LevelWarn, "API key failed validation, AI features are disabled",
				errors.SlogError(verifyErr))
		}
	} else {
		logger.LogAttrs(ctx, slog.LevelWarn, "no API key configured, AI features are disabled")
	}

	// A nil *publish.Publisher must not end up in the interface.
	var publisher Publisher
	if cfg.PublishEnabled() {
		var p *publish.Publisher
		if p, err = publish.New(ctx, PublishConfig(cfg), logger); err != nil {
			return nil, nil, errors.Wrap(err, "create publisher")
		}
		publisher = p
	}

	exporter := montage.NewExporter(images, cfg.OutputDir, cfg.FFmpegBinary, logger)
	return NewService(repos, images, aiClient, exporter, publisher, logger), aiClient, nil
}

func PublishConfig(cfg config.Config) publish.Config {
	return publish.Config{
		Bucket:    cfg.S3Bucket,
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		PathStyle: cfg.S3PathStyle,
		Expiry:    publish.DefaultExpiry,
	}
}
