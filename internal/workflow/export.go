package workflow

import (
	"context"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/montage"
	"github.com/myrjola/sagaboard/internal/publish"
	"log/slog"
)

// Export is an exported montage, published when a publisher is configured.
type Export struct {
	montage.Result
	Published *publish.Published
	Notices   []Notice
}

// ExportPDF writes the session's campaign as a PDF slideshow. An empty outputPath uses the exporter's default.
func (s *Service) ExportPDF(ctx context.Context, sess Session, outputPath string) (Export, error) {
	ctx = withSession(ctx, sess)
	campaign, err := s.Campaign(ctx, sess)
	if err != nil {
		return Export{}, err
	}
	scenes, err := s.repos.Scenes.ListOrdered(ctx, campaign.ID)
	if err != nil {
		return Export{}, errors.Wrap(err, "list scenes")
	}
	result, err := s.exporter.ExportPDF(ctx, campaign.Name, scenes, outputPath)
	if err != nil {
		return Export{}, errors.Wrap(err, "export pdf", slog.String("campaign", campaign.Name))
	}
	return s.publish(ctx, result, "application/pdf"), nil
}

// ExportMP4 writes the session's campaign as a video. An empty outputPath uses the exporter's default.
func (s *Service) ExportMP4(ctx context.Context, sess Session, opts montage.Options, outputPath string) (Export, error) {
	ctx = withSession(ctx, sess)
	campaign, err := s.Campaign(ctx, sess)
	if err != nil {
		return Export{}, err
	}
	scenes, err := s.repos.Scenes.ListOrdered(ctx, campaign.ID)
	if err != nil {
		return Export{}, errors.Wrap(err, "list scenes")
	}
	result, err := s.exporter.ExportMP4(ctx, campaign.Name, scenes, opts, outputPath)
	if err != nil {
		return Export{}, errors.Wrap(err, "export mp4", slog.String("campaign", campaign.Name))
	}
	return s.publish(ctx, result, "video/mp4"), nil
}

// publish uploads the artifact. An upload failure leaves the local file in place and becomes a notice.
func (s *Service) publish(ctx context.Context, result montage.Result, contentType string) Export {
	export := Export{Result: result, Published: nil, Notices: nil}
	if s.publisher == nil {
		return export
	}
	published, err := s.publisher.Publish(ctx, result.Path, contentType)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "publishing failed", errors.SlogError(err))
		export.Notices = append(export.Notices, Notice{
			Step:    "publish",
			Message: "The montage was saved locally but could not be uploaded: " + err.Error(),
			Err:     err,
		})
		return export
	}
	export.Published = &published
	return export
}
