// Package workflow drives the user-facing operations of a session: creating characters and scenes with generated
// artwork, planning ahead, recapping, and exporting montages.
//
// A [Session] carries the state the user has selected. Every operation receives it explicitly so that the command line
// and the web server can keep it wherever suits them.
package workflow

import (
	"context"
	"github.com/myrjola/sagaboard/internal/ai"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/imagestore"
	"github.com/myrjola/sagaboard/internal/logging"
	"github.com/myrjola/sagaboard/internal/models"
	"github.com/myrjola/sagaboard/internal/montage"
	"github.com/myrjola/sagaboard/internal/publish"
	"github.com/myrjola/sagaboard/internal/repositories"
	"log/slog"
)

var (
	ErrNoCampaignSelected = errors.NewSentinel("no campaign selected")
	ErrSceneNotFound      = errors.NewSentinel("scene not found")
	ErrCharacterNotFound  = errors.NewSentinel("character not found")
)

// Session is the per-user context of the operations.
type Session struct {
	CampaignID string `json:"campaign_id"`
	// Style is the optional illustration style applied to new artwork, e.g. "watercolor".
	Style string `json:"style"`
}

// Generator is the generative content service. [ai.Client] implements it.
type Generator interface {
	ExpandCharacterPrompt(ctx context.Context, name, role, description, style string) (string, error)
	SummarizeCharacter(ctx context.Context, name, role, description string) (string, error)
	CaptionScene(ctx context.Context, scenePrompt string, characterNames []string) (string, error)
	GenerateImage(ctx context.Context, prompt string, size string) ([]byte, error)
	RecapText(ctx context.Context, scenes []models.TitledCaption) (string, error)
	ProposeFutureScenes(ctx context.Context, contextText string, steps int) ([]models.SceneProposal, error)
	SummarizeError(ctx context.Context, errorText, contextText string) (string, error)
}

// Publisher uploads exported artifacts. [publish.Publisher] implements it.
type Publisher interface {
	Publish(ctx context.Context, localPath string, contentType string) (publish.Published, error)
}

// Notice reports an optional step that failed without failing the operation.
type Notice struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

type Service struct {
	repos     *repositories.Repositories
	images    *imagestore.Store
	generator Generator
	exporter  *montage.Exporter
	publisher Publisher
	logger    *slog.Logger
}

// NewService composes the service. publisher may be nil when artifacts are not published.
func NewService(
	repos *repositories.Repositories,
	images *imagestore.Store,
	generator Generator,
	exporter *montage.Exporter,
	publisher Publisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		repos:     repos,
		images:    images,
		generator: generator,
		exporter:  exporter,
		publisher: publisher,
		logger:    logger.With("source", "workflow.Service"),
	}
}

func (s *Service) Repositories() *repositories.Repositories {
	return s.repos
}

func (s *Service) Images() *imagestore.Store {
	return s.images
}

// Campaign returns the campaign selected in the session.
func (s *Service) Campaign(ctx context.Context, sess Session) (*models.Campaign, error) {
	if sess.CampaignID == "" {
		return nil, ErrNoCampaignSelected
	}
	campaign, err := s.repos.Campaigns.Get(ctx, sess.CampaignID)
	if err != nil {
		return nil, errors.Wrap(err, "get campaign")
	}
	if campaign == nil {
		return nil, errors.Wrap(repositories.ErrCampaignNotFound, "get campaign",
			slog.String("campaignID", sess.CampaignID))
	}
	return campaign, nil
}

func withSession(ctx context.Context, sess Session) context.Context {
	if sess.CampaignID == "" {
		return ctx
	}
	return logging.WithAttrs(ctx, slog.String("campaignID", sess.CampaignID))
}

// notice records a failed optional step. Provider failures are rephrased for the user when possible.
func (s *Service) notice(ctx context.Context, step string, activity string, err error) Notice {
	s.logger.LogAttrs(ctx, slog.LevelWarn, "optional step failed",
		slog.String("step", step), errors.SlogError(err))
	n := Notice{Step: step, Message: err.Error(), Err: err}
	switch {
	case errors.Is(err, ai.ErrMissingAPIKey):
		n.Message = "AI features are disabled because no API key is configured."
		return n
	case errors.Is(err, ai.ErrInvalidAPIKey):
		n.Message = "AI features are disabled because the API key failed validation."
		return n
	}
	if summary, sumErr := s.generator.SummarizeError(ctx, err.Error(), activity); sumErr == nil {
		n.Message = summary
	}
	return n
}
