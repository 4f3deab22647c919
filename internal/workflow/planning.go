package workflow

import (
	"context"
	"fmt"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/models"
	"github.com/myrjola/sagaboard/internal/montage"
	"log/slog"
	"strings"
)

// Plan holds the proposed follow-on scenes and, when requested, the scenes created from them.
type Plan struct {
	Proposals []models.SceneProposal `json:"proposals"`
	Created   []models.Scene         `json:"created"`
}

// PlanFutureScenes proposes up to steps scenes continuing the session's campaign. With create, every proposal becomes
// a scene at the end of the campaign, without artwork.
func (s *Service) PlanFutureScenes(ctx context.Context, sess Session, steps int, create bool) (Plan, error) {
	ctx = withSession(ctx, sess)
	campaign, err := s.Campaign(ctx, sess)
	if err != nil {
		return Plan{}, err
	}
	scenes, err := s.repos.Scenes.ListOrdered(ctx, campaign.ID)
	if err != nil {
		return Plan{}, errors.Wrap(err, "list scenes")
	}
	proposals, err := s.generator.ProposeFutureScenes(ctx, campaignContext(*campaign, scenes), steps)
	if err != nil {
		return Plan{}, errors.Wrap(err, "propose future scenes")
	}

	plan := Plan{Proposals: proposals, Created: []models.Scene{}}
	if !create {
		return plan, nil
	}
	for _, p := range proposals {
		scene, err := s.repos.Scenes.Create(ctx, models.NewScene{
			CampaignID:   campaign.ID,
			Title:        p.Title,
			Prompt:       p.Prompt,
			CharacterIDs: nil,
			Style:        sess.Style,
			Chapter:      "",
		})
		if err != nil {
			return plan, errors.Wrap(err, "create planned scene", slog.String("title", p.Title))
		}
		plan.Created = append(plan.Created, *scene)
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "planned scenes created", slog.Int("count", len(plan.Created)))
	return plan, nil
}

func campaignContext(campaign models.Campaign, scenes []models.Scene) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Campaign: %s\n", campaign.Name)
	if campaign.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", campaign.Description)
	}
	if len(scenes) == 0 {
		b.WriteString("No scenes have been played yet.")
		return b.String()
	}
	b.WriteString("Scenes so far:")
	for i, scene := range scenes {
		fmt.Fprintf(&b, "\n%d. %s: %s", i+1, scene.Title, sceneSummary(scene))
	}
	return b.String()
}

func sceneSummary(scene models.Scene) string {
	if scene.Caption != "" {
		return scene.Caption
	}
	return scene.Prompt
}

// Recap summarizes the session's campaign from its scenes in campaign order.
func (s *Service) Recap(ctx context.Context, sess Session) (string, error) {
	ctx = withSession(ctx, sess)
	campaign, err := s.Campaign(ctx, sess)
	if err != nil {
		return "", err
	}
	scenes, err := s.repos.Scenes.ListOrdered(ctx, campaign.ID)
	if err != nil {
		return "", errors.Wrap(err, "list scenes")
	}
	if len(scenes) == 0 {
		return "", montage.ErrNoScenes
	}
	captions := make([]models.TitledCaption, 0, len(scenes))
	for _, scene := range scenes {
		captions = append(captions, models.TitledCaption{Title: scene.Title, Caption: sceneSummary(scene)})
	}
	recap, err := s.generator.RecapText(ctx, captions)
	if err != nil {
		return "", errors.Wrap(err, "recap")
	}
	return recap, nil
}
