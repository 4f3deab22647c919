package workflow

import (
	"context"
	"fmt"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/models"
	"log/slog"
	"strings"
)

// CreateScene persists a scene in the session's campaign, illustrates it, and captions it.
//
// The scene is kept when illustration or captioning fails. Failures are returned as notices.
func (s *Service) CreateScene(ctx context.Context, sess Session, input models.NewScene) (*models.Scene, []Notice, error) {
	ctx = withSession(ctx, sess)
	if input.CampaignID == "" {
		input.CampaignID = sess.CampaignID
	}
	if input.CampaignID == "" {
		return nil, nil, ErrNoCampaignSelected
	}
	if input.Style == "" {
		input.Style = sess.Style
	}

	scene, err := s.repos.Scenes.Create(ctx, input)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create scene")
	}
	characters, err := s.sceneCharacters(ctx, scene.CharacterIDs)
	if err != nil {
		return scene, nil, err
	}

	var notices []Notice
	if err = s.illustrate(ctx, scene, characters); err != nil {
		notices = append(notices, s.notice(ctx, "illustration", "illustrating a scene", err))
	}

	names := make([]string, 0, len(characters))
	for _, c := range characters {
		names = append(names, c.Name)
	}
	caption, err := s.generator.CaptionScene(ctx, scene.Prompt, names)
	if err != nil {
		notices = append(notices, s.notice(ctx, "caption", "captioning a scene", err))
	} else if _, err = s.repos.Scenes.SetCaption(ctx, scene.ID, caption); err != nil {
		return scene, notices, errors.Wrap(err, "set caption")
	}

	updated, err := s.repos.Scenes.Get(ctx, scene.ID)
	if err != nil {
		return scene, notices, errors.Wrap(err, "reload scene")
	}
	if updated != nil {
		scene = updated
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "scene composed",
		slog.String("sceneID", scene.ID), slog.Int("notices", len(notices)))
	return scene, notices, nil
}

// RegenerateSceneImage illustrates the scene again. The previous image moves to the version history.
func (s *Service) RegenerateSceneImage(ctx context.Context, sess Session, sceneID string) (*models.Scene, error) {
	ctx = withSession(ctx, sess)
	scene, err := s.repos.Scenes.Get(ctx, sceneID)
	if err != nil {
		return nil, errors.Wrap(err, "get scene")
	}
	if scene == nil {
		return nil, errors.Wrap(ErrSceneNotFound, "regenerate scene image", slog.String("sceneID", sceneID))
	}
	if scene.Style == "" {
		scene.Style = sess.Style
	}
	characters, err := s.sceneCharacters(ctx, scene.CharacterIDs)
	if err != nil {
		return nil, err
	}
	if err = s.illustrate(ctx, scene, characters); err != nil {
		return nil, err
	}
	updated, err := s.repos.Scenes.Get(ctx, sceneID)
	if err != nil {
		return nil, errors.Wrap(err, "reload scene")
	}
	if updated == nil {
		return nil, errors.Wrap(ErrSceneNotFound, "reload scene", slog.String("sceneID", sceneID))
	}
	return updated, nil
}

// Caption writes a new caption for the scene.
func (s *Service) Caption(ctx context.Context, sess Session, sceneID string) (*models.Scene, error) {
	ctx = withSession(ctx, sess)
	scene, err := s.repos.Scenes.Get(ctx, sceneID)
	if err != nil {
		return nil, errors.Wrap(err, "get scene")
	}
	if scene == nil {
		return nil, errors.Wrap(ErrSceneNotFound, "caption scene", slog.String("sceneID", sceneID))
	}
	characters, err := s.sceneCharacters(ctx, scene.CharacterIDs)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(characters))
	for _, c := range characters {
		names = append(names, c.Name)
	}
	caption, err := s.generator.CaptionScene(ctx, scene.Prompt, names)
	if err != nil {
		return nil, errors.Wrap(err, "caption scene")
	}
	if _, err = s.repos.Scenes.SetCaption(ctx, sceneID, caption); err != nil {
		return nil, errors.Wrap(err, "set caption")
	}
	scene.Caption = caption
	return scene, nil
}

// illustrate generates and stores a new image for the scene.
func (s *Service) illustrate(ctx context.Context, scene *models.Scene, characters []models.Character) error {
	data, err := s.generator.GenerateImage(ctx, ScenePrompt(scene.Prompt, characters, scene.Style), "")
	if err != nil {
		return errors.Wrap(err, "generate scene image")
	}
	path, err := s.images.Save(ctx, data, "scene-"+scene.ID+".png",
		models.ImageRef{CampaignID: scene.CampaignID, SceneID: scene.ID})
	if err != nil {
		return errors.Wrap(err, "save scene image")
	}
	applied, err := s.repos.Scenes.SetImage(ctx, scene.ID, path)
	if err != nil || !applied {
		s.images.Remove(ctx, path)
		if err == nil {
			err = ErrSceneNotFound
		}
		return errors.Wrap(err, "set scene image", slog.String("sceneID", scene.ID))
	}
	return nil
}

// sceneCharacters loads the involved characters in the scene's order. Deleted characters are skipped.
func (s *Service) sceneCharacters(ctx context.Context, ids []string) ([]models.Character, error) {
	characters := make([]models.Character, 0, len(ids))
	for _, id := range ids {
		c, err := s.repos.Characters.Get(ctx, id)
		if err != nil {
			return nil, errors.Wrap(err, "get character", slog.String("characterID", id))
		}
		if c != nil {
			characters = append(characters, *c)
		}
	}
	return characters, nil
}

// ScenePrompt combines the scene prompt with the descriptions of the involved characters and the style. A character's
// long prompt is preferred over the short description.
func ScenePrompt(prompt string, characters []models.Character, style string) string {
	var b strings.Builder
	b.WriteString("Illustrate the scene: ")
	b.WriteString(prompt)
	if len(characters) > 0 {
		parts := make([]string, 0, len(characters))
		for _, c := range characters {
			if c.LongPrompt != "" {
				parts = append(parts, c.Name+": "+c.LongPrompt)
			} else {
				parts = append(parts, fmt.Sprintf("%s (%s): %s", c.Name, c.Role, c.Description))
			}
		}
		b.WriteString(". Characters: ")
		b.WriteString(strings.Join(parts, "; "))
	}
	if style != "" {
		b.WriteString(". Render in ")
		b.WriteString(style)
		b.WriteString(" style.")
	}
	return b.String()
}
