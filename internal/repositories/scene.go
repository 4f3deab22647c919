package repositories

import (
	"context"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/jsondb"
	"github.com/myrjola/sagaboard/internal/models"
	"log/slog"
	"slices"
)

type SceneRepository struct {
	db           *jsondb.Database
	images       ImageRemover
	historyLimit int
	logger       *slog.Logger
}

func NewSceneRepository(
	db *jsondb.Database,
	images ImageRemover,
	historyLimit int,
	logger *slog.Logger,
) *SceneRepository {
	return &SceneRepository{
		db:           db,
		images:       images,
		historyLimit: historyLimit,
		logger:       logger.With("source", "SceneRepository"),
	}
}

// Create persists the scene and appends it to the campaign's order list.
func (r *SceneRepository) Create(ctx context.Context, input models.NewScene) (*models.Scene, error) {
	if err := models.Validate(input); err != nil {
		return nil, err
	}
	characterIDs := slices.Clone(input.CharacterIDs)
	if characterIDs == nil {
		characterIDs = []string{}
	}
	scene := models.Scene{
		ID:           newID(),
		CampaignID:   input.CampaignID,
		Title:        input.Title,
		Prompt:       input.Prompt,
		CharacterIDs: characterIDs,
		Style:        input.Style,
		Chapter:      input.Chapter,
		CreatedAt:    models.Now(),
		Revision:     1,
	}
	err := r.db.Update(ctx, func(tx *jsondb.Tx) error {
		campaignDoc, err := tx.Document(jsondb.Campaigns)
		if err != nil {
			return err
		}
		campaign, err := jsondb.Get[models.Campaign](campaignDoc, input.CampaignID)
		if err != nil {
			return err
		}
		if campaign == nil {
			return ErrCampaignNotFound
		}
		sceneDoc, err := tx.Document(jsondb.Scenes)
		if err != nil {
			return err
		}
		if err = jsondb.Put(sceneDoc, scene.ID, scene); err != nil {
			return err
		}
		campaign.SceneIDs = append(campaign.SceneIDs, scene.ID)
		campaign.Revision++
		return jsondb.Put(campaignDoc, campaign.ID, *campaign)
	}, jsondb.Campaigns, jsondb.Scenes)
	if err != nil {
		return nil, errors.Wrap(err, "create scene", slog.String("campaignID", input.CampaignID))
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "scene created",
		slog.String("sceneID", scene.ID), slog.String("campaignID", scene.CampaignID))
	return &scene, nil
}

// Get returns nil without error when the scene does not exist.
func (r *SceneRepository) Get(ctx context.Context, id string) (*models.Scene, error) {
	var scene *models.Scene
	err := r.db.View(ctx, func(tx *jsondb.Tx) error {
		doc, err := tx.Document(jsondb.Scenes)
		if err != nil {
			return err
		}
		scene, err = jsondb.Get[models.Scene](doc, id)
		return err
	}, jsondb.Scenes)
	if err != nil {
		return nil, errors.Wrap(err, "get scene", slog.String("sceneID", id))
	}
	return scene, nil
}

// List returns scenes ordered by creation time, optionally restricted to a campaign.
func (r *SceneRepository) List(ctx context.Context, campaignID string) ([]models.Scene, error) {
	var scenes []models.Scene
	err := r.db.View(ctx, func(tx *jsondb.Tx) error {
		doc, err := tx.Document(jsondb.Scenes)
		if err != nil {
			return err
		}
		scenes, err = jsondb.All[models.Scene](doc)
		return err
	}, jsondb.Scenes)
	if err != nil {
		return nil, errors.Wrap(err, "list scenes", slog.String("campaignID", campaignID))
	}
	if campaignID != "" {
		scenes = slices.DeleteFunc(scenes, func(s models.Scene) bool { return s.CampaignID != campaignID })
	}
	sortByCreated(scenes,
		func(s models.Scene) models.Timestamp { return s.CreatedAt },
		func(s models.Scene) string { return s.ID })
	return scenes, nil
}

// ListOrdered returns the campaign's scenes in the campaign-defined order. Scenes referring to the campaign but missing
// from its order list follow by creation time.
func (r *SceneRepository) ListOrdered(ctx context.Context, campaignID string) ([]models.Scene, error) {
	var scenes []models.Scene
	err := r.db.View(ctx, func(tx *jsondb.Tx) error {
		campaignDoc, err := tx.Document(jsondb.Campaigns)
		if err != nil {
			return err
		}
		campaign, err := jsondb.Get[models.Campaign](campaignDoc, campaignID)
		if err != nil {
			return err
		}
		if campaign == nil {
			return ErrCampaignNotFound
		}
		sceneDoc, err := tx.Document(jsondb.Scenes)
		if err != nil {
			return err
		}

		scenes = make([]models.Scene, 0, len(campaign.SceneIDs))
		seen := map[string]bool{}
		for _, id := range campaign.SceneIDs {
			if seen[id] {
				continue
			}
			var s *models.Scene
			if s, err = jsondb.Get[models.Scene](sceneDoc, id); err != nil {
				return err
			}
			if s == nil {
				continue
			}
			seen[id] = true
			scenes = append(scenes, *s)
		}

		all, err := jsondb.All[models.Scene](sceneDoc)
		if err != nil {
			return err
		}
		var stray []models.Scene
		for _, s := range all {
			if s.CampaignID == campaignID && !seen[s.ID] {
				stray = append(stray, s)
			}
		}
		sortByCreated(stray,
			func(s models.Scene) models.Timestamp { return s.CreatedAt },
			func(s models.Scene) string { return s.ID })
		scenes = append(scenes, stray...)
		return nil
	}, jsondb.Campaigns, jsondb.Scenes)
	if err != nil {
		return nil, errors.Wrap(err, "list ordered scenes", slog.String("campaignID", campaignID))
	}
	return scenes, nil
}

// Update replaces the stored scene. Use [CampaignRepository.AddScene] to move a scene between campaigns.
//
// A replaced illustration moves to the image history like with [SceneRepository.SetImage]. Image files the update
// leaves unreferenced are deleted. A non-zero Revision must match the stored revision or ErrStaleRevision is returned. The creation time is kept.
func (r *SceneRepository) Update(ctx context.Context, scene models.Scene) (bool, error) {
	applied, err := r.modify(ctx, scene.ID, func(stored *models.Scene) ([]string, error) {
		if err := checkRevision(stored.Revision, scene.Revision); err != nil {
			return nil, err
		}
		if scene.CampaignID != stored.CampaignID {
			return nil, ErrCampaignChanged
		}
		if err := models.Validate(models.NewScene{
			CampaignID: scene.CampaignID,
			Title:      scene.Title,
			Prompt:     scene.Prompt,
		}); err != nil {
			return nil, err
		}
		previous := *stored
		*stored = scene
		stored.CreatedAt = previous.CreatedAt
		stored.ImageHistory = slices.Clone(scene.ImageHistory)
		if stored.CharacterIDs == nil {
			stored.CharacterIDs = []string{}
		}
		var pruned []string
		if stored.ImagePath != previous.ImagePath {
			stored.ImageHistory, pruned = pushHistory(stored.ImageHistory, previous.ImagePath, r.historyLimit)
		}
		candidates := append([]string{previous.ImagePath}, previous.ImageHistory...)
		return append(candidates, pruned...), nil
	})
	if err != nil {
		return false, errors.Wrap(err, "update scene", slog.String("sceneID", scene.ID))
	}
	return applied, nil
}

// SetImage makes path the scene illustration. The previous illustration moves to the image history, of which only the
// most recent entries are kept.
func (r *SceneRepository) SetImage(ctx context.Context, id string, path string) (bool, error) {
	applied, err := r.modify(ctx, id, func(stored *models.Scene) ([]string, error) {
		if stored.ImagePath == path {
			return nil, nil
		}
		var pruned []string
		stored.ImageHistory, pruned = pushHistory(stored.ImageHistory, stored.ImagePath, r.historyLimit)
		stored.ImagePath = path
		return pruned, nil
	})
	if err != nil {
		return false, errors.Wrap(err, "set scene image", slog.String("sceneID", id))
	}
	return applied, nil
}

func (r *SceneRepository) SetCaption(ctx context.Context, id string, caption string) (bool, error) {
	applied, err := r.modify(ctx, id, func(stored *models.Scene) ([]string, error) {
		stored.Caption = caption
		return nil, nil
	})
	if err != nil {
		return false, errors.Wrap(err, "set scene caption", slog.String("sceneID", id))
	}
	return applied, nil
}

func (r *SceneRepository) modify(
	ctx context.Context,
	id string,
	fn func(stored *models.Scene) ([]string, error),
) (bool, error) {
	var (
		applied bool
		garbage []string
	)
	err := r.db.Update(ctx, func(tx *jsondb.Tx) error {
		doc, err := tx.Document(jsondb.Scenes)
		if err != nil {
			return err
		}
		stored, err := jsondb.Get[models.Scene](doc, id)
		if err != nil || stored == nil {
			return err
		}
		revision := stored.Revision
		candidates, err := fn(stored)
		if err != nil {
			return err
		}
		stored.ID = id
		stored.Revision = revision + 1
		if err = jsondb.Put(doc, id, *stored); err != nil {
			return err
		}
		applied = true
		garbage, err = unreferenced(tx, candidates)
		return err
	}, jsondb.Scenes, jsondb.Characters)
	if err != nil {
		return false, err
	}
	removeImages(ctx, r.images, garbage)
	return applied, nil
}

// Delete removes the scene from every campaign's order list and deletes its image files.
func (r *SceneRepository) Delete(ctx context.Context, id string) (bool, error) {
	var (
		applied bool
		garbage []string
	)
	err := r.db.Update(ctx, func(tx *jsondb.Tx) error {
		sceneDoc, err := tx.Document(jsondb.Scenes)
		if err != nil {
			return err
		}
		scene, err := jsondb.Get[models.Scene](sceneDoc, id)
		if err != nil || scene == nil {
			return err
		}
		if _, err = jsondb.Remove(sceneDoc, id); err != nil {
			return err
		}

		campaignDoc, err := tx.Document(jsondb.Campaigns)
		if err != nil {
			return err
		}
		campaigns, err := jsondb.All[models.Campaign](campaignDoc)
		if err != nil {
			return err
		}
		for _, c := range campaigns {
			var removed bool
			if c.SceneIDs, removed = removeID(c.SceneIDs, id); removed {
				c.Revision++
				if err = jsondb.Put(campaignDoc, c.ID, c); err != nil {
					return err
				}
			}
		}

		applied = true
		garbage, err = unreferenced(tx, append([]string{scene.ImagePath}, scene.ImageHistory...))
		return err
	}, jsondb.Campaigns, jsondb.Scenes, jsondb.Characters)
	if err != nil {
		return false, errors.Wrap(err, "delete scene", slog.String("sceneID", id))
	}
	removeImages(ctx, r.images, garbage)
	if applied {
		r.logger.LogAttrs(ctx, slog.LevelInfo, "scene deleted",
			slog.String("sceneID", id), slog.Int("filesRemoved", len(garbage)))
	}
	return applied, nil
}
