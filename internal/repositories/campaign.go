package repositories

import (
	"context"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/jsondb"
	"github.com/myrjola/sagaboard/internal/models"
	"log/slog"
	"slices"
)

type CampaignRepository struct {
	db     *jsondb.Database
	images ImageRemover
	logger *slog.Logger
}

func NewCampaignRepository(db *jsondb.Database, images ImageRemover, logger *slog.Logger) *CampaignRepository {
	return &CampaignRepository{
		db:     db,
		images: images,
		logger: logger.With("source", "CampaignRepository"),
	}
}

func (r *CampaignRepository) Create(ctx context.Context, input models.NewCampaign) (*models.Campaign, error) {
	if err := models.Validate(input); err != nil {
		return nil, err
	}
	campaign := models.Campaign{
		ID:           newID(),
		Name:         input.Name,
		Description:  input.Description,
		CharacterIDs: []string{},
		SceneIDs:     []string{},
		CreatedAt:    models.Now(),
		Revision:     1,
	}
	err := r.db.Update(ctx, func(tx *jsondb.Tx) error {
		doc, err := tx.Document(jsondb.Campaigns)
		if err != nil {
			return err
		}
		return jsondb.Put(doc, campaign.ID, campaign)
	}, jsondb.Campaigns)
	if err != nil {
		return nil, errors.Wrap(err, "create campaign")
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "campaign created", slog.String("campaignID", campaign.ID))
	return &campaign, nil
}

// Get returns nil without error when the campaign does not exist.
func (r *CampaignRepository) Get(ctx context.Context, id string) (*models.Campaign, error) {
	var campaign *models.Campaign
	err := r.db.View(ctx, func(tx *jsondb.Tx) error {
		doc, err := tx.Document(jsondb.Campaigns)
		if err != nil {
			return err
		}
		campaign, err = jsondb.Get[models.Campaign](doc, id)
		return err
	}, jsondb.Campaigns)
	if err != nil {
		return nil, errors.Wrap(err, "get campaign", slog.String("campaignID", id))
	}
	return campaign, nil
}

// List returns the campaigns ordered by creation time.
func (r *CampaignRepository) List(ctx context.Context) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := r.db.View(ctx, func(tx *jsondb.Tx) error {
		doc, err := tx.Document(jsondb.Campaigns)
		if err != nil {
			return err
		}
		campaigns, err = jsondb.All[models.Campaign](doc)
		return err
	}, jsondb.Campaigns)
	if err != nil {
		return nil, errors.Wrap(err, "list campaigns")
	}
	sortByCreated(campaigns,
		func(c models.Campaign) models.Timestamp { return c.CreatedAt },
		func(c models.Campaign) string { return c.ID })
	return campaigns, nil
}

// Update replaces the stored campaign.
//
// A non-zero Revision must match the stored revision or ErrStaleRevision is returned. The creation time is kept.
func (r *CampaignRepository) Update(ctx context.Context, campaign models.Campaign) (bool, error) {
	applied, err := r.modify(ctx, campaign.ID, func(stored *models.Campaign) (bool, error) {
		if err := checkRevision(stored.Revision, campaign.Revision); err != nil {
			return false, err
		}
		if err := models.Validate(models.NewCampaign{Name: campaign.Name}); err != nil {
			return false, err
		}
		created := stored.CreatedAt
		*stored = campaign
		stored.CreatedAt = created
		if stored.CharacterIDs == nil {
			stored.CharacterIDs = []string{}
		}
		if stored.SceneIDs == nil {
			stored.SceneIDs = []string{}
		}
		return true, nil
	}, jsondb.Campaigns)
	if err != nil {
		return false, errors.Wrap(err, "update campaign", slog.String("campaignID", campaign.ID))
	}
	return applied, nil
}

// AddCharacter makes the character a member of the campaign. Adding an existing member is applied without creating a
// duplicate.
func (r *CampaignRepository) AddCharacter(ctx context.Context, campaignID, characterID string) (bool, error) {
	applied, err := r.modifyWith(ctx, campaignID, func(tx *jsondb.Tx, stored *models.Campaign) (bool, error) {
		doc, err := tx.Document(jsondb.Characters)
		if err != nil {
			return false, err
		}
		if !doc.Has(characterID) {
			return false, nil
		}
		if stored.HasCharacter(characterID) {
			return false, nil
		}
		stored.CharacterIDs = append(stored.CharacterIDs, characterID)
		return true, nil
	}, jsondb.Campaigns, jsondb.Characters)
	if err != nil {
		return false, errors.Wrap(err, "add character to campaign",
			slog.String("campaignID", campaignID), slog.String("characterID", characterID))
	}
	if !applied {
		return r.isMember(ctx, campaignID, characterID)
	}
	return true, nil
}

func (r *CampaignRepository) isMember(ctx context.Context, campaignID, characterID string) (bool, error) {
	campaign, err := r.Get(ctx, campaignID)
	if err != nil || campaign == nil {
		return false, err
	}
	return campaign.HasCharacter(characterID), nil
}

// RemoveCharacter ends the character's membership. Scenes keep referring to the character.
func (r *CampaignRepository) RemoveCharacter(ctx context.Context, campaignID, characterID string) (bool, error) {
	applied, err := r.modify(ctx, campaignID, func(stored *models.Campaign) (bool, error) {
		var removed bool
		stored.CharacterIDs, removed = removeID(stored.CharacterIDs, characterID)
		return removed, nil
	}, jsondb.Campaigns)
	if err != nil {
		return false, errors.Wrap(err, "remove character from campaign",
			slog.String("campaignID", campaignID), slog.String("characterID", characterID))
	}
	return applied, nil
}

// AddScene links the scene into the campaign's order list.
//
// Linking is idempotent. A scene belonging to another campaign is moved.
func (r *CampaignRepository) AddScene(ctx context.Context, campaignID, sceneID string) (bool, error) {
	var applied bool
	err := r.db.Update(ctx, func(tx *jsondb.Tx) error {
		campaignDoc, err := tx.Document(jsondb.Campaigns)
		if err != nil {
			return err
		}
		sceneDoc, err := tx.Document(jsondb.Scenes)
		if err != nil {
			return err
		}
		campaign, err := jsondb.Get[models.Campaign](campaignDoc, campaignID)
		if err != nil || campaign == nil {
			return err
		}
		scene, err := jsondb.Get[models.Scene](sceneDoc, sceneID)
		if err != nil || scene == nil {
			return err
		}
		applied = true

		if scene.CampaignID != campaignID {
			var previous *models.Campaign
			if previous, err = jsondb.Get[models.Campaign](campaignDoc, scene.CampaignID); err != nil {
				return err
			}
			if previous != nil {
				var removed bool
				if previous.SceneIDs, removed = removeID(previous.SceneIDs, sceneID); removed {
					previous.Revision++
					if err = jsondb.Put(campaignDoc, previous.ID, *previous); err != nil {
						return err
					}
				}
			}
			scene.CampaignID = campaignID
			scene.Revision++
			if err = jsondb.Put(sceneDoc, scene.ID, *scene); err != nil {
				return err
			}
		}

		if campaign.HasScene(sceneID) {
			return nil
		}
		campaign.SceneIDs = append(campaign.SceneIDs, sceneID)
		campaign.Revision++
		return jsondb.Put(campaignDoc, campaign.ID, *campaign)
	}, jsondb.Campaigns, jsondb.Scenes)
	if err != nil {
		return false, errors.Wrap(err, "add scene to campaign",
			slog.String("campaignID", campaignID), slog.String("sceneID", sceneID))
	}
	return applied, nil
}

// MoveSceneUp swaps the scene with its predecessor. Moving the first scene is not applied.
func (r *CampaignRepository) MoveSceneUp(ctx context.Context, campaignID, sceneID string) (bool, error) {
	return r.moveScene(ctx, campaignID, sceneID, -1)
}

// MoveSceneDown swaps the scene with its successor. Moving the last scene is not applied.
func (r *CampaignRepository) MoveSceneDown(ctx context.Context, campaignID, sceneID string) (bool, error) {
	return r.moveScene(ctx, campaignID, sceneID, 1)
}

func (r *CampaignRepository) moveScene(ctx context.Context, campaignID, sceneID string, delta int) (bool, error) {
	applied, err := r.modify(ctx, campaignID, func(stored *models.Campaign) (bool, error) {
		i := stored.ScenePosition(sceneID)
		j := i + delta
		if i < 0 || j < 0 || j >= len(stored.SceneIDs) {
			return false, nil
		}
		stored.SceneIDs[i], stored.SceneIDs[j] = stored.SceneIDs[j], stored.SceneIDs[i]
		return true, nil
	}, jsondb.Campaigns)
	if err != nil {
		return false, errors.Wrap(err, "move scene",
			slog.String("campaignID", campaignID), slog.String("sceneID", sceneID), slog.Int("delta", delta))
	}
	return applied, nil
}

// Delete removes the campaign together with its scenes and their image files. Member characters are kept.
func (r *CampaignRepository) Delete(ctx context.Context, id string) (bool, error) {
	var (
		applied bool
		garbage []string
		scenes  int
	)
	err := r.db.Update(ctx, func(tx *jsondb.Tx) error {
		campaignDoc, err := tx.Document(jsondb.Campaigns)
		if err != nil {
			return err
		}
		if applied, err = jsondb.Remove(campaignDoc, id); err != nil || !applied {
			return err
		}

		sceneDoc, err := tx.Document(jsondb.Scenes)
		if err != nil {
			return err
		}
		all, err := jsondb.All[models.Scene](sceneDoc)
		if err != nil {
			return err
		}
		var candidates []string
		for _, s := range all {
			if s.CampaignID != id {
				continue
			}
			if _, err = jsondb.Remove(sceneDoc, s.ID); err != nil {
				return err
			}
			scenes++
			candidates = append(candidates, s.ImagePath)
			candidates = append(candidates, s.ImageHistory...)
		}
		garbage, err = unreferenced(tx, candidates)
		return err
	}, jsondb.Campaigns, jsondb.Scenes, jsondb.Characters)
	if err != nil {
		return false, errors.Wrap(err, "delete campaign", slog.String("campaignID", id))
	}
	removeImages(ctx, r.images, garbage)
	if applied {
		r.logger.LogAttrs(ctx, slog.LevelInfo, "campaign deleted",
			slog.String("campaignID", id), slog.Int("scenesDeleted", scenes), slog.Int("filesRemoved", len(garbage)))
	}
	return applied, nil
}

func (r *CampaignRepository) modify(
	ctx context.Context,
	id string,
	fn func(stored *models.Campaign) (bool, error),
	collections ...jsondb.Collection,
) (bool, error) {
	return r.modifyWith(ctx, id, func(_ *jsondb.Tx, stored *models.Campaign) (bool, error) {
		return fn(stored)
	}, collections...)
}

// modifyWith loads the campaign and applies fn. The campaign is persisted with an incremented revision when fn reports
// a change.
func (r *CampaignRepository) modifyWith(
	ctx context.Context,
	id string,
	fn func(tx *jsondb.Tx, stored *models.Campaign) (bool, error),
	collections ...jsondb.Collection,
) (bool, error) {
	var changed bool
	err := r.db.Update(ctx, func(tx *jsondb.Tx) error {
		doc, err := tx.Document(jsondb.Campaigns)
		if err != nil {
			return err
		}
		stored, err := jsondb.Get[models.Campaign](doc, id)
		if err != nil || stored == nil {
			return err
		}
		revision := stored.Revision
		stored.SceneIDs = slices.Clone(stored.SceneIDs)
		if changed, err = fn(tx, stored); err != nil || !changed {
			return err
		}
		stored.ID = id
		stored.Revision = revision + 1
		return jsondb.Put(doc, id, *stored)
	}, collections...)
	return changed, err
}
