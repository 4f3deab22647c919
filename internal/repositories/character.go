package repositories

import (
	"context"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/jsondb"
	"github.com/myrjola/sagaboard/internal/models"
	"log/slog"
	"slices"
)

type CharacterRepository struct {
	db           *jsondb.Database
	images       ImageRemover
	historyLimit int
	logger       *slog.Logger
}

func NewCharacterRepository(
	db *jsondb.Database,
	images ImageRemover,
	historyLimit int,
	logger *slog.Logger,
) *CharacterRepository {
	return &CharacterRepository{
		db:           db,
		images:       images,
		historyLimit: historyLimit,
		logger:       logger.With("source", "CharacterRepository"),
	}
}

// Create validates input and persists a new character with a fresh identifier.
func (r *CharacterRepository) Create(ctx context.Context, input models.NewCharacter) (*models.Character, error) {
	if err := models.Validate(input); err != nil {
		return nil, err
	}
	imagePaths := slices.Clone(input.ImagePaths)
	if imagePaths == nil {
		imagePaths = []string{}
	}
	character := models.Character{
		ID:          newID(),
		Name:        input.Name,
		Role:        input.Role,
		Description: input.Description,
		Summary:     input.Summary,
		LongPrompt:  input.LongPrompt,
		ImagePaths:  imagePaths,
		CreatedAt:   models.Now(),
		Revision:    1,
	}
	err := r.db.Update(ctx, func(tx *jsondb.Tx) error {
		doc, err := tx.Document(jsondb.Characters)
		if err != nil {
			return err
		}
		return jsondb.Put(doc, character.ID, character)
	}, jsondb.Characters)
	if err != nil {
		return nil, errors.Wrap(err, "create character")
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "character created", slog.String("characterID", character.ID))
	return &character, nil
}

// Get returns nil without error when the character does not exist.
func (r *CharacterRepository) Get(ctx context.Context, id string) (*models.Character, error) {
	var character *models.Character
	err := r.db.View(ctx, func(tx *jsondb.Tx) error {
		doc, err := tx.Document(jsondb.Characters)
		if err != nil {
			return err
		}
		character, err = jsondb.Get[models.Character](doc, id)
		return err
	}, jsondb.Characters)
	if err != nil {
		return nil, errors.Wrap(err, "get character", slog.String("characterID", id))
	}
	return character, nil
}

// List returns the characters ordered by creation time.
//
// A non-empty campaignID restricts the result to the campaign's members in membership order. An unknown campaign has
// no members.
func (r *CharacterRepository) List(ctx context.Context, campaignID string) ([]models.Character, error) {
	var characters []models.Character
	err := r.db.View(ctx, func(tx *jsondb.Tx) error {
		doc, err := tx.Document(jsondb.Characters)
		if err != nil {
			return err
		}
		if campaignID == "" {
			if characters, err = jsondb.All[models.Character](doc); err != nil {
				return err
			}
			sortByCreated(characters,
				func(c models.Character) models.Timestamp { return c.CreatedAt },
				func(c models.Character) string { return c.ID })
			return nil
		}

		campaigns, err := tx.Document(jsondb.Campaigns)
		if err != nil {
			return err
		}
		campaign, err := jsondb.Get[models.Campaign](campaigns, campaignID)
		if err != nil || campaign == nil {
			return err
		}
		characters = make([]models.Character, 0, len(campaign.CharacterIDs))
		for _, id := range campaign.CharacterIDs {
			var c *models.Character
			if c, err = jsondb.Get[models.Character](doc, id); err != nil {
				return err
			}
			if c != nil {
				characters = append(characters, *c)
			}
		}
		return nil
	}, jsondb.Campaigns, jsondb.Characters)
	if err != nil {
		return nil, errors.Wrap(err, "list characters", slog.String("campaignID", campaignID))
	}
	if characters == nil {
		characters = []models.Character{}
	}
	return characters, nil
}

// Update replaces the stored character.
//
// A replaced portrait moves to the portrait history like with [CharacterRepository.SetPortrait]. Image files the
// update leaves unreferenced are deleted. A non-zero Revision must match the stored revision or ErrStaleRevision is returned. The creation time is kept.
func (r *CharacterRepository) Update(ctx context.Context, character models.Character) (bool, error) {
	applied, err := r.modify(ctx, character.ID, func(stored *models.Character) ([]string, error) {
		if err := checkRevision(stored.Revision, character.Revision); err != nil {
			return nil, err
		}
		if err := models.Validate(models.NewCharacter{
			Name:        character.Name,
			Role:        character.Role,
			Description: character.Description,
		}); err != nil {
			return nil, err
		}
		previous := *stored
		*stored = character
		stored.CreatedAt = previous.CreatedAt
		stored.PortraitHistory = slices.Clone(character.PortraitHistory)
		if stored.ImagePaths == nil {
			stored.ImagePaths = []string{}
		}
		var pruned []string
		if stored.PortraitPath != previous.PortraitPath {
			stored.PortraitHistory, pruned = pushHistory(stored.PortraitHistory, previous.PortraitPath, r.historyLimit)
		}
		candidates := append([]string{previous.PortraitPath}, previous.PortraitHistory...)
		candidates = append(candidates, previous.ImagePaths...)
		return append(candidates, pruned...), nil
	})
	if err != nil {
		return false, errors.Wrap(err, "update character", slog.String("characterID", character.ID))
	}
	return applied, nil
}

// SetPortrait makes path the current portrait. The previous portrait moves to the portrait history, of which only the
// most recent entries are kept.
func (r *CharacterRepository) SetPortrait(ctx context.Context, id string, path string) (bool, error) {
	applied, err := r.modify(ctx, id, func(stored *models.Character) ([]string, error) {
		if stored.PortraitPath == path {
			return nil, nil
		}
		var pruned []string
		stored.PortraitHistory, pruned = pushHistory(stored.PortraitHistory, stored.PortraitPath, r.historyLimit)
		stored.PortraitPath = path
		return pruned, nil
	})
	if err != nil {
		return false, errors.Wrap(err, "set portrait", slog.String("characterID", id))
	}
	return applied, nil
}

// AddImage appends a reference image to the character.
func (r *CharacterRepository) AddImage(ctx context.Context, id string, path string) (bool, error) {
	applied, err := r.modify(ctx, id, func(stored *models.Character) ([]string, error) {
		stored.ImagePaths = append(stored.ImagePaths, path)
		return nil, nil
	})
	if err != nil {
		return false, errors.Wrap(err, "add character image", slog.String("characterID", id))
	}
	return applied, nil
}

// modify loads the character, applies fn, and persists the result with an incremented revision. fn returns image
// paths that may be deleted once no entity references them.
func (r *CharacterRepository) modify(
	ctx context.Context,
	id string,
	fn func(stored *models.Character) ([]string, error),
) (bool, error) {
	var (
		applied bool
		garbage []string
	)
	err := r.db.Update(ctx, func(tx *jsondb.Tx) error {
		doc, err := tx.Document(jsondb.Characters)
		if err != nil {
			return err
		}
		stored, err := jsondb.Get[models.Character](doc, id)
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

// Delete removes the character from every campaign and scene and deletes its image files.
func (r *CharacterRepository) Delete(ctx context.Context, id string) (bool, error) {
	var (
		applied bool
		garbage []string
	)
	err := r.db.Update(ctx, func(tx *jsondb.Tx) error {
		charDoc, err := tx.Document(jsondb.Characters)
		if err != nil {
			return err
		}
		character, err := jsondb.Get[models.Character](charDoc, id)
		if err != nil || character == nil {
			return err
		}
		if _, err = jsondb.Remove(charDoc, id); err != nil {
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
			if c.CharacterIDs, removed = removeID(c.CharacterIDs, id); removed {
				c.Revision++
				if err = jsondb.Put(campaignDoc, c.ID, c); err != nil {
					return err
				}
			}
		}

		sceneDoc, err := tx.Document(jsondb.Scenes)
		if err != nil {
			return err
		}
		scenes, err := jsondb.All[models.Scene](sceneDoc)
		if err != nil {
			return err
		}
		for _, s := range scenes {
			var removed bool
			if s.CharacterIDs, removed = removeID(s.CharacterIDs, id); removed {
				s.Revision++
				if err = jsondb.Put(sceneDoc, s.ID, s); err != nil {
					return err
				}
			}
		}

		candidates := append([]string{character.PortraitPath}, character.PortraitHistory...)
		candidates = append(candidates, character.ImagePaths...)
		garbage, err = unreferenced(tx, candidates)
		applied = true
		return err
	}, jsondb.Campaigns, jsondb.Scenes, jsondb.Characters)
	if err != nil {
		return false, errors.Wrap(err, "delete character", slog.String("characterID", id))
	}
	removeImages(ctx, r.images, garbage)
	if applied {
		r.logger.LogAttrs(ctx, slog.LevelInfo, "character deleted",
			slog.String("characterID", id), slog.Int("filesRemoved", len(garbage)))
	}
	return applied, nil
}
