// Package repositories reads and writes the campaign entities.
//
// Mutations report whether they were applied. An operation on an unknown identifier is not applied and leaves the
// stored collections untouched.
package repositories

import (
	"context"
	"github.com/google/uuid"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/jsondb"
	"github.com/myrjola/sagaboard/internal/models"
	"log/slog"
	"slices"
)

var (
	ErrStaleRevision    = errors.NewSentinel("entity was modified concurrently")
	ErrCampaignNotFound = errors.NewSentinel("campaign not found")
	ErrCampaignChanged  = errors.NewSentinel("scene campaign cannot be changed with update")
)

// DefaultHistoryLimit is the number of superseded images kept per entity.
const DefaultHistoryLimit = 5

// ImageRemover deletes image files no longer referenced by any entity.
type ImageRemover interface {
	Remove(ctx context.Context, paths ...string)
}

// Repositories bundles the entity repositories sharing one database.
type Repositories struct {
	Characters *CharacterRepository
	Campaigns  *CampaignRepository
	Scenes     *SceneRepository
}

// New creates the repositories. A negative historyLimit disables version history.
func New(db *jsondb.Database, images ImageRemover, historyLimit int, logger *slog.Logger) *Repositories {
	if historyLimit < 0 {
		historyLimit = 0
	}
	return &Repositories{
		Characters: NewCharacterRepository(db, images, historyLimit, logger),
		Campaigns:  NewCampaignRepository(db, images, logger),
		Scenes:     NewSceneRepository(db, images, historyLimit, logger),
	}
}

func newID() string {
	return uuid.NewString()
}

func checkRevision(stored, given int64) error {
	if given != 0 && given != stored {
		return ErrStaleRevision
	}
	return nil
}

// pushHistory appends previous to history and returns the trimmed history together with the entries dropped from it.
func pushHistory(history []string, previous string, limit int) ([]string, []string) {
	if previous != "" && !slices.Contains(history, previous) {
		history = append(history, previous)
	}
	if len(history) <= limit {
		return history, nil
	}
	cut := len(history) - limit
	pruned := slices.Clone(history[:cut])
	return slices.Clone(history[cut:]), pruned
}

func removeID(ids []string, id string) ([]string, bool) {
	if !slices.Contains(ids, id) {
		return ids, false
	}
	return slices.DeleteFunc(slices.Clone(ids), func(v string) bool { return v == id }), true
}

// references collects every image path still referenced by a character or a scene in the transaction.
func references(tx *jsondb.Tx) (map[string]bool, error) {
	refs := map[string]bool{}
	add := func(paths ...string) {
		for _, p := range paths {
			if p != "" {
				refs[p] = true
			}
		}
	}

	charDoc, err := tx.Document(jsondb.Characters)
	if err != nil {
		return nil, err
	}
	characters, err := jsondb.All[models.Character](charDoc)
	if err != nil {
		return nil, errors.Wrap(err, "read characters")
	}
	for _, c := range characters {
		add(c.PortraitPath)
		add(c.PortraitHistory...)
		add(c.ImagePaths...)
	}

	sceneDoc, err := tx.Document(jsondb.Scenes)
	if err != nil {
		return nil, err
	}
	scenes, err := jsondb.All[models.Scene](sceneDoc)
	if err != nil {
		return nil, errors.Wrap(err, "read scenes")
	}
	for _, s := range scenes {
		add(s.ImagePath)
		add(s.ImageHistory...)
	}
	return refs, nil
}

// unreferenced filters candidates down to the paths that no surviving entity refers to.
func unreferenced(tx *jsondb.Tx, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	refs, err := references(tx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range candidates {
		if p != "" && !refs[p] && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func removeImages(ctx context.Context, images ImageRemover, paths []string) {
	if images == nil || len(paths) == 0 {
		return
	}
	images.Remove(ctx, paths...)
}

func sortByCreated[T any](items []T, created func(T) models.Timestamp, id func(T) string) {
	slices.SortStableFunc(items, func(a, b T) int {
		if c := created(a).Compare(created(b).Time); c != 0 {
			return c
		}
		switch {
		case id(a) < id(b):
			return -1
		case id(a) > id(b):
			return 1
		default:
			return 0
		}
	})
}
