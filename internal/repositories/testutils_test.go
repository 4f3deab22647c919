package repositories_test

import (
	"context"
	"github.com/myrjola/sagaboard/internal/jsondb"
	"github.com/myrjola/sagaboard/internal/models"
	"github.com/myrjola/sagaboard/internal/repositories"
	"github.com/myrjola/sagaboard/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"slices"
	"sync"
	"testing"
)

// recordingRemover records the image paths the repositories ask to delete.
type recordingRemover struct {
	mu      sync.Mutex
	removed []string
}

func (r *recordingRemover) Remove(_ context.Context, paths ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, paths...)
}

func (r *recordingRemover) Removed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := slices.Clone(r.removed)
	slices.Sort(out)
	return out
}

// newTestRepositories creates repositories backed by a fresh data directory.
func newTestRepositories(t *testing.T, historyLimit int) (*repositories.Repositories, *recordingRemover) {
	t.Helper()
	logger := testhelpers.NewLogger(io.Discard)
	db, err := jsondb.Open(t.TempDir(), logger)
	require.NoError(t, err)
	remover := &recordingRemover{}
	return repositories.New(db, remover, historyLimit, logger), remover
}

func createCharacter(t *testing.T, repos *repositories.Repositories, name string) *models.Character {
	t.Helper()
	c, err := repos.Characters.Create(context.Background(), models.NewCharacter{
		Name:        name,
		Role:        "Ranger",
		Description: "Keeps watch over the northern pass.",
	})
	require.NoError(t, err)
	return c
}

func createCampaign(t *testing.T, repos *repositories.Repositories, name string) *models.Campaign {
	t.Helper()
	c, err := repos.Campaigns.Create(context.Background(), models.NewCampaign{Name: name})
	require.NoError(t, err)
	return c
}

func createScene(t *testing.T, repos *repositories.Repositories, campaignID, title string) *models.Scene {
	t.Helper()
	s, err := repos.Scenes.Create(context.Background(), models.NewScene{
		CampaignID: campaignID,
		Title:      title,
		Prompt:     "The party arrives at " + title,
	})
	require.NoError(t, err)
	return s
}
