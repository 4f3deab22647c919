package main

import (
	"context"
	"github.com/myrjola/sagaboard/internal/contexthelpers"
	"github.com/myrjola/sagaboard/internal/models"
	"github.com/myrjola/sagaboard/internal/workflow"
	"net/http"
)

type sceneResponse struct {
	Scene   *models.Scene     `json:"scene"`
	Notices []workflow.Notice `json:"notices"`
}

// listScenes lists the scenes of the session's campaign in campaign order.
func (app *application) listScenes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaign, err := app.service.Campaign(ctx, contexthelpers.Session(ctx))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	scenes, err := app.service.Repositories().Scenes.ListOrdered(ctx, campaign.ID)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, scenes)
}

// createScene creates a scene in the session's campaign and illustrates it.
func (app *application) createScene(w http.ResponseWriter, r *http.Request) {
	var input models.NewScene
	if err := readJSON(w, r, &input); err != nil {
		app.handleError(w, r, err)
		return
	}
	ctx := r.Context()
	scene, notices, err := app.service.CreateScene(ctx, contexthelpers.Session(ctx), input)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, sceneResponse{Scene: scene, Notices: nonNil(notices)})
}

func (app *application) moveSceneUp(w http.ResponseWriter, r *http.Request) {
	app.moveScene(w, r, app.service.Repositories().Campaigns.MoveSceneUp)
}

func (app *application) moveSceneDown(w http.ResponseWriter, r *http.Request) {
	app.moveScene(w, r, app.service.Repositories().Campaigns.MoveSceneDown)
}

// moveScene reports applied false when the scene is already at the boundary.
func (app *application) moveScene(
	w http.ResponseWriter,
	r *http.Request,
	move func(ctx context.Context, campaignID, sceneID string) (bool, error),
) {
	ctx := r.Context()
	campaign, err := app.service.Campaign(ctx, contexthelpers.Session(ctx))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	sceneID := r.PathValue("id")
	if !campaign.HasScene(sceneID) {
		app.notFound(w, r)
		return
	}
	applied, err := move(ctx, campaign.ID, sceneID)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, appliedResponse{Applied: applied})
}

func (app *application) deleteScene(w http.ResponseWriter, r *http.Request) {
	applied, err := app.service.Repositories().Scenes.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	if !applied {
		app.notFound(w, r)
		return
	}
	app.writeJSON(w, r, http.StatusOK, appliedResponse{Applied: true})
}
