package main

import (
	"github.com/myrjola/sagaboard/internal/models"
	"net/http"
)

type addCharacterRequest struct {
	CharacterID string `json:"character_id"`
}

type appliedResponse struct {
	Applied bool `json:"applied"`
}

func (app *application) listCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := app.service.Repositories().Campaigns.List(r.Context())
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, campaigns)
}

func (app *application) createCampaign(w http.ResponseWriter, r *http.Request) {
	var input models.NewCampaign
	if err := readJSON(w, r, &input); err != nil {
		app.handleError(w, r, err)
		return
	}
	campaign, err := app.service.Repositories().Campaigns.Create(r.Context(), input)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, campaign)
}

func (app *application) getCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := app.service.Repositories().Campaigns.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	if campaign == nil {
		app.notFound(w, r)
		return
	}
	app.writeJSON(w, r, http.StatusOK, campaign)
}

// addCampaignCharacter makes an existing character a member of the campaign.
func (app *application) addCampaignCharacter(w http.ResponseWriter, r *http.Request) {
	var req addCharacterRequest
	if err := readJSON(w, r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	ctx := r.Context()
	repos := app.service.Repositories()
	character, err := repos.Characters.Get(ctx, req.CharacterID)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	if character == nil {
		app.notFound(w, r)
		return
	}
	applied, err := repos.Campaigns.AddCharacter(ctx, r.PathValue("id"), req.CharacterID)
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
