package main

import (
	"github.com/myrjola/sagaboard/internal/contexthelpers"
	"github.com/myrjola/sagaboard/internal/models"
	"github.com/myrjola/sagaboard/internal/workflow"
	"net/http"
)

type createCharacterRequest struct {
	models.NewCharacter
	// ReferenceImage is base64 encoded in JSON.
	ReferenceImage   []byte `json:"reference_image"`
	Expand           bool   `json:"expand"`
	GeneratePortrait bool   `json:"generate_portrait"`
}

type characterResponse struct {
	Character *models.Character `json:"character"`
	Notices   []workflow.Notice `json:"notices"`
}

// listCharacters lists every character, or the members of the campaign given with the campaign query parameter.
func (app *application) listCharacters(w http.ResponseWriter, r *http.Request) {
	characters, err := app.service.Repositories().Characters.List(r.Context(), r.URL.Query().Get("campaign"))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, characters)
}

func (app *application) createCharacter(w http.ResponseWriter, r *http.Request) {
	var req createCharacterRequest
	if err := readJSON(w, r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	ctx := r.Context()
	character, notices, err := app.service.CreateCharacter(ctx, contexthelpers.Session(ctx), req.NewCharacter,
		workflow.CharacterOptions{
			ReferenceImage:   req.ReferenceImage,
			Expand:           req.Expand,
			GeneratePortrait: req.GeneratePortrait,
		})
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, characterResponse{Character: character, Notices: nonNil(notices)})
}

func (app *application) getCharacter(w http.ResponseWriter, r *http.Request) {
	character, err := app.service.Repositories().Characters.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	if character == nil {
		app.notFound(w, r)
		return
	}
	app.writeJSON(w, r, http.StatusOK, character)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
