package main

import (
	"github.com/myrjola/sagaboard/internal/contexthelpers"
	"github.com/myrjola/sagaboard/internal/workflow"
	"net/http"
)

func (app *application) getSession(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, contexthelpers.Session(r.Context()))
}

// updateSession selects the campaign and illustration style of the session. An empty campaign clears the selection.
func (app *application) updateSession(w http.ResponseWriter, r *http.Request) {
	var sess workflow.Session
	if err := readJSON(w, r, &sess); err != nil {
		app.handleError(w, r, err)
		return
	}
	ctx := r.Context()
	if sess.CampaignID != "" {
		if _, err := app.service.Campaign(ctx, sess); err != nil {
			app.handleError(w, r, err)
			return
		}
	}
	app.sessionManager.Put(ctx, sessionCampaignKey, sess.CampaignID)
	app.sessionManager.Put(ctx, sessionStyleKey, sess.Style)
	app.writeJSON(w, r, http.StatusOK, sess)
}
