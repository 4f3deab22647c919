package main

import (
	"github.com/justinas/alice"
	"github.com/myrjola/sagaboard/internal/imagestore"
	"net/http"
	"path/filepath"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	imageServer := http.FileServer(http.Dir(filepath.Join(app.cfg.DataDir, imagestore.Dir)))
	mux.Handle("GET /images/", cacheForeverHeaders(http.StripPrefix("/images", imageServer)))

	mux.HandleFunc("GET /api/healthy", app.healthy)

	session := alice.New(app.sessionManager.LoadAndSave, app.loadSession)

	mux.Handle("GET /api/characters", session.ThenFunc(app.listCharacters))
	mux.Handle("POST /api/characters", session.ThenFunc(app.createCharacter))
	mux.Handle("GET /api/characters/{id}", session.ThenFunc(app.getCharacter))

	mux.Handle("GET /api/campaigns", session.ThenFunc(app.listCampaigns))
	mux.Handle("POST /api/campaigns", session.ThenFunc(app.createCampaign))
	mux.Handle("GET /api/campaigns/{id}", session.ThenFunc(app.getCampaign))
	mux.Handle("POST /api/campaigns/{id}/characters", session.ThenFunc(app.addCampaignCharacter))

	mux.Handle("GET /api/session", session.ThenFunc(app.getSession))
	mux.Handle("POST /api/session", session.ThenFunc(app.updateSession))

	mux.Handle("GET /api/scenes", session.ThenFunc(app.listScenes))
	mux.Handle("POST /api/scenes", session.ThenFunc(app.createScene))
	mux.Handle("POST /api/scenes/{id}/move-up", session.ThenFunc(app.moveSceneUp))
	mux.Handle("POST /api/scenes/{id}/move-down", session.ThenFunc(app.moveSceneDown))
	mux.Handle("DELETE /api/scenes/{id}", session.ThenFunc(app.deleteScene))

	mux.Handle("GET /api/recap", session.ThenFunc(app.recap))
	mux.Handle("GET /api/montage.pdf", session.ThenFunc(app.montagePDF))

	standard := alice.New(app.recoverPanic, app.logRequest, secureHeaders)
	return standard.Then(timeoutHandler(mux, app.requestTimeout()))
}
