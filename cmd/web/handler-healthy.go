package main

import "net/http"

// healthy responds with a JSON object indicating that the server is healthy. AI availability is reported but does not
// affect health.
func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, map[string]any{
		"status":     "ok",
		"ai_enabled": app.aiClient.Enabled(),
	})
}
