package main

import (
	"bytes"
	"github.com/myrjola/sagaboard/internal/contexthelpers"
	"github.com/myrjola/sagaboard/internal/errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

type recapResponse struct {
	Recap string `json:"recap"`
}

func (app *application) recap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	text, err := app.service.Recap(ctx, contexthelpers.Session(ctx))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, recapResponse{Recap: text})
}

// montagePDF exports the session's campaign and sends the PDF as a download. When the montage was published the
// presigned link is sent in the X-Montage-Url header.
func (app *application) montagePDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	export, err := app.service.ExportPDF(ctx, contexthelpers.Session(ctx), "")
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	data, err := os.ReadFile(export.Path)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "read montage", slog.String("path", export.Path)))
		return
	}
	if export.Published != nil {
		w.Header().Set("X-Montage-Url", export.Published.URL)
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(export.Path)+`"`)
	http.ServeContent(w, r, filepath.Base(export.Path), time.Now(), bytes.NewReader(data))
}
