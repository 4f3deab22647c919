package main

import (
	"encoding/json"
	"github.com/myrjola/sagaboard/internal/ai"
	"github.com/myrjola/sagaboard/internal/contexthelpers"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/models"
	"github.com/myrjola/sagaboard/internal/montage"
	"github.com/myrjola/sagaboard/internal/repositories"
	"github.com/myrjola/sagaboard/internal/workflow"
	"log/slog"
	"net/http"
)

const maxBodyBytes = 16 << 20

var errNotFound = errors.NewSentinel("not found")

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "marshal response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// readJSON decodes the request body into dst and rejects unknown fields.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Join(models.ErrInvalidInput, err)
	}
	return nil
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error",
		slog.String("method", method), slog.String("uri", uri), errors.SlogError(err))
	app.writeJSON(w, r, http.StatusInternalServerError,
		errorResponse{
			Error:     http.StatusText(http.StatusInternalServerError),
			RequestID: contexthelpers.RequestID(r.Context()),
		})
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelDebug, http.StatusText(status),
		slog.String("method", method), slog.String("uri", uri), errors.SlogError(err))
	app.writeJSON(w, r, status, errorResponse{Error: err.Error()}) //nolint:exhaustruct // request id only on server errors
}

// handleError answers with the status matching err. Unknown errors are server errors.
func (app *application) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		app.serverError(w, r, err)
		return
	}
	app.clientError(w, r, status, err)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errNotFound),
		errors.Is(err, repositories.ErrCampaignNotFound),
		errors.Is(err, workflow.ErrSceneNotFound),
		errors.Is(err, workflow.ErrCharacterNotFound):
		return http.StatusNotFound
	case errors.Is(err, repositories.ErrStaleRevision),
		errors.Is(err, workflow.ErrNoCampaignSelected),
		errors.Is(err, montage.ErrNoScenes),
		errors.Is(err, montage.ErrNoUsableScenes):
		return http.StatusConflict
	case errors.Is(err, ai.ErrMissingAPIKey), errors.Is(err, ai.ErrInvalidAPIKey):
		return http.StatusServiceUnavailable
	case errors.Is(err, ai.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ai.ErrProvider), errors.Is(err, ai.ErrEmptyResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (app *application) notFound(w http.ResponseWriter, r *http.Request) {
	app.clientError(w, r, http.StatusNotFound, errNotFound)
}
