package main

import (
	"bytes"
	"context"
	"encoding/json"
	"github.com/myrjola/sagaboard/internal/e2etest"
	"github.com/myrjola/sagaboard/internal/models"
	"github.com/myrjola/sagaboard/internal/workflow"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthy(t *testing.T) {
	ctx := context.Background()
	client := startTestServer(t, testEnv(t, nil)).Client()

	health, err := client.Healthy(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
	require.False(t, health.AIEnabled)
}

func TestCampaignFlow(t *testing.T) {
	ctx := context.Background()
	client := startTestServer(t, testEnv(t, nil)).Client()

	campaign, err := client.CreateCampaign(ctx, models.NewCampaign{Name: "Lost Mines", Description: "Goblins."})
	require.NoError(t, err)

	var created struct {
		Character models.Character  `json:"character"`
		Notices   []workflow.Notice `json:"notices"`
	}
	require.NoError(t, client.DoJSON(ctx, http.MethodPost, "/api/characters", map[string]any{
		"name": "Arin", "role": "Ranger", "description": "A quiet tracker.",
	}, http.StatusCreated, &created))
	require.Empty(t, created.Notices)

	require.NoError(t, client.DoJSON(ctx, http.MethodPost, "/api/campaigns/"+campaign.ID+"/characters",
		map[string]string{"character_id": created.Character.ID}, http.StatusOK, nil))

	var members []models.Character
	require.NoError(t, client.DoJSON(ctx, http.MethodGet, "/api/characters?campaign="+campaign.ID, nil,
		http.StatusOK, &members))
	require.Len(t, members, 1)
	require.Equal(t, "Arin", members[0].Name)

	// Scenes need a selected campaign.
	resp, err := client.Do(ctx, http.MethodGet, "/api/scenes", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.Status)

	require.NoError(t, client.SelectCampaign(ctx, workflow.Session{CampaignID: campaign.ID, Style: "ink"}))
	var sess workflow.Session
	require.NoError(t, client.DoJSON(ctx, http.MethodGet, "/api/session", nil, http.StatusOK, &sess))
	require.Equal(t, campaign.ID, sess.CampaignID)
	require.Equal(t, "ink", sess.Style)

	sceneIDs := make([]string, 0, 2)
	for _, title := range []string{"Ambush", "Hideout"} {
		result, err := client.CreateScene(ctx, models.NewScene{
			Title: title, Prompt: "Goblins", CharacterIDs: []string{created.Character.ID},
		})
		require.NoError(t, err)
		require.Equal(t, "ink", result.Scene.Style)
		// Without an API key the scene is kept and both AI steps are reported.
		require.Len(t, result.Notices, 2)
		require.Contains(t, result.Notices[0].Message, "no API key")
		sceneIDs = append(sceneIDs, result.Scene.ID)
	}

	var applied appliedResponse
	require.NoError(t, client.DoJSON(ctx, http.MethodPost, "/api/scenes/"+sceneIDs[1]+"/move-up", nil,
		http.StatusOK, &applied))
	require.True(t, applied.Applied)
	require.NoError(t, client.DoJSON(ctx, http.MethodPost, "/api/scenes/"+sceneIDs[1]+"/move-up", nil,
		http.StatusOK, &applied))
	require.False(t, applied.Applied)

	scenes, err := client.ListScenes(ctx)
	require.NoError(t, err)
	require.Len(t, scenes, 2)
	require.Equal(t, "Hideout", scenes[0].Title)
	require.Equal(t, "Ambush", scenes[1].Title)

	resp, err = client.Do(ctx, http.MethodGet, "/api/recap", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.Status)

	pdf, err := client.DownloadMontage(ctx)
	require.NoError(t, err)
	require.Equal(t, "application/pdf", pdf.Header.Get("Content-Type"))
	require.Contains(t, pdf.Header.Get("Content-Disposition"), "Lost_Mines_montage.pdf")
	require.True(t, bytes.HasPrefix(pdf.Body, []byte("%PDF-")))

	require.NoError(t, client.DoJSON(ctx, http.MethodDelete, "/api/scenes/"+sceneIDs[0], nil, http.StatusOK, nil))
	resp, err = client.Do(ctx, http.MethodDelete, "/api/scenes/"+sceneIDs[0], nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.Status)

	require.NoError(t, client.DoJSON(ctx, http.MethodGet, "/api/campaigns/"+campaign.ID, nil, http.StatusOK, &campaign))
	require.Equal(t, []string{sceneIDs[1]}, campaign.SceneIDs)
}

func TestValidationAndNotFound(t *testing.T) {
	ctx := context.Background()
	client := startTestServer(t, testEnv(t, nil)).Client()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{name: "missing name", method: http.MethodPost, path: "/api/campaigns",
			body: map[string]string{"description": "no name"}, want: http.StatusUnprocessableEntity},
		{name: "unknown field", method: http.MethodPost, path: "/api/campaigns",
			body: map[string]string{"name": "x", "unknown": "y"}, want: http.StatusUnprocessableEntity},
		{name: "unknown character", method: http.MethodGet, path: "/api/characters/missing", want: http.StatusNotFound},
		{name: "unknown campaign", method: http.MethodGet, path: "/api/campaigns/missing", want: http.StatusNotFound},
		{name: "select unknown campaign", method: http.MethodPost, path: "/api/session",
			body: workflow.Session{CampaignID: "missing", Style: ""}, want: http.StatusNotFound},
		{name: "montage without campaign", method: http.MethodGet, path: "/api/montage.pdf", want: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := client.Do(ctx, tt.method, tt.path, tt.body)
			require.NoError(t, err)
			require.Equal(t, tt.want, resp.Status, string(resp.Body))
			require.Contains(t, string(resp.Body), `"error"`)
		})
	}
}

func TestSessionIsPerClient(t *testing.T) {
	ctx := context.Background()
	server := startTestServer(t, testEnv(t, nil))
	client := server.Client()
	campaign, err := client.CreateCampaign(ctx, models.NewCampaign{Name: "Saga"})
	require.NoError(t, err)
	require.NoError(t, client.SelectCampaign(ctx, workflow.Session{CampaignID: campaign.ID}))

	other, err := e2etest.NewClient(server.URL())
	require.NoError(t, err)
	var sess workflow.Session
	require.NoError(t, other.DoJSON(ctx, http.MethodGet, "/api/session", nil, http.StatusOK, &sess))
	require.Empty(t, sess.CampaignID)
}

// fakeOpenAI answers chat completions with a fixed text and image generations with a PNG signature.
func fakeOpenAI(t *testing.T, chat string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     "chatcmpl-1",
				"object": "chat.completion",
				"choices": []any{map[string]any{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": chat},
					"finish_reason": "stop",
				}},
			})
		case strings.HasSuffix(r.URL.Path, "/images/generations"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"created": 1,
				"data":    []any{map[string]any{"b64_json": "iVBORw0KGgo="}},
			})
		case strings.HasSuffix(r.URL.Path, "/models"):
			_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": []any{}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRejectedAPIKey(t *testing.T) {
	ctx := context.Background()
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`))
	}))
	t.Cleanup(provider.Close)
	client := startTestServer(t, testEnv(t, map[string]string{
		"OPENAI_API_KEY":            "sk-bogus",
		"SAGABOARD_OPENAI_BASE_URL": provider.URL,
	})).Client()

	health, err := client.Healthy(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
	require.False(t, health.AIEnabled)

	campaign, err := client.CreateCampaign(ctx, models.NewCampaign{Name: "Saga"})
	require.NoError(t, err)
	require.NoError(t, client.SelectCampaign(ctx, workflow.Session{CampaignID: campaign.ID}))
	result, err := client.CreateScene(ctx, models.NewScene{Title: "Ambush", Prompt: "Goblins"})
	require.NoError(t, err)
	require.Len(t, result.Notices, 2)
	require.Contains(t, result.Notices[0].Message, "failed validation")

	resp, err := client.Do(ctx, http.MethodGet, "/api/recap", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.Status)
}

func TestAIFlow(t *testing.T) {
	ctx := context.Background()
	provider := fakeOpenAI(t, "The goblins are routed.")
	client := startTestServer(t, testEnv(t, map[string]string{
		"OPENAI_API_KEY":            "sk-test",
		"SAGABOARD_OPENAI_BASE_URL": provider.URL,
	})).Client()

	health, err := client.Healthy(ctx)
	require.NoError(t, err)
	require.True(t, health.AIEnabled)

	campaign, err := client.CreateCampaign(ctx, models.NewCampaign{Name: "Saga"})
	require.NoError(t, err)
	require.NoError(t, client.SelectCampaign(ctx, workflow.Session{CampaignID: campaign.ID}))

	result, err := client.CreateScene(ctx, models.NewScene{Title: "Ambush", Prompt: "Goblins"})
	require.NoError(t, err)
	require.Empty(t, result.Notices)
	require.Equal(t, "The goblins are routed.", result.Scene.Caption)
	require.NotEmpty(t, result.Scene.ImagePath)

	image, err := client.Do(ctx, http.MethodGet, "/"+result.Scene.ImagePath, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, image.Status)
	require.Equal(t, []byte("\x89PNG\r\n\x1a\n"), image.Body)
	require.Contains(t, image.Header.Get("Cache-Control"), "immutable")

	var recap recapResponse
	require.NoError(t, client.DoJSON(ctx, http.MethodGet, "/api/recap", nil, http.StatusOK, &recap))
	require.Equal(t, "The goblins are routed.", recap.Recap)
}
