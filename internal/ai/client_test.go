package ai_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"github.com/myrjola/sagaboard/internal/ai"
	"github.com/myrjola/sagaboard/internal/models"
	"github.com/myrjola/sagaboard/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeProvider imitates the subset of the OpenAI API used by the client.
type fakeProvider struct {
	mu       sync.Mutex
	requests []map[string]any
	chat     string
	image    []byte
	status   int
	delay    time.Duration
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-r.Context().Done():
			return
		}
	}
	var body map[string]any
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, body)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, `{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`)
		return
	}
	switch {
	case strings.HasSuffix(r.URL.Path, "/chat/completions"):
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []any{},
		}
		if f.chat != "" {
			resp["choices"] = []any{map[string]any{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": f.chat},
				"finish_reason": "stop",
			}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	case strings.HasSuffix(r.URL.Path, "/images/generations"):
		_ = json.NewEncoder(w).Encode(map[string]any{
			"created": 1,
			"data":    []any{map[string]any{"b64_json": base64.StdEncoding.EncodeToString(f.image)}},
		})
	case strings.HasSuffix(r.URL.Path, "/models"):
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": []any{}})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeProvider) lastRequest() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, provider *fakeProvider, timeout time.Duration) *ai.Client {
	t.Helper()
	srv := httptest.NewServer(provider)
	t.Cleanup(srv.Close)
	return ai.NewClient(ai.Config{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v1",
		Timeout: timeout,
	}, testhelpers.NewLogger(io.Discard))
}

func TestClient_MissingAPIKey(t *testing.T) {
	ctx := context.Background()
	client := ai.NewClient(ai.Config{}, testhelpers.NewLogger(io.Discard))
	require.False(t, client.Enabled())

	_, err := client.CaptionScene(ctx, "a scene", nil)
	require.ErrorIs(t, err, ai.ErrMissingAPIKey)
	_, err = client.GenerateImage(ctx, "a scene", "")
	require.ErrorIs(t, err, ai.ErrMissingAPIKey)
	require.ErrorIs(t, client.ValidateAPIKey(ctx), ai.ErrMissingAPIKey)
}

func TestClient_CaptionScene(t *testing.T) {
	provider := &fakeProvider{chat: "  Wolves circle the camp as Aria draws her bow.  "}
	client := newTestClient(t, provider, time.Second)

	caption, err := client.CaptionScene(context.Background(), "wolves at night", []string{"Aria", "Bren"})
	require.NoError(t, err)
	require.Equal(t, "Wolves circle the camp as Aria draws her bow.", caption)

	req := provider.lastRequest()
	require.Equal(t, ai.DefaultTextModel, req["model"])
	require.InDelta(t, 0.8, req["temperature"], 0.001)
	require.InDelta(t, 80, req["max_tokens"], 0.001)
	messages, ok := req["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	user, ok := messages[1].(map[string]any)
	require.True(t, ok)
	require.Contains(t, user["content"], "Aria, Bren")
}

func TestClient_ExpandCharacterPrompt(t *testing.T) {
	provider := &fakeProvider{chat: "A tall ranger in a green cloak."}
	client := newTestClient(t, provider, time.Second)

	prompt, err := client.ExpandCharacterPrompt(context.Background(), "Aria", "Ranger", "Quiet archer", "watercolor")
	require.NoError(t, err)
	require.Equal(t, "A tall ranger in a green cloak.", prompt)

	messages, ok := provider.lastRequest()["messages"].([]any)
	require.True(t, ok)
	user, ok := messages[1].(map[string]any)
	require.True(t, ok)
	require.Contains(t, user["content"], "in a watercolor style")
}

func TestClient_RecapText(t *testing.T) {
	provider := &fakeProvider{chat: "Our heroes prevailed."}
	client := newTestClient(t, provider, time.Second)

	recap, err := client.RecapText(context.Background(), []models.TitledCaption{
		{Title: "Ambush", Caption: "Wolves attack."},
		{Title: "Escape", Caption: "The party flees."},
	})
	require.NoError(t, err)
	require.Equal(t, "Our heroes prevailed.", recap)

	messages, ok := provider.lastRequest()["messages"].([]any)
	require.True(t, ok)
	user, ok := messages[1].(map[string]any)
	require.True(t, ok)
	require.Contains(t, user["content"], "- Ambush: Wolves attack.\n- Escape: The party flees.")
	require.Contains(t, user["content"], "120-180 words")
}

func TestClient_GenerateImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	provider := &fakeProvider{image: png}
	client := newTestClient(t, provider, time.Second)

	data, err := client.GenerateImage(context.Background(), "a castle", "")
	require.NoError(t, err)
	require.Equal(t, png, data)

	req := provider.lastRequest()
	require.Equal(t, ai.DefaultImageModel, req["model"])
	require.Equal(t, ai.DefaultImageSize, req["size"])
	require.Equal(t, "b64_json", req["response_format"])
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		timeout  time.Duration
		wantErr  error
	}{
		{name: "provider error", provider: &fakeProvider{status: http.StatusUnauthorized}, timeout: time.Second,
			wantErr: ai.ErrProvider},
		{name: "timeout", provider: &fakeProvider{chat: "late", delay: 2 * time.Second}, timeout: 50 * time.Millisecond,
			wantErr: ai.ErrTimeout},
		{name: "no choices", provider: &fakeProvider{}, timeout: time.Second, wantErr: ai.ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.provider, tt.timeout)
			_, err := client.CaptionScene(context.Background(), "scene", nil)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_ValidateAPIKey(t *testing.T) {
	client := newTestClient(t, &fakeProvider{}, time.Second)
	require.NoError(t, client.ValidateAPIKey(context.Background()))

	rejected := newTestClient(t, &fakeProvider{status: http.StatusUnauthorized}, time.Second)
	require.ErrorIs(t, rejected.ValidateAPIKey(context.Background()), ai.ErrProvider)
}

func TestClient_Verify(t *testing.T) {
	ctx := context.Background()

	accepted := newTestClient(t, &fakeProvider{chat: "A caption."}, time.Second)
	require.NoError(t, accepted.Verify(ctx))
	require.True(t, accepted.Enabled())

	provider := &fakeProvider{status: http.StatusUnauthorized}
	rejected := newTestClient(t, provider, time.Second)
	require.ErrorIs(t, rejected.Verify(ctx), ai.ErrProvider)
	require.False(t, rejected.Enabled())

	provider.mu.Lock()
	requests := len(provider.requests)
	provider.mu.Unlock()

	_, err := rejected.CaptionScene(ctx, "wolves at night", nil)
	require.ErrorIs(t, err, ai.ErrInvalidAPIKey)
	require.NotErrorIs(t, err, ai.ErrMissingAPIKey)
	_, err = rejected.GenerateImage(ctx, "wolves at night", "")
	require.ErrorIs(t, err, ai.ErrInvalidAPIKey)
	require.ErrorIs(t, rejected.ValidateAPIKey(ctx), ai.ErrInvalidAPIKey)

	provider.mu.Lock()
	defer provider.mu.Unlock()
	require.Len(t, provider.requests, requests, "a disabled client must not reach the provider")
}

func TestClient_ProposeFutureScenes(t *testing.T) {
	provider := &fakeProvider{chat: "1. **The Toll Bridge**: Trolls demand payment\n" +
		"Some chatter without structure\n" +
		"2) Flooded Crypt: The party wades through black water\n" +
		"3. Last Stand: The necromancer falls"}
	client := newTestClient(t, provider, time.Second)

	proposals, err := client.ProposeFutureScenes(context.Background(), "The party hunts a necromancer.", 2)
	require.NoError(t, err)
	require.Equal(t, []models.SceneProposal{
		{Title: "The Toll Bridge", Prompt: "Trolls demand payment"},
		{Title: "Flooded Crypt", Prompt: "The party wades through black water"},
	}, proposals)

	messages, ok := provider.lastRequest()["messages"].([]any)
	require.True(t, ok)
	system, ok := messages[0].(map[string]any)
	require.True(t, ok)
	require.Contains(t, system["content"], "set up")
	require.Contains(t, system["content"], "resolves")
}
