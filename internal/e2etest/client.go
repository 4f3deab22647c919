// Package e2etest drives a running server through its JSON API. It backs the web tests and the smoke test of a
// deployment.
package e2etest

import (
	"bytes"
	"context"
	"encoding/json"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/models"
	"github.com/myrjola/sagaboard/internal/workflow"
	"io"
	"log/slog"
	"net/http"
	"time"
)

type Client struct {
	client *http.Client
	url    string
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// NewClient creates an HTTP client with its own session cookie.
func NewClient(url string) (*Client, error) {
	jar, err := newUnsafeCookieJar()
	if err != nil {
		return nil, errors.Wrap(err, "create unsafe cookie jar")
	}
	return &Client{
		client: &http.Client{Jar: jar},
		url:    url,
	}, nil
}

// WaitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func (c *Client) WaitForReady(ctx context.Context, urlPath string) error {
	timeout := 1 * time.Second
	startTime := time.Now()
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	for {
		if req, err = http.NewRequestWithContext(ctx, http.MethodGet, c.url+urlPath, nil); err != nil {
			return errors.Wrap(err, "create request")
		}

		if resp, err = c.client.Do(req); err == nil {
			if err = resp.Body.Close(); err != nil {
				return errors.Wrap(err, "close response body")
			}
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "context cancelled")
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(50 * time.Millisecond) //nolint:mnd // 50ms
		}
	}
}

// Do sends body encoded as JSON, unless it is nil, and reads the whole response.
func (c *Client) Do(ctx context.Context, method, urlPath string, body any) (Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return Response{}, errors.Wrap(err, "encode request body")
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url+urlPath, reader)
	if err != nil {
		return Response{}, errors.Wrap(err, "create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Response{}, errors.Wrap(err, "do request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, errors.Wrap(err, "read response body")
	}
	return Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// DoJSON is [Client.Do] that expects wantStatus and decodes the response into out unless out is nil.
func (c *Client) DoJSON(ctx context.Context, method, urlPath string, body any, wantStatus int, out any) error {
	resp, err := c.Do(ctx, method, urlPath, body)
	if err != nil {
		return err
	}
	if resp.Status != wantStatus {
		return errors.New("unexpected status code",
			slog.String("method", method),
			slog.String("path", urlPath),
			slog.Int("status", resp.Status),
			slog.String("body", string(resp.Body)))
	}
	if out == nil {
		return nil
	}
	if err = json.Unmarshal(resp.Body, out); err != nil {
		return errors.Wrap(err, "decode response body", slog.String("path", urlPath))
	}
	return nil
}

// Health is the body of the health endpoint.
type Health struct {
	Status    string `json:"status"`
	AIEnabled bool   `json:"ai_enabled"`
}

// SceneResult is the body returned when a scene is created.
type SceneResult struct {
	Scene   models.Scene      `json:"scene"`
	Notices []workflow.Notice `json:"notices"`
}

func (c *Client) Healthy(ctx context.Context) (Health, error) {
	var health Health
	if err := c.DoJSON(ctx, http.MethodGet, "/api/healthy", nil, http.StatusOK, &health); err != nil {
		return Health{}, err
	}
	return health, nil
}

func (c *Client) CreateCampaign(ctx context.Context, input models.NewCampaign) (models.Campaign, error) {
	var campaign models.Campaign
	if err := c.DoJSON(ctx, http.MethodPost, "/api/campaigns", input, http.StatusCreated, &campaign); err != nil {
		return models.Campaign{}, errors.Wrap(err, "create campaign")
	}
	return campaign, nil
}

// SelectCampaign stores the campaign and style in the client's session.
func (c *Client) SelectCampaign(ctx context.Context, sess workflow.Session) error {
	if err := c.DoJSON(ctx, http.MethodPost, "/api/session", sess, http.StatusOK, nil); err != nil {
		return errors.Wrap(err, "select campaign")
	}
	return nil
}

// CreateScene adds a scene to the selected campaign.
func (c *Client) CreateScene(ctx context.Context, input models.NewScene) (SceneResult, error) {
	var result SceneResult
	if err := c.DoJSON(ctx, http.MethodPost, "/api/scenes", input, http.StatusCreated, &result); err != nil {
		return SceneResult{}, errors.Wrap(err, "create scene")
	}
	return result, nil
}

// ListScenes lists the scenes of the selected campaign in order.
func (c *Client) ListScenes(ctx context.Context) ([]models.Scene, error) {
	var scenes []models.Scene
	if err := c.DoJSON(ctx, http.MethodGet, "/api/scenes", nil, http.StatusOK, &scenes); err != nil {
		return nil, errors.Wrap(err, "list scenes")
	}
	return scenes, nil
}

// DownloadMontage exports the selected campaign as a PDF.
func (c *Client) DownloadMontage(ctx context.Context) (Response, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/api/montage.pdf", nil)
	if err != nil {
		return Response{}, errors.Wrap(err, "download montage")
	}
	if resp.Status != http.StatusOK {
		return resp, errors.New("unexpected status code", slog.Int("status", resp.Status))
	}
	return resp, nil
}
