// Package ai wraps the generative text and image endpoints used to illustrate campaigns.
//
// Every operation is a single request without retries. Errors are classified into ErrMissingAPIKey, ErrTimeout,
// ErrProvider, and ErrEmptyResponse so that callers can degrade gracefully. A client whose key failed [Client.Verify]
// answers every call with ErrInvalidAPIKey.
package ai

import (
	"context"
	"encoding/base64"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/sashabaranov/go-openai"
	"log/slog"
	"strings"
	"time"
)

var (
	ErrMissingAPIKey = errors.NewSentinel("no API key configured")
	ErrInvalidAPIKey = errors.NewSentinel("API key failed validation")
	ErrTimeout       = errors.NewSentinel("generative request timed out")
	ErrProvider      = errors.NewSentinel("generative provider returned an error")
	ErrEmptyResponse = errors.NewSentinel("generative provider returned no content")
)

const (
	DefaultTextModel  = "gpt-4o-mini"
	DefaultImageModel = openai.CreateImageModelDallE3
	DefaultImageSize  = openai.CreateImageSize1024x1024
	DefaultTimeout    = 60 * time.Second
)

type Config struct {
	APIKey string
	// BaseURL overrides the provider endpoint, e.g. for OpenAI compatible gateways.
	BaseURL    string
	TextModel  string
	ImageModel string
	ImageSize  string
	Timeout    time.Duration
}

type Client struct {
	client *openai.Client
	cfg    Config
	logger *slog.Logger

	// rejection is the validation failure that disabled the client.
	rejection error
}

// NewClient creates a client. Without an API key the client is disabled and every call returns ErrMissingAPIKey.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.TextModel == "" {
		cfg.TextModel = DefaultTextModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultImageModel
	}
	if cfg.ImageSize == "" {
		cfg.ImageSize = DefaultImageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		cfg:    cfg,
		logger: logger.With("source", "ai.Client"),
	}
	if cfg.APIKey != "" {
		openaiConfig := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			openaiConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
		}
		c.client = openai.NewClientWithConfig(openaiConfig)
	}
	return c
}

// Enabled reports whether an API key is configured and has not failed validation.
func (c *Client) Enabled() bool {
	return c.client != nil
}

// Verify validates the API key once and disables the client when validation fails. It must be called before the
// client is shared between goroutines.
func (c *Client) Verify(ctx context.Context) error {
	if err := c.ValidateAPIKey(ctx); err != nil {
		if c.Enabled() {
			c.client = nil
			c.rejection = err
		}
		return err
	}
	return nil
}

// unavailable is the error returned by calls on a disabled client.
func (c *Client) unavailable() error {
	if c.rejection != nil {
		return errors.Join(ErrInvalidAPIKey, c.rejection)
	}
	return ErrMissingAPIKey
}

type completionRequest struct {
	operation   string
	system      string
	user        string
	temperature float32
	maxTokens   int
}

func (c *Client) complete(ctx context.Context, req completionRequest) (string, error) {
	if !c.Enabled() {
		return "", c.unavailable()
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	completion, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:       c.cfg.TextModel,
			Temperature: req.temperature,
			MaxTokens:   req.maxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: req.system},
				{Role: openai.ChatMessageRoleUser, Content: req.user},
			},
		},
	)
	if err != nil {
		return "", c.classify(ctx, err, req.operation)
	}
	if len(completion.Choices) == 0 {
		return "", errors.Wrap(ErrEmptyResponse, req.operation)
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", errors.Wrap(ErrEmptyResponse, req.operation)
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "completion finished",
		slog.String("operation", req.operation),
		slog.Duration("duration", time.Since(start)),
		slog.Int("totalTokens", completion.Usage.TotalTokens))
	return content, nil
}

// GenerateImage renders prompt and returns the decoded image bytes. An empty size uses the configured default.
func (c *Client) GenerateImage(ctx context.Context, prompt string, size string) ([]byte, error) {
	if !c.Enabled() {
		return nil, c.unavailable()
	}
	if size == "" {
		size = c.cfg.ImageSize
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	response, err := c.client.CreateImage(ctx, openai.ImageRequest{ //nolint:exhaustruct // this is better for readability
		Model:          c.cfg.ImageModel,
		Prompt:         prompt,
		Size:           size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		N:              1,
	})
	if err != nil {
		return nil, c.classify(ctx, err, "generate image")
	}
	if len(response.Data) == 0 || response.Data[0].B64JSON == "" {
		return nil, errors.Wrap(ErrEmptyResponse, "generate image")
	}
	imgBytes, err := base64.StdEncoding.DecodeString(response.Data[0].B64JSON)
	if err != nil {
		return nil, errors.Wrap(errors.Join(ErrProvider, err), "decode image")
	}
	return imgBytes, nil
}

// ValidateAPIKey lists the available models once to check the credential.
func (c *Client) ValidateAPIKey(ctx context.Context) error {
	if !c.Enabled() {
		return c.unavailable()
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	if _, err := c.client.ListModels(ctx); err != nil {
		return c.classify(ctx, err, "validate API key")
	}
	return nil
}

// classify maps transport and provider failures onto the package sentinels.
func (c *Client) classify(ctx context.Context, err error, operation string) error {
	var (
		apiErr     *openai.APIError
		requestErr *openai.RequestError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.Wrap(errors.Join(ErrTimeout, err), operation, slog.Duration("timeout", c.cfg.Timeout))
	case errors.As(err, &apiErr):
		return errors.Wrap(errors.Join(ErrProvider, err), operation,
			slog.Int("status", apiErr.HTTPStatusCode), slog.String("type", apiErr.Type))
	case errors.As(err, &requestErr):
		return errors.Wrap(errors.Join(ErrProvider, err), operation, slog.Int("status", requestErr.HTTPStatusCode))
	default:
		return errors.Wrap(errors.Join(ErrProvider, err), operation)
	}
}
