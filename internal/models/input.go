package models

import (
	"github.com/go-playground/validator/v10"
	"github.com/myrjola/sagaboard/internal/errors"
	"sync"
)

var ErrInvalidInput = errors.NewSentinel("invalid input")

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// NewCharacter holds the user supplied fields of a character.
type NewCharacter struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Role        string   `json:"role" validate:"required,max=200"`
	Description string   `json:"description" validate:"required"`
	Summary     string   `json:"summary"`
	LongPrompt  string   `json:"long_prompt"`
	ImagePaths  []string `json:"image_paths"`
}

// NewCampaign holds the user supplied fields of a campaign.
type NewCampaign struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description"`
}

// NewScene holds the user supplied fields of a scene.
type NewScene struct {
	CampaignID   string   `json:"campaign_id" validate:"required"`
	Title        string   `json:"title" validate:"required,max=200"`
	Prompt       string   `json:"prompt" validate:"required"`
	CharacterIDs []string `json:"character_ids"`
	Style        string   `json:"style"`
	Chapter      string   `json:"chapter"`
}

// Validate checks the validation tags of v and wraps failures in ErrInvalidInput.
func Validate(v any) error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := validate.Struct(v); err != nil {
		return errors.Join(ErrInvalidInput, err)
	}
	return nil
}
