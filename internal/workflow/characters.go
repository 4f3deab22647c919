package workflow

import (
	"context"
	"fmt"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/models"
	"log/slog"
)

type CharacterOptions struct {
	// ReferenceImage is an optional uploaded picture of the character.
	ReferenceImage []byte
	// Expand writes a long illustration prompt and a brief summary from the description.
	Expand bool
	// GeneratePortrait illustrates the character after creation.
	GeneratePortrait bool
}

// CreateCharacter persists a new character. Failing AI steps are reported as notices and the character is created
// without their results.
func (s *Service) CreateCharacter(
	ctx context.Context,
	sess Session,
	input models.NewCharacter,
	opts CharacterOptions,
) (*models.Character, []Notice, error) {
	ctx = withSession(ctx, sess)
	if err := models.Validate(input); err != nil {
		return nil, nil, err
	}
	var notices []Notice

	if len(opts.ReferenceImage) > 0 {
		path, err := s.images.Save(ctx, opts.ReferenceImage, "char-"+input.Name+".png", models.ImageRef{})
		if err != nil {
			return nil, nil, errors.Wrap(err, "save reference image")
		}
		input.ImagePaths = append(input.ImagePaths, path)
	}

	if opts.Expand {
		longPrompt, err := s.generator.ExpandCharacterPrompt(ctx, input.Name, input.Role, input.Description, sess.Style)
		if err != nil {
			notices = append(notices, s.notice(ctx, "expand prompt", "expanding a character description", err))
		} else {
			input.LongPrompt = longPrompt
		}
		summary, err := s.generator.SummarizeCharacter(ctx, input.Name, input.Role, input.Description)
		if err != nil {
			notices = append(notices, s.notice(ctx, "summarize", "summarizing a character", err))
		} else {
			input.Summary = summary
		}
	}

	character, err := s.repos.Characters.Create(ctx, input)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create character")
	}

	if opts.GeneratePortrait {
		updated, err := s.generatePortrait(ctx, sess, character)
		if err != nil {
			notices = append(notices, s.notice(ctx, "portrait", "illustrating a character portrait", err))
		} else {
			character = updated
		}
	}
	return character, notices, nil
}

// RegeneratePortrait illustrates the character again. The previous portrait moves to the version history.
func (s *Service) RegeneratePortrait(ctx context.Context, sess Session, characterID string) (*models.Character, error) {
	ctx = withSession(ctx, sess)
	character, err := s.repos.Characters.Get(ctx, characterID)
	if err != nil {
		return nil, errors.Wrap(err, "get character")
	}
	if character == nil {
		return nil, errors.Wrap(ErrCharacterNotFound, "regenerate portrait", slog.String("characterID", characterID))
	}
	return s.generatePortrait(ctx, sess, character)
}

func (s *Service) generatePortrait(ctx context.Context, sess Session, character *models.Character) (*models.Character, error) {
	data, err := s.generator.GenerateImage(ctx, portraitPrompt(*character, sess.Style), "")
	if err != nil {
		return nil, errors.Wrap(err, "generate portrait")
	}
	path, err := s.images.Save(ctx, data, "portrait.png", models.ImageRef{CharacterID: character.ID})
	if err != nil {
		return nil, errors.Wrap(err, "save portrait")
	}
	if _, err = s.repos.Characters.SetPortrait(ctx, character.ID, path); err != nil {
		s.images.Remove(ctx, path)
		return nil, errors.Wrap(err, "set portrait")
	}
	updated, err := s.repos.Characters.Get(ctx, character.ID)
	if err != nil {
		return nil, errors.Wrap(err, "reload character")
	}
	if updated == nil {
		// Deleted concurrently.
		s.images.Remove(ctx, path)
		return nil, errors.New("character disappeared", slog.String("characterID", character.ID))
	}
	return updated, nil
}

func portraitPrompt(c models.Character, style string) string {
	prompt := c.LongPrompt
	if prompt == "" {
		prompt = fmt.Sprintf("Portrait of %s (%s): %s", c.Name, c.Role, c.Description)
	}
	if style != "" {
		prompt += ". Render in " + style + " style."
	}
	return prompt
}
