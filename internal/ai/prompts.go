package ai

import (
	"context"
	"fmt"
	"github.com/myrjola/sagaboard/internal/models"
	"strings"
)

// ExpandCharacterPrompt turns a short character description into a detailed visual prompt that keeps the character
// recognizable across illustrations.
func (c *Client) ExpandCharacterPrompt(ctx context.Context, name, role, description, style string) (string, error) {
	styleText := ""
	if style != "" {
		styleText = " in a " + style + " style"
	}
	return c.complete(ctx, completionRequest{
		operation: "expand character prompt",
		system: "You are a prompt engineer for an illustration model. Generate a clear, consistent, visual " +
			"description that can be used to render a tabletop role-playing character consistently across scenes.",
		user: fmt.Sprintf("Character name: %s. Role/class: %s. Description: %s. "+
			"Return a detailed visual prompt%s focusing on stable features, color palette, clothing, notable gear, "+
			"and mood.", name, role, description, styleText),
		temperature: 0.7,
	})
}

// SummarizeCharacter writes a one or two sentence summary of the character.
func (c *Client) SummarizeCharacter(ctx context.Context, name, role, description string) (string, error) {
	return c.complete(ctx, completionRequest{
		operation: "summarize character",
		system:    "You write brief character summaries for a game master's campaign notes.",
		user: fmt.Sprintf("Summarize this character in one or two sentences. Name: %s. Role/class: %s. "+
			"Description: %s.", name, role, description),
		temperature: 0.5,
		maxTokens:   120,
	})
}

// CaptionScene writes a one sentence caption for a scene illustration.
func (c *Client) CaptionScene(ctx context.Context, scenePrompt string, characterNames []string) (string, error) {
	return c.complete(ctx, completionRequest{
		operation: "caption scene",
		system:    "You write brief, evocative one-sentence captions for fantasy scene illustrations.",
		user: fmt.Sprintf("Write a caption for this scene: '%s'. Characters involved: %s.",
			scenePrompt, strings.Join(characterNames, ", ")),
		temperature: 0.8,
		maxTokens:   80,
	})
}

// RecapText summarizes a session from its scene titles and captions.
func (c *Client) RecapText(ctx context.Context, scenes []models.TitledCaption) (string, error) {
	lines := make([]string, 0, len(scenes))
	for _, s := range scenes {
		lines = append(lines, fmt.Sprintf("- %s: %s", s.Title, s.Caption))
	}
	return c.complete(ctx, completionRequest{
		operation:   "recap session",
		system:      "You summarize tabletop role-playing sessions concisely with a heroic tone.",
		user:        "Summarize this session as a short recap (120-180 words):\n" + strings.Join(lines, "\n"),
		temperature: 0.7,
	})
}

// ProposeFutureScenes suggests up to steps follow-on scenes forming a setup, conflict, and resolution arc.
//
// Lines of the response that cannot be parsed are dropped, so fewer than steps proposals may be returned.
func (c *Client) ProposeFutureScenes(
	ctx context.Context,
	contextText string,
	steps int,
) ([]models.SceneProposal, error) {
	if steps <= 0 {
		return []models.SceneProposal{}, nil
	}
	content, err := c.complete(ctx, completionRequest{
		operation: "propose future scenes",
		system: "You are a game master's assistant planning the next scenes of a tabletop role-playing campaign. " +
			"Plans follow a story arc: the first scenes set up a new situation, the middle scenes escalate a " +
			"conflict, and the final scene resolves it.",
		user: fmt.Sprintf("Campaign so far:\n%s\n\nPropose exactly %d follow-on scenes. "+
			"Answer with one scene per line in the form 'Title: illustration prompt' and nothing else.",
			contextText, steps),
		temperature: 0.8,
	})
	if err != nil {
		return nil, err
	}
	return ParseSceneProposals(content, steps), nil
}

// SummarizeError explains a failure in plain language with suggestions how to fix it.
func (c *Client) SummarizeError(ctx context.Context, errorText, contextText string) (string, error) {
	return c.complete(ctx, completionRequest{
		operation: "summarize error",
		system: "You explain software errors to non-technical game masters in one or two plain sentences and " +
			"suggest how to fix them.",
		user:        fmt.Sprintf("While %s the following error occurred:\n%s", contextText, errorText),
		temperature: 0.2,
		maxTokens:   150,
	})
}
