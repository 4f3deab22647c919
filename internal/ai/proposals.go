package ai

import (
	"github.com/myrjola/sagaboard/internal/models"
	"strings"
	"unicode"
)

// ParseSceneProposals extracts at most limit 'Title: Prompt' lines from a model response.
//
// List markers such as "1.", "2)", "-", and "*" and markdown emphasis around the parts are stripped. A line is split on
// its first colon and both parts must be non-empty. Anything else is ignored.
func ParseSceneProposals(content string, limit int) []models.SceneProposal {
	proposals := []models.SceneProposal{}
	if limit <= 0 {
		return proposals
	}
	for _, line := range strings.Split(content, "\n") {
		line = stripListMarker(strings.TrimSpace(line))
		title, prompt, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		title = stripEmphasis(title)
		prompt = stripEmphasis(prompt)
		if title == "" || prompt == "" {
			continue
		}
		proposals = append(proposals, models.SceneProposal{Title: title, Prompt: prompt})
		if len(proposals) == limit {
			break
		}
	}
	return proposals
}

func stripListMarker(line string) string {
	switch {
	case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "), strings.HasPrefix(line, "• "):
		_, rest, _ := strings.Cut(line, " ")
		return strings.TrimSpace(rest)
	}
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}

func stripEmphasis(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '*' || r == '_' || r == '"'
	})
}
