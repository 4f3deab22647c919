// Package models defines the campaign entities and their serialized shape.
//
// Characters and scenes are referenced from campaigns by identifier. A campaign does not own the lifetime of its
// characters; a character may belong to many campaigns. Images are referenced by path relative to the data directory.
package models

// Character is a player or non-player character that can appear in scenes.
type Character struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Description string `json:"description"`
	// Summary is a brief, optionally AI-written, summary of the character.
	Summary string `json:"summary,omitempty"`
	// LongPrompt is an AI-expanded visual description that keeps the illustrated appearance consistent.
	LongPrompt   string   `json:"long_prompt,omitempty"`
	PortraitPath string   `json:"portrait_path,omitempty"`
	ImagePaths   []string `json:"image_paths"`
	// PortraitHistory lists superseded portraits, oldest first.
	PortraitHistory []string  `json:"portrait_history,omitempty"`
	CreatedAt       Timestamp `json:"created_at"`
	Revision        int64     `json:"revision"`
}

// Scene is a single illustrated moment of a campaign.
type Scene struct {
	ID           string   `json:"id"`
	CampaignID   string   `json:"campaign_id"`
	Title        string   `json:"title"`
	Prompt       string   `json:"prompt"`
	CharacterIDs []string `json:"character_ids"`
	ImagePath    string   `json:"image_path,omitempty"`
	Caption      string   `json:"caption,omitempty"`
	Style        string   `json:"style,omitempty"`
	Chapter      string   `json:"chapter,omitempty"`
	// ImageHistory lists superseded illustrations, oldest first.
	ImageHistory []string  `json:"image_history,omitempty"`
	CreatedAt    Timestamp `json:"created_at"`
	Revision     int64     `json:"revision"`
}

// Campaign groups characters and an ordered list of scenes.
type Campaign struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	CharacterIDs []string `json:"character_ids"`
	// SceneIDs defines the display and export order of the campaign's scenes.
	SceneIDs  []string  `json:"scene_ids"`
	CreatedAt Timestamp `json:"created_at"`
	Revision  int64     `json:"revision"`
}

// HasCharacter reports whether the character is a member of the campaign.
func (c Campaign) HasCharacter(characterID string) bool {
	return indexOf(c.CharacterIDs, characterID) >= 0
}

// HasScene reports whether the scene is part of the campaign's order list.
func (c Campaign) HasScene(sceneID string) bool {
	return indexOf(c.SceneIDs, sceneID) >= 0
}

// ScenePosition returns the index of the scene in the order list or -1.
func (c Campaign) ScenePosition(sceneID string) int {
	return indexOf(c.SceneIDs, sceneID)
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// ImageRef is the optional entity context of an image written to the image area.
type ImageRef struct {
	CampaignID  string
	SceneID     string
	CharacterID string
}

// TitledCaption is a scene title paired with its caption, the input of a session recap.
type TitledCaption struct {
	Title   string
	Caption string
}

// SceneProposal is a suggested follow-on scene.
type SceneProposal struct {
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
}
