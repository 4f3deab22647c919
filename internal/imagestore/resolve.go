package imagestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LegacyKey identifies an entity for the flat naming convention of the first application release, where images were
// stored as images/scene-<scene id>.png and images/char-<character name>.png.
type LegacyKey struct {
	SceneID       string
	CharacterName string
}

// Attempt is the outcome of one resolution strategy.
type Attempt struct {
	Strategy  string
	Candidate string
	Status    string
}

// Resolution reports where an image was found, if anywhere, and why each strategy accepted or rejected its candidate.
type Resolution struct {
	Path     string
	Strategy string
	Attempts []Attempt
}

// Found reports whether any strategy located a readable file.
func (r Resolution) Found() bool {
	return r.Path != ""
}

// Summary is a single line describing the resolution, suitable for user-facing diagnostics.
func (r Resolution) Summary() string {
	if r.Found() {
		return fmt.Sprintf("found via %s at %s", r.Strategy, r.Path)
	}
	parts := make([]string, 0, len(r.Attempts))
	for _, a := range r.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Strategy, a.Status))
	}
	return strings.Join(parts, "; ")
}

type strategy struct {
	name      string
	candidate func(s *Store, stored string, legacy LegacyKey) (string, string)
}

// strategies are tried in order. Newer layouts come first.
var strategies = []strategy{
	{
		name: "relative-v2",
		candidate: func(s *Store, stored string, _ LegacyKey) (string, string) {
			if stored == "" {
				return "", "no stored path"
			}
			if filepath.IsAbs(stored) {
				return "", "stored path is absolute"
			}
			return filepath.Join(s.dataDir, filepath.FromSlash(stored)), ""
		},
	},
	{
		name: "absolute-v1",
		candidate: func(_ *Store, stored string, _ LegacyKey) (string, string) {
			if stored == "" {
				return "", "no stored path"
			}
			return filepath.FromSlash(stored), ""
		},
	},
	{
		name: "legacy-flat",
		candidate: func(s *Store, _ string, legacy LegacyKey) (string, string) {
			switch {
			case legacy.SceneID != "":
				return filepath.Join(s.dataDir, Dir, "scene-"+legacy.SceneID+".png"), ""
			case legacy.CharacterName != "":
				return filepath.Join(s.dataDir, Dir, "char-"+legacy.CharacterName+".png"), ""
			default:
				return "", "no legacy key"
			}
		},
	},
}

// Resolve locates the file for a stored image path.
//
// Stored paths are normally relative to the data directory. Documents written by earlier releases may hold absolute or
// working-directory relative paths, or none at all when the file followed the flat naming convention.
func (s *Store) Resolve(stored string, legacy LegacyKey) Resolution {
	var res Resolution
	for _, st := range strategies {
		candidate, reason := st.candidate(s, stored, legacy)
		if candidate == "" {
			res.Attempts = append(res.Attempts, Attempt{Strategy: st.name, Status: "skipped: " + reason})
			continue
		}
		status := checkFile(candidate)
		res.Attempts = append(res.Attempts, Attempt{Strategy: st.name, Candidate: candidate, Status: status})
		if status == "ok" {
			res.Path = candidate
			res.Strategy = st.name
			return res
		}
	}
	return res
}

func checkFile(path string) string {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return "missing " + path
	case err != nil:
		return "unreadable " + path + ": " + err.Error()
	case info.IsDir():
		return "is a directory " + path
	case info.Size() == 0:
		return "empty file " + path
	default:
		return "ok"
	}
}
