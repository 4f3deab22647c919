// Package montage compiles a campaign's scenes into a PDF slideshow or an MP4 video.
package montage

import (
	"fmt"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/imagestore"
	"github.com/myrjola/sagaboard/internal/models"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNoScenes       = errors.NewSentinel("no scenes to export")
	ErrNoUsableScenes = errors.NewSentinel("no scene has a usable image")
)

// Resolver locates the file behind a stored image path.
type Resolver interface {
	Resolve(stored string, legacy imagestore.LegacyKey) imagestore.Resolution
}

// SceneStatus tells whether a scene's image made it into the montage and why not.
type SceneStatus struct {
	SceneID  string
	Title    string
	Included bool
	Detail   string
}

type Result struct {
	Path string
	// Pages is the page count of a PDF export.
	Pages int
	// Clips is the clip count of a video export.
	Clips  int
	Scenes []SceneStatus
}

// NoUsableScenesError lists why each scene was rejected from a video export.
type NoUsableScenesError struct {
	Scenes []SceneStatus
}

func (e *NoUsableScenesError) Error() string {
	parts := make([]string, 0, len(e.Scenes))
	for _, s := range e.Scenes {
		parts = append(parts, fmt.Sprintf("%q: %s", s.Title, s.Detail))
	}
	return ErrNoUsableScenes.Error() + ": " + strings.Join(parts, "; ")
}

func (e *NoUsableScenesError) Unwrap() error {
	return ErrNoUsableScenes
}

type Exporter struct {
	images    Resolver
	outputDir string
	ffmpeg    string
	logger    *slog.Logger
}

// NewExporter creates an exporter writing to outputDir by default. ffmpegBinary is the name or path of the ffmpeg
// executable used for video exports.
func NewExporter(images Resolver, outputDir string, ffmpegBinary string, logger *slog.Logger) *Exporter {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	return &Exporter{
		images:    images,
		outputDir: outputDir,
		ffmpeg:    ffmpegBinary,
		logger:    logger.With("source", "montage.Exporter"),
	}
}

// DefaultPath returns <output dir>/<Campaign_Name>_montage.<ext>.
func (e *Exporter) DefaultPath(campaignName string, ext string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ' ':
			return '_'
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(campaignName))
	if name == "" {
		name = "campaign"
	}
	return filepath.Join(e.outputDir, name+"_montage."+ext)
}

// resolveImage locates the scene illustration. Scenes from the first release may only be found by their legacy flat
// file name.
func (e *Exporter) resolveImage(scene models.Scene) imagestore.Resolution {
	return e.images.Resolve(scene.ImagePath, imagestore.LegacyKey{SceneID: scene.ID})
}

// checkImage returns why the file at path cannot be used as a still, or the empty string when it can.
func checkImage(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return "unreadable: " + err.Error()
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return "undecodable image " + path + ": " + err.Error()
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return "empty image " + path
	}
	return ""
}
