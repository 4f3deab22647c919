// Package imagestore owns the image area of the data directory.
package imagestore

import (
	"context"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/models"
	"github.com/myrjola/sagaboard/internal/random"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Dir is the image area relative to the data directory.
const Dir = "images"

const (
	suffixLength = 8
	maxAttempts  = 16
	maxSlugLen   = 64
)

var ErrEmptyImage = errors.NewSentinel("empty image data")

type Store struct {
	dataDir string
	logger  *slog.Logger
}

func New(dataDir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, Dir), 0o755); err != nil {
		return nil, errors.Wrap(err, "create image directory", slog.String("dataDir", dataDir))
	}
	return &Store{
		dataDir: dataDir,
		logger:  logger.With("source", "ImageStore"),
	}, nil
}

// DataDir returns the directory stored paths are relative to.
func (s *Store) DataDir() string {
	return s.dataDir
}

// Save writes data as a new file and returns its path relative to the data directory.
//
// Existing files are never overwritten. When the name derived from hint is taken, a random suffix is inserted before
// the extension and creation is retried.
func (s *Store) Save(ctx context.Context, data []byte, hint string, ref models.ImageRef) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}

	relDir := Dir
	if ref.CampaignID != "" {
		relDir = filepath.Join(Dir, Slug(ref.CampaignID))
	}
	if err := os.MkdirAll(filepath.Join(s.dataDir, relDir), 0o755); err != nil {
		return "", errors.Wrap(err, "create image directory", slog.String("dir", relDir))
	}

	base, ext := fileName(hint, ref, data)
	name := base + ext
	for attempt := 0; attempt < maxAttempts; attempt++ {
		rel := filepath.Join(relDir, name)
		f, err := os.OpenFile(filepath.Join(s.dataDir, rel), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			var suffix string
			if suffix, err = random.Suffix(suffixLength); err != nil {
				return "", errors.Wrap(err, "generate file name suffix")
			}
			name = base + "-" + suffix + ext
			continue
		}
		if err != nil {
			return "", errors.Wrap(err, "create image file", slog.String("path", rel))
		}
		if _, err = f.Write(data); err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
			return "", errors.Wrap(err, "write image file", slog.String("path", rel))
		}
		if err = f.Close(); err != nil {
			_ = os.Remove(f.Name())
			return "", errors.Wrap(err, "close image file", slog.String("path", rel))
		}
		s.logger.LogAttrs(ctx, slog.LevelDebug, "image saved", slog.String("path", rel), slog.Int("bytes", len(data)))
		return filepath.ToSlash(rel), nil
	}
	return "", errors.New("no free image file name", slog.String("hint", hint))
}

func fileName(hint string, ref models.ImageRef, data []byte) (string, string) {
	ext := strings.ToLower(filepath.Ext(hint))
	stem := strings.TrimSuffix(filepath.Base(hint), filepath.Ext(hint))
	if ext == "" || len(ext) > 5 {
		ext = sniffExtension(data)
	}

	var prefix string
	switch {
	case ref.SceneID != "":
		prefix = "scene-" + Slug(ref.SceneID)
	case ref.CharacterID != "":
		prefix = "char-" + Slug(ref.CharacterID)
	}
	slug := Slug(stem)
	switch {
	case prefix == "" && slug == "":
		return "image", ext
	case prefix == "" || strings.HasPrefix(slug, prefix):
		return slug, ext
	case slug == "":
		return prefix, ext
	default:
		return prefix + "-" + slug, ext
	}
}

func sniffExtension(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// Slug turns s into a filesystem safe ASCII name. Diacritics are dropped and runs of other characters collapse into a
// single dash.
func Slug(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case r == '_' || r == '.':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-._")
	if len(out) > maxSlugLen {
		out = strings.Trim(out[:maxSlugLen], "-._")
	}
	return out
}

// Abs joins a stored relative path onto the data directory.
func (s *Store) Abs(stored string) string {
	if filepath.IsAbs(stored) {
		return stored
	}
	return filepath.Join(s.dataDir, filepath.FromSlash(stored))
}

// Open reads the image at a stored path.
func (s *Store) Open(stored string) ([]byte, error) {
	data, err := os.ReadFile(s.Abs(stored))
	if err != nil {
		return nil, errors.Wrap(err, "read image", slog.String("path", stored))
	}
	return data, nil
}

// Remove deletes the images at the stored paths. Missing files are ignored and other failures are logged.
func (s *Store) Remove(ctx context.Context, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if !s.inImageArea(p) {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "refusing to remove file outside image area", slog.String("path", p))
			continue
		}
		err := os.Remove(s.Abs(p))
		if err == nil {
			s.logger.LogAttrs(ctx, slog.LevelDebug, "image removed", slog.String("path", p))
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.LogAttrs(ctx, slog.LevelError, "failed to remove image",
				slog.String("path", p), errors.SlogError(err))
		}
	}
}

func (s *Store) inImageArea(stored string) bool {
	area, err := filepath.Abs(filepath.Join(s.dataDir, Dir))
	if err != nil {
		return false
	}
	target, err := filepath.Abs(s.Abs(stored))
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(area, target)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}
