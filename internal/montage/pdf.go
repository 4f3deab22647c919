package montage

import (
	"bytes"
	"context"
	"github.com/go-pdf/fpdf"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/models"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	margin         = 50.0
	titleBaseline  = 50.0
	imageTop       = 80.0
	imageGap       = 20.0
	captionLeading = 16.0
	captionWidth   = 90
	titleFontSize  = 16.0
	bodyFontSize   = 12.0
)

var fpdfImageTypes = map[string]string{
	"png":  "PNG",
	"jpeg": "JPG",
	"gif":  "GIF",
}

type rect struct {
	X, Y, W, H float64
}

type pageLayout struct {
	TitleX, TitleY float64
	Image          *rect
	CaptionX       float64
	CaptionY       []float64
	CaptionLines   []string
}

// layoutPage positions a scene on a page in points from the top left corner. imgW and imgH are zero when the scene
// has no usable image.
func layoutPage(pageW, pageH float64, imgW, imgH int, caption string) pageLayout {
	layout := pageLayout{
		TitleX:   margin,
		TitleY:   titleBaseline,
		CaptionX: margin,
	}
	cursor := imageTop
	if imgW > 0 && imgH > 0 {
		maxW, maxH := pageW-2*margin, pageH-200
		scale := min(maxW/float64(imgW), maxH/float64(imgH))
		w, h := float64(imgW)*scale, float64(imgH)*scale
		layout.Image = &rect{X: margin, Y: imageTop, W: w, H: h}
		cursor = imageTop + h + imageGap
	}
	layout.CaptionLines = wrapText(caption, captionWidth)
	for range layout.CaptionLines {
		layout.CaptionY = append(layout.CaptionY, cursor)
		cursor += captionLeading
	}
	return layout
}

// wrapText greedily fills lines of at most width characters. Words longer than width get a line of their own.
func wrapText(text string, width int) []string {
	var (
		lines []string
		line  string
	)
	for _, word := range strings.Fields(text) {
		switch {
		case line == "":
			line = word
		case len([]rune(line))+1+len([]rune(word)) > width:
			lines = append(lines, line)
			line = word
		default:
			line += " " + word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// ExportPDF renders one US Letter page per scene with the title, the illustration when it can be read, and the
// wrapped caption. An empty outputPath uses [Exporter.DefaultPath].
func (e *Exporter) ExportPDF(
	ctx context.Context,
	campaignName string,
	scenes []models.Scene,
	outputPath string,
) (Result, error) {
	if len(scenes) == 0 {
		return Result{}, ErrNoScenes
	}
	if outputPath == "" {
		outputPath = e.DefaultPath(campaignName, "pdf")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return Result{}, errors.Wrap(err, "create output directory", slog.String("path", outputPath))
	}

	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetTitle(campaignName, true)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, pageH := pdf.GetPageSize()

	result := Result{Path: outputPath}
	for i, scene := range scenes {
		if err := ctx.Err(); err != nil {
			return Result{}, errors.Wrap(err, "export pdf")
		}
		pdf.AddPage()

		status := SceneStatus{SceneID: scene.ID, Title: scene.Title}
		imageName, imgW, imgH := e.registerImage(pdf, scene, i, &status)

		layout := layoutPage(pageW, pageH, imgW, imgH, scene.Caption)
		pdf.SetFont("Helvetica", "B", titleFontSize)
		pdf.Text(layout.TitleX, layout.TitleY, tr(scene.Title))
		if layout.Image != nil {
			pdf.ImageOptions(imageName, layout.Image.X, layout.Image.Y, layout.Image.W, layout.Image.H,
				false, fpdf.ImageOptions{}, 0, "") //nolint:exhaustruct // type is set at registration
		}
		pdf.SetFont("Helvetica", "", bodyFontSize)
		for j, line := range layout.CaptionLines {
			pdf.Text(layout.CaptionX, layout.CaptionY[j], tr(line))
		}
		result.Scenes = append(result.Scenes, status)
	}

	result.Pages = pdf.PageCount()
	if err := pdf.OutputFileAndClose(outputPath); err != nil {
		return Result{}, errors.Wrap(err, "write pdf", slog.String("path", outputPath))
	}
	e.logger.LogAttrs(ctx, slog.LevelInfo, "pdf exported",
		slog.String("path", outputPath), slog.Int("pages", result.Pages))
	return result, nil
}

// registerImage loads the scene illustration into the document. It returns zero dimensions when the image is missing
// or cannot be decoded and records the reason in status.
func (e *Exporter) registerImage(pdf *fpdf.Fpdf, scene models.Scene, index int, status *SceneStatus) (string, int, int) {
	res := e.resolveImage(scene)
	if !res.Found() {
		status.Detail = res.Summary()
		return "", 0, 0
	}
	data, err := os.ReadFile(res.Path)
	if err != nil {
		status.Detail = "unreadable: " + err.Error()
		return "", 0, 0
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		status.Detail = "undecodable image " + res.Path + ": " + err.Error()
		return "", 0, 0
	}
	imageType, ok := fpdfImageTypes[format]
	if !ok || cfg.Width == 0 || cfg.Height == 0 {
		status.Detail = "unsupported image format " + format
		return "", 0, 0
	}

	name := "scene-" + strconv.Itoa(index)
	options := fpdf.ImageOptions{ImageType: imageType} //nolint:exhaustruct // defaults suffice
	pdf.RegisterImageOptionsReader(name, options, bytes.NewReader(data))
	if !pdf.Ok() {
		status.Detail = "image rejected by pdf writer: " + pdf.Error().Error()
		pdf.ClearError()
		return "", 0, 0
	}
	status.Included = true
	status.Detail = "found via " + res.Strategy
	return name, cfg.Width, cfg.Height
}
