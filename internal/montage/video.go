package montage

import (
	"bytes"
	"context"
	"fmt"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/models"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// commandContext is replaced in tests.
var commandContext = exec.CommandContext

const (
	DefaultSecondsPerScene = 3.0
	DefaultFPS             = 24
	DefaultWidth           = 1280
	DefaultHeight          = 720

	// zoomEnd is the zoom factor reached at the end of each clip.
	zoomEnd = 1.05
)

type Options struct {
	SecondsPerScene float64
	FPS             int
	Width           int
	Height          int
}

func (o Options) withDefaults() Options {
	if o.SecondsPerScene <= 0 {
		o.SecondsPerScene = DefaultSecondsPerScene
	}
	if o.FPS <= 0 {
		o.FPS = DefaultFPS
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	// H.264 with yuv420p needs even dimensions.
	o.Width += o.Width % 2
	o.Height += o.Height % 2
	return o
}

// ExportMP4 renders one clip per scene with a resolvable and decodable image, slowly zooming in, and concatenates the
// clips in scene order. An empty outputPath uses [Exporter.DefaultPath].
func (e *Exporter) ExportMP4(
	ctx context.Context,
	campaignName string,
	scenes []models.Scene,
	opts Options,
	outputPath string,
) (Result, error) {
	if len(scenes) == 0 {
		return Result{}, ErrNoScenes
	}
	opts = opts.withDefaults()
	if outputPath == "" {
		outputPath = e.DefaultPath(campaignName, "mp4")
	}

	result := Result{Path: outputPath}
	var inputs []string
	for _, scene := range scenes {
		status := SceneStatus{SceneID: scene.ID, Title: scene.Title}
		res := e.resolveImage(scene)
		if !res.Found() {
			status.Detail = res.Summary()
		} else if problem := checkImage(res.Path); problem != "" {
			status.Detail = problem
			e.logger.LogAttrs(ctx, slog.LevelWarn, "skipping scene image",
				slog.String("sceneID", scene.ID), slog.String("problem", problem))
		} else {
			status.Included = true
			status.Detail = "found via " + res.Strategy
			inputs = append(inputs, res.Path)
		}
		result.Scenes = append(result.Scenes, status)
	}
	if len(inputs) == 0 {
		return Result{}, &NoUsableScenesError{Scenes: result.Scenes}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return Result{}, errors.Wrap(err, "create output directory", slog.String("path", outputPath))
	}

	args := ffmpegArgs(inputs, opts, outputPath)
	cmd := commandContext(ctx, e.ffmpeg, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	e.logger.LogAttrs(ctx, slog.LevelDebug, "running ffmpeg",
		slog.String("binary", e.ffmpeg), slog.Int("clips", len(inputs)))
	if err := cmd.Run(); err != nil {
		_ = os.Remove(outputPath)
		return Result{}, errors.Wrap(err, "run ffmpeg",
			slog.String("stderr", lastLines(stderr.String(), 10)),
			slog.String("binary", e.ffmpeg))
	}

	result.Clips = len(inputs)
	e.logger.LogAttrs(ctx, slog.LevelInfo, "video exported",
		slog.String("path", outputPath),
		slog.Int("clips", result.Clips),
		slog.Duration("duration", time.Since(start)))
	return result, nil
}

// ffmpegArgs builds an ffmpeg invocation that turns every still image into a clip, letterboxes it to the frame, zooms
// in linearly over the clip, and concatenates the clips into an H.264 MP4.
func ffmpegArgs(inputs []string, opts Options, outputPath string) []string {
	fps := strconv.Itoa(opts.FPS)
	seconds := strconv.FormatFloat(opts.SecondsPerScene, 'f', -1, 64)
	frames := max(int(opts.SecondsPerScene*float64(opts.FPS)+0.5), 1)
	size := fmt.Sprintf("%dx%d", opts.Width, opts.Height)

	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	for _, in := range inputs {
		args = append(args, "-loop", "1", "-framerate", fps, "-t", seconds, "-i", in)
	}

	var graph strings.Builder
	for i := range inputs {
		fmt.Fprintf(&graph,
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,"+
				"pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,"+
				"zoompan=z='1+%.2f*on/%d':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=1:s=%s:fps=%s,"+
				"trim=end_frame=%d,setpts=PTS-STARTPTS[v%d];",
			i, opts.Width, opts.Height, opts.Width, opts.Height,
			zoomEnd-1, max(frames-1, 1), size, fps, frames, i)
	}
	for i := range inputs {
		fmt.Fprintf(&graph, "[v%d]", i)
	}
	fmt.Fprintf(&graph, "concat=n=%d:v=1:a=0,format=yuv420p[out]", len(inputs))

	return append(args,
		"-filter_complex", graph.String(),
		"-map", "[out]",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-r", fps,
		"-movflags", "+faststart",
		outputPath,
	)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
