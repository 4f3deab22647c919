package montage

import (
	"bytes"
	"context"
	"fmt"
	"github.com/myrjola/sagaboard/internal/imagestore"
	"github.com/myrjola/sagaboard/internal/models"
	"github.com/myrjola/sagaboard/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"image"
	"image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestWrapText(t *testing.T) {
	long := strings.Repeat("x", 95)
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{name: "empty", text: "", width: 90, want: nil},
		{name: "single line", text: "The party rests.", width: 90, want: []string{"The party rests."}},
		{name: "wraps at width", text: "aaa bbb ccc", width: 7, want: []string{"aaa bbb", "ccc"}},
		{name: "collapses whitespace", text: "  aaa \n\t bbb ", width: 90, want: []string{"aaa bbb"}},
		{name: "overlong word", text: "a " + long + " b", width: 90, want: []string{"a", long, "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, wrapText(tt.text, tt.width))
		})
	}
}

func TestLayoutPage(t *testing.T) {
	const letterW, letterH = 612.0, 792.0

	t.Run("without image", func(t *testing.T) {
		layout := layoutPage(letterW, letterH, 0, 0, "Wolves circle the camp.")
		require.Nil(t, layout.Image)
		require.InDelta(t, 50, layout.TitleX, 0.001)
		require.InDelta(t, 50, layout.TitleY, 0.001)
		require.Equal(t, []string{"Wolves circle the camp."}, layout.CaptionLines)
		require.Equal(t, []float64{80}, layout.CaptionY)
	})

	t.Run("wide image is bounded by width", func(t *testing.T) {
		layout := layoutPage(letterW, letterH, 1024, 512, "")
		require.NotNil(t, layout.Image)
		require.InDelta(t, 512, layout.Image.W, 0.001)
		require.InDelta(t, 256, layout.Image.H, 0.001)
		require.InDelta(t, 50, layout.Image.X, 0.001)
		require.InDelta(t, 80, layout.Image.Y, 0.001)
		require.Empty(t, layout.CaptionLines)
	})

	t.Run("tall image is bounded by height and pushes caption down", func(t *testing.T) {
		caption := strings.Repeat("word ", 40)
		layout := layoutPage(letterW, letterH, 100, 1000, caption)
		require.InDelta(t, 592, layout.Image.H, 0.001)
		require.InDelta(t, 59.2, layout.Image.W, 0.001)
		require.Len(t, layout.CaptionLines, 3)
		require.InDeltaSlice(t, []float64{692, 708, 724}, layout.CaptionY, 0.001)
	})
}

func TestFFmpegArgs(t *testing.T) {
	opts := Options{SecondsPerScene: 2, FPS: 10, Width: 640, Height: 360}
	args := ffmpegArgs([]string{"/a.png", "/b.png"}, opts, "/out.mp4")

	joined := strings.Join(args, " ")
	require.Equal(t, 2, strings.Count(joined, "-loop 1 -framerate 10 -t 2 -i"))
	require.Equal(t, "/out.mp4", args[len(args)-1])
	require.Contains(t, joined, "-c:v libx264")
	require.Contains(t, joined, "-pix_fmt yuv420p")

	var graph string
	for i, a := range args {
		if a == "-filter_complex" {
			graph = args[i+1]
		}
	}
	require.Equal(t, 2, strings.Count(graph, "zoompan=z='1+0.05*on/19'"))
	require.Contains(t, graph, "pad=640:360")
	require.Contains(t, graph, "trim=end_frame=20")
	require.Contains(t, graph, "[v0][v1]concat=n=2:v=1:a=0")
}

func TestOptionsDefaults(t *testing.T) {
	got := Options{Width: 641}.withDefaults()
	require.Equal(t, Options{SecondsPerScene: 3, FPS: 24, Width: 642, Height: 720}, got)
}

// TestHelperProcess stands in for the ffmpeg binary. It writes the output file named by the last argument.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	if os.Getenv("HELPER_FAIL") == "1" {
		_, _ = fmt.Fprintln(os.Stderr, "Unknown encoder 'libx264'")
		os.Exit(1)
	}
	out := os.Args[len(os.Args)-1]
	if err := os.WriteFile(out, []byte("fake mp4"), 0o600); err != nil {
		os.Exit(2)
	}
	os.Exit(0)
}

func fakeFFmpeg(t *testing.T, fail bool) *[]string {
	t.Helper()
	var recorded []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		recorded = append([]string{name}, args...)
		cs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		if fail {
			cmd.Env = append(cmd.Env, "HELPER_FAIL=1")
		}
		return cmd
	}
	t.Cleanup(func() { commandContext = original })
	return &recorded
}

func stillPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 3))))
	return buf.Bytes()
}

func newTestExporter(t *testing.T) (*Exporter, *imagestore.Store) {
	t.Helper()
	logger := testhelpers.NewLogger(io.Discard)
	store, err := imagestore.New(t.TempDir(), logger)
	require.NoError(t, err)
	return NewExporter(store, filepath.Join(t.TempDir(), "exports"), "ffmpeg-test", logger), store
}

func TestExportMP4(t *testing.T) {
	ctx := context.Background()
	recorded := fakeFFmpeg(t, false)
	exporter, store := newTestExporter(t)

	first, err := store.Save(ctx, stillPNG(t), "first.png", models.ImageRef{})
	require.NoError(t, err)
	legacy := filepath.Join(store.DataDir(), imagestore.Dir, "scene-s3.png")
	require.NoError(t, os.WriteFile(legacy, stillPNG(t), 0o600))

	scenes := []models.Scene{
		{ID: "s1", Title: "One", ImagePath: first},
		{ID: "s2", Title: "Two", ImagePath: "images/missing.png"},
		{ID: "s3", Title: "Three"},
	}
	result, err := exporter.ExportMP4(ctx, "Lost Mines", scenes, Options{}, "")
	require.NoError(t, err)
	require.Equal(t, 2, result.Clips)
	require.Equal(t, "Lost_Mines_montage.mp4", filepath.Base(result.Path))
	require.True(t, result.Scenes[0].Included)
	require.False(t, result.Scenes[1].Included)
	require.True(t, result.Scenes[2].Included)

	data, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	require.Equal(t, "fake mp4", string(data))

	require.Equal(t, "ffmpeg-test", (*recorded)[0])
	joined := strings.Join(*recorded, " ")
	require.Contains(t, joined, "-i "+store.Abs(first))
	require.Contains(t, joined, "-i "+legacy)
	require.Less(t, strings.Index(joined, store.Abs(first)), strings.Index(joined, legacy))
}

func TestExportMP4_NoUsableScenes(t *testing.T) {
	fakeFFmpeg(t, false)
	exporter, _ := newTestExporter(t)

	scenes := []models.Scene{
		{ID: "s1", Title: "One", ImagePath: "images/missing.png"},
		{ID: "s2", Title: "Two"},
	}
	_, err := exporter.ExportMP4(context.Background(), "Saga", scenes, Options{}, "")
	require.ErrorIs(t, err, ErrNoUsableScenes)
	require.Contains(t, err.Error(), `"One": relative-v2: missing`)
	require.Contains(t, err.Error(), `"Two": relative-v2: skipped: no stored path`)

	var diagnostic *NoUsableScenesError
	require.ErrorAs(t, err, &diagnostic)
	require.Len(t, diagnostic.Scenes, 2)
}

func TestExportMP4_SkipsUndecodableImage(t *testing.T) {
	ctx := context.Background()
	recorded := fakeFFmpeg(t, false)
	exporter, store := newTestExporter(t)

	broken, err := store.Save(ctx, []byte("\x89PNG\r\n\x1a\nnot really"), "broken.png", models.ImageRef{})
	require.NoError(t, err)
	good, err := store.Save(ctx, stillPNG(t), "good.png", models.ImageRef{})
	require.NoError(t, err)

	scenes := []models.Scene{
		{ID: "s1", Title: "Broken", ImagePath: broken},
		{ID: "s2", Title: "Good", ImagePath: good},
	}
	result, err := exporter.ExportMP4(ctx, "Saga", scenes, Options{}, "")
	require.NoError(t, err)
	require.Equal(t, 1, result.Clips)
	require.False(t, result.Scenes[0].Included)
	require.Contains(t, result.Scenes[0].Detail, "undecodable")
	require.True(t, result.Scenes[1].Included)

	joined := strings.Join(*recorded, " ")
	require.NotContains(t, joined, store.Abs(broken))
	require.Contains(t, joined, "-i "+store.Abs(good))
}

func TestExportMP4_OnlyUndecodableImages(t *testing.T) {
	ctx := context.Background()
	fakeFFmpeg(t, false)
	exporter, store := newTestExporter(t)
	broken, err := store.Save(ctx, []byte("\x89PNG\r\n\x1a\nnot really"), "broken.png", models.ImageRef{})
	require.NoError(t, err)

	_, err = exporter.ExportMP4(ctx, "Saga", []models.Scene{{ID: "s1", Title: "Broken", ImagePath: broken}},
		Options{}, "")
	require.ErrorIs(t, err, ErrNoUsableScenes)
	require.Contains(t, err.Error(), `"Broken": undecodable image`)
}

func TestExportMP4_FFmpegFailure(t *testing.T) {
	ctx := context.Background()
	fakeFFmpeg(t, true)
	exporter, store := newTestExporter(t)
	path, err := store.Save(ctx, stillPNG(t), "a.png", models.ImageRef{})
	require.NoError(t, err)

	_, err = exporter.ExportMP4(ctx, "Saga", []models.Scene{{ID: "s1", Title: "One", ImagePath: path}}, Options{}, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "run ffmpeg")
}
