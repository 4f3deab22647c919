// Package img holds the image generation commands.
package img

import (
	"context"
	"fmt"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/jsondb"
	"github.com/spf13/cobra"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

var Group = &cobra.Group{
	ID:    "img",
	Title: "Image operations",
}

// Generator creates an image from a prompt.
type Generator interface {
	GenerateImage(ctx context.Context, prompt string, size string) ([]byte, error)
}

// GeneratorFunc resolves the generator and the configured image size when a command runs.
type GeneratorFunc func(ctx context.Context, stderr io.Writer) (Generator, string, error)

// NewCommand returns the img command group.
func NewCommand(generator GeneratorFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "img",
		GroupID: Group.ID,
		Short:   "Image operations",
	}
	cmd.AddCommand(newGenerateCommand(generator))
	return cmd
}

func newGenerateCommand(generator GeneratorFunc) *cobra.Command {
	var (
		outPath string
		size    string
	)
	cmd := &cobra.Command{
		Use:   "gen [prompt]",
		Short: "Generate image",
		Long:  `Generates an image from the prompt without storing it in the data directory.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			gen, defaultSize, err := generator(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if size == "" {
				size = defaultSize
			}
			data, err := gen.GenerateImage(ctx, strings.Join(args, " "), size)
			if err != nil {
				return errors.Wrap(err, "generate image")
			}
			if err = jsondb.WriteFileAtomic(filepath.Clean(outPath), data, 0o644); err != nil { //nolint:mnd // rw-r--r--
				return errors.Wrap(err, "write image", slog.String("path", outPath))
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "The image was saved as %s\n", outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "./out.png", "path to generated image file")
	cmd.Flags().StringVar(&size, "size", "", "image size such as 1024x1024 (defaults to $SAGABOARD_IMAGE_SIZE)")
	return cmd
}
