package main

import (
	"fmt"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/montage"
	"github.com/myrjola/sagaboard/internal/workflow"
	"github.com/spf13/cobra"
	"io"
	"strconv"
)

func newPlanCommand(cc *commandContext) *cobra.Command {
	var (
		steps  int
		create bool
	)
	cmd := &cobra.Command{
		Use:     "plan",
		GroupID: groupStory,
		Short:   "Propose scenes continuing the selected campaign",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			plan, err := service.PlanFutureScenes(ctx, cc.sessionFor(), steps, create)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(plan.Proposals))
			for i, p := range plan.Proposals {
				rows = append(rows, []string{strconv.Itoa(i + 1), p.Title, truncate(p.Prompt, 72)})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(),
				renderTable([]string{"#", "Title", "Prompt"}, rows, []columnAlignment{alignRight}))
			if create {
				printDone(cmd.OutOrStdout(), "Created %d scenes", len(plan.Created))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 3, "number of scenes to propose") //nolint:mnd // a short arc
	cmd.Flags().BoolVar(&create, "create", false, "create the proposed scenes without artwork")
	return cmd
}

func newRecapCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "recap",
		GroupID: groupStory,
		Short:   "Narrate the selected campaign so far",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			text, err := service.Recap(ctx, cc.sessionFor())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newExportCommand(cc *commandContext) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:     "export",
		GroupID: groupStory,
		Short:   "Export the selected campaign as a montage",
	}
	cmd.PersistentFlags().StringVar(&outPath, "out", "", "output file (defaults to the output directory)")

	pdf := &cobra.Command{
		Use:   "pdf",
		Short: "Export one page per scene",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			export, err := service.ExportPDF(ctx, cc.sessionFor(), outPath)
			if err != nil {
				return err
			}
			printExport(cmd.OutOrStdout(), cmd.ErrOrStderr(), export)
			return nil
		},
	}

	var opts montage.Options
	mp4 := &cobra.Command{
		Use:   "mp4",
		Short: "Export a video with one slowly zooming clip per scene",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			export, err := service.ExportMP4(ctx, cc.sessionFor(), opts, outPath)
			var diagnostic *montage.NoUsableScenesError
			if errors.As(err, &diagnostic) {
				printSceneStatus(cmd.ErrOrStderr(), diagnostic.Scenes)
			}
			if err != nil {
				return err
			}
			printExport(cmd.OutOrStdout(), cmd.ErrOrStderr(), export)
			return nil
		},
	}
	mp4.Flags().Float64Var(&opts.SecondsPerScene, "seconds", montage.DefaultSecondsPerScene, "clip length per scene")
	mp4.Flags().IntVar(&opts.FPS, "fps", montage.DefaultFPS, "frames per second")
	mp4.Flags().IntVar(&opts.Width, "width", montage.DefaultWidth, "frame width")
	mp4.Flags().IntVar(&opts.Height, "height", montage.DefaultHeight, "frame height")

	cmd.AddCommand(pdf, mp4)
	return cmd
}

func printExport(stdout, stderr io.Writer, export workflow.Export) {
	printSceneStatus(stdout, export.Scenes)
	printNotices(stderr, export.Notices)
	printDone(stdout, "Wrote %s", export.Path)
	if export.Published != nil {
		_, _ = fmt.Fprintf(stdout, "Published at %s (valid until %s)\n",
			export.Published.URL, export.Published.ExpiresAt.Format("2006-01-02 15:04"))
	}
}

func printSceneStatus(w io.Writer, scenes []montage.SceneStatus) {
	rows := make([][]string, 0, len(scenes))
	for _, s := range scenes {
		included := "no"
		if s.Included {
			included = "yes"
		}
		rows = append(rows, []string{s.Title, included, s.Detail})
	}
	_, _ = fmt.Fprintln(w, renderTable([]string{"Scene", "Image", "Detail"}, rows, nil))
}
