package main

import (
	"context"
	"fmt"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/models"
	"github.com/myrjola/sagaboard/internal/workflow"
	"github.com/spf13/cobra"
	"log/slog"
	"strconv"
	"strings"
)

func newSceneCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scene",
		GroupID: groupStory,
		Short:   "Compose the scenes of the selected campaign",
	}
	cmd.AddCommand(
		newSceneCreateCommand(cc),
		newSceneListCommand(cc),
		newSceneShowCommand(cc),
		newSceneDeleteCommand(cc),
		newSceneMoveCommand(cc, "move-up", "Move a scene one step earlier"),
		newSceneMoveCommand(cc, "move-down", "Move a scene one step later"),
		newSceneRegenerateCommand(cc),
		newSceneCaptionCommand(cc),
	)
	return cmd
}

func newSceneCreateCommand(cc *commandContext) *cobra.Command {
	var input models.NewScene
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a scene, illustrate it, and caption it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			scene, notices, err := service.CreateScene(ctx, cc.sessionFor(), input)
			if err != nil {
				return err
			}
			printNotices(cmd.ErrOrStderr(), notices)
			printDone(cmd.OutOrStdout(), "Created scene %s (%s)", scene.Title, scene.ID)
			if scene.Caption != "" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), scene.Caption)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&input.Title, "title", "", "scene title")
	flags.StringVar(&input.Prompt, "prompt", "", "what happens in the scene")
	flags.StringSliceVar(&input.CharacterIDs, "character", nil, "character appearing in the scene, repeatable")
	flags.StringVar(&input.Chapter, "chapter", "", "optional chapter label")
	return cmd
}

func newSceneListCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the scenes of the selected campaign in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			campaign, err := service.Campaign(ctx, cc.sessionFor())
			if err != nil {
				return err
			}
			scenes, err := service.Repositories().Scenes.ListOrdered(ctx, campaign.ID)
			if err != nil {
				return err
			}
			if len(scenes) == 0 {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No scenes in %s.\n", campaign.Name)
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"#", "Scene", "Title", "Image"},
				sceneRows(scenes), []columnAlignment{alignRight}))
			return nil
		},
	}
}

func newSceneShowCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			s, err := service.Repositories().Scenes.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if s == nil {
				return errors.Wrap(workflow.ErrSceneNotFound, "show scene", slog.String("id", args[0]))
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderFields([][2]string{
				{"ID", s.ID},
				{"Campaign", s.CampaignID},
				{"Title", s.Title},
				{"Prompt", s.Prompt},
				{"Characters", orDash(strings.Join(s.CharacterIDs, ", "))},
				{"Chapter", orDash(s.Chapter)},
				{"Style", orDash(s.Style)},
				{"Image", orDash(s.ImagePath)},
				{"History", orDash(strings.Join(s.ImageHistory, "\n"))},
				{"Caption", orDash(s.Caption)},
				{"Revision", strconv.FormatInt(s.Revision, 10)},
			}))
			return nil
		},
	}
}

func newSceneDeleteCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a scene and its images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			applied, err := service.Repositories().Scenes.Delete(ctx, args[0])
			if err != nil {
				return err
			}
			if !applied {
				return errors.Wrap(workflow.ErrSceneNotFound, "delete scene", slog.String("id", args[0]))
			}
			printDone(cmd.OutOrStdout(), "Deleted scene %s", args[0])
			return nil
		},
	}
}

func newSceneMoveCommand(cc *commandContext, use string, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			campaign, err := service.Campaign(ctx, cc.sessionFor())
			if err != nil {
				return err
			}
			if !campaign.HasScene(args[0]) {
				return errors.Wrap(workflow.ErrSceneNotFound, use,
					slog.String("id", args[0]), slog.String("campaign", campaign.Name))
			}
			var move func(ctx context.Context, campaignID, sceneID string) (bool, error)
			if use == "move-up" {
				move = service.Repositories().Campaigns.MoveSceneUp
			} else {
				move = service.Repositories().Campaigns.MoveSceneDown
			}
			applied, err := move(ctx, campaign.ID, args[0])
			if err != nil {
				return err
			}
			if !applied {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "The scene is already at the edge.")
				return nil
			}
			printDone(cmd.OutOrStdout(), "Moved scene %s", args[0])
			return nil
		},
	}
}

func newSceneRegenerateCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate <id>",
		Short: "Illustrate a scene again, keeping the previous image in the history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			scene, err := service.RegenerateSceneImage(ctx, cc.sessionFor(), args[0])
			if err != nil {
				return err
			}
			printDone(cmd.OutOrStdout(), "New image for %s at %s", scene.Title, scene.ImagePath)
			return nil
		},
	}
}

func newSceneCaptionCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "caption <id>",
		Short: "Write a new caption for a scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			scene, err := service.Caption(ctx, cc.sessionFor(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), scene.Caption)
			return nil
		},
	}
}
