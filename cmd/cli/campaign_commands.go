package main

import (
	"fmt"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/models"
	"github.com/myrjola/sagaboard/internal/repositories"
	"github.com/myrjola/sagaboard/internal/workflow"
	"github.com/spf13/cobra"
	"log/slog"
	"strconv"
)

func newCampaignCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "campaign",
		GroupID: groupLibrary,
		Short:   "Manage campaigns and their rosters",
	}
	cmd.AddCommand(
		newCampaignCreateCommand(cc),
		newCampaignListCommand(cc),
		newCampaignShowCommand(cc),
		newCampaignDeleteCommand(cc),
		newCampaignMembershipCommand(cc, "add-character", "Add a character to a campaign"),
		newCampaignMembershipCommand(cc, "remove-character", "Remove a character from a campaign"),
	)
	return cmd
}

func newCampaignCreateCommand(cc *commandContext) *cobra.Command {
	var input models.NewCampaign
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a campaign",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			campaign, err := service.Repositories().Campaigns.Create(ctx, input)
			if err != nil {
				return err
			}
			printDone(cmd.OutOrStdout(), "Created campaign %s (%s)", campaign.Name, campaign.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.Name, "name", "", "campaign name")
	cmd.Flags().StringVar(&input.Description, "description", "", "campaign premise")
	return cmd
}

func newCampaignListCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List campaigns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			campaigns, err := service.Repositories().Campaigns.List(ctx)
			if err != nil {
				return err
			}
			if len(campaigns) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No campaigns.")
				return nil
			}
			rows := make([][]string, 0, len(campaigns))
			for _, c := range campaigns {
				rows = append(rows, []string{
					c.ID, c.Name, strconv.Itoa(len(c.CharacterIDs)), strconv.Itoa(len(c.SceneIDs)),
				})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Characters", "Scenes"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight}))
			return nil
		},
	}
}

func newCampaignShowCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show a campaign with its roster and scenes, defaulting to the selected campaign",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			sess := cc.sessionFor()
			if len(args) == 1 {
				sess.CampaignID = args[0]
			}
			campaign, err := service.Campaign(ctx, sess)
			if err != nil {
				return err
			}
			repos := service.Repositories()
			characters, err := repos.Characters.List(ctx, campaign.ID)
			if err != nil {
				return err
			}
			scenes, err := repos.Scenes.ListOrdered(ctx, campaign.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, renderFields([][2]string{
				{"ID", campaign.ID},
				{"Name", campaign.Name},
				{"Description", orDash(campaign.Description)},
			}))
			roster := make([][]string, 0, len(characters))
			for _, c := range characters {
				roster = append(roster, []string{c.ID, c.Name, c.Role})
			}
			_, _ = fmt.Fprintln(out, renderTable([]string{"Character", "Name", "Role"}, roster, nil))
			_, _ = fmt.Fprintln(out, renderTable([]string{"#", "Scene", "Title", "Image"}, sceneRows(scenes),
				[]columnAlignment{alignRight}))
			return nil
		},
	}
}

func newCampaignDeleteCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a campaign and its scenes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			applied, err := service.Repositories().Campaigns.Delete(ctx, args[0])
			if err != nil {
				return err
			}
			if !applied {
				return errors.Wrap(repositories.ErrCampaignNotFound, "delete campaign", slog.String("id", args[0]))
			}
			printDone(cmd.OutOrStdout(), "Deleted campaign %s", args[0])
			return nil
		},
	}
}

func newCampaignMembershipCommand(cc *commandContext, use string, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <campaign-id> <character-id>",
		Short: short,
		Args:  cobra.ExactArgs(2), //nolint:mnd // campaign and character
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			sess := cc.sessionFor()
			sess.CampaignID = args[0]
			campaign, err := service.Campaign(ctx, sess)
			if err != nil {
				return err
			}
			repos := service.Repositories()
			character, err := repos.Characters.Get(ctx, args[1])
			if err != nil {
				return err
			}
			if character == nil {
				return errors.Wrap(workflow.ErrCharacterNotFound, use, slog.String("id", args[1]))
			}
			change := repos.Campaigns.AddCharacter
			if use == "remove-character" {
				change = repos.Campaigns.RemoveCharacter
			}
			applied, err := change(ctx, campaign.ID, character.ID)
			if err != nil {
				return err
			}
			if !applied {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is not in %s\n", character.Name, campaign.Name)
				return nil
			}
			printDone(cmd.OutOrStdout(), "Done: %s %s in %s", use, character.Name, campaign.Name)
			return nil
		},
	}
}

func sceneRows(scenes []models.Scene) [][]string {
	rows := make([][]string, 0, len(scenes))
	for i, s := range scenes {
		rows = append(rows, []string{strconv.Itoa(i + 1), s.ID, s.Title, orDash(s.ImagePath)})
	}
	return rows
}
