package main

import (
	"fmt"
	"github.com/myrjola/sagaboard/internal/errors"
	"github.com/myrjola/sagaboard/internal/models"
	"github.com/myrjola/sagaboard/internal/workflow"
	"github.com/spf13/cobra"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

func newCharacterCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "character",
		Aliases: []string{"char"},
		GroupID: groupLibrary,
		Short:   "Manage the character library",
	}
	cmd.AddCommand(
		newCharacterCreateCommand(cc),
		newCharacterListCommand(cc),
		newCharacterShowCommand(cc),
		newCharacterUpdateCommand(cc),
		newCharacterDeleteCommand(cc),
		newCharacterPortraitCommand(cc),
	)
	return cmd
}

func newCharacterCreateCommand(cc *commandContext) *cobra.Command {
	var (
		input     models.NewCharacter
		reference string
		opts      workflow.CharacterOptions
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a character",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if reference != "" {
				if opts.ReferenceImage, err = os.ReadFile(reference); err != nil {
					return errors.Wrap(err, "read reference image", slog.String("path", reference))
				}
			}
			character, notices, err := service.CreateCharacter(ctx, cc.sessionFor(), input, opts)
			if err != nil {
				return err
			}
			printNotices(cmd.ErrOrStderr(), notices)
			printDone(cmd.OutOrStdout(), "Created character %s (%s)", character.Name, character.ID)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&input.Name, "name", "", "character name")
	flags.StringVar(&input.Role, "role", "", "role in the party, e.g. Ranger")
	flags.StringVar(&input.Description, "description", "", "appearance and personality")
	flags.StringVar(&reference, "reference", "", "path to a reference picture")
	flags.BoolVar(&opts.Expand, "expand", false, "write an illustration prompt and a summary with AI")
	flags.BoolVar(&opts.GeneratePortrait, "portrait", false, "illustrate a portrait with AI")
	return cmd
}

func newCharacterListCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List characters, optionally only those of the selected campaign",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			characters, err := service.Repositories().Characters.List(ctx, cc.sessionFor().CampaignID)
			if err != nil {
				return err
			}
			if len(characters) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No characters.")
				return nil
			}
			rows := make([][]string, 0, len(characters))
			for _, c := range characters {
				rows = append(rows, []string{c.ID, c.Name, c.Role, truncate(c.Description, 48), orDash(c.PortraitPath)})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(),
				renderTable([]string{"ID", "Name", "Role", "Description", "Portrait"}, rows, nil))
			return nil
		},
	}
}

func newCharacterShowCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			c, err := service.Repositories().Characters.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if c == nil {
				return errors.Wrap(workflow.ErrCharacterNotFound, "show character", slog.String("id", args[0]))
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderFields([][2]string{
				{"ID", c.ID},
				{"Name", c.Name},
				{"Role", c.Role},
				{"Description", c.Description},
				{"Summary", orDash(c.Summary)},
				{"Prompt", orDash(c.LongPrompt)},
				{"Portrait", orDash(c.PortraitPath)},
				{"Images", orDash(strings.Join(c.ImagePaths, "\n"))},
				{"History", orDash(strings.Join(c.PortraitHistory, "\n"))},
				{"Revision", strconv.FormatInt(c.Revision, 10)},
			}))
			return nil
		},
	}
}

func newCharacterUpdateCommand(cc *commandContext) *cobra.Command {
	var name, role, description, summary, prompt string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update the given fields of a character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			characters := service.Repositories().Characters
			c, err := characters.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if c == nil {
				return errors.Wrap(workflow.ErrCharacterNotFound, "update character", slog.String("id", args[0]))
			}
			flags := cmd.Flags()
			for flag, field := range map[string]*string{
				"name": &c.Name, "role": &c.Role, "description": &c.Description,
				"summary": &c.Summary, "prompt": &c.LongPrompt,
			} {
				if flags.Changed(flag) {
					value, _ := flags.GetString(flag)
					*field = value
				}
			}
			applied, err := characters.Update(ctx, *c)
			if err != nil {
				return err
			}
			if !applied {
				return errors.Wrap(workflow.ErrCharacterNotFound, "update character", slog.String("id", args[0]))
			}
			printDone(cmd.OutOrStdout(), "Updated character %s", c.Name)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&name, "name", "", "character name")
	flags.StringVar(&role, "role", "", "role in the party")
	flags.StringVar(&description, "description", "", "appearance and personality")
	flags.StringVar(&summary, "summary", "", "brief summary")
	flags.StringVar(&prompt, "prompt", "", "long illustration prompt")
	return cmd
}

func newCharacterDeleteCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a character and the images only it references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			applied, err := service.Repositories().Characters.Delete(ctx, args[0])
			if err != nil {
				return err
			}
			if !applied {
				return errors.Wrap(workflow.ErrCharacterNotFound, "delete character", slog.String("id", args[0]))
			}
			printDone(cmd.OutOrStdout(), "Deleted character %s", args[0])
			return nil
		},
	}
}

func newCharacterPortraitCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "portrait <id>",
		Short: "Illustrate a new portrait, keeping the previous one in the history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			service, err := cc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			c, err := service.RegeneratePortrait(ctx, cc.sessionFor(), args[0])
			if err != nil {
				return err
			}
			printDone(cmd.OutOrStdout(), "New portrait for %s at %s", c.Name, c.PortraitPath)
			return nil
		},
	}
}
