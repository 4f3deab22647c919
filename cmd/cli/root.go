package main

import (
	"github.com/myrjola/sagaboard/cmd/cli/img"
	"github.com/spf13/cobra"
)

const (
	groupLibrary = "library"
	groupStory   = "story"
	groupTools   = "tools"
)

func newRootCommand(lookupEnv func(string) (string, bool)) *cobra.Command {
	cc := newCommandContext(lookupEnv)

	rootCmd := &cobra.Command{
		Use:           "sagaboard",
		Short:         "Illustrated storyboards for tabletop campaigns",
		Long:          `Manage characters, campaigns, and illustrated scenes, and export them as montages.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cc.session.CampaignID, "campaign", "", "campaign to work on (defaults to $SAGABOARD_CAMPAIGN)")
	flags.StringVar(&cc.session.Style, "style", "", "illustration style for new artwork, e.g. watercolor")
	flags.BoolVarP(&cc.verbose, "verbose", "v", false, "log debug output to stderr")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupLibrary, Title: "Library"},
		&cobra.Group{ID: groupStory, Title: "Storytelling"},
		&cobra.Group{ID: groupTools, Title: "Tools"},
		img.Group,
	)
	rootCmd.AddCommand(
		newCharacterCommand(cc),
		newCampaignCommand(cc),
		newSceneCommand(cc),
		newPlanCommand(cc),
		newRecapCommand(cc),
		newExportCommand(cc),
		newKeyCommand(cc),
		img.NewCommand(cc.imageGenerator),
	)
	return rootCmd
}
