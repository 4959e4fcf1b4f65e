package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	app, err := wireApp()
	return newRootCmdFor(app, err)
}

func newRootCmdFor(app *app, wireErr error) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "catq",
		Short:         "catq: take computerized adaptive tests from the terminal",
		Long:          "catq runs an adaptive test session against the assessment service for the logged-in test-taker, one question at a time, until the service or the question cap ends it.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	if wireErr != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return wireErr
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newTakeCmd(app),
		newLoginCmd(app),
		newLogoutCmd(app),
		newWhoamiCmd(app),
	)

	return rootCmd
}
