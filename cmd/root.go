package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "scout",
		Short:         "Scout CLI: a persistent code-exploration REPL over scout-server",
		Long:          "scout gives an orchestrating agent a stateful execution bridge to a code-indexing server: each invocation restores the previous namespace, runs a script with index, buffer, and delegation helpers, and persists what survived.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newExecCmd(app),
		newStateCmd(app),
		newCheckFinalCmd(app),
		newDelegateCmd(app),
		newInitCmd(app),
		newStatusCmd(app),
		newCleanupCmd(app),
		newBufferCmd(app),
		newVarCmd(app),
	)
	rootCmd.AddCommand(newQueryCmds(app)...)

	return rootCmd
}
