package cmd

import (
	"fmt"

	stateadapter "github.com/bnema/scout-cli/internal/adapters/render/state"
	"github.com/spf13/cobra"
)

func newStateCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the remote buffers and variables for the active session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := app.sessions.State(cmd.Context())
			if err != nil {
				return app.remoteErr(err)
			}

			if asJSON {
				return printJSON(cmd, payload)
			}

			session, err := app.store.Load()
			if err != nil {
				return err
			}
			rendered, err := stateadapter.Render(stateadapter.FromPayload(session.SessionID, payload))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newCheckFinalCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check-final",
		Short: "Poll the termination variable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := app.sessions.CheckFinal(cmd.Context())
			if err != nil {
				return app.remoteErr(err)
			}
			return printJSON(cmd, result)
		},
	}
}
