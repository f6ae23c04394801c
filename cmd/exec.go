package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newExecCmd(app *app) *cobra.Command {
	var code string
	var fullOutput bool

	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Execute a script against the restored session namespace",
		Long:  "Runs a script with the bridge helpers (search, impl, buffers, vars, llm_query, ...) predeclared and the variables from the previous invocation restored. Reads the script from --code or stdin.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			source := code
			if source == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read script from stdin: %w", err)
				}
				source = string(data)
			}

			service, err := app.execService()
			if err != nil {
				return err
			}

			response, err := service.Run(cmd.Context(), source, fullOutput)
			if err != nil {
				return app.remoteErr(err)
			}
			return printJSON(cmd, response)
		},
	}

	cmd.Flags().StringVarP(&code, "code", "c", "", "Script to execute (default: read stdin)")
	cmd.Flags().BoolVar(&fullOutput, "full-output", false, "Return the entire stdout, bypassing truncation")

	return cmd
}
