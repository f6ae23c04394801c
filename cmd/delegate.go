package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/bnema/scout-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newDelegateCmd(app *app) *cobra.Command {
	var contextText, contextFile, chunkID string

	cmd := &cobra.Command{
		Use:   "delegate <query>",
		Short: "Send a sub-query to the external reasoning process",
		Long:  "Composes the sub-agent prompt from the instruction document, the query, and optional context, runs the reasoning CLI, and records the structured result both on the server and locally.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if contextFile != "" {
				data, err := os.ReadFile(contextFile)
				if err != nil {
					return fmt.Errorf("read context file: %w", err)
				}
				contextText = string(data)
			}

			delegation, err := app.delegation()
			if err != nil {
				return err
			}

			var result domain.SubcallResult
			runErr := runDelegateSpinner(cmd.Context(), cmd.ErrOrStderr(), func(ctx context.Context) error {
				var err error
				result, err = delegation.Delegate(ctx, args[0], contextText, chunkID)
				return err
			})
			if runErr != nil {
				return app.remoteErr(runErr)
			}
			return printJSON(cmd, result)
		},
	}

	cmd.Flags().StringVar(&contextText, "context", "", "Inline context to analyze")
	cmd.Flags().StringVar(&contextFile, "context-file", "", "Read context from a file (wins over --context)")
	cmd.Flags().StringVar(&chunkID, "chunk-id", "", "Identifier for tracking this sub-query's result")

	return cmd
}
