package cmd

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/bnema/scout-cli/internal/ports"
	"github.com/spf13/cobra"
)

func newVarCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "var",
		Short: "Manage server-side session variables",
	}

	cmd.AddCommand(
		newVarListCmd(app),
		newVarSetCmd(app),
		newVarGetCmd(app),
		newVarDeleteCmd(app),
	)

	return cmd
}

func newVarListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				return client.Get(ctx, "/vars", nil)
			})
		},
	}
}

func newVarSetCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Set a variable; the value is parsed as JSON, falling back to a plain string",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value any
			if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
				value = args[1]
			}
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				return client.Post(ctx, "/vars", map[string]any{
					"name":  args[0],
					"value": value,
				})
			})
		},
	}
}

func newVarGetCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Get a variable's value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				return client.Get(ctx, "/vars/"+url.PathEscape(args[0]), nil)
			})
		},
	}
}

func newVarDeleteCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				return client.Delete(ctx, "/vars/"+url.PathEscape(args[0]))
			})
		},
	}
}
