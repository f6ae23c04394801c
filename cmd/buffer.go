package cmd

import (
	"context"
	"net/url"
	"strconv"

	"github.com/bnema/scout-cli/internal/ports"
	"github.com/spf13/cobra"
)

func newBufferCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buffer",
		Short: "Manage named server-side buffers",
	}

	cmd.AddCommand(
		newBufferListCmd(app),
		newBufferCreateCmd(app),
		newBufferFromFileCmd(app),
		newBufferFromSymbolCmd(app),
		newBufferInfoCmd(app),
		newBufferPeekCmd(app),
		newBufferDeleteCmd(app),
	)

	return cmd
}

func newBufferListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List buffers (metadata only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				return client.Get(ctx, "/buffers", nil)
			})
		},
	}
}

func newBufferCreateCmd(app *app) *cobra.Command {
	var content, description string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a buffer with arbitrary content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				return client.Post(ctx, "/buffers", map[string]any{
					"name":        args[0],
					"content":     content,
					"description": description,
				})
			})
		},
	}

	cmd.Flags().StringVar(&content, "content", "", "Buffer content")
	cmd.Flags().StringVar(&description, "description", "", "Short description")
	_ = cmd.MarkFlagRequired("content")

	return cmd
}

func newBufferFromFileCmd(app *app) *cobra.Command {
	var file string
	var start, end int

	cmd := &cobra.Command{
		Use:   "from-file <name>",
		Short: "Load a file range into a named buffer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				body := map[string]any{"name": args[0], "file": file}
				if cmd.Flags().Changed("start") {
					body["start"] = start
				}
				if cmd.Flags().Changed("end") {
					body["end"] = end
				}
				return client.Post(ctx, "/buffers/from-file", body)
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Source file")
	cmd.Flags().IntVar(&start, "start", 0, "First line")
	cmd.Flags().IntVar(&end, "end", 100, "Last line")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newBufferFromSymbolCmd(app *app) *cobra.Command {
	var symbol, file string

	cmd := &cobra.Command{
		Use:   "from-symbol <name>",
		Short: "Load a symbol's source into a named buffer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				return client.Post(ctx, "/buffers/from-symbol", map[string]any{
					"name":   args[0],
					"symbol": symbol,
					"file":   file,
				})
			})
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "Symbol name")
	cmd.Flags().StringVar(&file, "file", "", "File containing the symbol")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newBufferInfoCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show a buffer's metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				return client.Get(ctx, "/buffers/"+url.PathEscape(args[0]), nil)
			})
		},
	}
}

func newBufferPeekCmd(app *app) *cobra.Command {
	var start, end int

	cmd := &cobra.Command{
		Use:   "peek <name>",
		Short: "Read a slice of a buffer's content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				params := url.Values{}
				params.Set("start", strconv.Itoa(start))
				params.Set("end", strconv.Itoa(end))
				return client.Get(ctx, "/buffers/"+url.PathEscape(args[0])+"/peek", params)
			})
		},
	}

	cmd.Flags().IntVar(&start, "start", 0, "First character")
	cmd.Flags().IntVar(&end, "end", 500, "Last character")

	return cmd
}

func newBufferDeleteCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a buffer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				return client.Delete(ctx, "/buffers/"+url.PathEscape(args[0]))
			})
		},
	}
}
