package cmd

import (
	"context"
	"net/url"
	"strconv"

	"github.com/bnema/scout-cli/internal/ports"
	"github.com/spf13/cobra"
)

// runQuery wraps the thin passthrough commands: resolve the session-bound
// client, run the call, print the JSON response.
func runQuery(app *app, cmd *cobra.Command, call func(context.Context, ports.IndexClient) (map[string]any, error)) error {
	client, err := app.sessions.Client()
	if err != nil {
		return err
	}
	result, err := call(cmd.Context(), client)
	if err != nil {
		return app.remoteErr(err)
	}
	return printJSON(cmd, result)
}

func newQueryCmds(app *app) []*cobra.Command {
	return []*cobra.Command{
		newSearchCmd(app),
		newSymbolsCmd(app),
		newImplCmd(app),
		newCallersCmd(app),
		newTestsCmd(app),
		newPeekCmd(app),
		newGrepCmd(app),
		newChunksCmd(app),
		newSemanticChunksCmd(app),
		newHistoryCmd(app),
		newSubcallResultsCmd(app),
		newClearSubcallResultsCmd(app),
	}
}

func newSearchCmd(app *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search symbols by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				params := url.Values{}
				params.Set("q", args[0])
				params.Set("limit", strconv.Itoa(limit))
				return client.Get(ctx, "/symbols/search", params)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum results")

	return cmd
}

func newSymbolsCmd(app *app) *cobra.Command {
	var file, kind string
	var limit int

	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "List symbols, optionally filtered by file or kind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				params := url.Values{}
				params.Set("limit", strconv.Itoa(limit))
				if file != "" {
					params.Set("file", file)
				}
				if kind != "" {
					params.Set("kind", kind)
				}
				return client.Get(ctx, "/symbols", params)
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Restrict to one file")
	cmd.Flags().StringVar(&kind, "kind", "", "Restrict to one symbol kind")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum results")

	return cmd
}

func newImplCmd(app *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "impl <symbol>",
		Short: "Get the full source of a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				params := url.Values{}
				params.Set("symbol", args[0])
				params.Set("file", file)
				return client.Get(ctx, "/symbols/implementation", params)
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "File containing the symbol")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newCallersCmd(app *app) *cobra.Command {
	var file string
	var limit int

	cmd := &cobra.Command{
		Use:   "callers <symbol>",
		Short: "Find call sites for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				params := url.Values{}
				params.Set("symbol", args[0])
				params.Set("file", file)
				params.Set("limit", strconv.Itoa(limit))
				return client.Get(ctx, "/symbols/callers", params)
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "File containing the symbol")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum results")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newTestsCmd(app *app) *cobra.Command {
	var file string
	var limit int

	cmd := &cobra.Command{
		Use:   "tests <symbol>",
		Short: "Find tests referencing a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				params := url.Values{}
				params.Set("symbol", args[0])
				params.Set("file", file)
				params.Set("limit", strconv.Itoa(limit))
				return client.Get(ctx, "/symbols/tests", params)
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "File containing the symbol")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum results")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newPeekCmd(app *app) *cobra.Command {
	var start, end int

	cmd := &cobra.Command{
		Use:   "peek <file>",
		Short: "Read a line range from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				params := url.Values{}
				params.Set("file", args[0])
				params.Set("start", strconv.Itoa(start))
				params.Set("end", strconv.Itoa(end))
				return client.Get(ctx, "/peek", params)
			})
		},
	}

	cmd.Flags().IntVar(&start, "start", 0, "First line")
	cmd.Flags().IntVar(&end, "end", 50, "Last line")

	return cmd
}

func newGrepCmd(app *app) *cobra.Command {
	var maxMatches, contextLines int
	var scope string

	cmd := &cobra.Command{
		Use:   "grep <pattern>",
		Short: "Regex search across indexed files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				params := url.Values{}
				params.Set("pattern", args[0])
				params.Set("max_matches", strconv.Itoa(maxMatches))
				params.Set("scope", scope)
				if contextLines > 0 {
					params.Set("context_lines", strconv.Itoa(contextLines))
				}
				return client.Get(ctx, "/grep", params)
			})
		},
	}

	cmd.Flags().IntVar(&maxMatches, "max-matches", 50, "Maximum matches")
	cmd.Flags().IntVar(&contextLines, "context-lines", 0, "Context lines around each match")
	cmd.Flags().StringVar(&scope, "scope", "all", "Search scope")

	return cmd
}

func newChunksCmd(app *app) *cobra.Command {
	var size, overlap int

	cmd := &cobra.Command{
		Use:   "chunks <file>",
		Short: "Get fixed-size chunk indices for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				params := url.Values{}
				params.Set("file", args[0])
				if size > 0 {
					params.Set("size", strconv.Itoa(size))
				}
				if overlap > 0 {
					params.Set("overlap", strconv.Itoa(overlap))
				}
				return client.Get(ctx, "/chunk_indices", params)
			})
		},
	}

	cmd.Flags().IntVar(&size, "size", 0, "Chunk size in lines")
	cmd.Flags().IntVar(&overlap, "overlap", 0, "Overlap between chunks in lines")

	return cmd
}

func newSemanticChunksCmd(app *app) *cobra.Command {
	var maxChunkBytes int

	cmd := &cobra.Command{
		Use:   "semantic-chunks <file>",
		Short: "Get symbol-aligned chunks for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				params := url.Values{}
				params.Set("file", args[0])
				if maxChunkBytes > 0 {
					params.Set("max_chunk_bytes", strconv.Itoa(maxChunkBytes))
				}
				return client.Get(ctx, "/semantic_chunks", params)
			})
		},
	}

	cmd.Flags().IntVar(&maxChunkBytes, "max-chunk-bytes", 0, "Upper bound per chunk")

	return cmd
}

func newHistoryCmd(app *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the session's query history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				params := url.Values{}
				if limit > 0 {
					params.Set("limit", strconv.Itoa(limit))
				}
				return client.Get(ctx, "/history", params)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum entries")

	cmd.AddCommand(newHistoryCompactCmd(app))

	return cmd
}

func newHistoryCompactCmd(app *app) *cobra.Command {
	var keepRecent int

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Compact the query history, keeping the most recent entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				// The server reads keep_recent from the query string, not
				// the body.
				path := "/history/compact"
				if keepRecent > 0 {
					params := url.Values{}
					params.Set("keep_recent", strconv.Itoa(keepRecent))
					path += "?" + params.Encode()
				}
				return client.Post(ctx, path, map[string]any{})
			})
		},
	}

	cmd.Flags().IntVar(&keepRecent, "keep-recent", 0, "Entries to keep uncompacted")

	return cmd
}

func newSubcallResultsCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "subcall-results",
		Short: "List stored delegation results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				return client.Get(ctx, "/subcall_results", nil)
			})
		},
	}
}

func newClearSubcallResultsCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-subcall-results",
		Short: "Delete all stored delegation results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(app, cmd, func(ctx context.Context, client ports.IndexClient) (map[string]any, error) {
				return client.Delete(ctx, "/subcall_results")
			})
		},
	}
}
