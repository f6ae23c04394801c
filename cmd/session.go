package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newInitCmd(app *app) *cobra.Command {
	var cwd, host string
	var port int

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create (or reuse) a server session for the current project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			project := cwd
			if project == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("resolve working directory: %w", err)
				}
				project = wd
			}
			project, err := filepath.Abs(project)
			if err != nil {
				return fmt.Errorf("resolve project path: %w", err)
			}

			report, err := app.sessions.Init(cmd.Context(), project, host, port)
			if err != nil {
				return err
			}

			verb := "created"
			if report.Reused {
				verb = "reused"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session %s: %s\n", verb, report.SessionID)
			fmt.Fprintf(out, "Project: %s\n", report.Project)
			fmt.Fprintf(out, "Server: %v (%v projects, %v sessions)\n",
				healthField(report.Health, "status", "ok"),
				healthField(report.Health, "projects", 0),
				healthField(report.Health, "active_sessions", 0))
			return nil
		},
	}

	cmd.Flags().StringVar(&cwd, "cwd", "", "Project directory (default: current directory)")
	cmd.Flags().StringVar(&host, "host", app.cfg.Host, "Server host")
	cmd.Flags().IntVar(&port, "port", app.cfg.Port, "Server port")

	return cmd
}

func healthField(health map[string]any, key string, fallback any) any {
	if v, ok := health[key]; ok {
		return v
	}
	return fallback
}

func newStatusCmd(app *app) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server health and session details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := app.sessions.Status(cmd.Context(), host, port)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}

	cmd.Flags().StringVar(&host, "host", app.cfg.Host, "Server host when no session exists")
	cmd.Flags().IntVar(&port, "port", app.cfg.Port, "Server port when no session exists")

	return cmd
}

func newCleanupCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete the server session and clear local state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, existed, err := app.sessions.Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			if !existed {
				fmt.Fprintln(cmd.OutOrStdout(), "No active session.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s deleted.\n", id)
			return nil
		},
	}
}
