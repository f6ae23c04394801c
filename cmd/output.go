package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bnema/scout-cli/internal/domain"
	"github.com/spf13/cobra"
)

func printJSON(cmd *cobra.Command, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

// remoteErr intercepts a server-side session eviction: local state is cleared
// so the next init starts clean, and the caller gets the re-init instruction.
func (a *app) remoteErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrSessionInvalid) {
		if resetErr := a.sessions.Reset(); resetErr != nil {
			a.logger.Warn("failed to clear local state", "error", resetErr)
		}
		return domain.ErrSessionInvalid
	}
	return err
}
