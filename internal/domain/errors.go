package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSession means no session descriptor exists locally; the user
	// must run `scout init` before remote-dependent commands.
	ErrNoSession = errors.New("no active session (run: scout init)")

	// ErrSessionInvalid means the server no longer recognizes the session
	// (evicted or expired); local state should be cleared and recreated.
	ErrSessionInvalid = errors.New("session invalid on server (run: scout init)")

	// ErrServerUnreachable wraps connection-level transport failures.
	ErrServerUnreachable = errors.New("cannot connect to scout-server (start it with: scout-server serve)")
)

// RemoteError is a non-2xx response from the indexing server.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

// DelegateError is a fatal failure of a delegated sub-query: the external
// reasoning process exited non-zero, or could not be started at all.
type DelegateError struct {
	Reason string
	Stderr string
}

func (e *DelegateError) Error() string {
	if e.Stderr == "" {
		return "delegate failed: " + e.Reason
	}
	return fmt.Sprintf("delegate failed: %s: %s", e.Reason, e.Stderr)
}

// AgentPromptNotFoundError means the sub-agent instruction document is
// missing from every candidate location.
type AgentPromptNotFoundError struct {
	Searched []string
}

func (e *AgentPromptNotFoundError) Error() string {
	msg := "sub-agent instruction document not found; searched:"
	for _, p := range e.Searched {
		msg += "\n  " + p
	}
	return msg
}
