// Package application coordinates one invocation: restore the namespace, run
// the caller's code, persist what survived, and shape the response.
package application

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/bnema/scout-cli/internal/domain"
	"github.com/bnema/scout-cli/internal/ports"
)

// SubcallRecorder exposes the results a delegator accumulated during one
// execution, so they can be folded into the snapshot's named-result table.
type SubcallRecorder interface {
	Recorded() []domain.SubcallResult
}

// ExecService implements the persistent-REPL illusion over per-invocation
// processes.
type ExecService struct {
	sessions  ports.SessionStore
	snapshots ports.SnapshotStore
	sandbox   ports.Sandbox
	recorder  SubcallRecorder
	logger    *slog.Logger
}

func NewExecService(
	sessions ports.SessionStore,
	snapshots ports.SnapshotStore,
	sandbox ports.Sandbox,
	recorder SubcallRecorder,
	logger *slog.Logger,
) *ExecService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ExecService{
		sessions:  sessions,
		snapshots: snapshots,
		sandbox:   sandbox,
		recorder:  recorder,
		logger:    logger,
	}
}

// Run executes code against the restored namespace. The sequence is fixed:
// load, build, execute, save, respond — a script failure still reaches the
// save step so partial progress is never lost.
func (s *ExecService) Run(ctx context.Context, code string, fullOutput bool) (ExecResponse, error) {
	session, err := s.sessions.Load()
	if err != nil {
		return ExecResponse{}, err
	}
	if !session.Active() {
		return ExecResponse{}, domain.ErrNoSession
	}

	snapshot, err := s.snapshots.LoadSnapshot()
	if err != nil {
		return ExecResponse{}, err
	}

	outcome := s.sandbox.Run(ctx, code, snapshot.Vars)

	next := snapshot
	next.Vars = outcome.Globals
	next.LastStdout = outcome.Stdout
	next.LastStderr = outcome.Stderr
	next.LastError = outcome.Error

	// Fresh delegation results replace their chunk's entry; with no
	// delegation this invocation, the table carries forward untouched.
	for _, result := range s.recorder.Recorded() {
		value, err := subcallValue(result)
		if err != nil {
			s.logger.Warn("dropping unencodable subcall result", "chunk_id", result.ChunkID, "error", err)
			continue
		}
		next.Subcalls.Set(result.ChunkID, value)
	}

	if err := s.snapshots.SaveSnapshot(next); err != nil {
		return ExecResponse{}, fmt.Errorf("persist namespace: %w", err)
	}

	if outcome.Error != "" {
		s.logger.Debug("execution failed", "error_lines", lineCount(outcome.Error))
	}
	return shapeResponse(outcome.Stdout, outcome.Stderr, outcome.Error, fullOutput), nil
}

// subcallValue converts a result to its snapshot form via its JSON shape.
func subcallValue(result domain.SubcallResult) (domain.Value, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return domain.Value{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Value{}, err
	}
	value, ok := domain.FromJSON(raw)
	if !ok {
		return domain.Value{}, fmt.Errorf("result does not fit the snapshot model")
	}
	return value, nil
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	n := 1
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}
