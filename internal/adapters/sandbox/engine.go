// Package sandbox executes caller-supplied Starlark against the bridge
// bindings, giving a stateless invocation the feel of a persistent REPL.
package sandbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/bnema/scout-cli/internal/domain"
	"github.com/bnema/scout-cli/internal/ports"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const reservedPrefix = "__"

// Scripts read like REPL input, so the strict module dialect is relaxed:
// while loops, recursion, and rebinding top-level names are all allowed.
var fileOptions = &syntax.FileOptions{
	Set:               true,
	While:             true,
	TopLevelControl:   true,
	GlobalReassign:    true,
	LoadBindsGlobally: false,
	Recursion:         true,
}

// Engine is the Starlark implementation of ports.Sandbox.
type Engine struct {
	client    ports.IndexClient
	delegator ports.Delegator
	logger    *slog.Logger
}

var _ ports.Sandbox = (*Engine)(nil)

func NewEngine(client ports.IndexClient, delegator ports.Delegator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{client: client, delegator: delegator, logger: logger}
}

// Run executes code with the bridge bindings predeclared and the restored
// variables pre-bound as globals, so a script can read and rebind them the
// way consecutive REPL lines would. A script failure is contained: the
// backtrace lands in Stderr and Error, and whatever globals were bound
// before the failure are still returned so partial progress survives.
func (e *Engine) Run(ctx context.Context, code string, restored map[string]domain.Value) ports.SandboxOutcome {
	var stdout, stderr strings.Builder

	b := &bridge{ctx: ctx, client: e.client, delegator: e.delegator}
	predeclared := b.bindings()
	bridgeNames := make(map[string]struct{}, len(predeclared))
	for name := range predeclared {
		bridgeNames[name] = struct{}{}
	}

	globals := make(starlark.StringDict, len(restored))
	skipped := 0
	for name, value := range restored {
		if _, taken := bridgeNames[name]; taken {
			skipped++
			continue
		}
		if strings.HasPrefix(name, reservedPrefix) {
			skipped++
			continue
		}
		globals[name] = toStarlark(value)
	}
	if skipped > 0 {
		e.logger.Debug("skipped restored variables", "count", skipped)
	}

	thread := &starlark.Thread{
		Name: "exec",
		Print: func(_ *starlark.Thread, msg string) {
			stdout.WriteString(msg)
			stdout.WriteString("\n")
		},
	}

	outcome := ports.SandboxOutcome{Globals: map[string]domain.Value{}}

	err := e.execChunk(thread, code, predeclared, globals)
	if err != nil {
		outcome.Error = formatError(err)
		stderr.WriteString(outcome.Error)
		if !strings.HasSuffix(outcome.Error, "\n") {
			stderr.WriteString("\n")
		}
	}

	for name, value := range globals {
		if strings.HasPrefix(name, reservedPrefix) {
			continue
		}
		if _, taken := bridgeNames[name]; taken {
			continue
		}
		converted, ok := fromStarlark(value)
		if !ok {
			continue
		}
		outcome.Globals[name] = converted
	}

	outcome.Stdout = stdout.String()
	outcome.Stderr = stderr.String()
	return outcome
}

// execChunk runs code the way a REPL runs one input: the builtins are merged
// into the global environment and the chunk reads and rebinds globals in
// place, so `count = count + 1` works across invocations.
func (e *Engine) execChunk(thread *starlark.Thread, code string, builtins, globals starlark.StringDict) error {
	for name, value := range builtins {
		if _, bound := globals[name]; !bound {
			globals[name] = value
		}
	}
	f, err := fileOptions.Parse("<exec>", code, 0)
	if err != nil {
		return err
	}
	return starlark.ExecREPLChunk(f, thread, globals)
}

func formatError(err error) string {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Backtrace()
	}
	return err.Error()
}
