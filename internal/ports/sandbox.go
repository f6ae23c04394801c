package ports

import (
	"context"

	"github.com/bnema/scout-cli/internal/domain"
)

// SandboxOutcome is everything a single execution produced. Error is the
// formatted failure backtrace when the caller's code raised; execution
// failures never surface as a Go error, only as data.
type SandboxOutcome struct {
	Stdout  string
	Stderr  string
	Error   string
	Globals map[string]domain.Value
}

// Sandbox executes caller-supplied code against the bridge bindings plus the
// restored variables. Restored entries whose names collide with bridge
// functions or use the reserved "__" prefix are ignored; Globals likewise
// excludes both, and contains only values that round-trip through the
// snapshot format.
type Sandbox interface {
	Run(ctx context.Context, code string, restored map[string]domain.Value) SandboxOutcome
}
