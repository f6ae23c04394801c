package ports

import (
	"context"
	"time"
)

// AgentRequest is one invocation of the external reasoning process.
type AgentRequest struct {
	Prompt  string
	Timeout time.Duration

	// ExtraEnv entries (KEY=VALUE) are appended to the child environment;
	// the delegation orchestrator uses them to propagate the depth counter
	// and the nested-call flag.
	ExtraEnv []string
}

// AgentResult carries the raw standard output of a zero-exit run.
type AgentResult struct {
	Stdout string
}

// AgentRunner invokes the external reasoning process as a subprocess. A
// non-zero exit or a start failure is returned as *domain.DelegateError.
type AgentRunner interface {
	Run(ctx context.Context, req AgentRequest) (AgentResult, error)
}
