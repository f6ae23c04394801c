package domain

// UnknownChunkID is used when neither the caller nor the sub-agent response
// names a chunk.
const UnknownChunkID = "unknown"

// Finding is one unit of evidence returned by a delegated sub-query.
type Finding struct {
	Point      string `json:"point"`
	Evidence   string `json:"evidence"`
	Confidence string `json:"confidence"`
}

// SubcallResult is the structured outcome of one delegation. It is pushed to
// the server's subcall-result collection and mirrored into the local
// named-result table.
type SubcallResult struct {
	ChunkID          string    `json:"chunk_id"`
	Query            string    `json:"query"`
	Findings         []Finding `json:"findings"`
	SuggestedQueries []string  `json:"suggested_queries"`
	AnswerIfComplete string    `json:"answer_if_complete,omitempty"`
	Depth            int       `json:"depth"`
	Error            string    `json:"error,omitempty"`

	// CacheErr records a failed best-effort buffer write. The buffer is a
	// convenience cache, so this never propagates as a call failure.
	CacheErr error `json:"-"`
}

// DelegationContext bounds a chain of recursive delegations. It is hydrated
// from the process environment at startup and threaded explicitly through
// every delegate call; it is never persisted.
type DelegationContext struct {
	Depth   int
	Ceiling int
	Nested  bool
}

// AtCeiling reports whether another delegation hop is permitted.
func (d DelegationContext) AtCeiling() bool {
	return d.Depth >= d.Ceiling
}

// Child returns the context the spawned sub-agent runs under.
func (d DelegationContext) Child() DelegationContext {
	return DelegationContext{Depth: d.Depth + 1, Ceiling: d.Ceiling, Nested: true}
}
