package ports

import (
	"context"

	"github.com/bnema/scout-cli/internal/domain"
)

// Delegator hands one sub-query to the external reasoning process and
// returns the parsed (or synthesized) result. The result is also recorded
// remotely and in the local named-result table as a side effect.
type Delegator interface {
	Delegate(ctx context.Context, query, contextText, chunkID string) (domain.SubcallResult, error)
}
