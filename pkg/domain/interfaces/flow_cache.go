package interfaces

import (
	"context"
	"time"

	"github.com/stationops/wrench/pkg/domain/model"
)

// FlowCache is a TTL-bounded key/value store for in-flight OAuth flows,
// keyed by the flow's state token. It is a cache, not a record of truth:
// an evicted entry just forces the user to restart authorization.
type FlowCache interface {
	// Get retrieves a flow by state token; ok is false when absent or expired
	Get(ctx context.Context, state string) (flow *model.OAuthFlow, ok bool)

	// Set stores a flow under its state token with the given TTL,
	// replacing any previous entry
	Set(ctx context.Context, flow *model.OAuthFlow, ttl time.Duration)

	// Delete evicts a flow
	Delete(ctx context.Context, state string)
}
