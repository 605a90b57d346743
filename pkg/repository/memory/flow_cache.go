package memory

import (
	"context"
	"sync"
	"time"

	"github.com/stationops/wrench/pkg/domain/interfaces"
	"github.com/stationops/wrench/pkg/domain/model"
)

type cachedFlow struct {
	flow      *model.OAuthFlow
	expiresAt time.Time
}

// FlowCache is an in-memory TTL cache for OAuth flows. Racing writers are
// resolved last-write-wins, matching the shared-cache behavior in prod.
type FlowCache struct {
	cache sync.Map
	// now is replaceable in tests to exercise TTL expiry
	now func() time.Time
}

var _ interfaces.FlowCache = &FlowCache{}

// NewFlowCache creates a new in-memory flow cache
func NewFlowCache() *FlowCache {
	return &FlowCache{now: time.Now}
}

// SetClock replaces the cache's clock. Test use only.
func (c *FlowCache) SetClock(now func() time.Time) {
	c.now = now
}

func copyFlow(f *model.OAuthFlow) *model.OAuthFlow {
	copied := *f
	if f.Scopes != nil {
		copied.Scopes = make([]string, len(f.Scopes))
		copy(copied.Scopes, f.Scopes)
	}
	copied.TokenParams = copyStringMap(f.TokenParams)
	return &copied
}

func (c *FlowCache) Get(ctx context.Context, state string) (*model.OAuthFlow, bool) {
	val, ok := c.cache.Load(state)
	if !ok {
		return nil, false
	}

	cached := val.(*cachedFlow)
	if c.now().After(cached.expiresAt) {
		c.cache.Delete(state)
		return nil, false
	}

	return copyFlow(cached.flow), true
}

func (c *FlowCache) Set(ctx context.Context, flow *model.OAuthFlow, ttl time.Duration) {
	c.cache.Store(flow.State, &cachedFlow{
		flow:      copyFlow(flow),
		expiresAt: c.now().Add(ttl),
	})
}

func (c *FlowCache) Delete(ctx context.Context, state string) {
	c.cache.Delete(state)
}
