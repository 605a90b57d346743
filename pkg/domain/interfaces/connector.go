package interfaces

import (
	"context"

	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/types"
)

// ConnectorRepository defines the interface for ConnectorConfig data
// access. Connectors are managed by an external admin surface; this core
// creates none, and updates only to persist OAuth tokens.
type ConnectorRepository interface {
	// Get retrieves a connector by ID
	Get(ctx context.Context, id types.ConnectorID) (*model.Connector, error)

	// ListEnabled retrieves all enabled connectors, sorted by name
	ListEnabled(ctx context.Context) ([]*model.Connector, error)

	// Put creates or replaces a connector (seeding and token persistence)
	Put(ctx context.Context, connector *model.Connector) (*model.Connector, error)
}
