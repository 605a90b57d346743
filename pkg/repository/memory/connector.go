package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/types"
)

type connectorRepository struct {
	mu         sync.RWMutex
	connectors map[types.ConnectorID]*model.Connector
}

func newConnectorRepository() *connectorRepository {
	return &connectorRepository{
		connectors: make(map[types.ConnectorID]*model.Connector),
	}
}

func copyConnector(c *model.Connector) *model.Connector {
	copied := *c
	copied.AuthConf.AuthorizationParams = copyStringMap(c.AuthConf.AuthorizationParams)
	copied.AuthConf.TokenParams = copyStringMap(c.AuthConf.TokenParams)
	if c.AuthConf.Scopes != nil {
		copied.AuthConf.Scopes = make([]string, len(c.AuthConf.Scopes))
		copy(copied.AuthConf.Scopes, c.AuthConf.Scopes)
	}
	copied.AuthConf.TokenExpiresAt = copyTimePtr(c.AuthConf.TokenExpiresAt)
	return &copied
}

func (r *connectorRepository) Get(ctx context.Context, id types.ConnectorID) (*model.Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connector, exists := r.connectors[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "connector not found", goerr.V("id", id))
	}

	return copyConnector(connector), nil
}

func (r *connectorRepository) ListEnabled(ctx context.Context) ([]*model.Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connectors := make([]*model.Connector, 0, len(r.connectors))
	for _, connector := range r.connectors {
		if connector.Enabled {
			connectors = append(connectors, copyConnector(connector))
		}
	}

	// Stable order keeps planner connector picks reproducible
	sort.Slice(connectors, func(i, j int) bool {
		return connectors[i].Name < connectors[j].Name
	})

	return connectors, nil
}

func (r *connectorRepository) Put(ctx context.Context, connector *model.Connector) (*model.Connector, error) {
	if err := connector.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	stored := copyConnector(connector)
	if existing, exists := r.connectors[stored.ID]; exists {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	r.connectors[stored.ID] = stored
	return copyConnector(stored), nil
}
