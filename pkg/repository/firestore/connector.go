package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type connectorRepository struct {
	client *firestore.Client
}

func (r *connectorRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(connectorsCollection)
}

func (r *connectorRepository) Get(ctx context.Context, id types.ConnectorID) (*model.Connector, error) {
	doc, err := r.collection().Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "connector not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get connector", goerr.V("id", id))
	}

	var connector model.Connector
	if err := doc.DataTo(&connector); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal connector", goerr.V("id", id))
	}

	return &connector, nil
}

func (r *connectorRepository) ListEnabled(ctx context.Context) ([]*model.Connector, error) {
	iter := r.collection().
		Where("enabled", "==", true).
		OrderBy("name", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var connectors []*model.Connector
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate connectors")
		}

		var connector model.Connector
		if err := doc.DataTo(&connector); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal connector")
		}
		connectors = append(connectors, &connector)
	}

	return connectors, nil
}

func (r *connectorRepository) Put(ctx context.Context, connector *model.Connector) (*model.Connector, error) {
	if err := connector.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid connector")
	}

	stored := *connector
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	if _, err := r.collection().Doc(stored.ID.String()).Set(ctx, &stored); err != nil {
		return nil, goerr.Wrap(err, "failed to put connector", goerr.V("id", stored.ID))
	}

	return &stored, nil
}
