package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/types"
	"google.golang.org/api/iterator"
)

type traceRepository struct {
	client *firestore.Client
}

func (r *traceRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(tracesCollection)
}

func (r *traceRepository) Append(ctx context.Context, trace *model.ExecutionTrace) (*model.ExecutionTrace, error) {
	created := *trace
	if created.ID == "" {
		created.ID = types.NewTraceID()
	}
	created.CreatedAt = time.Now().UTC()

	if _, err := r.collection().Doc(created.ID.String()).Set(ctx, &created); err != nil {
		return nil, goerr.Wrap(err, "failed to append trace",
			goerr.V("proposal_id", created.ProposalID))
	}

	return &created, nil
}

func (r *traceRepository) ListByProposal(ctx context.Context, proposalID types.ProposalID) ([]*model.ExecutionTrace, error) {
	iter := r.collection().
		Where("proposal_id", "==", proposalID.String()).
		OrderBy("created_at", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var traces []*model.ExecutionTrace
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate traces",
				goerr.V("proposal_id", proposalID))
		}

		var trace model.ExecutionTrace
		if err := doc.DataTo(&trace); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal trace")
		}
		traces = append(traces, &trace)
	}

	return traces, nil
}
