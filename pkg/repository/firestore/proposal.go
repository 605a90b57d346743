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

type proposalRepository struct {
	client *firestore.Client
}

func (r *proposalRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(proposalsCollection)
}

func (r *proposalRepository) Create(ctx context.Context, proposal *model.Proposal) (*model.Proposal, error) {
	created := *proposal
	if created.ID == "" {
		created.ID = types.NewProposalID()
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	if _, err := r.collection().Doc(created.ID.String()).Set(ctx, &created); err != nil {
		return nil, goerr.Wrap(err, "failed to create proposal", goerr.V("id", created.ID))
	}

	return &created, nil
}

func (r *proposalRepository) Get(ctx context.Context, id types.ProposalID) (*model.Proposal, error) {
	doc, err := r.collection().Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "proposal not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get proposal", goerr.V("id", id))
	}

	var proposal model.Proposal
	if err := doc.DataTo(&proposal); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal proposal", goerr.V("id", id))
	}

	return &proposal, nil
}

func (r *proposalRepository) List(ctx context.Context) ([]*model.Proposal, error) {
	iter := r.collection().OrderBy("created_at", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var proposals []*model.Proposal
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate proposals")
		}

		var proposal model.Proposal
		if err := doc.DataTo(&proposal); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal proposal")
		}
		proposals = append(proposals, &proposal)
	}

	return proposals, nil
}

func (r *proposalRepository) Update(ctx context.Context, proposal *model.Proposal) (*model.Proposal, error) {
	docRef := r.collection().Doc(proposal.ID.String())

	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "proposal not found", goerr.V("id", proposal.ID))
		}
		return nil, goerr.Wrap(err, "failed to get proposal", goerr.V("id", proposal.ID))
	}

	var existing model.Proposal
	if err := doc.DataTo(&existing); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal proposal", goerr.V("id", proposal.ID))
	}

	updated := *proposal
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	if _, err := docRef.Set(ctx, &updated); err != nil {
		return nil, goerr.Wrap(err, "failed to update proposal", goerr.V("id", proposal.ID))
	}

	return &updated, nil
}

// UpdateStatusIf swaps the proposal's status inside a transaction so that
// concurrent executors cannot both claim the transition.
func (r *proposalRepository) UpdateStatusIf(ctx context.Context, id types.ProposalID, from []types.ProposalStatus, to types.ProposalStatus) (*model.Proposal, bool, error) {
	docRef := r.collection().Doc(id.String())

	var result model.Proposal
	var swapped bool

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(ErrNotFound, "proposal not found", goerr.V("id", id))
			}
			return goerr.Wrap(err, "failed to get proposal", goerr.V("id", id))
		}

		if err := doc.DataTo(&result); err != nil {
			return goerr.Wrap(err, "failed to unmarshal proposal", goerr.V("id", id))
		}

		swapped = false
		for _, s := range from {
			if result.Status == s {
				swapped = true
				break
			}
		}
		if !swapped {
			return nil
		}

		result.Status = to
		result.UpdatedAt = time.Now().UTC()
		return tx.Set(docRef, &result)
	})
	if err != nil {
		return nil, false, err
	}

	return &result, swapped, nil
}

func (r *proposalRepository) FindByWorkflow(ctx context.Context, workflowID types.WorkflowID, actionType types.ActionType) ([]*model.Proposal, error) {
	query := r.collection().
		Where("payload.workflow_id", "==", workflowID.String()).
		OrderBy("created_at", firestore.Asc)
	if actionType != "" {
		query = r.collection().
			Where("payload.workflow_id", "==", workflowID.String()).
			Where("action_type", "==", actionType.String()).
			OrderBy("created_at", firestore.Asc)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var proposals []*model.Proposal
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate workflow proposals",
				goerr.V("workflow_id", workflowID))
		}

		var proposal model.Proposal
		if err := doc.DataTo(&proposal); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal proposal")
		}
		proposals = append(proposals, &proposal)
	}

	return proposals, nil
}

func (r *proposalRepository) FindExecutedByIdempotencyKey(ctx context.Context, actionType types.ActionType, key string, exclude types.ProposalID) (*model.Proposal, error) {
	iter := r.collection().
		Where("action_type", "==", actionType.String()).
		Where("metadata.idempotency_key", "==", key).
		Where("status", "==", types.ProposalStatusExecuted.String()).
		Documents(ctx)
	defer iter.Stop()

	var latest *model.Proposal
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate executed proposals",
				goerr.V("idempotency_key", key))
		}

		var proposal model.Proposal
		if err := doc.DataTo(&proposal); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal proposal")
		}
		if proposal.ID == exclude {
			continue
		}
		if latest == nil || laterExecution(&proposal, latest) {
			p := proposal
			latest = &p
		}
	}

	return latest, nil
}

func laterExecution(a, b *model.Proposal) bool {
	switch {
	case a.ExecutedAt == nil:
		return false
	case b.ExecutedAt == nil:
		return true
	default:
		return a.ExecutedAt.After(*b.ExecutedAt)
	}
}
