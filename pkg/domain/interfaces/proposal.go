package interfaces

import (
	"context"

	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/types"
)

// ProposalRepository defines the interface for ActionProposal data access
type ProposalRepository interface {
	// Create persists a new proposal
	Create(ctx context.Context, proposal *model.Proposal) (*model.Proposal, error)

	// Get retrieves a proposal by ID
	Get(ctx context.Context, id types.ProposalID) (*model.Proposal, error)

	// List retrieves all proposals, newest first
	List(ctx context.Context) ([]*model.Proposal, error)

	// Update updates an existing proposal
	Update(ctx context.Context, proposal *model.Proposal) (*model.Proposal, error)

	// UpdateStatusIf atomically transitions the proposal's status when its
	// current status is one of the given values. Returns the proposal after
	// the transition and whether the swap happened. Used to claim the
	// execute transition so concurrent calls cannot double-execute.
	UpdateStatusIf(ctx context.Context, id types.ProposalID, from []types.ProposalStatus, to types.ProposalStatus) (*model.Proposal, bool, error)

	// FindByWorkflow retrieves proposals of the given workflow, oldest
	// first. actionType filters when non-empty.
	FindByWorkflow(ctx context.Context, workflowID types.WorkflowID, actionType types.ActionType) ([]*model.Proposal, error)

	// FindExecutedByIdempotencyKey returns the most recently executed
	// proposal of the given action type carrying the idempotency key,
	// excluding the given proposal ID. Returns nil when none exists.
	FindExecutedByIdempotencyKey(ctx context.Context, actionType types.ActionType, key string, exclude types.ProposalID) (*model.Proposal, error)
}
