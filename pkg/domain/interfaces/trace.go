package interfaces

import (
	"context"

	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/types"
)

// TraceRepository defines the interface for ExecutionTrace data access.
// Traces are append-only: there is no update or delete.
type TraceRepository interface {
	// Append persists a new trace row
	Append(ctx context.Context, trace *model.ExecutionTrace) (*model.ExecutionTrace, error)

	// ListByProposal retrieves all traces of a proposal, oldest first
	ListByProposal(ctx context.Context, proposalID types.ProposalID) ([]*model.ExecutionTrace, error)
}
