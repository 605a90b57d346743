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

type proposalRepository struct {
	mu        sync.RWMutex
	proposals map[types.ProposalID]*model.Proposal
}

func newProposalRepository() *proposalRepository {
	return &proposalRepository{
		proposals: make(map[types.ProposalID]*model.Proposal),
	}
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// copyProposal creates a deep copy of a proposal
func copyProposal(p *model.Proposal) *model.Proposal {
	copied := *p

	copied.Payload.Context = copyAnyMap(p.Payload.Context)
	if p.Payload.CreateTicket != nil {
		ct := *p.Payload.CreateTicket
		copied.Payload.CreateTicket = &ct
	}
	if p.Payload.AssignWorker != nil {
		aw := *p.Payload.AssignWorker
		copied.Payload.AssignWorker = &aw
	}
	if p.Payload.OrderPart != nil {
		op := *p.Payload.OrderPart
		copied.Payload.OrderPart = &op
	}

	copied.Metadata.Overrides = copyStringMap(p.Metadata.Overrides)
	if p.Metadata.PolicyRules != nil {
		rules := *p.Metadata.PolicyRules
		copied.Metadata.PolicyRules = &rules
	}

	if p.Result != nil {
		result := *p.Result
		result.External = copyAnyMap(p.Result.External)
		if p.Result.Worker != nil {
			worker := *p.Result.Worker
			result.Worker = &worker
		}
		copied.Result = &result
	}

	copied.ApprovedAt = copyTimePtr(p.ApprovedAt)
	copied.ExecutedAt = copyTimePtr(p.ExecutedAt)

	return &copied
}

func (r *proposalRepository) Create(ctx context.Context, proposal *model.Proposal) (*model.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := copyProposal(proposal)
	if created.ID == "" {
		created.ID = types.NewProposalID()
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	r.proposals[created.ID] = created
	return copyProposal(created), nil
}

func (r *proposalRepository) Get(ctx context.Context, id types.ProposalID) (*model.Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	proposal, exists := r.proposals[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "proposal not found", goerr.V("id", id))
	}

	return copyProposal(proposal), nil
}

func (r *proposalRepository) List(ctx context.Context) ([]*model.Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	proposals := make([]*model.Proposal, 0, len(r.proposals))
	for _, proposal := range r.proposals {
		proposals = append(proposals, copyProposal(proposal))
	}

	sort.Slice(proposals, func(i, j int) bool {
		return proposals[i].CreatedAt.After(proposals[j].CreatedAt)
	})

	return proposals, nil
}

func (r *proposalRepository) Update(ctx context.Context, proposal *model.Proposal) (*model.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.proposals[proposal.ID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "proposal not found", goerr.V("id", proposal.ID))
	}

	updated := copyProposal(proposal)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	r.proposals[updated.ID] = updated
	return copyProposal(updated), nil
}

func (r *proposalRepository) UpdateStatusIf(ctx context.Context, id types.ProposalID, from []types.ProposalStatus, to types.ProposalStatus) (*model.Proposal, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.proposals[id]
	if !exists {
		return nil, false, goerr.Wrap(ErrNotFound, "proposal not found", goerr.V("id", id))
	}

	matched := false
	for _, status := range from {
		if existing.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return copyProposal(existing), false, nil
	}

	existing.Status = to
	existing.UpdatedAt = time.Now().UTC()
	return copyProposal(existing), true, nil
}

func (r *proposalRepository) FindByWorkflow(ctx context.Context, workflowID types.WorkflowID, actionType types.ActionType) ([]*model.Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	proposals := make([]*model.Proposal, 0)
	for _, proposal := range r.proposals {
		if proposal.Payload.WorkflowID != workflowID {
			continue
		}
		if actionType != "" && proposal.ActionType != actionType {
			continue
		}
		proposals = append(proposals, copyProposal(proposal))
	}

	sort.Slice(proposals, func(i, j int) bool {
		return proposals[i].CreatedAt.Before(proposals[j].CreatedAt)
	})

	return proposals, nil
}

func (r *proposalRepository) FindExecutedByIdempotencyKey(ctx context.Context, actionType types.ActionType, key string, exclude types.ProposalID) (*model.Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *model.Proposal
	for _, proposal := range r.proposals {
		if proposal.ID == exclude {
			continue
		}
		if proposal.ActionType != actionType || proposal.Status != types.ProposalStatusExecuted {
			continue
		}
		if proposal.Metadata.IdempotencyKey != key {
			continue
		}
		if latest == nil || laterExecution(proposal, latest) {
			latest = proposal
		}
	}

	if latest == nil {
		return nil, nil
	}
	return copyProposal(latest), nil
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
