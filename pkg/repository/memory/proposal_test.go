package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/types"
	"github.com/stationops/wrench/pkg/repository/memory"
)

func newTicketProposal(workflowID types.WorkflowID, idemKey string) *model.Proposal {
	return &model.Proposal{
		ID:         types.NewProposalID(),
		ActionType: types.ActionCreateTicket,
		Status:     types.ProposalStatusPending,
		Payload: model.Payload{
			WorkflowID: workflowID,
			CreateTicket: &model.CreateTicketPayload{
				Title:    "Coolant leak in bay 2",
				Priority: 3,
			},
		},
		Metadata: model.Metadata{
			RiskLevel:      types.RiskMedium,
			PolicyMode:     types.PolicySemiAuto,
			IdempotencyKey: idemKey,
		},
		CreatedBy: "operator",
	}
}

func TestProposalCRUD(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	t.Run("create stamps timestamps and returns a copy", func(t *testing.T) {
		proposal := newTicketProposal("wf-crud", "")
		created, err := repo.Proposal().Create(ctx, proposal)
		gt.NoError(t, err).Required()
		gt.Bool(t, created.CreatedAt.IsZero()).False()
		gt.Value(t, created.CreatedAt).Equal(created.UpdatedAt)

		// mutating the returned copy must not leak into the store
		created.Payload.CreateTicket.Title = "tampered"
		stored, err := repo.Proposal().Get(ctx, created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, stored.Payload.CreateTicket.Title).Equal("Coolant leak in bay 2")
	})

	t.Run("get of a missing proposal wraps ErrNotFound", func(t *testing.T) {
		_, err := repo.Proposal().Get(ctx, types.NewProposalID())
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, memory.ErrNotFound)).True()
	})

	t.Run("update preserves the original creation time", func(t *testing.T) {
		created, err := repo.Proposal().Create(ctx, newTicketProposal("wf-crud", ""))
		gt.NoError(t, err).Required()

		created.Error = "transient connector failure"
		created.Status = types.ProposalStatusFailed
		updated, err := repo.Proposal().Update(ctx, created)
		gt.NoError(t, err).Required()
		gt.Value(t, updated.CreatedAt).Equal(created.CreatedAt)
		gt.Value(t, updated.Status).Equal(types.ProposalStatusFailed)
	})
}

func TestProposalUpdateStatusIf(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	created, err := repo.Proposal().Create(ctx, newTicketProposal("wf-cas", ""))
	gt.NoError(t, err).Required()

	t.Run("swap succeeds when the current status is in the from set", func(t *testing.T) {
		claimed, swapped, err := repo.Proposal().UpdateStatusIf(ctx, created.ID,
			[]types.ProposalStatus{types.ProposalStatusPending, types.ProposalStatusApproved},
			types.ProposalStatusExecuted)
		gt.NoError(t, err).Required()
		gt.Bool(t, swapped).True()
		gt.Value(t, claimed.Status).Equal(types.ProposalStatusExecuted)
	})

	t.Run("second swap loses and sees the winner's status", func(t *testing.T) {
		current, swapped, err := repo.Proposal().UpdateStatusIf(ctx, created.ID,
			[]types.ProposalStatus{types.ProposalStatusPending, types.ProposalStatusApproved},
			types.ProposalStatusExecuted)
		gt.NoError(t, err).Required()
		gt.Bool(t, swapped).False()
		gt.Value(t, current.Status).Equal(types.ProposalStatusExecuted)
	})

	t.Run("missing proposal is an error", func(t *testing.T) {
		_, _, err := repo.Proposal().UpdateStatusIf(ctx, types.NewProposalID(),
			[]types.ProposalStatus{types.ProposalStatusPending}, types.ProposalStatusExecuted)
		gt.Error(t, err)
	})
}

func TestProposalFindByWorkflow(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	first, err := repo.Proposal().Create(ctx, newTicketProposal("wf-find", ""))
	gt.NoError(t, err).Required()

	assign := &model.Proposal{
		ID:         types.NewProposalID(),
		ActionType: types.ActionAssignWorker,
		Status:     types.ProposalStatusPending,
		Payload: model.Payload{
			WorkflowID:   "wf-find",
			AssignWorker: &model.AssignWorkerPayload{Specialization: "engine"},
		},
	}
	_, err = repo.Proposal().Create(ctx, assign)
	gt.NoError(t, err).Required()

	_, err = repo.Proposal().Create(ctx, newTicketProposal("wf-other", ""))
	gt.NoError(t, err).Required()

	t.Run("empty action type matches the whole workflow", func(t *testing.T) {
		found, err := repo.Proposal().FindByWorkflow(ctx, "wf-find", "")
		gt.NoError(t, err).Required()
		gt.Array(t, found).Length(2)

		ids := map[types.ProposalID]bool{}
		for _, p := range found {
			ids[p.ID] = true
		}
		gt.Bool(t, ids[first.ID]).True()
		gt.Bool(t, ids[assign.ID]).True()
	})

	t.Run("action type narrows the match", func(t *testing.T) {
		found, err := repo.Proposal().FindByWorkflow(ctx, "wf-find", types.ActionCreateTicket)
		gt.NoError(t, err).Required()
		gt.Array(t, found).Length(1)
		gt.Value(t, found[0].ActionType).Equal(types.ActionCreateTicket)
	})
}

func TestFindExecutedByIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	executedAt := func(offset time.Duration) *time.Time {
		ts := time.Now().UTC().Add(offset)
		return &ts
	}

	mkExecuted := func(key string, offset time.Duration) *model.Proposal {
		p := newTicketProposal("wf-idem", key)
		created, err := repo.Proposal().Create(ctx, p)
		gt.NoError(t, err).Required()
		created.Status = types.ProposalStatusExecuted
		created.ExecutedAt = executedAt(offset)
		updated, err := repo.Proposal().Update(ctx, created)
		gt.NoError(t, err).Required()
		return updated
	}

	older := mkExecuted("ticket:wf-idem:coolant", -time.Hour)
	newer := mkExecuted("ticket:wf-idem:coolant", -time.Minute)

	t.Run("latest execution wins", func(t *testing.T) {
		found, err := repo.Proposal().FindExecutedByIdempotencyKey(ctx,
			types.ActionCreateTicket, "ticket:wf-idem:coolant", "")
		gt.NoError(t, err).Required()
		gt.Value(t, found).NotNil().Required()
		gt.Value(t, found.ID).Equal(newer.ID)
	})

	t.Run("the excluded proposal is never returned", func(t *testing.T) {
		found, err := repo.Proposal().FindExecutedByIdempotencyKey(ctx,
			types.ActionCreateTicket, "ticket:wf-idem:coolant", newer.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, found).NotNil().Required()
		gt.Value(t, found.ID).Equal(older.ID)
	})

	t.Run("pending proposals with the key do not match", func(t *testing.T) {
		_, err := repo.Proposal().Create(ctx, newTicketProposal("wf-idem", "ticket:wf-idem:pending-only"))
		gt.NoError(t, err).Required()

		found, err := repo.Proposal().FindExecutedByIdempotencyKey(ctx,
			types.ActionCreateTicket, "ticket:wf-idem:pending-only", "")
		gt.NoError(t, err).Required()
		gt.Value(t, found).Nil()
	})

	t.Run("no match returns nil without error", func(t *testing.T) {
		found, err := repo.Proposal().FindExecutedByIdempotencyKey(ctx,
			types.ActionCreateTicket, "no-such-key", "")
		gt.NoError(t, err).Required()
		gt.Value(t, found).Nil()
	})
}
