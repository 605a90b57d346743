package usecase

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/stationops/wrench/pkg/domain/interfaces"
	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/types"
	"github.com/stationops/wrench/pkg/service/rpc"
	"github.com/stationops/wrench/pkg/utils/async"
	"github.com/stationops/wrench/pkg/utils/errutil"
	"github.com/stationops/wrench/pkg/utils/logging"
	"github.com/stationops/wrench/pkg/utils/metrics"
)

// OverrideTrigger marks a proposal that was executed by dependency forcing
// rather than by a direct caller.
const OverrideTrigger = "trigger"

// TriggerWorkflowDependency is the override value stamped on a sibling
// create_ticket proposal forced through by an assignment or order.
const TriggerWorkflowDependency = "workflow_dependency"

// ExecUseCase drives the proposal state machine. A per-proposal mutex
// serializes execution in-process; the repository's UpdateStatusIf claim
// guards the executed transition across processes.
type ExecUseCase struct {
	repo    interfaces.Repository
	rpcOpts []rpc.Option

	locksMu sync.Mutex
	locks   map[types.ProposalID]*sync.Mutex
}

func NewExecUseCase(repo interfaces.Repository, rpcOpts ...rpc.Option) *ExecUseCase {
	return &ExecUseCase{
		repo:    repo,
		rpcOpts: rpcOpts,
		locks:   map[types.ProposalID]*sync.Mutex{},
	}
}

// ExecInput carries the caller-supplied execution parameters
type ExecInput struct {
	ProposalID     types.ProposalID
	User           types.UserID
	IdempotencyKey string            // optional override
	Overrides      map[string]string // merged into proposal metadata
}

func (uc *ExecUseCase) lockFor(id types.ProposalID) *sync.Mutex {
	uc.locksMu.Lock()
	defer uc.locksMu.Unlock()
	mu, ok := uc.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		uc.locks[id] = mu
	}
	return mu
}

// Approve transitions a pending proposal to approved, stamps the approver,
// and immediately attempts execution.
func (uc *ExecUseCase) Approve(ctx context.Context, input *ExecInput) (*model.Proposal, error) {
	mu := uc.lockFor(input.ProposalID)
	mu.Lock()
	defer mu.Unlock()

	proposal, err := uc.getProposal(ctx, input.ProposalID)
	if err != nil {
		return nil, err
	}

	if proposal.Status == types.ProposalStatusPending || proposal.Status == types.ProposalStatusFailed {
		now := time.Now()
		proposal.Status = types.ProposalStatusApproved
		proposal.ApprovedBy = input.User
		proposal.ApprovedAt = &now
		proposal.Error = ""
		if proposal, err = uc.repo.Proposal().Update(ctx, proposal); err != nil {
			return nil, goerr.Wrap(err, "failed to persist approval",
				goerr.V(ProposalIDKey, input.ProposalID))
		}
	}

	uc.audit(ctx, input.User, model.AuditActionApprove, proposal)

	return uc.executeLocked(ctx, proposal, input, true)
}

// Reject terminally rejects a proposal. Reason is recorded into the
// proposal's error field; a rejected proposal can never be executed.
func (uc *ExecUseCase) Reject(ctx context.Context, input *ExecInput, reason string) (*model.Proposal, error) {
	mu := uc.lockFor(input.ProposalID)
	mu.Lock()
	defer mu.Unlock()

	proposal, err := uc.getProposal(ctx, input.ProposalID)
	if err != nil {
		return nil, err
	}

	if proposal.Status != types.ProposalStatusPending {
		return proposal, nil
	}

	if reason == "" {
		reason = "Rejected by reviewer."
	}
	proposal.Status = types.ProposalStatusRejected
	proposal.Error = reason
	proposal.ApprovedBy = input.User

	if proposal, err = uc.repo.Proposal().Update(ctx, proposal); err != nil {
		return nil, goerr.Wrap(err, "failed to persist rejection",
			goerr.V(ProposalIDKey, input.ProposalID))
	}

	uc.audit(ctx, input.User, model.AuditActionReject, proposal)

	return proposal, nil
}

// Execute runs the proposal through the execution state machine
func (uc *ExecUseCase) Execute(ctx context.Context, input *ExecInput) (*model.Proposal, error) {
	mu := uc.lockFor(input.ProposalID)
	mu.Lock()
	defer mu.Unlock()

	proposal, err := uc.getProposal(ctx, input.ProposalID)
	if err != nil {
		return nil, err
	}

	return uc.executeLocked(ctx, proposal, input, true)
}

// ListTraces returns the connector-call trace rows of a proposal
func (uc *ExecUseCase) ListTraces(ctx context.Context, id types.ProposalID) ([]*model.ExecutionTrace, error) {
	if _, err := uc.getProposal(ctx, id); err != nil {
		return nil, err
	}
	return uc.repo.Trace().ListByProposal(ctx, id)
}

func (uc *ExecUseCase) getProposal(ctx context.Context, id types.ProposalID) (*model.Proposal, error) {
	proposal, err := uc.repo.Proposal().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(ErrProposalNotFound, "failed to load proposal",
			goerr.V(ProposalIDKey, id), goerr.V("cause", err.Error()))
	}
	return proposal, nil
}

// executeLocked is the state machine body. The caller holds the proposal's
// mutex. allowForce gates one-hop dependency forcing: a forced sibling runs
// with allowForce=false so chains deeper than one hop fail instead of
// recursing.
func (uc *ExecUseCase) executeLocked(ctx context.Context, proposal *model.Proposal, input *ExecInput, allowForce bool) (*model.Proposal, error) {
	if !proposal.Status.Executable() {
		return proposal, nil
	}

	applyOverrides(proposal, input)

	// Policy gate: not an error, the proposal simply stays pending
	if proposal.Metadata.RequiresApproval && proposal.Status != types.ProposalStatusApproved {
		proposal.Error = "Approval required before execution."
		updated, err := uc.repo.Proposal().Update(ctx, proposal)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to persist approval gate",
				goerr.V(ProposalIDKey, proposal.ID))
		}
		metrics.ProposalExecutions.WithLabelValues(proposal.ActionType.String(), "approval_blocked").Inc()
		return updated, nil
	}

	if reused, err := uc.tryIdempotentReuse(ctx, proposal, input.User); err != nil {
		return nil, err
	} else if reused != nil {
		return reused, nil
	}

	// Claim the executed transition. When the swap loses, another caller
	// already executed (or is executing) this proposal; return its view.
	claimed, swapped, err := uc.repo.Proposal().UpdateStatusIf(ctx, proposal.ID,
		[]types.ProposalStatus{types.ProposalStatusPending, types.ProposalStatusApproved, types.ProposalStatusFailed},
		types.ProposalStatusExecuted)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to claim execution",
			goerr.V(ProposalIDKey, proposal.ID))
	}
	if !swapped {
		return claimed, nil
	}
	claimed.Payload = proposal.Payload
	claimed.Metadata = proposal.Metadata
	proposal = claimed

	result, execErr := uc.perform(ctx, proposal, input.User, allowForce)

	now := time.Now()
	proposal.ExecutedAt = &now
	if proposal.ApprovedAt == nil {
		proposal.ApprovedAt = &now
	}

	if execErr != nil {
		proposal.Status = types.ProposalStatusFailed
		proposal.Error = execErr.Error()
		metrics.ProposalExecutions.WithLabelValues(proposal.ActionType.String(), "failure").Inc()
		errutil.Handle(ctx, execErr, "proposal execution failed")
	} else {
		proposal.Status = types.ProposalStatusExecuted
		proposal.Error = ""
		proposal.Result = result
		metrics.ProposalExecutions.WithLabelValues(proposal.ActionType.String(), "success").Inc()
	}

	updated, err := uc.repo.Proposal().Update(ctx, proposal)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to persist execution outcome",
			goerr.V(ProposalIDKey, proposal.ID))
	}

	uc.audit(ctx, input.User, model.AuditActionExecute, updated)

	logging.From(ctx).Info("proposal executed",
		"proposal_id", updated.ID,
		"action_type", updated.ActionType,
		"status", updated.Status,
	)

	return updated, nil
}

func applyOverrides(proposal *model.Proposal, input *ExecInput) {
	if input.IdempotencyKey != "" {
		proposal.Metadata.IdempotencyKey = input.IdempotencyKey
	}
	if len(input.Overrides) == 0 {
		return
	}
	if proposal.Metadata.Overrides == nil {
		proposal.Metadata.Overrides = map[string]string{}
	}
	for k, v := range input.Overrides {
		proposal.Metadata.Overrides[k] = v
	}
}

// tryIdempotentReuse short-circuits execution when an executed proposal of
// the same action type already carries this idempotency key. Returns nil
// when no duplicate exists.
func (uc *ExecUseCase) tryIdempotentReuse(ctx context.Context, proposal *model.Proposal, user types.UserID) (*model.Proposal, error) {
	key := proposal.Metadata.IdempotencyKey
	if key == "" {
		return nil, nil
	}

	prior, err := uc.repo.Proposal().FindExecutedByIdempotencyKey(ctx, proposal.ActionType, key, proposal.ID)
	if err != nil {
		return nil, goerr.Wrap(err, "idempotency lookup failed",
			goerr.V(ProposalIDKey, proposal.ID))
	}
	if prior == nil {
		return nil, nil
	}

	now := time.Now()
	result := &model.Result{IdempotentReuse: true, ReusedProposalID: prior.ID}
	if prior.Result != nil {
		copied := *prior.Result
		copied.IdempotentReuse = true
		copied.ReusedProposalID = prior.ID
		result = &copied
	}

	proposal.Status = types.ProposalStatusExecuted
	proposal.Result = result
	proposal.Error = ""
	proposal.ExecutedAt = &now
	if proposal.ApprovedAt == nil {
		proposal.ApprovedAt = &now
		proposal.ApprovedBy = user
	}

	updated, err := uc.repo.Proposal().Update(ctx, proposal)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to persist idempotent reuse",
			goerr.V(ProposalIDKey, proposal.ID))
	}

	metrics.ProposalExecutions.WithLabelValues(proposal.ActionType.String(), "idempotent_reuse").Inc()
	logging.From(ctx).Info("idempotent reuse",
		"proposal_id", proposal.ID,
		"reused_proposal_id", prior.ID,
	)

	return updated, nil
}

// perform runs the action-specific local mutation plus the optional
// connector call. Returned errors mark the proposal failed (retryable).
func (uc *ExecUseCase) perform(ctx context.Context, proposal *model.Proposal, user types.UserID, allowForce bool) (*model.Result, error) {
	switch proposal.ActionType {
	case types.ActionCreateTicket:
		return uc.performCreateTicket(ctx, proposal)
	case types.ActionAssignWorker:
		return uc.performAssignWorker(ctx, proposal, user, allowForce)
	case types.ActionOrderPart:
		return uc.performOrderPart(ctx, proposal, user, allowForce)
	default:
		return nil, goerr.New("unsupported action type",
			goerr.V("action_type", proposal.ActionType))
	}
}

func clampSeverity(priority int) int {
	if priority < 1 {
		return 1
	}
	if priority > 4 {
		return 4
	}
	return priority
}

const defaultEstimateMinutes = 90

func (uc *ExecUseCase) performCreateTicket(ctx context.Context, proposal *model.Proposal) (*model.Result, error) {
	payload := proposal.Payload.CreateTicket

	now := time.Now()
	ticket := &model.Ticket{
		ID:                         types.NewTicketID(),
		TicketRef:                  model.NewTicketRef(now),
		Title:                      payload.Title,
		Description:                payload.Description,
		Specialization:             payload.Specialization,
		Priority:                   payload.Priority,
		Severity:                   clampSeverity(payload.Priority),
		Status:                     model.TicketStatusPending,
		CreatedBy:                  proposal.CreatedBy,
		EstimatedResolutionMinutes: defaultEstimateMinutes,
	}

	ticket, err := uc.repo.Ticket().Create(ctx, ticket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create ticket")
	}

	result := &model.Result{
		TicketID:  ticket.ID,
		TicketRef: ticket.TicketRef,
	}

	uc.callConnector(ctx, proposal, result, "create_ticket", map[string]any{
		"title":       ticket.Title,
		"description": ticket.Description,
		"priority":    ticket.Priority,
		"external_id": ticket.TicketRef,
	})

	return result, nil
}

func (uc *ExecUseCase) performAssignWorker(ctx context.Context, proposal *model.Proposal, user types.UserID, allowForce bool) (*model.Result, error) {
	payload := proposal.Payload.AssignWorker

	ticket, err := uc.resolveTicket(ctx, proposal, payload.TicketRef, user, allowForce)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, goerr.Wrap(ErrNoTicketContext, "assignment needs a ticket",
			goerr.V(WorkflowIDKey, proposal.Payload.WorkflowID))
	}

	candidates, err := uc.repo.Technician().ListAvailable(ctx, payload.Specialization)
	if err != nil {
		return nil, goerr.Wrap(err, "technician lookup failed")
	}

	result := &model.Result{
		TicketID:  ticket.ID,
		TicketRef: ticket.TicketRef,
	}

	// No local match is still a successful assignment with an empty worker;
	// the ticket stays unassigned for a later manual pick.
	employeeName := ""
	if len(candidates) > 0 {
		technician := candidates[0]

		now := time.Now()
		ticket.Status = model.TicketStatusAssigned
		ticket.AssignedTechnician = technician.ID
		ticket.AutoAssigned = true
		ticket.AssignedAt = &now
		if _, err := uc.repo.Ticket().Update(ctx, ticket); err != nil {
			return nil, goerr.Wrap(err, "failed to update ticket assignment")
		}

		technician.Status = model.TechnicianBusy
		if _, err := uc.repo.Technician().Update(ctx, technician); err != nil {
			return nil, goerr.Wrap(err, "failed to update technician availability")
		}

		result.Worker = &model.WorkerRef{ID: technician.ID, Name: technician.Name}
		employeeName = technician.Name
	}

	uc.callConnector(ctx, proposal, result, "create_assignment", map[string]any{
		"ticket_ref":     ticket.TicketRef,
		"employee_name":  employeeName,
		"specialization": payload.Specialization,
	})

	return result, nil
}

func (uc *ExecUseCase) performOrderPart(ctx context.Context, proposal *model.Proposal, user types.UserID, allowForce bool) (*model.Result, error) {
	payload := proposal.Payload.OrderPart

	// Orders tolerate a missing ticket; the workflow may be supply-only
	ticket, err := uc.resolveTicket(ctx, proposal, payload.TicketRef, user, allowForce)
	if err != nil {
		return nil, err
	}

	result := &model.Result{
		PartName: payload.PartName,
		Quantity: payload.Quantity,
	}

	if ticket != nil {
		ticket.Status = model.TicketStatusAwaitingParts
		if _, err := uc.repo.Ticket().Update(ctx, ticket); err != nil {
			return nil, goerr.Wrap(err, "failed to mark ticket awaiting parts")
		}
		result.TicketID = ticket.ID
		result.TicketRef = ticket.TicketRef
	}

	args := map[string]any{
		"part_name": payload.PartName,
		"quantity":  payload.Quantity,
	}
	if payload.ShipToStationID != "" {
		args["ship_to_station_id"] = payload.ShipToStationID
	}
	if result.TicketRef != "" {
		args["ticket_ref"] = result.TicketRef
	}
	uc.callConnector(ctx, proposal, result, "create_order", args)

	return result, nil
}

// resolveTicket finds the ticket an assignment or order acts on: explicit
// reference first, then the executed create_ticket sibling of the workflow,
// then (when allowForce) a single forced execution of a pending sibling.
func (uc *ExecUseCase) resolveTicket(ctx context.Context, proposal *model.Proposal, explicitRef string, user types.UserID, allowForce bool) (*model.Ticket, error) {
	if explicitRef != "" {
		ticket, err := uc.repo.Ticket().GetByRef(ctx, explicitRef)
		if err != nil {
			return nil, goerr.Wrap(err, "explicit ticket reference did not resolve",
				goerr.V("ticket_ref", explicitRef))
		}
		return ticket, nil
	}

	siblings, err := uc.repo.Proposal().FindByWorkflow(ctx, proposal.Payload.WorkflowID, types.ActionCreateTicket)
	if err != nil {
		return nil, goerr.Wrap(err, "workflow sibling lookup failed",
			goerr.V(WorkflowIDKey, proposal.Payload.WorkflowID))
	}

	if ticket, err := uc.ticketFromExecuted(ctx, siblings); err != nil || ticket != nil {
		return ticket, err
	}

	if !allowForce {
		return nil, nil
	}

	for _, sibling := range siblings {
		if sibling.Status != types.ProposalStatusPending {
			continue
		}

		forced, err := uc.forceSibling(ctx, sibling, user)
		if err != nil {
			return nil, goerr.Wrap(err, "forced sibling execution failed",
				goerr.V(ProposalIDKey, sibling.ID))
		}
		if forced.Status != types.ProposalStatusExecuted {
			return nil, goerr.New("forced sibling did not execute",
				goerr.V(ProposalIDKey, forced.ID), goerr.V("status", forced.Status),
				goerr.V("error", forced.Error))
		}

		return uc.ticketFromExecuted(ctx, []*model.Proposal{forced})
	}

	return nil, nil
}

func (uc *ExecUseCase) ticketFromExecuted(ctx context.Context, siblings []*model.Proposal) (*model.Ticket, error) {
	for _, sibling := range siblings {
		if sibling.Status != types.ProposalStatusExecuted || sibling.Result == nil {
			continue
		}
		if sibling.Result.TicketID == "" {
			continue
		}
		ticket, err := uc.repo.Ticket().Get(ctx, sibling.Result.TicketID)
		if err != nil {
			return nil, goerr.Wrap(err, "sibling ticket did not resolve",
				goerr.V("ticket_id", sibling.Result.TicketID))
		}
		return ticket, nil
	}
	return nil, nil
}

// forceSibling approves and executes a pending create_ticket sibling as the
// acting user. allowForce=false below keeps the forcing single-hop.
func (uc *ExecUseCase) forceSibling(ctx context.Context, sibling *model.Proposal, user types.UserID) (*model.Proposal, error) {
	mu := uc.lockFor(sibling.ID)
	mu.Lock()
	defer mu.Unlock()

	// Reload under the sibling's own lock
	sibling, err := uc.getProposal(ctx, sibling.ID)
	if err != nil {
		return nil, err
	}
	if !sibling.Status.Executable() {
		return sibling, nil
	}

	if sibling.Status == types.ProposalStatusPending {
		now := time.Now()
		sibling.Status = types.ProposalStatusApproved
		sibling.ApprovedBy = user
		sibling.ApprovedAt = &now
		if sibling, err = uc.repo.Proposal().Update(ctx, sibling); err != nil {
			return nil, goerr.Wrap(err, "failed to approve forced sibling")
		}
	}

	input := &ExecInput{
		ProposalID: sibling.ID,
		User:       user,
		Overrides:  map[string]string{OverrideTrigger: TriggerWorkflowDependency},
	}
	return uc.executeLocked(ctx, sibling, input, false)
}

// callConnector invokes the proposal's connector tool, appends one trace
// row, and folds the outcome into result.External. Connector failure never
// fails the execution: the local mutation is already committed.
func (uc *ExecUseCase) callConnector(ctx context.Context, proposal *model.Proposal, result *model.Result, tool string, args map[string]any) {
	connectorID := proposal.Payload.ConnectorID
	if connectorID == "" {
		return
	}

	connector, err := uc.repo.Connector().Get(ctx, connectorID)
	if err != nil {
		result.External = map[string]any{
			"ok":    false,
			"error": "connector not found: " + connectorID.String(),
		}
		errutil.Handle(ctx, err, "execution connector lookup failed")
		return
	}

	res := rpc.New(connector, uc.rpcOpts...).CallTool(ctx, tool, args)

	trace := &model.ExecutionTrace{
		ID:          types.NewTraceID(),
		ProposalID:  proposal.ID,
		Stage:       model.StageExecution,
		ConnectorID: connector.ID,
		ToolName:    tool,
		OK:          res.OK,
		StatusCode:  res.StatusCode,
		Duration:    res.Duration,
		Request:     args,
		Response:    res.Data,
		Error:       res.Error,
	}
	if _, err := uc.repo.Trace().Append(ctx, trace); err != nil {
		errutil.Handle(ctx, err, "failed to append execution trace")
	}

	external := map[string]any{"ok": res.OK}
	if res.OK {
		external["data"] = rpc.CoerceToolResult(res.Data)
	} else {
		external["error"] = res.Error
		external["status_code"] = res.StatusCode
		logging.From(ctx).Warn("connector call failed during execution",
			"connector", connector.Name,
			"tool", tool,
			"status", strconv.Itoa(res.StatusCode),
			"error", res.Error,
		)
	}
	result.External = external
}

func (uc *ExecUseCase) audit(ctx context.Context, actor types.UserID, action string, proposal *model.Proposal) {
	entry := &model.AuditEntry{
		Actor:    actor,
		Action:   action,
		Proposal: proposal.ID,
		Workflow: proposal.Payload.WorkflowID,
		Detail: map[string]any{
			"action_type": proposal.ActionType.String(),
			"status":      proposal.Status.String(),
		},
	}
	async.Dispatch(ctx, func(ctx context.Context) error {
		return uc.repo.Audit().Append(ctx, entry)
	})
}
