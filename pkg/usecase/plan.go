package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/stationops/wrench/pkg/domain/interfaces"
	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/policy"
	"github.com/stationops/wrench/pkg/domain/types"
	"github.com/stationops/wrench/pkg/service/rpc"
	"github.com/stationops/wrench/pkg/utils/async"
	"github.com/stationops/wrench/pkg/utils/errutil"
	"github.com/stationops/wrench/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

type PlanUseCase struct {
	repo    interfaces.Repository
	rpcOpts []rpc.Option
}

func NewPlanUseCase(repo interfaces.Repository, rpcOpts ...rpc.Option) *PlanUseCase {
	return &PlanUseCase{
		repo:    repo,
		rpcOpts: rpcOpts,
	}
}

// PlanInput is one planning request
type PlanInput struct {
	Query        string
	User         types.UserID
	PolicyMode   string
	Intent       string
	StationID    string
	ConnectorIDs []types.ConnectorID
	PolicyRules  *policy.Rules
	Context      map[string]any
}

// ReadLog records one exploratory (read-only) connector call
type ReadLog struct {
	Connector  string        `json:"connector"`
	Tool       string        `json:"tool"`
	OK         bool          `json:"ok"`
	StatusCode int           `json:"status_code"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// PlanResult is an ordered list of persisted proposals plus the log of
// exploratory reads made to gather context
type PlanResult struct {
	WorkflowID types.WorkflowID  `json:"workflow_id"`
	Proposals  []*model.Proposal `json:"proposals"`
	Reads      []ReadLog         `json:"reads"`
}

// PlanActions turns a free-text request into a set of candidate action
// proposals. A request that does not look ticket-worthy yields none.
// Failed exploratory reads are logged and planning continues.
func (uc *PlanUseCase) PlanActions(ctx context.Context, input *PlanInput) (*PlanResult, error) {
	result := &PlanResult{
		Proposals: []*model.Proposal{},
		Reads:     []ReadLog{},
	}

	if !looksLikeTicketRequest(input.Query) {
		return result, nil
	}

	specialization := deriveSpecialization(input.Query)
	priority := derivePriority(input.Query)
	workflowID := types.NewWorkflowID()
	policyMode := types.NormalizePolicyMode(input.PolicyMode)
	intent := strings.ToLower(strings.TrimSpace(input.Intent))
	if intent == "" {
		intent = "qa"
	}
	result.WorkflowID = workflowID

	connectors, err := uc.selectConnectors(ctx, input.ConnectorIDs)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list connectors")
	}

	supply := pickConnector(connectors, supplyKeywords)
	workforce := pickConnector(connectors, workforceKeywords)
	ticketing := pickConnector(connectors, ticketingKeywords)

	readContext, reads := uc.gatherContext(ctx, input.Query, specialization, supply, workforce)
	result.Reads = reads

	stamp := func(actionType types.ActionType, reason string) model.Metadata {
		risk := policy.RiskFor(actionType, priority)
		return model.Metadata{
			RiskLevel:        risk,
			RequiresApproval: policy.RequiresApproval(policyMode, actionType, risk, input.PolicyRules),
			PolicyMode:       policyMode,
			PolicyRules:      input.PolicyRules,
			IdempotencyKey:   idempotencyKey(workflowID, actionType, input.Query),
			Reason:           reason,
			Intent:           intent,
			AgentName:        agentName,
		}
	}

	ticketProposal := &model.Proposal{
		ID:         types.NewProposalID(),
		ActionType: types.ActionCreateTicket,
		Status:     types.ProposalStatusPending,
		Payload: model.Payload{
			WorkflowID:  workflowID,
			ConnectorID: connectorID(ticketing),
			Context:     readContext,
			CreateTicket: &model.CreateTicketPayload{
				Title:          ticketTitle(specialization),
				Description:    truncate(strings.TrimSpace(input.Query), 1000),
				Specialization: specialization,
				Priority:       priority,
				StationHint:    input.StationID,
			},
		},
		Metadata:    stamp(types.ActionCreateTicket, "Detected ticket-worthy issue from user request."),
		SourceQuery: input.Query,
		CreatedBy:   input.User,
	}

	assignProposal := &model.Proposal{
		ID:         types.NewProposalID(),
		ActionType: types.ActionAssignWorker,
		Status:     types.ProposalStatusPending,
		Payload: model.Payload{
			WorkflowID:  workflowID,
			ConnectorID: connectorID(workforce),
			Context:     readContext,
			AssignWorker: &model.AssignWorkerPayload{
				Specialization: specialization,
				StationHint:    input.StationID,
			},
		},
		Metadata:    stamp(types.ActionAssignWorker, "Assignment required for faster dispatch."),
		SourceQuery: input.Query,
		CreatedBy:   input.User,
	}

	proposals := []*model.Proposal{ticketProposal, assignProposal}

	if orderPayload := uc.maybeOrderPart(ctx, input, workflowID, supply); orderPayload != nil {
		orderPayload.Context = readContext
		proposals = append(proposals, &model.Proposal{
			ID:          types.NewProposalID(),
			ActionType:  types.ActionOrderPart,
			Status:      types.ProposalStatusPending,
			Payload:     *orderPayload,
			Metadata:    stamp(types.ActionOrderPart, "Local inventory appears insufficient for requested repair."),
			SourceQuery: input.Query,
			CreatedBy:   input.User,
		})
	}

	for _, proposal := range proposals {
		if err := proposal.Validate(); err != nil {
			return nil, goerr.Wrap(err, "planned an invalid proposal",
				goerr.V(WorkflowIDKey, workflowID))
		}
		created, err := uc.repo.Proposal().Create(ctx, proposal)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to persist proposal",
				goerr.V(WorkflowIDKey, workflowID))
		}
		result.Proposals = append(result.Proposals, created)
	}

	// Audit is best-effort: a failed append never fails planning
	entry := &model.AuditEntry{
		Actor:    input.User,
		Action:   model.AuditActionPlan,
		Workflow: workflowID,
		Detail: map[string]any{
			"query":       input.Query,
			"policy_mode": policyMode.String(),
			"proposals":   len(result.Proposals),
		},
	}
	async.Dispatch(ctx, func(ctx context.Context) error {
		return uc.repo.Audit().Append(ctx, entry)
	})

	return result, nil
}

// selectConnectors lists enabled connectors, restricted to the
// caller-selected IDs when any are given. Order is stable (by name).
func (uc *PlanUseCase) selectConnectors(ctx context.Context, ids []types.ConnectorID) ([]*model.Connector, error) {
	connectors, err := uc.repo.Connector().ListEnabled(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return connectors, nil
	}

	wanted := make(map[types.ConnectorID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	selected := make([]*model.Connector, 0, len(connectors))
	for _, connector := range connectors {
		if wanted[connector.ID] {
			selected = append(selected, connector)
		}
	}
	return selected, nil
}

// gatherContext issues the exploratory reads against the picked connectors
// concurrently. Read failures are recorded and otherwise ignored.
func (uc *PlanUseCase) gatherContext(ctx context.Context, query, specialization string, supply, workforce *model.Connector) (map[string]any, []ReadLog) {
	readContext := make(map[string]any)
	reads := make([]ReadLog, 0, 2)

	var mu sync.Mutex
	var eg errgroup.Group

	read := func(connector *model.Connector, tool string, args map[string]any, key string) func() error {
		return func() error {
			res := rpc.New(connector, uc.rpcOpts...).CallTool(ctx, tool, args)
			mu.Lock()
			defer mu.Unlock()
			reads = append(reads, ReadLog{
				Connector:  connector.Name,
				Tool:       tool,
				OK:         res.OK,
				StatusCode: res.StatusCode,
				Duration:   res.Duration,
				Error:      res.Error,
			})
			if res.OK {
				readContext[key] = rpc.CoerceToolResult(res.Data)
			} else {
				logging.From(ctx).Warn("exploratory connector read failed",
					"connector", connector.Name, "tool", tool, "error", res.Error)
			}
			return nil
		}
	}

	if supply != nil {
		eg.Go(read(supply, "search_parts", map[string]any{
			"query": query,
			"limit": 5,
		}, "parts"))
	}
	if workforce != nil {
		eg.Go(read(workforce, "search_employees", map[string]any{
			"specialization": specialization,
			"status":         "available",
		}, "employees"))
	}

	// readers never return errors; Wait just joins them
	_ = eg.Wait()

	return readContext, reads
}

// maybeOrderPart returns an order_part payload when the local parts lookup
// finds no match or stock at/below the reorder threshold.
func (uc *PlanUseCase) maybeOrderPart(ctx context.Context, input *PlanInput, workflowID types.WorkflowID, supply *model.Connector) *model.Payload {
	partName := extractPartName(input.Query)

	part, err := uc.repo.Part().FindByName(ctx, partName)
	if err != nil {
		errutil.Handle(ctx, err, "local parts lookup failed")
		part = nil
	}

	if part != nil && !part.NeedsReorder() {
		return nil
	}

	order := &model.OrderPartPayload{
		PartName:        partName,
		Quantity:        2,
		ShipToStationID: input.StationID,
	}
	if part != nil {
		order.PartName = part.Name
		order.PartID = part.ID
		if part.ReorderThreshold > 0 {
			order.Quantity = part.ReorderThreshold
		}
	}

	return &model.Payload{
		WorkflowID:  workflowID,
		ConnectorID: connectorID(supply),
		OrderPart:   order,
	}
}

func ticketTitle(specialization string) string {
	if specialization == "" {
		return "Service request"
	}
	return strings.ToUpper(specialization[:1]) + specialization[1:] + " service request"
}

func connectorID(c *model.Connector) types.ConnectorID {
	if c == nil {
		return ""
	}
	return c.ID
}

func idempotencyKey(workflowID types.WorkflowID, actionType types.ActionType, query string) string {
	return fmt.Sprintf("%s:%s:%s", workflowID, actionType, truncate(normalized(query), 120))
}
