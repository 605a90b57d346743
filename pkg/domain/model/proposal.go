package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/stationops/wrench/pkg/domain/policy"
	"github.com/stationops/wrench/pkg/domain/types"
)

// Proposal is one candidate side-effecting action produced by the planner.
// Status transitions happen only inside the execution usecase.
type Proposal struct {
	ID         types.ProposalID     `json:"id" firestore:"id"`
	ActionType types.ActionType     `json:"action_type" firestore:"action_type"`
	Status     types.ProposalStatus `json:"status" firestore:"status"`
	Payload    Payload              `json:"payload" firestore:"payload"`
	Metadata   Metadata             `json:"metadata" firestore:"metadata"`
	Result     *Result              `json:"result,omitempty" firestore:"result,omitempty"`
	Error      string               `json:"error,omitempty" firestore:"error"`

	SourceQuery string `json:"source_query,omitempty" firestore:"source_query"`

	CreatedBy  types.UserID `json:"created_by,omitempty" firestore:"created_by"`
	ApprovedBy types.UserID `json:"approved_by,omitempty" firestore:"approved_by"`
	CreatedAt  time.Time    `json:"created_at" firestore:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" firestore:"updated_at"`
	ApprovedAt *time.Time   `json:"approved_at,omitempty" firestore:"approved_at,omitempty"`
	ExecutedAt *time.Time   `json:"executed_at,omitempty" firestore:"executed_at,omitempty"`
}

// Metadata carries the policy decision stamped at planning time plus the
// idempotency key used by the execution engine.
type Metadata struct {
	RiskLevel        types.RiskLevel   `json:"risk_level" firestore:"risk_level"`
	RequiresApproval bool              `json:"requires_approval" firestore:"requires_approval"`
	PolicyMode       types.PolicyMode  `json:"policy_mode" firestore:"policy_mode"`
	PolicyRules      *policy.Rules     `json:"policy_rules,omitempty" firestore:"policy_rules,omitempty"`
	IdempotencyKey   string            `json:"idempotency_key,omitempty" firestore:"idempotency_key"`
	Reason           string            `json:"reason,omitempty" firestore:"reason"`
	Intent           string            `json:"intent,omitempty" firestore:"intent"`
	AgentName        string            `json:"agent_name,omitempty" firestore:"agent_name"`
	Overrides        map[string]string `json:"execution_overrides,omitempty" firestore:"execution_overrides,omitempty"`
}

// Payload holds the action-specific data as a tagged variant: exactly one
// of the typed sub-structs must be set, matching the proposal's ActionType.
type Payload struct {
	WorkflowID  types.WorkflowID  `json:"workflow_id" firestore:"workflow_id"`
	ConnectorID types.ConnectorID `json:"connector_id,omitempty" firestore:"connector_id"`
	Context     map[string]any    `json:"context,omitempty" firestore:"context,omitempty"`

	CreateTicket *CreateTicketPayload `json:"create_ticket,omitempty" firestore:"create_ticket,omitempty"`
	AssignWorker *AssignWorkerPayload `json:"assign_worker,omitempty" firestore:"assign_worker,omitempty"`
	OrderPart    *OrderPartPayload    `json:"order_part,omitempty" firestore:"order_part,omitempty"`
}

// CreateTicketPayload opens a service ticket in the local store and,
// when a connector is named, mirrors it externally.
type CreateTicketPayload struct {
	Title          string `json:"title" firestore:"title"`
	Description    string `json:"description" firestore:"description"`
	Specialization string `json:"specialization" firestore:"specialization"`
	Priority       int    `json:"priority" firestore:"priority"`
	StationHint    string `json:"station_hint,omitempty" firestore:"station_hint"`
}

// AssignWorkerPayload assigns an available technician to the workflow's
// ticket. TicketRef is an optional explicit ticket reference; when empty
// the ticket is resolved through the sibling create_ticket proposal.
type AssignWorkerPayload struct {
	Specialization string `json:"specialization" firestore:"specialization"`
	StationHint    string `json:"station_hint,omitempty" firestore:"station_hint"`
	TicketRef      string `json:"ticket_ref,omitempty" firestore:"ticket_ref"`
}

// OrderPartPayload places a parts order through an external connector and
// marks the workflow's ticket as awaiting parts.
type OrderPartPayload struct {
	PartName        string       `json:"part_name" firestore:"part_name"`
	PartID          types.PartID `json:"part_id,omitempty" firestore:"part_id"`
	Quantity        int          `json:"quantity" firestore:"quantity"`
	ShipToStationID string       `json:"ship_to_station_id,omitempty" firestore:"ship_to_station_id"`
	TicketRef       string       `json:"ticket_ref,omitempty" firestore:"ticket_ref"`
}

// Validate checks that the payload carries exactly the variant matching the
// given action type and that its required fields are present.
func (p *Payload) Validate(actionType types.ActionType) error {
	if p.WorkflowID == "" {
		return goerr.New("payload workflow_id is required")
	}

	variants := 0
	if p.CreateTicket != nil {
		variants++
	}
	if p.AssignWorker != nil {
		variants++
	}
	if p.OrderPart != nil {
		variants++
	}
	if variants != 1 {
		return goerr.New("payload must carry exactly one action variant",
			goerr.V("variants", variants), goerr.V("action_type", actionType))
	}

	switch actionType {
	case types.ActionCreateTicket:
		if p.CreateTicket == nil {
			return goerr.New("create_ticket payload missing", goerr.V("action_type", actionType))
		}
		if p.CreateTicket.Title == "" {
			return goerr.New("ticket title is required")
		}
		if p.CreateTicket.Priority < 1 || p.CreateTicket.Priority > 4 {
			return goerr.New("ticket priority must be between 1 and 4",
				goerr.V("priority", p.CreateTicket.Priority))
		}

	case types.ActionAssignWorker:
		if p.AssignWorker == nil {
			return goerr.New("assign_worker payload missing", goerr.V("action_type", actionType))
		}
		if p.AssignWorker.Specialization == "" {
			return goerr.New("assignment specialization is required")
		}

	case types.ActionOrderPart:
		if p.OrderPart == nil {
			return goerr.New("order_part payload missing", goerr.V("action_type", actionType))
		}
		if p.OrderPart.PartName == "" {
			return goerr.New("part name is required")
		}
		if p.OrderPart.Quantity < 1 {
			return goerr.New("order quantity must be at least 1",
				goerr.V("quantity", p.OrderPart.Quantity))
		}

	default:
		return goerr.New("invalid action type", goerr.V("action_type", actionType))
	}

	return nil
}

// Result is the outcome of the most recent execution attempt.
type Result struct {
	TicketID  types.TicketID `json:"ticket_id,omitempty" firestore:"ticket_id"`
	TicketRef string         `json:"ticket_ref,omitempty" firestore:"ticket_ref"`
	Worker    *WorkerRef     `json:"worker,omitempty" firestore:"worker,omitempty"`
	PartName  string         `json:"part_name,omitempty" firestore:"part_name"`
	Quantity  int            `json:"quantity,omitempty" firestore:"quantity"`

	// External holds the connector response (or its error) for the call
	// made during execution. Connector failure never rolls back the local
	// mutation, so this can carry an error while the execution succeeded.
	External map[string]any `json:"external,omitempty" firestore:"external,omitempty"`

	IdempotentReuse  bool             `json:"idempotent_reuse,omitempty" firestore:"idempotent_reuse"`
	ReusedProposalID types.ProposalID `json:"reused_proposal_id,omitempty" firestore:"reused_proposal_id"`
}

// WorkerRef identifies the technician picked during an assignment
type WorkerRef struct {
	ID   types.TechnicianID `json:"id" firestore:"id"`
	Name string             `json:"name" firestore:"name"`
}

// Validate checks proposal invariants at construction time
func (p *Proposal) Validate() error {
	if err := p.ID.Validate(); err != nil {
		return err
	}
	if !p.ActionType.IsValid() {
		return goerr.New("invalid action type", goerr.V("action_type", p.ActionType))
	}
	if !p.Status.IsValid() {
		return goerr.New("invalid proposal status", goerr.V("status", p.Status))
	}
	return p.Payload.Validate(p.ActionType)
}
