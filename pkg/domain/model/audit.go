package model

import (
	"time"

	"github.com/stationops/wrench/pkg/domain/types"
)

// AuditEntry is one append-only audit log record
type AuditEntry struct {
	ID        string           `json:"id" firestore:"id"`
	Actor     types.UserID     `json:"actor" firestore:"actor"`
	Action    string           `json:"action" firestore:"action"`
	Proposal  types.ProposalID `json:"proposal_id,omitempty" firestore:"proposal_id"`
	Workflow  types.WorkflowID `json:"workflow_id,omitempty" firestore:"workflow_id"`
	Detail    map[string]any   `json:"detail,omitempty" firestore:"detail,omitempty"`
	CreatedAt time.Time        `json:"created_at" firestore:"created_at"`
}

// Audit actions
const (
	AuditActionPlan    = "plan"
	AuditActionApprove = "approve"
	AuditActionReject  = "reject"
	AuditActionExecute = "execute"
	AuditActionOAuth   = "oauth"
)
