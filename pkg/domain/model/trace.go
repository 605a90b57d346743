package model

import (
	"time"

	"github.com/stationops/wrench/pkg/domain/types"
)

// ExecutionTrace is an append-only record of one outbound connector call
// made while executing a proposal. Never mutated after insert.
type ExecutionTrace struct {
	ID          types.TraceID     `json:"id" firestore:"id"`
	ProposalID  types.ProposalID  `json:"proposal_id" firestore:"proposal_id"`
	Stage       string            `json:"stage" firestore:"stage"`
	ConnectorID types.ConnectorID `json:"connector_id,omitempty" firestore:"connector_id"`
	ToolName    string            `json:"tool_name" firestore:"tool_name"`
	OK          bool              `json:"ok" firestore:"ok"`
	StatusCode  int               `json:"status_code" firestore:"status_code"`
	Duration    time.Duration     `json:"duration" firestore:"duration"`
	Request     map[string]any    `json:"request,omitempty" firestore:"request,omitempty"`
	Response    map[string]any    `json:"response,omitempty" firestore:"response,omitempty"`
	Error       string            `json:"error,omitempty" firestore:"error"`
	CreatedAt   time.Time         `json:"created_at" firestore:"created_at"`
}

// StageExecution is the only trace stage today: traces are keyed to a
// proposal, and planner reads happen before any proposal exists.
const StageExecution = "execution"
