package types

import (
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// ProposalID identifies one agent action proposal
type ProposalID string

func NewProposalID() ProposalID {
	return ProposalID(uuid.NewString())
}

func (id ProposalID) String() string {
	return string(id)
}

func (id ProposalID) Validate() error {
	if id == "" {
		return goerr.New("proposal ID is empty")
	}
	return nil
}

// WorkflowID groups proposals spawned from one planning call
type WorkflowID string

func NewWorkflowID() WorkflowID {
	return WorkflowID(uuid.NewString())
}

func (id WorkflowID) String() string {
	return string(id)
}

// ConnectorID identifies a configured external connector
type ConnectorID string

func NewConnectorID() ConnectorID {
	return ConnectorID(uuid.NewString())
}

func (id ConnectorID) String() string {
	return string(id)
}

// TraceID identifies one execution trace row
type TraceID string

func NewTraceID() TraceID {
	return TraceID(uuid.NewString())
}

func (id TraceID) String() string {
	return string(id)
}

// TicketID is the internal identifier of a ticket row
type TicketID string

func NewTicketID() TicketID {
	return TicketID(uuid.NewString())
}

func (id TicketID) String() string {
	return string(id)
}

// TechnicianID identifies a technician in the worker directory
type TechnicianID string

func (id TechnicianID) String() string {
	return string(id)
}

// PartID identifies a part in the parts directory
type PartID string

func (id PartID) String() string {
	return string(id)
}

// UserID identifies the acting user (operator or reviewer)
type UserID string

func (id UserID) String() string {
	return string(id)
}
