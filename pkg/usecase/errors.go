package usecase

import "errors"

// Sentinel errors for the usecase layer
var (
	ErrProposalNotFound  = errors.New("proposal not found")
	ErrConnectorNotFound = errors.New("connector not found")

	// ErrNoTicketContext is raised when an assignment cannot resolve a
	// ticket in its workflow, including through one-hop forcing
	ErrNoTicketContext = errors.New("no executable ticket context found for assignment")
)

// Context keys for error values
const (
	ProposalIDKey  = "proposal_id"
	ConnectorIDKey = "connector_id"
	WorkflowIDKey  = "workflow_id"
)
