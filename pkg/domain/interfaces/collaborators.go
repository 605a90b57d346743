package interfaces

import (
	"context"

	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/types"
)

// TicketRepository is the local ticket store consumed by the execution engine
type TicketRepository interface {
	// Create persists a new ticket
	Create(ctx context.Context, ticket *model.Ticket) (*model.Ticket, error)

	// Get retrieves a ticket by its internal ID
	Get(ctx context.Context, id types.TicketID) (*model.Ticket, error)

	// GetByRef retrieves a ticket by its human-facing reference (TK-...)
	GetByRef(ctx context.Context, ref string) (*model.Ticket, error)

	// Update updates status/assignee fields of an existing ticket
	Update(ctx context.Context, ticket *model.Ticket) (*model.Ticket, error)
}

// TechnicianRepository is the worker directory
type TechnicianRepository interface {
	// ListAvailable retrieves available technicians with the given
	// specialization, best candidate first (rating, experience, name)
	ListAvailable(ctx context.Context, specialization string) ([]*model.Technician, error)

	// Update updates an existing technician (availability changes)
	Update(ctx context.Context, technician *model.Technician) (*model.Technician, error)

	// Put creates or replaces a technician (seeding)
	Put(ctx context.Context, technician *model.Technician) (*model.Technician, error)
}

// PartRepository is the parts directory
type PartRepository interface {
	// FindByName retrieves the first part whose name contains the given
	// fragment (case-insensitive), by name order. Returns nil when none.
	FindByName(ctx context.Context, name string) (*model.Part, error)

	// Put creates or replaces a part (seeding)
	Put(ctx context.Context, part *model.Part) (*model.Part, error)
}

// AuditRepository is the append-only audit log
type AuditRepository interface {
	// Append persists a new audit entry
	Append(ctx context.Context, entry *model.AuditEntry) error

	// ListByWorkflow retrieves entries for a workflow, oldest first
	ListByWorkflow(ctx context.Context, workflowID types.WorkflowID) ([]*model.AuditEntry, error)
}
