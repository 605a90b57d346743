package memory

import (
	"errors"

	"github.com/stationops/wrench/pkg/domain/interfaces"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Memory is the in-memory repository backend used for development and tests
type Memory struct {
	proposal   *proposalRepository
	trace      *traceRepository
	connector  *connectorRepository
	ticket     *ticketRepository
	technician *technicianRepository
	part       *partRepository
	audit      *auditRepository
}

var _ interfaces.Repository = &Memory{}

// New creates a new in-memory repository
func New() *Memory {
	return &Memory{
		proposal:   newProposalRepository(),
		trace:      newTraceRepository(),
		connector:  newConnectorRepository(),
		ticket:     newTicketRepository(),
		technician: newTechnicianRepository(),
		part:       newPartRepository(),
		audit:      newAuditRepository(),
	}
}

func (m *Memory) Proposal() interfaces.ProposalRepository {
	return m.proposal
}

func (m *Memory) Trace() interfaces.TraceRepository {
	return m.trace
}

func (m *Memory) Connector() interfaces.ConnectorRepository {
	return m.connector
}

func (m *Memory) Ticket() interfaces.TicketRepository {
	return m.ticket
}

func (m *Memory) Technician() interfaces.TechnicianRepository {
	return m.technician
}

func (m *Memory) Part() interfaces.PartRepository {
	return m.part
}

func (m *Memory) Audit() interfaces.AuditRepository {
	return m.audit
}

func (m *Memory) Close() error {
	return nil
}
