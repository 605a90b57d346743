package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Proposal() ProposalRepository
	Trace() TraceRepository
	Connector() ConnectorRepository
	Ticket() TicketRepository
	Technician() TechnicianRepository
	Part() PartRepository
	Audit() AuditRepository

	Close() error
}
