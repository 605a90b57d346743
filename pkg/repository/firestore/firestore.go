package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/stationops/wrench/pkg/domain/interfaces"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Collection names
const (
	proposalsCollection   = "proposals"
	tracesCollection      = "traces"
	connectorsCollection  = "connectors"
	ticketsCollection     = "tickets"
	techniciansCollection = "technicians"
	partsCollection       = "parts"
	auditCollection       = "audit_log"
)

type Firestore struct {
	client     *firestore.Client
	proposal   *proposalRepository
	trace      *traceRepository
	connector  *connectorRepository
	ticket     *ticketRepository
	technician *technicianRepository
	part       *partRepository
	audit      *auditRepository
}

var _ interfaces.Repository = &Firestore{}

func New(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
	}

	return &Firestore{
		client:     client,
		proposal:   &proposalRepository{client: client},
		trace:      &traceRepository{client: client},
		connector:  &connectorRepository{client: client},
		ticket:     &ticketRepository{client: client},
		technician: &technicianRepository{client: client},
		part:       &partRepository{client: client},
		audit:      &auditRepository{client: client},
	}, nil
}

func (f *Firestore) Proposal() interfaces.ProposalRepository {
	return f.proposal
}

func (f *Firestore) Trace() interfaces.TraceRepository {
	return f.trace
}

func (f *Firestore) Connector() interfaces.ConnectorRepository {
	return f.connector
}

func (f *Firestore) Ticket() interfaces.TicketRepository {
	return f.ticket
}

func (f *Firestore) Technician() interfaces.TechnicianRepository {
	return f.technician
}

func (f *Firestore) Part() interfaces.PartRepository {
	return f.part
}

func (f *Firestore) Audit() interfaces.AuditRepository {
	return f.audit
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
