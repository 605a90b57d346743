package firestore

import (
	"context"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ticketRepository struct {
	client *firestore.Client
}

func (r *ticketRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(ticketsCollection)
}

func (r *ticketRepository) Create(ctx context.Context, ticket *model.Ticket) (*model.Ticket, error) {
	created := *ticket
	if created.ID == "" {
		created.ID = types.NewTicketID()
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	if _, err := r.collection().Doc(created.ID.String()).Set(ctx, &created); err != nil {
		return nil, goerr.Wrap(err, "failed to create ticket", goerr.V("id", created.ID))
	}

	return &created, nil
}

func (r *ticketRepository) Get(ctx context.Context, id types.TicketID) (*model.Ticket, error) {
	doc, err := r.collection().Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "ticket not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get ticket", goerr.V("id", id))
	}

	var ticket model.Ticket
	if err := doc.DataTo(&ticket); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal ticket", goerr.V("id", id))
	}

	return &ticket, nil
}

func (r *ticketRepository) GetByRef(ctx context.Context, ref string) (*model.Ticket, error) {
	iter := r.collection().Where("ticket_ref", "==", ref).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, goerr.Wrap(ErrNotFound, "ticket not found", goerr.V("ref", ref))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query ticket by ref", goerr.V("ref", ref))
	}

	var ticket model.Ticket
	if err := doc.DataTo(&ticket); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal ticket", goerr.V("ref", ref))
	}

	return &ticket, nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *model.Ticket) (*model.Ticket, error) {
	docRef := r.collection().Doc(ticket.ID.String())

	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "ticket not found", goerr.V("id", ticket.ID))
		}
		return nil, goerr.Wrap(err, "failed to get ticket", goerr.V("id", ticket.ID))
	}

	var existing model.Ticket
	if err := doc.DataTo(&existing); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal ticket", goerr.V("id", ticket.ID))
	}

	updated := *ticket
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	if _, err := docRef.Set(ctx, &updated); err != nil {
		return nil, goerr.Wrap(err, "failed to update ticket", goerr.V("id", ticket.ID))
	}

	return &updated, nil
}

type technicianRepository struct {
	client *firestore.Client
}

func (r *technicianRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(techniciansCollection)
}

func (r *technicianRepository) ListAvailable(ctx context.Context, specialization string) ([]*model.Technician, error) {
	iter := r.collection().
		Where("status", "==", string(model.TechnicianAvailable)).
		Where("specialization", "==", specialization).
		Documents(ctx)
	defer iter.Stop()

	var technicians []*model.Technician
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate technicians",
				goerr.V("specialization", specialization))
		}

		var technician model.Technician
		if err := doc.DataTo(&technician); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal technician")
		}
		technicians = append(technicians, &technician)
	}

	sort.Slice(technicians, func(i, j int) bool {
		return technicians[i].Better(technicians[j])
	})

	return technicians, nil
}

func (r *technicianRepository) Update(ctx context.Context, technician *model.Technician) (*model.Technician, error) {
	docRef := r.collection().Doc(technician.ID.String())

	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "technician not found", goerr.V("id", technician.ID))
		}
		return nil, goerr.Wrap(err, "failed to get technician", goerr.V("id", technician.ID))
	}

	var existing model.Technician
	if err := doc.DataTo(&existing); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal technician", goerr.V("id", technician.ID))
	}

	updated := *technician
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	if _, err := docRef.Set(ctx, &updated); err != nil {
		return nil, goerr.Wrap(err, "failed to update technician", goerr.V("id", technician.ID))
	}

	return &updated, nil
}

func (r *technicianRepository) Put(ctx context.Context, technician *model.Technician) (*model.Technician, error) {
	stored := *technician
	if stored.ID == "" {
		stored.ID = types.TechnicianID(uuid.NewString())
	}
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	if _, err := r.collection().Doc(stored.ID.String()).Set(ctx, &stored); err != nil {
		return nil, goerr.Wrap(err, "failed to put technician", goerr.V("id", stored.ID))
	}

	return &stored, nil
}

type partRepository struct {
	client *firestore.Client
}

func (r *partRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(partsCollection)
}

// FindByName scans parts by name order and returns the first containing the
// fragment. Firestore has no case-insensitive contains query, and the parts
// directory is small, so the filter runs client-side.
func (r *partRepository) FindByName(ctx context.Context, name string) (*model.Part, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, nil
	}

	iter := r.collection().OrderBy("name", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate parts", goerr.V("name", name))
		}

		var part model.Part
		if err := doc.DataTo(&part); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal part")
		}
		if strings.Contains(strings.ToLower(part.Name), needle) {
			return &part, nil
		}
	}

	return nil, nil
}

func (r *partRepository) Put(ctx context.Context, part *model.Part) (*model.Part, error) {
	stored := *part
	if stored.ID == "" {
		stored.ID = types.PartID(uuid.NewString())
	}
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	if _, err := r.collection().Doc(stored.ID.String()).Set(ctx, &stored); err != nil {
		return nil, goerr.Wrap(err, "failed to put part", goerr.V("id", stored.ID))
	}

	return &stored, nil
}

type auditRepository struct {
	client *firestore.Client
}

func (r *auditRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(auditCollection)
}

func (r *auditRepository) Append(ctx context.Context, entry *model.AuditEntry) error {
	created := *entry
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	created.CreatedAt = time.Now().UTC()

	if _, err := r.collection().Doc(created.ID).Set(ctx, &created); err != nil {
		return goerr.Wrap(err, "failed to append audit entry", goerr.V("action", created.Action))
	}

	return nil
}

func (r *auditRepository) ListByWorkflow(ctx context.Context, workflowID types.WorkflowID) ([]*model.AuditEntry, error) {
	iter := r.collection().
		Where("workflow_id", "==", workflowID.String()).
		OrderBy("created_at", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var entries []*model.AuditEntry
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate audit entries",
				goerr.V("workflow_id", workflowID))
		}

		var entry model.AuditEntry
		if err := doc.DataTo(&entry); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal audit entry")
		}
		entries = append(entries, &entry)
	}

	return entries, nil
}
