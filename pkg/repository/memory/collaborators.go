package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/types"
)

type ticketRepository struct {
	mu      sync.RWMutex
	tickets map[types.TicketID]*model.Ticket
}

func newTicketRepository() *ticketRepository {
	return &ticketRepository{
		tickets: make(map[types.TicketID]*model.Ticket),
	}
}

func copyTicket(t *model.Ticket) *model.Ticket {
	copied := *t
	copied.AssignedAt = copyTimePtr(t.AssignedAt)
	return &copied
}

func (r *ticketRepository) Create(ctx context.Context, ticket *model.Ticket) (*model.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := copyTicket(ticket)
	if created.ID == "" {
		created.ID = types.NewTicketID()
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	r.tickets[created.ID] = created
	return copyTicket(created), nil
}

func (r *ticketRepository) Get(ctx context.Context, id types.TicketID) (*model.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ticket, exists := r.tickets[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "ticket not found", goerr.V("id", id))
	}

	return copyTicket(ticket), nil
}

func (r *ticketRepository) GetByRef(ctx context.Context, ref string) (*model.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ticket := range r.tickets {
		if ticket.TicketRef == ref {
			return copyTicket(ticket), nil
		}
	}

	return nil, goerr.Wrap(ErrNotFound, "ticket not found", goerr.V("ref", ref))
}

func (r *ticketRepository) Update(ctx context.Context, ticket *model.Ticket) (*model.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.tickets[ticket.ID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "ticket not found", goerr.V("id", ticket.ID))
	}

	updated := copyTicket(ticket)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	r.tickets[updated.ID] = updated
	return copyTicket(updated), nil
}

type technicianRepository struct {
	mu          sync.RWMutex
	technicians map[types.TechnicianID]*model.Technician
}

func newTechnicianRepository() *technicianRepository {
	return &technicianRepository{
		technicians: make(map[types.TechnicianID]*model.Technician),
	}
}

func copyTechnician(t *model.Technician) *model.Technician {
	copied := *t
	return &copied
}

func (r *technicianRepository) ListAvailable(ctx context.Context, specialization string) ([]*model.Technician, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	technicians := make([]*model.Technician, 0)
	for _, technician := range r.technicians {
		if technician.Status != model.TechnicianAvailable {
			continue
		}
		if technician.Specialization != specialization {
			continue
		}
		technicians = append(technicians, copyTechnician(technician))
	}

	sort.Slice(technicians, func(i, j int) bool {
		return technicians[i].Better(technicians[j])
	})

	return technicians, nil
}

func (r *technicianRepository) Update(ctx context.Context, technician *model.Technician) (*model.Technician, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.technicians[technician.ID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "technician not found", goerr.V("id", technician.ID))
	}

	updated := copyTechnician(technician)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	r.technicians[updated.ID] = updated
	return copyTechnician(updated), nil
}

func (r *technicianRepository) Put(ctx context.Context, technician *model.Technician) (*model.Technician, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := copyTechnician(technician)
	if stored.ID == "" {
		stored.ID = types.TechnicianID(uuid.NewString())
	}
	now := time.Now().UTC()
	if existing, exists := r.technicians[stored.ID]; exists {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	r.technicians[stored.ID] = stored
	return copyTechnician(stored), nil
}

type partRepository struct {
	mu    sync.RWMutex
	parts map[types.PartID]*model.Part
}

func newPartRepository() *partRepository {
	return &partRepository{
		parts: make(map[types.PartID]*model.Part),
	}
}

func copyPart(p *model.Part) *model.Part {
	copied := *p
	return &copied
}

func (r *partRepository) FindByName(ctx context.Context, name string) (*model.Part, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, nil
	}

	matches := make([]*model.Part, 0)
	for _, part := range r.parts {
		if strings.Contains(strings.ToLower(part.Name), needle) {
			matches = append(matches, part)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Name < matches[j].Name
	})

	return copyPart(matches[0]), nil
}

func (r *partRepository) Put(ctx context.Context, part *model.Part) (*model.Part, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := copyPart(part)
	if stored.ID == "" {
		stored.ID = types.PartID(uuid.NewString())
	}
	now := time.Now().UTC()
	if existing, exists := r.parts[stored.ID]; exists {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	r.parts[stored.ID] = stored
	return copyPart(stored), nil
}

type auditRepository struct {
	mu      sync.RWMutex
	entries []*model.AuditEntry
}

func newAuditRepository() *auditRepository {
	return &auditRepository{}
}

func copyAuditEntry(e *model.AuditEntry) *model.AuditEntry {
	copied := *e
	copied.Detail = copyAnyMap(e.Detail)
	return &copied
}

func (r *auditRepository) Append(ctx context.Context, entry *model.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := copyAuditEntry(entry)
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	created.CreatedAt = time.Now().UTC()

	r.entries = append(r.entries, created)
	return nil
}

func (r *auditRepository) ListByWorkflow(ctx context.Context, workflowID types.WorkflowID) ([]*model.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*model.AuditEntry, 0)
	for _, entry := range r.entries {
		if entry.Workflow == workflowID {
			entries = append(entries, copyAuditEntry(entry))
		}
	}

	return entries, nil
}
