package model

import (
	"fmt"
	"time"

	"github.com/stationops/wrench/pkg/domain/types"
)

// TicketStatus is the lifecycle state of a service ticket
type TicketStatus string

const (
	TicketStatusPending       TicketStatus = "pending"
	TicketStatusAssigned      TicketStatus = "assigned"
	TicketStatusAwaitingParts TicketStatus = "awaiting_parts"
	TicketStatusResolved      TicketStatus = "resolved"
)

// Ticket is a service ticket row in the local system of record
type Ticket struct {
	ID             types.TicketID `json:"id" firestore:"id"`
	TicketRef      string         `json:"ticket_ref" firestore:"ticket_ref"`
	Title          string         `json:"title" firestore:"title"`
	Description    string         `json:"description" firestore:"description"`
	Specialization string         `json:"specialization" firestore:"specialization"`
	Priority       int            `json:"priority" firestore:"priority"`
	Severity       int            `json:"severity" firestore:"severity"`
	Status         TicketStatus   `json:"status" firestore:"status"`

	AssignedTechnician types.TechnicianID `json:"assigned_technician,omitempty" firestore:"assigned_technician"`
	AutoAssigned       bool               `json:"auto_assigned" firestore:"auto_assigned"`

	CreatedBy                  types.UserID `json:"created_by" firestore:"created_by"`
	EstimatedResolutionMinutes int          `json:"estimated_resolution_minutes" firestore:"estimated_resolution_minutes"`

	AssignedAt *time.Time `json:"assigned_at,omitempty" firestore:"assigned_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at" firestore:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" firestore:"updated_at"`
}

// NewTicketRef builds the human-facing ticket reference, e.g. TK-0214-093012
func NewTicketRef(now time.Time) string {
	return fmt.Sprintf("TK-%s-%s", now.Format("0102"), now.Format("150405"))
}
