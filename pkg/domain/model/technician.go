package model

import (
	"time"

	"github.com/stationops/wrench/pkg/domain/types"
)

// TechnicianStatus is the availability state of a technician
type TechnicianStatus string

const (
	TechnicianAvailable TechnicianStatus = "available"
	TechnicianBusy      TechnicianStatus = "busy"
	TechnicianOffDuty   TechnicianStatus = "off_duty"
)

// Technician is one entry in the worker directory
type Technician struct {
	ID              types.TechnicianID `json:"id" firestore:"id"`
	Name            string             `json:"name" firestore:"name"`
	Specialization  string             `json:"specialization" firestore:"specialization"`
	Status          TechnicianStatus   `json:"status" firestore:"status"`
	Rating          float64            `json:"rating" firestore:"rating"`
	YearsExperience int                `json:"years_experience" firestore:"years_experience"`

	CreatedAt time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updated_at"`
}

// Better reports whether t should be picked over other when both are
// available for the same specialization: highest rating first, then most
// experience, then name for a stable order.
func (t *Technician) Better(other *Technician) bool {
	if t.Rating != other.Rating {
		return t.Rating > other.Rating
	}
	if t.YearsExperience != other.YearsExperience {
		return t.YearsExperience > other.YearsExperience
	}
	return t.Name < other.Name
}
