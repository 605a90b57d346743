package model

import (
	"time"

	"github.com/stationops/wrench/pkg/domain/types"
)

// Part is one entry in the parts directory
type Part struct {
	ID                types.PartID `json:"id" firestore:"id"`
	Name              string       `json:"name" firestore:"name"`
	QuantityAvailable int          `json:"quantity_available" firestore:"quantity_available"`
	ReorderThreshold  int          `json:"reorder_threshold" firestore:"reorder_threshold"`

	CreatedAt time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updated_at"`
}

// NeedsReorder reports whether stock is at or below the reorder threshold
func (p *Part) NeedsReorder() bool {
	return p.QuantityAvailable <= p.ReorderThreshold
}
