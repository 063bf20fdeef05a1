package models

import (
	"time"

	"github.com/google/uuid"
)

// Appointment is a scheduled sales call/meeting a recording attaches to.
type Appointment struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"userId"`
	Title        string    `json:"title"`
	CustomerName string    `json:"customerName,omitempty"`
	ScheduledAt  time.Time `json:"scheduledAt"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
