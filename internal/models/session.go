package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is an issued login session. The periodic sweeper flips IsActive off
// once ExpiresAt passes.
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Token     string    `json:"-"`
	IsActive  bool      `json:"isActive"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}
