package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Service is a catalog entry offered by a dealer. Catalog management lives
// outside this service; the scheduler only reads active entries to validate
// booking requests and price them.
type Service struct {
	bun.BaseModel `bun:"table:services"`

	ID                  uuid.UUID `bun:"id,pk,type:uuid"`
	DealerID            string    `bun:"dealer_id,notnull"`
	Name                string    `bun:"name,notnull"`
	Category            string    `bun:"category"`
	Price               float64   `bun:"price,notnull"`
	DurationHintMinutes int       `bun:"duration_hint_minutes"`
	IsActive            bool      `bun:"is_active,notnull"`
	CreatedAt           time.Time `bun:"created_at,notnull"`
	UpdatedAt           time.Time `bun:"updated_at,notnull"`
}
