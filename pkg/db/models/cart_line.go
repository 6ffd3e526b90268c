package models

import (
	"time"

	"github.com/google/uuid"
)

// CartLine is the per-owner quantity ledger entry for one dish option.
// At most one row exists per (owner_id, dish_option_id); quantity is always
// at least 1, a decrement to zero deletes the row instead.
type CartLine struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID      uuid.UUID `gorm:"column:owner_id;type:uuid;not null;uniqueIndex:idx_cart_lines_owner_option"`
	DishOptionID uuid.UUID `gorm:"column:dish_option_id;type:uuid;not null;uniqueIndex:idx_cart_lines_owner_option"`
	Quantity     int       `gorm:"column:quantity;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
