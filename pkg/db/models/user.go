package models

import (
	"time"

	"github.com/google/uuid"
)

// User mirrors the identity claims of the external auth service. Token
// issuance and login live there; the row is provisioned lazily when the
// owner first places an order.
type User struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Email     string    `gorm:"column:email;not null"`
	Name      *string   `gorm:"column:name"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
