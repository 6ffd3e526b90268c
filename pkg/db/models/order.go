package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/forkline/forkline-backend/pkg/enums"
)

// Order is the immutable, priced snapshot of a purchase intent. Status is
// the only field mutated after creation.
type Order struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID     uuid.UUID          `gorm:"column:owner_id;type:uuid;not null;index"`
	OwnerEmail  string             `gorm:"column:owner_email;not null"`
	TotalAmount decimal.Decimal    `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Status      enums.OrderStatus  `gorm:"column:status;type:text;not null;default:'pending';index"`
	Source      enums.OrderSource  `gorm:"column:source;type:text;not null"`
	Lines       []OrderLine        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment     *Payment           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
