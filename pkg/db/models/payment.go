package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/forkline/forkline-backend/pkg/enums"
)

// Payment tracks the lifecycle of one external gateway transaction, tied 1:1
// to an Order. GatewayReference is the externally assigned join key used by
// webhook reconciliation.
type Payment struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_payments_order"`
	GatewayReference string               `gorm:"column:gateway_reference;not null;uniqueIndex:idx_payments_gateway_reference"`
	Amount           decimal.Decimal      `gorm:"column:amount;type:numeric(12,2);not null"`
	Status           enums.PaymentStatus  `gorm:"column:status;type:text;not null;default:'in_progress'"`
	Gateway          enums.PaymentGateway `gorm:"column:gateway;type:text;not null;default:'stripe'"`
	FailureReason    *string              `gorm:"column:failure_reason"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
