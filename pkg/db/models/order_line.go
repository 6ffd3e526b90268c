package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLine captures the snapshot of one purchased dish option. UnitPrice is
// frozen at order-build time so later catalog changes cannot alter a placed
// order.
type OrderLine struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	DishOptionID uuid.UUID       `gorm:"column:dish_option_id;type:uuid;not null"`
	Name         string          `gorm:"column:name;not null"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity     int             `gorm:"column:quantity;not null"`
	ImageURL     *string         `gorm:"column:image_url"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Subtotal returns unit price times quantity.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
