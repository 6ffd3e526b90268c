package models

import (
	"time"

	"github.com/google/uuid"
)

// Dish is a menu entry; purchasable variants live in DishOption.
type Dish struct {
	ID          uuid.UUID    `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title       string       `gorm:"column:title;not null"`
	Description *string      `gorm:"column:description"`
	ImageURL    *string      `gorm:"column:image_url"`
	Options     []DishOption `gorm:"foreignKey:DishID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}
