package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository reads dish options together with their parent dish.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

type optionRow struct {
	OptionID  uuid.UUID       `gorm:"column:option_id"`
	DishID    uuid.UUID       `gorm:"column:dish_id"`
	DishTitle string          `gorm:"column:dish_title"`
	Name      string          `gorm:"column:name"`
	Price     decimal.Decimal `gorm:"column:price"`
	Available bool            `gorm:"column:available"`
	ImageURL  *string         `gorm:"column:image_url"`
}

const optionSelect = `dish_options.id AS option_id, dish_options.dish_id AS dish_id, ` +
	`dishes.title AS dish_title, dish_options.name AS name, dish_options.price AS price, ` +
	`dish_options.available AS available, dishes.image_url AS image_url`

// FindOptionByID loads one dish option with its dish context.
func (r *Repository) FindOptionByID(ctx context.Context, id uuid.UUID) (*optionRow, error) {
	var row optionRow
	err := r.db.WithContext(ctx).
		Table("dish_options").
		Select(optionSelect).
		Joins("JOIN dishes ON dishes.id = dish_options.dish_id").
		Where("dish_options.id = ?", id).
		Take(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindOptionsByIDs loads the requested dish options keyed by option id.
func (r *Repository) FindOptionsByIDs(ctx context.Context, ids []uuid.UUID) ([]optionRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []optionRow
	err := r.db.WithContext(ctx).
		Table("dish_options").
		Select(optionSelect).
		Joins("JOIN dishes ON dishes.id = dish_options.dish_id").
		Where("dish_options.id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
