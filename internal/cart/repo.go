package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/forkline/forkline-backend/pkg/db/models"
)

// Repository owns persistence for cart lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
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

// AddQuantity inserts a line or atomically increments the existing one.
// The increment happens in SQL so concurrent adds for the same
// (owner, option) pair serialize on the unique constraint instead of
// overwriting each other.
func (r *Repository) AddQuantity(ctx context.Context, ownerID, optionID uuid.UUID, qty int) error {
	line := models.CartLine{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		DishOptionID: optionID,
		Quantity:     qty,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner_id"}, {Name: "dish_option_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"quantity":   gorm.Expr("cart_lines.quantity + excluded.quantity"),
			"updated_at": time.Now().UTC(),
		}),
	}).Create(&line).Error
}

// SetQuantity overwrites the quantity of an existing line. Returns
// gorm.ErrRecordNotFound when no line exists for the pair.
func (r *Repository) SetQuantity(ctx context.Context, ownerID, optionID uuid.UUID, qty int) error {
	res := r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("owner_id = ? AND dish_option_id = ?", ownerID, optionID).
		Update("quantity", qty)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Remove deletes the line for the pair if present.
func (r *Repository) Remove(ctx context.Context, ownerID, optionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("owner_id = ? AND dish_option_id = ?", ownerID, optionID).
		Delete(&models.CartLine{}).Error
}

// Clear deletes every line for the owner.
func (r *Repository) Clear(ctx context.Context, ownerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Delete(&models.CartLine{}).Error
}

// ListByOwner returns the owner's lines in insertion order.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// ConsumeSnapshot removes exactly the snapshotted line rows, quantity
// included in the match. Lines added after the snapshot are left alone, and
// a line whose quantity moved since the snapshot is not deleted; the
// returned count lets the caller detect the drift and abort.
func (r *Repository) ConsumeSnapshot(ctx context.Context, ownerID uuid.UUID, lines []models.CartLine) (int64, error) {
	var consumed int64
	for _, line := range lines {
		res := r.db.WithContext(ctx).
			Where("owner_id = ? AND id = ? AND quantity = ?", ownerID, line.ID, line.Quantity).
			Delete(&models.CartLine{})
		if res.Error != nil {
			return consumed, res.Error
		}
		consumed += res.RowsAffected
	}
	return consumed, nil
}
