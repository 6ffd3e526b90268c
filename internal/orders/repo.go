package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/forkline/forkline-backend/pkg/db/models"
	"github.com/forkline/forkline-backend/pkg/enums"
)

// Repository owns persistence for orders and their line items.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
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

// Create inserts the order together with its line items. The claims-sourced
// identity row is mirrored first so the owner reference holds.
func (r *Repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Lines {
		if order.Lines[i].ID == uuid.Nil {
			order.Lines[i].ID = uuid.New()
		}
		order.Lines[i].OrderID = order.ID
	}

	owner := models.User{ID: order.OwnerID, Email: order.OwnerEmail}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&owner).Error
	if err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// FindByID loads an order with lines and payment.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("Payment").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForOwner loads an order restricted to the provided owner.
func (r *Repository) FindByIDForOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("Payment").
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByOwner returns the owner's orders, optionally filtered by status,
// newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID, status *enums.OrderStatus) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("Payment").
		Where("owner_id = ?", ownerID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var orders []models.Order
	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ListByStatus returns all orders in the given status, oldest first, for
// reconciliation sweeps over abandoned PENDING orders.
func (r *Repository) ListByStatus(ctx context.Context, status enums.OrderStatus) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Payment").
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// SetStatusFromPending moves a PENDING order into a terminal status. Orders
// already terminal are left untouched (terminal states are absorbing).
func (r *Repository) SetStatusFromPending(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, enums.OrderStatusPending).
		Update("status", status).Error
}
