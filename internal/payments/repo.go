package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/forkline/forkline-backend/pkg/db/models"
	"github.com/forkline/forkline-backend/pkg/enums"
)

// Repository owns persistence for payment rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a payments repository bound to the provided DB.
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

// Create inserts a new payment row.
func (r *Repository) Create(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

// FindByGatewayReference loads the payment joined to an external reference.
func (r *Repository) FindByGatewayReference(ctx context.Context, reference string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("gateway_reference = ?", reference).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByOrderID loads the payment for an order.
func (r *Repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkTerminal moves an IN_PROGRESS payment into a terminal status. The
// status guard in the WHERE clause makes the transition first-writer-wins:
// redelivered webhooks see zero rows affected and change nothing.
func (r *Repository) MarkTerminal(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, failureReason *string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusInProgress).
		Updates(map[string]any{
			"status":         status,
			"failure_reason": failureReason,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
