package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/forkline/forkline-backend/internal/orders"
	"github.com/forkline/forkline-backend/pkg/db"
	"github.com/forkline/forkline-backend/pkg/db/models"
	"github.com/forkline/forkline-backend/pkg/enums"
	pkgerrors "github.com/forkline/forkline-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ApplyResult reports the outcome of a terminal-state application. Applied is
// false when the payment was already terminal and nothing changed.
type ApplyResult struct {
	Payment *models.Payment
	Applied bool
}

// Service is the payment ledger: one payment per order, created IN_PROGRESS
// and moved exactly once into a terminal state by reconciliation.
type Service interface {
	Record(ctx context.Context, orderID uuid.UUID, reference string, amount decimal.Decimal) (*models.Payment, error)
	ApplyTerminalState(ctx context.Context, reference string, status enums.PaymentStatus, failureReason *string) (ApplyResult, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
}

type service struct {
	tx         txRunner
	repo       *Repository
	ordersRepo *orders.Repository
}

// NewService builds the payment ledger backed by the provided stack.
func NewService(tx txRunner, repo *Repository, ordersRepo *orders.Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{tx: tx, repo: repo, ordersRepo: ordersRepo}, nil
}

func (s *service) Record(ctx context.Context, orderID uuid.UUID, reference string, amount decimal.Decimal) (*models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway reference required")
	}
	if amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount cannot be negative")
	}

	if _, err := s.repo.FindByOrderID(ctx, orderID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment already recorded for order")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	payment := &models.Payment{
		OrderID:          orderID,
		GatewayReference: reference,
		Amount:           amount,
		Status:           enums.PaymentStatusInProgress,
		Gateway:          enums.PaymentGatewayStripe,
	}
	created, err := s.repo.Create(ctx, payment)
	if err != nil {
		// The pre-check races with concurrent checkouts; the unique index
		// on order_id is the authoritative guard.
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment already recorded for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
	}
	return created, nil
}

// ApplyTerminalState moves the referenced payment into a terminal status and
// flips the parent order in the same transaction. Redeliveries and races are
// absorbed twice over: already-terminal payments short-circuit here, and the
// guarded UPDATE in the repository makes the effective transition exactly-once.
func (s *service) ApplyTerminalState(ctx context.Context, reference string, status enums.PaymentStatus, failureReason *string) (ApplyResult, error) {
	if reference == "" {
		return ApplyResult{}, pkgerrors.New(pkgerrors.CodeValidation, "gateway reference required")
	}
	if !status.IsTerminal() {
		return ApplyResult{}, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("%s is not a terminal payment status", status))
	}

	payment, err := s.repo.FindByGatewayReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ApplyResult{}, pkgerrors.New(pkgerrors.CodeNotFound, "unknown payment reference")
		}
		return ApplyResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.Status.IsTerminal() {
		return ApplyResult{Payment: payment, Applied: false}, nil
	}

	applied := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).MarkTerminal(ctx, payment.ID, status, failureReason)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		applied = true
		return s.ordersRepo.WithTx(tx).SetStatusFromPending(ctx, payment.OrderID, orderStatusFor(status))
	})
	if err != nil {
		return ApplyResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply payment state")
	}

	final, err := s.repo.FindByGatewayReference(ctx, reference)
	if err != nil {
		return ApplyResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payment")
	}
	return ApplyResult{Payment: final, Applied: applied}, nil
}

func (s *service) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	payment, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func orderStatusFor(status enums.PaymentStatus) enums.OrderStatus {
	if status == enums.PaymentStatusCompleted {
		return enums.OrderStatusCompleted
	}
	return enums.OrderStatusCancelled
}
