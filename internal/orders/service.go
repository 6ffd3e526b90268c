package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/forkline/forkline-backend/internal/cart"
	"github.com/forkline/forkline-backend/internal/catalog"
	"github.com/forkline/forkline-backend/pkg/db/models"
	"github.com/forkline/forkline-backend/pkg/enums"
	pkgerrors "github.com/forkline/forkline-backend/pkg/errors"
)

// Owner identifies the purchaser. Email is denormalized onto the order at
// creation so receipts survive account changes.
type Owner struct {
	ID    uuid.UUID
	Email string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service turns carts and single items into priced, immutable orders and
// exposes owner-scoped order reads.
type Service interface {
	BuildFromCart(ctx context.Context, owner Owner) (*models.Order, error)
	BuildFromSingleItem(ctx context.Context, owner Owner, optionID uuid.UUID, qty int) (*models.Order, error)
	Get(ctx context.Context, ownerID, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, ownerID uuid.UUID, status *enums.OrderStatus) ([]models.Order, error)
}

type service struct {
	tx       txRunner
	repo     *Repository
	cartRepo *cart.Repository
	catalog  catalog.Service
}

// NewService builds the order builder backed by the provided stack.
func NewService(tx txRunner, repo *Repository, cartRepo *cart.Repository, catalogSvc catalog.Service) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogSvc == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	return &service{tx: tx, repo: repo, cartRepo: cartRepo, catalog: catalogSvc}, nil
}

// BuildFromCart snapshots the owner's cart into a PENDING order at current
// catalog prices and consumes exactly the snapshotted lines. The order insert
// and the cart delete commit together, so a failure leaves the cart intact.
// Each delete is guarded on the snapshotted quantity; a cart mutation that
// lands between snapshot and commit aborts the whole checkout instead of
// being silently consumed.
func (s *service) BuildFromCart(ctx context.Context, owner Owner) (*models.Order, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}

	lines, err := s.cartRepo.ListByOwner(ctx, owner.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart lines")
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	optionIDs := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		optionIDs = append(optionIDs, line.DishOptionID)
	}

	snapshots, err := s.catalog.Snapshots(ctx, optionIDs)
	if err != nil {
		return nil, err
	}

	orderLines := make([]models.OrderLine, 0, len(lines))
	total := decimal.Zero
	for _, line := range lines {
		snap, ok := snapshots[line.DishOptionID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a cart item is no longer available")
		}
		if !snap.Available {
			return nil, pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("%s is no longer available", snap.DisplayName()))
		}
		orderLines = append(orderLines, models.OrderLine{
			DishOptionID: snap.OptionID,
			Name:         snap.DisplayName(),
			Quantity:     line.Quantity,
			UnitPrice:    snap.Price,
			ImageURL:     snap.ImageURL,
		})
		total = total.Add(snap.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	order := &models.Order{
		OwnerID:     owner.ID,
		OwnerEmail:  owner.Email,
		TotalAmount: total,
		Status:      enums.OrderStatusPending,
		Source:      enums.OrderSourceCart,
		Lines:       orderLines,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		consumed, err := s.cartRepo.WithTx(tx).ConsumeSnapshot(ctx, owner.ID, lines)
		if err != nil {
			return err
		}
		if consumed != int64(len(lines)) {
			return pkgerrors.New(pkgerrors.CodeConflict, "cart changed during checkout, retry")
		}
		_, err = s.repo.WithTx(tx).Create(ctx, order)
		return err
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order from cart")
	}
	return order, nil
}

// BuildFromSingleItem creates a one-line PENDING order without touching the
// owner's cart.
func (s *service) BuildFromSingleItem(ctx context.Context, owner Owner, optionID uuid.UUID, qty int) (*models.Order, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	if optionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dish option id required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	snap, err := s.catalog.Snapshot(ctx, optionID)
	if err != nil {
		return nil, err
	}
	if !snap.Available {
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("%s is no longer available", snap.DisplayName()))
	}

	order := &models.Order{
		OwnerID:     owner.ID,
		OwnerEmail:  owner.Email,
		TotalAmount: snap.Price.Mul(decimal.NewFromInt(int64(qty))),
		Status:      enums.OrderStatusPending,
		Source:      enums.OrderSourceDirectPurchase,
		Lines: []models.OrderLine{{
			DishOptionID: snap.OptionID,
			Name:         snap.DisplayName(),
			Quantity:     qty,
			UnitPrice:    snap.Price,
			ImageURL:     snap.ImageURL,
		}},
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.repo.WithTx(tx).Create(ctx, order)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create direct purchase order")
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, ownerID, orderID uuid.UUID) (*models.Order, error) {
	if ownerID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id and order id required")
	}
	order, err := s.repo.FindByIDForOwner(ctx, orderID, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, ownerID uuid.UUID, status *enums.OrderStatus) ([]models.Order, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	list, err := s.repo.ListByOwner(ctx, ownerID, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func validateOwner(owner Owner) error {
	if owner.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	if owner.Email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner email required")
	}
	return nil
}
