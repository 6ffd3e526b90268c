package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/forkline/forkline-backend/internal/catalog"
	pkgerrors "github.com/forkline/forkline-backend/pkg/errors"
)

// LineView is a cart line joined with the live catalog snapshot. The price
// shown is the current catalog price, not a locked one; prices lock only at
// checkout.
type LineView struct {
	DishOptionID uuid.UUID       `json:"dish_option_id"`
	DishTitle    string          `json:"dish_title"`
	OptionName   string          `json:"option_name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Available    bool            `json:"available"`
	ImageURL     *string         `json:"image_url,omitempty"`
}

// Service exposes cart mutations and the resolved cart listing.
type Service interface {
	Add(ctx context.Context, ownerID, optionID uuid.UUID, qty int) error
	SetQuantity(ctx context.Context, ownerID, optionID uuid.UUID, qty int) error
	Remove(ctx context.Context, ownerID, optionID uuid.UUID) error
	Clear(ctx context.Context, ownerID uuid.UUID) error
	List(ctx context.Context, ownerID uuid.UUID) ([]LineView, error)
}

type service struct {
	repo    *Repository
	catalog catalog.Service
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo *Repository, catalogSvc catalog.Service) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogSvc == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	return &service{repo: repo, catalog: catalogSvc}, nil
}

func (s *service) Add(ctx context.Context, ownerID, optionID uuid.UUID, qty int) error {
	if err := validatePair(ownerID, optionID); err != nil {
		return err
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	// No stock cap here; availability is enforced at checkout. The lookup
	// only guards against dangling option ids.
	if _, err := s.catalog.Snapshot(ctx, optionID); err != nil {
		return err
	}

	if err := s.repo.AddQuantity(ctx, ownerID, optionID, qty); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart line")
	}
	return nil
}

func (s *service) SetQuantity(ctx context.Context, ownerID, optionID uuid.UUID, qty int) error {
	if err := validatePair(ownerID, optionID); err != nil {
		return err
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	if err := s.repo.SetQuantity(ctx, ownerID, optionID, qty); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
	}
	return nil
}

func (s *service) Remove(ctx context.Context, ownerID, optionID uuid.UUID) error {
	if err := validatePair(ownerID, optionID); err != nil {
		return err
	}
	if err := s.repo.Remove(ctx, ownerID, optionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart line")
	}
	return nil
}

func (s *service) Clear(ctx context.Context, ownerID uuid.UUID) error {
	if ownerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	if err := s.repo.Clear(ctx, ownerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) List(ctx context.Context, ownerID uuid.UUID) ([]LineView, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}

	lines, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart lines")
	}
	if len(lines) == 0 {
		return []LineView{}, nil
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.DishOptionID)
	}
	snapshots, err := s.catalog.Snapshots(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]LineView, 0, len(lines))
	for _, line := range lines {
		snap, ok := snapshots[line.DishOptionID]
		if !ok {
			// Option was removed from the catalog after it entered the
			// cart; keep the row visible so the owner can delete it.
			views = append(views, LineView{
				DishOptionID: line.DishOptionID,
				Quantity:     line.Quantity,
				Available:    false,
			})
			continue
		}
		qty := decimal.NewFromInt(int64(line.Quantity))
		views = append(views, LineView{
			DishOptionID: line.DishOptionID,
			DishTitle:    snap.DishTitle,
			OptionName:   snap.Name,
			Quantity:     line.Quantity,
			UnitPrice:    snap.Price,
			Subtotal:     snap.Price.Mul(qty),
			Available:    snap.Available,
			ImageURL:     snap.ImageURL,
		})
	}
	return views, nil
}

func validatePair(ownerID, optionID uuid.UUID) error {
	if ownerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	if optionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "dish option id required")
	}
	return nil
}
