package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgerrors "github.com/forkline/forkline-backend/pkg/errors"
)

// OptionSnapshot is the catalog's answer for one purchasable dish option at a
// single instant: current price and availability, plus display data.
type OptionSnapshot struct {
	OptionID  uuid.UUID
	DishID    uuid.UUID
	DishTitle string
	Name      string
	Price     decimal.Decimal
	Available bool
	ImageURL  *string
}

// DisplayName combines dish title and option name for gateway/receipt lines.
func (s OptionSnapshot) DisplayName() string {
	if s.Name == "" {
		return s.DishTitle
	}
	return fmt.Sprintf("%s (%s)", s.DishTitle, s.Name)
}

// Service resolves purchasable dish options to point-in-time snapshots.
type Service interface {
	Snapshot(ctx context.Context, optionID uuid.UUID) (*OptionSnapshot, error)
	Snapshots(ctx context.Context, optionIDs []uuid.UUID) (map[uuid.UUID]OptionSnapshot, error)
}

type service struct {
	repo *Repository
}

// NewService builds the catalog snapshot provider.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Snapshot(ctx context.Context, optionID uuid.UUID) (*OptionSnapshot, error) {
	if optionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dish option id required")
	}
	row, err := s.repo.FindOptionByID(ctx, optionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dish option not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dish option")
	}
	snapshot := snapshotFromRow(*row)
	return &snapshot, nil
}

func (s *service) Snapshots(ctx context.Context, optionIDs []uuid.UUID) (map[uuid.UUID]OptionSnapshot, error) {
	rows, err := s.repo.FindOptionsByIDs(ctx, optionIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dish options")
	}
	out := make(map[uuid.UUID]OptionSnapshot, len(rows))
	for _, row := range rows {
		out[row.OptionID] = snapshotFromRow(row)
	}
	return out, nil
}

func snapshotFromRow(row optionRow) OptionSnapshot {
	return OptionSnapshot{
		OptionID:  row.OptionID,
		DishID:    row.DishID,
		DishTitle: row.DishTitle,
		Name:      row.Name,
		Price:     row.Price,
		Available: row.Available,
		ImageURL:  row.ImageURL,
	}
}
