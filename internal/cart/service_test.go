package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forkline/forkline-backend/internal/catalog"
	pkgerrors "github.com/forkline/forkline-backend/pkg/errors"
)

type fakeCatalog struct {
	snapshots map[uuid.UUID]catalog.OptionSnapshot
}

func (f *fakeCatalog) Snapshot(ctx context.Context, optionID uuid.UUID) (*catalog.OptionSnapshot, error) {
	if snap, ok := f.snapshots[optionID]; ok {
		return &snap, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dish option not found")
}

func (f *fakeCatalog) Snapshots(ctx context.Context, optionIDs []uuid.UUID) (map[uuid.UUID]catalog.OptionSnapshot, error) {
	out := make(map[uuid.UUID]catalog.OptionSnapshot)
	for _, id := range optionIDs {
		if snap, ok := f.snapshots[id]; ok {
			out[id] = snap
		}
	}
	return out, nil
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{snapshots: map[uuid.UUID]catalog.OptionSnapshot{}}
}

func (f *fakeCatalog) add(price string, available bool) uuid.UUID {
	id := uuid.New()
	f.snapshots[id] = catalog.OptionSnapshot{
		OptionID:  id,
		DishID:    uuid.New(),
		DishTitle: "Dish",
		Name:      "Option",
		Price:     decimal.RequireFromString(price),
		Available: available,
	}
	return id
}

func TestServiceAddRejectsInvalidQuantity(t *testing.T) {
	db := setupCartTestDB(t)
	svc, err := NewService(NewRepository(db), newFakeCatalog())
	require.NoError(t, err)

	for _, qty := range []int{0, -1} {
		err := svc.Add(context.Background(), uuid.New(), uuid.New(), qty)
		require.Error(t, err)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	}
}

func TestServiceAddUnknownOption(t *testing.T) {
	db := setupCartTestDB(t)
	svc, err := NewService(NewRepository(db), newFakeCatalog())
	require.NoError(t, err)

	err = svc.Add(context.Background(), uuid.New(), uuid.New(), 1)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestServiceListResolvesLiveSnapshots(t *testing.T) {
	db := setupCartTestDB(t)
	cat := newFakeCatalog()
	svc, err := NewService(NewRepository(db), cat)
	require.NoError(t, err)
	ctx := context.Background()

	ownerID := uuid.New()
	priced := cat.add("4.25", true)
	require.NoError(t, svc.Add(ctx, ownerID, priced, 3))

	views, err := svc.List(ctx, ownerID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 3, views[0].Quantity)
	assert.True(t, views[0].UnitPrice.Equal(decimal.RequireFromString("4.25")))
	assert.True(t, views[0].Subtotal.Equal(decimal.RequireFromString("12.75")))
	assert.True(t, views[0].Available)
}

func TestServiceListMarksVanishedOptionsUnavailable(t *testing.T) {
	db := setupCartTestDB(t)
	cat := newFakeCatalog()
	svc, err := NewService(NewRepository(db), cat)
	require.NoError(t, err)
	ctx := context.Background()

	ownerID := uuid.New()
	optionID := cat.add("4.25", true)
	require.NoError(t, svc.Add(ctx, ownerID, optionID, 2))

	// Simulate the option being removed from the catalog afterwards.
	delete(cat.snapshots, optionID)

	views, err := svc.List(ctx, ownerID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.False(t, views[0].Available)
	assert.Equal(t, optionID, views[0].DishOptionID)
}

func TestServiceListEmptyCart(t *testing.T) {
	db := setupCartTestDB(t)
	svc, err := NewService(NewRepository(db), newFakeCatalog())
	require.NoError(t, err)

	views, err := svc.List(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, views)
}
