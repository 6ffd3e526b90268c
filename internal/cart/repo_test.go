package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/forkline/forkline-backend/pkg/db/models"
)

func setupCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	cartLines := `
CREATE TABLE IF NOT EXISTS cart_lines (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  dish_option_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (owner_id, dish_option_id)
);`
	require.NoError(t, db.Exec(cartLines).Error)
	return db
}

func TestAddQuantityUpsertsSingleRow(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	ownerID := uuid.New()
	optionID := uuid.New()

	// Repeated adds for the same pair must converge on one row holding the
	// summed quantity.
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.AddQuantity(ctx, ownerID, optionID, 2))
	}

	var lines []models.CartLine
	require.NoError(t, db.Where("owner_id = ?", ownerID).Find(&lines).Error)
	require.Len(t, lines, 1)
	assert.Equal(t, 10, lines[0].Quantity)
}

func TestSetQuantityMissingLine(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)

	err := repo.SetQuantity(context.Background(), uuid.New(), uuid.New(), 3)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSetQuantityOverwrites(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	ownerID := uuid.New()
	optionID := uuid.New()
	require.NoError(t, repo.AddQuantity(ctx, ownerID, optionID, 4))
	require.NoError(t, repo.SetQuantity(ctx, ownerID, optionID, 1))

	lines, err := repo.ListByOwner(ctx, ownerID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Quantity)
}

func TestConsumeSnapshotLeavesNewerLines(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	ownerID := uuid.New()
	first := uuid.New()
	require.NoError(t, repo.AddQuantity(ctx, ownerID, first, 1))

	snapshot, err := repo.ListByOwner(ctx, ownerID)
	require.NoError(t, err)

	// A line added after the snapshot must survive the consume.
	later := uuid.New()
	require.NoError(t, repo.AddQuantity(ctx, ownerID, later, 2))

	consumed, err := repo.ConsumeSnapshot(ctx, ownerID, snapshot)
	require.NoError(t, err)
	assert.Equal(t, int64(1), consumed)

	remaining, err := repo.ListByOwner(ctx, ownerID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, later, remaining[0].DishOptionID)
}

func TestConsumeSnapshotSkipsDriftedQuantity(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	ownerID := uuid.New()
	optionID := uuid.New()
	require.NoError(t, repo.AddQuantity(ctx, ownerID, optionID, 2))

	snapshot, err := repo.ListByOwner(ctx, ownerID)
	require.NoError(t, err)

	// An increment landing after the snapshot moves the row's quantity, so
	// the guarded delete must not touch it.
	require.NoError(t, repo.AddQuantity(ctx, ownerID, optionID, 3))

	consumed, err := repo.ConsumeSnapshot(ctx, ownerID, snapshot)
	require.NoError(t, err)
	assert.Zero(t, consumed)

	remaining, err := repo.ListByOwner(ctx, ownerID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, 5, remaining[0].Quantity)
}

func TestAddQuantityConcurrentAddsConverge(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	// Funnel all goroutines through one sqlite connection; the serialization
	// under test is the SQL increment, not the driver's locking.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	ownerID := uuid.New()
	optionID := uuid.New()

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.AddQuantity(ctx, ownerID, optionID, 2)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	lines, err := repo.ListByOwner(ctx, ownerID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, workers*2, lines[0].Quantity)
}

func TestClearRemovesOnlyOwnersLines(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	ownerA := uuid.New()
	ownerB := uuid.New()
	require.NoError(t, repo.AddQuantity(ctx, ownerA, uuid.New(), 1))
	require.NoError(t, repo.AddQuantity(ctx, ownerB, uuid.New(), 1))

	require.NoError(t, repo.Clear(ctx, ownerA))

	linesA, err := repo.ListByOwner(ctx, ownerA)
	require.NoError(t, err)
	assert.Empty(t, linesA)

	linesB, err := repo.ListByOwner(ctx, ownerB)
	require.NoError(t, err)
	assert.Len(t, linesB, 1)
}
