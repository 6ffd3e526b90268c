package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/forkline/forkline-backend/pkg/errors"
)

func setupCatalogTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	dishes := `
CREATE TABLE IF NOT EXISTS dishes (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT,
  image_url TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	dishOptions := `
CREATE TABLE IF NOT EXISTS dish_options (
  id TEXT PRIMARY KEY,
  dish_id TEXT NOT NULL,
  name TEXT NOT NULL,
  price TEXT NOT NULL,
  available INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(dishes).Error)
	require.NoError(t, db.Exec(dishOptions).Error)
	return db
}

func seedOption(t *testing.T, db *gorm.DB, title, name, price string, available bool) uuid.UUID {
	t.Helper()

	dishID := uuid.New()
	require.NoError(t, db.Exec(
		`INSERT INTO dishes (id, title, image_url) VALUES (?, ?, ?)`,
		dishID, title, "https://img.example/"+dishID.String(),
	).Error)

	optionID := uuid.New()
	require.NoError(t, db.Exec(
		`INSERT INTO dish_options (id, dish_id, name, price, available) VALUES (?, ?, ?, ?, ?)`,
		optionID, dishID, name, price, available,
	).Error)
	return optionID
}

func TestServiceSnapshot(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	optionID := seedOption(t, db, "Margherita", "Large", "12.50", true)

	snap, err := svc.Snapshot(context.Background(), optionID)
	require.NoError(t, err)
	assert.Equal(t, optionID, snap.OptionID)
	assert.Equal(t, "Margherita", snap.DishTitle)
	assert.Equal(t, "Large", snap.Name)
	assert.True(t, snap.Available)
	assert.True(t, snap.Price.Equal(decimal.RequireFromString("12.50")))
	assert.Equal(t, "Margherita (Large)", snap.DisplayName())
}

func TestServiceSnapshotNotFound(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	_, err = svc.Snapshot(context.Background(), uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestServiceSnapshotsSkipsMissing(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	known := seedOption(t, db, "Ramen", "Spicy", "9.00", true)
	unavailable := seedOption(t, db, "Ramen", "Mild", "9.00", false)
	missing := uuid.New()

	snaps, err := svc.Snapshots(context.Background(), []uuid.UUID{known, unavailable, missing})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.True(t, snaps[known].Available)
	assert.False(t, snaps[unavailable].Available)
	_, ok := snaps[missing]
	assert.False(t, ok)
}
