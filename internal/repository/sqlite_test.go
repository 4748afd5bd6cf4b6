package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octobees/turmeric-buyers/internal/database"
	"github.com/octobees/turmeric-buyers/internal/dto"
	"github.com/octobees/turmeric-buyers/internal/entity"
)

func newTestSQLiteRepo(t *testing.T) *SQLiteBuyersRepository {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "buyers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	repo := NewSQLiteBuyersRepository(db)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func TestSQLite_MigrateIsIdempotent(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	require.NoError(t, repo.Migrate(context.Background()))
}

func TestSQLite_UpsertAndLoadAll(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()
	runID := uuid.New()

	res, err := repo.UpsertBuyers(ctx, runID, []entity.ValidatedRecord{
		acceptedRecord("Golden Spice Traders Pvt Ltd", "sales@goldenspice.in", "9876543210", 95),
		acceptedRecord("Haldi House", "", "", 85),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Inserted: 2, Total: 2}, res)

	buyers, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, buyers, 2)

	first := buyers[0]
	assert.Equal(t, "Golden Spice Traders Pvt Ltd", first.CompanyName)
	assert.Equal(t, "golden spice traders", first.NameKey)
	require.NotNil(t, first.RunID)
	assert.Equal(t, runID, *first.RunID)
	require.NotNil(t, first.Phone)
	assert.Equal(t, "+919876543210", *first.Phone)
	require.NotNil(t, first.ValidatedAt)
	assert.False(t, first.CreatedAt.IsZero())
	assert.Nil(t, buyers[1].Email)

	validated := first.Validated()
	assert.Equal(t, "IN", validated.Verdict(entity.FieldPhone).Region)
}

func TestSQLite_UpsertUpdatesExistingNameKey(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	_, err := repo.UpsertBuyers(ctx, uuid.New(), []entity.ValidatedRecord{
		acceptedRecord("Golden Spice Traders", "sales@goldenspice.in", "", 85),
	}, nil)
	require.NoError(t, err)

	second := acceptedRecord("M/s Golden Spice Traders Pvt. Ltd.", "", "", 100)
	second.Website = "https://goldenspice.in"
	res, err := repo.UpsertBuyers(ctx, uuid.New(), []entity.ValidatedRecord{second}, nil)
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Updated: 1, Total: 1}, res)

	buyers, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, buyers, 1)
	assert.Equal(t, 100, buyers[0].Score)
	require.NotNil(t, buyers[0].Email)
	assert.Equal(t, "sales@goldenspice.in", *buyers[0].Email, "missing fields keep their stored value")
	require.NotNil(t, buyers[0].Website)
	assert.Equal(t, "https://goldenspice.in", *buyers[0].Website)
}

func TestSQLite_UpsertReplacesSupersededBuyer(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	_, err := repo.UpsertBuyers(ctx, uuid.New(), []entity.ValidatedRecord{
		acceptedRecord("Everest Spices", "sales@everestspices.com", "", 85),
		acceptedRecord("Haldi House", "", "", 82),
	}, nil)
	require.NoError(t, err)
	stored, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	richer := acceptedRecord("Everest Spice Traders India", "sales@everestspices.com", "9876543210", 95)
	richer.Website = "https://everestspices.com"
	res, err := repo.UpsertBuyers(ctx, uuid.New(), []entity.ValidatedRecord{richer}, []uuid.UUID{stored[0].ID})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Inserted: 1, Replaced: 1, Total: 1}, res)

	buyers, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, buyers, 2)
	names := []string{buyers[0].CompanyName, buyers[1].CompanyName}
	assert.ElementsMatch(t, []string{"Haldi House", "Everest Spice Traders India"}, names)
}

func TestSQLite_ListFilters(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	mumbai := acceptedRecord("Konkan Masala Exports", "", "", 90)
	mumbai.City = "Mumbai"
	mumbai.Products = "Turmeric finger, chilli"
	_, err := repo.UpsertBuyers(ctx, uuid.New(), []entity.ValidatedRecord{
		acceptedRecord("Golden Spice Traders", "", "", 95),
		acceptedRecord("Haldi House", "", "", 82),
		mumbai,
	}, nil)
	require.NoError(t, err)

	all, err := repo.List(ctx, dto.BuyerFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Golden Spice Traders", all[0].CompanyName, "ordered by score")

	erode, err := repo.List(ctx, dto.BuyerFilter{City: "erode"})
	require.NoError(t, err)
	assert.Len(t, erode, 2)

	minScore := 85
	strong, err := repo.List(ctx, dto.BuyerFilter{MinScore: &minScore})
	require.NoError(t, err)
	assert.Len(t, strong, 2)

	turmeric, err := repo.List(ctx, dto.BuyerFilter{Q: "TURMERIC"})
	require.NoError(t, err)
	require.Len(t, turmeric, 1)
	assert.Equal(t, "Konkan Masala Exports", turmeric[0].CompanyName)

	page, err := repo.List(ctx, dto.BuyerFilter{Page: 2, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Haldi House", page[0].CompanyName)
}
