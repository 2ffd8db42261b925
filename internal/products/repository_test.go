package product

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:products_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Product{}, &models.InventorySize{}))
	return conn
}

func TestCreateDerivesDiscountedPrice(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	seller := uuid.New()

	product := &models.Product{
		SellerID:        &seller,
		Title:           "Headphones",
		Price:           200000,
		DiscountPercent: 25,
		Sizes:           []models.InventorySize{{Size: "STD", Quantity: 4}},
	}
	require.NoError(t, repo.Create(context.Background(), product))
	assert.Equal(t, int64(150000), product.DiscountedPrice)

	loaded, err := repo.FindByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150000), loaded.DiscountedPrice)
	require.Len(t, loaded.Sizes, 1)
	assert.Equal(t, 4, loaded.Sizes[0].Quantity)
}

func TestCreateRejectsInvalidDiscount(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	err := repo.Create(context.Background(), &models.Product{Title: "x", Price: 10, DiscountPercent: 150})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestFindByIDNotFound(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	_, err := repo.FindByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestFindByIDsSkipsMissing(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	a := &models.Product{Title: "A", Price: 10}
	b := &models.Product{Title: "B", Price: 20}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	found, err := repo.FindByIDs(ctx, []uuid.UUID{a.ID, a.ID, b.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, "A", found[a.ID].Title)
	assert.Equal(t, "B", found[b.ID].Title)

	empty, err := repo.FindByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
