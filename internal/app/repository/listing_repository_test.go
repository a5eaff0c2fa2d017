package repository

import (
	"testing"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/internal/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func intPtr(v int) *int { return &v }

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func setupListingTest(t *testing.T) (*gorm.DB, ListingRepository) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)

	repo := NewListingRepository(testDB)
	return testDB, repo
}

func TestListingRepository_Create(t *testing.T) {
	testDB, repo := setupListingTest(t)
	defer db.CleanupTestDB(testDB)

	listing := &model.Listing{
		Artist:    "Miles Davis",
		Title:     "Kind Of Blue",
		Price:     price("24.99"),
		Stock:     intPtr(3),
		Condition: model.ConditionVeryGoodPlus,
	}

	err := repo.Create(listing)
	assert.NoError(t, err)
	assert.NotZero(t, listing.ID)

	found, err := repo.FindByID(listing.ID)
	require.NoError(t, err)
	assert.Equal(t, "24.99", found.Price.Decimal.StringFixed(2))
	assert.Equal(t, 3, *found.Stock)
}

func TestListingRepository_BulkCreate(t *testing.T) {
	testDB, repo := setupListingTest(t)
	defer db.CleanupTestDB(testDB)

	listings := []model.Listing{
		{Artist: "Nina Simone", Title: "Pastel Blues", Price: price("18.00")},
		{Artist: "Can", Title: "Tago Mago", Price: price("32.50"), Stock: intPtr(1)},
		{Artist: "Talk Talk", Title: "Laughing Stock", Price: price("40.00"), Stock: intPtr(0), Featured: true},
	}
	require.NoError(t, repo.BulkCreate(listings, 2))
	require.NoError(t, repo.BulkCreate(nil, 2))

	all, err := repo.FindAll()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	var laughingStock model.Listing
	require.NoError(t, testDB.Where("title = ?", "Laughing Stock").First(&laughingStock).Error)
	assert.False(t, laughingStock.Featured)
}

func TestListingRepository_SaveUnfeaturesAtZeroStock(t *testing.T) {
	testDB, repo := setupListingTest(t)
	defer db.CleanupTestDB(testDB)

	listing := &model.Listing{Artist: "Nina Simone", Title: "Pastel Blues", Stock: intPtr(1), Featured: true}
	require.NoError(t, repo.Create(listing))

	listing.Stock = intPtr(0)
	require.NoError(t, repo.Update(listing))

	found, err := repo.FindByID(listing.ID)
	require.NoError(t, err)
	assert.False(t, found.Featured)
}

func TestListingRepository_UnfeatureOutOfStock(t *testing.T) {
	testDB, repo := setupListingTest(t)
	defer db.CleanupTestDB(testDB)

	soldOut := &model.Listing{Title: "Sold Out", Stock: intPtr(2), Featured: true}
	unlimited := &model.Listing{Title: "Unlimited", Featured: true}
	require.NoError(t, repo.Create(soldOut))
	require.NoError(t, repo.Create(unlimited))

	// bypass hooks the way a stock decrement does
	require.NoError(t, testDB.Model(&model.Listing{}).Where("id = ?", soldOut.ID).Update("stock", 0).Error)

	updated, err := repo.UnfeatureOutOfStock()
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	found, err := repo.FindByID(soldOut.ID)
	require.NoError(t, err)
	assert.False(t, found.Featured)

	found, err = repo.FindByID(unlimited.ID)
	require.NoError(t, err)
	assert.True(t, found.Featured)
}

func TestListingRepository_FindWithFilter(t *testing.T) {
	testDB, repo := setupListingTest(t)
	defer db.CleanupTestDB(testDB)

	listings := []*model.Listing{
		{Artist: "John Coltrane", Title: "Blue Train", Formats: "Vinyl, LP, Album", Condition: model.ConditionNearMint, Featured: true, Stock: intPtr(1)},
		{Artist: "John Coltrane", Title: "Giant Steps", Formats: "Vinyl, LP", Condition: model.ConditionVeryGood, Stock: intPtr(0)},
		{Artist: "Joni Mitchell", Title: "Blue", Formats: "CD, Album", Condition: model.ConditionNearMint},
	}
	for _, l := range listings {
		require.NoError(t, repo.Create(l))
	}

	featured := true
	tests := []struct {
		name   string
		filter ListingFilter
		want   int
	}{
		{name: "All", filter: ListingFilter{}, want: 3},
		{name: "Artist is case insensitive", filter: ListingFilter{Artist: "coltrane"}, want: 2},
		{name: "Format", filter: ListingFilter{Format: "vinyl"}, want: 2},
		{name: "Condition", filter: ListingFilter{Condition: model.ConditionNearMint}, want: 2},
		{name: "Featured", filter: ListingFilter{Featured: &featured}, want: 1},
		{name: "In stock only", filter: ListingFilter{InStockOnly: true}, want: 2},
		{name: "Search", filter: ListingFilter{Search: "blue"}, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, total, err := repo.FindWithFilter(tt.filter)
			require.NoError(t, err)
			assert.Len(t, found, tt.want)
			assert.Equal(t, int64(tt.want), total)
		})
	}

	t.Run("Pagination keeps total", func(t *testing.T) {
		found, total, err := repo.FindWithFilter(ListingFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, found, 2)
		assert.Equal(t, int64(3), total)
		// newest first
		assert.Equal(t, "Blue", found[0].Title)
	})
}

func TestListingRepository_ImagesOrdered(t *testing.T) {
	testDB, repo := setupListingTest(t)
	defer db.CleanupTestDB(testDB)

	listing := &model.Listing{Title: "Hounds Of Love"}
	require.NoError(t, repo.Create(listing))

	require.NoError(t, repo.AddImage(&model.ListingImage{ListingID: listing.ID, URL: "b.jpg", Order: 2}))
	require.NoError(t, repo.AddImage(&model.ListingImage{ListingID: listing.ID, URL: "a.jpg", Order: 1}))

	found, err := repo.FindByID(listing.ID)
	require.NoError(t, err)
	require.Len(t, found.Images, 2)
	assert.Equal(t, "a.jpg", found.Images[0].URL)
	assert.Equal(t, "b.jpg", found.Images[1].URL)
}

func TestListingRepository_Delete(t *testing.T) {
	testDB, repo := setupListingTest(t)
	defer db.CleanupTestDB(testDB)

	listing := &model.Listing{Artist: "Kate Bush", Title: "The Kick Inside", Price: price("15.00")}
	require.NoError(t, repo.Create(listing))
	require.NoError(t, repo.AddImage(&model.ListingImage{ListingID: listing.ID, URL: "cover.jpg"}))

	order := &model.Order{StripeSessionID: "cs_1", Paid: true}
	require.NoError(t, testDB.Create(order).Error)
	item := &model.OrderItem{OrderID: order.ID, ListingID: &listing.ID, Title: listing.DisplayName(), Quantity: 1, UnitPrice: decimal.RequireFromString("15.00")}
	require.NoError(t, testDB.Create(item).Error)

	require.NoError(t, repo.Delete(listing.ID))

	_, err := repo.FindByID(listing.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var images int64
	testDB.Model(&model.ListingImage{}).Where("listing_id = ?", listing.ID).Count(&images)
	assert.Zero(t, images)

	var kept model.OrderItem
	require.NoError(t, testDB.First(&kept, item.ID).Error)
	assert.Nil(t, kept.ListingID)
	assert.Equal(t, "Kate Bush - The Kick Inside", kept.Title)

	assert.ErrorIs(t, repo.Delete(listing.ID), gorm.ErrRecordNotFound)
}
