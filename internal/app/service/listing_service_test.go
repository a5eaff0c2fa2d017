package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/internal/app/repository"
	"github.com/alansalbums/alans-albums-backend/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// memoryImageStore keeps uploads in memory
type memoryImageStore struct {
	objects map[string]int64
	deleted []string
	failOn  string
}

func newMemoryImageStore() *memoryImageStore {
	return &memoryImageStore{objects: map[string]int64{}}
}

func (s *memoryImageStore) Upload(ctx context.Context, folder, filename, contentType string, body io.Reader, size int64) (*storage.StoredObject, error) {
	if filename == s.failOn {
		return nil, errors.New("upload failed")
	}
	key := fmt.Sprintf("%s/%d-%s", folder, len(s.objects), filename)
	s.objects[key] = size
	return &storage.StoredObject{Key: key, URL: "https://cdn.test/" + key}, nil
}

func (s *memoryImageStore) Delete(ctx context.Context, key string) error {
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *memoryImageStore) PresignUpload(ctx context.Context, filename, contentType, folder string) (*storage.PresignedURLResponse, error) {
	return &storage.PresignedURLResponse{UploadURL: "https://upload.test/" + filename, Key: folder + "/" + filename}, nil
}

func jpeg(name string) ImageUpload {
	return ImageUpload{Filename: name, ContentType: "image/jpeg", Size: 1024, Body: bytes.NewReader([]byte("jpeg"))}
}

func setupListingServiceTest(t *testing.T) (ListingService, *memoryImageStore, *gorm.DB) {
	testDB := setupServiceDB(t)
	images := newMemoryImageStore()
	return NewListingService(repository.NewListingRepository(testDB), images), images, testDB
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestListingService_CreateListing(t *testing.T) {
	svc, _, _ := setupListingServiceTest(t)

	tests := []struct {
		name    string
		input   ListingInput
		wantErr error
	}{
		{
			name:  "Valid listing",
			input: ListingInput{Artist: " Miles Davis ", Title: "Kind Of Blue", Price: decimalPtr("24.999"), Stock: intPtr(2), Condition: model.ConditionVeryGoodPlus},
		},
		{
			name:  "Title only",
			input: ListingInput{Title: "Untitled Bootleg"},
		},
		{
			name:    "Missing artist and title",
			input:   ListingInput{Price: decimalPtr("10")},
			wantErr: ErrValidation,
		},
		{
			name:    "Negative price",
			input:   ListingInput{Title: "x", Price: decimalPtr("-1")},
			wantErr: ErrValidation,
		},
		{
			name:    "Negative stock",
			input:   ListingInput{Title: "x", Stock: intPtr(-1)},
			wantErr: ErrValidation,
		},
		{
			name:    "Unknown condition",
			input:   ListingInput{Title: "x", Condition: "EX"},
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listing, err := svc.CreateListing(1, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, listing)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, listing.ID)
			require.NotNil(t, listing.CreatedByID)
		})
	}

	page, err := svc.ListListings(ListingListOptions{Artist: "miles"})
	require.NoError(t, err)
	require.Len(t, page.Listings, 1)
	assert.Equal(t, "Miles Davis", page.Listings[0].Artist)
	assert.Equal(t, "25.00", page.Listings[0].Price.Decimal.StringFixed(2))
}

func TestListingService_CreateSoldOutNeverFeatured(t *testing.T) {
	svc, _, _ := setupListingServiceTest(t)

	listing, err := svc.CreateListing(1, ListingInput{Title: "Pink Moon", Stock: intPtr(0), Featured: true})
	require.NoError(t, err)
	assert.False(t, listing.Featured)
}

func TestListingService_QuickUpdate(t *testing.T) {
	svc, _, _ := setupListingServiceTest(t)
	listing, err := svc.CreateListing(1, ListingInput{Artist: "Can", Title: "Tago Mago", Stock: intPtr(3), Featured: true})
	require.NoError(t, err)

	nm := model.ConditionNearMint
	updated, err := svc.QuickUpdate(listing.ID, QuickUpdate{Price: decimalPtr("30"), Condition: &nm})
	require.NoError(t, err)
	assert.Equal(t, "30.00", updated.Price.Decimal.StringFixed(2))
	assert.Equal(t, model.ConditionNearMint, updated.Condition)
	assert.True(t, updated.Featured)

	updated, err = svc.QuickUpdate(listing.ID, QuickUpdate{Stock: intPtr(0)})
	require.NoError(t, err)
	assert.False(t, updated.Featured)

	reloaded, err := svc.GetListing(listing.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.Featured)
	assert.Equal(t, 0, *reloaded.Stock)

	_, err = svc.QuickUpdate(listing.ID, QuickUpdate{Stock: intPtr(-2)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.QuickUpdate(9999, QuickUpdate{})
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestListingService_UpdateListing(t *testing.T) {
	svc, _, _ := setupListingServiceTest(t)
	listing, err := svc.CreateListing(1, ListingInput{Artist: "Can", Title: "Tago Mago", Price: decimalPtr("20")})
	require.NoError(t, err)

	updated, err := svc.UpdateListing(listing.ID, ListingInput{Artist: "Can", Title: "Ege Bamyasi", CatalogNumber: "UAS 29414"})
	require.NoError(t, err)
	assert.Equal(t, "Ege Bamyasi", updated.Title)
	assert.False(t, updated.Price.Valid)
	assert.Equal(t, "Can - Ege Bamyasi (UAS 29414)", updated.String())

	_, err = svc.UpdateListing(9999, ListingInput{Title: "x"})
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestListingService_Images(t *testing.T) {
	svc, images, _ := setupListingServiceTest(t)
	ctx := context.Background()
	listing, err := svc.CreateListing(1, ListingInput{Artist: "Can", Title: "Tago Mago"})
	require.NoError(t, err)

	image, err := svc.AddImage(ctx, listing.ID, 1, jpeg("front.jpg"), " Front ", 0)
	require.NoError(t, err)
	assert.Equal(t, "Front", image.Caption)
	assert.Len(t, images.objects, 1)

	_, err = svc.AddImage(ctx, listing.ID, 1, ImageUpload{Filename: "x.gif", ContentType: "image/gif", Size: 10}, "", 1)
	assert.ErrorIs(t, err, ErrValidation)

	images.failOn = "back.jpg"
	_, err = svc.AddImage(ctx, listing.ID, 1, jpeg("back.jpg"), "", 1)
	assert.ErrorIs(t, err, ErrExternalService)

	_, err = svc.AddImage(ctx, 9999, 1, jpeg("front.jpg"), "", 0)
	assert.ErrorIs(t, err, ErrListingNotFound)

	require.NoError(t, svc.DeleteImage(ctx, listing.ID, image.ID))
	assert.Empty(t, images.objects)
	assert.ErrorIs(t, svc.DeleteImage(ctx, listing.ID, image.ID), ErrListingImageNotFound)
}

func TestListingService_DeleteListing(t *testing.T) {
	svc, images, _ := setupListingServiceTest(t)
	ctx := context.Background()
	listing, err := svc.CreateListing(1, ListingInput{Artist: "Can", Title: "Tago Mago"})
	require.NoError(t, err)
	_, err = svc.AddImage(ctx, listing.ID, 1, jpeg("front.jpg"), "", 0)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteListing(ctx, listing.ID))
	assert.Len(t, images.deleted, 1)

	_, err = svc.GetListing(listing.ID)
	assert.ErrorIs(t, err, ErrListingNotFound)
	assert.ErrorIs(t, svc.DeleteListing(ctx, listing.ID), ErrListingNotFound)
}

func TestListingService_ListListingsPaging(t *testing.T) {
	svc, _, _ := setupListingServiceTest(t)
	for i := 0; i < 5; i++ {
		_, err := svc.CreateListing(1, ListingInput{Artist: "Artist", Title: fmt.Sprintf("Record %d", i), Featured: i%2 == 0})
		require.NoError(t, err)
	}

	page, err := svc.ListListings(ListingListOptions{Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Len(t, page.Listings, 2)
	assert.Equal(t, 2, page.Page)

	page, err = svc.ListListings(ListingListOptions{FeaturedOnly: true, PerPage: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, maxPerPage, page.PerPage)
}

func TestListingService_UnfeatureOutOfStock(t *testing.T) {
	svc, _, testDB := setupListingServiceTest(t)
	listing, err := svc.CreateListing(1, ListingInput{Title: "Spiderland", Stock: intPtr(1), Featured: true})
	require.NoError(t, err)

	// bypass hooks the way a bulk import would
	require.NoError(t, testDB.Exec("UPDATE listings SET stock = 0 WHERE id = ?", listing.ID).Error)

	updated, err := svc.UnfeatureOutOfStock()
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	reloaded, err := svc.GetListing(listing.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.Featured)
}

func TestStoreImages_SkipsFailures(t *testing.T) {
	images := newMemoryImageStore()
	images.failOn = "broken.jpg"

	stored := storeImages(context.Background(), images, "messages", []ImageUpload{
		jpeg("one.jpg"),
		{Filename: "huge.png", ContentType: "image/png", Size: storage.MaxImageSize + 1},
		{Filename: "doc.pdf", ContentType: "application/pdf", Size: 10},
		jpeg("broken.jpg"),
		jpeg("two.jpg"),
	})
	assert.Len(t, stored, 2)
}
