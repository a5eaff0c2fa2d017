package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/alansalbums/alans-albums-backend/config"
	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/internal/app/repository"
	"github.com/alansalbums/alans-albums-backend/internal/db"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Columns are matched by header name, case-insensitively.
// artist, title and price are required; the rest are optional.
var requiredColumns = []string{"artist", "title", "price"}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run cmd/seed/main.go <xlsx_file_path>")
	}

	filePath := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	listingRepo := repository.NewListingRepository(db.GetDB())

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	listings, err := readListingsFromXLSX(filePath)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}

	fmt.Printf("Total listings to import: %d\n", len(listings))
	if len(listings) == 0 {
		return
	}

	fmt.Print("Do you want to proceed with the import? (yes/no): ")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" && confirm != "y" {
		fmt.Println("Import cancelled.")
		return
	}

	batchSize := 500
	fmt.Printf("Starting bulk import with batch size: %d\n", batchSize)
	if err := listingRepo.BulkCreate(listings, batchSize); err != nil {
		log.Fatal("Failed to bulk create listings:", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Total listings imported: %d\n", len(listings))
}

func readListingsFromXLSX(filePath string) ([]model.Listing, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no sheets found in XLSX file")
	}

	fmt.Printf("Reading sheet: %s\n", sheetName)

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data found in XLSX file")
	}

	columns := make(map[string]int, len(rows[0]))
	for i, header := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}

	var listings []model.Listing
	seen := make(map[string]bool)
	skippedCount := 0

	for i, row := range rows[1:] {
		listing, err := parseListingRow(columns, row)
		if err != nil {
			fmt.Printf("  row %d skipped: %v\n", i+2, err)
			skippedCount++
			continue
		}

		// the same pressing in the same grade is one listing
		key := strings.ToLower(fmt.Sprintf("%s|%s|%s|%s", listing.Artist, listing.Title, listing.CatalogNumber, listing.Condition))
		if seen[key] {
			skippedCount++
			continue
		}
		seen[key] = true

		listings = append(listings, *listing)
	}

	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Total rows: %d\n", len(rows)-1)
	fmt.Printf("  Valid listings: %d\n", len(listings))
	fmt.Printf("  Skipped rows: %d\n", skippedCount)

	return listings, nil
}

func parseListingRow(columns map[string]int, row []string) (*model.Listing, error) {
	cell := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	listing := &model.Listing{
		Artist:        cell("artist"),
		Title:         cell("title"),
		Country:       cell("country"),
		CatalogNumber: cell("catalog_number"),
		Formats:       cell("format"),
		ReleaseNotes:  cell("notes"),
		Condition:     model.Condition(strings.ToUpper(cell("condition"))),
	}
	if listing.Artist == "" && listing.Title == "" {
		return nil, errors.New("artist or title is required")
	}
	if !listing.Condition.Valid() {
		return nil, fmt.Errorf("unknown condition %q", listing.Condition)
	}

	price, err := decimal.NewFromString(strings.TrimPrefix(cell("price"), "£"))
	if err != nil || price.IsNegative() {
		return nil, fmt.Errorf("invalid price %q", cell("price"))
	}
	listing.Price = decimal.NewNullDecimal(price.Round(2))

	if v := cell("stock"); v != "" {
		stock, err := strconv.Atoi(v)
		if err != nil || stock < 0 {
			return nil, fmt.Errorf("invalid stock %q", v)
		}
		listing.Stock = &stock
	}

	if v := cell("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", v)
		}
		listing.Year = &year
	}

	if v := cell("release_id"); v != "" {
		releaseID, err := strconv.Atoi(v)
		if err != nil || releaseID <= 0 {
			return nil, fmt.Errorf("invalid release_id %q", v)
		}
		listing.ReleaseID = &releaseID
	}

	switch strings.ToLower(cell("featured")) {
	case "yes", "y", "true", "1":
		listing.Featured = true
	}

	return listing, nil
}
