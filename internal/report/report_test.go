package report

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"assetbook/internal/events"
	"assetbook/internal/models"
	"assetbook/internal/store"
)

func TestMonthlyReport(t *testing.T) {
	st, err := store.New(":memory:", events.NewBus())
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.CreateOrganization(ctx, &models.Organization{ID: "org-1", Name: "Harbor Rentals"}))

	asset := &models.Asset{
		ID: "a-1", OrganizationID: "org-1", Name: "Boat",
		BookingType: models.BookingFullDay, PricePerDay: 200, AgentFee: 20,
	}
	require.NoError(t, st.CreateAsset(ctx, asset))

	price := 150.0
	require.NoError(t, st.CreateBooking(ctx, asset, &models.Booking{
		ID: "b-1", OrganizationID: "org-1", AssetID: "a-1",
		Date:       time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		ClientName: "Ivanov", CustomPrice: &price,
	}))

	logger := zerolog.New(io.Discard)
	gen := NewGenerator(st, t.TempDir(), &logger)

	path, err := gen.Monthly(ctx, "org-1", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	date, err := f.GetCellValue("Bookings", "A2")
	require.NoError(t, err)
	assert.Equal(t, "2026-09-10", date)

	name, err := f.GetCellValue("Bookings", "B2")
	require.NoError(t, err)
	assert.Equal(t, "Boat", name)

	// Custom price overrides the asset day rate in the summary.
	revenue, err := f.GetCellValue("Summary", "C2")
	require.NoError(t, err)
	assert.Equal(t, "150", revenue)
}

func TestCleanupOldReports(t *testing.T) {
	dir := t.TempDir()
	logger := zerolog.New(io.Discard)
	gen := NewGenerator(nil, dir, &logger)

	stale := filepath.Join(dir, "org-1_2025-01.xlsx")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	old := time.Now().AddDate(0, 0, -60)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh := filepath.Join(dir, "org-1_2026-08.xlsx")
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))

	assert.Equal(t, 0, gen.CleanupOldReports(0))

	assert.Equal(t, 1, gen.CleanupOldReports(30))
	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}
