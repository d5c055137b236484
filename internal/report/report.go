// Package report produces monthly booking workbooks for an organization.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"assetbook/internal/models"
	"assetbook/internal/store"
)

var bookingColumns = []string{
	"Date", "Asset", "Slot", "Status", "Client", "Booked By", "People", "Price", "Agent Fee",
}

var summaryColumns = []string{"Asset", "Bookings", "Revenue"}

// Generator writes monthly xlsx reports into a directory.
type Generator struct {
	store  *store.Store
	dir    string
	logger *zerolog.Logger
}

func NewGenerator(st *store.Store, dir string, logger *zerolog.Logger) *Generator {
	return &Generator{store: st, dir: dir, logger: logger}
}

// Filename builds the report file name for an organization and month.
func Filename(orgID string, month time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", orgID, month.Format("2006-01"))
}

// Monthly writes the booking report for the month containing ref and
// returns the file path. Cancelled bookings are listed but carry no revenue.
func (g *Generator) Monthly(ctx context.Context, orgID string, ref time.Time) (string, error) {
	from := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)

	assets, err := g.store.ListAssets(ctx, orgID)
	if err != nil {
		return "", err
	}
	bookings, err := g.store.ListBookingsInRange(ctx, orgID, from, to)
	if err != nil {
		return "", err
	}

	assetsByID := make(map[string]*models.Asset, len(assets))
	for i := range assets {
		assetsByID[assets[i].ID] = &assets[i]
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := g.writeBookingsSheet(f, bookings, assetsByID); err != nil {
		return "", err
	}
	if err := g.writeSummarySheet(f, assets, bookings, assetsByID); err != nil {
		return "", err
	}

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(g.dir, Filename(orgID, from))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}

	g.logger.Info().
		Str("org_id", orgID).
		Str("path", path).
		Int("bookings", len(bookings)).
		Msg("monthly report written")
	return path, nil
}

func (g *Generator) writeBookingsSheet(f *excelize.File, bookings []models.Booking, assets map[string]*models.Asset) error {
	const sheet = "Bookings"
	f.SetSheetName("Sheet1", sheet)

	if err := writeHeader(f, sheet, bookingColumns); err != nil {
		return err
	}

	for i, b := range bookings {
		assetName := b.AssetID
		if a, ok := assets[b.AssetID]; ok {
			assetName = a.Name
		}
		slot := ""
		if b.TimeSlot != nil {
			slot = b.TimeSlot.String()
		}
		people := ""
		if b.NumberOfPeople != nil {
			people = fmt.Sprintf("%d", *b.NumberOfPeople)
		}

		row := []any{
			models.FormatDate(b.Date), assetName, slot, string(b.Status),
			b.ClientName, b.BookedBy, people,
			bookingPrice(&b, assets[b.AssetID]), bookingAgentFee(&b, assets[b.AssetID]),
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) writeSummarySheet(f *excelize.File, assets []models.Asset, bookings []models.Booking, byID map[string]*models.Asset) error {
	const sheet = "Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	if err := writeHeader(f, sheet, summaryColumns); err != nil {
		return err
	}

	counts := make(map[string]int)
	revenue := make(map[string]float64)
	for i := range bookings {
		b := &bookings[i]
		if b.Status == models.StatusCancelled {
			continue
		}
		counts[b.AssetID]++
		revenue[b.AssetID] += bookingPrice(b, byID[b.AssetID])
	}

	for i := range assets {
		a := &assets[i]
		row := []any{a.Name, counts[a.ID], revenue[a.ID]}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

// CleanupOldReports removes report files past the retention window and
// returns the number removed.
func (g *Generator) CleanupOldReports(retentionDays int) int {
	if retentionDays <= 0 {
		return 0
	}

	files, err := os.ReadDir(g.dir)
	if err != nil {
		g.logger.Error().Err(err).Msg("failed to read report directory for cleanup")
		return 0
	}

	removed := 0
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".xlsx" {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			g.logger.Info().Str("file", file.Name()).Msg("deleting old report")
			if os.Remove(filepath.Join(g.dir, file.Name())) == nil {
				removed++
			}
		}
	}
	return removed
}

func bookingPrice(b *models.Booking, asset *models.Asset) float64 {
	if b.CustomPrice != nil {
		return *b.CustomPrice
	}
	if asset != nil {
		return asset.PricePerDay
	}
	return 0
}

func bookingAgentFee(b *models.Booking, asset *models.Asset) float64 {
	if b.CustomAgentFee != nil {
		return *b.CustomAgentFee
	}
	if asset != nil {
		return asset.AgentFee
	}
	return 0
}

func writeHeader(f *excelize.File, sheet string, columns []string) error {
	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = f.SetCellStyle(sheet, startCell, endCell, style)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, row []any) error {
	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, val); err != nil {
			return err
		}
	}
	return nil
}
