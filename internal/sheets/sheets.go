// Package sheets mirrors an organization's bookings into a Google
// Spreadsheet so staff who live in Sheets see the same occupancy the
// dashboard shows.
package sheets

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"assetbook/internal/availability"
	"assetbook/internal/models"
)

const (
	bookingsSheet = "Bookings"
	scheduleSheet = "Schedule"
)

var bookingHeader = []any{
	"ID", "Asset", "Date", "Slot", "Status", "Client", "Booked By", "Created", "Updated",
}

// SheetsService pushes booking rows and the occupancy grid to one
// spreadsheet. The row cache, seeded by each full sync, pins where every
// booking lives so single-booking updates write one row instead of
// rewriting the whole sheet.
type SheetsService struct {
	svc           *sheets.Service
	spreadsheetID string
	logger        *zerolog.Logger

	cacheMu  sync.Mutex
	rowCache map[string]int
}

// NewSheetsService authorizes with a service account key file.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID string, logger *zerolog.Logger) (*SheetsService, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	conf, err := google.JWTConfigFromJSON(data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}

	return &SheetsService{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		logger:        logger,
		rowCache:      make(map[string]int),
	}, nil
}

// SyncBookings rewrites the booking list sheet from scratch and re-seeds
// the row cache with each booking's position. Cancelled bookings are
// excluded.
func (s *SheetsService) SyncBookings(ctx context.Context, bookings []models.Booking, assets []models.Asset) error {
	active := s.filterActiveBookings(bookings)
	names := assetNames(assets)

	values := make([][]any, 0, len(active)+1)
	values = append(values, bookingHeader)
	for i := range active {
		values = append(values, bookingRowValues(&active[i], names))
	}

	_, err := s.svc.Spreadsheets.Values.Update(
		s.spreadsheetID,
		fmt.Sprintf("%s!A1", bookingsSheet),
		&sheets.ValueRange{Values: values},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sync bookings sheet: %w", err)
	}

	s.resetCache(active)
	s.logger.Info().Int("rows", len(active)).Msg("bookings sheet synced")
	return nil
}

// UpsertBookingRow writes one booking's row in place, using the cached
// position instead of re-scanning the sheet. Unknown bookings are appended
// below the last occupied row; cancelled bookings are removed instead.
func (s *SheetsService) UpsertBookingRow(ctx context.Context, b *models.Booking, assets []models.Asset) error {
	if b.Status == models.StatusCancelled {
		return s.RemoveBookingRow(ctx, b.ID)
	}

	row, ok := s.getCachedRow(b.ID)
	if !ok {
		row = s.nextFreeRow()
	}

	_, err := s.svc.Spreadsheets.Values.Update(
		s.spreadsheetID,
		fmt.Sprintf("%s!A%d", bookingsSheet, row),
		&sheets.ValueRange{Values: [][]any{bookingRowValues(b, assetNames(assets))}},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("upsert booking row: %w", err)
	}

	s.setCachedRow(b.ID, row)
	return nil
}

// RemoveBookingRow blanks a booking's row. The row itself stays so the
// cached positions of the other bookings remain valid until the next full
// sync compacts the sheet.
func (s *SheetsService) RemoveBookingRow(ctx context.Context, bookingID string) error {
	row, ok := s.getCachedRow(bookingID)
	if !ok {
		return nil
	}

	blank := make([]any, len(bookingHeader))
	for i := range blank {
		blank[i] = ""
	}
	_, err := s.svc.Spreadsheets.Values.Update(
		s.spreadsheetID,
		fmt.Sprintf("%s!A%d", bookingsSheet, row),
		&sheets.ValueRange{Values: [][]any{blank}},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("remove booking row: %w", err)
	}

	s.deleteCachedRow(bookingID)
	return nil
}

// PushSchedule writes the occupancy grid: one row per asset, one column
// per date, cells carrying who holds the day or how many slots are left.
func (s *SheetsService) PushSchedule(ctx context.Context, assets []models.Asset, bookings []models.Booking, start, end time.Time) error {
	headers, cols := s.prepareDateHeaders(start, end)

	values := make([][]any, 0, len(assets)+1)
	values = append(values, headers)
	for i := range assets {
		asset := &assets[i]
		row := make([]any, 0, cols+1)
		row = append(row, asset.Name)
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			res := availability.Resolve(asset, d, bookings)
			row = append(row, formatScheduleCell(asset, res))
		}
		values = append(values, row)
	}

	_, err := s.svc.Spreadsheets.Values.Update(
		s.spreadsheetID,
		fmt.Sprintf("%s!A1", scheduleSheet),
		&sheets.ValueRange{Values: values},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("push schedule sheet: %w", err)
	}

	s.logger.Info().Int("assets", len(assets)).Int("days", cols).Msg("schedule sheet pushed")
	return nil
}

func (s *SheetsService) filterActiveBookings(bookings []models.Booking) []models.Booking {
	active := make([]models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.Status == models.StatusCancelled {
			continue
		}
		active = append(active, b)
	}
	return active
}

func bookingRowValues(b *models.Booking, assetNames map[string]string) []any {
	slot := ""
	if b.TimeSlot != nil {
		slot = b.TimeSlot.String()
	}
	name := assetNames[b.AssetID]
	if name == "" {
		name = b.AssetID
	}
	return []any{
		b.ID,
		name,
		models.FormatDate(b.Date),
		slot,
		string(b.Status),
		b.ClientName,
		b.BookedBy,
		b.CreatedAt.Format("2006-01-02 15:04:05"),
		b.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

// prepareDateHeaders builds the grid header row: asset column plus one
// "DD.MM" column per date, inclusive.
func (s *SheetsService) prepareDateHeaders(start, end time.Time) ([]any, int) {
	headers := []any{"Asset"}
	cols := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		headers = append(headers, d.Format("02.01"))
		cols++
	}
	return headers, cols
}

func formatScheduleCell(asset *models.Asset, res availability.DayAvailability) string {
	if asset.BookingType == models.BookingFullDay {
		if res.Occupant != nil {
			if res.Occupant.ClientName != "" {
				return res.Occupant.ClientName
			}
			return res.Occupant.BookedBy
		}
		return "free"
	}

	free := len(res.FreeSlots())
	if free == 0 {
		return "full"
	}
	return fmt.Sprintf("%d/%d free", free, len(asset.TimeSlots))
}

func assetNames(assets []models.Asset) map[string]string {
	names := make(map[string]string, len(assets))
	for i := range assets {
		names[assets[i].ID] = assets[i].Name
	}
	return names
}

func (s *SheetsService) getCachedRow(bookingID string) (int, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	row, ok := s.rowCache[bookingID]
	return row, ok
}

func (s *SheetsService) setCachedRow(bookingID string, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[bookingID] = row
}

func (s *SheetsService) deleteCachedRow(bookingID string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	delete(s.rowCache, bookingID)
}

// nextFreeRow is the first row below every cached position; row 2 when the
// cache is empty, row 1 being the header.
func (s *SheetsService) nextFreeRow() int {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	next := 2
	for _, row := range s.rowCache {
		if row >= next {
			next = row + 1
		}
	}
	return next
}

// resetCache re-seeds the row cache after a full rewrite: booking i sits on
// row i+2 under the header.
func (s *SheetsService) resetCache(active []models.Booking) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int, len(active))
	for i := range active {
		s.rowCache[active[i].ID] = i + 2
	}
}

// ClearCache drops the row cache, forcing the next sync to rewrite.
func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)
}
