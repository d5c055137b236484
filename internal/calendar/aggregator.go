// Package calendar derives per-day availability summaries across all assets
// of an organization for calendar-strip rendering.
//
// Summaries are a pure, re-derivable projection over the current asset and
// booking snapshots. They are never a source of truth: every snapshot push
// triggers a full recomputation, not an incremental patch.
package calendar

import (
	"time"

	"assetbook/internal/availability"
	"assetbook/internal/models"
)

// Navigation bounds for the calendar strip, relative to "today".
const (
	RangeBackYears    = 1
	RangeForwardYears = 2
)

// Band is the occupancy color band for a day.
type Band string

const (
	BandFull   Band = "full"   // percentage == 100
	BandLow    Band = "low"    // percentage <= 33
	BandMedium Band = "medium" // percentage <= 66
	BandHigh   Band = "high"   // booked but not full
)

// DaySummary is the aggregated occupancy of one calendar date.
type DaySummary struct {
	Date           time.Time `json:"date"`
	BookedCount    int       `json:"bookedCount"`
	AvailableCount int       `json:"availableCount"`
	Percentage     float64   `json:"percentage"`
	Band           Band      `json:"band"`
}

// BandFor maps a booked percentage to its color band. The thresholds are a
// business rule and must match the calendar UI exactly.
func BandFor(percentage float64) Band {
	switch {
	case percentage == 100:
		return BandFull
	case percentage <= 33:
		return BandLow
	case percentage <= 66:
		return BandMedium
	default:
		return BandHigh
	}
}

// Day aggregates one date across the asset list. An asset counts as booked
// when it has no free capacity left that day (full-day occupant present, or
// every catalog slot taken).
func Day(date time.Time, assets []models.Asset, bookings []models.Booking) DaySummary {
	booked := 0
	for i := range assets {
		res := availability.Resolve(&assets[i], date, bookings)
		if !res.Available {
			booked++
		}
	}

	total := len(assets)
	summary := DaySummary{
		Date:           models.DateOnly(date),
		BookedCount:    booked,
		AvailableCount: total - booked,
	}
	if total > 0 {
		summary.Percentage = float64(booked) / float64(total) * 100
	}
	summary.Band = BandFor(summary.Percentage)
	return summary
}

// Range aggregates every date in [from, to] inclusive. Running it twice on
// identical input yields identical output.
func Range(from, to time.Time, assets []models.Asset, bookings []models.Booking) []DaySummary {
	from = models.DateOnly(from)
	to = models.DateOnly(to)

	var out []DaySummary
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, Day(d, assets, bookings))
	}
	return out
}

// DefaultRange returns the calendar navigation bounds around now.
func DefaultRange(now time.Time) (from, to time.Time) {
	day := models.DateOnly(now)
	return day.AddDate(-RangeBackYears, 0, 0), day.AddDate(RangeForwardYears, 0, 0)
}
