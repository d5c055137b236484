// Package availability computes current occupancy for an asset on a date.
//
// Resolution is pure and deterministic over its inputs: the caller supplies
// the asset and the live booking snapshot, and may memoize per (asset, date)
// key if it wants caching. The asset's materialized status field is never
// consulted; only the booking set is authoritative.
package availability

import (
	"time"

	"assetbook/internal/models"
)

// SlotState describes one catalog slot's occupancy for a date.
type SlotState struct {
	Slot     models.TimeSlot `json:"slot"`
	Occupied bool            `json:"occupied"`
	BookedBy string          `json:"bookedBy,omitempty"`
}

// DayAvailability is the resolved occupancy of one asset on one date.
type DayAvailability struct {
	Available bool `json:"available"`
	// FullyBooked is true when every catalog slot (or the day itself, for
	// full-day assets) is occupied.
	FullyBooked bool `json:"fullyBooked"`
	// Occupant is the sole occupying booking of a full-day asset, if any.
	Occupant *models.Booking `json:"occupant,omitempty"`
	// Slots is the per-slot breakdown for time-sliced assets, in catalog order.
	Slots []SlotState `json:"slots,omitempty"`
}

// FreeSlots returns the catalog slots still open for booking.
func (d DayAvailability) FreeSlots() []models.TimeSlot {
	var free []models.TimeSlot
	for _, s := range d.Slots {
		if !s.Occupied {
			free = append(free, s.Slot)
		}
	}
	return free
}

// Resolve computes availability of asset on date given the current booking
// snapshot. Bookings for other assets or other dates are ignored, as are
// cancelled bookings.
func Resolve(asset *models.Asset, date time.Time, bookings []models.Booking) DayAvailability {
	relevant := ForDay(asset.ID, date, bookings)

	if asset.BookingType == models.BookingTimeSlots {
		return resolveSlots(asset, relevant)
	}
	return resolveFullDay(relevant)
}

// ForDay filters a booking snapshot to active bookings of one asset on one
// calendar date. Date matching uses the date component only.
func ForDay(assetID string, date time.Time, bookings []models.Booking) []models.Booking {
	var out []models.Booking
	for _, b := range bookings {
		if b.AssetID != assetID || b.Status == models.StatusCancelled {
			continue
		}
		if !models.SameDay(b.Date, date) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func resolveFullDay(relevant []models.Booking) DayAvailability {
	if len(relevant) == 0 {
		return DayAvailability{Available: true}
	}
	occupant := relevant[0]
	return DayAvailability{
		Available:   false,
		FullyBooked: true,
		Occupant:    &occupant,
	}
}

func resolveSlots(asset *models.Asset, relevant []models.Booking) DayAvailability {
	occupied := make(map[string]string, len(relevant))
	for _, b := range relevant {
		if key := b.SlotKey(); key != "" {
			occupied[key] = b.BookedBy
		}
	}

	out := DayAvailability{Slots: make([]SlotState, 0, len(asset.TimeSlots))}
	freeCount := 0
	for _, slot := range asset.TimeSlots {
		bookedBy, taken := occupied[slot.Key()]
		if !taken {
			freeCount++
		}
		out.Slots = append(out.Slots, SlotState{Slot: slot, Occupied: taken, BookedBy: bookedBy})
	}

	// Available means "has at least one free slot today", not "fully free".
	out.Available = freeCount > 0
	out.FullyBooked = len(asset.TimeSlots) > 0 && freeCount == 0
	return out
}
