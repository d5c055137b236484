// Package conflict decides whether a proposed booking may be created or
// modified without colliding with existing bookings.
//
// Slot matching is exact equality against the asset's catalog, never general
// interval overlap: catalog entries are non-overlapping by construction, so a
// double booking can only occur by two reservations claiming the same entry.
package conflict

import (
	"assetbook/internal/availability"
	"assetbook/internal/models"
)

// Check validates proposed against the live booking snapshot for its asset.
// For edits, excludeID names the booking being replaced so its own prior
// occupancy is ignored. The first violation wins and nothing is written on
// failure; validation is side-effect-free so it can be retried cheaply
// inside a transaction.
func Check(asset *models.Asset, proposed *models.Booking, existing []models.Booking, excludeID string) error {
	if asset == nil {
		return models.ErrAssetNotFound
	}
	if proposed.AssetID != asset.ID {
		return models.ErrAssetNotFound
	}
	if asset.OrganizationID != proposed.OrganizationID {
		return models.ErrScopeViolation
	}

	if asset.BookingType == models.BookingTimeSlots {
		if proposed.TimeSlot == nil {
			return models.ErrMissingTimeSlot
		}
		if !asset.SlotInCatalog(*proposed.TimeSlot) {
			return models.ErrInvalidTimeSlot
		}
	}

	relevant := availability.ForDay(asset.ID, proposed.Date, existing)

	switch asset.BookingType {
	case models.BookingTimeSlots:
		for _, b := range relevant {
			if b.ID == excludeID {
				continue
			}
			if b.TimeSlot != nil && models.SlotsEqual(*b.TimeSlot, *proposed.TimeSlot) {
				return models.ErrSlotConflict
			}
		}
	default:
		for _, b := range relevant {
			if b.ID == excludeID {
				continue
			}
			return models.ErrFullDayConflict
		}
	}
	return nil
}
