package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"assetbook/internal/models"
)

var (
	day     = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	slotAM  = models.TimeSlot{Start: "10:00", End: "12:00"}
	slotPM  = models.TimeSlot{Start: "12:00", End: "14:00"}
	fullDay = &models.Asset{ID: "a-full", OrganizationID: "org-1", BookingType: models.BookingFullDay}
	sliced  = &models.Asset{
		ID: "a-slots", OrganizationID: "org-1", BookingType: models.BookingTimeSlots,
		TimeSlots: []models.TimeSlot{slotAM, slotPM},
	}
)

func slotBooking(id string, slot models.TimeSlot) models.Booking {
	return models.Booking{
		ID: id, OrganizationID: "org-1", AssetID: "a-slots",
		Date: day, TimeSlot: &slot, Status: models.StatusConfirmed, BookedBy: "owner@example.com",
	}
}

func TestResolveFullDay(t *testing.T) {
	t.Run("Free", func(t *testing.T) {
		res := Resolve(fullDay, day, nil)
		assert.True(t, res.Available)
		assert.False(t, res.FullyBooked)
		assert.Nil(t, res.Occupant)
	})

	t.Run("Occupied", func(t *testing.T) {
		bookings := []models.Booking{{
			ID: "b-1", AssetID: "a-full", Date: day, Status: models.StatusConfirmed,
		}}
		res := Resolve(fullDay, day, bookings)
		assert.False(t, res.Available)
		assert.True(t, res.FullyBooked)
		assert.Equal(t, "b-1", res.Occupant.ID)
	})

	t.Run("CancelledIgnored", func(t *testing.T) {
		bookings := []models.Booking{{
			ID: "b-1", AssetID: "a-full", Date: day, Status: models.StatusCancelled,
		}}
		res := Resolve(fullDay, day, bookings)
		assert.True(t, res.Available)
	})

	t.Run("OtherDayIgnored", func(t *testing.T) {
		bookings := []models.Booking{{
			ID: "b-1", AssetID: "a-full", Date: day.AddDate(0, 0, 1), Status: models.StatusConfirmed,
		}}
		res := Resolve(fullDay, day, bookings)
		assert.True(t, res.Available)
	})
}

func TestResolveTimeSlots(t *testing.T) {
	t.Run("AllFree", func(t *testing.T) {
		res := Resolve(sliced, day, nil)
		assert.True(t, res.Available)
		assert.False(t, res.FullyBooked)
		assert.Len(t, res.Slots, 2)
		assert.Len(t, res.FreeSlots(), 2)
	})

	t.Run("PartiallyBooked", func(t *testing.T) {
		res := Resolve(sliced, day, []models.Booking{slotBooking("b-1", slotAM)})
		assert.True(t, res.Available)
		assert.False(t, res.FullyBooked)

		assert.True(t, res.Slots[0].Occupied)
		assert.Equal(t, "owner@example.com", res.Slots[0].BookedBy)
		assert.False(t, res.Slots[1].Occupied)
		assert.Len(t, res.FreeSlots(), 1)
	})

	t.Run("FullyBooked", func(t *testing.T) {
		res := Resolve(sliced, day, []models.Booking{
			slotBooking("b-1", slotAM),
			slotBooking("b-2", slotPM),
		})
		assert.False(t, res.Available)
		assert.True(t, res.FullyBooked)
		assert.Empty(t, res.FreeSlots())
	})

	t.Run("EmptyCatalogNeverAvailable", func(t *testing.T) {
		empty := &models.Asset{ID: "a-empty", BookingType: models.BookingTimeSlots}
		res := Resolve(empty, day, nil)
		assert.False(t, res.Available)
		assert.False(t, res.FullyBooked)
	})
}

func TestForDay(t *testing.T) {
	bookings := []models.Booking{
		{ID: "b-1", AssetID: "a-slots", Date: day, Status: models.StatusConfirmed},
		{ID: "b-2", AssetID: "a-other", Date: day, Status: models.StatusConfirmed},
		{ID: "b-3", AssetID: "a-slots", Date: day.AddDate(0, 0, 1), Status: models.StatusConfirmed},
		{ID: "b-4", AssetID: "a-slots", Date: day, Status: models.StatusCancelled},
	}

	relevant := ForDay("a-slots", day, bookings)
	assert.Len(t, relevant, 1)
	assert.Equal(t, "b-1", relevant[0].ID)
}
