package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"assetbook/internal/models"
)

var (
	day    = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	slotAM = models.TimeSlot{Start: "10:00", End: "12:00"}
	slotPM = models.TimeSlot{Start: "12:00", End: "14:00"}

	boat = &models.Asset{
		ID: "a-boat", OrganizationID: "org-1", BookingType: models.BookingFullDay,
	}
	sauna = &models.Asset{
		ID: "a-sauna", OrganizationID: "org-1", BookingType: models.BookingTimeSlots,
		TimeSlots: []models.TimeSlot{slotAM, slotPM},
	}
)

func proposal(assetID string, slot *models.TimeSlot) *models.Booking {
	return &models.Booking{
		ID: "b-new", OrganizationID: "org-1", AssetID: assetID, Date: day, TimeSlot: slot,
	}
}

func TestCheckFullDay(t *testing.T) {
	t.Run("FreeDay", func(t *testing.T) {
		assert.NoError(t, Check(boat, proposal("a-boat", nil), nil, ""))
	})

	t.Run("OccupiedDay", func(t *testing.T) {
		existing := []models.Booking{
			{ID: "b-1", AssetID: "a-boat", Date: day, Status: models.StatusConfirmed},
		}
		err := Check(boat, proposal("a-boat", nil), existing, "")
		assert.ErrorIs(t, err, models.ErrFullDayConflict)
	})

	t.Run("CancelledReleasesDay", func(t *testing.T) {
		existing := []models.Booking{
			{ID: "b-1", AssetID: "a-boat", Date: day, Status: models.StatusCancelled},
		}
		assert.NoError(t, Check(boat, proposal("a-boat", nil), existing, ""))
	})

	t.Run("OtherDayIrrelevant", func(t *testing.T) {
		existing := []models.Booking{
			{ID: "b-1", AssetID: "a-boat", Date: day.AddDate(0, 0, 1), Status: models.StatusConfirmed},
		}
		assert.NoError(t, Check(boat, proposal("a-boat", nil), existing, ""))
	})
}

func TestCheckTimeSlots(t *testing.T) {
	existing := []models.Booking{
		{ID: "b-1", AssetID: "a-sauna", Date: day, TimeSlot: &slotAM, Status: models.StatusConfirmed},
	}

	t.Run("FreeSlot", func(t *testing.T) {
		assert.NoError(t, Check(sauna, proposal("a-sauna", &slotPM), existing, ""))
	})

	t.Run("TakenSlot", func(t *testing.T) {
		err := Check(sauna, proposal("a-sauna", &slotAM), existing, "")
		assert.ErrorIs(t, err, models.ErrSlotConflict)
	})

	t.Run("MissingSlot", func(t *testing.T) {
		err := Check(sauna, proposal("a-sauna", nil), existing, "")
		assert.ErrorIs(t, err, models.ErrMissingTimeSlot)
	})

	t.Run("SlotNotInCatalog", func(t *testing.T) {
		rogue := models.TimeSlot{Start: "10:00", End: "13:00"}
		err := Check(sauna, proposal("a-sauna", &rogue), existing, "")
		assert.ErrorIs(t, err, models.ErrInvalidTimeSlot)
	})

	t.Run("DifferentAssetSameSlot", func(t *testing.T) {
		other := &models.Asset{
			ID: "a-other", OrganizationID: "org-1", BookingType: models.BookingTimeSlots,
			TimeSlots: []models.TimeSlot{slotAM},
		}
		assert.NoError(t, Check(other, proposal("a-other", &slotAM), existing, ""))
	})
}

func TestCheckEdit(t *testing.T) {
	existing := []models.Booking{
		{ID: "b-1", AssetID: "a-sauna", Date: day, TimeSlot: &slotAM, Status: models.StatusConfirmed},
		{ID: "b-2", AssetID: "a-sauna", Date: day, TimeSlot: &slotPM, Status: models.StatusConfirmed},
	}

	t.Run("KeepOwnSlot", func(t *testing.T) {
		// Re-saving b-1 against its own slot is not a conflict.
		edit := &models.Booking{
			ID: "b-1", OrganizationID: "org-1", AssetID: "a-sauna", Date: day, TimeSlot: &slotAM,
		}
		assert.NoError(t, Check(sauna, edit, existing, "b-1"))
	})

	t.Run("MoveOntoNeighbour", func(t *testing.T) {
		edit := &models.Booking{
			ID: "b-1", OrganizationID: "org-1", AssetID: "a-sauna", Date: day, TimeSlot: &slotPM,
		}
		err := Check(sauna, edit, existing, "b-1")
		assert.ErrorIs(t, err, models.ErrSlotConflict)
	})

	t.Run("FullDayEditSameDay", func(t *testing.T) {
		occupied := []models.Booking{
			{ID: "b-1", AssetID: "a-boat", Date: day, Status: models.StatusConfirmed},
		}
		edit := &models.Booking{ID: "b-1", OrganizationID: "org-1", AssetID: "a-boat", Date: day}
		assert.NoError(t, Check(boat, edit, occupied, "b-1"))
	})
}

func TestCheckFailFast(t *testing.T) {
	t.Run("NilAsset", func(t *testing.T) {
		err := Check(nil, proposal("a-boat", nil), nil, "")
		assert.ErrorIs(t, err, models.ErrAssetNotFound)
	})

	t.Run("MismatchedAsset", func(t *testing.T) {
		err := Check(boat, proposal("a-sauna", nil), nil, "")
		assert.ErrorIs(t, err, models.ErrAssetNotFound)
	})

	t.Run("CrossOrganization", func(t *testing.T) {
		foreign := &models.Asset{ID: "a-boat", OrganizationID: "org-2", BookingType: models.BookingFullDay}
		err := Check(foreign, proposal("a-boat", nil), nil, "")
		assert.ErrorIs(t, err, models.ErrScopeViolation)
	})

	t.Run("MissingSlotBeforeConflict", func(t *testing.T) {
		// Slot validation precedes occupancy checks even when the day is
		// already fully booked.
		existing := []models.Booking{
			{ID: "b-1", AssetID: "a-sauna", Date: day, TimeSlot: &slotAM, Status: models.StatusConfirmed},
			{ID: "b-2", AssetID: "a-sauna", Date: day, TimeSlot: &slotPM, Status: models.StatusConfirmed},
		}
		err := Check(sauna, proposal("a-sauna", nil), existing, "")
		assert.ErrorIs(t, err, models.ErrMissingTimeSlot)
	})
}
