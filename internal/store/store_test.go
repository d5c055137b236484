package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetbook/internal/events"
	"assetbook/internal/models"
)

var (
	day    = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	slotAM = models.TimeSlot{Start: "10:00", End: "12:00"}
	slotPM = models.TimeSlot{Start: "12:00", End: "14:00"}
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := New(":memory:", events.NewBus())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.CreateOrganization(context.Background(), &models.Organization{
		ID: "org-1", Name: "Harbor Rentals",
	}))
	return st
}

func seedFullDayAsset(t *testing.T, st *Store) *models.Asset {
	t.Helper()
	asset := &models.Asset{
		ID: "a-boat", OrganizationID: "org-1", Name: "Boat",
		BookingType: models.BookingFullDay, PricePerDay: 200, AgentFee: 20,
	}
	require.NoError(t, st.CreateAsset(context.Background(), asset))
	return asset
}

func seedSlicedAsset(t *testing.T, st *Store) *models.Asset {
	t.Helper()
	asset := &models.Asset{
		ID: "a-sauna", OrganizationID: "org-1", Name: "Sauna",
		BookingType: models.BookingTimeSlots,
		TimeSlots:   []models.TimeSlot{slotPM, slotAM}, // unsorted on purpose
	}
	require.NoError(t, st.CreateAsset(context.Background(), asset))
	return asset
}

func TestAssetCRUD(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedSlicedAsset(t, st)

	t.Run("CatalogNormalizedOnCreate", func(t *testing.T) {
		got, err := st.GetAsset(ctx, "org-1", "a-sauna")
		require.NoError(t, err)
		assert.Equal(t, "10:00", got.TimeSlots[0].Start)
		assert.Equal(t, "12:00", got.TimeSlots[1].Start)
		assert.Equal(t, models.AssetAvailable, got.Status)
	})

	t.Run("ScopedLookup", func(t *testing.T) {
		_, err := st.GetAsset(ctx, "org-2", "a-sauna")
		assert.ErrorIs(t, err, models.ErrAssetNotFound)
	})

	t.Run("OverlappingCatalogRejected", func(t *testing.T) {
		err := st.UpdateAssetCatalog(ctx, "org-1", "a-sauna", []models.TimeSlot{
			{Start: "10:00", End: "12:00"},
			{Start: "11:00", End: "13:00"},
		})
		assert.ErrorIs(t, err, models.ErrOverlappingSlots)
	})

	t.Run("CatalogUpdateBumpsVersion", func(t *testing.T) {
		require.NoError(t, st.UpdateAssetCatalog(ctx, "org-1", "a-sauna", []models.TimeSlot{
			{Start: "09:00", End: "11:00"},
		}))
		got, err := st.GetAsset(ctx, "org-1", "a-sauna")
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
		assert.Len(t, got.TimeSlots, 1)
	})
}

func TestCatalogEditKeepsBookedSlots(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	sauna := seedSlicedAsset(t, st)

	require.NoError(t, st.CreateBooking(ctx, sauna, &models.Booking{
		ID: "b-1", OrganizationID: "org-1", AssetID: sauna.ID, Date: day, TimeSlot: &slotAM,
	}))

	t.Run("DroppingBookedSlotRejected", func(t *testing.T) {
		err := st.UpdateAssetCatalog(ctx, "org-1", sauna.ID, []models.TimeSlot{
			{Start: "15:00", End: "17:00"},
		})
		assert.ErrorIs(t, err, models.ErrAssetInUse)

		// The catalog and version are untouched by the rejected edit.
		got, err := st.GetAsset(ctx, "org-1", sauna.ID)
		require.NoError(t, err)
		assert.Equal(t, []models.TimeSlot{slotAM, slotPM}, got.TimeSlots)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("KeepingBookedSlotSucceeds", func(t *testing.T) {
		require.NoError(t, st.UpdateAssetCatalog(ctx, "org-1", sauna.ID, []models.TimeSlot{
			slotAM,
			{Start: "15:00", End: "17:00"},
		}))
		got, err := st.GetAsset(ctx, "org-1", sauna.ID)
		require.NoError(t, err)
		assert.Len(t, got.TimeSlots, 2)
	})

	t.Run("CancelledBookingDoesNotBlock", func(t *testing.T) {
		_, err := st.CancelBooking(ctx, "org-1", "b-1")
		require.NoError(t, err)

		assert.NoError(t, st.UpdateAssetCatalog(ctx, "org-1", sauna.ID, []models.TimeSlot{
			{Start: "15:00", End: "17:00"},
		}))
	})
}

func TestCreateBookingConflicts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	boat := seedFullDayAsset(t, st)
	sauna := seedSlicedAsset(t, st)

	require.NoError(t, st.CreateBooking(ctx, boat, &models.Booking{
		ID: "b-1", OrganizationID: "org-1", AssetID: boat.ID, Date: day,
	}))

	t.Run("FullDayDouble", func(t *testing.T) {
		err := st.CreateBooking(ctx, boat, &models.Booking{
			ID: "b-2", OrganizationID: "org-1", AssetID: boat.ID, Date: day,
		})
		assert.ErrorIs(t, err, models.ErrFullDayConflict)
	})

	t.Run("NextDayFree", func(t *testing.T) {
		assert.NoError(t, st.CreateBooking(ctx, boat, &models.Booking{
			ID: "b-3", OrganizationID: "org-1", AssetID: boat.ID, Date: day.AddDate(0, 0, 1),
		}))
	})

	t.Run("SlotTaken", func(t *testing.T) {
		require.NoError(t, st.CreateBooking(ctx, sauna, &models.Booking{
			ID: "b-4", OrganizationID: "org-1", AssetID: sauna.ID, Date: day, TimeSlot: &slotAM,
		}))
		err := st.CreateBooking(ctx, sauna, &models.Booking{
			ID: "b-5", OrganizationID: "org-1", AssetID: sauna.ID, Date: day, TimeSlot: &slotAM,
		})
		assert.ErrorIs(t, err, models.ErrSlotConflict)
	})

	t.Run("NeighbourSlotFree", func(t *testing.T) {
		assert.NoError(t, st.CreateBooking(ctx, sauna, &models.Booking{
			ID: "b-6", OrganizationID: "org-1", AssetID: sauna.ID, Date: day, TimeSlot: &slotPM,
		}))
	})

	t.Run("SlotOutsideCatalog", func(t *testing.T) {
		rogue := models.TimeSlot{Start: "20:00", End: "22:00"}
		err := st.CreateBooking(ctx, sauna, &models.Booking{
			ID: "b-7", OrganizationID: "org-1", AssetID: sauna.ID, Date: day, TimeSlot: &rogue,
		})
		assert.ErrorIs(t, err, models.ErrInvalidTimeSlot)
	})
}

func TestFullDayStatusSymmetry(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	boat := seedFullDayAsset(t, st)

	require.NoError(t, st.CreateBooking(ctx, boat, &models.Booking{
		ID: "b-1", OrganizationID: "org-1", AssetID: boat.ID, Date: day,
	}))

	got, err := st.GetAsset(ctx, "org-1", boat.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssetUnavailable, got.Status)

	require.NoError(t, st.DeleteBooking(ctx, "org-1", "b-1"))

	got, err = st.GetAsset(ctx, "org-1", boat.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssetAvailable, got.Status)
}

func TestUpdateBookingVersioning(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	boat := seedFullDayAsset(t, st)

	booking := &models.Booking{ID: "b-1", OrganizationID: "org-1", AssetID: boat.ID, Date: day}
	require.NoError(t, st.CreateBooking(ctx, boat, booking))
	require.Equal(t, int64(1), booking.Version)

	t.Run("EditKeepingDateSucceeds", func(t *testing.T) {
		booking.Description = "client asked to hold the slip"
		require.NoError(t, st.UpdateBooking(ctx, boat, booking, 1))
		assert.Equal(t, int64(2), booking.Version)
	})

	t.Run("StaleVersionRejected", func(t *testing.T) {
		err := st.UpdateBooking(ctx, boat, booking, 1)
		assert.ErrorIs(t, err, models.ErrVersionConflict)
	})

	t.Run("MissingBookingRejected", func(t *testing.T) {
		ghost := &models.Booking{ID: "b-ghost", OrganizationID: "org-1", AssetID: boat.ID, Date: day}
		err := st.UpdateBooking(ctx, boat, ghost, 1)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("MoveOntoOccupiedDayRejected", func(t *testing.T) {
		other := &models.Booking{ID: "b-2", OrganizationID: "org-1", AssetID: boat.ID, Date: day.AddDate(0, 0, 1)}
		require.NoError(t, st.CreateBooking(ctx, boat, other))

		other.Date = day
		err := st.UpdateBooking(ctx, boat, other, other.Version)
		assert.ErrorIs(t, err, models.ErrFullDayConflict)
	})
}

func TestCancelBooking(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	boat := seedFullDayAsset(t, st)

	require.NoError(t, st.CreateBooking(ctx, boat, &models.Booking{
		ID: "b-1", OrganizationID: "org-1", AssetID: boat.ID, Date: day,
	}))

	t.Run("FreesTheDay", func(t *testing.T) {
		cancelled, err := st.CancelBooking(ctx, "org-1", "b-1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, cancelled.Status)
		assert.Equal(t, int64(2), cancelled.Version)

		// The last full-day occupant is gone: the asset status clears and
		// the date can be booked again.
		got, err := st.GetAsset(ctx, "org-1", boat.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AssetAvailable, got.Status)

		assert.NoError(t, st.CreateBooking(ctx, boat, &models.Booking{
			ID: "b-2", OrganizationID: "org-1", AssetID: boat.ID, Date: day,
		}))
	})

	t.Run("RowStaysForReporting", func(t *testing.T) {
		got, err := st.GetBooking(ctx, "org-1", "b-1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, got.Status)
	})

	t.Run("CancelTwiceRejected", func(t *testing.T) {
		_, err := st.CancelBooking(ctx, "org-1", "b-1")
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})

	t.Run("MissingBookingRejected", func(t *testing.T) {
		_, err := st.CancelBooking(ctx, "org-1", "b-ghost")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestDeleteAssetInUse(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	boat := seedFullDayAsset(t, st)

	require.NoError(t, st.CreateBooking(ctx, boat, &models.Booking{
		ID: "b-1", OrganizationID: "org-1", AssetID: boat.ID, Date: day,
	}))

	err := st.DeleteAsset(ctx, "org-1", boat.ID)
	assert.ErrorIs(t, err, models.ErrAssetInUse)

	require.NoError(t, st.DeleteBooking(ctx, "org-1", "b-1"))
	assert.NoError(t, st.DeleteAsset(ctx, "org-1", boat.ID))
}

func TestSubscriptions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	boat := seedFullDayAsset(t, st)

	t.Run("InitialSnapshotDelivered", func(t *testing.T) {
		var snapshots [][]models.Booking
		unsub, err := st.SubscribeBookings(ctx, "org-1", func(bs []models.Booking) {
			snapshots = append(snapshots, bs)
		})
		require.NoError(t, err)
		defer unsub()

		require.Len(t, snapshots, 1)
		assert.Empty(t, snapshots[0])

		require.NoError(t, st.CreateBooking(ctx, boat, &models.Booking{
			ID: "b-1", OrganizationID: "org-1", AssetID: boat.ID, Date: day,
		}))
		require.Len(t, snapshots, 2)
		assert.Len(t, snapshots[1], 1)
	})

	t.Run("AssetStatusChangePublishes", func(t *testing.T) {
		var snapshots [][]models.Asset
		unsub, err := st.SubscribeAssets(ctx, "org-1", func(as []models.Asset) {
			snapshots = append(snapshots, as)
		})
		require.NoError(t, err)
		defer unsub()

		require.Len(t, snapshots, 1)
		require.NoError(t, st.DeleteBooking(ctx, "org-1", "b-1"))
		// Deleting the last full-day occupant flips the asset status,
		// which pushes a fresh asset snapshot.
		require.Greater(t, len(snapshots), 1)
		last := snapshots[len(snapshots)-1]
		assert.Equal(t, models.AssetAvailable, last[0].Status)
	})

	t.Run("UnsubscribeStops", func(t *testing.T) {
		calls := 0
		unsub, err := st.SubscribeBookings(ctx, "org-1", func([]models.Booking) { calls++ })
		require.NoError(t, err)
		unsub()

		require.NoError(t, st.CreateBooking(ctx, boat, &models.Booking{
			ID: "b-9", OrganizationID: "org-1", AssetID: boat.ID, Date: day.AddDate(0, 1, 0),
		}))
		assert.Equal(t, 1, calls)
	})
}

func TestMembers(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	member := &models.Member{OrganizationID: "org-1", UserID: "u-1", Email: "owner@example.com", Role: models.RoleOwner}
	require.NoError(t, st.UpsertMember(ctx, member))

	got, err := st.GetMember(ctx, "org-1", "u-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, got.Role)

	// Upsert replaces the role in place.
	member.Role = models.RoleViewer
	require.NoError(t, st.UpsertMember(ctx, member))
	got, err = st.GetMember(ctx, "org-1", "u-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, got.Role)

	_, err = st.GetMember(ctx, "org-1", "u-unknown")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAuditLog(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.AppendAudit(ctx, &AuditEntry{
		OrganizationID: "org-1", Actor: "u-1", Action: "create",
		Entity: "booking", EntityID: "b-1", Details: "asset=a-boat date=2026-09-01",
	}))

	entries, err := st.ListAudit(ctx, "org-1", time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "create", entries[0].Action)

	pruned, err := st.PruneAudit(ctx, time.Nanosecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
}
