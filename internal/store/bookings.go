package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"assetbook/internal/conflict"
	"assetbook/internal/events"
	"assetbook/internal/models"
)

const bookingColumns = `
	id, organization_id, asset_id, date, slot_start, slot_end,
	booked_by, status, description, client_name,
	number_of_people, custom_price, custom_agent_fee,
	created_at, updated_at, version`

// GetBooking returns one booking scoped to an organization.
func (s *Store) GetBooking(ctx context.Context, orgID, bookingID string) (*models.Booking, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ? AND organization_id = ?`,
		bookingID, orgID,
	)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return b, nil
}

// ListBookings returns the organization's full booking snapshot.
func (s *Store) ListBookings(ctx context.Context, orgID string) ([]models.Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE organization_id = ? ORDER BY date, slot_start, id`,
		orgID,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ListBookingsInRange returns bookings with date in [from, to] inclusive.
func (s *Store) ListBookingsInRange(ctx context.Context, orgID string, from, to time.Time) ([]models.Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE organization_id = ? AND date >= ? AND date <= ?
		 ORDER BY date, slot_start, id`,
		orgID, models.FormatDate(from), models.FormatDate(to),
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

// CreateBooking inserts a booking after re-running the conflict check inside
// the same transaction that performs the write, closing the read-then-write
// race between concurrent clients. When the asset is full-day, the
// compensating status write lands in the same transaction so the two writes
// are one logical unit.
func (s *Store) CreateBooking(ctx context.Context, asset *models.Asset, booking *models.Booking) error {
	now := time.Now()
	booking.Date = models.DateOnly(booking.Date)
	booking.Status = models.StatusConfirmed
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.bookingsForAssetDayTx(ctx, tx, asset.OrganizationID, asset.ID, booking.Date)
		if err != nil {
			return err
		}
		if err := conflict.Check(asset, booking, existing, ""); err != nil {
			return err
		}

		var slotStart, slotEnd any
		if booking.TimeSlot != nil {
			slotStart, slotEnd = booking.TimeSlot.Start, booking.TimeSlot.End
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO bookings (
				id, organization_id, asset_id, date, slot_start, slot_end,
				booked_by, status, description, client_name,
				number_of_people, custom_price, custom_agent_fee,
				created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			booking.ID, booking.OrganizationID, booking.AssetID,
			models.FormatDate(booking.Date), slotStart, slotEnd,
			booking.BookedBy, booking.Status, booking.Description, booking.ClientName,
			booking.NumberOfPeople, booking.CustomPrice, booking.CustomAgentFee,
			now, now, booking.Version,
		)
		if err != nil {
			return fmt.Errorf("insert booking: %w", mapErr(err))
		}

		if asset.BookingType == models.BookingFullDay {
			if err := s.updateAssetStatus(ctx, tx, asset.OrganizationID, asset.ID, models.AssetUnavailable, false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publishBookings(ctx, booking.OrganizationID)
	if asset.BookingType == models.BookingFullDay {
		s.publishAssets(ctx, asset.OrganizationID)
	}
	return nil
}

// UpdateBooking persists changes to an existing booking. When the date or
// slot moved, the conflict check re-runs inside the transaction excluding
// the booking's own prior occupancy. The write carries an optimistic
// version check; a stale version surfaces as ErrVersionConflict.
func (s *Store) UpdateBooking(ctx context.Context, asset *models.Asset, booking *models.Booking, expectedVersion int64) error {
	booking.Date = models.DateOnly(booking.Date)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.bookingsForAssetDayTx(ctx, tx, asset.OrganizationID, asset.ID, booking.Date)
		if err != nil {
			return err
		}
		if err := conflict.Check(asset, booking, existing, booking.ID); err != nil {
			return err
		}

		var slotStart, slotEnd any
		if booking.TimeSlot != nil {
			slotStart, slotEnd = booking.TimeSlot.Start, booking.TimeSlot.End
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE bookings SET
				date = ?, slot_start = ?, slot_end = ?, status = ?,
				description = ?, client_name = ?,
				number_of_people = ?, custom_price = ?, custom_agent_fee = ?,
				updated_at = ?, version = version + 1
			WHERE id = ? AND organization_id = ? AND version = ?`,
			models.FormatDate(booking.Date), slotStart, slotEnd, booking.Status,
			booking.Description, booking.ClientName,
			booking.NumberOfPeople, booking.CustomPrice, booking.CustomAgentFee,
			time.Now(), booking.ID, booking.OrganizationID, expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("update booking: %w", mapErr(err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// Either the row is gone or the version moved under us.
			var exists int
			if err := tx.QueryRowContext(ctx,
				"SELECT COUNT(*) FROM bookings WHERE id = ? AND organization_id = ?",
				booking.ID, booking.OrganizationID,
			).Scan(&exists); err != nil {
				return mapErr(err)
			}
			if exists == 0 {
				return models.ErrNotFound
			}
			return models.ErrVersionConflict
		}
		booking.Version = expectedVersion + 1
		return nil
	})
	if err != nil {
		return err
	}

	s.publishBookings(ctx, booking.OrganizationID)
	return nil
}

// CancelBooking moves a booking to cancelled without removing the row, so
// reports and the audit trail keep it while occupancy checks stop counting
// it. When the booking was the sole full-day occupant of its date, the
// materialized asset status is cleared back to available in the same
// transaction, mirroring a hard delete.
func (s *Store) CancelBooking(ctx context.Context, orgID, bookingID string) (*models.Booking, error) {
	var cancelled *models.Booking
	var assetOrgChanged string

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE id = ? AND organization_id = ?`,
			bookingID, orgID,
		)
		booking, err := scanBooking(row)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return mapErr(err)
		}
		if !models.CanTransition(booking.Status, models.StatusCancelled) {
			return fmt.Errorf("%w: %s to cancelled", models.ErrInvalidTransition, booking.Status)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE bookings SET status = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND organization_id = ?`,
			models.StatusCancelled, time.Now(), bookingID, orgID,
		); err != nil {
			return fmt.Errorf("cancel booking: %w", mapErr(err))
		}
		booking.Status = models.StatusCancelled
		booking.Version++
		cancelled = booking

		var bookingType models.BookingType
		err = tx.QueryRowContext(ctx,
			"SELECT booking_type FROM assets WHERE id = ? AND organization_id = ?",
			booking.AssetID, orgID,
		).Scan(&bookingType)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return mapErr(err)
		}

		if bookingType == models.BookingFullDay {
			var remaining int
			if err := tx.QueryRowContext(ctx, `
				SELECT COUNT(*) FROM bookings
				WHERE asset_id = ? AND date = ? AND status != 'cancelled'`,
				booking.AssetID, models.FormatDate(booking.Date),
			).Scan(&remaining); err != nil {
				return mapErr(err)
			}
			if remaining == 0 {
				if err := s.updateAssetStatus(ctx, tx, orgID, booking.AssetID, models.AssetAvailable, false); err != nil {
					return err
				}
				assetOrgChanged = orgID
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishBookings(ctx, orgID)
	if assetOrgChanged != "" {
		s.publishAssets(ctx, assetOrgChanged)
	}
	return cancelled, nil
}

// DeleteBooking removes a booking. When the deleted booking was the sole
// occupant of a full-day asset for its date, the materialized asset status
// is cleared back to available in the same transaction, keeping the status
// write path symmetric.
func (s *Store) DeleteBooking(ctx context.Context, orgID, bookingID string) error {
	var assetOrgChanged string

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE id = ? AND organization_id = ?`,
			bookingID, orgID,
		)
		booking, err := scanBooking(row)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return mapErr(err)
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM bookings WHERE id = ? AND organization_id = ?", bookingID, orgID); err != nil {
			return fmt.Errorf("delete booking: %w", mapErr(err))
		}

		var bookingType models.BookingType
		err = tx.QueryRowContext(ctx,
			"SELECT booking_type FROM assets WHERE id = ? AND organization_id = ?",
			booking.AssetID, orgID,
		).Scan(&bookingType)
		if errors.Is(err, sql.ErrNoRows) {
			return nil // asset already gone, nothing to recompute
		}
		if err != nil {
			return mapErr(err)
		}

		if bookingType == models.BookingFullDay {
			var remaining int
			if err := tx.QueryRowContext(ctx, `
				SELECT COUNT(*) FROM bookings
				WHERE asset_id = ? AND date = ? AND status != 'cancelled'`,
				booking.AssetID, models.FormatDate(booking.Date),
			).Scan(&remaining); err != nil {
				return mapErr(err)
			}
			if remaining == 0 {
				if err := s.updateAssetStatus(ctx, tx, orgID, booking.AssetID, models.AssetAvailable, false); err != nil {
					return err
				}
				assetOrgChanged = orgID
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publishBookings(ctx, orgID)
	if assetOrgChanged != "" {
		s.publishAssets(ctx, assetOrgChanged)
	}
	return nil
}

// SubscribeBookings delivers the current booking snapshot immediately, then
// on every change, until the returned Unsubscribe is called.
func (s *Store) SubscribeBookings(ctx context.Context, orgID string, onChange func([]models.Booking)) (events.Unsubscribe, error) {
	bookings, err := s.ListBookings(ctx, orgID)
	if err != nil {
		return nil, err
	}
	unsubscribe := s.bus.Subscribe(events.TopicBookings, orgID, func(e events.Event) {
		if snapshot, ok := e.Snapshot.([]models.Booking); ok {
			onChange(snapshot)
		}
	})
	onChange(bookings)
	return unsubscribe, nil
}

func (s *Store) publishBookings(ctx context.Context, orgID string) {
	bookings, err := s.ListBookings(ctx, orgID)
	if err != nil {
		return
	}
	s.bus.Publish(events.TopicBookings, orgID, bookings)
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", mapErr(err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", mapErr(err))
	}
	return nil
}

func (s *Store) bookingsForAssetDayTx(ctx context.Context, tx *sql.Tx, orgID, assetID string, date time.Time) ([]models.Booking, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE organization_id = ? AND asset_id = ? AND date = ? AND status != 'cancelled'
		 ORDER BY slot_start, id`,
		orgID, assetID, models.FormatDate(date),
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

func collectBookings(rows *sql.Rows) ([]models.Booking, error) {
	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var date string
	var slotStart, slotEnd sql.NullString
	var people sql.NullInt64
	var customPrice, customFee sql.NullFloat64

	err := row.Scan(
		&b.ID, &b.OrganizationID, &b.AssetID, &date, &slotStart, &slotEnd,
		&b.BookedBy, &b.Status, &b.Description, &b.ClientName,
		&people, &customPrice, &customFee,
		&b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := models.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("booking %s has malformed date %q: %w", b.ID, date, err)
	}
	b.Date = parsed

	if slotStart.Valid && slotEnd.Valid {
		b.TimeSlot = &models.TimeSlot{Start: slotStart.String, End: slotEnd.String}
	}
	if people.Valid {
		n := int(people.Int64)
		b.NumberOfPeople = &n
	}
	if customPrice.Valid {
		v := customPrice.Float64
		b.CustomPrice = &v
	}
	if customFee.Valid {
		v := customFee.Float64
		b.CustomAgentFee = &v
	}
	return &b, nil
}
