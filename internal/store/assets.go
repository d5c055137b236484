package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"assetbook/internal/catalog"
	"assetbook/internal/events"
	"assetbook/internal/models"
)

// CreateAsset persists a new asset. The slot catalog is validated and
// stored sorted ascending by start time.
func (s *Store) CreateAsset(ctx context.Context, asset *models.Asset) error {
	if !asset.BookingType.Valid() {
		return fmt.Errorf("unknown booking type %q", asset.BookingType)
	}
	slots, err := catalog.Normalize(asset.TimeSlots)
	if err != nil {
		return err
	}
	asset.TimeSlots = slots
	if asset.Status == "" {
		asset.Status = models.AssetAvailable
	}

	slotsJSON, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assets (
			id, organization_id, name, booking_type, time_slots, status,
			price_per_day, currency, agent_fee, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		asset.ID, asset.OrganizationID, asset.Name, asset.BookingType,
		string(slotsJSON), asset.Status, asset.PricePerDay, asset.Currency, asset.AgentFee,
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", mapErr(err))
	}

	s.publishAssets(ctx, asset.OrganizationID)
	return nil
}

// GetAsset returns one asset scoped to an organization. A wrong-tenant id
// behaves exactly like a missing asset.
func (s *Store) GetAsset(ctx context.Context, orgID, assetID string) (*models.Asset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, booking_type, time_slots, status,
		       price_per_day, currency, agent_fee, created_at, updated_at, version
		FROM assets WHERE id = ? AND organization_id = ?`,
		assetID, orgID,
	)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrAssetNotFound
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return asset, nil
}

// ListAssets returns the organization's full asset snapshot.
func (s *Store) ListAssets(ctx context.Context, orgID string) ([]models.Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, organization_id, name, booking_type, time_slots, status,
		       price_per_day, currency, agent_fee, created_at, updated_at, version
		FROM assets WHERE organization_id = ? ORDER BY name, id`, orgID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var assets []models.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *asset)
	}
	return assets, rows.Err()
}

// UpdateAssetCatalog replaces the slot catalog after validation. Removing a
// slot a live booking still holds is rejected with ErrAssetInUse, since the
// booking would otherwise be orphaned outside the catalog. Cancelled
// bookings never block an edit.
func (s *Store) UpdateAssetCatalog(ctx context.Context, orgID, assetID string, slots []models.TimeSlot) error {
	normalized, err := catalog.Normalize(slots)
	if err != nil {
		return err
	}
	slotsJSON, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	keep := make(map[string]struct{}, len(normalized))
	for _, slot := range normalized {
		keep[slot.Key()] = struct{}{}
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		booked, err := bookedSlotsTx(ctx, tx, orgID, assetID)
		if err != nil {
			return err
		}
		for _, slot := range booked {
			if _, ok := keep[slot.Key()]; !ok {
				return fmt.Errorf("%w: slot %s still has bookings", models.ErrAssetInUse, slot)
			}
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE assets SET time_slots = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND organization_id = ?`,
			string(slotsJSON), time.Now(), assetID, orgID,
		)
		if err != nil {
			return fmt.Errorf("update catalog: %w", mapErr(err))
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.ErrAssetNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publishAssets(ctx, orgID)
	return nil
}

// bookedSlotsTx lists the distinct slots held by non-cancelled bookings of
// one asset.
func bookedSlotsTx(ctx context.Context, tx *sql.Tx, orgID, assetID string) ([]models.TimeSlot, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT DISTINCT slot_start, slot_end FROM bookings
		WHERE organization_id = ? AND asset_id = ?
		  AND slot_start IS NOT NULL AND status != 'cancelled'`,
		orgID, assetID,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var booked []models.TimeSlot
	for rows.Next() {
		var slot models.TimeSlot
		if err := rows.Scan(&slot.Start, &slot.End); err != nil {
			return nil, err
		}
		booked = append(booked, slot)
	}
	return booked, rows.Err()
}

// UpdateAssetStatus writes the materialized status cache. The field is
// cosmetic; availability is always recomputed from bookings.
func (s *Store) UpdateAssetStatus(ctx context.Context, orgID, assetID string, status models.AssetStatus) error {
	return s.updateAssetStatus(ctx, s.db, orgID, assetID, status, true)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) updateAssetStatus(ctx context.Context, ex execer, orgID, assetID string, status models.AssetStatus, publish bool) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE assets SET status = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND organization_id = ?`,
		status, time.Now(), assetID, orgID,
	)
	if err != nil {
		return fmt.Errorf("update asset status: %w", mapErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrAssetNotFound
	}
	if publish {
		s.publishAssets(ctx, orgID)
	}
	return nil
}

// DeleteAsset removes an asset without active bookings. Deleting an asset
// with live bookings is rejected; there is no cascade.
func (s *Store) DeleteAsset(ctx context.Context, orgID, assetID string) error {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE asset_id = ? AND organization_id = ? AND status != 'cancelled'`,
		assetID, orgID,
	).Scan(&count)
	if err != nil {
		return mapErr(err)
	}
	if count > 0 {
		return models.ErrAssetInUse
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM assets WHERE id = ? AND organization_id = ?", assetID, orgID)
	if err != nil {
		return fmt.Errorf("delete asset: %w", mapErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrAssetNotFound
	}

	s.publishAssets(ctx, orgID)
	return nil
}

// SubscribeAssets delivers the current asset snapshot immediately, then on
// every change, until the returned Unsubscribe is called.
func (s *Store) SubscribeAssets(ctx context.Context, orgID string, onChange func([]models.Asset)) (events.Unsubscribe, error) {
	assets, err := s.ListAssets(ctx, orgID)
	if err != nil {
		return nil, err
	}
	unsubscribe := s.bus.Subscribe(events.TopicAssets, orgID, func(e events.Event) {
		if snapshot, ok := e.Snapshot.([]models.Asset); ok {
			onChange(snapshot)
		}
	})
	onChange(assets)
	return unsubscribe, nil
}

func (s *Store) publishAssets(ctx context.Context, orgID string) {
	assets, err := s.ListAssets(ctx, orgID)
	if err != nil {
		return
	}
	s.bus.Publish(events.TopicAssets, orgID, assets)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*models.Asset, error) {
	var a models.Asset
	var slotsJSON string
	err := row.Scan(
		&a.ID, &a.OrganizationID, &a.Name, &a.BookingType, &slotsJSON, &a.Status,
		&a.PricePerDay, &a.Currency, &a.AgentFee, &a.CreatedAt, &a.UpdatedAt, &a.Version,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(slotsJSON), &a.TimeSlots); err != nil {
		return nil, fmt.Errorf("unmarshal catalog for asset %s: %w", a.ID, err)
	}
	return &a, nil
}
