// Package store implements the synchronized document store backing the
// booking core: sqlite persistence plus org-scoped snapshot publication.
//
// Every mutation publishes the full current collection snapshot for the
// affected organization, so all subscribers observe the latest state and
// recompute derived views from it.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"assetbook/internal/events"
	"assetbook/internal/models"
)

// Store wraps sql.DB and the snapshot bus.
type Store struct {
	db  *sql.DB
	bus *events.Bus
}

// New opens the database at path, runs migrations and attaches the bus.
// Use ":memory:" for tests.
func New(path string, bus *events.Bus) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise open its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	if bus == nil {
		bus = events.NewBus()
	}
	return &Store{db: db, bus: bus}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks database liveness for readiness probes.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Bus exposes the snapshot bus for subscribers.
func (s *Store) Bus() *events.Bus { return s.bus }

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS organizations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS members (
			organization_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'member',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (organization_id, user_id),
			FOREIGN KEY (organization_id) REFERENCES organizations(id)
		)`,

		`CREATE TABLE IF NOT EXISTS assets (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			name TEXT NOT NULL,
			booking_type TEXT NOT NULL,
			time_slots TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT 'available',
			price_per_day REAL NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT '',
			agent_fee REAL NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			version INTEGER NOT NULL DEFAULT 1,
			FOREIGN KEY (organization_id) REFERENCES organizations(id)
		)`,

		// date is stored canonicalized to YYYY-MM-DD; bookings are matched
		// by date component only, never by full timestamp.
		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			asset_id TEXT NOT NULL,
			date TEXT NOT NULL,
			slot_start TEXT,
			slot_end TEXT,
			booked_by TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'confirmed',
			description TEXT NOT NULL DEFAULT '',
			client_name TEXT NOT NULL DEFAULT '',
			number_of_people INTEGER,
			custom_price REAL,
			custom_agent_fee REAL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			version INTEGER NOT NULL DEFAULT 1,
			FOREIGN KEY (organization_id) REFERENCES organizations(id),
			FOREIGN KEY (asset_id) REFERENCES assets(id)
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			organization_id TEXT NOT NULL,
			actor TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			entity TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_assets_org ON assets(organization_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_org ON bookings(organization_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_asset_date ON bookings(asset_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_org ON audit_log(organization_id, created_at)`,

		// Last line of defense against double booking if a write path ever
		// bypasses the transactional conflict re-check.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_fullday_unique
			ON bookings(asset_id, date)
			WHERE slot_start IS NULL AND status != 'cancelled'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_slot_unique
			ON bookings(asset_id, date, slot_start, slot_end)
			WHERE slot_start IS NOT NULL AND status != 'cancelled'`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// mapErr translates driver failures into the domain error taxonomy.
// Busy/locked errors are retryable; unique-constraint hits on the booking
// indexes are contention.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", models.ErrTransientFailure, err)
		case sqlite3.ErrConstraint:
			if strings.Contains(err.Error(), "idx_bookings_fullday_unique") {
				return models.ErrFullDayConflict
			}
			if strings.Contains(err.Error(), "idx_bookings_slot_unique") {
				return models.ErrSlotConflict
			}
		}
	}
	return err
}

// CreateOrganization persists a new organization.
func (s *Store) CreateOrganization(ctx context.Context, org *models.Organization) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, owner_id) VALUES (?, ?, ?)`,
		org.ID, org.Name, org.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("insert organization: %w", mapErr(err))
	}
	return nil
}

// GetOrganization returns one organization by id.
func (s *Store) GetOrganization(ctx context.Context, orgID string) (*models.Organization, error) {
	var org models.Organization
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, created_at, updated_at
		FROM organizations WHERE id = ?`, orgID,
	).Scan(&org.ID, &org.Name, &org.OwnerID, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return &org, nil
}

// ListOrganizations returns all organizations.
func (s *Store) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, owner_id, created_at, updated_at
		FROM organizations ORDER BY name`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var orgs []models.Organization
	for rows.Next() {
		var org models.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.OwnerID, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// UpsertMember adds or updates an organization membership.
func (s *Store) UpsertMember(ctx context.Context, m *models.Member) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (organization_id, user_id, email, role)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(organization_id, user_id) DO UPDATE SET
			email = excluded.email,
			role = excluded.role`,
		m.OrganizationID, m.UserID, m.Email, m.Role,
	)
	if err != nil {
		return fmt.Errorf("upsert member: %w", mapErr(err))
	}
	return nil
}

// GetMember returns one membership record.
func (s *Store) GetMember(ctx context.Context, orgID, userID string) (*models.Member, error) {
	var m models.Member
	err := s.db.QueryRowContext(ctx, `
		SELECT organization_id, user_id, email, role, created_at
		FROM members WHERE organization_id = ? AND user_id = ?`,
		orgID, userID,
	).Scan(&m.OrganizationID, &m.UserID, &m.Email, &m.Role, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

// ListMembers returns all members of an organization.
func (s *Store) ListMembers(ctx context.Context, orgID string) ([]models.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT organization_id, user_id, email, role, created_at
		FROM members WHERE organization_id = ? ORDER BY user_id`, orgID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.OrganizationID, &m.UserID, &m.Email, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
