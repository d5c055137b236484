package store

import (
	"context"
	"fmt"
	"time"
)

// AuditEntry records one mutation for the organization's audit trail.
type AuditEntry struct {
	ID             int64     `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Actor          string    `json:"actor"`
	Action         string    `json:"action"`
	Entity         string    `json:"entity"`
	EntityID       string    `json:"entityId"`
	Details        string    `json:"details"`
	CreatedAt      time.Time `json:"createdAt"`
}

// AppendAudit writes an audit entry. Audit failures never fail the mutation
// they describe; callers log and continue.
func (s *Store) AppendAudit(ctx context.Context, e *AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (organization_id, actor, action, entity, entity_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.OrganizationID, e.Actor, e.Action, e.Entity, e.EntityID, e.Details, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit: %w", mapErr(err))
	}
	return nil
}

// ListAudit returns audit entries for an organization within a time range.
func (s *Store) ListAudit(ctx context.Context, orgID string, from, to time.Time) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, organization_id, actor, action, entity, entity_id, details, created_at
		FROM audit_log
		WHERE organization_id = ? AND created_at >= ? AND created_at <= ?
		ORDER BY created_at`,
		orgID, from, to,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.Actor, &e.Action, &e.Entity, &e.EntityID, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneAudit deletes audit entries older than the retention window and
// returns the number removed.
func (s *Store) PruneAudit(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM audit_log WHERE created_at < ?", time.Now().Add(-olderThan))
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}
