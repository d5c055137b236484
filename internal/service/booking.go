// Package service orchestrates the booking lifecycle: conflict validation,
// transactional writes, compensating asset-status updates and snapshot
// publication side effects.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"assetbook/internal/metrics"
	"assetbook/internal/models"
	"assetbook/internal/store"
)

// Repository is the store surface the lifecycle controller depends on.
type Repository interface {
	GetAsset(ctx context.Context, orgID, assetID string) (*models.Asset, error)
	GetBooking(ctx context.Context, orgID, bookingID string) (*models.Booking, error)
	GetMember(ctx context.Context, orgID, userID string) (*models.Member, error)
	CreateBooking(ctx context.Context, asset *models.Asset, booking *models.Booking) error
	UpdateBooking(ctx context.Context, asset *models.Asset, booking *models.Booking, expectedVersion int64) error
	CancelBooking(ctx context.Context, orgID, bookingID string) (*models.Booking, error)
	DeleteBooking(ctx context.Context, orgID, bookingID string) error
	AppendAudit(ctx context.Context, e *store.AuditEntry) error
}

// Guard serializes writers per (organization, asset, date) partition.
type Guard interface {
	Acquire(ctx context.Context, orgID, assetID string, date time.Time) (bool, error)
	Release(ctx context.Context, orgID, assetID string, date time.Time)
}

// Notifier delivers booking lifecycle notifications. Implementations must
// tolerate being called concurrently.
type Notifier interface {
	BookingCreated(ctx context.Context, booking *models.Booking, asset *models.Asset)
	BookingCancelled(ctx context.Context, booking *models.Booking)
	BookingDeleted(ctx context.Context, booking *models.Booking)
}

const (
	defaultWriteTimeout = 5 * time.Second
	maxWriteRetries     = 3
	retryBackoff        = 50 * time.Millisecond
)

// BookingService is the booking lifecycle controller. All mutations for an
// organization pass through here; the conflict check and the write are
// atomic per (organization, asset, date) partition.
type BookingService struct {
	repo     Repository
	guard    Guard
	notifier Notifier
	logger   *zerolog.Logger

	mu       sync.Mutex
	orgLocks map[string]*sync.Mutex

	writeTimeout time.Duration
}

// NewBookingService creates the lifecycle controller. guard and notifier
// may be nil.
func NewBookingService(repo Repository, guard Guard, notifier Notifier, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		repo:         repo,
		guard:        guard,
		notifier:     notifier,
		logger:       logger,
		orgLocks:     make(map[string]*sync.Mutex),
		writeTimeout: defaultWriteTimeout,
	}
}

// CreateRequest is a booking intent submitted by a member.
type CreateRequest struct {
	AssetID        string           `json:"assetId"`
	Date           time.Time        `json:"date"`
	TimeSlot       *models.TimeSlot `json:"timeSlot,omitempty"`
	Description    string           `json:"description,omitempty"`
	ClientName     string           `json:"clientName,omitempty"`
	NumberOfPeople string           `json:"numberOfPeople,omitempty"`
	CustomPrice    string           `json:"customPrice,omitempty"`
	CustomAgentFee string           `json:"customAgentFee,omitempty"`
}

// Create validates and persists a new booking for the acting member.
// On success the booking is confirmed; for full-day assets the asset status
// flips to unavailable in the same transaction.
func (s *BookingService) Create(ctx context.Context, orgID, actorID string, req CreateRequest) (*models.Booking, error) {
	member, err := s.requireMember(ctx, orgID, actorID)
	if err != nil {
		return nil, err
	}

	asset, err := s.repo.GetAsset(ctx, orgID, req.AssetID)
	if err != nil {
		metrics.IncBookingRejected("asset_not_found")
		return nil, err
	}

	booking := &models.Booking{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		AssetID:        asset.ID,
		Date:           models.DateOnly(req.Date),
		TimeSlot:       req.TimeSlot,
		BookedBy:       member.Email,
		Status:         models.StatusProposed,
		Description:    req.Description,
		ClientName:     req.ClientName,
	}
	if err := applyNumericFields(booking, asset, req.NumberOfPeople, req.CustomPrice, req.CustomAgentFee); err != nil {
		metrics.IncBookingRejected("invalid_input")
		return nil, err
	}
	if !models.CanTransition(booking.Status, models.StatusConfirmed) {
		return nil, fmt.Errorf("booking %s cannot be confirmed from %s", booking.ID, booking.Status)
	}

	unlock := s.lockOrg(orgID)
	defer unlock()

	release, err := s.acquireGuard(ctx, orgID, asset.ID, booking.Date)
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.withRetries(ctx, func(ctx context.Context) error {
		return s.repo.CreateBooking(ctx, asset, booking)
	})
	if err != nil {
		s.countRejection(err)
		return nil, err
	}

	metrics.IncBookingCreated(string(asset.BookingType))
	s.audit(ctx, orgID, actorID, "create", "booking", booking.ID, describeBooking(booking))
	s.logger.Info().
		Str("org_id", orgID).
		Str("asset_id", asset.ID).
		Str("booking_id", booking.ID).
		Str("date", models.FormatDate(booking.Date)).
		Msg("booking created")

	if s.notifier != nil {
		s.notifier.BookingCreated(ctx, booking, asset)
	}
	return booking, nil
}

// UpdateRequest carries partial changes to an existing booking. Nil fields
// are left untouched; numeric fields follow the same parse-or-omit policy
// as creation.
type UpdateRequest struct {
	Date           *time.Time       `json:"date,omitempty"`
	TimeSlot       *models.TimeSlot `json:"timeSlot,omitempty"`
	Description    *string          `json:"description,omitempty"`
	ClientName     *string          `json:"clientName,omitempty"`
	NumberOfPeople *string          `json:"numberOfPeople,omitempty"`
	CustomPrice    *string          `json:"customPrice,omitempty"`
	CustomAgentFee *string          `json:"customAgentFee,omitempty"`
}

// Update applies changes to a booking. When the date or slot moves, the
// conflict check re-runs excluding the booking's own prior occupancy; an
// edit that keeps both never conflicts with itself.
func (s *BookingService) Update(ctx context.Context, orgID, actorID, bookingID string, req UpdateRequest) (*models.Booking, error) {
	if _, err := s.requireMember(ctx, orgID, actorID); err != nil {
		return nil, err
	}

	unlock := s.lockOrg(orgID)
	defer unlock()

	var updated *models.Booking
	err := s.withRetries(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetBooking(ctx, orgID, bookingID)
		if err != nil {
			return err
		}
		asset, err := s.repo.GetAsset(ctx, orgID, current.AssetID)
		if err != nil {
			return err
		}

		next := *current
		if req.Date != nil {
			next.Date = models.DateOnly(*req.Date)
		}
		if req.TimeSlot != nil {
			next.TimeSlot = req.TimeSlot
		}
		if req.Description != nil {
			next.Description = *req.Description
		}
		if req.ClientName != nil {
			next.ClientName = *req.ClientName
		}
		if err := applyNumericUpdates(&next, asset, req); err != nil {
			return err
		}

		release, err := s.acquireGuard(ctx, orgID, asset.ID, next.Date)
		if err != nil {
			return err
		}
		defer release()

		if err := s.repo.UpdateBooking(ctx, asset, &next, current.Version); err != nil {
			if errors.Is(err, models.ErrVersionConflict) {
				// Re-read and reapply on the next retry round.
				return fmt.Errorf("%w: %v", models.ErrTransientFailure, err)
			}
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		s.countRejection(err)
		return nil, err
	}

	metrics.IncBookingUpdated()
	s.audit(ctx, orgID, actorID, "update", "booking", bookingID, describeBooking(updated))
	s.logger.Info().
		Str("org_id", orgID).
		Str("booking_id", bookingID).
		Msg("booking updated")
	return updated, nil
}

// Cancel moves a booking to cancelled without removing the row: reports and
// the audit trail keep it, occupancy checks stop counting it. The permission
// gate is the same as for deletion.
func (s *BookingService) Cancel(ctx context.Context, orgID, actorID, bookingID string) (*models.Booking, error) {
	member, err := s.requireMember(ctx, orgID, actorID)
	if err != nil {
		return nil, err
	}
	if !member.CanDelete() {
		return nil, models.ErrPermissionDenied
	}

	unlock := s.lockOrg(orgID)
	defer unlock()

	var cancelled *models.Booking
	err = s.withRetries(ctx, func(ctx context.Context) error {
		booking, err := s.repo.CancelBooking(ctx, orgID, bookingID)
		if err != nil {
			return err
		}
		cancelled = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncBookingCancelled()
	s.audit(ctx, orgID, actorID, "cancel", "booking", bookingID, describeBooking(cancelled))
	s.logger.Info().
		Str("org_id", orgID).
		Str("booking_id", bookingID).
		Msg("booking cancelled")

	if s.notifier != nil {
		s.notifier.BookingCancelled(ctx, cancelled)
	}
	return cancelled, nil
}

// Delete removes a booking for a member with delete permission. When the
// deleted booking was the last full-day occupant, the asset status side
// effect is reversed in the same transaction.
func (s *BookingService) Delete(ctx context.Context, orgID, actorID, bookingID string) error {
	member, err := s.requireMember(ctx, orgID, actorID)
	if err != nil {
		return err
	}
	if !member.CanDelete() {
		return models.ErrPermissionDenied
	}

	unlock := s.lockOrg(orgID)
	defer unlock()

	booking, err := s.repo.GetBooking(ctx, orgID, bookingID)
	if err != nil {
		return err
	}

	err = s.withRetries(ctx, func(ctx context.Context) error {
		return s.repo.DeleteBooking(ctx, orgID, bookingID)
	})
	if err != nil {
		return err
	}

	metrics.IncBookingDeleted()
	s.audit(ctx, orgID, actorID, "delete", "booking", bookingID, describeBooking(booking))
	s.logger.Info().
		Str("org_id", orgID).
		Str("booking_id", bookingID).
		Msg("booking deleted")

	if s.notifier != nil {
		s.notifier.BookingDeleted(ctx, booking)
	}
	return nil
}

func (s *BookingService) requireMember(ctx context.Context, orgID, actorID string) (*models.Member, error) {
	member, err := s.repo.GetMember(ctx, orgID, actorID)
	if errors.Is(err, models.ErrNotFound) {
		// A non-member acting inside another tenant is a security defect,
		// not a user mistake.
		s.logger.Error().
			Str("org_id", orgID).
			Str("actor_id", actorID).
			Msg("cross-organization access attempt")
		return nil, models.ErrScopeViolation
	}
	if err != nil {
		return nil, err
	}
	return member, nil
}

// lockOrg serializes mutations per organization so the check-then-act
// sequence cannot interleave between two in-process writers.
func (s *BookingService) lockOrg(orgID string) func() {
	s.mu.Lock()
	lock, ok := s.orgLocks[orgID]
	if !ok {
		lock = &sync.Mutex{}
		s.orgLocks[orgID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (s *BookingService) acquireGuard(ctx context.Context, orgID, assetID string, date time.Time) (func(), error) {
	if s.guard == nil {
		return func() {}, nil
	}
	ok, err := s.guard.Acquire(ctx, orgID, assetID, date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTransientFailure, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: booking partition is locked by another writer", models.ErrTransientFailure)
	}
	return func() { s.guard.Release(ctx, orgID, assetID, date) }, nil
}

// withRetries runs fn under a bounded timeout, retrying transient store
// failures with backoff. Validation and conflict failures are never retried.
func (s *BookingService) withRetries(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		if attempt > 0 {
			metrics.IncTxRetry()
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", models.ErrTransientFailure, ctx.Err())
			case <-time.After(retryBackoff * time.Duration(attempt)):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		if !models.Retryable(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (s *BookingService) countRejection(err error) {
	switch {
	case errors.Is(err, models.ErrFullDayConflict):
		metrics.IncBookingRejected("full_day_conflict")
	case errors.Is(err, models.ErrSlotConflict):
		metrics.IncBookingRejected("slot_conflict")
	case errors.Is(err, models.ErrMissingTimeSlot):
		metrics.IncBookingRejected("missing_slot")
	case errors.Is(err, models.ErrInvalidTimeSlot):
		metrics.IncBookingRejected("invalid_slot")
	case errors.Is(err, models.ErrAssetNotFound):
		metrics.IncBookingRejected("asset_not_found")
	}
}

func (s *BookingService) audit(ctx context.Context, orgID, actor, action, entity, entityID, details string) {
	err := s.repo.AppendAudit(ctx, &store.AuditEntry{
		OrganizationID: orgID,
		Actor:          actor,
		Action:         action,
		Entity:         entity,
		EntityID:       entityID,
		Details:        details,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("org_id", orgID).Msg("audit append failed")
	}
}

func describeBooking(b *models.Booking) string {
	if b == nil {
		return ""
	}
	if b.TimeSlot != nil {
		return fmt.Sprintf("asset=%s date=%s slot=%s", b.AssetID, models.FormatDate(b.Date), b.TimeSlot)
	}
	return fmt.Sprintf("asset=%s date=%s", b.AssetID, models.FormatDate(b.Date))
}
