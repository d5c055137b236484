package models

import "errors"

// Validation and contention failures are detected before any write is
// attempted. Each rejection carries a specific reason so callers can explain
// why a slot or day is unavailable.
var (
	// ErrAssetNotFound means the booking references a non-existent or
	// cross-tenant asset. Not retryable.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrMissingTimeSlot means a time-sliced asset was booked without a slot.
	ErrMissingTimeSlot = errors.New("time slot is required for this asset")

	// ErrInvalidTimeSlot means the proposed slot is not in the asset's
	// current catalog (stale client state after a catalog edit).
	ErrInvalidTimeSlot = errors.New("time slot is not in the asset catalog")

	// ErrFullDayConflict means the asset is already booked for that date.
	ErrFullDayConflict = errors.New("asset is already booked for this date")

	// ErrSlotConflict means the exact catalog slot is already taken.
	ErrSlotConflict = errors.New("time slot is already booked")

	// ErrOverlappingSlots rejects a catalog edit whose slots intersect.
	ErrOverlappingSlots = errors.New("catalog slots overlap")

	// ErrScopeViolation means a cross-organization reference. Treated as a
	// programming or security defect and logged loudly.
	ErrScopeViolation = errors.New("cross-organization reference")

	// ErrNotFound is a generic missing-record failure.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict means an optimistic version check failed; the
	// caller must re-read and retry with fresh input.
	ErrVersionConflict = errors.New("record was modified concurrently")

	// ErrTransientFailure is a transport-level failure safe to retry with
	// backoff a bounded number of times.
	ErrTransientFailure = errors.New("transient store failure")

	// ErrAssetInUse rejects deleting an asset, or removing booked catalog
	// slots, while non-cancelled bookings still exist against it.
	ErrAssetInUse = errors.New("asset has active bookings")

	// ErrPermissionDenied means the member's role does not allow the operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidTransition rejects a lifecycle change the status machine
	// does not allow, like cancelling an already cancelled booking.
	ErrInvalidTransition = errors.New("invalid booking status transition")
)

// Retryable reports whether an error is safe to retry without new input.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransientFailure)
}

// IsConflict reports whether an error is legitimate booking contention,
// surfaced to the user as "already booked" and never retried automatically.
func IsConflict(err error) bool {
	return errors.Is(err, ErrFullDayConflict) || errors.Is(err, ErrSlotConflict)
}
