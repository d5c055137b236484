package models

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusProposed  BookingStatus = "proposed"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
)

// bookingTransitions lists the allowed lifecycle moves. A proposed booking
// is confirmed once it passes conflict validation; a confirmed booking may
// be re-confirmed after an edit is re-validated, or cancelled.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	StatusProposed:  {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusConfirmed, StatusCancelled},
	StatusCancelled: {},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to BookingStatus) bool {
	for _, s := range bookingTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
