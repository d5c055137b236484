package models

import "time"

// BookingType selects how an asset's day is claimed.
type BookingType string

const (
	// BookingFullDay means the asset is exclusively claimed for an entire calendar date.
	BookingFullDay BookingType = "fullDay"
	// BookingTimeSlots means the asset's day is divided into a fixed catalog of slots.
	BookingTimeSlots BookingType = "timeSlots"
)

// Valid reports whether the booking type is one of the known modalities.
func (t BookingType) Valid() bool {
	return t == BookingFullDay || t == BookingTimeSlots
}

// AssetStatus is a materialized availability cache on the asset record.
// It is mutated as a side effect of full-day booking writes and is cosmetic:
// true availability is always recomputed from the booking set.
type AssetStatus string

const (
	AssetAvailable   AssetStatus = "available"
	AssetUnavailable AssetStatus = "unavailable"
)

// Asset is a bookable resource (room, vehicle, property) owned by an organization.
type Asset struct {
	ID             string      `json:"id"`
	OrganizationID string      `json:"organizationId"`
	Name           string      `json:"name"`
	BookingType    BookingType `json:"bookingType"`
	TimeSlots      []TimeSlot  `json:"timeSlots,omitempty"`
	Status         AssetStatus `json:"status"`
	PricePerDay    float64     `json:"pricePerDay"`
	Currency       string      `json:"currency"`
	AgentFee       float64     `json:"agentFee"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
	Version        int64       `json:"version"`
}

// MaxBookingsPerDay returns the nominal number of bookings an asset can take
// per day: always 1 for full-day assets, one per catalog slot otherwise.
func (a *Asset) MaxBookingsPerDay() int {
	if a.BookingType == BookingTimeSlots && len(a.TimeSlots) > 0 {
		return len(a.TimeSlots)
	}
	return 1
}

// SlotInCatalog reports whether the slot exactly matches a catalog entry.
func (a *Asset) SlotInCatalog(slot TimeSlot) bool {
	for _, s := range a.TimeSlots {
		if SlotsEqual(s, slot) {
			return true
		}
	}
	return false
}

// Booking is a claim on an asset for a specific date and, for time-sliced
// assets, a specific catalog slot.
type Booking struct {
	ID             string        `json:"id"`
	OrganizationID string        `json:"organizationId"`
	AssetID        string        `json:"assetId"`
	Date           time.Time     `json:"date"`
	TimeSlot       *TimeSlot     `json:"timeSlot,omitempty"`
	BookedBy       string        `json:"bookedBy"`
	Status         BookingStatus `json:"status"`
	Description    string        `json:"description,omitempty"`
	ClientName     string        `json:"clientName,omitempty"`
	NumberOfPeople *int          `json:"numberOfPeople,omitempty"`
	CustomPrice    *float64      `json:"customPrice,omitempty"`
	CustomAgentFee *float64      `json:"customAgentFee,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	Version        int64         `json:"version"`
}

// SlotKey returns the occupied-slot key for time-sliced bookings, or ""
// when the booking has no slot.
func (b *Booking) SlotKey() string {
	if b.TimeSlot == nil {
		return ""
	}
	return b.TimeSlot.Key()
}

// Organization is the multi-tenant boundary. All assets and bookings are
// scoped to exactly one organization.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MemberRole grants organization permissions.
type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
	RoleViewer MemberRole = "viewer"
)

// Member relates an identity to an organization with a role.
type Member struct {
	OrganizationID string     `json:"organizationId"`
	UserID         string     `json:"userId"`
	Email          string     `json:"email"`
	Role           MemberRole `json:"role"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// CanDelete reports whether the member may delete bookings.
func (m *Member) CanDelete() bool {
	return m.Role == RoleOwner || m.Role == RoleAdmin || m.Role == RoleMember
}

// CanManageAssets reports whether the member may edit assets and catalogs.
func (m *Member) CanManageAssets() bool {
	return m.Role == RoleOwner || m.Role == RoleAdmin
}
