package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"assetbook/internal/availability"
	"assetbook/internal/cache"
	"assetbook/internal/metrics"
	"assetbook/internal/models"
)

// MaxAvailabilityDaysRange is the maximum number of days allowed in an
// availability request.
const MaxAvailabilityDaysRange = 90

// AvailabilityRequest is the request body for POST /api/orgs/{org}/availability.
type AvailabilityRequest struct {
	StartDate string   `json:"startDate"`          // Format: YYYY-MM-DD
	EndDate   string   `json:"endDate"`            // Format: YYYY-MM-DD
	AssetIDs  []string `json:"assetIds,omitempty"` // Optional: filter by asset
}

// DateAvailability is the resolved state of one asset on one date.
type DateAvailability struct {
	Date        string                   `json:"date"`
	Available   bool                     `json:"available"`
	FullyBooked bool                     `json:"fullyBooked"`
	Slots       []availability.SlotState `json:"slots,omitempty"`
}

// AssetAvailability is one asset with its per-date resolution.
type AssetAvailability struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	BookingType  models.BookingType `json:"bookingType"`
	Availability []DateAvailability `json:"availability"`
}

// AvailabilityResponse is the response for POST /api/orgs/{org}/availability.
type AvailabilityResponse struct {
	Assets []AssetAvailability `json:"assets"`
	Period struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"period"`
}

// handleAvailability resolves availability for assets within a date range.
// POST /api/orgs/{org}/availability
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")
	orgID := r.PathValue("org")

	var req AvailabilityRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start, end, err := validateAvailabilityRange(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cacheKey := ""
	if s.snapshots != nil && len(req.AssetIDs) == 0 {
		cacheKey = cache.AvailabilityKey(orgID, req.StartDate, req.EndDate)
		var cached AvailabilityResponse
		if s.snapshots.Read(r.Context(), cacheKey, &cached) {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	assets, err := s.store.ListAssets(r.Context(), orgID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	bookings, err := s.store.ListBookingsInRange(r.Context(), orgID, start, end)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	response := AvailabilityResponse{Assets: make([]AssetAvailability, 0, len(assets))}
	response.Period.Start = req.StartDate
	response.Period.End = req.EndDate

	for i := range assets {
		asset := &assets[i]
		if !includeAsset(asset.ID, req.AssetIDs) {
			continue
		}

		days := make([]DateAvailability, 0, int(end.Sub(start).Hours()/24)+1)
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			res := availability.Resolve(asset, d, bookings)
			days = append(days, DateAvailability{
				Date:        models.FormatDate(d),
				Available:   res.Available,
				FullyBooked: res.FullyBooked,
				Slots:       res.Slots,
			})
		}
		response.Assets = append(response.Assets, AssetAvailability{
			ID:           asset.ID,
			Name:         asset.Name,
			BookingType:  asset.BookingType,
			Availability: days,
		})
	}

	if cacheKey != "" {
		s.snapshots.Write(r.Context(), cacheKey, response)
	}
	writeJSON(w, http.StatusOK, response)
}

func validateAvailabilityRange(req *AvailabilityRequest) (start, end time.Time, err error) {
	if req.StartDate == "" || req.EndDate == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("startDate and endDate are required")
	}

	start, err = models.ParseDate(req.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid startDate format; expected YYYY-MM-DD")
	}
	end, err = models.ParseDate(req.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid endDate format; expected YYYY-MM-DD")
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("startDate must be before or equal to endDate")
	}
	if int(end.Sub(start).Hours()/24) > MaxAvailabilityDaysRange {
		return time.Time{}, time.Time{}, fmt.Errorf("date range exceeds maximum of %d days", MaxAvailabilityDaysRange)
	}
	return start, end, nil
}

func includeAsset(id string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, want := range filter {
		if id == want {
			return true
		}
	}
	return false
}
