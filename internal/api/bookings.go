package api

import (
	"encoding/json"
	"net/http"
	"time"

	"assetbook/internal/metrics"
	"assetbook/internal/models"
	"assetbook/internal/service"
)

// CreateBookingRequest is the request body for POST /api/orgs/{org}/bookings.
type CreateBookingRequest struct {
	AssetID        string           `json:"assetId"`
	Date           string           `json:"date"` // Format: YYYY-MM-DD
	TimeSlot       *models.TimeSlot `json:"timeSlot,omitempty"`
	Description    string           `json:"description,omitempty"`
	ClientName     string           `json:"clientName,omitempty"`
	NumberOfPeople string           `json:"numberOfPeople,omitempty"`
	CustomPrice    string           `json:"customPrice,omitempty"`
	CustomAgentFee string           `json:"customAgentFee,omitempty"`
}

// UpdateBookingRequest carries partial booking changes; absent fields are
// left untouched.
type UpdateBookingRequest struct {
	Date           *string          `json:"date,omitempty"`
	TimeSlot       *models.TimeSlot `json:"timeSlot,omitempty"`
	Description    *string          `json:"description,omitempty"`
	ClientName     *string          `json:"clientName,omitempty"`
	NumberOfPeople *string          `json:"numberOfPeople,omitempty"`
	CustomPrice    *string          `json:"customPrice,omitempty"`
	CustomAgentFee *string          `json:"customAgentFee,omitempty"`
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_booking")
	orgID := r.PathValue("org")

	var req CreateBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	date, err := models.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	booking, err := s.bookings.Create(r.Context(), orgID, actorID(r), service.CreateRequest{
		AssetID:        req.AssetID,
		Date:           date,
		TimeSlot:       req.TimeSlot,
		Description:    req.Description,
		ClientName:     req.ClientName,
		NumberOfPeople: req.NumberOfPeople,
		CustomPrice:    req.CustomPrice,
		CustomAgentFee: req.CustomAgentFee,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.invalidate(r, orgID)
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("update_booking")
	orgID := r.PathValue("org")
	bookingID := r.PathValue("booking")

	var req UpdateBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	update := service.UpdateRequest{
		TimeSlot:       req.TimeSlot,
		Description:    req.Description,
		ClientName:     req.ClientName,
		NumberOfPeople: req.NumberOfPeople,
		CustomPrice:    req.CustomPrice,
		CustomAgentFee: req.CustomAgentFee,
	}
	if req.Date != nil {
		date, err := models.ParseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		update.Date = &date
	}

	booking, err := s.bookings.Update(r.Context(), orgID, actorID(r), bookingID, update)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.invalidate(r, orgID)
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel_booking")
	orgID := r.PathValue("org")
	bookingID := r.PathValue("booking")

	booking, err := s.bookings.Cancel(r.Context(), orgID, actorID(r), bookingID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.invalidate(r, orgID)
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_booking")
	orgID := r.PathValue("org")
	bookingID := r.PathValue("booking")

	if err := s.bookings.Delete(r.Context(), orgID, actorID(r), bookingID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.invalidate(r, orgID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_bookings")
	orgID := r.PathValue("org")

	from, to, err := parseRangeQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bookings, err := s.store.ListBookingsInRange(r.Context(), orgID, from, to)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

// parseRangeQuery reads from/to date query parameters, defaulting to the
// current month when absent.
func parseRangeQuery(r *http.Request) (time.Time, time.Time, error) {
	now := models.DateOnly(time.Now())
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)

	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = models.ParseDate(raw); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = models.ParseDate(raw); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if from.After(to) {
		from, to = to, from
	}
	return from, to, nil
}
