package api

import (
	"net/http"
	"time"

	"assetbook/internal/cache"
	"assetbook/internal/calendar"
	"assetbook/internal/metrics"
	"assetbook/internal/models"
)

// CalendarResponse is the response for GET /api/orgs/{org}/calendar.
type CalendarResponse struct {
	Days   []calendar.DaySummary `json:"days"`
	Period struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"period"`
}

// handleCalendar returns the per-day occupancy summary for an organization.
// GET /api/orgs/{org}/calendar?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *HTTPServer) handleCalendar(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("calendar")
	orgID := r.PathValue("org")

	from, to := calendar.DefaultRange(time.Now())
	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = models.ParseDate(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date; expected YYYY-MM-DD")
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = models.ParseDate(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date; expected YYYY-MM-DD")
			return
		}
	}
	if from.After(to) {
		writeError(w, http.StatusBadRequest, "from must be before or equal to to")
		return
	}

	fromStr, toStr := models.FormatDate(from), models.FormatDate(to)

	cacheKey := ""
	if s.snapshots != nil {
		cacheKey = cache.CalendarKey(orgID, fromStr, toStr)
		var cached CalendarResponse
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
	bookings, err := s.store.ListBookingsInRange(r.Context(), orgID, from, to)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	response := CalendarResponse{Days: calendar.Range(from, to, assets, bookings)}
	response.Period.Start = fromStr
	response.Period.End = toStr

	if cacheKey != "" {
		s.snapshots.Write(r.Context(), cacheKey, response)
	}
	writeJSON(w, http.StatusOK, response)
}
