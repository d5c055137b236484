package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"assetbook/internal/metrics"
	"assetbook/internal/models"
)

// CreateAssetRequest is the request body for POST /api/orgs/{org}/assets.
type CreateAssetRequest struct {
	Name        string            `json:"name"`
	BookingType string            `json:"bookingType"`
	TimeSlots   []models.TimeSlot `json:"timeSlots,omitempty"`
	PricePerDay float64           `json:"pricePerDay,omitempty"`
	Currency    string            `json:"currency,omitempty"`
	AgentFee    float64           `json:"agentFee,omitempty"`
}

// UpdateCatalogRequest replaces a time-sliced asset's slot catalog.
type UpdateCatalogRequest struct {
	TimeSlots []models.TimeSlot `json:"timeSlots"`
}

func (s *HTTPServer) handleListAssets(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_assets")
	orgID := r.PathValue("org")

	assets, err := s.store.ListAssets(r.Context(), orgID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": assets})
}

func (s *HTTPServer) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_asset")
	orgID := r.PathValue("org")

	if _, ok := s.requireManager(w, r, orgID); !ok {
		return
	}

	var req CreateAssetRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	bookingType := models.BookingType(req.BookingType)
	if req.Name == "" || !bookingType.Valid() {
		writeError(w, http.StatusBadRequest, "name and a valid bookingType are required")
		return
	}

	asset := &models.Asset{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Name:           req.Name,
		BookingType:    bookingType,
		TimeSlots:      req.TimeSlots,
		PricePerDay:    req.PricePerDay,
		Currency:       req.Currency,
		AgentFee:       req.AgentFee,
	}
	if err := s.store.CreateAsset(r.Context(), asset); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.invalidate(r, orgID)
	writeJSON(w, http.StatusCreated, asset)
}

func (s *HTTPServer) handleUpdateCatalog(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("update_catalog")
	orgID := r.PathValue("org")
	assetID := r.PathValue("asset")

	if _, ok := s.requireManager(w, r, orgID); !ok {
		return
	}

	var req UpdateCatalogRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.store.UpdateAssetCatalog(r.Context(), orgID, assetID, req.TimeSlots); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.invalidate(r, orgID)

	asset, err := s.store.GetAsset(r.Context(), orgID, assetID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (s *HTTPServer) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_asset")
	orgID := r.PathValue("org")
	assetID := r.PathValue("asset")

	if _, ok := s.requireManager(w, r, orgID); !ok {
		return
	}

	if err := s.store.DeleteAsset(r.Context(), orgID, assetID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.invalidate(r, orgID)
	w.WriteHeader(http.StatusNoContent)
}

// requireManager resolves the acting member and checks asset-management
// permission, writing the failure response itself.
func (s *HTTPServer) requireManager(w http.ResponseWriter, r *http.Request, orgID string) (*models.Member, bool) {
	member, err := s.store.GetMember(r.Context(), orgID, actorID(r))
	if err != nil {
		writeError(w, http.StatusForbidden, "access denied")
		return nil, false
	}
	if !member.CanManageAssets() {
		writeError(w, http.StatusForbidden, "access denied")
		return nil, false
	}
	return member, true
}

func (s *HTTPServer) invalidate(r *http.Request, orgID string) {
	if s.snapshots != nil {
		s.snapshots.InvalidateOrg(r.Context(), orgID)
	}
}
