// Package api exposes the booking engine over HTTP for organization
// dashboards and integrations.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"assetbook/internal/cache"
	"assetbook/internal/models"
	"assetbook/internal/service"
	"assetbook/internal/store"
)

// HTTPServer serves the organization-scoped booking API.
type HTTPServer struct {
	store     *store.Store
	bookings  *service.BookingService
	snapshots *cache.SnapshotCache
	logger    *zerolog.Logger
	limiter   *rate.Limiter
	server    *http.Server
}

// Options configures the HTTP server.
type Options struct {
	Port            int
	RateLimitPerSec float64
	RateBurst       int
}

// NewHTTPServer wires the API routes. snapshots may be nil to disable the
// read cache.
func NewHTTPServer(st *store.Store, bookings *service.BookingService, snapshots *cache.SnapshotCache, logger *zerolog.Logger, opts Options) *HTTPServer {
	if opts.RateLimitPerSec <= 0 {
		opts.RateLimitPerSec = 50
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 100
	}

	s := &HTTPServer{
		store:     st,
		bookings:  bookings,
		snapshots: snapshots,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Limit(opts.RateLimitPerSec), opts.RateBurst),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orgs/{org}/assets", s.handleListAssets)
	mux.HandleFunc("POST /api/orgs/{org}/assets", s.handleCreateAsset)
	mux.HandleFunc("PUT /api/orgs/{org}/assets/{asset}/slots", s.handleUpdateCatalog)
	mux.HandleFunc("DELETE /api/orgs/{org}/assets/{asset}", s.handleDeleteAsset)
	mux.HandleFunc("POST /api/orgs/{org}/bookings", s.handleCreateBooking)
	mux.HandleFunc("PATCH /api/orgs/{org}/bookings/{booking}", s.handleUpdateBooking)
	mux.HandleFunc("POST /api/orgs/{org}/bookings/{booking}/cancel", s.handleCancelBooking)
	mux.HandleFunc("DELETE /api/orgs/{org}/bookings/{booking}", s.handleDeleteBooking)
	mux.HandleFunc("GET /api/orgs/{org}/bookings", s.handleListBookings)
	mux.HandleFunc("POST /api/orgs/{org}/availability", s.handleAvailability)
	mux.HandleFunc("GET /api/orgs/{org}/calendar", s.handleCalendar)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.rateLimit(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("api server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the routed handler for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// actorID identifies the acting member. Authentication happens upstream;
// the gateway forwards the verified identity in this header.
func actorID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors onto HTTP statuses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrAssetNotFound), errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case models.IsConflict(err),
		errors.Is(err, models.ErrVersionConflict),
		errors.Is(err, models.ErrAssetInUse),
		errors.Is(err, models.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrMissingTimeSlot),
		errors.Is(err, models.ErrInvalidTimeSlot),
		errors.Is(err, models.ErrOverlappingSlots):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrScopeViolation), errors.Is(err, models.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "access denied")
	case errors.Is(err, models.ErrTransientFailure):
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, retry the request")
	default:
		s.logger.Error().Err(err).Msg("unhandled api error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
