package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"trackhub/backend/services/tracking-service/internal/models"
	"trackhub/backend/services/tracking-service/internal/service"
)

// PositionsHandlers serves the tenant-scoped read APIs.
type PositionsHandlers struct {
	service *service.PositionsService
	logger  *zap.Logger
}

// NewPositionsHandlers returns handler.
func NewPositionsHandlers(svc *service.PositionsService, logger *zap.Logger) *PositionsHandlers {
	return &PositionsHandlers{service: svc, logger: logger}
}

// Latest handles GET /positions/latest/{imei}.
func (h *PositionsHandlers) Latest(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	p, err := h.service.Latest(r.Context(), chi.URLParam(r, "imei"), scope)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// List handles GET /positions?device_id=&limit=.
func (h *PositionsHandlers) List(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	filter := models.PositionFilter{Scope: scope, Limit: service.DefaultListLimit}
	q := r.URL.Query()
	if v := q.Get("device_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid device_id")
			return
		}
		filter.DeviceID = id
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	positions, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(positions))
}

// Snapshot handles GET /positions/snapshot.
func (h *PositionsHandlers) Snapshot(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	positions, err := h.service.Snapshot(r.Context(), scope)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(positions))
}

// Route handles GET /positions/routes/{device_id}?start_date=&end_date=.
func (h *PositionsHandlers) Route(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	deviceID, err := strconv.ParseInt(chi.URLParam(r, "device_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid device_id")
		return
	}
	from, err := timeParam(r, "start_date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date")
		return
	}
	to, err := timeParam(r, "end_date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date")
		return
	}

	route, err := h.service.Route(r.Context(), deviceID, scope, from, to)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, route)
}

// Trips handles GET /positions/trips/{device_id}?days=.
func (h *PositionsHandlers) Trips(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	deviceID, err := strconv.ParseInt(chi.URLParam(r, "device_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid device_id")
		return
	}
	days := service.DefaultTripDays
	if v := r.URL.Query().Get("days"); v != "" {
		days, err = strconv.Atoi(v)
		if err != nil || days <= 0 || days > service.MaxTripDays {
			writeError(w, http.StatusBadRequest, "invalid days")
			return
		}
	}

	summary, err := h.service.Trips(r.Context(), deviceID, scope, days)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *PositionsHandlers) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNoPositions):
		writeError(w, http.StatusNotFound, "no positions")
	case errors.Is(err, service.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, "device not found")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		h.logger.Error("positions query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func timeParam(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nonNil(positions []models.Position) []models.Position {
	if positions == nil {
		return []models.Position{}
	}
	return positions
}
