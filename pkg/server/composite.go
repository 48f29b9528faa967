package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jameshartig/chargeplan/pkg/composite"
	"github.com/jameshartig/chargeplan/pkg/controller"
	"github.com/jameshartig/chargeplan/pkg/log"
	"github.com/jameshartig/chargeplan/pkg/smartcharging"
	"github.com/jameshartig/chargeplan/pkg/storage"
	"github.com/jameshartig/chargeplan/pkg/types"
)

// errorCode maps service and engine errors to HTTP status codes.
func errorCode(err error) int {
	switch {
	case errors.Is(err, smartcharging.ErrRejected):
		return http.StatusBadRequest
	case errors.Is(err, composite.ErrMalformedSchedule),
		errors.Is(err, composite.ErrUnboundedRecurrence),
		errors.Is(err, composite.ErrUnitMismatch),
		errors.Is(err, composite.ErrInvalidWindow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrStationNotFound),
		errors.Is(err, smartcharging.ErrNoTransaction):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// handleGetComposite answers with the GetCompositeSchedule.conf shape. Spans
// of the window no profile covers are sent as periods with a limit of -1
// (types.NoLimit) so the backend can tell them apart from a limit of 0. Every
// stored limit is non-negative, so -1 only ever marks a gap.
func (s *Server) handleGetComposite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stationID := s.getStationID(r)

	connectorID, err := queryInt(r, "connectorId", 0)
	if err != nil {
		writeJSON(w, smartcharging.GetCompositeScheduleResponse{Status: types.ProfileStatusRejected, Error: "invalid connectorId"}, http.StatusBadRequest)
		return
	}
	duration, err := queryInt(r, "duration", 0)
	if err != nil {
		writeJSON(w, smartcharging.GetCompositeScheduleResponse{Status: types.ProfileStatusRejected, Error: "invalid duration"}, http.StatusBadRequest)
		return
	}
	req := smartcharging.GetCompositeScheduleRequest{
		ConnectorID:      connectorID,
		Duration:         duration,
		ChargingRateUnit: types.ChargingRateUnit(r.URL.Query().Get("chargingRateUnit")),
	}

	start := time.Now()
	schedule, err := s.service.CompositeSchedule(ctx, stationID, req)
	observeResolve(start, err)
	if err != nil {
		code := errorCode(err)
		if code == http.StatusInternalServerError {
			log.Ctx(ctx).ErrorContext(ctx, "failed to resolve composite schedule", slog.Any("error", err))
			writeJSONError(w, "failed to resolve composite schedule", code)
			return
		}
		log.Ctx(ctx).InfoContext(ctx, "composite schedule rejected", slog.Any("error", err))
		writeJSON(w, smartcharging.GetCompositeScheduleResponse{Status: types.ProfileStatusRejected, Error: err.Error()}, code)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, smartcharging.GetCompositeScheduleResponse{
		Status:           types.ProfileStatusAccepted,
		ConnectorID:      &connectorID,
		ScheduleStart:    &schedule.StartSchedule,
		ChargingSchedule: &schedule,
	}, http.StatusOK)
}

type planResponse struct {
	Schedule types.CompositeSchedule   `json:"schedule"`
	Plan     []controller.PlannedLimit `json:"plan"`
}

// handleGetPlan returns the limits the control loop will apply to a
// connector over the station's horizon.
func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stationID := s.getStationID(r)

	connectorID, err := queryInt(r, "connectorId", 1)
	if err != nil || connectorID < 1 {
		writeJSONError(w, "invalid connectorId", http.StatusBadRequest)
		return
	}

	settings, err := s.getSettingsWithMigration(ctx, stationID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", errorCode(err))
		return
	}
	if connectorID > settings.ConnectorCount {
		writeJSONError(w, "unknown connector", http.StatusNotFound)
		return
	}

	window := composite.NewWindow(s.now().UTC().Truncate(time.Second), time.Duration(settings.HorizonSeconds)*time.Second)
	start := time.Now()
	schedule, err := s.service.Resolve(ctx, stationID, connectorID, window, settings.StationSettings)
	observeResolve(start, err)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to resolve composite schedule", slog.Any("error", err))
		writeJSONError(w, err.Error(), errorCode(err))
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, planResponse{
		Schedule: schedule,
		Plan:     s.controller.SimulateSchedule(ctx, schedule, settings.StationSettings),
	}, http.StatusOK)
}
