package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jameshartig/chargeplan/pkg/log"
	"github.com/jameshartig/chargeplan/pkg/smartcharging"
	"github.com/jameshartig/chargeplan/pkg/types"
)

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stationID := s.getStationID(r)

	connectorID, err := queryInt(r, "connectorId", -1)
	if err != nil {
		writeJSONError(w, "invalid connectorId", http.StatusBadRequest)
		return
	}

	installed, err := s.service.Profiles(ctx, stationID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list profiles", slog.Any("error", err))
		writeJSONError(w, "failed to list profiles", errorCode(err))
		return
	}
	profiles := make([]types.InstalledProfile, 0, len(installed))
	for _, ip := range installed {
		if connectorID >= 0 && ip.ConnectorID != connectorID {
			continue
		}
		profiles = append(profiles, ip)
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, profiles, http.StatusOK)
}

func (s *Server) handleSetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stationID := s.getStationID(r)

	var req struct {
		StationID string `json:"stationID"`
		smartcharging.SetChargingProfileRequest
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, smartcharging.SetChargingProfileResponse{Status: types.ProfileStatusRejected, Error: "invalid request body"}, http.StatusBadRequest)
		return
	}

	status, err := s.service.SetProfile(ctx, stationID, req.SetChargingProfileRequest)
	if err != nil {
		code := errorCode(err)
		if code == http.StatusInternalServerError {
			log.Ctx(ctx).ErrorContext(ctx, "failed to set profile", slog.Any("error", err))
			writeJSONError(w, "failed to set profile", code)
			return
		}
		log.Ctx(ctx).InfoContext(ctx, "profile rejected", slog.Any("error", err))
		writeJSON(w, smartcharging.SetChargingProfileResponse{Status: status, Error: err.Error()}, code)
		return
	}
	writeJSON(w, smartcharging.SetChargingProfileResponse{Status: status}, http.StatusOK)
}

func (s *Server) handleClearProfiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stationID := s.getStationID(r)

	var req struct {
		StationID string `json:"stationID"`
		smartcharging.ClearChargingProfileRequest
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	status, err := s.service.ClearProfiles(ctx, stationID, req.ClearChargingProfileRequest)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to clear profiles", slog.Any("error", err))
		writeJSONError(w, err.Error(), errorCode(err))
		return
	}
	writeJSON(w, smartcharging.ClearChargingProfileResponse{Status: status}, http.StatusOK)
}
