package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jameshartig/chargeplan/pkg/log"
	"github.com/jameshartig/chargeplan/pkg/storage"
	"github.com/jameshartig/chargeplan/pkg/types"
)

type settingsWithVersion struct {
	types.StationSettings
	version int
}

func (s *Server) getSettingsWithMigration(ctx context.Context, stationID string) (settingsWithVersion, error) {
	settings, version, err := s.storage.GetSettings(ctx, stationID)
	if err != nil {
		return settingsWithVersion{}, err
	}
	sv := settingsWithVersion{
		StationSettings: settings,
		version:         version,
	}

	// Check for migration
	if version < types.CurrentSettingsVersion {
		log.Ctx(ctx).InfoContext(ctx, "migrating settings", slog.Int("oldVersion", version), slog.Int("newVersion", types.CurrentSettingsVersion))
		newSettings, changed, err := types.MigrateSettings(settings, version)
		if err != nil {
			// Log error but return settings as is (best effort)
			log.Ctx(ctx).ErrorContext(ctx, "failed to migrate settings", slog.Int("currentVersion", version), slog.Any("error", err))
		} else if changed {
			sv.StationSettings = newSettings
			sv.version = types.CurrentSettingsVersion
			if err := s.storage.SetSettings(ctx, stationID, newSettings, types.CurrentSettingsVersion); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to save migrated settings", slog.Any("error", err))
				// Return migrated settings even if save failed, so current request works with new defaults
			} else {
				log.Ctx(ctx).InfoContext(ctx, "saved migrated settings", slog.Int("oldVersion", version), slog.Int("newVersion", types.CurrentSettingsVersion))
			}
		}
	}

	return sv, nil
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stationID := s.getStationID(r)
	settings, err := s.getSettingsWithMigration(ctx, stationID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", errorCode(err))
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, settings.StationSettings, http.StatusOK)
}

func validateSettings(settings types.StationSettings) error {
	if settings.ConnectorCount < 1 {
		return errors.New("connector count must be at least 1")
	}
	if settings.Voltage <= 0 {
		return errors.New("voltage must be positive")
	}
	if settings.DefaultPhases < 1 || settings.DefaultPhases > 3 {
		return errors.New("default phases must be between 1 and 3")
	}
	switch settings.RateUnit {
	case types.ChargingRateUnitAmperes, types.ChargingRateUnitWatts:
	default:
		return errors.New("rate unit must be A or W")
	}
	if settings.DefaultLimit < 0 {
		return errors.New("default limit cannot be negative")
	}
	if settings.HorizonSeconds < 60 {
		return errors.New("horizon must be at least 60 seconds")
	}
	return nil
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stationID := s.getStationID(r)

	var req struct {
		StationID string `json:"stationID"`
		types.StationSettings
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode settings", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validateSettings(req.StationSettings); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := s.storage.GetStation(ctx, stationID); err != nil {
		if errors.Is(err, storage.ErrStationNotFound) {
			writeJSONError(w, "station not found", http.StatusNotFound)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to get station", slog.Any("error", err))
		writeJSONError(w, "failed to get station", http.StatusInternalServerError)
		return
	}

	if err := s.storage.SetSettings(ctx, stationID, req.StationSettings, types.CurrentSettingsVersion); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save settings", slog.Any("error", err))
		writeJSONError(w, "failed to save settings", http.StatusInternalServerError)
		return
	}

	log.Ctx(ctx).InfoContext(ctx, "settings updated")
	w.WriteHeader(http.StatusOK)
}
