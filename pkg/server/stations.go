package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jameshartig/chargeplan/pkg/log"
	"github.com/jameshartig/chargeplan/pkg/types"
)

// handleUpsertStation creates or renames a station. Only admins may do so
// since it also sets the station's operators.
func (s *Server) handleUpsertStation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stationID := s.getStationID(r)

	if !s.bypassAuth {
		email, _ := ctx.Value(emailContextKey).(string)
		if !s.isAdmin(email) {
			log.Ctx(ctx).WarnContext(ctx, "unauthorized for station update", slog.String("email", email))
			writeJSONError(w, "unauthorized", http.StatusForbidden)
			return
		}
	}

	var req struct {
		StationID      string   `json:"stationID"`
		Name           string   `json:"name"`
		OperatorEmails []string `json:"operatorEmails"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	station := types.Station{
		ID:             stationID,
		Name:           req.Name,
		OperatorEmails: req.OperatorEmails,
	}
	if err := s.storage.UpsertStation(ctx, station); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save station", slog.Any("error", err))
		writeJSONError(w, "failed to save station", http.StatusInternalServerError)
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "station saved", slog.Int("operators", len(station.OperatorEmails)))
	writeJSON(w, station, http.StatusOK)
}
