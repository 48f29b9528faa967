package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jameshartig/chargeplan/pkg/composite"
	"github.com/jameshartig/chargeplan/pkg/log"
	"github.com/jameshartig/chargeplan/pkg/types"
)

type updateResponse struct {
	Status  string                    `json:"status"`
	Actions map[string][]types.Action `json:"actions"`
	Errors  map[string]string         `json:"errors,omitempty"`
}

// handleUpdate runs one iteration of the control loop. It updates a single
// station if the body names one, every station otherwise.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stationID := s.getStationID(r)

	var stationIDs []string
	if stationID != "" {
		stationIDs = []string{stationID}
	} else {
		stations, err := s.storage.ListStations(ctx)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to list stations", slog.Any("error", err))
			writeJSONError(w, "failed to list stations", http.StatusInternalServerError)
			return
		}
		for _, st := range stations {
			stationIDs = append(stationIDs, st.ID)
		}
	}

	resp := updateResponse{
		Status:  "success",
		Actions: make(map[string][]types.Action, len(stationIDs)),
	}
	for _, id := range stationIDs {
		sctx := log.With(ctx, log.Ctx(ctx).With(slog.String("stationID", id)))
		actions, err := s.updateStation(sctx, id)
		if err != nil {
			log.Ctx(sctx).ErrorContext(sctx, "failed to update station", slog.Any("error", err))
			if stationID != "" {
				writeJSONError(w, err.Error(), errorCode(err))
				return
			}
			if resp.Errors == nil {
				resp.Errors = make(map[string]string)
			}
			resp.Errors[id] = err.Error()
			continue
		}
		resp.Actions[id] = actions
	}
	if len(resp.Errors) > 0 {
		resp.Status = "partial"
	}

	// We return 200 OK so the scheduler doesn't think it failed
	writeJSON(w, resp, http.StatusOK)
}

// updateStation decides and applies the limit of every connector of the
// station and records the actions taken.
func (s *Server) updateStation(ctx context.Context, stationID string) ([]types.Action, error) {
	settings, err := s.getSettingsWithMigration(ctx, stationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	sys := s.chargers.Station(stationID)
	now := s.now().UTC().Truncate(time.Second)
	horizon := time.Duration(settings.HorizonSeconds) * time.Second
	window := composite.NewWindow(now, horizon)

	log.Ctx(ctx).DebugContext(ctx, "update: settings loaded", slog.Int("connectors", settings.ConnectorCount), slog.Bool("dryRun", settings.DryRun))

	actions := make([]types.Action, 0, settings.ConnectorCount)
	for connectorID := 1; connectorID <= settings.ConnectorCount; connectorID++ {
		cctx := log.With(ctx, log.Ctx(ctx).With(slog.Int("connectorID", connectorID)))

		status, err := sys.GetStatus(cctx, connectorID)
		if err != nil {
			log.Ctx(cctx).WarnContext(cctx, "failed to get connector status", slog.Any("error", err))
			status = types.ConnectorStatus{Timestamp: now, ConnectorID: connectorID}
		}

		start := time.Now()
		schedule, resolveErr := s.service.Resolve(cctx, stationID, connectorID, window, settings.StationSettings)
		observeResolve(start, resolveErr)
		if resolveErr != nil {
			log.Ctx(cctx).ErrorContext(cctx, "failed to resolve composite schedule, using fallback", slog.Any("error", resolveErr))
			schedule = types.CompositeSchedule{
				StartSchedule:          now,
				Duration:               settings.HorizonSeconds,
				ChargingRateUnit:       settings.RateUnit,
				ChargingSchedulePeriod: []types.ChargingSchedulePeriod{},
			}
		}

		decision, err := s.controller.Decide(cctx, schedule, now, status, settings.StationSettings)
		if err != nil {
			return actions, fmt.Errorf("controller decision failed for connector %d: %w", connectorID, err)
		}
		action := decision.Action
		if resolveErr != nil {
			action.Reason = types.ActionReasonResolveFailed
			action.Error = resolveErr.Error()
		}

		log.Ctx(cctx).InfoContext(
			cctx,
			"update: decision made",
			slog.String("reason", string(action.Reason)),
			slog.String("explanation", decision.Explanation),
			slog.String("description", action.Description),
			slog.Bool("noChange", action.NoChange),
		)

		if !action.NoChange && !action.DryRun && !action.Paused {
			if err := sys.SetLimit(cctx, connectorID, action.Limit); err != nil {
				log.Ctx(cctx).ErrorContext(cctx, "failed to set limit", slog.Any("error", err))
				action.Failed = true
				action.Error = err.Error()
				action.Description += fmt.Sprintf(" (FAILED: %v)", err)
			}
		}

		if err := s.storage.InsertAction(cctx, stationID, action); err != nil {
			log.Ctx(cctx).ErrorContext(cctx, "failed to insert action", slog.Any("error", err))
		}
		observeAction(action)
		actions = append(actions, action)
	}
	return actions, nil
}
