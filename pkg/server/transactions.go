package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jameshartig/chargeplan/pkg/log"
	"github.com/jameshartig/chargeplan/pkg/smartcharging"
	"github.com/jameshartig/chargeplan/pkg/types"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stationID := s.getStationID(r)

	txs, err := s.storage.ListTransactions(ctx, stationID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list transactions", slog.Any("error", err))
		writeJSONError(w, "failed to list transactions", errorCode(err))
		return
	}
	if txs == nil {
		txs = []types.Transaction{}
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, txs, http.StatusOK)
}

func (s *Server) handleStartTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stationID := s.getStationID(r)

	var req struct {
		StationID string `json:"stationID"`
		smartcharging.StartTransactionRequest
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	tx, err := s.service.StartTransaction(ctx, stationID, req.StartTransactionRequest)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to start transaction", slog.Any("error", err))
		writeJSONError(w, err.Error(), errorCode(err))
		return
	}
	writeJSON(w, tx, http.StatusOK)
}

func (s *Server) handleStopTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stationID := s.getStationID(r)

	var req struct {
		StationID string `json:"stationID"`
		smartcharging.StopTransactionRequest
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.service.StopTransaction(ctx, stationID, req.StopTransactionRequest); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to stop transaction", slog.Any("error", err))
		writeJSONError(w, err.Error(), errorCode(err))
		return
	}
	writeJSON(w, map[string]string{"status": "stopped"}, http.StatusOK)
}
