package server

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jameshartig/chargeplan/pkg/log"
	"github.com/jameshartig/chargeplan/pkg/storage"
)

// authMiddleware resolves the station a request is about and authorizes
// writes. Reads are public. Writes need an ID token whose email is an admin
// or an operator of the station. /api/update also accepts the scheduler's
// email and may run without a station.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("reqPath", r.URL.Path)))

		isUpdatePath := r.URL.Path == "/api/update"

		// extract stationID
		var stationID string
		if r.Method == http.MethodGet {
			stationID = r.URL.Query().Get("stationID")
		} else {
			// read body to find stationID
			var bodyBytes []byte
			if r.Body != nil {
				// Limit body size to 1MB to prevent DoS
				r.Body = http.MaxBytesReader(w, r.Body, 1048576)
				var err error
				bodyBytes, err = io.ReadAll(r.Body)
				if err != nil {
					log.Ctx(ctx).ErrorContext(ctx, "failed to read request body", slog.Any("error", err))
					// since we failed to read, don't return JSON error
					http.Error(w, "invalid request", http.StatusBadRequest)
					return
				}
				// restore body for next handler
				r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			}

			// try to unmarshal just the stationID
			if len(bodyBytes) > 0 {
				var justStationID struct {
					StationID string `json:"stationID"`
				}
				if err := json.Unmarshal(bodyBytes, &justStationID); err != nil {
					log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal request body", slog.Any("error", err))
					writeJSONError(w, "invalid request body", http.StatusBadRequest)
					return
				}
				stationID = justStationID.StationID
			}
		}

		if stationID == "" && !isUpdatePath {
			log.Ctx(ctx).WarnContext(ctx, "stationID required")
			writeJSONError(w, "stationID required", http.StatusBadRequest)
			return
		}
		if stationID != "" {
			ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("stationID", stationID)))
		}

		if r.Method != http.MethodGet && !s.bypassAuth {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Ctx(ctx).WarnContext(ctx, "missing bearer token")
				writeJSONError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			email, err := s.verifyToken(ctx, strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				log.Ctx(ctx).WarnContext(ctx, "token validation failed", slog.Any("error", err))
				writeJSONError(w, "invalid auth token", http.StatusUnauthorized)
				return
			}
			if email == "" {
				log.Ctx(ctx).WarnContext(ctx, "invalid email in id token")
				writeJSONError(w, "invalid oidc claims", http.StatusUnauthorized)
				return
			}

			allowed := s.isAdmin(email)
			if !allowed && isUpdatePath && s.updateSpecificEmail != "" {
				allowed = subtle.ConstantTimeCompare([]byte(email), []byte(s.updateSpecificEmail)) == 1
			}
			if !allowed && stationID != "" {
				station, err := s.storage.GetStation(ctx, stationID)
				if err != nil && !errors.Is(err, storage.ErrStationNotFound) {
					log.Ctx(ctx).ErrorContext(ctx, "station lookup failed", slog.Any("error", err))
					writeJSONError(w, "station lookup failed", http.StatusInternalServerError)
					return
				}
				allowed = err == nil && station.HasOperator(email)
			}
			if !allowed {
				log.Ctx(ctx).WarnContext(ctx, "email may not change station", slog.String("email", email))
				writeJSONError(w, "station access denied", http.StatusForbidden)
				return
			}
			ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("authEmail", email)))
			ctx = context.WithValue(ctx, emailContextKey, email)
		}

		log.Ctx(ctx).DebugContext(ctx, "authorized request")

		ctx = context.WithValue(ctx, stationIDContextKey, stationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
