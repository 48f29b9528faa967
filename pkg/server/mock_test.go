package server

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jameshartig/chargeplan/pkg/charger"
	"github.com/jameshartig/chargeplan/pkg/composite"
	"github.com/jameshartig/chargeplan/pkg/controller"
	"github.com/jameshartig/chargeplan/pkg/log"
	"github.com/jameshartig/chargeplan/pkg/smartcharging"
	"github.com/jameshartig/chargeplan/pkg/storage/storagemock"
	"github.com/jameshartig/chargeplan/pkg/types"
)

type mockStorage = storagemock.MockDatabase

func init() {
	log.SetDefaultLogLevel(slog.LevelError)
}

var testNow = time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)

type mockCharger struct {
	mock.Mock
}

func (m *mockCharger) GetStatus(ctx context.Context, connectorID int) (types.ConnectorStatus, error) {
	args := m.Called(ctx, connectorID)
	if len(args) > 0 {
		return args.Get(0).(types.ConnectorStatus), args.Error(1)
	}
	return types.ConnectorStatus{}, nil
}

func (m *mockCharger) SetLimit(ctx context.Context, connectorID int, limit types.AppliedLimit) error {
	args := m.Called(ctx, connectorID, limit)
	return args.Error(0)
}

func newTestServer(t *testing.T, db *mockStorage) *Server {
	t.Helper()
	engine, err := composite.New(composite.Options{MaxOccurrences: composite.DefaultMaxOccurrences})
	require.NoError(t, err)
	return &Server{
		chargers:           charger.NewMap(func(string) charger.System { return charger.NewSimulated() }),
		storage:            db,
		service:            smartcharging.New(db, engine, smartcharging.DefaultMaxDuration),
		controller:         controller.NewController(),
		now:                func() time.Time { return testNow },
		listenAddr:         ":8080",
		bypassAuth:         true,
		compositeRateLimit: 100,
	}
}

// withStation sets the station the auth middleware would have resolved.
func withStation(req *http.Request, stationID string) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), stationIDContextKey, stationID))
}

func testSettings() types.StationSettings {
	return types.StationSettings{
		ConnectorCount: 2,
		Voltage:        230,
		DefaultPhases:  3,
		RateUnit:       types.ChargingRateUnitAmperes,
		HorizonSeconds: 3600,
	}
}

func intPtr(n int) *int {
	return &n
}

// relativeProfile limits a connector to first for 10 minutes and then to
// second for another 10 minutes, counted from the transaction start.
func relativeProfile(id int, first, second float64) types.ChargingProfile {
	return types.ChargingProfile{
		ChargingProfileID:      id,
		ChargingProfilePurpose: types.PurposeTxDefault,
		ChargingProfileKind:    types.KindRelative,
		ChargingSchedule: types.ChargingSchedule{
			Duration:         intPtr(1200),
			ChargingRateUnit: types.ChargingRateUnitAmperes,
			ChargingSchedulePeriod: []types.ChargingSchedulePeriod{
				{StartPeriod: 0, Limit: first},
				{StartPeriod: 600, Limit: second},
			},
		},
	}
}
