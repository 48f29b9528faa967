package storagemock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/jameshartig/chargeplan/pkg/storage"
	"github.com/jameshartig/chargeplan/pkg/types"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetStation(ctx context.Context, stationID string) (types.Station, error) {
	args := m.Called(ctx, stationID)
	if len(args) > 0 {
		return args.Get(0).(types.Station), args.Error(1)
	}
	return types.Station{}, nil
}

func (m *MockDatabase) ListStations(ctx context.Context) ([]types.Station, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		return args.Get(0).([]types.Station), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) UpsertStation(ctx context.Context, station types.Station) error {
	args := m.Called(ctx, station)
	return args.Error(0)
}

func (m *MockDatabase) GetSettings(ctx context.Context, stationID string) (types.StationSettings, int, error) {
	args := m.Called(ctx, stationID)
	// return empty if not specified, or checks args
	if len(args) > 0 {
		return args.Get(0).(types.StationSettings), args.Int(1), args.Error(2)
	}
	return types.StationSettings{}, 0, nil
}

func (m *MockDatabase) SetSettings(ctx context.Context, stationID string, settings types.StationSettings, version int) error {
	args := m.Called(ctx, stationID, settings, version)
	return args.Error(0)
}

func (m *MockDatabase) ListProfiles(ctx context.Context, stationID string) ([]types.InstalledProfile, error) {
	args := m.Called(ctx, stationID)
	if len(args) > 0 {
		return args.Get(0).([]types.InstalledProfile), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) UpsertProfile(ctx context.Context, stationID string, profile types.InstalledProfile) error {
	args := m.Called(ctx, stationID, profile)
	return args.Error(0)
}

func (m *MockDatabase) DeleteProfile(ctx context.Context, stationID string, profileID int) error {
	args := m.Called(ctx, stationID, profileID)
	return args.Error(0)
}

func (m *MockDatabase) GetTransaction(ctx context.Context, stationID string, connectorID int) (*types.Transaction, error) {
	args := m.Called(ctx, stationID, connectorID)
	val := args.Get(0)
	if val == nil {
		return nil, args.Error(1)
	}
	return val.(*types.Transaction), args.Error(1)
}

func (m *MockDatabase) ListTransactions(ctx context.Context, stationID string) ([]types.Transaction, error) {
	args := m.Called(ctx, stationID)
	if len(args) > 0 {
		return args.Get(0).([]types.Transaction), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) SetTransaction(ctx context.Context, stationID string, tx types.Transaction) error {
	args := m.Called(ctx, stationID, tx)
	return args.Error(0)
}

func (m *MockDatabase) DeleteTransaction(ctx context.Context, stationID string, connectorID int) error {
	args := m.Called(ctx, stationID, connectorID)
	return args.Error(0)
}

func (m *MockDatabase) InsertAction(ctx context.Context, stationID string, action types.Action) error {
	args := m.Called(ctx, stationID, action)
	return args.Error(0)
}

func (m *MockDatabase) GetActionHistory(ctx context.Context, stationID string, start, end time.Time) ([]types.Action, error) {
	args := m.Called(ctx, stationID, start, end)
	if len(args) > 0 {
		return args.Get(0).([]types.Action), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
