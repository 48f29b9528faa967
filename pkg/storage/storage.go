package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/jameshartig/chargeplan/pkg/types"
)

var (
	ErrStationNotFound = errors.New("station not found")
	ErrProfileNotFound = errors.New("charging profile not found")
)

// Database defines the interface for persisting stations, their charging
// profiles, running transactions and the actions taken by the control loop.
type Database interface {
	// Stations
	GetStation(ctx context.Context, stationID string) (types.Station, error)
	ListStations(ctx context.Context) ([]types.Station, error)
	UpsertStation(ctx context.Context, station types.Station) error

	// Settings
	GetSettings(ctx context.Context, stationID string) (types.StationSettings, int, error)
	SetSettings(ctx context.Context, stationID string, settings types.StationSettings, version int) error

	// Charging profiles
	ListProfiles(ctx context.Context, stationID string) ([]types.InstalledProfile, error)
	UpsertProfile(ctx context.Context, stationID string, profile types.InstalledProfile) error
	DeleteProfile(ctx context.Context, stationID string, profileID int) error

	// Transactions, at most one per connector. GetTransaction returns nil if
	// the connector has no running transaction.
	GetTransaction(ctx context.Context, stationID string, connectorID int) (*types.Transaction, error)
	ListTransactions(ctx context.Context, stationID string) ([]types.Transaction, error)
	SetTransaction(ctx context.Context, stationID string, tx types.Transaction) error
	DeleteTransaction(ctx context.Context, stationID string, connectorID int) error

	// History
	InsertAction(ctx context.Context, stationID string, action types.Action) error
	GetActionHistory(ctx context.Context, stationID string, start, end time.Time) ([]types.Action, error)

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "firestore", "Storage provider to use (available: firestore, mongo)")

	var p struct{ Database }

	fs := configuredFirestore()
	mg := configuredMongo()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "mongo":
			if err := mg.Validate(); err != nil {
				panic(fmt.Sprintf("mongo validation failed: %v", err))
			}
			p.Database = mg
			if err := mg.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("mongo init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}

// actionDocID is the id actions are stored under. It sorts by timestamp and
// keeps actions of different connectors at the same instant apart.
func actionDocID(action types.Action) string {
	return fmt.Sprintf("%s_%d", action.Timestamp.UTC().Format(time.RFC3339), action.ConnectorID)
}
