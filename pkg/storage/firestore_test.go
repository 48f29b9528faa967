package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jameshartig/chargeplan/pkg/types"
)

func TestFirestoreProvider(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	// Use a random database for isolation
	f := &FirestoreProvider{
		projectID: "test-project-id",
		database:  fmt.Sprintf("test-db-%d", time.Now().UnixNano()),
	}

	ctx := context.Background()
	require.NoError(t, f.Init(ctx))
	defer f.Close()

	t.Run("Validate", func(t *testing.T) {
		require.NoError(t, f.Validate())
	})

	t.Run("EmptyStationID", func(t *testing.T) {
		_, _, err := f.GetSettings(ctx, "")
		assert.ErrorContains(t, err, "stationID cannot be empty")
	})

	testDatabase(t, f)
}

// testDatabase exercises a Database implementation against a fresh station.
func testDatabase(t *testing.T, db Database) {
	ctx := context.Background()
	stationID := fmt.Sprintf("station-%d", time.Now().UnixNano())

	t.Run("Stations", func(t *testing.T) {
		_, err := db.GetStation(ctx, stationID)
		assert.ErrorIs(t, err, ErrStationNotFound)

		station := types.Station{ID: stationID, Name: "Garage", OperatorEmails: []string{"op@example.com"}}
		require.NoError(t, db.UpsertStation(ctx, station))

		got, err := db.GetStation(ctx, stationID)
		require.NoError(t, err)
		assert.Equal(t, station, got)

		stations, err := db.ListStations(ctx)
		require.NoError(t, err)
		assert.Contains(t, stations, station)
	})

	t.Run("Settings", func(t *testing.T) {
		s, version, err := db.GetSettings(ctx, stationID)
		require.NoError(t, err)
		assert.Equal(t, 0, version)
		assert.Equal(t, types.StationSettings{}, s)

		settings := types.StationSettings{
			DryRun:         true,
			ConnectorCount: 2,
			Voltage:        230,
			DefaultPhases:  3,
			RateUnit:       types.ChargingRateUnitAmperes,
			DefaultLimit:   16,
			HorizonSeconds: 3600,
		}
		require.NoError(t, db.SetSettings(ctx, stationID, settings, types.CurrentSettingsVersion))

		got, version, err := db.GetSettings(ctx, stationID)
		require.NoError(t, err)
		assert.Equal(t, types.CurrentSettingsVersion, version)
		assert.Equal(t, settings, got)
	})

	t.Run("Profiles", func(t *testing.T) {
		start := time.Date(2024, 1, 17, 18, 0, 0, 0, time.UTC)
		installed := time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)
		p1 := types.InstalledProfile{ConnectorID: 0, Profile: types.ChargingProfile{
			ChargingProfileID:      1,
			ChargingProfilePurpose: types.PurposeChargePointMax,
			ChargingProfileKind:    types.KindAbsolute,
			InstalledAt:            installed,
			ChargingSchedule: types.ChargingSchedule{
				StartSchedule:          &start,
				ChargingRateUnit:       types.ChargingRateUnitAmperes,
				ChargingSchedulePeriod: []types.ChargingSchedulePeriod{{StartPeriod: 0, Limit: 32}},
			},
		}}
		p2 := types.InstalledProfile{ConnectorID: 1, Profile: types.ChargingProfile{
			ChargingProfileID:      2,
			StackLevel:             1,
			ChargingProfilePurpose: types.PurposeTxDefault,
			ChargingProfileKind:    types.KindRelative,
			InstalledAt:            installed,
			ChargingSchedule: types.ChargingSchedule{
				ChargingRateUnit:       types.ChargingRateUnitAmperes,
				ChargingSchedulePeriod: []types.ChargingSchedulePeriod{{StartPeriod: 0, Limit: 16}},
			},
		}}
		require.NoError(t, db.UpsertProfile(ctx, stationID, p2))
		require.NoError(t, db.UpsertProfile(ctx, stationID, p1))

		profiles, err := db.ListProfiles(ctx, stationID)
		require.NoError(t, err)
		require.Len(t, profiles, 2)
		assert.Equal(t, 1, profiles[0].Profile.ChargingProfileID)
		assert.Equal(t, 2, profiles[1].Profile.ChargingProfileID)
		assert.Equal(t, 1, profiles[1].ConnectorID)
		assert.True(t, start.Equal(*profiles[0].Profile.ChargingSchedule.StartSchedule))

		p2.Profile.StackLevel = 4
		require.NoError(t, db.UpsertProfile(ctx, stationID, p2))
		profiles, err = db.ListProfiles(ctx, stationID)
		require.NoError(t, err)
		require.Len(t, profiles, 2)
		assert.Equal(t, 4, profiles[1].Profile.StackLevel)

		require.NoError(t, db.DeleteProfile(ctx, stationID, 1))
		assert.ErrorIs(t, db.DeleteProfile(ctx, stationID, 1), ErrProfileNotFound)
		profiles, err = db.ListProfiles(ctx, stationID)
		require.NoError(t, err)
		require.Len(t, profiles, 1)
	})

	t.Run("Transactions", func(t *testing.T) {
		tx, err := db.GetTransaction(ctx, stationID, 1)
		require.NoError(t, err)
		assert.Nil(t, tx)

		started := time.Date(2024, 1, 17, 18, 1, 0, 0, time.UTC)
		require.NoError(t, db.SetTransaction(ctx, stationID, types.Transaction{ID: 42, ConnectorID: 1, IDTag: "tag", StartedAt: started}))

		tx, err = db.GetTransaction(ctx, stationID, 1)
		require.NoError(t, err)
		require.NotNil(t, tx)
		assert.Equal(t, 42, tx.ID)
		assert.True(t, started.Equal(tx.StartedAt))

		txs, err := db.ListTransactions(ctx, stationID)
		require.NoError(t, err)
		assert.Len(t, txs, 1)

		require.NoError(t, db.DeleteTransaction(ctx, stationID, 1))
		tx, err = db.GetTransaction(ctx, stationID, 1)
		require.NoError(t, err)
		assert.Nil(t, tx)
	})

	t.Run("Actions", func(t *testing.T) {
		now := time.Now().Truncate(time.Second).UTC()
		a1 := types.Action{Timestamp: now.Add(-time.Hour), ConnectorID: 1, Reason: types.ActionReasonComposite, Limit: types.AppliedLimit{Limit: 16, RateUnit: types.ChargingRateUnitAmperes}}
		a2 := types.Action{Timestamp: now.Add(-time.Hour), ConnectorID: 2, Reason: types.ActionReasonDefaultLimit, Limit: types.AppliedLimit{Limit: 10, RateUnit: types.ChargingRateUnitAmperes}}
		a3 := types.Action{Timestamp: now, ConnectorID: 1, Reason: types.ActionReasonUnlimited, Limit: types.AppliedLimit{Unlimited: true}}
		require.NoError(t, db.InsertAction(ctx, stationID, a1))
		require.NoError(t, db.InsertAction(ctx, stationID, a2))
		require.NoError(t, db.InsertAction(ctx, stationID, a3))

		actions, err := db.GetActionHistory(ctx, stationID, now.Add(-2*time.Hour), now)
		require.NoError(t, err)
		require.Len(t, actions, 2)
		assert.Equal(t, 1, actions[0].ConnectorID)
		assert.Equal(t, 2, actions[1].ConnectorID)

		actions, err = db.GetActionHistory(ctx, stationID, now.Add(-2*time.Hour), now.Add(time.Second))
		require.NoError(t, err)
		assert.Len(t, actions, 3)
	})
}
