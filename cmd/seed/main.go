package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/jameshartig/chargeplan/pkg/composite"
	"github.com/jameshartig/chargeplan/pkg/controller"
	"github.com/jameshartig/chargeplan/pkg/log"
	"github.com/jameshartig/chargeplan/pkg/storage"
	"github.com/jameshartig/chargeplan/pkg/types"
)

const stationID = "demo"

func intPtr(n int) *int {
	return &n
}

func main() {
	os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	s := storage.Configured()
	lflag.Configure()

	ctx := context.Background()

	log.Ctx(ctx).InfoContext(ctx, "seeding mock data")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	now := time.Now().UTC()
	midnight := now.Truncate(24 * time.Hour)

	settings := types.StationSettings{
		ConnectorCount: 2,
		Voltage:        230,
		DefaultPhases:  3,
		RateUnit:       types.ChargingRateUnitAmperes,
		DefaultLimit:   0,
		HorizonSeconds: 86400,
		DryRun:         true,
	}
	if err := s.UpsertStation(ctx, types.Station{ID: stationID, Name: "Demo Station"}); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed station", "error", err)
		os.Exit(1)
	}
	if err := s.SetSettings(ctx, stationID, settings, types.CurrentSettingsVersion); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed settings", "error", err)
		os.Exit(1)
	}

	// the site is limited to 16A during the evening peak every day
	stationMax := types.ChargingProfile{
		ChargingProfileID:      1,
		ChargingProfilePurpose: types.PurposeChargePointMax,
		ChargingProfileKind:    types.KindRecurring,
		RecurrencyKind:         types.RecurrencyDaily,
		ChargingSchedule: types.ChargingSchedule{
			Duration:         intPtr(86400),
			StartSchedule:    &midnight,
			ChargingRateUnit: types.ChargingRateUnitAmperes,
			ChargingSchedulePeriod: []types.ChargingSchedulePeriod{
				{StartPeriod: 0, Limit: 32},
				{StartPeriod: 17 * 3600, Limit: 16},
				{StartPeriod: 21 * 3600, Limit: 32},
			},
		},
		InstalledAt: midnight,
	}
	// connectors share the rest during the day
	txDefault := types.ChargingProfile{
		ChargingProfileID:      2,
		ChargingProfilePurpose: types.PurposeTxDefault,
		ChargingProfileKind:    types.KindAbsolute,
		ChargingSchedule: types.ChargingSchedule{
			Duration:         intPtr(12 * 3600),
			StartSchedule:    &midnight,
			ChargingRateUnit: types.ChargingRateUnitAmperes,
			ChargingSchedulePeriod: []types.ChargingSchedulePeriod{
				{StartPeriod: 0, Limit: 24},
				{StartPeriod: 7 * 3600, Limit: 10, NumberPhases: intPtr(1)},
			},
		},
		InstalledAt: midnight,
	}
	for _, ip := range []types.InstalledProfile{
		{ConnectorID: 0, Profile: stationMax},
		{ConnectorID: 0, Profile: txDefault},
	} {
		if err := s.UpsertProfile(ctx, stationID, ip); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed profile", "error", err)
			os.Exit(1)
		}
	}

	engine, err := composite.New(composite.Options{MaxOccurrences: composite.DefaultMaxOccurrences})
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to create engine", "error", err)
		os.Exit(1)
	}
	ctrl := controller.NewController()

	// replay the control loop every hour since midnight
	status := types.ConnectorStatus{ConnectorID: 1, Limit: types.AppliedLimit{Unlimited: true}, Online: true}
	for t := midnight; t.Before(now); t = t.Add(time.Hour) {
		schedule, err := engine.Resolve(ctx, composite.Request{
			Window:   composite.NewWindow(t, time.Hour),
			Profiles: []types.ChargingProfile{stationMax, txDefault},
			RateUnit: settings.RateUnit,
		})
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to resolve schedule", "error", err)
			os.Exit(1)
		}

		status.Timestamp = t
		// the charger occasionally drops off the network
		status.Online = rng.Float64() > 0.1
		decision, err := ctrl.Decide(ctx, schedule, t, status, settings)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to decide", "error", err)
			os.Exit(1)
		}
		if err := s.InsertAction(ctx, stationID, decision.Action); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed action", "error", err)
			os.Exit(1)
		}
		if !decision.Action.NoChange {
			status.Limit = decision.Action.Limit
		}

		fmt.Printf("Seeded action at %s: %s\n", t.Format(time.Kitchen), decision.Action.Description)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeded mock data successfully")
}
