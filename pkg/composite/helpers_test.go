package composite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jameshartig/chargeplan/pkg/types"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func intPtr(n int) *int {
	return &n
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func period(offset int, limit float64) types.ChargingSchedulePeriod {
	return types.ChargingSchedulePeriod{StartPeriod: offset, Limit: limit}
}

func periodPh(offset int, limit float64, phases int) types.ChargingSchedulePeriod {
	return types.ChargingSchedulePeriod{StartPeriod: offset, Limit: limit, NumberPhases: intPtr(phases)}
}

func absoluteProfile(id, stack int, start time.Time, unit types.ChargingRateUnit, periods ...types.ChargingSchedulePeriod) types.ChargingProfile {
	return types.ChargingProfile{
		ChargingProfileID:      id,
		StackLevel:             stack,
		ChargingProfilePurpose: types.PurposeTxDefault,
		ChargingProfileKind:    types.KindAbsolute,
		ChargingSchedule: types.ChargingSchedule{
			StartSchedule:          timePtr(start),
			ChargingRateUnit:       unit,
			ChargingSchedulePeriod: periods,
		},
	}
}

func relativeProfile(id, stack int, unit types.ChargingRateUnit, periods ...types.ChargingSchedulePeriod) types.ChargingProfile {
	return types.ChargingProfile{
		ChargingProfileID:      id,
		StackLevel:             stack,
		ChargingProfilePurpose: types.PurposeTxDefault,
		ChargingProfileKind:    types.KindRelative,
		ChargingSchedule: types.ChargingSchedule{
			ChargingRateUnit:       unit,
			ChargingSchedulePeriod: periods,
		},
	}
}

func recurringProfile(id int, kind types.RecurrencyKind, start time.Time, periods ...types.ChargingSchedulePeriod) types.ChargingProfile {
	return types.ChargingProfile{
		ChargingProfileID:      id,
		ChargingProfilePurpose: types.PurposeTxDefault,
		ChargingProfileKind:    types.KindRecurring,
		RecurrencyKind:         kind,
		ChargingSchedule: types.ChargingSchedule{
			StartSchedule:          timePtr(start),
			ChargingRateUnit:       types.ChargingRateUnitAmperes,
			ChargingSchedulePeriod: periods,
		},
	}
}

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e, err := New(opts)
	require.NoError(t, err)
	return e
}
