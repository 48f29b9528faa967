package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jameshartig/chargeplan/pkg/types"
)

func phases(n int) *int {
	return &n
}

func TestConvertLimit(t *testing.T) {
	n := Normalizer{Voltage: 230, DefaultPhases: 3}

	tests := []struct {
		name   string
		limit  float64
		phases *int
		from   types.ChargingRateUnit
		to     types.ChargingRateUnit
		want   float64
	}{
		{"amps to watts default phases", 16, nil, types.ChargingRateUnitAmperes, types.ChargingRateUnitWatts, 11040},
		{"amps to watts single phase", 10, phases(1), types.ChargingRateUnitAmperes, types.ChargingRateUnitWatts, 2300},
		{"watts to amps", 6900, phases(3), types.ChargingRateUnitWatts, types.ChargingRateUnitAmperes, 10},
		{"same unit", 16, nil, types.ChargingRateUnitAmperes, types.ChargingRateUnitAmperes, 16},
		{"no limit passes through", types.NoLimit, nil, types.ChargingRateUnitAmperes, types.ChargingRateUnitWatts, types.NoLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.ConvertLimit(tt.limit, tt.phases, tt.from, tt.to)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	t.Run("invalid voltage", func(t *testing.T) {
		_, err := Normalizer{DefaultPhases: 3}.ConvertLimit(16, nil, types.ChargingRateUnitAmperes, types.ChargingRateUnitWatts)
		assert.Error(t, err)
	})

	t.Run("unknown unit", func(t *testing.T) {
		_, err := n.ConvertLimit(16, nil, types.ChargingRateUnitAmperes, "kW")
		assert.Error(t, err)
	})
}

func TestNormalize(t *testing.T) {
	n := FromSettings(types.StationSettings{Voltage: 230, DefaultPhases: 1})
	minRate := 1380.0
	profiles := []types.ChargingProfile{
		{
			ChargingProfileID: 1,
			ChargingSchedule: types.ChargingSchedule{
				ChargingRateUnit: types.ChargingRateUnitWatts,
				MinChargingRate:  &minRate,
				ChargingSchedulePeriod: []types.ChargingSchedulePeriod{
					{StartPeriod: 0, Limit: 2300},
					{StartPeriod: 60, Limit: 6900, NumberPhases: phases(3)},
				},
			},
		},
		{
			ChargingProfileID: 2,
			ChargingSchedule: types.ChargingSchedule{
				ChargingRateUnit:       types.ChargingRateUnitAmperes,
				ChargingSchedulePeriod: []types.ChargingSchedulePeriod{{StartPeriod: 0, Limit: 16}},
			},
		},
	}

	out, err := n.Normalize(profiles, types.ChargingRateUnitAmperes)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, p := range out {
		assert.Equal(t, types.ChargingRateUnitAmperes, p.ChargingSchedule.ChargingRateUnit)
	}
	assert.InDelta(t, 10, out[0].ChargingSchedule.ChargingSchedulePeriod[0].Limit, 1e-9)
	assert.InDelta(t, 10, out[0].ChargingSchedule.ChargingSchedulePeriod[1].Limit, 1e-9)
	assert.InDelta(t, 6, *out[0].ChargingSchedule.MinChargingRate, 1e-9)
	assert.Equal(t, 16.0, out[1].ChargingSchedule.ChargingSchedulePeriod[0].Limit)

	// inputs are untouched
	assert.Equal(t, types.ChargingRateUnitWatts, profiles[0].ChargingSchedule.ChargingRateUnit)
	assert.Equal(t, 2300.0, profiles[0].ChargingSchedule.ChargingSchedulePeriod[0].Limit)
	assert.Equal(t, 1380.0, minRate)
}

func TestConvertSchedule(t *testing.T) {
	n := Normalizer{Voltage: 230, DefaultPhases: 3}
	c := types.CompositeSchedule{
		Duration:         600,
		ChargingRateUnit: types.ChargingRateUnitAmperes,
		ChargingSchedulePeriod: []types.ChargingSchedulePeriod{
			{StartPeriod: 0, Limit: types.NoLimit},
			{StartPeriod: 300, Limit: 10, NumberPhases: phases(1)},
		},
	}
	out, err := n.ConvertSchedule(c, types.ChargingRateUnitWatts)
	require.NoError(t, err)
	assert.Equal(t, types.ChargingRateUnitWatts, out.ChargingRateUnit)
	assert.Equal(t, types.NoLimit, out.ChargingSchedulePeriod[0].Limit)
	assert.InDelta(t, 2300, out.ChargingSchedulePeriod[1].Limit, 1e-9)
	assert.Equal(t, 10.0, c.ChargingSchedulePeriod[1].Limit)
}
