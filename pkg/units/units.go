// Package units converts charging limits between amperes and watts so that a
// profile set can be resolved in one unit.
package units

import (
	"fmt"

	"github.com/jameshartig/chargeplan/pkg/types"
)

// Normalizer converts limits using a nominal phase voltage. Periods that do
// not carry numberPhases are assumed to use DefaultPhases.
type Normalizer struct {
	Voltage       float64
	DefaultPhases int
}

// FromSettings returns the normalizer for a station's electrical settings.
func FromSettings(s types.StationSettings) Normalizer {
	return Normalizer{Voltage: s.Voltage, DefaultPhases: s.DefaultPhases}
}

// Validate checks that conversions are possible.
func (n Normalizer) Validate() error {
	if n.Voltage <= 0 {
		return fmt.Errorf("voltage must be positive, got %v", n.Voltage)
	}
	if n.DefaultPhases < 1 || n.DefaultPhases > 3 {
		return fmt.Errorf("default phases must be between 1 and 3, got %d", n.DefaultPhases)
	}
	return nil
}

func (n Normalizer) phases(numberPhases *int) float64 {
	if numberPhases != nil && *numberPhases > 0 {
		return float64(*numberPhases)
	}
	return float64(n.DefaultPhases)
}

// ConvertLimit converts limit from one unit to another. NoLimit is passed
// through unchanged.
func (n Normalizer) ConvertLimit(limit float64, numberPhases *int, from, to types.ChargingRateUnit) (float64, error) {
	if from == to || limit == types.NoLimit {
		return limit, nil
	}
	if err := n.Validate(); err != nil {
		return 0, err
	}
	phases := n.phases(numberPhases)
	switch {
	case from == types.ChargingRateUnitAmperes && to == types.ChargingRateUnitWatts:
		return limit * n.Voltage * phases, nil
	case from == types.ChargingRateUnitWatts && to == types.ChargingRateUnitAmperes:
		return limit / (n.Voltage * phases), nil
	default:
		return 0, fmt.Errorf("cannot convert from %q to %q", from, to)
	}
}

// Normalize returns copies of profiles with every schedule expressed in unit.
// The input profiles are not modified.
func (n Normalizer) Normalize(profiles []types.ChargingProfile, unit types.ChargingRateUnit) ([]types.ChargingProfile, error) {
	out := make([]types.ChargingProfile, 0, len(profiles))
	for _, p := range profiles {
		c := p.Clone()
		from := c.ChargingSchedule.ChargingRateUnit
		if from == unit {
			out = append(out, c)
			continue
		}
		for i := range c.ChargingSchedule.ChargingSchedulePeriod {
			period := &c.ChargingSchedule.ChargingSchedulePeriod[i]
			limit, err := n.ConvertLimit(period.Limit, period.NumberPhases, from, unit)
			if err != nil {
				return nil, fmt.Errorf("profile %d: %w", p.ChargingProfileID, err)
			}
			period.Limit = limit
		}
		if c.ChargingSchedule.MinChargingRate != nil {
			rate, err := n.ConvertLimit(*c.ChargingSchedule.MinChargingRate, nil, from, unit)
			if err != nil {
				return nil, fmt.Errorf("profile %d: %w", p.ChargingProfileID, err)
			}
			c.ChargingSchedule.MinChargingRate = &rate
		}
		c.ChargingSchedule.ChargingRateUnit = unit
		out = append(out, c)
	}
	return out, nil
}

// ConvertSchedule converts a composite schedule to unit, leaving NoLimit
// periods untouched.
func (n Normalizer) ConvertSchedule(c types.CompositeSchedule, unit types.ChargingRateUnit) (types.CompositeSchedule, error) {
	if c.ChargingRateUnit == unit {
		return c, nil
	}
	out := c
	out.ChargingSchedulePeriod = make([]types.ChargingSchedulePeriod, len(c.ChargingSchedulePeriod))
	for i, period := range c.ChargingSchedulePeriod {
		limit, err := n.ConvertLimit(period.Limit, period.NumberPhases, c.ChargingRateUnit, unit)
		if err != nil {
			return types.CompositeSchedule{}, err
		}
		period.Limit = limit
		out.ChargingSchedulePeriod[i] = period
	}
	out.ChargingRateUnit = unit
	return out, nil
}
