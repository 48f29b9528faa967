package types

import (
	"time"
)

// NoLimit is the limit of a composite period during which no profile applies.
const NoLimit = -1.0

// CompositeSchedule is the single resolved sequence of limits for a window.
// Periods are sorted by StartPeriod, the first one starts at 0 and no two
// adjacent periods share the same limit and phase count.
type CompositeSchedule struct {
	StartSchedule          time.Time                `json:"startSchedule"`
	Duration               int                      `json:"duration"`
	ChargingRateUnit       ChargingRateUnit         `json:"chargingRateUnit"`
	ChargingSchedulePeriod []ChargingSchedulePeriod `json:"chargingSchedulePeriod"`
}

// End returns the instant the schedule stops covering.
func (c CompositeSchedule) End() time.Time {
	return c.StartSchedule.Add(time.Duration(c.Duration) * time.Second)
}

// PeriodAt returns the period in force at t along with the instant it ends.
// It returns false if t is outside the schedule or there are no periods.
func (c CompositeSchedule) PeriodAt(t time.Time) (ChargingSchedulePeriod, time.Time, bool) {
	if t.Before(c.StartSchedule) || !t.Before(c.End()) || len(c.ChargingSchedulePeriod) == 0 {
		return ChargingSchedulePeriod{}, time.Time{}, false
	}
	offset := int(t.Sub(c.StartSchedule) / time.Second)
	for i := len(c.ChargingSchedulePeriod) - 1; i >= 0; i-- {
		p := c.ChargingSchedulePeriod[i]
		if p.StartPeriod > offset {
			continue
		}
		end := c.End()
		if i+1 < len(c.ChargingSchedulePeriod) {
			end = c.StartSchedule.Add(time.Duration(c.ChargingSchedulePeriod[i+1].StartPeriod) * time.Second)
		}
		return p, end, true
	}
	return ChargingSchedulePeriod{}, time.Time{}, false
}

// Fill replaces every NoLimit period with the given limit and phase count and
// merges the runs that become equal.
func (c CompositeSchedule) Fill(limit float64, numberPhases *int) CompositeSchedule {
	filled := c
	filled.ChargingSchedulePeriod = make([]ChargingSchedulePeriod, 0, len(c.ChargingSchedulePeriod))
	for _, p := range c.ChargingSchedulePeriod {
		if p.Limit == NoLimit {
			p.Limit = limit
			p.NumberPhases = numberPhases
		}
		if n := len(filled.ChargingSchedulePeriod); n > 0 && filled.ChargingSchedulePeriod[n-1].SameLimit(p) {
			continue
		}
		filled.ChargingSchedulePeriod = append(filled.ChargingSchedulePeriod, p)
	}
	return filled
}
