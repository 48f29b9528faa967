package composite

import (
	"sort"
	"time"

	"github.com/jameshartig/chargeplan/pkg/types"
)

// evaluate returns the period of p in force at t, where origin is the instant
// the schedule counts its offsets from. The returned period is a copy that
// does not share NumberPhases with the profile.
func evaluate(p *types.ChargingProfile, origin, t time.Time) types.ChargingSchedulePeriod {
	periods := p.ChargingSchedule.ChargingSchedulePeriod
	elapsed := int(t.Sub(origin) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	// first period starting after elapsed, the one before it is in force
	idx := sort.Search(len(periods), func(i int) bool {
		return periods[i].StartPeriod > elapsed
	})
	if idx == 0 {
		idx = 1
	}
	period := periods[idx-1]
	if period.NumberPhases != nil {
		n := *period.NumberPhases
		period.NumberPhases = &n
	}
	return period
}
