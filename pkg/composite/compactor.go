package composite

import (
	"time"

	"github.com/jameshartig/chargeplan/pkg/types"
)

// compact merges adjacent slots with the same limit and phase count into
// periods whose offsets count from the window start. If no slot had a
// winner the result has no periods.
func compact(w Window, slots []slot) []types.ChargingSchedulePeriod {
	anyWinner := false
	for _, s := range slots {
		if s.winner != nil {
			anyWinner = true
			break
		}
	}
	if !anyWinner {
		return []types.ChargingSchedulePeriod{}
	}

	periods := make([]types.ChargingSchedulePeriod, 0, len(slots))
	for _, s := range slots {
		if n := len(periods); n > 0 && periods[n-1].SameLimit(s.period) {
			continue
		}
		p := s.period
		p.StartPeriod = int(s.start.Sub(w.Start) / time.Second)
		periods = append(periods, p)
	}
	periods[0].StartPeriod = 0
	return periods
}
