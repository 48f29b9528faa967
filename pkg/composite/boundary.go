package composite

import (
	"slices"
	"time"
)

// boundaries returns every instant at which the applicable profile set or the
// limit of an applicable profile can change, sorted and without duplicates.
// The window start and end are always included.
func boundaries(w Window, occs []occurrence) []time.Time {
	bs := []time.Time{w.Start, w.End}
	for _, o := range occs {
		bs = append(bs, o.start, o.end)
		for _, period := range o.profile.ChargingSchedule.ChargingSchedulePeriod {
			b := o.origin.Add(time.Duration(period.StartPeriod) * time.Second)
			if b.After(o.start) && b.Before(o.end) {
				bs = append(bs, b)
			}
		}
	}
	slices.SortFunc(bs, time.Time.Compare)
	return slices.CompactFunc(bs, time.Time.Equal)
}
