package controller

import (
	"context"
	"log/slog"
	"time"

	"github.com/jameshartig/chargeplan/pkg/log"
	"github.com/jameshartig/chargeplan/pkg/types"
)

// PlannedLimit is a limit the connector will enforce over [Start, End).
type PlannedLimit struct {
	Start  time.Time          `json:"start"`
	End    time.Time          `json:"end"`
	Limit  types.AppliedLimit `json:"limit"`
	Reason types.ActionReason `json:"reason"`
}

// SimulateSchedule walks a composite schedule and returns the limits the
// controller would apply over it, with fallbacks in place of gaps. Adjacent
// entries always differ.
func (c *Controller) SimulateSchedule(
	ctx context.Context,
	schedule types.CompositeSchedule,
	settings types.StationSettings,
) []PlannedLimit {
	plan := make([]PlannedLimit, 0, len(schedule.ChargingSchedulePeriod)+1)
	add := func(start, end time.Time, limit types.AppliedLimit, reason types.ActionReason) {
		if !start.Before(end) {
			return
		}
		if n := len(plan); n > 0 && plan[n-1].Reason == reason && plan[n-1].Limit.Equal(limit) {
			plan[n-1].End = end
			return
		}
		plan = append(plan, PlannedLimit{Start: start, End: end, Limit: limit, Reason: reason})
	}

	fbLimit, fbReason := fallback(settings)
	if len(schedule.ChargingSchedulePeriod) == 0 {
		add(schedule.StartSchedule, schedule.End(), fbLimit, fbReason)
		return plan
	}

	for i, p := range schedule.ChargingSchedulePeriod {
		start := schedule.StartSchedule.Add(time.Duration(p.StartPeriod) * time.Second)
		end := schedule.End()
		if i+1 < len(schedule.ChargingSchedulePeriod) {
			end = schedule.StartSchedule.Add(time.Duration(schedule.ChargingSchedulePeriod[i+1].StartPeriod) * time.Second)
		}
		if p.Limit == types.NoLimit {
			add(start, end, fbLimit, fbReason)
			continue
		}
		add(start, end, types.AppliedLimit{
			Limit:        p.Limit,
			NumberPhases: p.NumberPhases,
			RateUnit:     schedule.ChargingRateUnit,
		}, types.ActionReasonComposite)
	}

	log.Ctx(ctx).DebugContext(ctx, "simulated schedule", slog.Int("periods", len(schedule.ChargingSchedulePeriod)), slog.Int("planned", len(plan)))
	return plan
}
