package controller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jameshartig/chargeplan/pkg/log"
	"github.com/jameshartig/chargeplan/pkg/types"
)

// Decision represents the result of the decision logic.
type Decision struct {
	Action      types.Action
	Explanation string
}

// Controller decides which limit a connector should enforce from its
// composite schedule.
type Controller struct {
}

// NewController creates a new Controller.
func NewController() *Controller {
	return &Controller{}
}

// fallback is the limit a connector enforces while no profile applies.
func fallback(settings types.StationSettings) (types.AppliedLimit, types.ActionReason) {
	if settings.DefaultLimit > 0 {
		return types.AppliedLimit{Limit: settings.DefaultLimit, RateUnit: settings.RateUnit}, types.ActionReasonDefaultLimit
	}
	return types.AppliedLimit{Unlimited: true}, types.ActionReasonUnlimited
}

// Decide determines the limit the connector should enforce at now given its
// resolved composite schedule and its current status.
func (c *Controller) Decide(
	ctx context.Context,
	schedule types.CompositeSchedule,
	now time.Time,
	status types.ConnectorStatus,
	settings types.StationSettings,
) (Decision, error) {
	log.Ctx(ctx).DebugContext(ctx, "controller decide started",
		slog.Int("connectorID", status.ConnectorID),
		slog.Bool("online", status.Online),
		slog.Bool("unlimited", status.Limit.Unlimited),
		slog.Float64("currentLimit", status.Limit.Limit),
		slog.Int("periods", len(schedule.ChargingSchedulePeriod)),
	)

	action := types.Action{
		Timestamp:   now,
		ConnectorID: status.ConnectorID,
		DryRun:      settings.DryRun,
	}

	finalizeAction := func(limit types.AppliedLimit, reason types.ActionReason, description string, explanation string) Decision {
		action.Limit = limit
		action.Reason = reason
		action.Description = description
		// an offline connector gets the limit re-sent once it is back
		if status.Online && status.Limit.Equal(limit) {
			action.NoChange = true
		}
		return Decision{Action: action, Explanation: explanation}
	}

	if settings.Pause {
		action.Paused = true
		action.NoChange = true
		action.Limit = status.Limit
		action.Reason = types.ActionReasonPaused
		action.Description = "Updates are paused."
		return Decision{Action: action, Explanation: "Paused"}, nil
	}

	if settings.RateUnit != "" && schedule.ChargingRateUnit != "" && schedule.ChargingRateUnit != settings.RateUnit {
		return Decision{}, fmt.Errorf("schedule is in %s but the station works in %s", schedule.ChargingRateUnit, settings.RateUnit)
	}

	period, end, ok := schedule.PeriodAt(now)
	if ok && end.Before(schedule.End()) {
		action.NextChangeAt = end
	}
	if !ok || period.Limit == types.NoLimit {
		limit, reason := fallback(settings)
		log.Ctx(ctx).DebugContext(ctx, "no profile applies, using fallback", slog.String("reason", string(reason)))
		if reason == types.ActionReasonDefaultLimit {
			return finalizeAction(limit, reason, fmt.Sprintf("No profile applies, using the default limit of %.1f %s.", limit.Limit, limit.RateUnit), "Default Limit"), nil
		}
		return finalizeAction(limit, reason, "No profile applies, leaving the connector unlimited.", "Unlimited"), nil
	}

	limit := types.AppliedLimit{
		Limit:        period.Limit,
		NumberPhases: period.NumberPhases,
		RateUnit:     schedule.ChargingRateUnit,
	}
	desc := fmt.Sprintf("Composite schedule limits the connector to %.1f %s.", limit.Limit, limit.RateUnit)
	if !action.NextChangeAt.IsZero() {
		desc = fmt.Sprintf("Composite schedule limits the connector to %.1f %s until %s.", limit.Limit, limit.RateUnit, action.NextChangeAt.Format(time.Kitchen))
	}
	return finalizeAction(limit, types.ActionReasonComposite, desc, "Composite Schedule"), nil
}
