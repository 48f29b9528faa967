package composite

import (
	"fmt"

	"github.com/jameshartig/chargeplan/pkg/types"
)

// Validate checks the structural invariants the engine relies on. It returns
// an error wrapping ErrMalformedSchedule naming the offending profile.
func Validate(p *types.ChargingProfile) error {
	malformed := func(format string, args ...any) error {
		return fmt.Errorf("%w: profile %d: %s", ErrMalformedSchedule, p.ChargingProfileID, fmt.Sprintf(format, args...))
	}

	if p.ChargingProfilePurpose.Precedence() == 0 {
		return malformed("unknown purpose %q", p.ChargingProfilePurpose)
	}
	if p.StackLevel < 0 {
		return malformed("negative stack level %d", p.StackLevel)
	}

	s := &p.ChargingSchedule
	switch p.ChargingProfileKind {
	case types.KindAbsolute:
		if s.StartSchedule == nil {
			return malformed("absolute profile without startSchedule")
		}
	case types.KindRecurring:
		if s.StartSchedule == nil {
			return malformed("recurring profile without startSchedule")
		}
		if p.RecurrencyKind != types.RecurrencyDaily && p.RecurrencyKind != types.RecurrencyWeekly {
			return malformed("unknown recurrency kind %q", p.RecurrencyKind)
		}
	case types.KindRelative:
	default:
		return malformed("unknown kind %q", p.ChargingProfileKind)
	}

	switch s.ChargingRateUnit {
	case types.ChargingRateUnitAmperes, types.ChargingRateUnitWatts:
	default:
		return malformed("unknown charging rate unit %q", s.ChargingRateUnit)
	}

	if s.Duration != nil && *s.Duration <= 0 {
		return malformed("duration must be positive, got %d", *s.Duration)
	}

	if len(s.ChargingSchedulePeriod) == 0 {
		return malformed("no periods")
	}
	if s.ChargingSchedulePeriod[0].StartPeriod != 0 {
		return malformed("first period starts at %d instead of 0", s.ChargingSchedulePeriod[0].StartPeriod)
	}
	for i, period := range s.ChargingSchedulePeriod {
		// negative limits would collide with types.NoLimit
		if period.Limit < 0 {
			return malformed("period %d has negative limit %g", i, period.Limit)
		}
		if i > 0 && period.StartPeriod <= s.ChargingSchedulePeriod[i-1].StartPeriod {
			return malformed("period %d starts at %d, not after %d", i, period.StartPeriod, s.ChargingSchedulePeriod[i-1].StartPeriod)
		}
	}
	return nil
}
