package composite

import (
	"fmt"
	"math"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/jameshartig/chargeplan/pkg/types"
)

// occurrence is one concrete stretch of time during which a profile applies.
// origin is where the schedule's period offsets count from, [start, end) is
// the stretch already clipped to validity and the window.
type occurrence struct {
	profile *types.ChargingProfile
	origin  time.Time
	start   time.Time
	end     time.Time
}

func (o occurrence) contains(t time.Time) bool {
	return !t.Before(o.start) && t.Before(o.end)
}

// projector expands profiles into occurrences inside one window.
type projector struct {
	window         Window
	anchor         time.Time
	maxOccurrences int
}

// project returns the occurrences of p that overlap the window. A profile
// whose validity does not overlap the window yields nothing.
func (pr projector) project(p *types.ChargingProfile) ([]occurrence, error) {
	switch p.ChargingProfileKind {
	case types.KindAbsolute:
		return pr.absolute(p), nil
	case types.KindRecurring:
		return pr.recurring(p)
	case types.KindRelative:
		return pr.relative(p), nil
	default:
		return nil, fmt.Errorf("%w: profile %d: unknown kind %q", ErrMalformedSchedule, p.ChargingProfileID, p.ChargingProfileKind)
	}
}

// emit clips [start, end) to the profile's validity range and the window and
// appends the result if anything is left.
func (pr projector) emit(occs []occurrence, p *types.ChargingProfile, origin, start, end time.Time, useValidity bool) []occurrence {
	if useValidity {
		if p.ValidFrom != nil && p.ValidFrom.After(start) {
			start = *p.ValidFrom
		}
		if p.ValidTo != nil && p.ValidTo.Before(end) {
			end = *p.ValidTo
		}
	}
	start, end, ok := pr.window.clip(start, end)
	if !ok {
		return occs
	}
	return append(occs, occurrence{profile: p, origin: origin, start: start, end: end})
}

// scheduleEnd returns origin plus the schedule duration, or the window end for
// open-ended schedules since nothing past it is ever observed.
func (pr projector) scheduleEnd(p *types.ChargingProfile, origin time.Time) time.Time {
	if p.ChargingSchedule.Duration == nil {
		return pr.window.End
	}
	return origin.Add(time.Duration(*p.ChargingSchedule.Duration) * time.Second)
}

func (pr projector) absolute(p *types.ChargingProfile) []occurrence {
	origin := p.ChargingSchedule.StartSchedule.Truncate(time.Second)
	return pr.emit(nil, p, origin, origin, pr.scheduleEnd(p, origin), true)
}

// relative anchors the schedule at the transaction start, or the window start
// when there is none. Validity bounds do not apply to relative profiles.
func (pr projector) relative(p *types.ChargingProfile) []occurrence {
	origin := pr.anchor
	if origin.IsZero() {
		origin = pr.window.Start
	}
	origin = origin.Truncate(time.Second)
	return pr.emit(nil, p, origin, origin, pr.scheduleEnd(p, origin), false)
}

// recurring walks the calendar occurrences of the schedule's time of day (and
// weekday for weekly profiles). Each occurrence lasts for the schedule
// duration but never past the next occurrence.
func (pr projector) recurring(p *types.ChargingProfile) ([]occurrence, error) {
	days := 1
	freq := rrule.DAILY
	if p.RecurrencyKind == types.RecurrencyWeekly {
		days = 7
		freq = rrule.WEEKLY
	}

	from := pr.window.Start
	if p.ValidFrom != nil && p.ValidFrom.After(from) {
		from = *p.ValidFrom
	}
	until := pr.window.End
	if p.ValidTo != nil && p.ValidTo.Before(until) {
		until = *p.ValidTo
	}
	if !from.Before(until) {
		return nil, nil
	}

	first := lastOccurrence(p.ChargingSchedule.StartSchedule.Truncate(time.Second), days, from)
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    freq,
		Dtstart: first,
		Until:   until,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: profile %d: %w", ErrMalformedSchedule, p.ChargingProfileID, err)
	}

	var occs []occurrence
	count := 0
	next := rule.Iterator()
	for at, ok := next(); ok; at, ok = next() {
		if !at.Before(until) {
			break
		}
		count++
		if p.ValidTo == nil && pr.maxOccurrences > 0 && count > pr.maxOccurrences {
			return nil, fmt.Errorf(
				"%w: profile %d has no validTo and recurs more than %d times in %s",
				ErrUnboundedRecurrence, p.ChargingProfileID, pr.maxOccurrences, pr.window.Duration(),
			)
		}
		end := at.AddDate(0, 0, days)
		if p.ChargingSchedule.Duration != nil {
			if d := at.Add(time.Duration(*p.ChargingSchedule.Duration) * time.Second); d.Before(end) {
				end = d
			}
		}
		occs = pr.emit(occs, p, at, at, end, true)
	}
	return occs, nil
}

// lastOccurrence returns the latest origin + n*days (n may be negative) that
// is not after at.
func lastOccurrence(origin time.Time, days int, at time.Time) time.Time {
	elapsedDays := math.Floor(at.Sub(origin).Hours() / 24)
	n := int(math.Floor(elapsedDays/float64(days))) * days
	o := origin.AddDate(0, 0, n)
	// AddDate follows wall clock time so DST shifts can leave o an hour off
	for o.After(at) {
		o = o.AddDate(0, 0, -days)
	}
	for {
		next := o.AddDate(0, 0, days)
		if next.After(at) {
			return o
		}
		o = next
	}
}
