package composite

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jameshartig/chargeplan/pkg/types"
)

// TieBreak names the policy that orders two applicable profiles sharing the
// same purpose and stack level.
type TieBreak string

const (
	// TieBreakNewest prefers the most recently installed profile, then the
	// higher id.
	TieBreakNewest TieBreak = "newest"
	// TieBreakLowestID prefers the lower id, then the most recently installed
	// profile.
	TieBreakLowestID TieBreak = "lowest-id"
)

// Comparator returns a positive number when a takes precedence over b, a
// negative number when b takes precedence and 0 only when both are the same
// profile as far as ordering is concerned.
type Comparator func(a, b *types.ChargingProfile) int

// rank is the (purpose precedence, stack level) key every comparator orders
// by first.
type rank struct {
	precedence int
	stackLevel int
}

func rankOf(p *types.ChargingProfile) rank {
	return rank{precedence: p.ChargingProfilePurpose.Precedence(), stackLevel: p.StackLevel}
}

func (r rank) compare(o rank) int {
	if c := cmp.Compare(r.precedence, o.precedence); c != 0 {
		return c
	}
	return cmp.Compare(r.stackLevel, o.stackLevel)
}

// NewComparator returns the comparator for the given tie-break policy. An
// empty policy selects TieBreakNewest.
func NewComparator(tb TieBreak) (Comparator, error) {
	switch tb {
	case "", TieBreakNewest:
		return func(a, b *types.ChargingProfile) int {
			if c := rankOf(a).compare(rankOf(b)); c != 0 {
				return c
			}
			if c := a.InstalledAt.Compare(b.InstalledAt); c != 0 {
				return c
			}
			return cmp.Compare(a.ChargingProfileID, b.ChargingProfileID)
		}, nil
	case TieBreakLowestID:
		return func(a, b *types.ChargingProfile) int {
			if c := rankOf(a).compare(rankOf(b)); c != 0 {
				return c
			}
			if c := cmp.Compare(b.ChargingProfileID, a.ChargingProfileID); c != 0 {
				return c
			}
			return a.InstalledAt.Compare(b.InstalledAt)
		}, nil
	default:
		return nil, fmt.Errorf("unknown tie-break policy: %q", tb)
	}
}

// slot is one sub-interval between two adjacent boundaries and the limit that
// won it.
type slot struct {
	start  time.Time
	period types.ChargingSchedulePeriod
	// winner is nil when no profile applies
	winner *types.ChargingProfile
}

// selectWinners evaluates every sub-interval independently. The winner of a
// sub-interval is the greatest applicable occurrence by compare, and its limit
// is evaluated at the start of the sub-interval.
func selectWinners(bs []time.Time, occs []occurrence, compare Comparator) []slot {
	if len(bs) < 2 {
		return nil
	}
	slots := make([]slot, 0, len(bs)-1)
	for _, t := range bs[:len(bs)-1] {
		var best *occurrence
		for i := range occs {
			if !occs[i].contains(t) {
				continue
			}
			if best == nil || compare(occs[i].profile, best.profile) > 0 {
				best = &occs[i]
			}
		}
		if best == nil {
			slots = append(slots, slot{start: t, period: types.ChargingSchedulePeriod{Limit: types.NoLimit}})
			continue
		}
		slots = append(slots, slot{
			start:  t,
			period: evaluate(best.profile, best.origin, t),
			winner: best.profile,
		})
	}
	return slots
}
