package composite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/jameshartig/chargeplan/pkg/log"
	"github.com/jameshartig/chargeplan/pkg/types"
)

// DefaultMaxOccurrences bounds how many occurrences a recurring profile
// without validTo may expand to within one window. It covers a daily profile
// over a year.
const DefaultMaxOccurrences = 366

// Options configures an Engine.
type Options struct {
	// MaxOccurrences bounds the expansion of recurring profiles that have no
	// validTo. 0 disables the bound.
	MaxOccurrences int
	TieBreak       TieBreak
}

// Request is one resolution request. Profiles must not be modified while
// Resolve runs.
type Request struct {
	Window   Window
	Profiles []types.ChargingProfile
	// Anchor is the start of the transaction Relative profiles count from. The
	// zero value anchors them at the window start.
	Anchor time.Time
	// RateUnit is the unit the caller expects. Empty means the unit shared by
	// the profiles.
	RateUnit types.ChargingRateUnit
}

// Engine resolves profile sets into composite schedules. It holds no state
// besides its options and is safe for concurrent use.
type Engine struct {
	maxOccurrences int
	compare        Comparator
	tieBreak       TieBreak
}

// New returns an Engine with the given options.
func New(opts Options) (*Engine, error) {
	if opts.MaxOccurrences < 0 {
		return nil, errors.New("max occurrences must not be negative")
	}
	compare, err := NewComparator(opts.TieBreak)
	if err != nil {
		return nil, err
	}
	tb := opts.TieBreak
	if tb == "" {
		tb = TieBreakNewest
	}
	return &Engine{
		maxOccurrences: opts.MaxOccurrences,
		compare:        compare,
		tieBreak:       tb,
	}, nil
}

// Configured returns an Engine configured from flags.
func Configured() *Engine {
	maxOccurrences := lflag.String("composite-max-occurrences", strconv.Itoa(DefaultMaxOccurrences), "Maximum occurrences a recurring profile without validTo may expand to in one window (0 disables)")
	tieBreak := lflag.String("composite-tie-break", string(TieBreakNewest), "Tie-break between profiles with equal purpose and stack level (available: newest, lowest-id)")

	e := new(Engine)
	lflag.Do(func() {
		n, err := strconv.Atoi(*maxOccurrences)
		if err != nil {
			panic(fmt.Sprintf("invalid composite-max-occurrences: %v", err))
		}
		configured, err := New(Options{MaxOccurrences: n, TieBreak: TieBreak(*tieBreak)})
		if err != nil {
			panic(fmt.Sprintf("composite engine configuration failed: %v", err))
		}
		*e = *configured
	})
	return e
}

// TieBreak returns the configured tie-break policy.
func (e *Engine) TieBreak() TieBreak {
	return e.tieBreak
}

// Resolve computes the composite schedule of req.Profiles over req.Window.
// Profiles that never apply inside the window still have to be well formed.
// When no profile applies anywhere the schedule has no periods and no error
// is returned.
func (e *Engine) Resolve(ctx context.Context, req Request) (types.CompositeSchedule, error) {
	if err := req.Window.Validate(); err != nil {
		return types.CompositeSchedule{}, err
	}
	for i := range req.Profiles {
		if err := Validate(&req.Profiles[i]); err != nil {
			return types.CompositeSchedule{}, err
		}
	}
	unit, err := commonUnit(req.Profiles, req.RateUnit)
	if err != nil {
		return types.CompositeSchedule{}, err
	}

	pr := projector{
		window:         req.Window,
		anchor:         req.Anchor,
		maxOccurrences: e.maxOccurrences,
	}
	var occs []occurrence
	for i := range req.Profiles {
		po, err := pr.project(&req.Profiles[i])
		if err != nil {
			return types.CompositeSchedule{}, err
		}
		occs = append(occs, po...)
	}

	bs := boundaries(req.Window, occs)
	slots := selectWinners(bs, occs, e.compare)
	periods := compact(req.Window, slots)

	log.Ctx(ctx).DebugContext(
		ctx,
		"resolved composite schedule",
		slog.Time("start", req.Window.Start),
		slog.Duration("duration", req.Window.Duration()),
		slog.Int("profiles", len(req.Profiles)),
		slog.Int("occurrences", len(occs)),
		slog.Int("boundaries", len(bs)),
		slog.Int("periods", len(periods)),
	)

	return types.CompositeSchedule{
		StartSchedule:          req.Window.Start,
		Duration:               int(req.Window.Duration() / time.Second),
		ChargingRateUnit:       unit,
		ChargingSchedulePeriod: periods,
	}, nil
}

// commonUnit returns the unit every profile is expressed in. requested, if
// set, must match it.
func commonUnit(profiles []types.ChargingProfile, requested types.ChargingRateUnit) (types.ChargingRateUnit, error) {
	unit := requested
	for _, p := range profiles {
		u := p.ChargingSchedule.ChargingRateUnit
		if unit == "" {
			unit = u
			continue
		}
		if u != unit {
			return "", fmt.Errorf("%w: profile %d uses %s, expected %s", ErrUnitMismatch, p.ChargingProfileID, u, unit)
		}
	}
	if unit == "" {
		unit = types.ChargingRateUnitAmperes
	}
	return unit, nil
}
