package smartcharging

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jameshartig/chargeplan/pkg/composite"
	"github.com/jameshartig/chargeplan/pkg/log"
	"github.com/jameshartig/chargeplan/pkg/types"
	"github.com/jameshartig/chargeplan/pkg/units"
)

// Snapshot is the profile set that applies to one connector at one moment.
type Snapshot struct {
	ConnectorID int
	Profiles    []types.ChargingProfile
	// Transaction is the transaction running on the connector, if any.
	Transaction *types.Transaction
}

// Anchor returns the instant Relative profiles count from. It is zero when
// no transaction is running.
func (s Snapshot) Anchor() time.Time {
	if s.Transaction == nil {
		return time.Time{}
	}
	return s.Transaction.StartedAt
}

// Snapshot collects the profiles applying to a connector. Connector 0 only
// sees ChargePointMaxProfiles. A TxDefaultProfile installed on the connector
// hides the station-wide TxDefaultProfiles of the same stack level.
// TxProfiles only apply while their transaction runs.
func (s *Service) Snapshot(ctx context.Context, stationID string, connectorID int) (Snapshot, error) {
	installed, err := s.db.ListProfiles(ctx, stationID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to list profiles: %w", err)
	}
	snap := Snapshot{ConnectorID: connectorID}
	if connectorID > 0 {
		snap.Transaction, err = s.db.GetTransaction(ctx, stationID, connectorID)
		if err != nil {
			return Snapshot{}, fmt.Errorf("failed to get transaction: %w", err)
		}
	}

	connectorDefaults := make(map[int]bool)
	for _, ip := range installed {
		if connectorID > 0 && ip.ConnectorID == connectorID && ip.Profile.ChargingProfilePurpose == types.PurposeTxDefault {
			connectorDefaults[ip.Profile.StackLevel] = true
		}
	}

	for _, ip := range installed {
		p := ip.Profile
		if ip.ConnectorID != 0 && ip.ConnectorID != connectorID {
			continue
		}
		switch p.ChargingProfilePurpose {
		case types.PurposeChargePointMax:
		case types.PurposeTxDefault:
			if connectorID == 0 {
				continue
			}
			if ip.ConnectorID == 0 && connectorDefaults[p.StackLevel] {
				continue
			}
		case types.PurposeTx:
			if snap.Transaction == nil {
				continue
			}
			if p.TransactionID != nil && *p.TransactionID != snap.Transaction.ID {
				continue
			}
		default:
			continue
		}
		snap.Profiles = append(snap.Profiles, p.Clone())
	}
	slices.SortFunc(snap.Profiles, func(a, b types.ChargingProfile) int {
		return cmp.Compare(a.ChargingProfileID, b.ChargingProfileID)
	})
	return snap, nil
}

// CompositeSchedule resolves the composite schedule of a connector starting
// now. Profiles that are malformed are dropped and logged instead of failing
// the whole request. The schedule is expressed in the requested unit, or the
// station's unit if none was requested.
func (s *Service) CompositeSchedule(ctx context.Context, stationID string, req GetCompositeScheduleRequest) (types.CompositeSchedule, error) {
	if err := validateStruct(req); err != nil {
		return types.CompositeSchedule{}, rejected("%v", err)
	}
	duration := time.Duration(req.Duration) * time.Second
	if s.maxDuration > 0 && duration > s.maxDuration {
		return types.CompositeSchedule{}, rejected("duration %s exceeds the maximum of %s", duration, s.maxDuration)
	}
	settings, err := s.Settings(ctx, stationID)
	if err != nil {
		return types.CompositeSchedule{}, err
	}
	if req.ConnectorID > settings.ConnectorCount {
		return types.CompositeSchedule{}, rejected("connector %d does not exist", req.ConnectorID)
	}
	return s.resolve(ctx, stationID, req.ConnectorID, composite.NewWindow(s.now().UTC().Truncate(time.Second), duration), req.ChargingRateUnit, settings)
}

// Resolve resolves the composite schedule of a connector over window in the
// station's unit.
func (s *Service) Resolve(ctx context.Context, stationID string, connectorID int, window composite.Window, settings types.StationSettings) (types.CompositeSchedule, error) {
	return s.resolve(ctx, stationID, connectorID, window, "", settings)
}

func (s *Service) resolve(ctx context.Context, stationID string, connectorID int, window composite.Window, unit types.ChargingRateUnit, settings types.StationSettings) (types.CompositeSchedule, error) {
	snap, err := s.Snapshot(ctx, stationID, connectorID)
	if err != nil {
		return types.CompositeSchedule{}, err
	}

	profiles := snap.Profiles[:0:0]
	for _, p := range snap.Profiles {
		if err := composite.Validate(&p); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "dropping malformed charging profile",
				slog.String("stationID", stationID),
				slog.Int("profileID", p.ChargingProfileID),
				slog.Any("error", err),
			)
			continue
		}
		profiles = append(profiles, p)
	}

	if unit == "" {
		unit = settings.RateUnit
	}
	profiles, err = units.FromSettings(settings).Normalize(profiles, unit)
	if err != nil {
		return types.CompositeSchedule{}, fmt.Errorf("failed to normalize profiles: %w", err)
	}

	return s.engine.Resolve(ctx, composite.Request{
		Window:   window,
		Profiles: profiles,
		Anchor:   snap.Anchor(),
		RateUnit: unit,
	})
}
