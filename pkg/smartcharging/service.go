// Package smartcharging admits charging profiles and transactions for a
// station and resolves their composite schedules.
package smartcharging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/jameshartig/chargeplan/pkg/composite"
	"github.com/jameshartig/chargeplan/pkg/log"
	"github.com/jameshartig/chargeplan/pkg/storage"
	"github.com/jameshartig/chargeplan/pkg/types"
)

var (
	// ErrRejected is returned when a request is refused. The wrapped message
	// explains why.
	ErrRejected = errors.New("rejected")
	// ErrNoTransaction is returned when stopping an unknown transaction.
	ErrNoTransaction = errors.New("no such transaction")
)

// DefaultMaxDuration bounds the window of a composite schedule request.
const DefaultMaxDuration = 48 * time.Hour

// Service admits profiles and transactions and builds the profile snapshots
// the composite engine resolves.
type Service struct {
	db          storage.Database
	engine      *composite.Engine
	maxDuration time.Duration
	now         func() time.Time

	// serializes read-modify-write cycles on a station's profiles
	mu sync.Mutex
}

// New returns a Service storing into db and resolving with engine.
func New(db storage.Database, engine *composite.Engine, maxDuration time.Duration) *Service {
	return &Service{
		db:          db,
		engine:      engine,
		maxDuration: maxDuration,
		now:         time.Now,
	}
}

// Configured returns a Service configured from flags.
func Configured(db storage.Database, engine *composite.Engine) *Service {
	maxDuration := lflag.Duration("composite-max-duration", DefaultMaxDuration, "Longest window a composite schedule may be requested for")

	s := New(db, engine, DefaultMaxDuration)
	lflag.Do(func() {
		if *maxDuration <= 0 {
			panic(fmt.Sprintf("composite-max-duration must be positive, got %s", *maxDuration))
		}
		s.maxDuration = *maxDuration
	})
	return s
}

func rejected(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}

// Settings returns the station settings migrated to the current version.
func (s *Service) Settings(ctx context.Context, stationID string) (types.StationSettings, error) {
	settings, version, err := s.db.GetSettings(ctx, stationID)
	if err != nil {
		return types.StationSettings{}, fmt.Errorf("failed to get settings: %w", err)
	}
	settings, _, err = types.MigrateSettings(settings, version)
	if err != nil {
		return types.StationSettings{}, fmt.Errorf("failed to migrate settings: %w", err)
	}
	return settings, nil
}

// Profiles returns every installed profile of the station.
func (s *Service) Profiles(ctx context.Context, stationID string) ([]types.InstalledProfile, error) {
	return s.db.ListProfiles(ctx, stationID)
}

// SetProfile validates and installs a profile. A profile with the same id,
// or with the same connector, purpose and stack level, is replaced.
func (s *Service) SetProfile(ctx context.Context, stationID string, req SetChargingProfileRequest) (types.ProfileStatus, error) {
	if err := validateStruct(req); err != nil {
		return types.ProfileStatusRejected, rejected("%v", err)
	}
	profile := req.ChargingProfile.Clone()
	if err := composite.Validate(&profile); err != nil {
		return types.ProfileStatusRejected, rejected("%v", err)
	}

	settings, err := s.Settings(ctx, stationID)
	if err != nil {
		return "", err
	}
	if req.ConnectorID > settings.ConnectorCount {
		return types.ProfileStatusRejected, rejected("connector %d does not exist", req.ConnectorID)
	}

	switch profile.ChargingProfilePurpose {
	case types.PurposeChargePointMax:
		if req.ConnectorID != 0 {
			return types.ProfileStatusRejected, rejected("%s must be set on connector 0", profile.ChargingProfilePurpose)
		}
	case types.PurposeTx:
		if req.ConnectorID == 0 {
			return types.ProfileStatusRejected, rejected("%s cannot be set on connector 0", profile.ChargingProfilePurpose)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if profile.ChargingProfilePurpose == types.PurposeTx {
		tx, err := s.db.GetTransaction(ctx, stationID, req.ConnectorID)
		if err != nil {
			return "", fmt.Errorf("failed to get transaction: %w", err)
		}
		if tx == nil {
			return types.ProfileStatusRejected, rejected("no transaction running on connector %d", req.ConnectorID)
		}
		if profile.TransactionID != nil && *profile.TransactionID != tx.ID {
			return types.ProfileStatusRejected, rejected("transaction %d is not running on connector %d", *profile.TransactionID, req.ConnectorID)
		}
		id := tx.ID
		profile.TransactionID = &id
	}

	existing, err := s.db.ListProfiles(ctx, stationID)
	if err != nil {
		return "", fmt.Errorf("failed to list profiles: %w", err)
	}
	for _, ip := range existing {
		p := ip.Profile
		if p.ChargingProfileID == profile.ChargingProfileID {
			// the upsert below overwrites it
			continue
		}
		if ip.ConnectorID == req.ConnectorID && p.ChargingProfilePurpose == profile.ChargingProfilePurpose && p.StackLevel == profile.StackLevel {
			log.Ctx(ctx).InfoContext(ctx, "replacing charging profile",
				slog.String("stationID", stationID),
				slog.Int("oldProfileID", p.ChargingProfileID),
				slog.Int("newProfileID", profile.ChargingProfileID),
			)
			if err := s.db.DeleteProfile(ctx, stationID, p.ChargingProfileID); err != nil && !errors.Is(err, storage.ErrProfileNotFound) {
				return "", fmt.Errorf("failed to delete replaced profile: %w", err)
			}
		}
	}

	profile.InstalledAt = s.now().UTC()
	if err := s.db.UpsertProfile(ctx, stationID, types.InstalledProfile{ConnectorID: req.ConnectorID, Profile: profile}); err != nil {
		return "", fmt.Errorf("failed to store profile: %w", err)
	}
	log.Ctx(ctx).InfoContext(ctx, "installed charging profile",
		slog.String("stationID", stationID),
		slog.Int("connectorID", req.ConnectorID),
		slog.Int("profileID", profile.ChargingProfileID),
		slog.String("purpose", string(profile.ChargingProfilePurpose)),
		slog.Int("stackLevel", profile.StackLevel),
	)
	return types.ProfileStatusAccepted, nil
}

func (r ClearChargingProfileRequest) matches(ip types.InstalledProfile) bool {
	if r.ID != nil && ip.Profile.ChargingProfileID != *r.ID {
		return false
	}
	if r.ConnectorID != nil && ip.ConnectorID != *r.ConnectorID {
		return false
	}
	if r.ChargingProfilePurpose != "" && ip.Profile.ChargingProfilePurpose != r.ChargingProfilePurpose {
		return false
	}
	if r.StackLevel != nil && ip.Profile.StackLevel != *r.StackLevel {
		return false
	}
	return true
}

// ClearProfiles removes every profile matching the request. It returns
// ProfileStatusUnknown if nothing matched.
func (s *Service) ClearProfiles(ctx context.Context, stationID string, req ClearChargingProfileRequest) (types.ProfileStatus, error) {
	if err := validateStruct(req); err != nil {
		return types.ProfileStatusRejected, rejected("%v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.db.ListProfiles(ctx, stationID)
	if err != nil {
		return "", fmt.Errorf("failed to list profiles: %w", err)
	}
	cleared := 0
	for _, ip := range existing {
		if !req.matches(ip) {
			continue
		}
		if err := s.db.DeleteProfile(ctx, stationID, ip.Profile.ChargingProfileID); err != nil && !errors.Is(err, storage.ErrProfileNotFound) {
			return "", fmt.Errorf("failed to delete profile %d: %w", ip.Profile.ChargingProfileID, err)
		}
		cleared++
	}
	log.Ctx(ctx).InfoContext(ctx, "cleared charging profiles", slog.String("stationID", stationID), slog.Int("count", cleared))
	if cleared == 0 {
		return types.ProfileStatusUnknown, nil
	}
	return types.ProfileStatusAccepted, nil
}

// StartTransaction records a transaction starting on a connector. Relative
// profiles on that connector count from its start.
func (s *Service) StartTransaction(ctx context.Context, stationID string, req StartTransactionRequest) (types.Transaction, error) {
	if err := validateStruct(req); err != nil {
		return types.Transaction{}, rejected("%v", err)
	}
	settings, err := s.Settings(ctx, stationID)
	if err != nil {
		return types.Transaction{}, err
	}
	if req.ConnectorID > settings.ConnectorCount {
		return types.Transaction{}, rejected("connector %d does not exist", req.ConnectorID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	running, err := s.db.GetTransaction(ctx, stationID, req.ConnectorID)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("failed to get transaction: %w", err)
	}
	if running != nil {
		return types.Transaction{}, rejected("transaction %d is already running on connector %d", running.ID, req.ConnectorID)
	}

	started := req.Timestamp
	if started.IsZero() {
		started = s.now()
	}
	tx := types.Transaction{
		ID:          req.TransactionID,
		ConnectorID: req.ConnectorID,
		IDTag:       req.IDTag,
		StartedAt:   started.UTC().Truncate(time.Second),
	}
	if err := s.db.SetTransaction(ctx, stationID, tx); err != nil {
		return types.Transaction{}, fmt.Errorf("failed to store transaction: %w", err)
	}
	log.Ctx(ctx).InfoContext(ctx, "transaction started",
		slog.String("stationID", stationID),
		slog.Int("connectorID", tx.ConnectorID),
		slog.Int("transactionID", tx.ID),
	)
	return tx, nil
}

// StopTransaction ends a transaction and removes the TxProfiles installed
// for it.
func (s *Service) StopTransaction(ctx context.Context, stationID string, req StopTransactionRequest) error {
	if err := validateStruct(req); err != nil {
		return rejected("%v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.db.ListTransactions(ctx, stationID)
	if err != nil {
		return fmt.Errorf("failed to list transactions: %w", err)
	}
	idx := slices.IndexFunc(txs, func(tx types.Transaction) bool { return tx.ID == req.TransactionID })
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrNoTransaction, req.TransactionID)
	}
	tx := txs[idx]

	profiles, err := s.db.ListProfiles(ctx, stationID)
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}
	for _, ip := range profiles {
		if ip.ConnectorID != tx.ConnectorID || ip.Profile.ChargingProfilePurpose != types.PurposeTx {
			continue
		}
		if err := s.db.DeleteProfile(ctx, stationID, ip.Profile.ChargingProfileID); err != nil && !errors.Is(err, storage.ErrProfileNotFound) {
			return fmt.Errorf("failed to delete profile %d: %w", ip.Profile.ChargingProfileID, err)
		}
	}
	if err := s.db.DeleteTransaction(ctx, stationID, tx.ConnectorID); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	log.Ctx(ctx).InfoContext(ctx, "transaction stopped",
		slog.String("stationID", stationID),
		slog.Int("connectorID", tx.ConnectorID),
		slog.Int("transactionID", tx.ID),
	)
	return nil
}
