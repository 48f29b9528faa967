package charger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jameshartig/chargeplan/pkg/types"
)

// Simulated is an in-memory charger. Connectors start unlimited and enforce
// whatever limit was set last.
type Simulated struct {
	mu      sync.Mutex
	limits  map[int]types.AppliedLimit
	offline map[int]bool
	now     func() time.Time
}

// NewSimulated returns a Simulated charger.
func NewSimulated() *Simulated {
	return &Simulated{
		limits:  make(map[int]types.AppliedLimit),
		offline: make(map[int]bool),
		now:     time.Now,
	}
}

// SetOffline marks a connector as unreachable. Offline connectors reject new
// limits.
func (s *Simulated) SetOffline(connectorID int, offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline[connectorID] = offline
}

// GetStatus returns the limit the connector currently enforces.
func (s *Simulated) GetStatus(ctx context.Context, connectorID int) (types.ConnectorStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit, ok := s.limits[connectorID]
	if !ok {
		limit = types.AppliedLimit{Unlimited: true}
	}
	return types.ConnectorStatus{
		Timestamp:   s.now(),
		ConnectorID: connectorID,
		Limit:       limit,
		Online:      !s.offline[connectorID],
	}, nil
}

// SetLimit stores the limit for the connector.
func (s *Simulated) SetLimit(ctx context.Context, connectorID int, limit types.AppliedLimit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.offline[connectorID] {
		return fmt.Errorf("connector %d is offline", connectorID)
	}
	if !limit.Unlimited && limit.Limit < 0 {
		return fmt.Errorf("invalid limit: %v", limit.Limit)
	}
	s.limits[connectorID] = limit
	return nil
}
