// Package charger applies limits to the connectors of a charging station.
package charger

import (
	"context"
	"fmt"
	"sync"

	"github.com/levenlabs/go-lflag"

	"github.com/jameshartig/chargeplan/pkg/types"
)

// System defines the interface for interacting with a charging station.
type System interface {
	// GetStatus returns the current status of a connector.
	GetStatus(ctx context.Context, connectorID int) (types.ConnectorStatus, error)

	// SetLimit makes the connector enforce limit until the next call.
	SetLimit(ctx context.Context, connectorID int, limit types.AppliedLimit) error
}

// Configured sets up the charger provider Map from flags.
func Configured() *Map {
	provider := lflag.String("charger-provider", "simulated", "How limits reach the chargers (simulated, gateway)")
	gatewayURL := lflag.String("charger-gateway-url", "", "Base URL of the charging gateway API")
	gatewayToken := lflag.String("charger-gateway-token", "", "Bearer token for the charging gateway API")

	m := NewMap(func(string) System { return NewSimulated() })
	lflag.Do(func() {
		switch *provider {
		case "simulated":
		case "gateway":
			if *gatewayURL == "" {
				panic("charger-gateway-url is required for the gateway provider")
			}
			m.newSystem = func(stationID string) System {
				return newGateway(*gatewayURL, *gatewayToken, stationID)
			}
		default:
			panic(fmt.Sprintf("unknown charger provider: %s", *provider))
		}
	})
	return m
}

// Map manages the systems of multiple stations.
type Map struct {
	mu        sync.Mutex
	systems   map[string]System
	newSystem func(stationID string) System
}

// NewMap creates a new Map that builds systems for unknown stations with
// newSystem.
func NewMap(newSystem func(stationID string) System) *Map {
	return &Map{
		systems:   make(map[string]System),
		newSystem: newSystem,
	}
}

// Station returns the system for the given stationID.
// If the stationID is new, it creates a new system instance.
func (m *Map) Station(stationID string) System {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sys, ok := m.systems[stationID]; ok {
		return sys
	}
	sys := m.newSystem(stationID)
	m.systems[stationID] = sys
	return sys
}

// SetSystem sets the system for a specific station. This is primarily used for testing.
func (m *Map) SetSystem(stationID string, sys System) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.systems[stationID] = sys
}
