package charger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jameshartig/chargeplan/pkg/types"
)

func TestMap(t *testing.T) {
	created := 0
	m := NewMap(func(string) System {
		created++
		return NewSimulated()
	})

	a := m.Station("a")
	assert.Same(t, a, m.Station("a"))
	assert.NotSame(t, a, m.Station("b"))
	assert.Equal(t, 2, created)

	sim := NewSimulated()
	m.SetSystem("c", sim)
	assert.Same(t, sim, m.Station("c"))
	assert.Equal(t, 2, created)
}

func TestSimulated(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sim.now = func() time.Time { return now }

	status, err := sim.GetStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, types.ConnectorStatus{
		Timestamp:   now,
		ConnectorID: 1,
		Limit:       types.AppliedLimit{Unlimited: true},
		Online:      true,
	}, status)

	limit := types.AppliedLimit{Limit: 16, RateUnit: types.ChargingRateUnitAmperes}
	require.NoError(t, sim.SetLimit(ctx, 1, limit))
	status, err = sim.GetStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, limit, status.Limit)

	assert.Error(t, sim.SetLimit(ctx, 1, types.AppliedLimit{Limit: -2}))

	sim.SetOffline(2, true)
	assert.Error(t, sim.SetLimit(ctx, 2, limit))
	status, err = sim.GetStatus(ctx, 2)
	require.NoError(t, err)
	assert.False(t, status.Online)
}

func TestGateway(t *testing.T) {
	ctx := context.Background()

	t.Run("GetStatus", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/api/stations/st1/connectors/2", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"result": map[string]any{
					"timestamp": "2024-03-01T12:00:00Z",
					"online":    true,
					"limit":     map[string]any{"limit": 10, "rateUnit": "A"},
				},
			})
		}))
		defer ts.Close()

		g := newGateway(ts.URL+"/api", "secret", "st1")
		g.client = ts.Client()

		status, err := g.GetStatus(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, status.ConnectorID)
		assert.True(t, status.Online)
		assert.Equal(t, types.AppliedLimit{Limit: 10, RateUnit: types.ChargingRateUnitAmperes}, status.Limit)
	})

	t.Run("SetLimit retries unavailable gateway", func(t *testing.T) {
		calls := 0
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/stations/st1/connectors/1/limit", r.URL.Path)
			var limit types.AppliedLimit
			require.NoError(t, json.NewDecoder(r.Body).Decode(&limit))
			assert.Equal(t, 7.5, limit.Limit)
			if calls == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		}))
		defer ts.Close()

		g := newGateway(ts.URL, "", "st1")
		g.client = ts.Client()

		require.NoError(t, g.SetLimit(ctx, 1, types.AppliedLimit{Limit: 7.5, RateUnit: types.ChargingRateUnitAmperes}))
		assert.Equal(t, 2, calls)
	})

	t.Run("gateway error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "station offline"})
		}))
		defer ts.Close()

		g := newGateway(ts.URL, "", "st1")
		g.client = ts.Client()

		err := g.SetLimit(ctx, 1, types.AppliedLimit{Unlimited: true})
		assert.ErrorContains(t, err, "station offline")
	})

	t.Run("bad status", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusForbidden)
		}))
		defer ts.Close()

		g := newGateway(ts.URL, "", "st1")
		g.client = ts.Client()

		_, err := g.GetStatus(ctx, 1)
		assert.ErrorContains(t, err, "status 403")
	})
}
