package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jameshartig/chargeplan/pkg/composite"
	"github.com/jameshartig/chargeplan/pkg/smartcharging"
	"github.com/jameshartig/chargeplan/pkg/storage"
	"github.com/jameshartig/chargeplan/pkg/types"
)

func TestErrorCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, errorCode(smartcharging.ErrRejected))
	assert.Equal(t, http.StatusUnprocessableEntity, errorCode(composite.ErrMalformedSchedule))
	assert.Equal(t, http.StatusUnprocessableEntity, errorCode(composite.ErrUnboundedRecurrence))
	assert.Equal(t, http.StatusUnprocessableEntity, errorCode(composite.ErrUnitMismatch))
	assert.Equal(t, http.StatusNotFound, errorCode(storage.ErrStationNotFound))
	assert.Equal(t, http.StatusNotFound, errorCode(smartcharging.ErrNoTransaction))
	assert.Equal(t, http.StatusInternalServerError, errorCode(errors.New("boom")))
}

func TestHandleGetComposite(t *testing.T) {
	t.Run("Accepted", func(t *testing.T) {
		db := &mockStorage{}
		srv := newTestServer(t, db)
		db.On("GetSettings", mock.Anything, "st1").Return(testSettings(), types.CurrentSettingsVersion, nil)
		db.On("ListProfiles", mock.Anything, "st1").Return([]types.InstalledProfile{
			{ConnectorID: 1, Profile: relativeProfile(1, 16, 8)},
		}, nil)
		db.On("GetTransaction", mock.Anything, "st1", 1).Return(nil, nil)

		req := withStation(httptest.NewRequest("GET", "/api/composite?connectorId=1&duration=900", nil), "st1")
		w := httptest.NewRecorder()
		srv.handleGetComposite(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

		var resp smartcharging.GetCompositeScheduleResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, types.ProfileStatusAccepted, resp.Status)
		require.NotNil(t, resp.ConnectorID)
		assert.Equal(t, 1, *resp.ConnectorID)
		require.NotNil(t, resp.ChargingSchedule)
		assert.Equal(t, 900, resp.ChargingSchedule.Duration)
		assert.Equal(t, types.ChargingRateUnitAmperes, resp.ChargingSchedule.ChargingRateUnit)
		require.Len(t, resp.ChargingSchedule.ChargingSchedulePeriod, 2)
		assert.Equal(t, 0, resp.ChargingSchedule.ChargingSchedulePeriod[0].StartPeriod)
		assert.Equal(t, 16.0, resp.ChargingSchedule.ChargingSchedulePeriod[0].Limit)
		assert.Equal(t, 600, resp.ChargingSchedule.ChargingSchedulePeriod[1].StartPeriod)
		assert.Equal(t, 8.0, resp.ChargingSchedule.ChargingSchedulePeriod[1].Limit)
		require.NotNil(t, resp.ScheduleStart)
		assert.True(t, resp.ScheduleStart.Equal(resp.ChargingSchedule.StartSchedule))
	})

	t.Run("Gap Marked As No Limit", func(t *testing.T) {
		db := &mockStorage{}
		srv := newTestServer(t, db)
		db.On("GetSettings", mock.Anything, "st1").Return(testSettings(), types.CurrentSettingsVersion, nil)
		db.On("ListProfiles", mock.Anything, "st1").Return([]types.InstalledProfile{
			{ConnectorID: 1, Profile: relativeProfile(1, 16, 0)},
		}, nil)
		db.On("GetTransaction", mock.Anything, "st1", 1).Return(nil, nil)

		req := withStation(httptest.NewRequest("GET", "/api/composite?connectorId=1&duration=1800", nil), "st1")
		w := httptest.NewRecorder()
		srv.handleGetComposite(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp smartcharging.GetCompositeScheduleResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.NotNil(t, resp.ChargingSchedule)
		assert.Equal(t, []types.ChargingSchedulePeriod{
			{StartPeriod: 0, Limit: 16},
			{StartPeriod: 600, Limit: 0},
			{StartPeriod: 1200, Limit: types.NoLimit},
		}, resp.ChargingSchedule.ChargingSchedulePeriod)
	})

	t.Run("Nothing Applies", func(t *testing.T) {
		db := &mockStorage{}
		srv := newTestServer(t, db)
		db.On("GetSettings", mock.Anything, "st1").Return(testSettings(), types.CurrentSettingsVersion, nil)
		db.On("ListProfiles", mock.Anything, "st1").Return([]types.InstalledProfile{}, nil)
		db.On("GetTransaction", mock.Anything, "st1", 2).Return(nil, nil)

		req := withStation(httptest.NewRequest("GET", "/api/composite?connectorId=2&duration=60", nil), "st1")
		w := httptest.NewRecorder()
		srv.handleGetComposite(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp smartcharging.GetCompositeScheduleResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, types.ProfileStatusAccepted, resp.Status)
		require.NotNil(t, resp.ChargingSchedule)
		assert.NotNil(t, resp.ChargingSchedule.ChargingSchedulePeriod)
		assert.Empty(t, resp.ChargingSchedule.ChargingSchedulePeriod)
	})

	t.Run("Duration Too Long", func(t *testing.T) {
		db := &mockStorage{}
		srv := newTestServer(t, db)

		req := withStation(httptest.NewRequest("GET", "/api/composite?connectorId=1&duration=999999", nil), "st1")
		w := httptest.NewRecorder()
		srv.handleGetComposite(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp smartcharging.GetCompositeScheduleResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, types.ProfileStatusRejected, resp.Status)
		assert.NotEmpty(t, resp.Error)
		db.AssertNotCalled(t, "GetSettings", mock.Anything, mock.Anything)
	})

	t.Run("Invalid Duration", func(t *testing.T) {
		srv := newTestServer(t, &mockStorage{})

		req := withStation(httptest.NewRequest("GET", "/api/composite?connectorId=1&duration=soon", nil), "st1")
		w := httptest.NewRecorder()
		srv.handleGetComposite(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid duration")
	})

	t.Run("Unknown Station", func(t *testing.T) {
		db := &mockStorage{}
		srv := newTestServer(t, db)
		db.On("GetSettings", mock.Anything, "missing").Return(types.StationSettings{}, 0, storage.ErrStationNotFound)

		req := withStation(httptest.NewRequest("GET", "/api/composite?connectorId=1&duration=60", nil), "missing")
		w := httptest.NewRecorder()
		srv.handleGetComposite(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Storage Failure", func(t *testing.T) {
		db := &mockStorage{}
		srv := newTestServer(t, db)
		db.On("GetSettings", mock.Anything, "st1").Return(testSettings(), types.CurrentSettingsVersion, nil)
		db.On("ListProfiles", mock.Anything, "st1").Return([]types.InstalledProfile(nil), errors.New("db down"))

		req := withStation(httptest.NewRequest("GET", "/api/composite?connectorId=0&duration=60", nil), "st1")
		w := httptest.NewRecorder()
		srv.handleGetComposite(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "db down")
	})
}

func TestHandleGetPlan(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		db := &mockStorage{}
		srv := newTestServer(t, db)
		settings := testSettings()
		settings.DefaultLimit = 6
		db.On("GetSettings", mock.Anything, "st1").Return(settings, types.CurrentSettingsVersion, nil)
		db.On("ListProfiles", mock.Anything, "st1").Return([]types.InstalledProfile{
			{ConnectorID: 1, Profile: relativeProfile(1, 16, 8)},
		}, nil)
		db.On("GetTransaction", mock.Anything, "st1", 1).Return(nil, nil)

		req := withStation(httptest.NewRequest("GET", "/api/plan?connectorId=1", nil), "st1")
		w := httptest.NewRecorder()
		srv.handleGetPlan(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp planResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

		assert.True(t, resp.Schedule.StartSchedule.Equal(testNow))
		assert.Equal(t, 3600, resp.Schedule.Duration)
		require.Len(t, resp.Plan, 3)
		assert.Equal(t, 16.0, resp.Plan[0].Limit.Limit)
		assert.Equal(t, types.ActionReasonComposite, resp.Plan[0].Reason)
		assert.Equal(t, 8.0, resp.Plan[1].Limit.Limit)
		assert.Equal(t, 6.0, resp.Plan[2].Limit.Limit)
		assert.Equal(t, types.ActionReasonDefaultLimit, resp.Plan[2].Reason)
		assert.True(t, resp.Plan[2].End.Equal(testNow.Add(time.Hour)))
	})

	t.Run("Unknown Connector", func(t *testing.T) {
		db := &mockStorage{}
		srv := newTestServer(t, db)
		db.On("GetSettings", mock.Anything, "st1").Return(testSettings(), types.CurrentSettingsVersion, nil)

		req := withStation(httptest.NewRequest("GET", "/api/plan?connectorId=3", nil), "st1")
		w := httptest.NewRecorder()
		srv.handleGetPlan(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		db.AssertNotCalled(t, "ListProfiles", mock.Anything, mock.Anything)
	})

	t.Run("Invalid Connector", func(t *testing.T) {
		srv := newTestServer(t, &mockStorage{})

		req := withStation(httptest.NewRequest("GET", "/api/plan?connectorId=0", nil), "st1")
		w := httptest.NewRecorder()
		srv.handleGetPlan(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
