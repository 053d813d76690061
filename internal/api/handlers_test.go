package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"irrigation-control/internal/api"
	"irrigation-control/internal/config"
	"irrigation-control/internal/engine"
	"irrigation-control/internal/logging"
	"irrigation-control/internal/models"
)

type scriptedTransport struct {
	err error
}

func (s *scriptedTransport) Send(ctx context.Context, deviceID string, channel int, action models.CommandAction) error {
	return s.err
}

func newTestRouter(t *testing.T, transport engine.Transport) (*gin.Engine, *engine.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logging.NewNop()
	store := engine.NewStore(nil, nil, nil, logger)
	t.Cleanup(store.Close)
	store.RegisterActuator(engine.ActuatorSeed{ID: "v1", DeviceID: "dev-1", Channel: 1, Name: "North field"})

	dispatcher := engine.NewDispatcher(store, transport, time.Second, logger)
	handler := api.NewHandler(store, dispatcher, logger)

	var cfg config.Config
	cfg.API.BasePath = "/api/v0"
	return api.NewRouter(handler, api.NewHub(logger), logger, cfg), store
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDispatchCommandEndpoint(t *testing.T) {
	r, store := newTestRouter(t, &scriptedTransport{})

	w := doJSON(r, http.MethodPost, "/api/v0/actuators/v1/commands", `{"action":"ON","issued_by":"alice"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var ack models.CommandAck
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	require.Equal(t, models.StatusOn, ack.Status)
	require.Equal(t, int64(1), ack.CycleCount)

	view, err := store.GetActuator("v1")
	require.NoError(t, err)
	require.Equal(t, models.StatusOn, view.Status)
}

func TestDispatchCommandErrorMapping(t *testing.T) {
	failing := &scriptedTransport{err: errors.New("downlink rejected")}
	r, store := newTestRouter(t, failing)

	// Transport failure maps to 502 and the optimistic write reverts.
	w := doJSON(r, http.MethodPost, "/api/v0/actuators/v1/commands", `{"action":"ON"}`)
	require.Equal(t, http.StatusBadGateway, w.Code)
	view, _ := store.GetActuator("v1")
	require.Equal(t, models.StatusOff, view.Status)

	// Unknown actuator maps to 404.
	w = doJSON(r, http.MethodPost, "/api/v0/actuators/ghost/commands", `{"action":"ON"}`)
	require.Equal(t, http.StatusNotFound, w.Code)

	// AUTO mode rejection maps to 400.
	require.NoError(t, store.SetActuatorMode("v1", models.ModeAuto))
	w = doJSON(r, http.MethodPost, "/api/v0/actuators/v1/commands", `{"action":"OFF"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleEndpoints(t *testing.T) {
	r, _ := newTestRouter(t, &scriptedTransport{})

	start := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	end := time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339)
	w := doJSON(r, http.MethodPost, "/api/v0/actuators/v1/schedules",
		`{"enabled":true,"action":"ON","start_at":"`+start+`","end_at":"`+end+`"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Schedule models.Schedule `json:"schedule"`
		Overlap  bool            `json:"overlap"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.False(t, created.Overlap)
	require.NotEmpty(t, created.Schedule.ScheduleID)

	// Malformed window: rejected, nothing stored.
	w = doJSON(r, http.MethodPost, "/api/v0/actuators/v1/schedules",
		`{"enabled":true,"action":"ON","start_at":"`+end+`","end_at":"`+start+`"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v0/actuators/v1/schedule-status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status models.ScheduleStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	require.Equal(t, models.ScheduleUpcoming, status.State)
	require.False(t, status.Authoritative)

	w = doJSON(r, http.MethodDelete, "/api/v0/schedules/"+created.Schedule.ScheduleID, "")
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestAlarmEndpoints(t *testing.T) {
	r, store := newTestRouter(t, &scriptedTransport{})

	w := doJSON(r, http.MethodPut, "/api/v0/actuators/v1/alarm-rule",
		`{"enabled":true,"rule_type":"STATUS","trigger_status":"FAULT","severity":"CRITICAL","notify":false}`)
	require.Equal(t, http.StatusOK, w.Code)

	_, err := store.ApplyStatus("v1", models.StatusFault, time.Now())
	require.NoError(t, err)

	w = doJSON(r, http.MethodGet, "/api/v0/alarms", "")
	require.Equal(t, http.StatusOK, w.Code)
	var alarms []models.Alarm
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &alarms))
	require.Len(t, alarms, 1)

	w = doJSON(r, http.MethodPost, "/api/v0/actuators/v1/alarms/"+alarms[0].AlarmID+"/resolve", "")
	require.Equal(t, http.StatusOK, w.Code)

	view, _ := store.GetActuator("v1")
	require.True(t, view.Alarms[0].Resolved)
	require.True(t, view.Alarms[0].Acknowledged)

	w = doJSON(r, http.MethodPost, "/api/v0/alarms/acknowledge-all", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestListActuatorAlarmsNewestFirst(t *testing.T) {
	r, store := newTestRouter(t, &scriptedTransport{})

	w := doJSON(r, http.MethodPut, "/api/v0/actuators/v1/alarm-rule",
		`{"enabled":true,"rule_type":"STATUS","trigger_status":"FAULT","severity":"CRITICAL","notify":false}`)
	require.Equal(t, http.StatusOK, w.Code)

	base := time.Now()
	_, err := store.ApplyStatus("v1", models.StatusFault, base)
	require.NoError(t, err)
	first := store.ListAlarms(true)
	require.Len(t, first, 1)

	// Clear and re-trigger the rule so a second, newer alarm exists.
	time.Sleep(2 * time.Millisecond)
	_, err = store.ApplyStatus("v1", models.StatusOff, base.Add(time.Second))
	require.NoError(t, err)
	_, err = store.ApplyStatus("v1", models.StatusFault, base.Add(2*time.Second))
	require.NoError(t, err)

	w = doJSON(r, http.MethodGet, "/api/v0/actuators/v1/alarms", "")
	require.Equal(t, http.StatusOK, w.Code)
	var alarms []models.Alarm
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &alarms))
	require.Len(t, alarms, 2)
	require.Equal(t, first[0].AlarmID, alarms[1].AlarmID, "the older alarm must come last")
	require.False(t, alarms[0].Timestamp.Before(alarms[1].Timestamp))
}

func TestDeviceModeEndpoint(t *testing.T) {
	r, store := newTestRouter(t, &scriptedTransport{})

	w := doJSON(r, http.MethodPut, "/api/v0/devices/dev-1/mode", `{"mode":"AUTO"}`)
	require.Equal(t, http.StatusOK, w.Code)

	view, err := store.GetDevice("dev-1")
	require.NoError(t, err)
	require.Equal(t, models.ActuatorMode("AUTO"), view.Mode)

	w = doJSON(r, http.MethodPut, "/api/v0/devices/dev-1/mode", `{"mode":"HYBRID"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
