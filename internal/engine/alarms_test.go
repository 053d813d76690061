package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"irrigation-control/internal/engine"
	"irrigation-control/internal/models"
)

func faultRule() models.AlarmRule {
	return models.AlarmRule{
		Enabled:       true,
		RuleType:      models.RuleStatus,
		TriggerStatus: models.StatusFault,
		Severity:      models.SeverityCritical,
	}
}

func TestStatusRuleTriggersOnEdge(t *testing.T) {
	store := newTestStore(t)
	seedValve(store, "v1", "dev-1", 1)
	require.NoError(t, store.SetAlarmRule("v1", faultRule()))

	base := time.Now()
	_, err := store.ApplyStatus("v1", models.StatusFault, base)
	require.NoError(t, err)

	view, _ := store.GetActuator("v1")
	require.Len(t, view.Alarms, 1)
	require.Equal(t, models.SeverityCritical, view.Alarms[0].Severity)
	require.False(t, view.Alarms[0].Acknowledged)
	require.False(t, view.Alarms[0].Resolved)

	// Condition still true: no second alarm, this is the same episode.
	_, err = store.ApplyStatus("v1", models.StatusFault, base.Add(time.Second))
	require.NoError(t, err)
	view, _ = store.GetActuator("v1")
	require.Len(t, view.Alarms, 1)

	// Clears, then faults again: a fresh trigger edge, a fresh alarm.
	_, err = store.ApplyStatus("v1", models.StatusOff, base.Add(2*time.Second))
	require.NoError(t, err)
	_, err = store.ApplyStatus("v1", models.StatusFault, base.Add(3*time.Second))
	require.NoError(t, err)
	view, _ = store.GetActuator("v1")
	require.Len(t, view.Alarms, 2)

	// Clearing never auto-resolves what already fired.
	_, err = store.ApplyStatus("v1", models.StatusOff, base.Add(4*time.Second))
	require.NoError(t, err)
	view, _ = store.GetActuator("v1")
	for _, a := range view.Alarms {
		require.False(t, a.Resolved)
	}
}

func TestThresholdRuleAgainstTelemetry(t *testing.T) {
	store := newTestStore(t)
	seedValve(store, "v1", "dev-1", 1)
	require.NoError(t, store.SetAlarmRule("v1", models.AlarmRule{
		Enabled:   true,
		RuleType:  models.RuleThreshold,
		Metric:    "pressure",
		Operator:  models.OpGreater,
		Threshold: 4.0,
		Severity:  models.SeverityWarning,
	}))

	base := time.Now()
	_, err := store.ApplyTelemetry("dev-1", models.TelemetrySample{
		ReceivedAt: base,
		Metrics:    map[string]float64{"pressure": 3.5},
	})
	require.NoError(t, err)
	view, _ := store.GetActuator("v1")
	require.Empty(t, view.Alarms)

	_, err = store.ApplyTelemetry("dev-1", models.TelemetrySample{
		ReceivedAt: base.Add(time.Minute),
		Metrics:    map[string]float64{"pressure": 4.2},
	})
	require.NoError(t, err)
	view, _ = store.GetActuator("v1")
	require.Len(t, view.Alarms, 1)
	require.Equal(t, models.SeverityWarning, view.Alarms[0].Severity)

	// A sample missing the metric reads as predicate false.
	_, err = store.ApplyTelemetry("dev-1", models.TelemetrySample{
		ReceivedAt: base.Add(2 * time.Minute),
		Metrics:    map[string]float64{"battery": 3.6},
	})
	require.NoError(t, err)
	_, err = store.ApplyTelemetry("dev-1", models.TelemetrySample{
		ReceivedAt: base.Add(3 * time.Minute),
		Metrics:    map[string]float64{"pressure": 5.0},
	})
	require.NoError(t, err)
	view, _ = store.GetActuator("v1")
	require.Len(t, view.Alarms, 2)
}

func TestDisabledRuleNeverFires(t *testing.T) {
	store := newTestStore(t)
	seedValve(store, "v1", "dev-1", 1)
	rule := faultRule()
	rule.Enabled = false
	require.NoError(t, store.SetAlarmRule("v1", rule))

	_, err := store.ApplyStatus("v1", models.StatusFault, time.Now())
	require.NoError(t, err)
	view, _ := store.GetActuator("v1")
	require.Empty(t, view.Alarms)
}

func TestSetAlarmRuleValidation(t *testing.T) {
	store := newTestStore(t)
	seedValve(store, "v1", "dev-1", 1)

	cases := []models.AlarmRule{
		{Enabled: true, RuleType: "WEird", Severity: models.SeverityInfo},
		{Enabled: true, RuleType: models.RuleThreshold, Operator: models.OpGreater, Severity: models.SeverityInfo}, // no metric
		{Enabled: true, RuleType: models.RuleThreshold, Metric: "m", Operator: "~", Severity: models.SeverityInfo},
		{Enabled: true, RuleType: models.RuleStatus, TriggerStatus: models.StatusOn, Severity: models.SeverityInfo},
		{Enabled: true, RuleType: models.RuleStatus, TriggerStatus: models.StatusFault, Severity: "LOUD"},
	}
	for _, rule := range cases {
		err := store.SetAlarmRule("v1", rule)
		var vErr *engine.ValidationError
		require.ErrorAs(t, err, &vErr)
	}
}

func TestAcknowledgeIsSilentlyIdempotent(t *testing.T) {
	store := newTestStore(t)
	seedValve(store, "v1", "dev-1", 1)
	require.NoError(t, store.SetAlarmRule("v1", faultRule()))
	_, err := store.ApplyStatus("v1", models.StatusFault, time.Now())
	require.NoError(t, err)

	view, _ := store.GetActuator("v1")
	alarmID := view.Alarms[0].AlarmID

	require.NoError(t, store.Acknowledge("v1", alarmID))
	view, _ = store.GetActuator("v1")
	require.True(t, view.Alarms[0].Acknowledged)
	require.NotNil(t, view.Alarms[0].AcknowledgedAt)
	firstAck := *view.Alarms[0].AcknowledgedAt

	// Second acknowledge and unknown ids are silent no-ops.
	require.NoError(t, store.Acknowledge("v1", alarmID))
	require.NoError(t, store.Acknowledge("v1", "no-such-alarm"))
	view, _ = store.GetActuator("v1")
	require.Equal(t, firstAck, *view.Alarms[0].AcknowledgedAt)
}

func TestResolveAutoAcknowledges(t *testing.T) {
	store := newTestStore(t)
	seedValve(store, "v1", "dev-1", 1)
	require.NoError(t, store.SetAlarmRule("v1", faultRule()))
	_, err := store.ApplyStatus("v1", models.StatusFault, time.Now())
	require.NoError(t, err)

	view, _ := store.GetActuator("v1")
	alarmID := view.Alarms[0].AlarmID

	require.NoError(t, store.Resolve("v1", alarmID))
	view, _ = store.GetActuator("v1")
	a := view.Alarms[0]
	require.True(t, a.Resolved)
	require.True(t, a.Acknowledged, "a resolved alarm can never be unacknowledged")
	require.NotNil(t, a.ResolvedAt)
	require.NotNil(t, a.AcknowledgedAt)

	// RESOLVED is terminal.
	require.NoError(t, store.Resolve("v1", alarmID))
	view, _ = store.GetActuator("v1")
	require.Equal(t, *a.ResolvedAt, *view.Alarms[0].ResolvedAt)

	var nErr *engine.NotFoundError
	require.ErrorAs(t, store.Resolve("v1", "no-such-alarm"), &nErr)
}

func TestAcknowledgeAll(t *testing.T) {
	store := newTestStore(t)
	seedValve(store, "v1", "dev-1", 1)
	seedValve(store, "v2", "dev-2", 1)
	require.NoError(t, store.SetAlarmRule("v1", faultRule()))
	require.NoError(t, store.SetAlarmRule("v2", faultRule()))

	now := time.Now()
	_, err := store.ApplyStatus("v1", models.StatusFault, now)
	require.NoError(t, err)
	_, err = store.ApplyStatus("v2", models.StatusFault, now)
	require.NoError(t, err)

	// One alarm already resolved: not re-acknowledged by the sweep.
	view, _ := store.GetActuator("v2")
	require.NoError(t, store.Resolve("v2", view.Alarms[0].AlarmID))

	count := store.AcknowledgeAll()
	require.Equal(t, 1, count)

	for _, a := range store.ListAlarms(true) {
		require.True(t, a.Acknowledged)
	}
}

func TestListAlarmsFiltersResolved(t *testing.T) {
	store := newTestStore(t)
	seedValve(store, "v1", "dev-1", 1)
	require.NoError(t, store.SetAlarmRule("v1", faultRule()))

	base := time.Now()
	_, err := store.ApplyStatus("v1", models.StatusFault, base)
	require.NoError(t, err)
	_, err = store.ApplyStatus("v1", models.StatusOff, base.Add(time.Second))
	require.NoError(t, err)
	_, err = store.ApplyStatus("v1", models.StatusFault, base.Add(2*time.Second))
	require.NoError(t, err)

	open := store.ListAlarms(false)
	require.Len(t, open, 2)

	require.NoError(t, store.Resolve("v1", open[1].AlarmID))
	require.Len(t, store.ListAlarms(false), 1)
	require.Len(t, store.ListAlarms(true), 2)
}
