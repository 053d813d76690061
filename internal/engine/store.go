package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"irrigation-control/internal/logging"
	"irrigation-control/internal/models"
)

// Repository persists store state. All runtime writes are best-effort
// write-through: a failure is logged and the in-memory state stays
// authoritative.
type Repository interface {
	SaveActuatorState(ctx context.Context, a models.Actuator) error
	SaveAlarm(ctx context.Context, a models.Alarm) error
	SaveAlarmRule(ctx context.Context, actuatorID string, r models.AlarmRule) error
	SaveSchedule(ctx context.Context, sch models.Schedule) error
	DeleteSchedule(ctx context.Context, scheduleID string) error
}

// Broadcaster pushes accepted state changes to the supervisory UI.
type Broadcaster interface {
	Publish(ev models.Event)
}

// Notifier delivers alarm notifications for rules with notify enabled.
type Notifier interface {
	Notify(ctx context.Context, alarm models.Alarm, actuatorName string) error
}

// record is an actuator plus the runtime bookkeeping the engine needs.
// Only ever touched inside the owning device's actor loop.
type record struct {
	models.Actuator
	rule          *models.AlarmRule
	alarms        []models.Alarm
	schedules     []models.Schedule
	pending       *pendingCommand
	lastPredicate bool
}

// device serializes every write to its actuators through one goroutine,
// making the ordering and rollback rules well-defined without locks.
type device struct {
	id        string
	ops       chan func()
	quit      chan struct{}
	actuators map[string]*record
	order     []string
	telemetry *models.TelemetrySample
}

func (d *device) run(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-d.quit:
			return
		case fn := <-d.ops:
			fn()
		}
	}
}

// do runs fn inside the device actor and waits for it to complete.
func (d *device) do(fn func()) {
	done := make(chan struct{})
	d.ops <- func() {
		defer close(done)
		fn()
	}
	<-done
}

// Store is the arena of per-device actuator records. Cross-device
// operations run in parallel; writes to one device are serialized.
type Store struct {
	mu          sync.RWMutex
	devices     map[string]*device
	byActuator  map[string]*device
	bySchedule  map[string]*device
	repo        Repository
	events      Broadcaster
	notifier    Notifier
	logger      *logging.Logger
	wg          sync.WaitGroup
	persistWait time.Duration
}

// NewStore constructs an empty store. repo, events and notifier may be
// nil; the corresponding side effects are skipped.
func NewStore(repo Repository, events Broadcaster, notifier Notifier, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		devices:     make(map[string]*device),
		byActuator:  make(map[string]*device),
		bySchedule:  make(map[string]*device),
		repo:        repo,
		events:      events,
		notifier:    notifier,
		logger:      logger,
		persistWait: 3 * time.Second,
	}
}

// ActuatorSeed registers an actuator, typically from the fleet loaded
// at startup.
type ActuatorSeed struct {
	ID               string
	DeviceID         string
	Channel          int
	Name             string
	Status           models.ActuatorStatus
	Mode             models.ActuatorMode
	CycleCount       int64
	StatusObservedAt time.Time
	Rule             *models.AlarmRule
	Alarms           []models.Alarm
	Schedules        []models.Schedule
}

// RegisterActuator adds an actuator record, spawning the device actor
// on first use.
func (s *Store) RegisterActuator(seed ActuatorSeed) {
	dev := s.deviceByID(seed.DeviceID, true)

	s.mu.Lock()
	s.byActuator[seed.ID] = dev
	for _, sch := range seed.Schedules {
		s.bySchedule[sch.ScheduleID] = dev
	}
	s.mu.Unlock()

	dev.do(func() {
		status := seed.Status
		if status == "" {
			status = models.StatusOff
		}
		mode := seed.Mode
		if mode == "" {
			mode = models.ModeManual
		}
		rec := &record{
			Actuator: models.Actuator{
				ID:               seed.ID,
				DeviceID:         seed.DeviceID,
				Channel:          seed.Channel,
				Name:             seed.Name,
				Status:           status,
				Mode:             mode,
				CycleCount:       seed.CycleCount,
				StatusObservedAt: seed.StatusObservedAt,
			},
			rule:      seed.Rule,
			alarms:    append([]models.Alarm(nil), seed.Alarms...),
			schedules: append([]models.Schedule(nil), seed.Schedules...),
		}
		if _, exists := dev.actuators[seed.ID]; !exists {
			dev.order = append(dev.order, seed.ID)
		}
		dev.actuators[seed.ID] = rec
	})
}

// Close stops every device actor.
func (s *Store) Close() {
	s.mu.Lock()
	for _, dev := range s.devices {
		close(dev.quit)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Store) deviceByID(deviceID string, create bool) *device {
	s.mu.RLock()
	dev := s.devices[deviceID]
	s.mu.RUnlock()
	if dev != nil || !create {
		return dev
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if dev = s.devices[deviceID]; dev != nil {
		return dev
	}
	dev = &device{
		id:        deviceID,
		ops:       make(chan func(), 16),
		quit:      make(chan struct{}),
		actuators: make(map[string]*record),
	}
	s.devices[deviceID] = dev
	s.wg.Add(1)
	go dev.run(&s.wg)
	return dev
}

func (s *Store) deviceForActuator(actuatorID string) *device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byActuator[actuatorID]
}

func (s *Store) deviceForSchedule(scheduleID string) *device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bySchedule[scheduleID]
}

// viewOf snapshots a record. Must run inside the owning actor.
func viewOf(rec *record) models.ActuatorView {
	v := models.ActuatorView{Actuator: rec.Actuator}
	if rec.rule != nil {
		rule := *rec.rule
		v.AlarmRule = &rule
	}
	if rec.Actuator.LastCommand != nil {
		lc := *rec.Actuator.LastCommand
		v.LastCommand = &lc
	}
	v.Alarms = append([]models.Alarm(nil), rec.alarms...)
	v.Schedules = append([]models.Schedule(nil), rec.schedules...)
	return v
}

// GetActuator returns a snapshot of one actuator.
func (s *Store) GetActuator(actuatorID string) (models.ActuatorView, error) {
	dev := s.deviceForActuator(actuatorID)
	if dev == nil {
		return models.ActuatorView{}, &NotFoundError{Kind: "actuator", ID: actuatorID}
	}
	var view models.ActuatorView
	dev.do(func() {
		view = viewOf(dev.actuators[actuatorID])
	})
	return view, nil
}

// GetDevice returns a snapshot of one device with all its actuators.
func (s *Store) GetDevice(deviceID string) (models.DeviceView, error) {
	dev := s.deviceByID(deviceID, false)
	if dev == nil {
		return models.DeviceView{}, &NotFoundError{Kind: "device", ID: deviceID}
	}
	var view models.DeviceView
	dev.do(func() {
		view = deviceViewOf(dev)
	})
	return view, nil
}

// deviceViewOf snapshots a device. Must run inside the actor.
func deviceViewOf(dev *device) models.DeviceView {
	view := models.DeviceView{DeviceID: dev.id}
	for _, id := range dev.order {
		view.Actuators = append(view.Actuators, viewOf(dev.actuators[id]))
	}
	view.Mode = deviceModeOf(dev)
	if dev.telemetry != nil {
		sample := *dev.telemetry
		view.Telemetry = &sample
	}
	return view
}

// ListDevices returns snapshots of every device, sorted by id.
func (s *Store) ListDevices() []models.DeviceView {
	s.mu.RLock()
	devs := make([]*device, 0, len(s.devices))
	for _, dev := range s.devices {
		devs = append(devs, dev)
	}
	s.mu.RUnlock()

	sort.Slice(devs, func(i, j int) bool { return devs[i].id < devs[j].id })

	views := make([]models.DeviceView, 0, len(devs))
	for _, dev := range devs {
		var view models.DeviceView
		dev.do(func() {
			view = deviceViewOf(dev)
		})
		views = append(views, view)
	}
	return views
}

// ListAlarms returns alarms across the fleet, newest first. Resolved
// alarms are included only when includeResolved is set.
func (s *Store) ListAlarms(includeResolved bool) []models.Alarm {
	var out []models.Alarm
	for _, view := range s.ListDevices() {
		for _, act := range view.Actuators {
			for _, a := range act.Alarms {
				if a.Resolved && !includeResolved {
					continue
				}
				out = append(out, a)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// persistActuator writes actuator state through to the repository.
// Must run inside the actor; failures are logged, never surfaced.
func (s *Store) persistActuator(rec *record) {
	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.persistWait)
	defer cancel()
	if err := s.repo.SaveActuatorState(ctx, rec.Actuator); err != nil {
		s.logger.Warnf("persist actuator %s failed: %v", rec.ID, err)
	}
}

// publishActuator broadcasts an actuator snapshot to the UI hub.
func (s *Store) publishActuator(dev *device, rec *record) {
	if s.events == nil {
		return
	}
	view := viewOf(rec)
	s.events.Publish(models.Event{
		Type:     models.EventActuator,
		DeviceID: dev.id,
		Actuator: &view,
	})
}
