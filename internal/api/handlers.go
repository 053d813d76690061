package api

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"irrigation-control/internal/engine"
	"irrigation-control/internal/logging"
	"irrigation-control/internal/models"
)

type Handler struct {
	store      *engine.Store
	dispatcher *engine.Dispatcher
	logger     *logging.Logger
}

func NewHandler(store *engine.Store, dispatcher *engine.Dispatcher, logger *logging.Logger) *Handler {
	return &Handler{store: store, dispatcher: dispatcher, logger: logger}
}

// respondError maps the engine's error taxonomy onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	var (
		vErr *engine.ValidationError
		nErr *engine.NotFoundError
		dErr *engine.DispatchError
	)
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.As(err, &nErr):
		c.JSON(http.StatusNotFound, gin.H{"error": nErr.Error()})
	case errors.As(err, &dErr):
		status := http.StatusBadGateway
		if dErr.TimedOut {
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, gin.H{"error": dErr.Error(), "timed_out": dErr.TimedOut})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// DispatchCommand issues an actuation command and blocks until it
// confirms, fails or times out. A failure means the optimistic status
// transition has already been rolled back.
func (h *Handler) DispatchCommand(c *gin.Context) {
	var req struct {
		Action   models.CommandAction `json:"action" binding:"required"`
		IssuedBy string               `json:"issued_by"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ack, err := h.dispatcher.Dispatch(c.Request.Context(), c.Param("id"), req.Action, req.IssuedBy)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

func (h *Handler) SetActuatorMode(c *gin.Context) {
	var req struct {
		Mode models.ActuatorMode `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.SetActuatorMode(c.Param("id"), req.Mode); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": req.Mode})
}

// SetDeviceMode fans a mode write out to every actuator of the device.
func (h *Handler) SetDeviceMode(c *gin.Context) {
	var req struct {
		Mode models.ActuatorMode `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	applied, err := h.store.SetDeviceMode(c.Param("deviceId"), req.Mode)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": req.Mode, "actuators": applied})
}

func (h *Handler) SetAlarmRule(c *gin.Context) {
	var rule models.AlarmRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.SetAlarmRule(c.Param("id"), rule); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *Handler) CreateSchedule(c *gin.Context) {
	var sch models.Schedule
	if err := c.ShouldBindJSON(&sch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, overlap, err := h.store.CreateSchedule(c.Param("id"), sch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"schedule": created, "overlap": overlap})
}

func (h *Handler) UpdateSchedule(c *gin.Context) {
	var sch models.Schedule
	if err := c.ShouldBindJSON(&sch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, overlap, err := h.store.UpdateSchedule(c.Param("scheduleId"), sch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedule": updated, "overlap": overlap})
}

func (h *Handler) DeleteSchedule(c *gin.Context) {
	if err := h.store.DeleteSchedule(c.Param("scheduleId")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ScheduleStatus derives the current/next-run status for an actuator.
// The scheduler executor computes the same answer from the same data.
func (h *Handler) ScheduleStatus(c *gin.Context) {
	status, err := h.store.ScheduleStatusFor(c.Param("id"), time.Now())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) AcknowledgeAlarm(c *gin.Context) {
	if err := h.store.Acknowledge(c.Param("id"), c.Param("alarmId")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true})
}

func (h *Handler) ResolveAlarm(c *gin.Context) {
	if err := h.store.Resolve(c.Param("id"), c.Param("alarmId")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resolved": true})
}

func (h *Handler) AcknowledgeAllAlarms(c *gin.Context) {
	count := h.store.AcknowledgeAll()
	c.JSON(http.StatusOK, gin.H{"acknowledged": count})
}

func (h *Handler) ListDevices(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.ListDevices())
}

func (h *Handler) GetDevice(c *gin.Context) {
	view, err := h.store.GetDevice(c.Param("deviceId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) GetActuator(c *gin.Context) {
	view, err := h.store.GetActuator(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) ListActuatorAlarms(c *gin.Context) {
	view, err := h.store.GetActuator(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	includeResolved := c.Query("include_resolved") == "true"
	alarms := make([]models.Alarm, 0, len(view.Alarms))
	for _, a := range view.Alarms {
		if a.Resolved && !includeResolved {
			continue
		}
		alarms = append(alarms, a)
	}
	sort.Slice(alarms, func(i, j int) bool {
		return alarms[i].Timestamp.After(alarms[j].Timestamp)
	})
	c.JSON(http.StatusOK, alarms)
}

func (h *Handler) ListAlarms(c *gin.Context) {
	includeResolved := c.Query("include_resolved") == "true"
	c.JSON(http.StatusOK, h.store.ListAlarms(includeResolved))
}
