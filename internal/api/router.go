package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"irrigation-control/internal/config"
	"irrigation-control/internal/logging"
)

func NewRouter(h *Handler, hub *Hub, logger *logging.Logger, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	api := r.Group(cfg.API.BasePath)
	{
		// Commands & mode
		api.POST("/actuators/:id/commands", h.DispatchCommand)
		api.PUT("/actuators/:id/mode", h.SetActuatorMode)
		api.PUT("/devices/:deviceId/mode", h.SetDeviceMode)

		// Alarm rules & alarms
		api.PUT("/actuators/:id/alarm-rule", h.SetAlarmRule)
		api.GET("/actuators/:id/alarms", h.ListActuatorAlarms)
		api.POST("/actuators/:id/alarms/:alarmId/acknowledge", h.AcknowledgeAlarm)
		api.POST("/actuators/:id/alarms/:alarmId/resolve", h.ResolveAlarm)
		api.GET("/alarms", h.ListAlarms)
		api.POST("/alarms/acknowledge-all", h.AcknowledgeAllAlarms)

		// Schedules
		api.POST("/actuators/:id/schedules", h.CreateSchedule)
		api.PUT("/schedules/:scheduleId", h.UpdateSchedule)
		api.DELETE("/schedules/:scheduleId", h.DeleteSchedule)
		api.GET("/actuators/:id/schedule-status", h.ScheduleStatus)

		// Queries
		api.GET("/devices", h.ListDevices)
		api.GET("/devices/:deviceId", h.GetDevice)
		api.GET("/actuators/:id", h.GetActuator)
	}

	r.GET("/ws", hub.ServeWS)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
