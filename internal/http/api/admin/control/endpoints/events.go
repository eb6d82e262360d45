package endpoints

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/verdant-labs/growpod/internal/db"
	"github.com/verdant-labs/growpod/internal/http/api"
	"github.com/verdant-labs/growpod/internal/http/api/admin/control/packets"
	"github.com/verdant-labs/growpod/internal/model"
)

type EventController struct {
	store db.Store
}

func NewEventController(store db.Store) *EventController {
	return &EventController{store: store}
}

func EventModule(store db.Store) api.Module {
	ctl := NewEventController(store)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/events", ctl.listEvents)
		c.POST("/events", ctl.createEvent)
		c.DELETE("/events", ctl.deleteEventsForDevice)
		c.GET("/events/:id", ctl.getEvent)
		c.PUT("/events/:id", ctl.updateEvent)
		c.DELETE("/events/:id", ctl.deleteEvent)
		c.GET("/events/:id/log", ctl.listExecutionLog)
		c.GET("/executions", ctl.listRecentExecutions)
	})
}

func (e *EventController) listEvents(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var query packets.ListEventsQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	events, err := e.store.ListEventsForDevice(query.Device, query.From, query.To)
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "failed to list events"}
	}
	return events, nil
}

func (e *EventController) createEvent(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.EventRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	created, err := e.store.CreateEvent(eventFromRequest(request))
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not create event"}
	}
	return created, nil
}

func (e *EventController) getEvent(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "invalid event id"}
	}

	event, err := e.store.GetEvent(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &api.APIError{Code: http.StatusNotFound, Message: "event not found"}
		}
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "failed to fetch event"}
	}
	return event, nil
}

func (e *EventController) updateEvent(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "invalid event id"}
	}

	var request packets.EventRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	event := eventFromRequest(request)
	event.ID = id
	updated, err := e.store.UpdateEvent(event)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &api.APIError{Code: http.StatusNotFound, Message: "event not found"}
		}
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not update event"}
	}
	return updated, nil
}

func (e *EventController) deleteEvent(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "invalid event id"}
	}

	if err := e.store.DeleteEvent(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &api.APIError{Code: http.StatusNotFound, Message: "event not found"}
		}
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not delete event"}
	}
	return gin.H{"message": "deleted"}, nil
}

// DELETE /events?device=<name> clears a device's calendar in one call,
// typically before re-materializing a profile.
func (e *EventController) deleteEventsForDevice(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	device := ctx.Query("device")
	if device == "" {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "device query parameter required"}
	}

	deleted, err := e.store.DeleteEventsForDevice(device)
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not delete events"}
	}
	return gin.H{"deleted": deleted}, nil
}

func (e *EventController) listExecutionLog(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "invalid event id"}
	}

	limit := 50
	if raw := ctx.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return nil, &api.APIError{Code: http.StatusBadRequest, Message: "invalid limit"}
		}
	}

	entries, err := e.store.ListExecutionLogForEvent(id, limit)
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "failed to list execution log"}
	}
	return entries, nil
}

// GET /executions?limit= lists the newest execution log entries across
// all schedules and events, for an operator health check.
func (e *EventController) listRecentExecutions(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	limit := 50
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return nil, &api.APIError{Code: http.StatusBadRequest, Message: "invalid limit"}
		}
		limit = parsed
	}

	entries, err := e.store.ListRecentExecutions(limit)
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "failed to list executions"}
	}
	return entries, nil
}

func eventFromRequest(request packets.EventRequest) model.CalendarEvent {
	enabled := true
	if request.Enabled != nil {
		enabled = *request.Enabled
	}
	recurrence := request.Recurrence
	if recurrence == "" {
		recurrence = model.RecurrenceNone
	}
	color := request.Color
	if color == "" {
		color = "#3498db"
	}

	return model.CalendarEvent{
		DeviceName:      request.DeviceName,
		EventType:       request.EventType,
		Title:           request.Title,
		Description:     request.Description,
		ScheduledTime:   request.ScheduledTime,
		DurationMinutes: request.DurationMinutes,
		CommandType:     request.CommandType,
		CommandParams:   request.CommandParams,
		Recurrence:      recurrence,
		RecurrenceEnd:   request.RecurrenceEnd,
		Enabled:         enabled,
		Color:           color,
	}
}
