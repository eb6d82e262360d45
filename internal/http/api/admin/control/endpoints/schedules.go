package endpoints

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/verdant-labs/growpod/internal/db"
	"github.com/verdant-labs/growpod/internal/http/api"
	"github.com/verdant-labs/growpod/internal/http/api/admin/control/packets"
	"github.com/verdant-labs/growpod/internal/model"
	"github.com/verdant-labs/growpod/internal/scheduler"
)

type ScheduleController struct {
	registry *scheduler.Registry
	store    db.Store
}

func NewScheduleController(registry *scheduler.Registry, store db.Store) *ScheduleController {
	return &ScheduleController{registry: registry, store: store}
}

func ScheduleModule(registry *scheduler.Registry, store db.Store) api.Module {
	ctl := NewScheduleController(registry, store)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/schedules", ctl.listSchedules)
		c.POST("/schedules", ctl.registerSchedule)
		c.GET("/schedules/:name", ctl.getSchedule)
		c.PUT("/schedules/:name", ctl.updateSchedule)
		c.DELETE("/schedules/:name", ctl.unregisterSchedule)
	})
}

func (s *ScheduleController) listSchedules(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	list, err := s.store.ListSchedules()
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "failed to list schedules"}
	}
	return list, nil
}

func (s *ScheduleController) getSchedule(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	def, err := s.store.GetSchedule(ctx.Param("name"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &api.APIError{Code: http.StatusNotFound, Message: "schedule not found"}
		}
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "failed to fetch schedule"}
	}
	return def, nil
}

func (s *ScheduleController) registerSchedule(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.ScheduleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}
	return s.register(ctx, request)
}

// PUT re-registers under the path name; the body name, if any, is
// ignored so a rename cannot slip in through an update.
func (s *ScheduleController) updateSchedule(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.ScheduleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}
	request.Name = ctx.Param("name")
	return s.register(ctx, request)
}

func (s *ScheduleController) register(ctx *gin.Context, request packets.ScheduleRequest) (any, *api.APIError) {
	enabled := true
	if request.Enabled != nil {
		enabled = *request.Enabled
	}

	def := model.ScheduleDefinition{
		Name:            request.Name,
		DeviceName:      request.DeviceName,
		StartTime:       request.StartTime,
		Frequency:       model.Frequency(request.Frequency),
		DayOfWeek:       request.DayOfWeek,
		DurationMinutes: request.DurationMinutes,
		Actions:         request.Actions,
		Enabled:         enabled,
	}

	stored, err := s.registry.Register(ctx.Request.Context(), def)
	if err != nil {
		var verr *scheduler.ValidationError
		if errors.As(err, &verr) {
			return nil, &api.APIError{Code: http.StatusBadRequest, Message: verr.Error()}
		}
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not register schedule"}
	}
	return stored, nil
}

func (s *ScheduleController) unregisterSchedule(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	name := ctx.Param("name")
	if err := s.registry.Unregister(ctx.Request.Context(), name); err != nil {
		if errors.Is(err, scheduler.ErrNotFound) {
			return nil, &api.APIError{Code: http.StatusNotFound, Message: "schedule not found"}
		}
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not unregister schedule"}
	}
	return gin.H{"message": "unregistered"}, nil
}
