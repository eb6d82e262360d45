package endpoints

import (
	"github.com/gin-gonic/gin"

	"github.com/verdant-labs/growpod/internal/devices"
	"github.com/verdant-labs/growpod/internal/http/api"
	"github.com/verdant-labs/growpod/internal/model"
)

type DeviceController struct {
	directory devices.Directory
}

func DeviceModule(directory devices.Directory) api.Module {
	ctl := &DeviceController{directory: directory}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/devices", ctl.listDevices)
	})
}

// GET /api/admin/devices returns the live directory snapshot.
func (d *DeviceController) listDevices(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	return d.directory.List(), nil
}
