package endpoints

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/verdant-labs/growpod/internal/http/api"
	"github.com/verdant-labs/growpod/internal/http/api/admin/control/packets"
	"github.com/verdant-labs/growpod/internal/model"
	"github.com/verdant-labs/growpod/internal/profile"
	"github.com/verdant-labs/growpod/internal/storage"
)

type ProfileController struct {
	catalog       *profile.Catalog
	materializer  *profile.Materializer
	storageSystem storage.Storage
}

func NewProfileController(catalog *profile.Catalog, materializer *profile.Materializer, storageSystem storage.Storage) *ProfileController {
	return &ProfileController{catalog: catalog, materializer: materializer, storageSystem: storageSystem}
}

func ProfileModule(catalog *profile.Catalog, materializer *profile.Materializer, storageSystem storage.Storage) api.Module {
	ctl := NewProfileController(catalog, materializer, storageSystem)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/profiles", ctl.listProfiles)
		c.POST("/profiles", ctl.uploadProfile)
		c.POST("/profiles/:name/materialize", ctl.materializeProfile)
	})
}

func (p *ProfileController) listProfiles(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	return gin.H{"profiles": p.catalog.Names()}, nil
}

// POST /api/admin/profiles accepts a multipart profile document,
// validates that it parses, stores it, and indexes it in the catalog.
func (p *ProfileController) uploadProfile(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "file field required"}
	}
	if !strings.HasSuffix(fileHeader.Filename, ".json") {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "profile must be a .json document"}
	}

	src, err := fileHeader.Open()
	if err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "could not read upload"}
	}
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "could not read upload"}
	}

	parsed, err := profile.Parse(data)
	if err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	url, err := p.storageSystem.SaveFile(fileHeader, fileHeader.Filename)
	if err != nil {
		log.Error().Err(err).Str("file", fileHeader.Filename).Msg("profile upload failed")
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not store profile"}
	}

	// index under the stored stem so catalog lookups and the directory
	// watcher agree on the profile's name
	name := strings.TrimSuffix(filepath.Base(url), ".json")
	p.catalog.Put(name, parsed)

	return packets.ProfileUploadResponse{Name: name, URL: url}, nil
}

// POST /api/admin/profiles/:name/materialize expands the profile into
// dated calendar events for one device.
func (p *ProfileController) materializeProfile(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	name := ctx.Param("name")
	grow, ok := p.catalog.Get(name)
	if !ok {
		return nil, &api.APIError{Code: http.StatusNotFound, Message: "profile not found"}
	}

	var request packets.MaterializeRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	start, err := time.Parse("2006-01-02", request.StartDate)
	if err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "start_date must be YYYY-MM-DD"}
	}

	counts, err := p.materializer.MaterializeAll(grow, request.DeviceName, start)
	if err != nil {
		log.Error().Err(err).Str("profile", name).Msg("materialization completed with errors")
		// partial results were persisted; report what made it
	}

	return packets.MaterializeResponse{
		Profile:           name,
		DeviceName:        request.DeviceName,
		DosingEvents:      counts.DosingEvents,
		WaterChangeEvents: counts.WaterChangeEvents,
	}, nil
}
