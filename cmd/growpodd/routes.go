package main

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/verdant-labs/growpod/internal/db"
	"github.com/verdant-labs/growpod/internal/devices"
	"github.com/verdant-labs/growpod/internal/http/api"
	authapi "github.com/verdant-labs/growpod/internal/http/api/admin/auth/endpoints"
	controlapi "github.com/verdant-labs/growpod/internal/http/api/admin/control/endpoints"
	"github.com/verdant-labs/growpod/internal/profile"
	"github.com/verdant-labs/growpod/internal/scheduler"
	"github.com/verdant-labs/growpod/internal/storage"
)

// RegisterRoutes sets up all application routes
func RegisterRoutes(
	r *gin.Engine,
	env Environment,
	store db.Store,
	registry *scheduler.Registry,
	directory devices.Directory,
	catalog *profile.Catalog,
	materializer *profile.Materializer,
	storageSystem storage.Storage,
) {
	// CORS
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
			"HEAD",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Accept",
		},
		ExposeHeaders: []string{
			"Content-Length",
		},
		AllowCredentials: false,
	}))

	api.MountGroup(r, api.GroupConfig{
		Prefix: "/api/admin",
		Auth:   false,
	},
		authapi.AuthPublicModule(env.SecretKey, store),
	)

	api.MountGroup(r, api.GroupConfig{
		Prefix:    "/api/admin",
		Auth:      true,
		SecretKey: env.SecretKey,
		Store:     store,
	},
		// control modules
		controlapi.ScheduleModule(registry, store),
		controlapi.EventModule(store),
		controlapi.ProfileModule(catalog, materializer, storageSystem),
		controlapi.DeviceModule(directory),
		// session endpoints that require auth
		authapi.AuthSessionModule(env.SecretKey, store),
	)
}
