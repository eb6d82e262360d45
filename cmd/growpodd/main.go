package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/verdant-labs/growpod/internal/db"
	"github.com/verdant-labs/growpod/internal/devices"
	"github.com/verdant-labs/growpod/internal/dispatch"
	"github.com/verdant-labs/growpod/internal/profile"
	"github.com/verdant-labs/growpod/internal/redis"
	"github.com/verdant-labs/growpod/internal/scheduler"
)

func main() {
	// .env is optional, real deployments set the environment directly
	_ = godotenv.Load()
	env := LoadEnvironment()

	setupLogging(env)

	if err := db.Init(env.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("db init failed")
	}
	defer db.Close()

	if env.MigrationsPath != "" {
		if err := db.RunMigrations(env.MigrationsPath); err != nil {
			log.Fatal().Err(err).Msg("db migrate failed")
		}
	}
	store := db.NewStore(db.DB)

	var mirror scheduler.Mirror
	if env.RedisAddress != "" {
		redis.InitRedis(env.RedisAddress, env.RedisUsername, env.RedisPassword)
		mirror = redis.NewScheduleMirror(redis.Rdb)
	}

	loc := time.Local
	if env.SchedulerTimezone != "" {
		var err error
		loc, err = time.LoadLocation(env.SchedulerTimezone)
		if err != nil {
			log.Fatal().Err(err).Str("tz", env.SchedulerTimezone).Msg("invalid scheduler timezone")
		}
	}

	directory := devices.NewRegistry()

	dispatcher, err := dispatch.NewHTTPDispatcher(dispatch.Config{
		Timeout:            env.DispatchTimeout,
		CACertPath:         env.DeviceCAFile,
		ClientCertPath:     env.DeviceClientCert,
		ClientKeyPath:      env.DeviceClientKey,
		InsecureSkipVerify: env.DeviceTLSInsecure,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("dispatcher init failed")
	}

	engine := scheduler.NewEngine(store, directory, dispatcher, scheduler.NewClock(), scheduler.EngineConfig{
		Workers:         env.SchedulerWorkers,
		DispatchTimeout: env.DispatchTimeout,
	})
	registry := scheduler.NewRegistry(store, mirror, engine, loc)
	if err := registry.Restore(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("could not restore schedule triggers")
	}
	registry.Start()

	// presence notifications drive trigger suspension and resumption
	tracker := scheduler.NewTracker(store, registry)
	directory.Subscribe(tracker)

	var presence *devices.PresenceListener
	if env.MQTTBrokerURL != "" {
		presence, err = devices.StartPresenceListener(env.MQTTBrokerURL, "growpodd", directory)
		if err != nil {
			log.Fatal().Err(err).Msg("presence listener init failed")
		}
	} else {
		log.Warn().Msg("MQTT_BROKER_URL unset, device presence disabled")
	}

	catalog, err := profile.OpenCatalog(env.ProfilesPath)
	if err != nil {
		log.Fatal().Err(err).Msg("profile catalog init failed")
	}
	materializer := profile.NewMaterializer(store, loc)

	storageSystem := InitStorage(env)

	if env.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	RegisterRoutes(router, env, store, registry, directory, catalog, materializer, storageSystem)

	go func() {
		log.Info().Str("address", env.ServerAddress).Msg("growpod controller listening")
		if err := router.Run(env.ServerAddress); err != nil {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	if presence != nil {
		presence.Close()
	}
	catalog.Close()
	registry.Stop()
}

func setupLogging(env Environment) {
	level := zerolog.InfoLevel
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		parsed, err := zerolog.ParseLevel(raw)
		if err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)

	if env.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
