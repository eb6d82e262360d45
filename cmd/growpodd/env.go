package main

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Environment struct {
	Environment    string
	ServerAddress  string
	SecretKey      string
	DatabaseURL    string
	MigrationsPath string

	RedisAddress  string
	RedisUsername string
	RedisPassword string

	MQTTBrokerURL string

	SchedulerTimezone string
	SchedulerWorkers  int
	DispatchTimeout   time.Duration
	ProfilesPath      string

	DeviceCAFile      string
	DeviceClientCert  string
	DeviceClientKey   string
	DeviceTLSInsecure bool

	UseSpaces       bool
	SpacesEndpoint  string
	SpacesRegion    string
	SpacesBucket    string
	SpacesCDNURL    string
	SpacesAccessKey string
	SpacesSecretKey string
}

// LoadEnvironment reads and validates env vars
func LoadEnvironment() Environment {
	env := Environment{
		Environment:    os.Getenv("APP_ENV"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SecretKey:      os.Getenv("JWT_SECRET"),
		ServerAddress:  os.Getenv("SERVER_ADDRESS"),
		MigrationsPath: os.Getenv("MIGRATIONS_PATH"),

		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisUsername: os.Getenv("REDIS_USERNAME"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		MQTTBrokerURL: os.Getenv("MQTT_BROKER_URL"),

		SchedulerTimezone: os.Getenv("SCHEDULER_TIMEZONE"),
		SchedulerWorkers:  envInt("SCHEDULER_WORKERS", 4),
		DispatchTimeout:   envDuration("DISPATCH_TIMEOUT", 5*time.Second),
		ProfilesPath:      envDefault("PROFILES_PATH", "./profiles"),

		DeviceCAFile:      os.Getenv("DEVICE_CA_FILE"),
		DeviceClientCert:  os.Getenv("DEVICE_CLIENT_CERT"),
		DeviceClientKey:   os.Getenv("DEVICE_CLIENT_KEY"),
		DeviceTLSInsecure: os.Getenv("DEVICE_TLS_INSECURE") == "true",

		UseSpaces:       os.Getenv("USE_SPACES") == "true",
		SpacesEndpoint:  os.Getenv("SPACES_ENDPOINT"),
		SpacesRegion:    os.Getenv("SPACES_REGION"),
		SpacesBucket:    os.Getenv("SPACES_BUCKET"),
		SpacesCDNURL:    os.Getenv("SPACES_CDN_URL"),
		SpacesAccessKey: os.Getenv("SPACES_ACCESS_KEY"),
		SpacesSecretKey: os.Getenv("SPACES_SECRET_KEY"),
	}

	// Basic validation
	if env.DatabaseURL == "" || env.SecretKey == "" || env.ServerAddress == "" {
		log.Fatal().Msg("missing required environment variables (DATABASE_URL, JWT_SECRET, SERVER_ADDRESS)")
	}

	return env
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatal().Str("var", key).Str("value", raw).Msg("not an integer")
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatal().Str("var", key).Str("value", raw).Msg("not a duration")
	}
	return v
}
