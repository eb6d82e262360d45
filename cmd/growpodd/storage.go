package main

import (
	"github.com/rs/zerolog/log"

	"github.com/verdant-labs/growpod/internal/storage"
)

// InitStorage selects and returns the configured profile storage backend
func InitStorage(env Environment) storage.Storage {
	if env.UseSpaces {
		spacesStorage, err := storage.NewSpacesStorage(
			env.SpacesEndpoint,
			env.SpacesRegion,
			env.SpacesBucket,
			env.SpacesCDNURL,
			env.SpacesAccessKey,
			env.SpacesSecretKey,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Spaces storage")
		}
		log.Info().Str("cdn", env.SpacesCDNURL).Msg("using Spaces profile storage")
		return spacesStorage
	}

	log.Info().Str("dir", env.ProfilesPath).Msg("using local profile storage")
	return storage.NewLocalStorage(env.ProfilesPath)
}
