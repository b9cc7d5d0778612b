package infra

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tavolo/ordering/internal/config"
	"github.com/tavolo/ordering/internal/log"
	"github.com/tavolo/ordering/internal/rest"
	"github.com/tavolo/ordering/internal/session"
)

// NewSessionStore opens the persistence bridge. Mirrored cookies are marked
// Secure exactly when the API base URL is HTTPS.
func NewSessionStore(c context.Context, cfg *config.Config) (*session.Store, error) {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "NewSessionStore").
		Str(log.KeyProcess, "opening session store").
		Logger()

	logger.Info().Msg("opening session store")
	c = logger.WithContext(c)
	store, err := session.Open(c, cfg.Storage.Dir, strings.HasPrefix(cfg.API.BaseURL, "https://"))
	if err != nil {
		err = fmt.Errorf("failed opening session store with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Info().Msg("opened session store")
	return store, nil
}

func NewRestClient(c context.Context, cfg *config.Config, store *session.Store) *rest.Client {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "NewRestClient").
		Str("baseUrl", cfg.API.BaseURL).
		Logger()

	logger.Info().Msg("initialized rest client")
	return rest.NewClient(cfg.API.BaseURL, store)
}
