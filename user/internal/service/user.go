package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	checkoutRequest "github.com/tavolo/ordering/checkout/pkg/request"
	"github.com/tavolo/ordering/internal/common"
	commonErrors "github.com/tavolo/ordering/internal/errors"
	"github.com/tavolo/ordering/internal/log"
	"github.com/tavolo/ordering/internal/rest"
	"github.com/tavolo/ordering/internal/session"
	"github.com/tavolo/ordering/user/internal/otel"
	"github.com/tavolo/ordering/user/pkg/request"
	"github.com/tavolo/ordering/user/pkg/response"
)

type UserService struct {
	client  *rest.Client
	session *session.Store
}

func NewUserService(client *rest.Client, store *session.Store) *UserService {
	return &UserService{client: client, session: store}
}

// BlockRemaining reports how long the client-side login lockout still holds.
func (s *UserService) BlockRemaining() time.Duration {
	return s.session.LoginBlockRemaining()
}

// Login authenticates and persists the session through the mirrored keys.
// Five consecutive failures arm a five-minute lockout; the counter is purely
// client enforced and resets on success.
func (s *UserService) Login(c context.Context, param request.Login) (response.Auth, error) {
	c, span := otel.Tracer.Start(c, "UserService Login")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "UserService Login").
		Str(log.KeyEmail, param.Email).
		Logger()

	if remaining := s.session.LoginBlockRemaining(); remaining > 0 {
		err := fmt.Errorf(
			"%w, retry in %d seconds",
			commonErrors.ErrLoginBlocked,
			int(remaining.Seconds()),
		)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Auth{}, err
	}

	logger = logger.With().Str(log.KeyProcess, "validating login").Logger()
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.StructCtx(c, param); err != nil {
		err = fmt.Errorf("failed validating login with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Auth{}, err
	}

	logger = logger.With().Str(log.KeyProcess, "logging in").Logger()
	logger.Info().Msg("logging in")
	auth := response.Auth{}
	err := s.client.Post(c, "Authentication/login", param, &auth)
	if err != nil {
		err = fmt.Errorf("failed logging in with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())

		if apiErr, ok := rest.AsAPIError(err); ok &&
			(apiErr.StatusCode == http.StatusBadRequest ||
				apiErr.StatusCode == http.StatusUnauthorized) {
			c = logger.WithContext(c)
			attempts, blockedUntil, recordErr := s.session.RecordLoginFailure(c)
			if recordErr != nil {
				logger.Error().Err(recordErr).Msg(recordErr.Error())
			}
			if !blockedUntil.IsZero() {
				return response.Auth{}, fmt.Errorf(
					"%w, retry in %d seconds",
					commonErrors.ErrLoginBlocked,
					int(time.Until(blockedUntil).Seconds()),
				)
			}
			return response.Auth{}, fmt.Errorf(
				"invalid email or password (%d of %d attempts)",
				attempts,
				session.MaxLoginAttempts,
			)
		}
		return response.Auth{}, err
	}
	logger.Info().Msg("logged in")

	c = logger.WithContext(c)
	if err := s.session.ResetLoginAttempts(c); err != nil {
		logger.Error().Err(err).Msg(err.Error())
	}
	if err := s.persistAuth(c, auth); err != nil {
		err = fmt.Errorf("failed persisting session with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Auth{}, err
	}
	return auth, nil
}

// Register creates the account and logs the new user straight in.
func (s *UserService) Register(c context.Context, param request.Register) (response.Auth, error) {
	c, span := otel.Tracer.Start(c, "UserService Register")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "UserService Register").
		Str(log.KeyEmail, param.Email).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "validating registration").Logger()
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.StructCtx(c, param); err != nil {
		err = fmt.Errorf("failed validating registration with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Auth{}, err
	}

	logger = logger.With().Str(log.KeyProcess, "registering").Logger()
	logger.Info().Msg("registering")
	auth := response.Auth{}
	err := s.client.Post(c, "Authentication/register", param, &auth)
	if err != nil {
		err = fmt.Errorf("failed registering with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		if apiErr, ok := rest.AsAPIError(err); ok && apiErr.StatusCode == http.StatusConflict {
			return response.Auth{}, fmt.Errorf("that email is already registered")
		}
		return response.Auth{}, err
	}
	logger.Info().Msg("registered")

	c = logger.WithContext(c)
	if err := s.persistAuth(c, auth); err != nil {
		err = fmt.Errorf("failed persisting session with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Auth{}, err
	}
	return auth, nil
}

// Logout clears every mirrored session key from both stores; subsequent
// requests go out without an Authorization header.
func (s *UserService) Logout(c context.Context) error {
	c, span := otel.Tracer.Start(c, "UserService Logout")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "UserService Logout").
		Logger()

	logger.Info().Msg("logging out")
	c = logger.WithContext(c)
	if err := s.session.ClearAuth(c); err != nil {
		err = fmt.Errorf("failed clearing session with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("logged out")
	return nil
}

// CurrentUser fetches the profile. A 401 means the stored session is dead:
// credentials are cleared and the caller redirects to login.
func (s *UserService) CurrentUser(c context.Context) (response.User, error) {
	c, span := otel.Tracer.Start(c, "UserService CurrentUser")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "UserService CurrentUser").
		Logger()

	if _, token := s.session.Token(); token == "" {
		return response.User{}, commonErrors.ErrNotAuthenticated
	}

	logger = logger.With().Str(log.KeyProcess, "fetching profile").Logger()
	logger.Info().Msg("fetching profile")
	user := response.User{}
	err := s.client.Get(c, "Authentication/user", nil, &user)
	if err != nil {
		err = fmt.Errorf("failed fetching profile with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		if apiErr, ok := rest.AsAPIError(err); ok &&
			apiErr.StatusCode == http.StatusUnauthorized {
			c = logger.WithContext(c)
			if clearErr := s.session.ClearAuth(c); clearErr != nil {
				logger.Error().Err(clearErr).Msg(clearErr.Error())
			}
			return response.User{}, commonErrors.ErrSessionExpired
		}
		return response.User{}, err
	}
	logger.Info().Msg("fetched profile")

	return user, nil
}

func (s *UserService) Address(c context.Context) (checkoutRequest.Address, error) {
	c, span := otel.Tracer.Start(c, "UserService Address")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "UserService Address").
		Logger()

	address := checkoutRequest.Address{}
	err := s.client.Get(c, "Authentication/address", nil, &address)
	if err != nil {
		err = fmt.Errorf("failed fetching address with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return checkoutRequest.Address{}, err
	}
	return address, nil
}

func (s *UserService) SaveAddress(c context.Context, address checkoutRequest.Address) error {
	c, span := otel.Tracer.Start(c, "UserService SaveAddress")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "UserService SaveAddress").
		Logger()

	err := s.client.Put(c, "Authentication/address", address, nil)
	if err != nil {
		err = fmt.Errorf("failed saving address with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	return nil
}

// Email returns the stored user's email, the key favorites are scoped by.
func (s *UserService) Email() string {
	user := response.User{}
	if ok, err := s.session.GetJSON(session.KeyUserInfo, &user); !ok || err != nil {
		return ""
	}
	return user.Email
}

func (s *UserService) persistAuth(c context.Context, auth response.Auth) error {
	tokenType := auth.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	if err := s.session.Set(c, session.KeyToken, auth.Token); err != nil {
		return err
	}
	if err := s.session.Set(c, session.KeyRefreshToken, auth.RefreshToken); err != nil {
		return err
	}
	if err := s.session.Set(c, session.KeyTokenType, tokenType); err != nil {
		return err
	}
	if expiry, err := common.TokenExpiry(auth.Token); err == nil && !expiry.IsZero() {
		if err := s.session.Set(c, session.KeyTokenExpiry, expiry.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return s.session.SetJSON(c, session.KeyUserInfo, response.User{
		Email:       auth.Email,
		DisplayName: auth.DisplayName,
	})
}
