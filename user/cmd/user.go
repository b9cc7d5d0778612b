package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tavolo/ordering/internal/common"
	"github.com/tavolo/ordering/internal/config"
	commonErrors "github.com/tavolo/ordering/internal/errors"
	"github.com/tavolo/ordering/internal/infra"
	"github.com/tavolo/ordering/internal/log"
	"github.com/tavolo/ordering/user/internal/otel"
	"github.com/tavolo/ordering/user/internal/service"
	"github.com/tavolo/ordering/user/pkg/request"
)

// Commands returns the account-facing commands: login, register, logout and
// whoami all hang straight off the root.
func Commands() []*cobra.Command {
	return []*cobra.Command{
		loginCommand(),
		registerCommand(),
		logoutCommand(),
		whoamiCommand(),
	}
}

func newUserService(c context.Context) (*service.UserService, error) {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyAppName, common.AppAccountView).
		Str(log.KeyTag, "user newUserService").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "init config").Logger()
	logger.Info().Msg("initializing config")
	c = logger.WithContext(c)
	cfg := config.InitConfig(c, common.AppName)
	logger.Info().Msg("initialized config")

	store, err := infra.NewSessionStore(c, cfg)
	if err != nil {
		return nil, err
	}
	client := infra.NewRestClient(c, cfg, store)
	return service.NewUserService(client, store), nil
}

func loginCommand() *cobra.Command {
	param := request.Login{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the ordering service",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, span := otel.Tracer.Start(cmd.Context(), "user login")
			defer span.End()

			userSvc, err := newUserService(c)
			if err != nil {
				return err
			}

			if remaining := userSvc.BlockRemaining(); remaining > 0 {
				fmt.Fprintf(cmd.OutOrStdout(),
					"too many failed attempts, try again in %d seconds\n",
					int(remaining.Seconds()))
				return nil
			}

			auth, err := userSvc.Login(c, param)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), err.Error())
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", auth.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&param.Email, "email", "", "account email")
	cmd.Flags().StringVar(&param.Password, "password", "", "account password")
	return cmd
}

func registerCommand() *cobra.Command {
	param := request.Register{}
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, span := otel.Tracer.Start(cmd.Context(), "user register")
			defer span.End()

			userSvc, err := newUserService(c)
			if err != nil {
				return err
			}
			auth, err := userSvc.Register(c, param)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), err.Error())
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "welcome, %s\n", auth.DisplayName)
			return nil
		},
	}
	cmd.Flags().StringVar(&param.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&param.Email, "email", "", "account email")
	cmd.Flags().StringVar(&param.Password, "password", "", "account password")
	return cmd
}

func logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, span := otel.Tracer.Start(cmd.Context(), "user logout")
			defer span.End()

			userSvc, err := newUserService(c)
			if err != nil {
				return err
			}
			if err := userSvc.Logout(c); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, span := otel.Tracer.Start(cmd.Context(), "user whoami")
			defer span.End()

			userSvc, err := newUserService(c)
			if err != nil {
				return err
			}
			user, err := userSvc.CurrentUser(c)
			if err != nil {
				if errors.Is(err, commonErrors.ErrNotAuthenticated) ||
					errors.Is(err, commonErrors.ErrSessionExpired) {
					fmt.Fprintln(cmd.OutOrStdout(), "not logged in")
					return nil
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", user.DisplayName, user.Email)
			return nil
		},
	}
}
