package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	cartCmd "github.com/tavolo/ordering/cart/cmd"
	checkoutCmd "github.com/tavolo/ordering/checkout/cmd"
	"github.com/tavolo/ordering/internal/common"
	"github.com/tavolo/ordering/internal/config"
	"github.com/tavolo/ordering/internal/log"
	"github.com/tavolo/ordering/internal/otel"
	orderCmd "github.com/tavolo/ordering/order/cmd"
	productCmd "github.com/tavolo/ordering/product/cmd"
	userCmd "github.com/tavolo/ordering/user/cmd"
)

func Start() {
	logger := log.InitLogger("tavolo.log", os.Getenv("TAVOLO_ENV")).
		With().
		Str(log.KeyAppName, common.AppName).
		Str(log.KeyTag, "main Start").
		Logger()

	logger.Info().Msg("adding listener for SIGINT and SIGTERM")
	c, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Info().Msg("added listener for SIGINT and SIGTERM")

	c = logger.WithContext(c)

	logger = logger.With().Str(log.KeyProcess, "init config").Logger()
	logger.Info().Msg("initializing config")
	cfg := config.InitConfig(c, common.AppName)
	logger.Info().Msg("initialized config")

	logger = logger.With().Str(log.KeyProcess, "initializing otel sdk").Logger()
	logger.Info().Msg("initializing otel sdk")
	otelShutdowns, err := otel.InitOtelSdk(c, common.AppName, cfg.Otel)
	if err != nil {
		err = fmt.Errorf("failed initializing otel sdk with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
	}
	defer func() {
		logger.Info().Msg("shutting down otel")
		if err := otel.ShutdownOtel(c, otelShutdowns); err != nil {
			err = fmt.Errorf("failed shutting down otel with error=%w", err)
			logger.Error().Err(err).Msg(err.Error())
			return
		}
		logger.Info().Msg("shutdown otel")
	}()
	logger.Info().Msg("initialized otel sdk")

	rootCmd := &cobra.Command{
		Use:   "tavolo",
		Short: "Order from the restaurant: browse the menu, fill a basket, check out",
	}
	rootCmd.AddCommand(
		productCmd.Command(),
		cartCmd.Command(),
		checkoutCmd.Command(),
		orderCmd.Command(),
	)
	rootCmd.AddCommand(userCmd.Commands()...)

	if err := rootCmd.ExecuteContext(c); err != nil {
		logger.Fatal().Err(err).Msgf("error when executing command=%s", err.Error())
	}
}
