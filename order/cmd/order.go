package cmd

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tavolo/ordering/internal/common"
	"github.com/tavolo/ordering/internal/config"
	commonErrors "github.com/tavolo/ordering/internal/errors"
	"github.com/tavolo/ordering/internal/infra"
	"github.com/tavolo/ordering/internal/log"
	"github.com/tavolo/ordering/order/internal/otel"
	"github.com/tavolo/ordering/order/internal/service"
)

func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Order history and tracking",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, span := otel.Tracer.Start(cmd.Context(), "orders list")
			defer span.End()

			orderSvc, err := newOrderService(c)
			if err != nil {
				return err
			}
			orders, err := orderSvc.UserOrders(c)
			if err != nil {
				if errors.Is(err, commonErrors.ErrNotAuthenticated) ||
					errors.Is(err, commonErrors.ErrSessionExpired) {
					fmt.Fprintln(cmd.OutOrStdout(), "log in to see your orders")
					return nil
				}
				return err
			}
			if len(orders) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no orders yet")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPLACED\tSTATUS\tTOTAL")
			for _, order := range orders {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					order.ID,
					order.CreatedAt.Format(time.DateOnly),
					order.Status,
					order.Total.StringFixed(2))
			}
			w.Flush()
			return nil
		},
	}
	cmd.AddCommand(showCommand(), trackCommand())
	return cmd
}

func newOrderService(c context.Context) (*service.OrderService, error) {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyAppName, common.AppOrdersView).
		Str(log.KeyTag, "orders newOrderService").
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
	return service.NewOrderService(client, store), nil
}

func showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <orderId>",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, span := otel.Tracer.Start(cmd.Context(), "orders show")
			defer span.End()

			orderID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("failed parsing orderId=%s with error=%w", args[0], err)
			}
			orderSvc, err := newOrderService(c)
			if err != nil {
				return err
			}
			order, err := orderSvc.FindOrderByID(c, orderID)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "order %s, %s\n", order.ID, order.Status)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tQTY\tPRICE")
			for _, item := range order.Items {
				fmt.Fprintf(w, "%s\t%d\t%s\n", item.Name, item.Quantity, item.Price.StringFixed(2))
			}
			w.Flush()
			fmt.Fprintf(cmd.OutOrStdout(), "shipping: %s\ntotal: %s\n",
				order.ShippingPrice.StringFixed(2), order.Total.StringFixed(2))
			return nil
		},
	}
}

func trackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "track <orderId>",
		Short: "Show an order's tracking feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, span := otel.Tracer.Start(cmd.Context(), "orders track")
			defer span.End()

			orderID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("failed parsing orderId=%s with error=%w", args[0], err)
			}
			orderSvc, err := newOrderService(c)
			if err != nil {
				return err
			}
			events, err := orderSvc.Track(c, orderID)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no tracking events yet")
				return nil
			}
			for _, event := range events {
				if event.At.IsZero() {
					fmt.Fprintln(cmd.OutOrStdout(), event.Status)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n",
					event.At.Format(time.RFC3339), event.Status)
			}
			return nil
		},
	}
}
