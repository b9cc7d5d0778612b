package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tavolo/ordering/cart/internal/otel"
	"github.com/tavolo/ordering/cart/pkg/service"
	"github.com/tavolo/ordering/internal/common"
	"github.com/tavolo/ordering/internal/config"
	"github.com/tavolo/ordering/internal/infra"
	"github.com/tavolo/ordering/internal/log"
	productService "github.com/tavolo/ordering/product/pkg/service"
)

func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Inspect and edit the basket",
	}
	cmd.AddCommand(showCommand(), addCommand(), removeCommand(), clearCommand())
	return cmd
}

func newBasketService(c context.Context) (*service.BasketService, *productService.MenuService, error) {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyAppName, common.AppCartView).
		Str(log.KeyTag, "cart newBasketService").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "init config").Logger()
	logger.Info().Msg("initializing config")
	c = logger.WithContext(c)
	cfg := config.InitConfig(c, common.AppName)
	logger.Info().Msg("initialized config")

	logger = logger.With().Str(log.KeyProcess, "init session store").Logger()
	store, err := infra.NewSessionStore(c, cfg)
	if err != nil {
		return nil, nil, err
	}

	client := infra.NewRestClient(c, cfg, store)
	return service.NewBasketService(client, store), productService.NewMenuService(client, store), nil
}

func showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the basket with the running total",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, span := otel.Tracer.Start(cmd.Context(), "cart show")
			defer span.End()

			basketSvc, _, err := newBasketService(c)
			if err != nil {
				return err
			}
			if err := basketSvc.Load(c); err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "could not load your basket, try again later")
				return err
			}
			printBasket(cmd, basketSvc)
			return nil
		},
	}
}

func addCommand() *cobra.Command {
	var quantity int32
	cmd := &cobra.Command{
		Use:   "add <productId>",
		Short: "Add a product from the menu to the basket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, span := otel.Tracer.Start(cmd.Context(), "cart add")
			defer span.End()

			productID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("failed parsing productId=%s with error=%w", args[0], err)
			}

			basketSvc, menuSvc, err := newBasketService(c)
			if err != nil {
				return err
			}
			product, err := menuSvc.FindProductByID(c, productID)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "that product is not on the menu")
				return err
			}

			result := basketSvc.AddItem(c, product, quantity)
			if !result.Success {
				fmt.Fprintln(cmd.OutOrStdout(), result.Message)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", product.Name)
			printBasket(cmd, basketSvc)
			return nil
		},
	}
	cmd.Flags().Int32VarP(&quantity, "quantity", "q", 1, "how many to add")
	return cmd
}

func removeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <itemId>",
		Short: "Remove a line item from the basket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, span := otel.Tracer.Start(cmd.Context(), "cart remove")
			defer span.End()

			itemID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("failed parsing itemId=%s with error=%w", args[0], err)
			}

			basketSvc, _, err := newBasketService(c)
			if err != nil {
				return err
			}
			result := basketSvc.RemoveItem(c, itemID)
			if !result.Success {
				fmt.Fprintln(cmd.OutOrStdout(), result.Message)
				return nil
			}
			printBasket(cmd, basketSvc)
			return nil
		},
	}
}

func clearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the basket and forget its id",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, span := otel.Tracer.Start(cmd.Context(), "cart clear")
			defer span.End()

			basketSvc, _, err := newBasketService(c)
			if err != nil {
				return err
			}
			if err := basketSvc.DeleteBasket(c); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "basket cleared")
			return nil
		},
	}
}

func printBasket(cmd *cobra.Command, basketSvc *service.BasketService) {
	basket := basketSvc.Basket()
	if basket.IsEmpty() {
		fmt.Fprintln(cmd.OutOrStdout(), "your basket is empty")
		return
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tNAME\tQTY\tPRICE\tLINE TOTAL")
	for _, item := range basket.Items {
		lineTotal := item.Price.Mul(decimal.NewFromInt32(item.Quantity))
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			item.ID, item.Name, item.Quantity, item.Price.StringFixed(2), lineTotal.StringFixed(2))
	}
	w.Flush()
	fmt.Fprintf(cmd.OutOrStdout(), "subtotal: %s\n", basket.Subtotal().StringFixed(2))
	if !basket.ShippingPrice.IsZero() {
		fmt.Fprintf(cmd.OutOrStdout(), "shipping: %s\n", basket.ShippingPrice.StringFixed(2))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "total: %s\n", basket.Total().StringFixed(2))
}
