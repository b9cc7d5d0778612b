package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	cartService "github.com/tavolo/ordering/cart/pkg/service"
	"github.com/tavolo/ordering/checkout/internal/otel"
	"github.com/tavolo/ordering/checkout/internal/service"
	"github.com/tavolo/ordering/checkout/pkg/request"
	"github.com/tavolo/ordering/internal/common"
	"github.com/tavolo/ordering/internal/config"
	commonErrors "github.com/tavolo/ordering/internal/errors"
	"github.com/tavolo/ordering/internal/infra"
	"github.com/tavolo/ordering/internal/log"
)

func Command() *cobra.Command {
	var (
		address  request.Address
		delivery string
	)
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Walk the basket through address, delivery and review to an order",
		Long: "Runs the three checkout steps in sequence: validates and saves the " +
			"shipping address, picks a delivery method, then submits the order. " +
			"Without --delivery the available methods are listed and nothing is submitted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, span := otel.Tracer.Start(cmd.Context(), "checkout run")
			defer span.End()
			return runCheckout(c, cmd, address, delivery)
		},
	}

	cmd.Flags().StringVar(&address.FirstName, "first-name", "", "recipient first name")
	cmd.Flags().StringVar(&address.LastName, "last-name", "", "recipient last name")
	cmd.Flags().StringVar(&address.Street, "street", "", "street or location")
	cmd.Flags().StringVar(&address.City, "city", "", "city")
	cmd.Flags().StringVar(&address.Country, "country", "", "country")
	cmd.Flags().StringVar(&address.Phone, "phone", "", "contact phone (optional)")
	cmd.Flags().StringVar(&address.Instructions, "instructions", "", "delivery instructions (optional)")
	cmd.Flags().StringVar(&delivery, "delivery", "", "delivery method id to ship with")
	return cmd
}

func runCheckout(
	c context.Context,
	cmd *cobra.Command,
	address request.Address,
	delivery string,
) error {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyAppName, common.AppCheckoutView).
		Str(log.KeyTag, "checkout runCheckout").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "init config").Logger()
	logger.Info().Msg("initializing config")
	c = logger.WithContext(c)
	cfg := config.InitConfig(c, common.AppName)
	logger.Info().Msg("initialized config")

	store, err := infra.NewSessionStore(c, cfg)
	if err != nil {
		return err
	}
	client := infra.NewRestClient(c, cfg, store)
	basketSvc := cartService.NewBasketService(client, store)
	checkoutSvc := service.NewCheckoutService(
		client,
		store,
		basketSvc,
		time.Duration(cfg.API.CheckoutTimeoutMs)*time.Millisecond,
	)

	out := cmd.OutOrStdout()

	if err := checkoutSvc.Begin(c); err != nil {
		if errors.Is(err, commonErrors.ErrEmptyBasket) {
			fmt.Fprintln(out, "your basket is empty, add something from the menu first")
			return nil
		}
		return err
	}

	// The flags override whatever the profile had saved; blank flags keep
	// the saved values so a returning user only types what changed.
	saved := checkoutSvc.Address()
	mergeAddress(&address, saved)

	if err := checkoutSvc.SubmitAddress(c, address); err != nil {
		if errors.Is(err, commonErrors.ErrIncompleteAddress) {
			printFieldErrors(cmd, checkoutSvc.FieldErrors())
			return nil
		}
		if apiFields := checkoutSvc.FieldErrors(); len(apiFields) > 0 {
			printFieldErrors(cmd, apiFields)
			return nil
		}
		return err
	}
	fmt.Fprintln(out, "address saved")

	methods, err := checkoutSvc.LoadDeliveryMethods(c)
	if err != nil {
		return err
	}
	if delivery == "" {
		fmt.Fprintln(out, "pick a delivery method and rerun with --delivery <id>:")
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPRICE\tETA")
		for _, m := range methods {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.ShortName, m.Price.StringFixed(2), m.DeliveryTime)
		}
		w.Flush()
		return nil
	}

	methodID, err := uuid.Parse(delivery)
	if err != nil {
		return fmt.Errorf("failed parsing delivery method id=%s with error=%w", delivery, err)
	}
	if err := checkoutSvc.SelectDelivery(methodID); err != nil {
		fmt.Fprintln(out, "that delivery method is not offered")
		return nil
	}
	if err := checkoutSvc.ConfirmDelivery(); err != nil {
		return err
	}

	basket := basketSvc.Basket()
	fmt.Fprintf(out, "review: %d items, total %s\n", basket.ItemCount(), checkoutSvc.Total().StringFixed(2))

	created, err := checkoutSvc.Submit(c)
	if err != nil {
		switch {
		case errors.Is(err, commonErrors.ErrSessionExpired):
			fmt.Fprintln(out, "your session expired, log in and try again")
		case errors.Is(err, commonErrors.ErrBasketNotFound):
			fmt.Fprintln(out, "the basket could not be found, go back to the cart")
		default:
			fmt.Fprintln(out, err.Error())
		}
		return nil
	}

	fmt.Fprintf(out, "order placed, id=%s\n", created.ID)
	fmt.Fprintf(out, "track it with: tavolo orders track %s\n", created.ID)
	return nil
}

func mergeAddress(flags *request.Address, saved request.Address) {
	if flags.FirstName == "" {
		flags.FirstName = saved.FirstName
	}
	if flags.LastName == "" {
		flags.LastName = saved.LastName
	}
	if flags.Street == "" {
		flags.Street = saved.Street
	}
	if flags.City == "" {
		flags.City = saved.City
	}
	if flags.Country == "" {
		flags.Country = saved.Country
	}
	if flags.Phone == "" {
		flags.Phone = saved.Phone
	}
	if flags.Instructions == "" {
		flags.Instructions = saved.Instructions
	}
}

func printFieldErrors(cmd *cobra.Command, fields map[string]string) {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintln(cmd.OutOrStdout(), fields[key])
	}
}
