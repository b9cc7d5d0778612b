package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tavolo/ordering/internal/common"
	"github.com/tavolo/ordering/internal/config"
	"github.com/tavolo/ordering/internal/infra"
	"github.com/tavolo/ordering/internal/log"
	"github.com/tavolo/ordering/internal/session"
	"github.com/tavolo/ordering/product/internal/otel"
	"github.com/tavolo/ordering/product/pkg/service"
)

func Command() *cobra.Command {
	var (
		filter     service.Filter
		saveFilter bool
	)
	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Browse the menu",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, span := otel.Tracer.Start(cmd.Context(), "menu list")
			defer span.End()

			menuSvc, _, err := newMenuService(c)
			if err != nil {
				return err
			}

			// A zero filter on the command line falls back to the last
			// saved selections.
			if filter == (service.Filter{}) {
				filter = menuSvc.SavedFilter()
			}

			products, err := menuSvc.Products(c)
			if err != nil {
				return err
			}
			page := service.Apply(products, filter)
			if len(page) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing on the menu matches")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE")
			for _, p := range page {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, p.Price.StringFixed(2))
			}
			w.Flush()

			if saveFilter {
				if err := menuSvc.SaveFilter(c, filter); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.Category, "category", "", "filter by category")
	cmd.Flags().StringVar(&filter.Type, "type", "", "filter by type")
	cmd.Flags().StringVar(&filter.Search, "search", "", "search name and description")
	cmd.Flags().StringVar(&filter.Sort, "sort", "", "sort key: name, -name, price, -price")
	cmd.Flags().IntVar(&filter.Page, "page", 0, "page number, 1-based")
	cmd.Flags().IntVar(&filter.PageSize, "page-size", 0, "items per page")
	cmd.Flags().BoolVar(&saveFilter, "save-filter", false, "remember these selections")

	cmd.AddCommand(showCommand(), categoriesCommand(), favoriteCommand())
	return cmd
}

func newMenuService(c context.Context) (*service.MenuService, *session.Store, error) {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyAppName, common.AppMenuView).
		Str(log.KeyTag, "menu newMenuService").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "init config").Logger()
	logger.Info().Msg("initializing config")
	c = logger.WithContext(c)
	cfg := config.InitConfig(c, common.AppName)
	logger.Info().Msg("initialized config")

	store, err := infra.NewSessionStore(c, cfg)
	if err != nil {
		return nil, nil, err
	}
	client := infra.NewRestClient(c, cfg, store)
	return service.NewMenuService(client, store), store, nil
}

func showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <productId>",
		Short: "Show a single menu item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, span := otel.Tracer.Start(cmd.Context(), "menu show")
			defer span.End()

			productID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("failed parsing productId=%s with error=%w", args[0], err)
			}
			menuSvc, _, err := newMenuService(c)
			if err != nil {
				return err
			}
			product, err := menuSvc.FindProductByID(c, productID)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "that product is not on the menu")
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %s)\n%s\nprice: %s\n",
				product.Name, product.Category, product.Type,
				product.Description, product.Price.StringFixed(2))
			return nil
		},
	}
}

func categoriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories and types",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, span := otel.Tracer.Start(cmd.Context(), "menu categories")
			defer span.End()

			menuSvc, _, err := newMenuService(c)
			if err != nil {
				return err
			}
			categories, err := menuSvc.Categories(c)
			if err != nil {
				return err
			}
			types, err := menuSvc.Types(c)
			if err != nil {
				return err
			}
			for _, category := range categories {
				fmt.Fprintln(cmd.OutOrStdout(), category.Name)
			}
			for _, productType := range types {
				fmt.Fprintln(cmd.OutOrStdout(), productType.Name)
			}
			return nil
		},
	}
}

func favoriteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <productId>",
		Short: "Toggle a product in your favorites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, span := otel.Tracer.Start(cmd.Context(), "menu favorite")
			defer span.End()

			productID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("failed parsing productId=%s with error=%w", args[0], err)
			}
			menuSvc, store, err := newMenuService(c)
			if err != nil {
				return err
			}

			email := currentEmail(store)
			if email == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "log in to keep favorites")
				return nil
			}
			added, err := menuSvc.ToggleFavorite(c, email, productID)
			if err != nil {
				return err
			}
			if added {
				fmt.Fprintln(cmd.OutOrStdout(), "added to favorites")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "removed from favorites")
			}
			return nil
		},
	}
}

func currentEmail(store *session.Store) string {
	user := struct {
		Email string `json:"email"`
	}{}
	if ok, err := store.GetJSON(session.KeyUserInfo, &user); !ok || err != nil {
		return ""
	}
	return user.Email
}
