package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	commonErrors "github.com/tavolo/ordering/internal/errors"
	"github.com/tavolo/ordering/internal/log"
	"github.com/tavolo/ordering/internal/rest"
	"github.com/tavolo/ordering/internal/session"
	"github.com/tavolo/ordering/product/internal/otel"
	"github.com/tavolo/ordering/product/pkg/response"
)

// Filter is the menu view's selection state. It is applied client side over
// the fetched list and persisted between runs as a convenience.
type Filter struct {
	Category string `json:"category,omitempty"`
	Type     string `json:"type,omitempty"`
	Search   string `json:"search,omitempty"`
	Sort     string `json:"sort,omitempty"`
	Page     int    `json:"page,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

const DefaultPageSize = 12

type MenuService struct {
	client  *rest.Client
	session *session.Store
}

func NewMenuService(client *rest.Client, store *session.Store) *MenuService {
	return &MenuService{client: client, session: store}
}

func (s *MenuService) Products(c context.Context) ([]response.Product, error) {
	c, span := otel.Tracer.Start(c, "MenuService Products")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "MenuService Products").
		Str(log.KeyProcess, "fetching products").
		Logger()

	logger.Info().Msg("fetching products")
	products := []response.Product{}
	err := s.client.Get(c, "products", nil, &products)
	if err != nil {
		err = fmt.Errorf("failed fetching products with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Info().Msgf("fetched %d products", len(products))

	return products, nil
}

func (s *MenuService) FindProductByID(c context.Context, id uuid.UUID) (response.Product, error) {
	c, span := otel.Tracer.Start(c, "MenuService FindProductByID")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "MenuService FindProductByID").
		Str(log.KeyProductID, id.String()).
		Logger()

	logger.Info().Msgf("fetching productId=%s", id.String())
	product := response.Product{}
	err := s.client.Get(c, "products/"+id.String(), nil, &product)
	if err != nil {
		err = fmt.Errorf("failed fetching productId=%s with error=%w", id.String(), err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Product{}, err
	}
	logger.Info().Msgf("fetched productId=%s", id.String())

	return product, nil
}

func (s *MenuService) Categories(c context.Context) ([]response.Category, error) {
	c, span := otel.Tracer.Start(c, "MenuService Categories")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "MenuService Categories").
		Logger()

	categories := []response.Category{}
	err := s.client.Get(c, "products/categories", nil, &categories)
	if err != nil {
		err = fmt.Errorf("failed fetching categories with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	return categories, nil
}

func (s *MenuService) Types(c context.Context) ([]response.ProductType, error) {
	c, span := otel.Tracer.Start(c, "MenuService Types")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "MenuService Types").
		Logger()

	types := []response.ProductType{}
	err := s.client.Get(c, "products/types", nil, &types)
	if err != nil {
		err = fmt.Errorf("failed fetching product types with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	return types, nil
}

// SaveFilter persists the menu selections; SavedFilter restores them,
// returning a zero Filter when nothing was stored.
func (s *MenuService) SaveFilter(c context.Context, f Filter) error {
	return s.session.SetJSON(c, session.KeyMenuFilter, f)
}

func (s *MenuService) SavedFilter() Filter {
	f := Filter{}
	if ok, err := s.session.GetJSON(session.KeyMenuFilter, &f); !ok || err != nil {
		return Filter{}
	}
	return f
}

// ToggleFavorite flips a product in the per-user favorites list and reports
// whether the product is now a favorite.
func (s *MenuService) ToggleFavorite(
	c context.Context,
	email string,
	productID uuid.UUID,
) (bool, error) {
	key := session.FavoritesKey(email)
	favorites := []uuid.UUID{}
	if _, err := s.session.GetJSON(key, &favorites); err != nil {
		return false, err
	}

	for i, id := range favorites {
		if id == productID {
			favorites = append(favorites[:i], favorites[i+1:]...)
			return false, s.session.SetJSON(c, key, favorites)
		}
	}
	favorites = append(favorites, productID)
	return true, s.session.SetJSON(c, key, favorites)
}

func (s *MenuService) Favorites(email string) []uuid.UUID {
	favorites := []uuid.UUID{}
	if ok, err := s.session.GetJSON(session.FavoritesKey(email), &favorites); !ok || err != nil {
		return nil
	}
	return favorites
}

// Apply filters, sorts and pages the fetched list. Sort keys: name, -name,
// price, -price. Page is 1-based; a zero PageSize falls back to the default.
func Apply(products []response.Product, f Filter) []response.Product {
	filtered := make([]response.Product, 0, len(products))
	search := strings.ToLower(f.Search)
	for _, p := range products {
		if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
			continue
		}
		if f.Type != "" && !strings.EqualFold(p.Type, f.Type) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		filtered = append(filtered, p)
	}

	switch f.Sort {
	case "name":
		sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Name < filtered[j].Name })
	case "-name":
		sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Name > filtered[j].Name })
	case "price":
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].Price.LessThan(filtered[j].Price)
		})
	case "-price":
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[j].Price.LessThan(filtered[i].Price)
		})
	}

	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(filtered) {
		return []response.Product{}
	}
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end]
}
