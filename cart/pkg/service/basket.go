package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tavolo/ordering/cart/internal/otel"
	"github.com/tavolo/ordering/cart/pkg/request"
	"github.com/tavolo/ordering/cart/pkg/response"
	commonErrors "github.com/tavolo/ordering/internal/errors"
	"github.com/tavolo/ordering/internal/log"
	"github.com/tavolo/ordering/internal/rest"
	"github.com/tavolo/ordering/internal/session"
	productResponse "github.com/tavolo/ordering/product/pkg/response"
)

// BasketService holds the in-memory basket for the current session. State
// only changes after the server confirms a write; the echo replaces local
// state wholesale. There is no cross-process coordination: last writer wins.
type BasketService struct {
	client  *rest.Client
	session *session.Store
	basket  response.Basket
	loaded  bool
}

func NewBasketService(client *rest.Client, store *session.Store) *BasketService {
	return &BasketService{client: client, session: store}
}

// OpResult is what the display layer gets back from basket mutations.
// Failures are messages, not errors; nothing is thrown past this boundary.
type OpResult struct {
	Success bool
	Message string
}

func (s *BasketService) Basket() response.Basket {
	return s.basket
}

// Load fetches the basket for the stored id. On failure the basket stays
// empty and the error state is surfaced to the caller; no retry. A basket the
// server does not know yet is normal before the first add and loads empty.
func (s *BasketService) Load(c context.Context) error {
	c, span := otel.Tracer.Start(c, "BasketService Load")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "BasketService Load").
		Logger()

	basketID, generated, err := s.basketID(c)
	if err != nil {
		err = fmt.Errorf("failed resolving basket id with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger = logger.With().Str(log.KeyBasketID, basketID.String()).Logger()
	if generated {
		logger.Info().Msg("no basket stored yet, starting empty")
		s.basket = response.Basket{ID: basketID}
		s.loaded = true
		return nil
	}

	logger = logger.With().Str(log.KeyProcess, "fetching basket").Logger()
	logger.Info().Msg("fetching basket")
	basket := response.Basket{}
	err = s.client.Get(c, "basket/"+basketID.String(), nil, &basket)
	if err != nil {
		if apiErr, ok := rest.AsAPIError(err); ok && apiErr.StatusCode == http.StatusNotFound {
			logger.Info().Msg("basket not on server yet, starting empty")
			s.basket = response.Basket{ID: basketID}
			s.loaded = true
			return nil
		}
		err = fmt.Errorf("failed fetching basket with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		s.basket = response.Basket{}
		s.loaded = false
		return err
	}
	logger.Info().Msgf("fetched basket with %d items", len(basket.Items))

	s.basket = basket
	s.loaded = true
	return nil
}

// AddItem posts a full-basket replace containing the product snapshot. Adds
// of a product already in the basket merge into the existing row before the
// write; duplicates echoed back by the server are tolerated as-is.
func (s *BasketService) AddItem(
	c context.Context,
	product productResponse.Product,
	quantity int32,
) OpResult {
	c, span := otel.Tracer.Start(c, "BasketService AddItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "BasketService AddItem").
		Str(log.KeyProductID, product.ID.String()).
		Int32(log.KeyQuantity, quantity).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "validating add item").Logger()
	validate := validator.New(validator.WithRequiredStructEnabled())
	err := validate.StructCtx(c, request.AddItem{ProductID: product.ID, Quantity: quantity})
	if err != nil {
		err = fmt.Errorf("failed validating add item with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return OpResult{Success: false, Message: "quantity must be at least 1"}
	}

	c = logger.WithContext(c)
	if result := s.ensureLoaded(c); !result.Success {
		return result
	}

	logger = logger.With().Str(log.KeyProcess, "merging item into basket").Logger()
	payload := s.basket.Request()
	merged := false
	for i, item := range payload.Items {
		if item.ProductID != product.ID {
			continue
		}
		payload.Items[i].Quantity += quantity
		merged = true
		logger.Info().
			Int32("mergedQuantity", payload.Items[i].Quantity).
			Msg("merged quantity into existing row")
		break
	}
	if !merged {
		payload.Items = append(payload.Items, request.BasketItem{
			ID:         uuid.New(),
			ProductID:  product.ID,
			Name:       product.Name,
			PictureURL: product.PictureURL,
			Price:      product.Price,
			Quantity:   quantity,
		})
	}

	return s.replace(c, payload)
}

// RemoveItem posts a full-basket replace without the row. The echoed basket,
// which no longer carries the row, replaces local state.
func (s *BasketService) RemoveItem(c context.Context, itemID uuid.UUID) OpResult {
	c, span := otel.Tracer.Start(c, "BasketService RemoveItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "BasketService RemoveItem").
		Str(log.KeyBasketItemID, itemID.String()).
		Logger()

	c = logger.WithContext(c)
	if result := s.ensureLoaded(c); !result.Success {
		return result
	}

	payload := s.basket.Request()
	items := make([]request.BasketItem, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item.ID == itemID {
			continue
		}
		items = append(items, item)
	}
	if len(items) == len(payload.Items) {
		logger.Error().Msgf("basketItemId=%s not in basket", itemID.String())
		return OpResult{Success: false, Message: "item is not in the basket"}
	}
	payload.Items = items

	return s.replace(c, payload)
}

// IncrementItem bumps a row's quantity by one. DecrementItem lowers it;
// decrementing a quantity of one removes the row entirely.
func (s *BasketService) IncrementItem(c context.Context, itemID uuid.UUID) OpResult {
	return s.adjustQuantity(c, itemID, 1)
}

func (s *BasketService) DecrementItem(c context.Context, itemID uuid.UUID) OpResult {
	return s.adjustQuantity(c, itemID, -1)
}

func (s *BasketService) adjustQuantity(c context.Context, itemID uuid.UUID, delta int32) OpResult {
	c, span := otel.Tracer.Start(c, "BasketService adjustQuantity")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "BasketService adjustQuantity").
		Str(log.KeyBasketItemID, itemID.String()).
		Logger()

	c = logger.WithContext(c)
	if result := s.ensureLoaded(c); !result.Success {
		return result
	}

	payload := s.basket.Request()
	found := false
	for i, item := range payload.Items {
		if item.ID != itemID {
			continue
		}
		found = true
		next := item.Quantity + delta
		if next < 1 {
			return s.RemoveItem(c, itemID)
		}
		payload.Items[i].Quantity = next
	}
	if !found {
		logger.Error().Msgf("basketItemId=%s not in basket", itemID.String())
		return OpResult{Success: false, Message: "item is not in the basket"}
	}

	return s.replace(c, payload)
}

// SetDeliveryMethod writes the chosen delivery method id and its cost as the
// basket's shipping price. Unlike the item mutations this returns an error:
// the checkout flow owns the user-facing message for this write.
func (s *BasketService) SetDeliveryMethod(
	c context.Context,
	methodID uuid.UUID,
	shippingPrice decimal.Decimal,
) error {
	c, span := otel.Tracer.Start(c, "BasketService SetDeliveryMethod")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "BasketService SetDeliveryMethod").
		Str(log.KeyDeliveryMethodID, methodID.String()).
		Logger()

	if !s.loaded {
		c = logger.WithContext(c)
		if err := s.Load(c); err != nil {
			return err
		}
	}

	payload := s.basket.Request()
	payload.DeliveryMethodID = &methodID
	payload.ShippingPrice = shippingPrice

	logger = logger.With().Str(log.KeyProcess, "replacing basket").Logger()
	logger.Info().Msg("replacing basket with delivery method")
	basket := response.Basket{}
	err := s.client.Post(c, "basket", payload, &basket)
	if err != nil {
		err = fmt.Errorf("failed updating basket delivery method with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("replaced basket with delivery method")

	s.basket = basket
	return nil
}

// DeleteBasket removes the basket server side and forgets the stored id.
func (s *BasketService) DeleteBasket(c context.Context) error {
	c, span := otel.Tracer.Start(c, "BasketService DeleteBasket")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "BasketService DeleteBasket").
		Logger()

	raw, ok := s.session.Get(session.KeyBasketID)
	if !ok {
		s.basket = response.Basket{}
		s.loaded = false
		return nil
	}

	logger = logger.With().
		Str(log.KeyBasketID, raw).
		Str(log.KeyProcess, "deleting basket").
		Logger()
	logger.Info().Msg("deleting basket")
	if err := s.client.Delete(c, "basket/"+raw); err != nil {
		if apiErr, apiOk := rest.AsAPIError(err); !apiOk || apiErr.StatusCode != http.StatusNotFound {
			err = fmt.Errorf("failed deleting basket with error=%w", err)
			commonErrors.HandleError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return err
		}
	}
	logger.Info().Msg("deleted basket")

	c = logger.WithContext(c)
	return s.Forget(c)
}

// Forget drops the stored basket id and local state without touching the
// server. The checkout flow calls this after a successful order create.
func (s *BasketService) Forget(c context.Context) error {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "BasketService Forget").
		Logger()

	if err := s.session.Delete(c, session.KeyBasketID); err != nil {
		err = fmt.Errorf("failed deleting stored basket id with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	s.basket = response.Basket{}
	s.loaded = false
	logger.Info().Msg("forgot basket")
	return nil
}

func (s *BasketService) ensureLoaded(c context.Context) OpResult {
	if s.loaded {
		return OpResult{Success: true}
	}
	if err := s.Load(c); err != nil {
		return OpResult{Success: false, Message: failureMessage(err)}
	}
	return OpResult{Success: true}
}

// replace posts the full basket and installs the server echo. The echo is
// authoritative: whatever rows the server returns become local state, even if
// they differ from what was sent.
func (s *BasketService) replace(c context.Context, payload request.Basket) OpResult {
	c, span := otel.Tracer.Start(c, "BasketService replace")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "BasketService replace").
		Str(log.KeyBasketID, payload.ID.String()).
		Int(log.KeyBasketItems, len(payload.Items)).
		Str(log.KeyProcess, "replacing basket").
		Logger()

	logger.Info().Msg("replacing basket")
	basket := response.Basket{}
	err := s.client.Post(c, "basket", payload, &basket)
	if err != nil {
		err = fmt.Errorf("failed replacing basket with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return OpResult{Success: false, Message: failureMessage(err)}
	}
	logger.Info().Msgf("replaced basket, server echoed %d items", len(basket.Items))

	s.basket = basket
	return OpResult{Success: true}
}

// basketID returns the stored basket id, generating and persisting a fresh
// one when none exists yet. The id is reused for the whole session until
// explicitly cleared.
func (s *BasketService) basketID(c context.Context) (uuid.UUID, bool, error) {
	raw, ok := s.session.Get(session.KeyBasketID)
	if ok {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, false, fmt.Errorf("failed parsing stored basket id with error=%w", err)
		}
		return id, false, nil
	}

	id := uuid.New()
	if err := s.session.Set(c, session.KeyBasketID, id.String()); err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

func failureMessage(err error) string {
	if apiErr, ok := rest.AsAPIError(err); ok {
		return apiErr.Message()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "the ordering service took too long to respond"
	}
	return "could not reach the ordering service"
}
