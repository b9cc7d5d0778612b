package service

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tavolo/ordering/internal/common"
	commonErrors "github.com/tavolo/ordering/internal/errors"
	"github.com/tavolo/ordering/internal/log"
	"github.com/tavolo/ordering/internal/rest"
	"github.com/tavolo/ordering/internal/session"
	"github.com/tavolo/ordering/order/internal/otel"
	"github.com/tavolo/ordering/order/pkg/response"
)

type OrderService struct {
	client  *rest.Client
	session *session.Store
}

func NewOrderService(client *rest.Client, store *session.Store) *OrderService {
	return &OrderService{client: client, session: store}
}

// UserOrders lists the authenticated user's order history. The user id comes
// out of the bearer token's subject claim.
func (s *OrderService) UserOrders(c context.Context) ([]response.Order, error) {
	c, span := otel.Tracer.Start(c, "OrderService UserOrders")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderService UserOrders").
		Logger()

	userID, err := s.userID()
	if err != nil {
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger = logger.With().Str(log.KeyUserID, userID.String()).Logger()

	logger = logger.With().Str(log.KeyProcess, "fetching orders").Logger()
	logger.Info().Msg("fetching orders")
	orders := []response.Order{}
	err = s.client.Get(c, "orders/UserOrders/"+userID.String(), nil, &orders)
	if err != nil {
		err = fmt.Errorf("failed fetching orders with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, s.expireOnUnauthorized(c, err)
	}
	logger.Info().Msgf("fetched %d orders", len(orders))

	return orders, nil
}

func (s *OrderService) FindOrderByID(c context.Context, id uuid.UUID) (response.Order, error) {
	c, span := otel.Tracer.Start(c, "OrderService FindOrderByID")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderService FindOrderByID").
		Str(log.KeyOrderID, id.String()).
		Logger()

	logger.Info().Msgf("fetching orderId=%s", id.String())
	order := response.Order{}
	err := s.client.Get(c, "orders/"+id.String(), nil, &order)
	if err != nil {
		err = fmt.Errorf("failed fetching orderId=%s with error=%w", id.String(), err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, s.expireOnUnauthorized(c, err)
	}
	logger.Info().Msgf("fetched orderId=%s", id.String())

	return order, nil
}

// Track reads the tracking feed. Unlike everything else this endpoint speaks
// text/plain: one event per line, an RFC3339 timestamp followed by the
// status text. Lines that carry no timestamp become status-only events.
func (s *OrderService) Track(c context.Context, id uuid.UUID) ([]response.TrackingEvent, error) {
	c, span := otel.Tracer.Start(c, "OrderService Track")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderService Track").
		Str(log.KeyOrderID, id.String()).
		Logger()

	logger.Info().Msgf("tracking orderId=%s", id.String())
	body, err := s.client.GetText(c, "orders/"+id.String()+"/track")
	if err != nil {
		err = fmt.Errorf("failed tracking orderId=%s with error=%w", id.String(), err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}

	events := []response.TrackingEvent{}
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		stamp, status, found := strings.Cut(line, " ")
		if found {
			if at, parseErr := time.Parse(time.RFC3339, stamp); parseErr == nil {
				events = append(events, response.TrackingEvent{At: at, Status: status})
				continue
			}
		}
		events = append(events, response.TrackingEvent{Status: line})
	}
	logger.Info().Msgf("parsed %d tracking events", len(events))

	return events, nil
}

// expireOnUnauthorized turns a 401 into a dead session: credentials are
// cleared and the caller redirects to login.
func (s *OrderService) expireOnUnauthorized(c context.Context, err error) error {
	apiErr, ok := rest.AsAPIError(err)
	if !ok || apiErr.StatusCode != http.StatusUnauthorized {
		return err
	}
	if clearErr := s.session.ClearAuth(c); clearErr != nil {
		zerolog.Ctx(c).Error().Err(clearErr).Msg(clearErr.Error())
	}
	return commonErrors.ErrSessionExpired
}

func (s *OrderService) userID() (uuid.UUID, error) {
	_, token := s.session.Token()
	if token == "" {
		return uuid.Nil, commonErrors.ErrNotAuthenticated
	}
	return common.UserIDFromToken(token)
}
