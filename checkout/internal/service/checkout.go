package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	cartService "github.com/tavolo/ordering/cart/pkg/service"
	"github.com/tavolo/ordering/checkout/internal/otel"
	"github.com/tavolo/ordering/checkout/pkg/request"
	"github.com/tavolo/ordering/checkout/pkg/response"
	"github.com/tavolo/ordering/internal/common"
	commonErrors "github.com/tavolo/ordering/internal/errors"
	"github.com/tavolo/ordering/internal/log"
	"github.com/tavolo/ordering/internal/rest"
	"github.com/tavolo/ordering/internal/session"
)

type Step string

const (
	StepAddress  Step = "address"
	StepDelivery Step = "delivery"
	StepReview   Step = "review"
)

const keySavedAddress = "saved_address"

// CheckoutService is the three-step flow controller. Transitions are linear:
// forward only once the current step's requirements hold, backward always.
// Submission requires a complete address, a selected delivery method and a
// non-empty basket, all three re-checked at submit time.
type CheckoutService struct {
	client      *rest.Client
	session     *session.Store
	basket      *cartService.BasketService
	timeout     time.Duration
	step        Step
	address     request.Address
	methods     []response.DeliveryMethod
	selected    *response.DeliveryMethod
	fieldErrors map[string]string
}

func NewCheckoutService(
	client *rest.Client,
	store *session.Store,
	basket *cartService.BasketService,
	timeout time.Duration,
) *CheckoutService {
	return &CheckoutService{
		client:  client,
		session: store,
		basket:  basket,
		timeout: timeout,
		step:    StepAddress,
	}
}

func (s *CheckoutService) Step() Step {
	return s.step
}

func (s *CheckoutService) Address() request.Address {
	return s.address
}

// FieldErrors holds the field-level messages from the last address
// submission, client- or server-side.
func (s *CheckoutService) FieldErrors() map[string]string {
	return s.fieldErrors
}

func (s *CheckoutService) DeliveryMethods() []response.DeliveryMethod {
	return s.methods
}

func (s *CheckoutService) SelectedDelivery() *response.DeliveryMethod {
	return s.selected
}

// Begin enters the address step: loads the basket and any previously saved
// address. An unresolvable or empty basket aborts with ErrEmptyBasket, which
// the view layer turns into a redirect back to the cart.
func (s *CheckoutService) Begin(c context.Context) error {
	c, span := otel.Tracer.Start(c, "CheckoutService Begin")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService Begin").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "loading basket").Logger()
	logger.Info().Msg("loading basket")
	c = logger.WithContext(c)
	if err := s.basket.Load(c); err != nil {
		err = fmt.Errorf("failed loading basket with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	if s.basket.Basket().IsEmpty() {
		err := commonErrors.ErrEmptyBasket
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("loaded basket")

	logger = logger.With().Str(log.KeyProcess, "loading saved address").Logger()
	logger.Info().Msg("loading saved address")
	saved := request.Address{}
	err := s.client.Get(c, "Authentication/address", nil, &saved)
	if err != nil {
		// The profile fetch is a convenience; fall back to the locally
		// cached copy and start blank when neither exists.
		logger.Info().Err(err).Msg("no saved address on profile, trying local cache")
		if _, cacheErr := s.session.GetJSON(keySavedAddress, &saved); cacheErr != nil {
			logger.Info().Err(cacheErr).Msg("no cached address either, starting blank")
			saved = request.Address{}
		}
	} else if err := s.session.SetJSON(c, keySavedAddress, saved); err != nil {
		logger.Info().Err(err).Msg("failed caching address locally")
	}
	s.address = saved
	logger.Info().Msg("loaded saved address")

	s.step = StepAddress
	s.fieldErrors = nil
	return nil
}

// SubmitAddress validates the form, persists it under the user's profile and
// advances to the delivery step. On any validation failure the flow stays on
// address and FieldErrors carries the per-field messages.
func (s *CheckoutService) SubmitAddress(c context.Context, addr request.Address) error {
	c, span := otel.Tracer.Start(c, "CheckoutService SubmitAddress")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService SubmitAddress").
		Str(log.KeyStep, string(s.step)).
		Logger()

	if s.step != StepAddress {
		err := commonErrors.ErrStepNotComplete
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	logger = logger.With().Str(log.KeyProcess, "validating address").Logger()
	logger.Info().Msg("validating address")
	if fields := validateAddress(c, addr); len(fields) > 0 {
		s.fieldErrors = fields
		err := commonErrors.ErrIncompleteAddress
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("validated address")

	logger = logger.With().Str(log.KeyProcess, "saving address to profile").Logger()
	logger.Info().Msg("saving address to profile")
	cc, cancel := context.WithTimeout(c, s.timeout)
	defer cancel()
	err := s.client.Put(cc, "Authentication/address", addr, nil)
	if err != nil {
		err = fmt.Errorf("failed saving address with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		if apiErr, ok := rest.AsAPIError(err); ok {
			s.fieldErrors = apiErr.FieldErrors()
		}
		return err
	}
	logger.Info().Msg("saved address to profile")

	s.address = addr
	s.fieldErrors = nil
	if err := s.session.SetJSON(c, keySavedAddress, addr); err != nil {
		logger.Info().Err(err).Msg("failed caching address locally")
	}
	s.step = StepDelivery
	return nil
}

// LoadDeliveryMethods fetches the read-only delivery catalog for the
// delivery step.
func (s *CheckoutService) LoadDeliveryMethods(c context.Context) ([]response.DeliveryMethod, error) {
	c, span := otel.Tracer.Start(c, "CheckoutService LoadDeliveryMethods")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService LoadDeliveryMethods").
		Str(log.KeyProcess, "fetching delivery methods").
		Logger()

	logger.Info().Msg("fetching delivery methods")
	methods := []response.DeliveryMethod{}
	err := s.client.Get(c, "orders/deliveryMethods", nil, &methods)
	if err != nil {
		err = fmt.Errorf("failed fetching delivery methods with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Info().Msgf("fetched %d delivery methods", len(methods))

	s.methods = methods
	return methods, nil
}

// SelectDelivery picks a method out of the fetched catalog. Selecting is a
// local act; no server call happens until submit.
func (s *CheckoutService) SelectDelivery(methodID uuid.UUID) error {
	for i := range s.methods {
		if s.methods[i].ID == methodID {
			s.selected = &s.methods[i]
			return nil
		}
	}
	return commonErrors.ErrDeliveryNotInCatalog
}

// ConfirmDelivery advances delivery → review. No server call on this
// transition alone.
func (s *CheckoutService) ConfirmDelivery() error {
	if s.step != StepDelivery {
		return commonErrors.ErrStepNotComplete
	}
	if s.selected == nil {
		return commonErrors.ErrMissingDelivery
	}
	s.step = StepReview
	return nil
}

// Back steps the flow backward one step; at the address step it stays put.
func (s *CheckoutService) Back() Step {
	switch s.step {
	case StepReview:
		s.step = StepDelivery
	case StepDelivery:
		s.step = StepAddress
	}
	return s.step
}

// Total is the displayed total: basket subtotal plus the selected delivery
// cost, recomputed on every call.
func (s *CheckoutService) Total() decimal.Decimal {
	total := s.basket.Basket().Subtotal()
	if s.selected != nil {
		total = total.Add(s.selected.Price)
	}
	return total
}

// Submit runs the review-step submission: re-validates the three
// preconditions, then two sequential calls — update the remote basket with
// the delivery method, then create the order. A failure at either call
// leaves the flow on review with the stored basket id intact; a failed order
// create after a successful basket update is not compensated.
func (s *CheckoutService) Submit(c context.Context) (response.CreatedOrder, error) {
	c, span := otel.Tracer.Start(c, "CheckoutService Submit")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService Submit").
		Str(log.KeyStep, string(s.step)).
		Logger()

	if s.step != StepReview {
		err := commonErrors.ErrStepNotComplete
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CreatedOrder{}, err
	}

	logger = logger.With().Str(log.KeyProcess, "revalidating").Logger()
	logger.Info().Msg("revalidating address, delivery method and basket")
	if fields := validateAddress(c, s.address); len(fields) > 0 {
		s.fieldErrors = fields
		err := commonErrors.ErrIncompleteAddress
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CreatedOrder{}, err
	}
	if s.selected == nil {
		err := commonErrors.ErrMissingDelivery
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CreatedOrder{}, err
	}
	basket := s.basket.Basket()
	if basket.IsEmpty() {
		err := commonErrors.ErrEmptyBasket
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CreatedOrder{}, err
	}
	logger.Info().Msg("revalidated")

	logger = logger.With().
		Str(log.KeyBasketID, basket.ID.String()).
		Str(log.KeyDeliveryMethodID, s.selected.ID.String()).
		Str(log.KeyProcess, "updating basket delivery").
		Logger()
	logger.Info().Msg("updating basket with delivery method")
	cc, cancel := context.WithTimeout(c, s.timeout)
	err := s.basket.SetDeliveryMethod(cc, s.selected.ID, s.selected.Price)
	cancel()
	if err != nil {
		err = fmt.Errorf("failed updating basket delivery method with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CreatedOrder{}, s.decodeSubmitError(c, err)
	}
	logger.Info().Msg("updated basket with delivery method")

	logger = logger.With().Str(log.KeyProcess, "creating order").Logger()
	logger.Info().Msg("creating order")
	_, token := s.session.Token()
	userID, err := common.UserIDFromToken(token)
	if err != nil {
		err = fmt.Errorf("failed resolving user id with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CreatedOrder{}, commonErrors.ErrSessionExpired
	}
	created := response.CreatedOrder{}
	cc, cancel = context.WithTimeout(c, s.timeout)
	err = s.client.Post(cc, "orders/"+userID.String(), request.CreateOrder{
		BasketID:         basket.ID,
		DeliveryMethodID: s.selected.ID,
		ShipToAddress:    s.address,
	}, &created)
	cancel()
	if err != nil {
		err = fmt.Errorf("failed creating order with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CreatedOrder{}, s.decodeSubmitError(c, err)
	}
	logger = logger.With().Str(log.KeyOrderID, created.ID.String()).Logger()
	logger.Info().Msg("created order")

	logger = logger.With().Str(log.KeyProcess, "forgetting basket").Logger()
	logger.Info().Msg("forgetting basket")
	c = logger.WithContext(c)
	if err := s.basket.Forget(c); err != nil {
		// The order exists; a leftover basket id only means the next
		// session starts from a stale basket.
		logger.Error().Err(err).Msg(err.Error())
	}
	logger.Info().Msg("forgot basket")

	return created, nil
}

// decodeSubmitError maps a failed submit call onto the user-facing outcome.
// 401 additionally clears the stored credentials: the session is gone and
// the view layer redirects to login.
func (s *CheckoutService) decodeSubmitError(c context.Context, err error) error {
	apiErr, ok := rest.AsAPIError(err)
	if !ok {
		return err
	}
	switch {
	case apiErr.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("the order was rejected: %s", apiErr.Message())
	case apiErr.StatusCode == http.StatusUnauthorized:
		if clearErr := s.session.ClearAuth(c); clearErr != nil {
			zerolog.Ctx(c).Error().Err(clearErr).Msg(clearErr.Error())
		}
		return commonErrors.ErrSessionExpired
	case apiErr.StatusCode == http.StatusNotFound:
		return commonErrors.ErrBasketNotFound
	case apiErr.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("the ordering service failed: %s", apiErr.Message())
	default:
		return fmt.Errorf("checkout failed: %s", apiErr.Message())
	}
}

var addressLabels = map[string]string{
	"FirstName": "First name",
	"LastName":  "Last name",
	"Street":    "Street",
	"City":      "City",
	"Country":   "Country",
}

func validateAddress(c context.Context, addr request.Address) map[string]string {
	validate := validator.New(validator.WithRequiredStructEnabled())
	err := validate.StructCtx(c, addr)
	if err == nil {
		return nil
	}
	fields := map[string]string{}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		fields["address"] = err.Error()
		return fields
	}
	for _, fieldErr := range validationErrors {
		label, ok := addressLabels[fieldErr.Field()]
		if !ok {
			label = fieldErr.Field()
		}
		fields[fieldErr.Field()] = label + " is required"
	}
	return fields
}
