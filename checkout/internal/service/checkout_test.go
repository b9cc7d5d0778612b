package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartRequest "github.com/tavolo/ordering/cart/pkg/request"
	cartService "github.com/tavolo/ordering/cart/pkg/service"
	"github.com/tavolo/ordering/checkout/pkg/request"
	"github.com/tavolo/ordering/checkout/pkg/response"
	commonErrors "github.com/tavolo/ordering/internal/errors"
	"github.com/tavolo/ordering/internal/rest"
	"github.com/tavolo/ordering/internal/session"
	productResponse "github.com/tavolo/ordering/product/pkg/response"
)

// fakeCheckoutBackend plays the whole ordering API surface the flow touches:
// basket reads and full-replace writes, the profile address, the delivery
// catalog and order creation.
type fakeCheckoutBackend struct {
	server *httptest.Server

	basket      *cartRequest.Basket
	methods     []response.DeliveryMethod
	createdID   uuid.UUID
	orderStatus int
	orderCalls  int
}

func newFakeCheckoutBackend(t *testing.T) *fakeCheckoutBackend {
	backend := &fakeCheckoutBackend{
		createdID: uuid.New(),
		methods: []response.DeliveryMethod{
			{ID: uuid.New(), ShortName: "courier", Price: decimal.NewFromInt(5)},
			{ID: uuid.New(), ShortName: "pickup", Price: decimal.Zero},
		},
	}

	router := mux.NewRouter()
	router.HandleFunc("/basket", func(w http.ResponseWriter, r *http.Request) {
		payload := cartRequest.Basket{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed decoding basket payload with error: %s", err)
		}
		backend.basket = &payload
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("failed echoing basket payload with error: %s", err)
		}
	}).Methods(http.MethodPost)
	router.HandleFunc("/basket/{id}", func(w http.ResponseWriter, r *http.Request) {
		if backend.basket == nil || backend.basket.ID.String() != mux.Vars(r)["id"] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(backend.basket); err != nil {
			t.Fatalf("failed encoding basket with error: %s", err)
		}
	}).Methods(http.MethodGet)
	router.HandleFunc("/Authentication/address", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)
	router.HandleFunc("/Authentication/address", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodPut)
	router.HandleFunc("/orders/deliveryMethods", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(backend.methods); err != nil {
			t.Fatalf("failed encoding delivery methods with error: %s", err)
		}
	}).Methods(http.MethodGet)
	router.HandleFunc("/orders/{userId}", func(w http.ResponseWriter, r *http.Request) {
		backend.orderCalls++
		if backend.orderStatus != 0 {
			w.WriteHeader(backend.orderStatus)
			_, _ = w.Write([]byte(`{"message":"kitchen is closed"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response.CreatedOrder{ID: backend.createdID}); err != nil {
			t.Fatalf("failed encoding created order with error: %s", err)
		}
	}).Methods(http.MethodPost)

	backend.server = httptest.NewServer(router)
	t.Cleanup(backend.server.Close)
	return backend
}

func signedTestToken(t *testing.T, userID uuid.UUID) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed signing test token with error: %s", err)
	}
	return token
}

func newTestCheckout(t *testing.T, backend *fakeCheckoutBackend) (*CheckoutService, *cartService.BasketService, *session.Store) {
	c := context.Background()
	store, err := session.Open(c, t.TempDir(), false)
	require.NoError(t, err)
	require.NoError(t, store.Set(c, session.KeyToken, signedTestToken(t, uuid.New())))

	client := rest.NewClient(backend.server.URL, store)
	basket := cartService.NewBasketService(client, store)
	return NewCheckoutService(client, store, basket, 5*time.Second), basket, store
}

func seedBasket(t *testing.T, basket *cartService.BasketService) {
	result := basket.AddItem(context.Background(), productResponse.Product{
		ID:    uuid.New(),
		Name:  "margherita",
		Price: decimal.NewFromInt(10),
	}, 2)
	require.True(t, result.Success, result.Message)
}

func completeAddress() request.Address {
	return request.Address{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Street:    "12 Forno Lane",
		City:      "Torino",
		Country:   "Italy",
	}
}

func TestBeginWithEmptyBasket(t *testing.T) {
	backend := newFakeCheckoutBackend(t)
	checkout, _, _ := newTestCheckout(t, backend)

	err := checkout.Begin(context.Background())

	assert.ErrorIs(t, err, commonErrors.ErrEmptyBasket)
}

func TestSubmitAddressMissingCityStaysOnAddress(t *testing.T) {
	c := context.Background()
	backend := newFakeCheckoutBackend(t)
	checkout, basket, _ := newTestCheckout(t, backend)
	seedBasket(t, basket)
	require.NoError(t, checkout.Begin(c))

	addr := completeAddress()
	addr.City = ""
	err := checkout.SubmitAddress(c, addr)

	assert.ErrorIs(t, err, commonErrors.ErrIncompleteAddress)
	assert.Equal(t, StepAddress, checkout.Step())
	assert.Equal(t, "City is required", checkout.FieldErrors()["City"])
}

func TestConfirmDeliveryRequiresSelection(t *testing.T) {
	c := context.Background()
	backend := newFakeCheckoutBackend(t)
	checkout, basket, _ := newTestCheckout(t, backend)
	seedBasket(t, basket)
	require.NoError(t, checkout.Begin(c))
	require.NoError(t, checkout.SubmitAddress(c, completeAddress()))

	err := checkout.ConfirmDelivery()

	assert.ErrorIs(t, err, commonErrors.ErrMissingDelivery)
	assert.Equal(t, StepDelivery, checkout.Step())
}

func TestStepsCannotBeSkipped(t *testing.T) {
	c := context.Background()
	backend := newFakeCheckoutBackend(t)
	checkout, basket, _ := newTestCheckout(t, backend)
	seedBasket(t, basket)
	require.NoError(t, checkout.Begin(c))

	assert.ErrorIs(t, checkout.ConfirmDelivery(), commonErrors.ErrStepNotComplete)
	_, err := checkout.Submit(c)
	assert.ErrorIs(t, err, commonErrors.ErrStepNotComplete)
	assert.Equal(t, StepAddress, checkout.Step())
}

func TestSelectDeliveryOutsideCatalog(t *testing.T) {
	c := context.Background()
	backend := newFakeCheckoutBackend(t)
	checkout, basket, _ := newTestCheckout(t, backend)
	seedBasket(t, basket)
	require.NoError(t, checkout.Begin(c))
	require.NoError(t, checkout.SubmitAddress(c, completeAddress()))
	_, err := checkout.LoadDeliveryMethods(c)
	require.NoError(t, err)

	err = checkout.SelectDelivery(uuid.New())

	assert.ErrorIs(t, err, commonErrors.ErrDeliveryNotInCatalog)
	assert.Nil(t, checkout.SelectedDelivery())
}

func TestBackWalksTheFlowBackward(t *testing.T) {
	c := context.Background()
	backend := newFakeCheckoutBackend(t)
	checkout, basket, _ := newTestCheckout(t, backend)
	seedBasket(t, basket)
	require.NoError(t, checkout.Begin(c))
	require.NoError(t, checkout.SubmitAddress(c, completeAddress()))
	_, err := checkout.LoadDeliveryMethods(c)
	require.NoError(t, err)
	require.NoError(t, checkout.SelectDelivery(backend.methods[0].ID))
	require.NoError(t, checkout.ConfirmDelivery())

	assert.Equal(t, StepDelivery, checkout.Back())
	assert.Equal(t, StepAddress, checkout.Back())
	assert.Equal(t, StepAddress, checkout.Back())
}

func TestTotalIsSubtotalPlusDelivery(t *testing.T) {
	c := context.Background()
	backend := newFakeCheckoutBackend(t)
	checkout, basket, _ := newTestCheckout(t, backend)
	seedBasket(t, basket)
	require.NoError(t, checkout.Begin(c))
	require.NoError(t, checkout.SubmitAddress(c, completeAddress()))
	_, err := checkout.LoadDeliveryMethods(c)
	require.NoError(t, err)
	require.NoError(t, checkout.SelectDelivery(backend.methods[0].ID))

	assert.True(t, decimal.NewFromInt(25).Equal(checkout.Total()))
}

func TestSubmitCreatesOrderAndForgetsBasket(t *testing.T) {
	c := context.Background()
	backend := newFakeCheckoutBackend(t)
	checkout, basket, store := newTestCheckout(t, backend)
	seedBasket(t, basket)
	require.NoError(t, checkout.Begin(c))
	require.NoError(t, checkout.SubmitAddress(c, completeAddress()))
	_, err := checkout.LoadDeliveryMethods(c)
	require.NoError(t, err)
	require.NoError(t, checkout.SelectDelivery(backend.methods[0].ID))
	require.NoError(t, checkout.ConfirmDelivery())

	created, err := checkout.Submit(c)

	require.NoError(t, err)
	assert.Equal(t, backend.createdID, created.ID)
	_, ok := store.Get(session.KeyBasketID)
	assert.False(t, ok)

	// The delivery method reached the basket before the order was created.
	require.NotNil(t, backend.basket.DeliveryMethodID)
	assert.Equal(t, backend.methods[0].ID, *backend.basket.DeliveryMethodID)
	assert.True(t, decimal.NewFromInt(5).Equal(backend.basket.ShippingPrice))
}

func TestSubmitFailureKeepsBasketAndStaysOnReview(t *testing.T) {
	c := context.Background()
	backend := newFakeCheckoutBackend(t)
	checkout, basket, store := newTestCheckout(t, backend)
	seedBasket(t, basket)
	require.NoError(t, checkout.Begin(c))
	require.NoError(t, checkout.SubmitAddress(c, completeAddress()))
	_, err := checkout.LoadDeliveryMethods(c)
	require.NoError(t, err)
	require.NoError(t, checkout.SelectDelivery(backend.methods[0].ID))
	require.NoError(t, checkout.ConfirmDelivery())

	backend.orderStatus = http.StatusInternalServerError
	_, err = checkout.Submit(c)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "the ordering service failed")
	assert.Contains(t, err.Error(), "kitchen is closed")
	assert.Equal(t, StepReview, checkout.Step())
	_, ok := store.Get(session.KeyBasketID)
	assert.True(t, ok)

	// Clearing the failure lets the same flow submit again.
	backend.orderStatus = 0
	created, err := checkout.Submit(c)
	require.NoError(t, err)
	assert.Equal(t, backend.createdID, created.ID)
}

func TestSubmitUnauthorizedClearsSession(t *testing.T) {
	c := context.Background()
	backend := newFakeCheckoutBackend(t)
	checkout, basket, store := newTestCheckout(t, backend)
	seedBasket(t, basket)
	require.NoError(t, checkout.Begin(c))
	require.NoError(t, checkout.SubmitAddress(c, completeAddress()))
	_, err := checkout.LoadDeliveryMethods(c)
	require.NoError(t, err)
	require.NoError(t, checkout.SelectDelivery(backend.methods[0].ID))
	require.NoError(t, checkout.ConfirmDelivery())

	backend.orderStatus = http.StatusUnauthorized
	_, err = checkout.Submit(c)

	assert.ErrorIs(t, err, commonErrors.ErrSessionExpired)
	_, token := store.Token()
	assert.Empty(t, token)
}
