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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonErrors "github.com/tavolo/ordering/internal/errors"
	"github.com/tavolo/ordering/internal/rest"
	"github.com/tavolo/ordering/internal/session"
	"github.com/tavolo/ordering/user/pkg/request"
	"github.com/tavolo/ordering/user/pkg/response"
)

const testPassword = "correct horse"

// fakeAuthBackend accepts a single known credential pair and hands out a
// signed token whose subject is the user's id.
type fakeAuthBackend struct {
	server      *httptest.Server
	email       string
	loginCalls  int
	sessionDead bool
}

func newFakeAuthBackend(t *testing.T) *fakeAuthBackend {
	backend := &fakeAuthBackend{email: "ada@example.com"}

	router := mux.NewRouter()
	router.HandleFunc("/Authentication/login", func(w http.ResponseWriter, r *http.Request) {
		backend.loginCalls++
		param := request.Login{}
		if err := json.NewDecoder(r.Body).Decode(&param); err != nil {
			t.Fatalf("failed decoding login payload with error: %s", err)
		}
		if param.Email != backend.email || param.Password != testPassword {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"invalid credentials"}`))
			return
		}
		backend.writeAuth(t, w, param.Email)
	}).Methods(http.MethodPost)
	router.HandleFunc("/Authentication/register", func(w http.ResponseWriter, r *http.Request) {
		param := request.Register{}
		if err := json.NewDecoder(r.Body).Decode(&param); err != nil {
			t.Fatalf("failed decoding register payload with error: %s", err)
		}
		if param.Email == backend.email {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"message":"email taken"}`))
			return
		}
		backend.writeAuth(t, w, param.Email)
	}).Methods(http.MethodPost)
	router.HandleFunc("/Authentication/user", func(w http.ResponseWriter, r *http.Request) {
		if backend.sessionDead || r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response.User{Email: backend.email, DisplayName: "Ada"})
	}).Methods(http.MethodGet)

	backend.server = httptest.NewServer(router)
	t.Cleanup(backend.server.Close)
	return backend
}

func (b *fakeAuthBackend) writeAuth(t *testing.T, w http.ResponseWriter, email string) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed signing test token with error: %s", err)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response.Auth{
		Email:        email,
		DisplayName:  "Ada",
		Token:        token,
		RefreshToken: "refresh-" + email,
	})
}

func newTestUserService(t *testing.T, backend *fakeAuthBackend) (*UserService, *session.Store) {
	store, err := session.Open(context.Background(), t.TempDir(), false)
	require.NoError(t, err)
	client := rest.NewClient(backend.server.URL, store)
	return NewUserService(client, store), store
}

func TestLoginPersistsSession(t *testing.T) {
	c := context.Background()
	backend := newFakeAuthBackend(t)
	userService, store := newTestUserService(t, backend)

	auth, err := userService.Login(c, request.Login{Email: backend.email, Password: testPassword})

	require.NoError(t, err)
	assert.Equal(t, backend.email, auth.Email)

	tokenType, token := store.Token()
	assert.Equal(t, "Bearer", tokenType)
	assert.Equal(t, auth.Token, token)
	expiry, ok := store.Get(session.KeyTokenExpiry)
	assert.True(t, ok)
	assert.NotEmpty(t, expiry)
	assert.Equal(t, backend.email, userService.Email())
}

func TestLoginFailureCountsAttempts(t *testing.T) {
	c := context.Background()
	backend := newFakeAuthBackend(t)
	userService, _ := newTestUserService(t, backend)

	_, err := userService.Login(c, request.Login{Email: backend.email, Password: "wrong"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email or password (1 of 5 attempts)")
}

func TestFifthFailureArmsLockout(t *testing.T) {
	c := context.Background()
	backend := newFakeAuthBackend(t)
	userService, _ := newTestUserService(t, backend)

	var err error
	for i := 0; i < session.MaxLoginAttempts; i++ {
		_, err = userService.Login(c, request.Login{Email: backend.email, Password: "wrong"})
		require.Error(t, err)
	}
	assert.ErrorIs(t, err, commonErrors.ErrLoginBlocked)
	assert.Greater(t, userService.BlockRemaining(), time.Duration(0))

	// Even the right password is refused while blocked, without touching
	// the backend.
	calls := backend.loginCalls
	_, err = userService.Login(c, request.Login{Email: backend.email, Password: testPassword})
	assert.ErrorIs(t, err, commonErrors.ErrLoginBlocked)
	assert.Equal(t, calls, backend.loginCalls)
}

func TestSuccessfulLoginResetsAttempts(t *testing.T) {
	c := context.Background()
	backend := newFakeAuthBackend(t)
	userService, store := newTestUserService(t, backend)

	for i := 0; i < session.MaxLoginAttempts-1; i++ {
		_, err := userService.Login(c, request.Login{Email: backend.email, Password: "wrong"})
		require.Error(t, err)
	}
	_, err := userService.Login(c, request.Login{Email: backend.email, Password: testPassword})
	require.NoError(t, err)

	_, ok := store.Get(session.KeyLoginAttempts)
	assert.False(t, ok)
	assert.Zero(t, userService.BlockRemaining())
}

func TestLoginValidatesInput(t *testing.T) {
	c := context.Background()
	backend := newFakeAuthBackend(t)
	userService, _ := newTestUserService(t, backend)

	_, err := userService.Login(c, request.Login{Email: "not-an-email", Password: "x"})

	require.Error(t, err)
	assert.Zero(t, backend.loginCalls)
}

func TestRegisterConflict(t *testing.T) {
	c := context.Background()
	backend := newFakeAuthBackend(t)
	userService, _ := newTestUserService(t, backend)

	_, err := userService.Register(c, request.Register{
		DisplayName: "Ada",
		Email:       backend.email,
		Password:    "long enough",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegisterLogsTheUserIn(t *testing.T) {
	c := context.Background()
	backend := newFakeAuthBackend(t)
	userService, store := newTestUserService(t, backend)

	auth, err := userService.Register(c, request.Register{
		DisplayName: "Grace",
		Email:       "grace@example.com",
		Password:    "long enough",
	})

	require.NoError(t, err)
	_, token := store.Token()
	assert.Equal(t, auth.Token, token)
}

func TestLogoutClearsCredentialsKeepsBasket(t *testing.T) {
	c := context.Background()
	backend := newFakeAuthBackend(t)
	userService, store := newTestUserService(t, backend)
	_, err := userService.Login(c, request.Login{Email: backend.email, Password: testPassword})
	require.NoError(t, err)
	require.NoError(t, store.Set(c, session.KeyBasketID, uuid.NewString()))

	require.NoError(t, userService.Logout(c))

	_, token := store.Token()
	assert.Empty(t, token)
	assert.Empty(t, userService.Email())
	_, ok := store.Get(session.KeyBasketID)
	assert.True(t, ok)
}

func TestCurrentUserWithoutToken(t *testing.T) {
	c := context.Background()
	backend := newFakeAuthBackend(t)
	userService, _ := newTestUserService(t, backend)

	_, err := userService.CurrentUser(c)

	assert.ErrorIs(t, err, commonErrors.ErrNotAuthenticated)
}

func TestCurrentUserExpiredSessionClearsAuth(t *testing.T) {
	c := context.Background()
	backend := newFakeAuthBackend(t)
	userService, store := newTestUserService(t, backend)
	// A stale token the backend no longer accepts.
	require.NoError(t, store.Set(c, session.KeyToken, "stale"))
	backend.sessionDead = true

	_, err := userService.CurrentUser(c)

	assert.ErrorIs(t, err, commonErrors.ErrSessionExpired)
	_, token := store.Token()
	assert.Empty(t, token)
}
