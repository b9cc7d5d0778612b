package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirroredKeysAreCopiedToCookies(t *testing.T) {
	c := context.Background()
	dir := t.TempDir()

	store, err := Open(c, dir, false)
	require.NoError(t, err)
	require.NoError(t, store.Set(c, KeyToken, "jwt-value"))
	require.NoError(t, store.Set(c, KeyBasketID, "not-mirrored"))

	value, ok := store.cookies.get(KeyToken, store.now())
	assert.True(t, ok)
	assert.Equal(t, "jwt-value", value)
	_, ok = store.cookies.get(KeyBasketID, store.now())
	assert.False(t, ok)
}

func TestRehydrateFromCookies(t *testing.T) {
	c := context.Background()
	dir := t.TempDir()

	store, err := Open(c, dir, false)
	require.NoError(t, err)
	require.NoError(t, store.Set(c, KeyToken, "jwt-value"))
	require.NoError(t, store.Set(c, KeyTokenType, "Bearer"))

	// The primary store is wiped; cookies survive and reseed it.
	require.NoError(t, os.Remove(filepath.Join(dir, "session.json")))

	reopened, err := Open(c, dir, false)
	require.NoError(t, err)
	tokenType, token := reopened.Token()
	assert.Equal(t, "Bearer", tokenType)
	assert.Equal(t, "jwt-value", token)
}

func TestClearAuthKeepsBasket(t *testing.T) {
	c := context.Background()
	dir := t.TempDir()

	store, err := Open(c, dir, false)
	require.NoError(t, err)
	require.NoError(t, store.Set(c, KeyToken, "jwt-value"))
	require.NoError(t, store.Set(c, KeyBasketID, "basket-1"))

	require.NoError(t, store.ClearAuth(c))

	_, token := store.Token()
	assert.Empty(t, token)
	basketID, ok := store.Get(KeyBasketID)
	assert.True(t, ok)
	assert.Equal(t, "basket-1", basketID)

	// The cookie copy must be gone too or reopening would resurrect the token.
	reopened, err := Open(c, dir, false)
	require.NoError(t, err)
	_, token = reopened.Token()
	assert.Empty(t, token)
}

func TestClearWipesEverything(t *testing.T) {
	c := context.Background()
	dir := t.TempDir()

	store, err := Open(c, dir, false)
	require.NoError(t, err)
	require.NoError(t, store.Set(c, KeyToken, "jwt-value"))
	require.NoError(t, store.Set(c, KeyBasketID, "basket-1"))

	require.NoError(t, store.Clear(c))

	_, token := store.Token()
	assert.Empty(t, token)
	_, ok := store.Get(KeyBasketID)
	assert.False(t, ok)
}

func TestSetJSONRoundTrip(t *testing.T) {
	c := context.Background()
	store, err := Open(c, t.TempDir(), false)
	require.NoError(t, err)

	type filter struct {
		Category string `json:"category"`
	}
	require.NoError(t, store.SetJSON(c, KeyMenuFilter, filter{Category: "pizza"}))

	out := filter{}
	ok, err := store.GetJSON(KeyMenuFilter, &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "pizza", out.Category)

	ok, err = store.GetJSON("missing", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}
