package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavolo/ordering/internal/session"
	"github.com/tavolo/ordering/product/pkg/response"
)

func menuFixture() []response.Product {
	return []response.Product{
		{ID: uuid.New(), Name: "Margherita", Description: "tomato and mozzarella", Price: decimal.NewFromInt(10), Category: "pizza", Type: "main"},
		{ID: uuid.New(), Name: "Calzone", Description: "folded pizza", Price: decimal.NewFromInt(12), Category: "pizza", Type: "main"},
		{ID: uuid.New(), Name: "Tiramisu", Description: "coffee and mascarpone", Price: decimal.NewFromInt(6), Category: "dessert", Type: "sweet"},
		{ID: uuid.New(), Name: "Espresso", Description: "coffee", Price: decimal.NewFromInt(2), Category: "drinks", Type: "hot"},
	}
}

func menuNames(products []response.Product) []string {
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}
	return names
}

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		filter   Filter
		expected []string
	}{
		{
			name:     "given empty filter should return everything",
			filter:   Filter{},
			expected: []string{"Margherita", "Calzone", "Tiramisu", "Espresso"},
		},
		{
			name:     "given category should match case insensitively",
			filter:   Filter{Category: "PIZZA"},
			expected: []string{"Margherita", "Calzone"},
		},
		{
			name:     "given type should filter by it",
			filter:   Filter{Type: "sweet"},
			expected: []string{"Tiramisu"},
		},
		{
			name:     "given search should match name and description",
			filter:   Filter{Search: "coffee"},
			expected: []string{"Tiramisu", "Espresso"},
		},
		{
			name:     "given name sort should order alphabetically",
			filter:   Filter{Sort: "name"},
			expected: []string{"Calzone", "Espresso", "Margherita", "Tiramisu"},
		},
		{
			name:     "given descending price sort should order expensive first",
			filter:   Filter{Sort: "-price"},
			expected: []string{"Calzone", "Margherita", "Tiramisu", "Espresso"},
		},
		{
			name:     "given page past the end should return empty",
			filter:   Filter{Page: 3, PageSize: 2},
			expected: []string{},
		},
		{
			name:     "given page size should slice the list",
			filter:   Filter{Sort: "name", Page: 2, PageSize: 3},
			expected: []string{"Tiramisu"},
		},
		{
			name:     "given combined filter and sort",
			filter:   Filter{Category: "pizza", Sort: "price"},
			expected: []string{"Margherita", "Calzone"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			actual := Apply(menuFixture(), test.filter)
			assert.Equal(t, test.expected, menuNames(actual))
		})
	}
}

func TestSavedFilterRoundTrip(t *testing.T) {
	c := context.Background()
	store, err := session.Open(c, t.TempDir(), false)
	require.NoError(t, err)
	menu := NewMenuService(nil, store)

	assert.Equal(t, Filter{}, menu.SavedFilter())

	saved := Filter{Category: "pizza", Sort: "-price", Page: 2}
	require.NoError(t, menu.SaveFilter(c, saved))
	assert.Equal(t, saved, menu.SavedFilter())
}

func TestToggleFavoriteIsScopedByEmail(t *testing.T) {
	c := context.Background()
	store, err := session.Open(c, t.TempDir(), false)
	require.NoError(t, err)
	menu := NewMenuService(nil, store)
	productID := uuid.New()

	favorite, err := menu.ToggleFavorite(c, "ada@example.com", productID)
	require.NoError(t, err)
	assert.True(t, favorite)
	assert.Equal(t, []uuid.UUID{productID}, menu.Favorites("ada@example.com"))
	assert.Empty(t, menu.Favorites("grace@example.com"))

	favorite, err = menu.ToggleFavorite(c, "ada@example.com", productID)
	require.NoError(t, err)
	assert.False(t, favorite)
	assert.Empty(t, menu.Favorites("ada@example.com"))
}
