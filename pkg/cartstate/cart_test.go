package cartstate

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestAddIncrementsExistingLine(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	var cart Cart

	require.NoError(t, cart.Add(a, 1, price("50")))
	require.NoError(t, cart.Add(b, 2, price("10")))
	require.NoError(t, cart.Add(a, 3, price("99")))

	require.Len(t, cart.Items, 2)
	assert.Equal(t, a, cart.Items[0].ProductID)
	assert.Equal(t, 4, cart.Items[0].Quantity)
	assert.True(t, cart.Items[0].UnitPrice.Equal(price("50")), "price from first add is kept")
	assert.Equal(t, 6, cart.Count())
	assert.True(t, cart.Subtotal().Equal(price("220")))
}

func TestAddRejectsBadInput(t *testing.T) {
	var cart Cart
	assert.ErrorIs(t, cart.Add(uuid.New(), 0, price("1")), ErrInvalidQuantity)
	assert.ErrorIs(t, cart.Add(uuid.Nil, 1, price("1")), ErrInvalidProduct)
	assert.Empty(t, cart.Items)
}

func TestSetQuantityBelowOneRemoves(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	cart := Cart{Items: []Item{{ProductID: a, Quantity: 2}, {ProductID: b, Quantity: 1}}}

	cart.SetQuantity(a, 5)
	item, ok := cart.Find(a)
	require.True(t, ok)
	assert.Equal(t, 5, item.Quantity)

	cart.SetQuantity(a, 0)
	_, ok = cart.Find(a)
	assert.False(t, ok)

	cart.SetQuantity(uuid.New(), 3)
	assert.Len(t, cart.Items, 1)

	cart.Remove(uuid.New())
	cart.Remove(b)
	assert.Empty(t, cart.Items)
}

func TestMergeSumsQuantities(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	local := Cart{Items: []Item{{ProductID: a, Quantity: 2, UnitPrice: price("10")}}}
	server := Cart{Items: []Item{
		{ProductID: a, Quantity: 1, UnitPrice: price("10")},
		{ProductID: b, Quantity: 3, UnitPrice: price("5")},
	}}

	merged := Merge(local, server)

	require.Len(t, merged.Items, 2)
	assert.Equal(t, a, merged.Items[0].ProductID)
	assert.Equal(t, 3, merged.Items[0].Quantity)
	assert.Equal(t, b, merged.Items[1].ProductID)
	assert.Equal(t, 3, merged.Items[1].Quantity)

	assert.Equal(t, 2, local.Items[0].Quantity, "inputs are not mutated")
	assert.Equal(t, 1, server.Items[0].Quantity, "inputs are not mutated")
}

func TestMergeAppendsLocalOnlyInLocalOrder(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	local := Cart{Items: []Item{{ProductID: c, Quantity: 1}, {ProductID: b, Quantity: 1}}}
	server := Cart{Items: []Item{{ProductID: a, Quantity: 1}}}

	merged := Merge(local, server)
	ids := []uuid.UUID{}
	for _, item := range merged.Items {
		ids = append(ids, item.ProductID)
	}
	assert.Equal(t, []uuid.UUID{a, c, b}, ids)
}

func TestNormalizeFoldsDuplicatesAndDropsInvalid(t *testing.T) {
	a := uuid.New()
	cart := Normalize([]Item{
		{ProductID: a, Quantity: 1},
		{ProductID: uuid.Nil, Quantity: 4},
		{ProductID: a, Quantity: 2},
		{ProductID: uuid.New(), Quantity: 0},
	})
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
}

func TestCloneIsIndependent(t *testing.T) {
	a := uuid.New()
	cart := Cart{Items: []Item{{ProductID: a, Quantity: 1}}}
	clone := cart.Clone()
	clone.SetQuantity(a, 9)
	assert.Equal(t, 1, cart.Items[0].Quantity)
}
