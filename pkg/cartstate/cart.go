// Package cartstate holds the cart and wishlist state transitions shared by
// the server cart service and the client sync store. Every function is pure
// with respect to its receiver: no I/O and no clocks.
package cartstate

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidProduct  = errors.New("product id is required")
)

// Item is one cart line. UnitPrice is the price seen when the line was first
// added; checkout never trusts it.
type Item struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Cart is an insertion-ordered list of lines with unique product IDs.
type Cart struct {
	Items []Item `json:"items"`
}

// Clone returns a deep copy.
func (c Cart) Clone() Cart {
	items := make([]Item, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}

func (c Cart) index(productID uuid.UUID) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// Find returns the line for productID.
func (c Cart) Find(productID uuid.UUID) (Item, bool) {
	if i := c.index(productID); i >= 0 {
		return c.Items[i], true
	}
	return Item{}, false
}

// Add increases the quantity of an existing line or appends a new one.
func (c *Cart) Add(productID uuid.UUID, qty int, price decimal.Decimal) error {
	if productID == uuid.Nil {
		return ErrInvalidProduct
	}
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if i := c.index(productID); i >= 0 {
		c.Items[i].Quantity += qty
		return nil
	}
	c.Items = append(c.Items, Item{ProductID: productID, Quantity: qty, UnitPrice: price})
	return nil
}

// Remove deletes the line. Removing a missing product is a no-op.
func (c *Cart) Remove(productID uuid.UUID) {
	i := c.index(productID)
	if i < 0 {
		return
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

// SetQuantity replaces the quantity; anything below 1 removes the line.
func (c *Cart) SetQuantity(productID uuid.UUID, qty int) {
	if qty < 1 {
		c.Remove(productID)
		return
	}
	if i := c.index(productID); i >= 0 {
		c.Items[i].Quantity = qty
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = nil
}

// Count is the total number of units.
func (c Cart) Count() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// Subtotal is sum(unit price x quantity).
func (c Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// Normalize folds duplicate product IDs by summing quantities and drops lines
// with no product or a quantity below 1. The first occurrence keeps its slot
// and price.
func Normalize(items []Item) Cart {
	out := Cart{}
	for _, item := range items {
		if item.ProductID == uuid.Nil || item.Quantity < 1 {
			continue
		}
		_ = out.Add(item.ProductID, item.Quantity, item.UnitPrice)
	}
	return out
}

// Merge combines a local (guest) cart with the server cart. Server order is
// kept, quantities for matching products are summed, and local-only lines are
// appended in local order.
func Merge(local, server Cart) Cart {
	merged := Normalize(server.Items)
	for _, item := range Normalize(local.Items).Items {
		_ = merged.Add(item.ProductID, item.Quantity, item.UnitPrice)
	}
	return merged
}
