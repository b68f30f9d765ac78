package cartstate

import "github.com/google/uuid"

// Wishlist is an insertion-ordered set of product IDs.
type Wishlist struct {
	ProductIDs []uuid.UUID `json:"productIds"`
}

// NewWishlist builds a wishlist, dropping duplicates and nil IDs.
func NewWishlist(ids ...uuid.UUID) Wishlist {
	w := Wishlist{}
	for _, id := range ids {
		w.Add(id)
	}
	return w
}

func (w Wishlist) Contains(id uuid.UUID) bool {
	for _, existing := range w.ProductIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// Add appends id unless it is already present. Reports whether it was added.
func (w *Wishlist) Add(id uuid.UUID) bool {
	if id == uuid.Nil || w.Contains(id) {
		return false
	}
	w.ProductIDs = append(w.ProductIDs, id)
	return true
}

// Remove deletes id. Reports whether it was present.
func (w *Wishlist) Remove(id uuid.UUID) bool {
	for i, existing := range w.ProductIDs {
		if existing == id {
			w.ProductIDs = append(w.ProductIDs[:i], w.ProductIDs[i+1:]...)
			return true
		}
	}
	return false
}

// Toggle adds a missing id or removes a present one. Reports the new state.
func (w *Wishlist) Toggle(id uuid.UUID) bool {
	if w.Remove(id) {
		return false
	}
	return w.Add(id)
}

// IDs returns a copy in display order.
func (w Wishlist) IDs() []uuid.UUID {
	out := make([]uuid.UUID, len(w.ProductIDs))
	copy(out, w.ProductIDs)
	return out
}

func (w Wishlist) Len() int { return len(w.ProductIDs) }

// MergeWishlists is the union of both sets, server order first.
func MergeWishlists(local, server Wishlist) Wishlist {
	merged := NewWishlist(server.ProductIDs...)
	for _, id := range local.ProductIDs {
		merged.Add(id)
	}
	return merged
}
