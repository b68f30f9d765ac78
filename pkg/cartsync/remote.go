package cartsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hasanarpat/memento-mori/pkg/cartstate"
)

const (
	cartPath     = "/api/shop/cart"
	wishlistPath = "/api/shop/wishlist"
)

// HTTPRemote talks to the storefront API with a bearer access token.
type HTTPRemote struct {
	baseURL string
	token   func() string
	client  *http.Client
}

// NewHTTPRemote builds a remote. token is called per request so callers can
// refresh it.
func NewHTTPRemote(baseURL string, token func() string, client *http.Client) *HTTPRemote {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPRemote{baseURL: strings.TrimRight(baseURL, "/"), token: token, client: client}
}

type cartLineDTO struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type cartDTO struct {
	Items []cartLineDTO `json:"items"`
}

type wishlistDTO struct {
	ProductIDs []uuid.UUID `json:"productIds"`
}

type envelope[T any] struct {
	Data  T      `json:"data"`
	Error string `json:"error"`
}

func (r *HTTPRemote) FetchCart(ctx context.Context) (cartstate.Cart, error) {
	var out envelope[cartDTO]
	if err := r.do(ctx, http.MethodGet, cartPath, nil, &out); err != nil {
		return cartstate.Cart{}, err
	}
	items := make([]cartstate.Item, 0, len(out.Data.Items))
	for _, line := range out.Data.Items {
		items = append(items, cartstate.Item{ProductID: line.ProductID, Quantity: line.Quantity, UnitPrice: line.UnitPrice})
	}
	return cartstate.Normalize(items), nil
}

func (r *HTTPRemote) PushCart(ctx context.Context, cart cartstate.Cart) error {
	body := cartDTO{Items: make([]cartLineDTO, 0, len(cart.Items))}
	for _, item := range cart.Items {
		body.Items = append(body.Items, cartLineDTO{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	return r.do(ctx, http.MethodPost, cartPath, body, nil)
}

func (r *HTTPRemote) FetchWishlist(ctx context.Context) (cartstate.Wishlist, error) {
	var out envelope[wishlistDTO]
	if err := r.do(ctx, http.MethodGet, wishlistPath, nil, &out); err != nil {
		return cartstate.Wishlist{}, err
	}
	return cartstate.NewWishlist(out.Data.ProductIDs...), nil
}

func (r *HTTPRemote) PushWishlist(ctx context.Context, wishlist cartstate.Wishlist) error {
	ids := wishlist.IDs()
	return r.do(ctx, http.MethodPost, wishlistPath, wishlistDTO{ProductIDs: ids}, nil)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Status)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Message)
}

func (r *HTTPRemote) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != nil {
		if token := r.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure envelope[json.RawMessage]
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&failure)
		return &StatusError{Status: resp.StatusCode, Message: failure.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
