package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hasanarpat/memento-mori/internal/products"
	"github.com/hasanarpat/memento-mori/pkg/cartstate"
	"github.com/hasanarpat/memento-mori/pkg/db"
	"github.com/hasanarpat/memento-mori/pkg/db/dbtest"
	pkgerrors "github.com/hasanarpat/memento-mori/pkg/errors"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), products.NewRepository(conn), db.FromConn(conn), nil)
	require.NoError(t, err)
	return svc, conn
}

func line(id uuid.UUID, qty int, price string) cartstate.Item {
	return cartstate.Item{ProductID: id, Quantity: qty, UnitPrice: decimal.RequireFromString(price)}
}

func TestMergeSumsLocalIntoServerCart(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.MustCreateUser(t, conn)
	a := dbtest.MustCreateProduct(t, conn, "Product A", "10.00", 20)
	b := dbtest.MustCreateProduct(t, conn, "Product B", "5.00", 20)

	_, err := svc.Replace(ctx, user.ID, []cartstate.Item{line(a.ID, 1, "0"), line(b.ID, 3, "0")})
	require.NoError(t, err)

	merged, err := svc.Merge(ctx, user.ID, []cartstate.Item{line(a.ID, 2, "999")})
	require.NoError(t, err)
	require.Len(t, merged.Items, 2)
	assert.Equal(t, a.ID, merged.Items[0].ProductID)
	assert.Equal(t, 3, merged.Items[0].Quantity)
	assert.Equal(t, b.ID, merged.Items[1].ProductID)
	assert.Equal(t, 3, merged.Items[1].Quantity)
	assert.True(t, merged.Subtotal.Equal(decimal.RequireFromString("45")), "subtotal %s", merged.Subtotal)

	stored, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, 3, stored.Items[0].Quantity)
	assert.Equal(t, 6, stored.Count)
}

func TestMergeDropsUnknownProducts(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.MustCreateUser(t, conn)
	a := dbtest.MustCreateProduct(t, conn, "Product A", "10.00", 20)

	merged, err := svc.Merge(ctx, user.ID, []cartstate.Item{line(uuid.New(), 1, "1"), line(a.ID, 2, "1")})
	require.NoError(t, err)
	require.Len(t, merged.Items, 1)
	assert.Equal(t, a.ID, merged.Items[0].ProductID)
}

func TestReplaceUsesServerPriceAndFoldsDuplicates(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.MustCreateUser(t, conn)
	a := dbtest.MustCreateProduct(t, conn, "Product A", "12.50", 20)

	got, err := svc.Replace(ctx, user.ID, []cartstate.Item{line(a.ID, 1, "0.01"), line(a.ID, 2, "0.01")})
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 3, got.Items[0].Quantity)
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.RequireFromString("12.5")))
	assert.True(t, got.Subtotal.Equal(decimal.RequireFromString("37.5")))
}

func TestReplaceValidation(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.MustCreateUser(t, conn)
	a := dbtest.MustCreateProduct(t, conn, "Product A", "12.50", 20)

	_, err := svc.Replace(ctx, user.ID, []cartstate.Item{line(a.ID, 0, "1")})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.Replace(ctx, user.ID, []cartstate.Item{line(uuid.New(), 1, "1")})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	empty, err := svc.Replace(ctx, user.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
}

func TestClearEmptiesCart(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.MustCreateUser(t, conn)
	a := dbtest.MustCreateProduct(t, conn, "Product A", "1.00", 2)

	_, err := svc.Replace(ctx, user.ID, []cartstate.Item{line(a.ID, 1, "1")})
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, user.ID))

	got, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
}
