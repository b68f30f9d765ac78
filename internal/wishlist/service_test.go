package wishlist

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hasanarpat/memento-mori/internal/products"
	"github.com/hasanarpat/memento-mori/pkg/db"
	"github.com/hasanarpat/memento-mori/pkg/db/dbtest"
	pkgerrors "github.com/hasanarpat/memento-mori/pkg/errors"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), products.NewRepository(conn), db.FromConn(conn))
	require.NoError(t, err)
	return svc, conn
}

func TestAddKeepsInsertionOrderAndIgnoresDuplicates(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.MustCreateUser(t, conn)
	a := dbtest.MustCreateProduct(t, conn, "Product A", "10.00", 1)
	b := dbtest.MustCreateProduct(t, conn, "Product B", "10.00", 0)

	_, err := svc.Add(ctx, user.ID, b.ID)
	require.NoError(t, err)
	_, err = svc.Add(ctx, user.ID, a.ID)
	require.NoError(t, err)
	got, err := svc.Add(ctx, user.ID, b.ID)
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{b.ID, a.ID}, got.ProductIDs)
	require.Len(t, got.Items, 2)
	assert.False(t, got.Items[0].InStock)
	assert.True(t, got.Items[1].InStock)

	_, err = svc.Add(ctx, user.ID, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestRemoveAndReplace(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.MustCreateUser(t, conn)
	a := dbtest.MustCreateProduct(t, conn, "Product A", "10.00", 1)
	b := dbtest.MustCreateProduct(t, conn, "Product B", "10.00", 1)

	got, err := svc.Replace(ctx, user.ID, []uuid.UUID{a.ID, b.ID, a.ID})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID}, got.ProductIDs)

	got, err = svc.Remove(ctx, user.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b.ID}, got.ProductIDs)

	got, err = svc.Remove(ctx, user.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b.ID}, got.ProductIDs)
}

func TestMergeUnionsServerFirst(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.MustCreateUser(t, conn)
	a := dbtest.MustCreateProduct(t, conn, "Product A", "10.00", 1)
	b := dbtest.MustCreateProduct(t, conn, "Product B", "10.00", 1)
	c := dbtest.MustCreateProduct(t, conn, "Product C", "10.00", 1)

	_, err := svc.Replace(ctx, user.ID, []uuid.UUID{b.ID})
	require.NoError(t, err)

	got, err := svc.Merge(ctx, user.ID, []uuid.UUID{c.ID, b.ID, uuid.New(), a.ID})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b.ID, c.ID, a.ID}, got.ProductIDs)

	stored, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, got.ProductIDs, stored.ProductIDs)
}
