package cartsync

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasanarpat/memento-mori/pkg/cartstate"
)

type fakeRemote struct {
	mu          sync.Mutex
	cart        cartstate.Cart
	wishlist    cartstate.Wishlist
	cartPushes  int
	wishPushes  int
	pushErr     error
	pushDelay   time.Duration
	inFlight    int32
	maxInFlight int32
}

func (f *fakeRemote) FetchCart(context.Context) (cartstate.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cart.Clone(), nil
}

func (f *fakeRemote) FetchWishlist(context.Context) (cartstate.Wishlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cartstate.NewWishlist(f.wishlist.ProductIDs...), nil
}

func (f *fakeRemote) track() func() {
	n := atomic.AddInt32(&f.inFlight, 1)
	for {
		max := atomic.LoadInt32(&f.maxInFlight)
		if n <= max || atomic.CompareAndSwapInt32(&f.maxInFlight, max, n) {
			break
		}
	}
	if f.pushDelay > 0 {
		time.Sleep(f.pushDelay)
	}
	return func() { atomic.AddInt32(&f.inFlight, -1) }
}

func (f *fakeRemote) PushCart(_ context.Context, cart cartstate.Cart) error {
	defer f.track()()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cartPushes++
	if f.pushErr != nil {
		return f.pushErr
	}
	f.cart = cart.Clone()
	return nil
}

func (f *fakeRemote) PushWishlist(_ context.Context, w cartstate.Wishlist) error {
	defer f.track()()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wishPushes++
	if f.pushErr != nil {
		return f.pushErr
	}
	f.wishlist = cartstate.NewWishlist(w.ProductIDs...)
	return nil
}

func (f *fakeRemote) snapshot() (cartstate.Cart, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cart.Clone(), f.cartPushes, f.wishPushes
}

func (f *fakeRemote) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushErr = err
}

func TestGuestMutationsPersistLocally(t *testing.T) {
	local := &MemoryStorage{}
	store := New(local, Options{})
	a := uuid.New()

	require.NoError(t, store.AddItem(a, 2, decimal.NewFromInt(40)))
	require.NoError(t, store.SetQuantity(a, 0))
	require.NoError(t, store.AddToWishlist(a))

	assert.Equal(t, 3, local.Saves())
	state, err := local.Load()
	require.NoError(t, err)
	assert.Empty(t, state.Cart.Items)
	assert.Equal(t, []uuid.UUID{a}, state.Wishlist.IDs())
	assert.Zero(t, store.Pending(), "guests never queue remote mutations")
	assert.Error(t, store.AddItem(a, 0, decimal.Zero))
}

func TestLoginMergesAndPushes(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	local := &MemoryStorage{}
	store := New(local, Options{Debounce: time.Hour})
	require.NoError(t, store.AddItem(a, 2, decimal.NewFromInt(10)))
	require.NoError(t, store.AddToWishlist(b))

	remote := &fakeRemote{
		cart: cartstate.Cart{Items: []cartstate.Item{
			{ProductID: a, Quantity: 1, UnitPrice: decimal.NewFromInt(10)},
			{ProductID: b, Quantity: 3, UnitPrice: decimal.NewFromInt(5)},
		}},
		wishlist: cartstate.NewWishlist(a),
	}

	merged, err := store.Login(context.Background(), remote)
	require.NoError(t, err)

	require.Len(t, merged.Cart.Items, 2)
	assert.Equal(t, a, merged.Cart.Items[0].ProductID)
	assert.Equal(t, 3, merged.Cart.Items[0].Quantity)
	assert.Equal(t, b, merged.Cart.Items[1].ProductID)
	assert.Equal(t, 3, merged.Cart.Items[1].Quantity)
	assert.Equal(t, []uuid.UUID{a, b}, merged.Wishlist.IDs())

	serverCart, cartPushes, wishPushes := remote.snapshot()
	assert.Equal(t, 1, cartPushes)
	assert.Equal(t, 1, wishPushes)
	assert.Equal(t, merged.Cart, serverCart)
	assert.True(t, store.Authenticated())

	saved, err := local.Load()
	require.NoError(t, err)
	assert.Equal(t, merged.Cart, saved.Cart)
}

func TestLoginFailureStaysGuest(t *testing.T) {
	store := New(&MemoryStorage{}, Options{})
	remote := &fakeRemote{pushErr: errors.New("offline")}

	_, err := store.Login(context.Background(), remote)
	require.Error(t, err)
	assert.False(t, store.Authenticated())
}

func TestDebouncedSyncCoalescesMutations(t *testing.T) {
	remote := &fakeRemote{}
	store := New(&MemoryStorage{}, Options{Debounce: 30 * time.Millisecond})
	_, err := store.Login(context.Background(), remote)
	require.NoError(t, err)
	_, basePushes, _ := remote.snapshot()

	a := uuid.New()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.AddItem(a, 1, decimal.NewFromInt(3)))
	}
	assert.Equal(t, 5, store.Pending())

	require.Eventually(t, func() bool { return store.Pending() == 0 }, time.Second, 5*time.Millisecond)
	serverCart, pushes, wishPushes := remote.snapshot()
	assert.Equal(t, basePushes+1, pushes, "five mutations inside the window produce one push")
	assert.Equal(t, 1, wishPushes, "only the login push touched the wishlist")
	item, ok := serverCart.Find(a)
	require.True(t, ok)
	assert.Equal(t, 5, item.Quantity)
}

func TestFlushFailureKeepsMutationsAndLogsOnly(t *testing.T) {
	remote := &fakeRemote{}
	store := New(&MemoryStorage{}, Options{Debounce: time.Hour})
	_, err := store.Login(context.Background(), remote)
	require.NoError(t, err)

	remote.setErr(errors.New("503"))
	require.NoError(t, store.AddItem(uuid.New(), 1, decimal.NewFromInt(1)))
	require.Error(t, store.Flush(context.Background()))
	assert.Equal(t, 1, store.Pending())

	remote.setErr(nil)
	require.NoError(t, store.Flush(context.Background()))
	assert.Zero(t, store.Pending())
}

func TestFlushIsSingleFlight(t *testing.T) {
	remote := &fakeRemote{pushDelay: 20 * time.Millisecond}
	store := New(&MemoryStorage{}, Options{Debounce: time.Hour})
	_, err := store.Login(context.Background(), remote)
	require.NoError(t, err)
	atomic.StoreInt32(&remote.maxInFlight, 0)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.AddItem(uuid.New(), 1, decimal.NewFromInt(1))
			_ = store.Flush(context.Background())
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&remote.maxInFlight))
	assert.Zero(t, store.Pending())
	serverCart, _, _ := remote.snapshot()
	assert.Len(t, serverCart.Items, 4)
}

func TestCloseFlushesAndRejectsFurtherMutations(t *testing.T) {
	remote := &fakeRemote{}
	local := &MemoryStorage{}
	store := New(local, Options{Debounce: time.Hour})
	_, err := store.Login(context.Background(), remote)
	require.NoError(t, err)

	a := uuid.New()
	require.NoError(t, store.AddItem(a, 2, decimal.NewFromInt(9)))
	require.NoError(t, store.Close(context.Background()))

	serverCart, _, _ := remote.snapshot()
	_, ok := serverCart.Find(a)
	assert.True(t, ok)
	assert.ErrorIs(t, store.AddItem(a, 1, decimal.Zero), ErrClosed)
	assert.NoError(t, store.Close(context.Background()))
}

func TestLogoutClearsState(t *testing.T) {
	remote := &fakeRemote{}
	store := New(&MemoryStorage{}, Options{Debounce: time.Hour})
	_, err := store.Login(context.Background(), remote)
	require.NoError(t, err)
	require.NoError(t, store.AddToWishlist(uuid.New()))

	require.NoError(t, store.Logout(context.Background()))
	assert.False(t, store.Authenticated())
	assert.Zero(t, store.Snapshot().Wishlist.Len())
	_, _, wishPushes := remote.snapshot()
	assert.Equal(t, 2, wishPushes, "pending wishlist change pushed before logout")
}

func TestFileStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cart.json")
	fs := NewFileStorage(path)

	empty, err := fs.Load()
	require.NoError(t, err)
	assert.Empty(t, empty.Cart.Items)

	a := uuid.New()
	state := State{
		Cart:     cartstate.Cart{Items: []cartstate.Item{{ProductID: a, Quantity: 2, UnitPrice: decimal.RequireFromString("19.90")}}},
		Wishlist: cartstate.NewWishlist(a),
	}
	require.NoError(t, fs.Save(state))

	store := New(fs, Options{})
	got := store.Snapshot()
	require.Len(t, got.Cart.Items, 1)
	assert.True(t, got.Cart.Items[0].UnitPrice.Equal(decimal.RequireFromString("19.90")))
	assert.Equal(t, []uuid.UUID{a}, got.Wishlist.IDs())
}

// gatedRemote holds the first cart push until release is closed.
type gatedRemote struct {
	*fakeRemote
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRemote) PushCart(ctx context.Context, cart cartstate.Cart) error {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.fakeRemote.PushCart(ctx, cart)
}

func TestLoginKeepsEditsMadeDuringMerge(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	store := New(&MemoryStorage{}, Options{Debounce: time.Hour})
	require.NoError(t, store.AddItem(a, 2, decimal.NewFromInt(10)))
	require.NoError(t, store.AddItem(c, 4, decimal.NewFromInt(3)))

	remote := &gatedRemote{
		fakeRemote: &fakeRemote{cart: cartstate.Cart{Items: []cartstate.Item{
			{ProductID: a, Quantity: 1, UnitPrice: decimal.NewFromInt(10)},
		}}},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}

	done := make(chan error, 1)
	go func() {
		_, err := store.Login(context.Background(), remote)
		done <- err
	}()

	<-remote.entered
	require.NoError(t, store.RemoveItem(a))
	require.NoError(t, store.SetQuantity(c, 1))
	require.NoError(t, store.AddItem(b, 1, decimal.NewFromInt(7)))
	close(remote.release)
	require.NoError(t, <-done)

	state := store.Snapshot()
	_, hasA := state.Cart.Find(a)
	assert.False(t, hasA, "removal made during login survives the merge")
	itemC, ok := state.Cart.Find(c)
	require.True(t, ok)
	assert.Equal(t, 1, itemC.Quantity)
	_, hasB := state.Cart.Find(b)
	assert.True(t, hasB)
	assert.Equal(t, 3, store.Pending())

	require.NoError(t, store.Flush(context.Background()))
	serverCart, _, _ := remote.snapshot()
	assert.Equal(t, state.Cart, serverCart)
	assert.Zero(t, store.Pending())
}

func TestLoginFailureStopsRecordingEdits(t *testing.T) {
	store := New(&MemoryStorage{}, Options{})
	_, err := store.Login(context.Background(), &fakeRemote{pushErr: errors.New("offline")})
	require.Error(t, err)

	require.NoError(t, store.AddItem(uuid.New(), 1, decimal.NewFromInt(1)))
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Nil(t, store.journal)
}
