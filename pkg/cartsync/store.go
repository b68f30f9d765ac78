// Package cartsync is the client-side cart and wishlist store. Guests persist
// to local storage only. After Login the store pushes mutations to the server
// on a debounce window, one push at a time.
package cartsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/hasanarpat/memento-mori/pkg/cartstate"
	"github.com/hasanarpat/memento-mori/pkg/logger"
)

// DefaultDebounce is how long the store waits after the last mutation before
// pushing to the server.
const DefaultDebounce = 800 * time.Millisecond

var ErrClosed = errors.New("cart store closed")

// State is everything the store persists.
type State struct {
	Cart     cartstate.Cart     `json:"cart"`
	Wishlist cartstate.Wishlist `json:"wishlist"`
}

func (s State) clone() State {
	return State{Cart: s.Cart.Clone(), Wishlist: cartstate.NewWishlist(s.Wishlist.ProductIDs...)}
}

// LocalStorage persists guest state between sessions.
type LocalStorage interface {
	Load() (State, error)
	Save(State) error
}

// Remote is the server-held cart and wishlist of the signed-in user.
type Remote interface {
	FetchCart(ctx context.Context) (cartstate.Cart, error)
	PushCart(ctx context.Context, cart cartstate.Cart) error
	FetchWishlist(ctx context.Context) (cartstate.Wishlist, error)
	PushWishlist(ctx context.Context, wishlist cartstate.Wishlist) error
}

// MutationKind names a pending change waiting to be pushed.
type MutationKind string

const (
	MutationCartAdd        MutationKind = "cart_add"
	MutationCartRemove     MutationKind = "cart_remove"
	MutationCartQuantity   MutationKind = "cart_quantity"
	MutationCartClear      MutationKind = "cart_clear"
	MutationWishlistAdd    MutationKind = "wishlist_add"
	MutationWishlistRemove MutationKind = "wishlist_remove"
)

// Mutation is one entry of the pending-mutation log.
type Mutation struct {
	Kind      MutationKind
	ProductID uuid.UUID
	Quantity  int
	At        time.Time
}

func (m Mutation) touchesCart() bool {
	switch m.Kind {
	case MutationCartAdd, MutationCartRemove, MutationCartQuantity, MutationCartClear:
		return true
	}
	return false
}

type journaled struct {
	mutation Mutation
	apply    func(*State) error
}

type Options struct {
	Debounce time.Duration
	Logger   *logger.Logger
}

// Store is safe for concurrent use.
type Store struct {
	logg     *logger.Logger
	local    LocalStorage
	debounce time.Duration

	mu      sync.Mutex
	state   State
	remote  Remote
	pending []Mutation
	timer   *time.Timer
	closed  bool

	// journal records edits made while Login is merging, so they can be
	// applied on top of the merged state. nil outside Login.
	journal *[]journaled

	// flushMu keeps at most one push in flight.
	flushMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New hydrates the store from local storage. A load failure starts empty.
func New(local LocalStorage, opts Options) *Store {
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		logg:     logg,
		local:    local,
		debounce: debounce,
		ctx:      ctx,
		cancel:   cancel,
	}
	if local != nil {
		state, err := local.Load()
		if err != nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "cart local storage unreadable; starting empty")
		} else {
			s.state = State{
				Cart:     cartstate.Normalize(state.Cart.Items),
				Wishlist: cartstate.NewWishlist(state.Wishlist.ProductIDs...),
			}
		}
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Authenticated reports whether a remote is attached.
func (s *Store) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote != nil
}

// Pending returns the number of mutations not yet pushed.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Store) AddItem(productID uuid.UUID, qty int, price decimal.Decimal) error {
	return s.mutate(Mutation{Kind: MutationCartAdd, ProductID: productID, Quantity: qty}, func(st *State) error {
		return st.Cart.Add(productID, qty, price)
	})
}

func (s *Store) RemoveItem(productID uuid.UUID) error {
	return s.mutate(Mutation{Kind: MutationCartRemove, ProductID: productID}, func(st *State) error {
		st.Cart.Remove(productID)
		return nil
	})
}

// SetQuantity clamps at 1: anything lower removes the line.
func (s *Store) SetQuantity(productID uuid.UUID, qty int) error {
	return s.mutate(Mutation{Kind: MutationCartQuantity, ProductID: productID, Quantity: qty}, func(st *State) error {
		st.Cart.SetQuantity(productID, qty)
		return nil
	})
}

func (s *Store) ClearCart() error {
	return s.mutate(Mutation{Kind: MutationCartClear}, func(st *State) error {
		st.Cart.Clear()
		return nil
	})
}

func (s *Store) AddToWishlist(productID uuid.UUID) error {
	return s.mutate(Mutation{Kind: MutationWishlistAdd, ProductID: productID}, func(st *State) error {
		st.Wishlist.Add(productID)
		return nil
	})
}

func (s *Store) RemoveFromWishlist(productID uuid.UUID) error {
	return s.mutate(Mutation{Kind: MutationWishlistRemove, ProductID: productID}, func(st *State) error {
		st.Wishlist.Remove(productID)
		return nil
	})
}

// ToggleWishlist flips membership and reports whether the product is now liked.
func (s *Store) ToggleWishlist(productID uuid.UUID) (bool, error) {
	liked := !s.Snapshot().Wishlist.Contains(productID)
	if liked {
		return true, s.AddToWishlist(productID)
	}
	return false, s.RemoveFromWishlist(productID)
}

// mutate applies fn optimistically, persists locally, and when signed in
// records the mutation and re-arms the debounce timer.
func (s *Store) mutate(m Mutation, fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	next := s.state.clone()
	if err := fn(&next); err != nil {
		return err
	}
	s.state = next
	s.saveLocked()
	m.At = time.Now()
	if s.journal != nil {
		*s.journal = append(*s.journal, journaled{mutation: m, apply: fn})
	}
	if s.remote == nil {
		return nil
	}
	s.pending = append(s.pending, m)
	s.scheduleLocked()
	return nil
}

func (s *Store) saveLocked() {
	if s.local == nil {
		return
	}
	if err := s.local.Save(s.state); err != nil {
		s.logg.Warn(s.logg.WithField(s.ctx, "error", err.Error()), "cart local save failed")
	}
}

func (s *Store) scheduleLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.wg.Add(1)
		s.mu.Unlock()
		defer s.wg.Done()
		// Background pushes log and drop failures; the log stays dirty.
		_ = s.Flush(s.ctx)
	})
}

// Flush pushes the current snapshot if any mutations are pending. On failure
// the mutations are put back so the next flush sends them again.
func (s *Store) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	remote := s.remote
	if remote == nil || len(s.pending) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.pending
	s.pending = nil
	snap := s.state.clone()
	s.mu.Unlock()

	cartDirty, wishlistDirty := false, false
	for _, m := range batch {
		if m.touchesCart() {
			cartDirty = true
		} else {
			wishlistDirty = true
		}
	}

	var err error
	if cartDirty {
		err = multierr.Append(err, remote.PushCart(ctx, snap.Cart))
	}
	if wishlistDirty {
		err = multierr.Append(err, remote.PushWishlist(ctx, snap.Wishlist))
	}
	if err != nil {
		s.mu.Lock()
		s.pending = append(batch, s.pending...)
		s.mu.Unlock()
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"pending": len(batch),
			"error":   err.Error(),
		})
		s.logg.Warn(logCtx, "cart sync failed")
		return err
	}
	return nil
}

// Login merges local state with the server state, pushes the merge, and makes
// the merged state the source of truth. On error the store stays a guest.
func (s *Store) Login(ctx context.Context, remote Remote) (State, error) {
	if remote == nil {
		return State{}, errors.New("remote is required")
	}
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	serverCart, err := remote.FetchCart(ctx)
	if err != nil {
		return State{}, err
	}
	serverWishlist, err := remote.FetchWishlist(ctx)
	if err != nil {
		return State{}, err
	}

	s.mu.Lock()
	local := s.state.clone()
	edits := []journaled{}
	s.journal = &edits
	s.mu.Unlock()
	defer s.endJournal(&edits)

	merged := State{
		Cart:     cartstate.Merge(local.Cart, serverCart),
		Wishlist: cartstate.MergeWishlists(local.Wishlist, serverWishlist),
	}
	if err := multierr.Combine(
		remote.PushCart(ctx, merged.Cart),
		remote.PushWishlist(ctx, merged.Wishlist),
	); err != nil {
		return State{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return State{}, ErrClosed
	}
	s.journal = nil
	// Edits made while the merge was in flight are replayed on top of it and
	// queued, since the server only has the merge.
	next := merged.clone()
	s.pending = nil
	for _, e := range edits {
		if err := e.apply(&next); err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"mutation": string(e.mutation.Kind),
				"error":    err.Error(),
			}), "cart edit dropped during login merge")
			continue
		}
		s.pending = append(s.pending, e.mutation)
	}
	s.state = next
	s.remote = remote
	s.saveLocked()
	if len(s.pending) > 0 {
		s.scheduleLocked()
	}
	return s.state.clone(), nil
}

// endJournal stops recording if Login returned before taking over the journal.
func (s *Store) endJournal(edits *[]journaled) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == edits {
		s.journal = nil
	}
}

// Logout flushes best-effort, detaches the remote and clears local state.
func (s *Store) Logout(ctx context.Context) error {
	s.stopTimer()
	err := s.Flush(ctx)
	s.mu.Lock()
	s.remote = nil
	s.pending = nil
	s.state = State{}
	s.saveLocked()
	s.mu.Unlock()
	return err
}

// Close flushes pending state and stops the background worker.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.stopTimer()
	err := s.Flush(ctx)
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	if s.local != nil {
		err = multierr.Append(err, s.local.Save(s.state))
	}
	s.mu.Unlock()
	return err
}

func (s *Store) stopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
