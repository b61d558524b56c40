// Package session holds the storefront's single source of truth for who is
// logged in and what is in the cart.
//
// A Store is built once at process start, restored from durable storage with
// Restore, and shared by every consumer. Mutations go through its methods only;
// readers get copies.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/models"
)

type Option func(*Store)

func WithSealer(s *Sealer) Option {
	return func(st *Store) { st.sealer = s }
}

func WithBus(b *events.Bus) Option {
	return func(st *Store) { st.bus = b }
}

func WithLogger(l *slog.Logger) Option {
	return func(st *Store) { st.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(st *Store) { st.now = now }
}

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	User          *models.User   `json:"user"`
	Authenticated bool           `json:"authenticated"`
	Loading       bool           `json:"loading"`
	Onboarding    bool           `json:"onboarding"`
	Cart          map[string]int `json:"cart"`
	CartItemCount int            `json:"cartItemCount"`
}

type Store struct {
	persister Persister
	sealer    *Sealer
	bus       *events.Bus
	log       *slog.Logger
	now       func() time.Time

	// ioMu orders persistence with the in-memory change it belongs to.
	ioMu sync.Mutex

	mu      sync.RWMutex
	session *models.Session
	cart    map[string]int
	loading bool

	loaded      chan struct{}
	restoreOnce sync.Once
}

func NewStore(p Persister, opts ...Option) *Store {
	s := &Store{
		persister: p,
		log:       slog.Default(),
		now:       time.Now,
		cart:      make(map[string]int),
		loading:   true,
		loaded:    make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Login persists the session and makes it current. The in-memory session is
// set even when persisting fails; the error is returned so the caller can
// report that it will not survive a restart. Logging in as a different user
// ends the previous session first, so its cart does not carry over.
func (s *Store) Login(ctx context.Context, sess models.Session) error {
	s.ioMu.Lock()
	perr := s.persist(ctx, sess)

	s.mu.Lock()
	switched := s.session != nil && s.session.User.ID != sess.User.ID
	if switched {
		s.cart = make(map[string]int)
	}
	copied := sess
	s.session = &copied
	s.mu.Unlock()
	s.ioMu.Unlock()

	if switched {
		s.emit(events.SessionEnded, nil)
	}
	s.emit(events.SessionStarted, sess.User)

	if perr != nil {
		s.log.Error("session_persist_error", "error", perr)
		return fmt.Errorf("persist session: %w", perr)
	}
	return nil
}

// Logout drops the session and the cart. It is a no-op when nobody is logged in.
func (s *Store) Logout(ctx context.Context) error {
	s.ioMu.Lock()
	s.mu.Lock()
	had := s.session != nil
	s.session = nil
	s.cart = make(map[string]int)
	s.mu.Unlock()

	var derr error
	if had {
		if err := s.persister.Delete(ctx, StorageKey); err != nil && !errors.Is(err, ErrNotFound) {
			derr = err
		}
	}
	s.ioMu.Unlock()

	if !had {
		return nil
	}
	s.emit(events.SessionEnded, nil)

	if derr != nil {
		s.log.Error("session_delete_error", "error", derr)
		return fmt.Errorf("delete persisted session: %w", derr)
	}
	return nil
}

// Restore loads the persisted session. Only the first call does work; every
// call returns with loading finished. A missing, unreadable, corrupt or
// expired entry leaves the store unauthenticated.
func (s *Store) Restore(ctx context.Context) {
	s.restoreOnce.Do(func() {
		var restored *models.Session
		defer func() {
			s.mu.Lock()
			if restored != nil {
				s.session = restored
			}
			s.loading = false
			s.mu.Unlock()
			close(s.loaded)

			if restored != nil {
				s.emit(events.SessionStarted, restored.User)
			}
		}()

		s.ioMu.Lock()
		defer s.ioMu.Unlock()
		restored = s.load(ctx)
	})
}

func (s *Store) load(ctx context.Context) (restored *models.Session) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("session_restore_panic", "panic", r)
			restored = nil
		}
	}()

	raw, err := s.persister.Load(ctx, StorageKey)
	if errors.Is(err, ErrNotFound) {
		s.log.Info("session_restore", "found", false)
		return nil
	}
	if err != nil {
		s.log.Error("session_restore_error", "reason", "storage read failed", "error", err)
		return nil
	}

	sess, err := s.unmarshal(raw)
	if err == nil && TokenExpired(sess.Token, s.now()) {
		err = fmt.Errorf("%w: token expired", ErrSessionCorrupt)
	}
	if err != nil {
		s.log.Warn("session_restore_error", "reason", "discarding persisted session", "error", err)
		if derr := s.persister.Delete(ctx, StorageKey); derr != nil && !errors.Is(derr, ErrNotFound) {
			s.log.Error("session_delete_error", "error", derr)
		}
		return nil
	}

	s.log.Info("session_restore", "found", true, "user_id", sess.User.ID, "role", string(sess.User.Role))
	return &sess
}

// WaitLoaded blocks until Restore has finished or ctx is done.
func (s *Store) WaitLoaded(ctx context.Context) error {
	select {
	case <-s.loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateUser swaps the user record of the current session, keeping the token.
func (s *Store) UpdateUser(ctx context.Context, u models.User) error {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return ErrUnauthenticated
	}
	next := models.Session{User: u, Token: s.session.Token}
	s.session = &next
	s.mu.Unlock()

	if err := s.persist(ctx, next); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

func (s *Store) AddToCart(productID string) {
	if productID == "" {
		return
	}
	s.mu.Lock()
	s.cart[productID]++
	s.mu.Unlock()
}

// RemoveFromCart decrements productID and drops the key instead of keeping a zero.
func (s *Store) RemoveFromCart(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.cart[productID]
	if !ok {
		return
	}
	if q > 1 {
		s.cart[productID] = q - 1
		return
	}
	delete(s.cart, productID)
}

func (s *Store) ClearCart() {
	s.mu.Lock()
	s.cart = make(map[string]int)
	s.mu.Unlock()
}

// Subtract lowers each product by the given quantity and drops lines that
// reach zero. Quantities added after the caller took its snapshot survive.
func (s *Store) Subtract(quantities map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, n := range quantities {
		q, ok := s.cart[id]
		if !ok || n <= 0 {
			continue
		}
		if q-n > 0 {
			s.cart[id] = q - n
			continue
		}
		delete(s.cart, id)
	}
}

func (s *Store) Cart() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cartCopy()
}

func (s *Store) CartItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, q := range s.cart {
		n += q
	}
	return n
}

// Token satisfies apiclient.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.Token
}

func (s *Store) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return models.User{}, false
	}
	return s.session.User, true
}

func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil && s.session.Token != ""
}

// NeedsOnboarding reports a signed-in user whose role is still Pending.
func (s *Store) NeedsOnboarding() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil && s.session.User.Role == models.RolePending
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Loading: s.loading,
		Cart:    s.cartCopy(),
	}
	for _, q := range s.cart {
		snap.CartItemCount += q
	}
	if s.session != nil {
		u := s.session.User
		snap.User = &u
		snap.Authenticated = s.session.Token != ""
		snap.Onboarding = u.Role == models.RolePending
	}
	return snap
}

func (s *Store) cartCopy() map[string]int {
	out := make(map[string]int, len(s.cart))
	for k, v := range s.cart {
		out[k] = v
	}
	return out
}

func (s *Store) persist(ctx context.Context, sess models.Session) error {
	raw, err := encode(sess, s.now())
	if err != nil {
		return err
	}
	if s.sealer != nil {
		if raw, err = s.sealer.Seal(raw); err != nil {
			return err
		}
	}
	return s.persister.Save(ctx, StorageKey, raw)
}

func (s *Store) unmarshal(raw []byte) (models.Session, error) {
	if s.sealer != nil {
		plain, err := s.sealer.Open(raw)
		if err != nil {
			return models.Session{}, err
		}
		raw = plain
	}
	return decode(raw)
}

func (s *Store) emit(t events.Topic, payload any) {
	if s.bus != nil {
		s.bus.Emit(t, payload)
	}
}
