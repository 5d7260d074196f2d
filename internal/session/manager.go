// Package session owns the cart store of every browsing session: it creates
// stores on first use, rehydrates them from persisted state and keeps that
// state up to date as the carts change.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/zapit-cart/internal/cache"
	"github.com/fjod/zapit-cart/internal/cart"
	"github.com/fjod/zapit-cart/internal/checkout"
	"github.com/fjod/zapit-cart/internal/domain"
	"github.com/fjod/zapit-cart/internal/repository"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var ErrEmptyCart = errors.New("cart is empty, nothing to checkout")

type CheckoutPublisher interface {
	Publish(ctx context.Context, req *domain.CheckoutRequest) error
}

type entry struct {
	store       *cart.Store
	unsubscribe func()
	lastUsed    time.Time
}

type Manager struct {
	cache     cache.SessionCache
	repo      repository.SessionRepository
	publisher CheckoutPublisher
	persister *persister
	sfg       singleflight.Group // Prevents concurrent rehydration of one session

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewManager(c cache.SessionCache, repo repository.SessionRepository, publisher CheckoutPublisher, writeTimeout time.Duration) *Manager {
	return &Manager{
		cache:     c,
		repo:      repo,
		publisher: publisher,
		persister: newPersister(c, repo, writeTimeout),
		sessions:  make(map[string]*entry),
	}
}

// Open returns the session's store, creating and rehydrating it on first use.
func (m *Manager) Open(ctx context.Context, sessionID string) (*cart.Store, error) {
	if st := m.lookup(sessionID); st != nil {
		return st, nil
	}

	v, err, _ := m.sfg.Do(sessionID, func() (interface{}, error) {
		if st := m.lookup(sessionID); st != nil {
			return st, nil
		}

		st := cart.NewStore()
		state, err := m.load(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if state != nil {
			if errRestore := st.Restore(state); errRestore != nil {
				log.WithError(errRestore).WithField("session_id", sessionID).Warn("discarding unreadable cart state")
				m.persister.enqueue(sessionID, nil)
			}
		}

		unsubscribe := st.Subscribe(m.persistOnChange(sessionID, st))
		m.mu.Lock()
		m.sessions[sessionID] = &entry{store: st, unsubscribe: unsubscribe, lastUsed: time.Now()}
		m.mu.Unlock()
		return st, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*cart.Store), nil
}

// Checkout hands the session's cart to order creation. The cart is left as
// is; clearing it is up to whoever learns the outcome of the order.
func (m *Manager) Checkout(ctx context.Context, sessionID string) (*domain.CheckoutRequest, error) {
	st, err := m.Open(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	snap := st.Snapshot()
	if snap.IsEmpty() {
		return nil, ErrEmptyCart
	}

	req := checkout.BuildRequest(sessionID, snap, time.Now())
	if err := m.publisher.Publish(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to hand off checkout: %w", err)
	}

	log.WithFields(log.Fields{
		"session_id":  sessionID,
		"checkout_id": req.CheckoutID,
		"items":       req.ItemCount,
		"total":       req.TotalAmount.String(),
	}).Info("checkout handed off")
	return req, nil
}

// Clear empties the session's cart, live or persisted, and returns once the
// removal has reached the repository. A session that was not live is opened
// first so the removal is ordered after any write still queued for it.
func (m *Manager) Clear(ctx context.Context, sessionID string) error {
	st, err := m.Open(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	st.Clear()

	if err := m.persister.flush(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to clear stored cart: %w", err)
	}
	return nil
}

// Close drops the live store of a session. Its persisted state stays and is
// picked up again by the next Open.
func (m *Manager) Close(sessionID string) {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if ok {
		e.unsubscribe()
	}
}

// Shutdown closes every session and waits for pending writes.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range sessions {
		e.unsubscribe()
	}
	return m.persister.close(ctx)
}

// EvictIdle closes the sessions nobody has touched for maxIdle and returns
// how many it closed.
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	var idle []*entry
	for id, e := range m.sessions {
		if e.lastUsed.Before(cutoff) {
			idle = append(idle, e)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, e := range idle {
		e.unsubscribe()
	}
	return len(idle)
}

// RunEviction calls EvictIdle every interval until ctx is done.
func (m *Manager) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.EvictIdle(maxIdle); n > 0 {
				log.WithField("sessions", n).Debug("evicted idle carts")
			}
		}
	}
}

func (m *Manager) lookup(sessionID string) *cart.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[sessionID]; ok {
		e.lastUsed = time.Now()
		return e.store
	}
	return nil
}

// load returns the persisted state of a session, nil when there is none.
func (m *Manager) load(ctx context.Context, sessionID string) ([]byte, error) {
	// a write not yet done is newer than anything stored
	if state, ok := m.persister.latest(sessionID); ok {
		return state, nil
	}

	state, err := m.cache.Get(ctx, sessionID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		log.WithError(err).WithField("session_id", sessionID).Warn("cache get error") // continue with the repository
	}

	state, err = m.repo.Load(ctx, sessionID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	// Refill through the persister so a later mutation always overwrites it.
	m.persister.enqueue(sessionID, state)

	return state, nil
}

func (m *Manager) persistOnChange(sessionID string, st *cart.Store) cart.Listener {
	return func(e cart.Event) {
		if e.Kind == cart.EventCleared {
			m.persister.enqueue(sessionID, nil)
			return
		}
		state, err := st.Serialize()
		if err != nil {
			log.WithError(err).WithField("session_id", sessionID).Error("serialize cart error")
			return
		}
		m.persister.enqueue(sessionID, state)
	}
}
