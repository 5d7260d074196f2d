package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/zapit-cart/internal/cache"
	"github.com/fjod/zapit-cart/internal/repository"
	log "github.com/sirupsen/logrus"
)

var errPersisterStopped = errors.New("cart persister stopped")

// persister writes cart state behind the store's back. Only the latest state
// per session is kept while a write is in flight; a nil state means the
// session's stored cart should be removed.
//
// Until a state has been written it is the session's newest state, so reads
// must consult latest before going to the cache or the repository.
type persister struct {
	cache   cache.SessionCache
	repo    repository.SessionRepository
	timeout time.Duration

	mu       sync.Mutex
	pending  map[string][]byte
	inflight map[string][]byte
	waiters  map[string][]chan error

	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newPersister(c cache.SessionCache, repo repository.SessionRepository, timeout time.Duration) *persister {
	p := &persister{
		cache:    c,
		repo:     repo,
		timeout:  timeout,
		pending:  make(map[string][]byte),
		inflight: make(map[string][]byte),
		waiters:  make(map[string][]chan error),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *persister) enqueue(sessionID string, state []byte) {
	p.mu.Lock()
	p.pending[sessionID] = state
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// latest returns the state queued or being written for the session. ok is
// false when nothing is outstanding; a nil state with ok means deleted.
func (p *persister) latest(sessionID string) (state []byte, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if state, ok = p.pending[sessionID]; ok {
		return state, true
	}
	state, ok = p.inflight[sessionID]
	return state, ok
}

// flush waits until nothing is outstanding for the session and returns the
// result of its last write.
func (p *persister) flush(ctx context.Context, sessionID string) error {
	p.mu.Lock()
	_, queued := p.pending[sessionID]
	_, writing := p.inflight[sessionID]
	if !queued && !writing {
		p.mu.Unlock()
		return nil
	}
	ch := make(chan error, 1)
	p.waiters[sessionID] = append(p.waiters[sessionID], ch)
	p.mu.Unlock()

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		select {
		case err := <-ch:
			return err
		default:
			return errPersisterStopped
		}
	}
}

func (p *persister) run() {
	defer close(p.done)
	for {
		select {
		case <-p.wake:
			p.drain()
		case <-p.stop:
			p.drain()
			return
		}
	}
}

func (p *persister) drain() {
	p.mu.Lock()
	batch := p.pending
	p.pending = make(map[string][]byte)
	for sessionID, state := range batch {
		p.inflight[sessionID] = state
	}
	p.mu.Unlock()

	for sessionID, state := range batch {
		err := p.write(sessionID, state)

		p.mu.Lock()
		delete(p.inflight, sessionID)
		var notify []chan error
		// a newer state was queued meanwhile; its write answers the waiters
		if _, again := p.pending[sessionID]; !again {
			notify = p.waiters[sessionID]
			delete(p.waiters, sessionID)
		}
		p.mu.Unlock()

		for _, ch := range notify {
			ch <- err
		}
	}
}

// write stores or deletes the state. Cache failures are only logged; the
// repository result is returned.
func (p *persister) write(sessionID string, state []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	logger := log.WithField("session_id", sessionID)

	if state == nil {
		if err := p.cache.Delete(ctx, sessionID); err != nil {
			logger.WithError(err).Warn("cache delete error")
		}
		if err := p.repo.Delete(ctx, sessionID); err != nil {
			logger.WithError(err).Error("repo delete cart error")
			return err
		}
		return nil
	}

	if err := p.cache.Set(ctx, sessionID, state); err != nil {
		logger.WithError(err).Warn("cache set error")
	}
	if err := p.repo.Save(ctx, sessionID, state); err != nil {
		logger.WithError(err).Error("repo save cart error")
		return err
	}
	return nil
}

// close flushes what is pending and stops the writer.
func (p *persister) close(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.stop) })
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
