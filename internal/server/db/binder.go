package db

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/cghughes/authd/internal/logging"
)

// DefaultBindingTTL is the leak-guard expiry for request bindings. A
// request that holds its binding longer than this without opening a
// transaction is assumed to have leaked it.
const DefaultBindingTTL = 5 * time.Second

type binding struct {
	conn     *sql.Conn
	tx       *sql.Tx
	deadline time.Time
}

func (b *binding) expired(now time.Time) bool {
	return now.After(b.deadline)
}

// Binder associates a request id with at most one checked-out connection
// for the lifetime of that request. Entries carry a short TTL as a safety
// net against leaked bindings; an expired entry is treated as absent on
// lookup, and a background sweep drops it. The orphaned connection stays
// checked out of the pool until Pool.Close force-destroys it.
type Binder struct {
	pool   *Pool
	ttl    time.Duration
	logger logging.Logger

	mu       sync.Mutex
	bindings map[string]*binding

	done chan struct{}
	once sync.Once
}

// NewBinder creates a binder over pool and starts its sweep goroutine.
// ttl <= 0 selects DefaultBindingTTL.
func NewBinder(pool *Pool, ttl time.Duration, logger logging.Logger) *Binder {
	if ttl <= 0 {
		ttl = DefaultBindingTTL
	}
	b := &Binder{
		pool:     pool,
		ttl:      ttl,
		logger:   logger,
		bindings: make(map[string]*binding),
		done:     make(chan struct{}),
	}
	go b.sweep()
	return b
}

// Acquire resolves the connection for ctx. Without a request id it always
// borrows a fresh connection from the pool (never shared, never cached).
// With one, it returns the connection already bound to that id after a
// liveness probe, or borrows a new one and binds it.
func (b *Binder) Acquire(ctx context.Context) (*sql.Conn, error) {
	id, ok := RequestIDFrom(ctx)
	if !ok {
		return b.pool.Acquire(ctx)
	}

	if conn := b.lookup(ctx, id); conn != nil {
		return conn, nil
	}

	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if existing, found := b.bindings[id]; found && !existing.expired(time.Now()) {
		// Lost a bind race within the same request; keep the first winner.
		b.mu.Unlock()
		b.pool.Release(ctx, conn)
		return existing.conn, nil
	}
	b.bindings[id] = &binding{conn: conn, deadline: time.Now().Add(b.ttl)}
	b.mu.Unlock()

	b.logger.Debug(ctx, "connection bound to request", "request_id", id)
	return conn, nil
}

// lookup returns the live bound connection for id, revalidating it with a
// keep-alive probe. A dead connection is discarded so the caller rebinds.
func (b *Binder) lookup(ctx context.Context, id string) *sql.Conn {
	b.mu.Lock()
	e, found := b.bindings[id]
	if !found || e.expired(time.Now()) {
		b.mu.Unlock()
		return nil
	}
	conn := e.conn
	inTx := e.tx != nil
	b.mu.Unlock()

	if inTx {
		// Probing would run on the connection mid-transaction; the open
		// transaction is proof of liveness enough.
		return conn
	}
	if err := conn.PingContext(ctx); err != nil {
		b.logger.Warn(ctx, "bound connection failed keep-alive probe", "request_id", id, "error", err)
		b.unbind(id)
		b.pool.Release(ctx, conn)
		return nil
	}
	return conn
}

// get returns the current binding for id, expired or not. Transaction
// state transitions go through it.
func (b *Binder) get(id string) *binding {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bindings[id]
}

// setTx records the open transaction for id and extends the binding
// deadline: a request actively inside its bracket keeps its connection.
func (b *Binder) setTx(id string, tx *sql.Tx) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, found := b.bindings[id]; found {
		e.tx = tx
		e.deadline = time.Now().Add(b.ttl)
	}
}

func (b *Binder) unbind(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.bindings, id)
}

// sweep periodically drops expired bindings. The connection itself is not
// closed here: from the request's perspective it is orphaned, and the pool
// reclaims it on shutdown.
func (b *Binder) sweep() {
	ticker := time.NewTicker(b.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case now := <-ticker.C:
			b.mu.Lock()
			for id, e := range b.bindings {
				if e.expired(now) {
					delete(b.bindings, id)
					b.logger.Warn(context.Background(), "request binding expired with connection still bound",
						"request_id", id, "in_transaction", e.tx != nil)
				}
			}
			b.mu.Unlock()
		}
	}
}

// Close stops the sweep goroutine. Outstanding bindings are left for the
// pool to reclaim.
func (b *Binder) Close() {
	b.once.Do(func() { close(b.done) })
}
