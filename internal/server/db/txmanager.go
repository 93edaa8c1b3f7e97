package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/cghughes/authd/internal/dbx"
	"github.com/cghughes/authd/internal/logging"
)

var (
	// ErrNoRequestContext is returned when a transaction primitive is
	// invoked on a context without a request id.
	ErrNoRequestContext = errors.New("no request context")

	// ErrNoTransaction is returned by Commit when the current request has
	// no open transaction.
	ErrNoTransaction = errors.New("no open transaction")
)

// TxManager brackets each request in a single unit of work: begin before
// any data access, commit on the success path, rollback on any error path.
// Commit and Rollback both release the request's connection back to the
// pool, ending its binding.
type TxManager struct {
	binder *Binder
	logger logging.Logger
}

func NewTxManager(binder *Binder, logger logging.Logger) *TxManager {
	return &TxManager{binder: binder, logger: logger}
}

// Begin opens a transaction on the connection bound to the current
// request. A second Begin within the same request finds the binding
// already holding an open transaction and reuses it; there is no nested
// transaction or savepoint support.
func (m *TxManager) Begin(ctx context.Context) error {
	id, ok := RequestIDFrom(ctx)
	if !ok {
		return ErrNoRequestContext
	}

	conn, err := m.binder.Acquire(ctx)
	if err != nil {
		return err
	}

	if e := m.binder.get(id); e != nil && e.tx != nil {
		m.logger.Debug(ctx, "transaction already open, reusing", "request_id", id)
		return nil
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		m.binder.unbind(id)
		m.pool().Release(ctx, conn)
		return fmt.Errorf("begin error: %w", err)
	}
	m.binder.setTx(id, tx)
	m.logger.Debug(ctx, "transaction started", "request_id", id)
	return nil
}

// Commit commits the current request's transaction and releases its
// connection. A commit failure is surfaced to the caller as an internal
// error; it is not retried.
func (m *TxManager) Commit(ctx context.Context) error {
	id, ok := RequestIDFrom(ctx)
	if !ok {
		return ErrNoRequestContext
	}
	e := m.binder.get(id)
	if e == nil || e.tx == nil {
		return ErrNoTransaction
	}

	err := e.tx.Commit()
	m.binder.unbind(id)
	m.pool().Release(ctx, e.conn)
	if err != nil {
		return fmt.Errorf("commit error: %w", err)
	}
	m.logger.Debug(ctx, "transaction committed", "request_id", id)
	return nil
}

// Rollback aborts the current request's transaction and releases its
// connection. A rollback failure is logged, never returned, so it cannot
// mask the error that triggered it. Rollback without an open transaction
// is a no-op.
func (m *TxManager) Rollback(ctx context.Context) {
	id, ok := RequestIDFrom(ctx)
	if !ok {
		return
	}
	e := m.binder.get(id)
	if e == nil || e.tx == nil {
		return
	}

	if err := e.tx.Rollback(); err != nil {
		m.logger.Error(ctx, "rollback failed", "request_id", id, "error", err)
	} else {
		m.logger.Debug(ctx, "transaction rolled back", "request_id", id)
	}
	m.binder.unbind(id)
	m.pool().Release(ctx, e.conn)
}

// Querier resolves the data-access handle for ctx: the open transaction
// for the current request if any, otherwise the connection bound to it
// (binding one if needed). Contexts without a request id get the shared
// pool handle, which hands out connections per statement.
func (m *TxManager) Querier(ctx context.Context) (dbx.DBTX, error) {
	id, ok := RequestIDFrom(ctx)
	if !ok {
		return m.pool().DB(), nil
	}

	if e := m.binder.get(id); e != nil && e.tx != nil {
		return e.tx, nil
	}
	conn, err := m.binder.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if e := m.binder.get(id); e != nil && e.tx != nil {
		return e.tx, nil
	}
	return conn, nil
}

func (m *TxManager) pool() *Pool {
	return m.binder.pool
}
