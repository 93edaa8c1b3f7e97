// Package db implements the request-scoped transactional connection model:
// a bounded connection pool, a binder that associates each request id with
// at most one checked-out connection, and a transaction manager that
// brackets every request in a single committed-or-rolled-back unit of work.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cghughes/authd/internal/logging"
)

// Pool wraps *sql.DB as the bounded set of physical connections. When the
// pool is exhausted, acquisition blocks until a connection is released:
// callers experience latency, not errors, under load.
type Pool struct {
	db     *sql.DB
	logger logging.Logger
}

// NewPool opens a pgx-backed pool for the given DSN. limit caps the number
// of open connections; zero means unlimited.
func NewPool(dsn string, limit int, logger logging.Logger) (*Pool, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	sqlDB.SetMaxOpenConns(limit)
	return NewPoolFromDB(sqlDB, logger), nil
}

// NewPoolFromDB wraps an already-opened *sql.DB. Used by tests and by
// callers that need a different driver.
func NewPoolFromDB(sqlDB *sql.DB, logger logging.Logger) *Pool {
	return &Pool{db: sqlDB, logger: logger}
}

// DB exposes the underlying handle for migrations and for statements that
// run outside any request context.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Acquire checks a dedicated connection out of the pool, blocking while the
// pool is exhausted.
func (p *Pool) Acquire(ctx context.Context) (*sql.Conn, error) {
	if s := p.db.Stats(); s.MaxOpenConnections > 0 && s.InUse >= s.MaxOpenConnections {
		p.logger.Debug(ctx, "waiting for available connection slot",
			"in_use", s.InUse, "open", s.OpenConnections)
	}
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("connection acquire error: %w", err)
	}
	s := p.db.Stats()
	p.logger.Debug(ctx, "connection acquired", "in_use", s.InUse, "open", s.OpenConnections)
	return conn, nil
}

// Release returns a connection to the pool.
func (p *Pool) Release(ctx context.Context, conn *sql.Conn) {
	if err := conn.Close(); err != nil && err != sql.ErrConnDone {
		p.logger.Warn(ctx, "connection release error", "error", err)
	}
	s := p.db.Stats()
	p.logger.Debug(ctx, "connection released", "in_use", s.InUse, "open", s.OpenConnections)
}

// InUse reports the number of connections currently checked out.
func (p *Pool) InUse() int {
	return p.db.Stats().InUse
}

// Close shuts the pool down. Connections still checked out at this point
// are leaked or orphaned; their count is logged as a warning before the
// driver force-closes them. This is the escape hatch for test teardown and
// process shutdown.
func (p *Pool) Close(ctx context.Context) error {
	s := p.db.Stats()
	if s.InUse > 0 {
		p.logger.Warn(ctx, "forcing disconnection of outstanding connections", "count", s.InUse)
	}
	p.logger.Debug(ctx, "disconnecting connection pool", "in_use", s.InUse, "open", s.OpenConnections)
	return p.db.Close()
}
