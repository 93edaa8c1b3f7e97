package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/cghughes/authd/internal/logging"
	"github.com/cghughes/authd/internal/server/config"
	"github.com/cghughes/authd/internal/server/db"
	"github.com/cghughes/authd/internal/server/repositories/repomanager"
)

const testSchema = `
CREATE TABLE users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  display_name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  password TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'user'
);
CREATE TABLE tokens (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  value TEXT NOT NULL,
  user_id INTEGER NOT NULL,
  expires TIMESTAMP NOT NULL,
  type TEXT NOT NULL,
  blacklisted INTEGER NOT NULL DEFAULT 0
);
`

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"
	return cfg
}

// captureSender records outbound reset emails instead of delivering them.
type captureSender struct {
	to     []string
	tokens []string
}

func (s *captureSender) SendResetPasswordEmail(_ context.Context, to, token string) error {
	s.to = append(s.to, to)
	s.tokens = append(s.tokens, token)
	return nil
}

type harness struct {
	pool     *db.Pool
	sessions *db.TxManager
	users    *UserService
	tokens   *TokenService
	auth     *AuthService
	sender   *captureSender
}

// newHarness wires the full service stack over a shared in-memory sqlite
// database. The pool is capped at one connection, so concurrent request
// brackets serialize at acquisition just like a saturated pool would.
func newHarness(t *testing.T) *harness {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, err = sqlDB.Exec(testSchema)
	require.NoError(t, err)

	logger := testLogger()
	pool := db.NewPoolFromDB(sqlDB, logger)
	binder := db.NewBinder(pool, time.Minute, logger)
	t.Cleanup(binder.Close)
	sessions := db.NewTxManager(binder, logger)

	rm := repomanager.NewPostgresRepositoryManager()
	cfg := testConfig()

	us := NewUserService(sessions, rm)
	ts := NewTokenService(sessions, rm, cfg)
	sender := &captureSender{}
	as := NewAuthService(us, ts, sessions, rm, sender, logger)

	return &harness{pool: pool, sessions: sessions, users: us, tokens: ts, auth: as, sender: sender}
}

// inRequest runs fn inside a fresh request bracket: begin, fn, commit on
// success or rollback on error, mirroring what the transport does per
// request. The fn error is returned as-is.
func (h *harness) inRequest(t *testing.T, fn func(ctx context.Context) error) error {
	t.Helper()
	ctx := db.WithRequestID(context.Background(), uuid.NewString())
	require.NoError(t, h.sessions.Begin(ctx))
	if err := fn(ctx); err != nil {
		h.sessions.Rollback(ctx)
		return err
	}
	require.NoError(t, h.sessions.Commit(ctx))
	return nil
}

func (h *harness) tokenCount(t *testing.T, typ string) int {
	t.Helper()
	var n int
	require.NoError(t, h.pool.DB().QueryRow(`SELECT COUNT(*) FROM tokens WHERE type = $1`, typ).Scan(&n))
	return n
}
