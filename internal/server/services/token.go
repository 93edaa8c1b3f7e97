// Package services contains the server-side business logic: the token
// issuer, the user directory, and the auth workflow built on top of them.
package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cghughes/authd/internal/common"
	"github.com/cghughes/authd/internal/server/config"
	"github.com/cghughes/authd/internal/server/db"
	"github.com/cghughes/authd/internal/server/models"
	"github.com/cghughes/authd/internal/server/repositories/repomanager"
)

// tokenClaims is the wire format of every signed token:
// {sub, iat, exp, type}.
type tokenClaims struct {
	jwt.RegisteredClaims
	Type models.TokenType `json:"type"`
}

// IssuedToken pairs a signed token with its expiry for client bookkeeping.
type IssuedToken struct {
	Value   string
	Expires time.Time
}

// TokenPair bundles a short-lived access token and a long-lived refresh
// token.
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// TokenService mints and verifies signed tokens. Refresh and reset tokens
// are additionally persisted; the store row, not the signature, is the
// authority for their liveness.
type TokenService struct {
	sessions        *db.TxManager
	rm              repomanager.RepositoryManager
	secret          []byte
	accessValidity  time.Duration
	refreshValidity time.Duration
	resetValidity   time.Duration
}

func NewTokenService(sessions *db.TxManager, rm repomanager.RepositoryManager, cfg *config.Config) *TokenService {
	return &TokenService{
		sessions:        sessions,
		rm:              rm,
		secret:          []byte(cfg.SecretKey),
		accessValidity:  cfg.AccessTokenValidityDuration,
		refreshValidity: cfg.RefreshTokenValidityDuration,
		resetValidity:   cfg.ResetTokenValidityDuration,
	}
}

// Issue mints a signed token for userID expiring at expires. It has no
// persistence side effect.
func (s *TokenService) Issue(userID int64, expires time.Time, typ models.TokenType) (string, error) {
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Type: typ,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token signing error: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry (zero clock-skew tolerance), and type.
// For refresh and reset tokens it then cross-checks the store for a live
// row matching (value, type, subject): a cryptographically valid token
// whose row is gone — rotated away, consumed, or never issued — does not
// verify. All failure reasons are indistinguishable to the caller.
func (s *TokenService) Verify(ctx context.Context, value string, expected models.TokenType) (*models.Token, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(value, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, common.ErrInvalidToken
	}
	if claims.Type != expected || claims.ExpiresAt == nil {
		return nil, common.ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	if expected == models.TokenTypeAccess {
		// Access tokens are never persisted; the signature is the whole story.
		return models.NewToken(value, userID, claims.ExpiresAt.Time, expected), nil
	}

	q, err := s.sessions.Querier(ctx)
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	token, err := s.rm.Tokens(q).Find(ctx, value, expected, userID)
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	return token, nil
}

// IssueAuthTokenPair mints an access token (not persisted) and a refresh
// token (persisted) for user, returning both with their expiry timestamps.
func (s *TokenService) IssueAuthTokenPair(ctx context.Context, user *models.User) (*TokenPair, error) {
	accessExpires := time.Now().Add(s.accessValidity)
	access, err := s.Issue(user.ID, accessExpires, models.TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	refreshExpires := time.Now().Add(s.refreshValidity)
	refresh, err := s.Issue(user.ID, refreshExpires, models.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	q, err := s.sessions.Querier(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.rm.Tokens(q).Create(ctx, models.NewToken(refresh, user.ID, refreshExpires, models.TokenTypeRefresh)); err != nil {
		return nil, err
	}

	return &TokenPair{
		Access:  IssuedToken{Value: access, Expires: accessExpires},
		Refresh: IssuedToken{Value: refresh, Expires: refreshExpires},
	}, nil
}

// IssueResetPasswordToken mints and persists a short-lived reset token for
// the user owning email. Outstanding reset tokens for the same user stay
// valid until one of them is consumed.
func (s *TokenService) IssueResetPasswordToken(ctx context.Context, email string) (string, error) {
	q, err := s.sessions.Querier(ctx)
	if err != nil {
		return "", err
	}
	user, err := s.rm.Users(q).GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	expires := time.Now().Add(s.resetValidity)
	reset, err := s.Issue(user.ID, expires, models.TokenTypeResetPassword)
	if err != nil {
		return "", err
	}
	if err := s.rm.Tokens(q).Create(ctx, models.NewToken(reset, user.ID, expires, models.TokenTypeResetPassword)); err != nil {
		return "", err
	}
	return reset, nil
}
