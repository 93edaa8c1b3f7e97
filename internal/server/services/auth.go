package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/cghughes/authd/internal/common"
	"github.com/cghughes/authd/internal/logging"
	"github.com/cghughes/authd/internal/server/db"
	"github.com/cghughes/authd/internal/server/email"
	"github.com/cghughes/authd/internal/server/models"
	"github.com/cghughes/authd/internal/server/repositories/repomanager"
)

// AuthService orchestrates the token lifecycle: login, logout, refresh
// rotation, and password reset. Every operation runs inside the request's
// transaction bracket; the boundary begins and commits/rolls back around
// each call.
type AuthService struct {
	users    *UserService
	tokens   *TokenService
	sessions *db.TxManager
	rm       repomanager.RepositoryManager
	sender   email.Sender
	logger   logging.Logger
}

func NewAuthService(users *UserService, tokens *TokenService, sessions *db.TxManager,
	rm repomanager.RepositoryManager, sender email.Sender, logger logging.Logger) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		sessions: sessions,
		rm:       rm,
		sender:   sender,
		logger:   logger,
	}
}

// Register creates the user and issues its first token pair.
func (s *AuthService) Register(ctx context.Context, user *models.User) (*models.User, *TokenPair, error) {
	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	pair, err := s.tokens.IssueAuthTokenPair(ctx, created)
	if err != nil {
		return nil, nil, common.ErrorInternal
	}
	return created, pair, nil
}

// Login verifies the credential and issues a fresh access+refresh pair.
// All mismatches collapse into ErrorUnauthorized.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (*models.User, *TokenPair, error) {
	user, err := s.users.Authenticate(ctx, emailAddr, password)
	if err != nil {
		return nil, nil, err
	}
	pair, err := s.tokens.IssueAuthTokenPair(ctx, user)
	if err != nil {
		return nil, nil, common.ErrorInternal
	}
	return user, pair, nil
}

// Logout deletes the persisted row for the presented refresh token.
// ErrorNotFound means no live row matched: already logged out, forged, or
// never issued.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	q, err := s.sessions.Querier(ctx)
	if err != nil {
		return common.ErrorInternal
	}
	affected, err := s.rm.Tokens(q).DeleteByValue(ctx, refreshToken)
	if err != nil {
		return common.ErrorInternal
	}
	if affected < 1 {
		return fmt.Errorf("token not found: %w", common.ErrorNotFound)
	}
	return nil
}

// Refresh rotates a refresh token: verify, confirm the owning user still
// exists, consume the presented token, and issue a brand-new pair. Each
// refresh token is single-use; presenting an already-rotated token fails
// because its row was deleted at rotation time. Every failure collapses
// into one opaque ErrorUnauthorized.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	pair, err := s.refresh(ctx, refreshToken)
	if err != nil {
		s.logger.Warn(ctx, "refresh rotation rejected", "error", err)
		return nil, fmt.Errorf("please authenticate: %w", common.ErrorUnauthorized)
	}
	return pair, nil
}

func (s *AuthService) refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	token, err := s.tokens.Verify(ctx, refreshToken, models.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, err
	}

	// Atomic consume: the conditional delete is what makes rotation
	// single-use. A concurrent rotation of the same value loses here with
	// zero affected rows.
	if err := s.Logout(ctx, token.Value); err != nil {
		return nil, err
	}

	return s.tokens.IssueAuthTokenPair(ctx, user)
}

// ForgotPassword issues and persists a reset token for the user owning
// email, then hands it to the mail collaborator. Delivery is
// fire-and-forget: a failed send is logged and the token stays valid.
func (s *AuthService) ForgotPassword(ctx context.Context, emailAddr string) error {
	reset, err := s.tokens.IssueResetPasswordToken(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("no users found with this email: %w", common.ErrorNotFound)
		}
		return common.ErrorInternal
	}

	if err := s.sender.SendResetPasswordEmail(ctx, emailAddr, reset); err != nil {
		s.logger.Error(ctx, "reset password email failed", "error", err)
	}
	return nil
}

// ResetPassword consumes a reset token and overwrites the user's
// credential. Consuming one reset token invalidates every outstanding
// reset token for the same user. Every failure branch collapses into one
// opaque ErrorUnauthorized.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if err := s.resetPassword(ctx, resetToken, newPassword); err != nil {
		s.logger.Warn(ctx, "password reset rejected", "error", err)
		return fmt.Errorf("password reset failed: %w", common.ErrorUnauthorized)
	}
	return nil
}

func (s *AuthService) resetPassword(ctx context.Context, resetToken, newPassword string) error {
	token, err := s.tokens.Verify(ctx, resetToken, models.TokenTypeResetPassword)
	if err != nil {
		return err
	}

	q, err := s.sessions.Querier(ctx)
	if err != nil {
		return err
	}
	affected, err := s.rm.Tokens(q).DeleteByUserAndType(ctx, token.UserID, models.TokenTypeResetPassword)
	if err != nil {
		return err
	}
	if affected < 1 {
		// Verified a moment ago but the row is gone: a concurrent reset won.
		return fmt.Errorf("no reset tokens deleted for user %d", token.UserID)
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		return err
	}
	user.Password = newPassword
	return s.users.Update(ctx, user)
}
