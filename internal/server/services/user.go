package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/cghughes/authd/internal/common"
	"github.com/cghughes/authd/internal/server/db"
	"github.com/cghughes/authd/internal/server/models"
	"github.com/cghughes/authd/internal/server/repositories/repomanager"
)

const (
	defaultQueryLimit = 10
)

// UserService is the user directory. Credentials are stored as bcrypt
// hashes and compared in constant time.
type UserService struct {
	sessions *db.TxManager
	rm       repomanager.RepositoryManager
}

func NewUserService(sessions *db.TxManager, rm repomanager.RepositoryManager) *UserService {
	return &UserService{sessions: sessions, rm: rm}
}

// Create inserts a new user. The plaintext credential in user.Password is
// replaced with its bcrypt hash before it touches the store. Duplicate
// emails are rejected with ErrorConflict.
func (s *UserService) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID > 0 {
		return nil, fmt.Errorf("cannot create an existing user: %w", common.ErrorValidation)
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	q, err := s.sessions.Querier(ctx)
	if err != nil {
		return nil, common.ErrorInternal
	}
	repo := s.rm.Users(q)

	taken, err := repo.EmailTaken(ctx, user.Email, 0)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if taken {
		return nil, fmt.Errorf("email already taken: %w", common.ErrorConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, common.ErrorInternal
	}
	user.Password = string(hash)

	created, err := repo.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return created, nil
}

// GetByID returns the user or ErrorNotFound.
func (s *UserService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	q, err := s.sessions.Querier(ctx)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return s.rm.Users(q).GetByID(ctx, id)
}

// GetByEmail returns the user or ErrorNotFound.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	q, err := s.sessions.Querier(ctx)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return s.rm.Users(q).GetByEmail(ctx, email)
}

// Query lists users whose email matches emailPattern (LIKE syntax; empty
// means everything), with offset/limit paging.
func (s *UserService) Query(ctx context.Context, emailPattern string, page, limit int) ([]*models.User, error) {
	if emailPattern == "" {
		emailPattern = "%"
	}
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if page < 0 {
		page = 0
	}

	q, err := s.sessions.Querier(ctx)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return s.rm.Users(q).Query(ctx, emailPattern, page, limit)
}

// Update overwrites the user's row. An empty Password leaves the stored
// hash untouched; a non-empty one is re-hashed. Moving to an email another
// user owns is rejected with ErrorConflict.
func (s *UserService) Update(ctx context.Context, user *models.User) error {
	q, err := s.sessions.Querier(ctx)
	if err != nil {
		return common.ErrorInternal
	}
	repo := s.rm.Users(q)

	if user.Email != "" {
		taken, err := repo.EmailTaken(ctx, user.Email, user.ID)
		if err != nil {
			return common.ErrorInternal
		}
		if taken {
			return fmt.Errorf("email already taken: %w", common.ErrorConflict)
		}
	}

	withPassword := user.Password != ""
	if withPassword {
		hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
		if err != nil {
			return common.ErrorInternal
		}
		user.Password = string(hash)
	}

	affected, err := repo.Update(ctx, user, withPassword)
	if err != nil {
		return common.ErrorInternal
	}
	if affected < 1 {
		return fmt.Errorf("record not updated: %w", common.ErrorInternal)
	}
	return nil
}

// DeleteByID removes the user, failing with ErrorNotFound when the id
// does not exist.
func (s *UserService) DeleteByID(ctx context.Context, id int64) error {
	q, err := s.sessions.Querier(ctx)
	if err != nil {
		return common.ErrorInternal
	}
	affected, err := s.rm.Users(q).DeleteByID(ctx, id)
	if err != nil {
		return common.ErrorInternal
	}
	if affected < 1 {
		return fmt.Errorf("record not deleted: %w", common.ErrorNotFound)
	}
	return nil
}

// Authenticate verifies an email/password credential pair. User-not-found
// and credential-mismatch collapse into one ErrorUnauthorized so callers
// cannot enumerate accounts.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	q, err := s.sessions.Querier(ctx)
	if err != nil {
		return nil, common.ErrorInternal
	}
	user, err := s.rm.Users(q).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}
