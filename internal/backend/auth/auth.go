// Package auth implements account management with bcrypt-hashed credentials
// and opaque session tokens held in Redis.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/jo-hoe/retiscan/internal/backend/database"
	"github.com/jo-hoe/retiscan/internal/common"
)

const minPasswordLength = 8

type Service struct {
	db database.DatabaseService
}

func NewService(db database.DatabaseService) *Service {
	return &Service{db: db}
}

// CreateUser registers a new account. All validation happens before any row
// is written; a mismatched confirmation or weak input never leaves a partial
// user behind. Passwords are stored as bcrypt hashes, never in clear text.
func (s *Service) CreateUser(username, email, password, confirmPassword, fullName string) (*database.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" {
		return nil, fmt.Errorf("username must not be empty: %w", common.ErrValidation)
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("email address %q is not valid: %w", email, common.ErrValidation)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, common.ErrValidation)
	}
	if password != confirmPassword {
		return nil, fmt.Errorf("passwords do not match: %w", common.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &database.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(fullName),
	}
	if err := s.db.CreateUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate verifies a username/password pair. Unknown usernames and wrong
// passwords are indistinguishable to the caller; bcrypt's comparison is
// constant-time over the hash.
func (s *Service) Authenticate(username, password string) (*database.User, error) {
	user, err := s.db.UserByUsername(strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Burn a comparison anyway so the miss costs as much as a mismatch
		_ = bcrypt.CompareHashAndPassword(
			[]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"), []byte(password))
		return nil, common.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to compare password hash: %w", err)
	}
	return user, nil
}

// UserByID loads an account for profile display.
func (s *Service) UserByID(id string) (*database.User, error) {
	user, err := s.db.UserByID(id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("no user with id %s: %w", id, common.ErrPersistence)
	}
	return user, nil
}

// UpdateProfile changes the mutable account fields (email, full name).
// Username and credentials stay fixed.
func (s *Service) UpdateProfile(id, email, fullName string) error {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return fmt.Errorf("email address %q is not valid: %w", email, common.ErrValidation)
	}
	return s.db.UpdateUserProfile(id, email, strings.TrimSpace(fullName))
}
