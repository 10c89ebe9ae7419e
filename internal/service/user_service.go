package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"TodoAPI/internal/auth"
	dom "TodoAPI/internal/domain"
	"TodoAPI/internal/logging"
	"TodoAPI/internal/repo"
)

// UserService handles registration, profile updates and credential checks.
type UserService struct {
	repo   repo.UserRepo
	hasher auth.Hasher

	dummyMu   sync.Mutex
	dummyHash string
}

// NewUserService returns a new UserService.
func NewUserService(r repo.UserRepo, h auth.Hasher) *UserService {
	return &UserService{repo: r, hasher: h}
}

func (s *UserService) FindByID(ctx context.Context, id int64) (dom.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (dom.User, error) {
	return s.repo.GetByEmail(ctx, strings.TrimSpace(email))
}

func (s *UserService) FindByUsername(ctx context.Context, username string) (dom.User, error) {
	return s.repo.GetByUsername(ctx, strings.TrimSpace(username))
}

// Register creates a user. Email is checked before username, so a request
// colliding on both reports ErrDuplicateEmail.
func (s *UserService) Register(ctx context.Context, email, username, password string) (dom.User, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)

	if err := s.ensureFree(ctx, 0, &email, &username); err != nil {
		return dom.User{}, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return dom.User{}, err
	}
	return s.repo.Create(ctx, email, username, hash)
}

// Update applies patch to the user's profile. A new password is hashed before storing.
func (s *UserService) Update(ctx context.Context, id int64, patch dom.UserPatch) (dom.User, error) {
	var fields repo.UserFields
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		fields.Email = &email
	}
	if patch.Username != nil {
		username := strings.TrimSpace(*patch.Username)
		fields.Username = &username
	}
	if err := s.ensureFree(ctx, id, fields.Email, fields.Username); err != nil {
		return dom.User{}, err
	}
	if patch.Password != nil {
		hash, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return dom.User{}, err
		}
		fields.PasswordHash = &hash
	}
	return s.repo.Update(ctx, id, fields)
}

// Authenticate returns the user for valid credentials and ErrInvalidCredentials
// otherwise, without revealing which part was wrong.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (dom.User, error) {
	username = strings.TrimSpace(username)
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, dom.ErrNotFound) {
			s.hasher.Verify(password, s.dummy(ctx))
			return dom.User{}, dom.ErrInvalidCredentials
		}
		return dom.User{}, err
	}
	if !s.hasher.Verify(password, u.HashedPassword) {
		return dom.User{}, dom.ErrInvalidCredentials
	}
	if s.hasher.NeedsRehash(u.HashedPassword) {
		u = s.rehash(ctx, u, password)
	}
	return u, nil
}

// rehash stores password under the current hash policy. Login still succeeds
// when the upgrade fails.
func (s *UserService) rehash(ctx context.Context, u dom.User, password string) dom.User {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		logging.FromContext(ctx).Warn("password rehash", "user_id", u.ID, "err", err)
		return u
	}
	updated, err := s.repo.Update(ctx, u.ID, repo.UserFields{PasswordHash: &hash})
	if err != nil {
		logging.FromContext(ctx).Warn("password rehash save", "user_id", u.ID, "err", err)
		return u
	}
	return updated
}

// ensureFree fails when email or username belongs to a user other than selfID.
func (s *UserService) ensureFree(ctx context.Context, selfID int64, email, username *string) error {
	if email != nil {
		u, err := s.repo.GetByEmail(ctx, *email)
		switch {
		case err == nil && u.ID != selfID:
			return dom.ErrDuplicateEmail
		case err != nil && !errors.Is(err, dom.ErrNotFound):
			return err
		}
	}
	if username != nil {
		u, err := s.repo.GetByUsername(ctx, *username)
		switch {
		case err == nil && u.ID != selfID:
			return dom.ErrDuplicateUsername
		case err != nil && !errors.Is(err, dom.ErrNotFound):
			return err
		}
	}
	return nil
}

// dummy returns a hash to compare against for unknown users. A failed hash
// is logged and retried on the next call.
func (s *UserService) dummy(ctx context.Context) string {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()
	if s.dummyHash == "" {
		hash, err := s.hasher.Hash("not-a-real-password")
		if err != nil {
			logging.FromContext(ctx).Error("dummy password hash", "err", err)
			return ""
		}
		s.dummyHash = hash
	}
	return s.dummyHash
}
