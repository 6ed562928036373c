package repository

import (
	"context"
	"crypto/subtle"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-account-auth/internal/model"
	"go-account-auth/internal/password"
)

// MemoryUserRepository is a process-local credential store. Uniqueness and
// secret consumption are decided under a single lock, which gives the same
// guarantees the database constraints give UserRepository.
type MemoryUserRepository struct {
	hasher *password.Hasher
	now    func() time.Time

	mu    sync.RWMutex
	users map[string]model.User
}

func NewMemoryUserRepository(hasher *password.Hasher) *MemoryUserRepository {
	return &MemoryUserRepository{
		hasher: hasher,
		now:    time.Now,
		users:  map[string]model.User{},
	}
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (model.User, error) {
	key := normalize(email)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if normalize(u.Email) == key {
			return cloneUser(u), nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (r *MemoryUserRepository) FindByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	if u, err := r.FindByEmail(ctx, identifier); err == nil {
		return u, nil
	}

	key := normalize(identifier)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if normalize(u.Username) == key {
			return cloneUser(u), nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (r *MemoryUserRepository) Create(_ context.Context, nu model.NewUser) (model.User, error) {
	var hash string
	if nu.Password != "" {
		var err error
		if hash, err = r.hasher.Hash(nu.Password); err != nil {
			return model.User{}, err
		}
	}

	now := r.now().UTC()
	u := model.User{
		ID:             uuid.NewString(),
		Firstname:      strings.TrimSpace(nu.Firstname),
		Lastname:       strings.TrimSpace(nu.Lastname),
		Username:       strings.TrimSpace(nu.Username),
		Email:          normalize(nu.Email),
		PasswordHash:   hash,
		PhotoURL:       nu.PhotoURL,
		Provider:       nu.Provider,
		EmailVerified:  nu.EmailVerified,
		AccountExpires: nu.AccountExpires,
		Settings:       copySettings(nu.Settings),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if nu.Secret != nil {
		issued := nu.Secret.IssuedAt
		u.ResetTokenHash = nu.Secret.Hash
		u.ResetPurpose = nu.Secret.Purpose
		u.ResetDate = &issued
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dup := &model.DuplicateIdentityError{}
	for _, existing := range r.users {
		if normalize(existing.Email) == u.Email {
			dup.Email = true
		}
		if normalize(existing.Username) == normalize(u.Username) {
			dup.Username = true
		}
	}
	if dup.Email || dup.Username {
		return model.User{}, dup
	}

	r.users[u.ID] = u
	return cloneUser(u), nil
}

func (r *MemoryUserRepository) UpdateFields(_ context.Context, id string, patch model.UserPatch) (model.User, error) {
	var hash *string
	if patch.Password != nil {
		h, err := r.hasher.Hash(*patch.Password)
		if err != nil {
			return model.User{}, err
		}
		hash = &h
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}

	if patch.Firstname != nil {
		u.Firstname = *patch.Firstname
	}
	if patch.Lastname != nil {
		u.Lastname = *patch.Lastname
	}
	if patch.PhotoURL != nil {
		u.PhotoURL = *patch.PhotoURL
	}
	if patch.IsLogin != nil {
		u.IsLogin = *patch.IsLogin
	}
	if patch.LastLogin != nil {
		at := *patch.LastLogin
		u.LastLogin = &at
	}
	if hash != nil {
		u.PasswordHash = *hash
	}
	if patch.Settings != nil {
		merged := copySettings(u.Settings)
		for k, v := range patch.Settings {
			merged[k] = v
		}
		u.Settings = merged
	}
	u.UpdatedAt = r.now().UTC()

	r.users[id] = u
	return cloneUser(u), nil
}

func (r *MemoryUserRepository) StoreSecret(_ context.Context, userID string, secret model.PendingSecret) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}

	issued := secret.IssuedAt
	u.ResetTokenHash = secret.Hash
	u.ResetPurpose = secret.Purpose
	u.ResetDate = &issued
	u.UpdatedAt = r.now().UTC()
	r.users[userID] = u
	return nil
}

func (r *MemoryUserRepository) ConsumeSecret(_ context.Context, params model.ConsumeSecret) (model.User, error) {
	var hash *string
	if params.NewPassword != nil {
		h, err := r.hasher.Hash(*params.NewPassword)
		if err != nil {
			return model.User{}, err
		}
		hash = &h
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[params.UserID]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}

	matches := u.ResetTokenHash != "" &&
		u.ResetPurpose == params.Purpose &&
		subtle.ConstantTimeCompare([]byte(u.ResetTokenHash), []byte(params.Hash)) == 1 &&
		u.ResetDate != nil && u.ResetDate.After(params.IssuedAfter)
	if !matches {
		return model.User{}, classifyConsume(u.ResetPurpose, u.ResetTokenHash, u.ResetDate, params)
	}

	u.ResetTokenHash = ""
	u.ResetPurpose = ""
	u.ResetDate = nil
	if params.MarkVerified {
		u.AccountExpires = nil
		u.EmailVerified = true
	}
	if hash != nil {
		u.PasswordHash = *hash
	}
	u.UpdatedAt = r.now().UTC()

	r.users[u.ID] = u
	return cloneUser(u), nil
}

func (r *MemoryUserRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func cloneUser(u model.User) model.User {
	if u.Settings != nil {
		u.Settings = copySettings(u.Settings)
	}
	return u
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
