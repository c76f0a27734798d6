package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/degap/degap-api/internal/model"
)

// userMemoryRepository is an in-memory UserRepository with the same semantics
// as the mongo implementation. It backs tests and local development without a
// database.
type userMemoryRepository struct {
	mu    sync.Mutex
	users map[string]*model.User
}

// NewUserMemoryRepository creates an empty in-memory user repository.
func NewUserMemoryRepository() UserRepository {
	return &userMemoryRepository{users: make(map[string]*model.User)}
}

func (r *userMemoryRepository) Create(_ context.Context, user *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(user.Email))
	for _, existing := range r.users {
		if existing.Email == email {
			return nil, ErrDuplicateEmail
		}
	}

	now := time.Now()
	stored := *user
	stored.ID = bson.NewObjectID()
	stored.Email = email
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if stored.RefreshSessions == nil {
		stored.RefreshSessions = model.RefreshSessionList{}
	}

	r.users[stored.ID.Hex()] = &stored

	out := stored
	return &out, nil
}

func (r *userMemoryRepository) GetByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}

	return copyUser(user), nil
}

func (r *userMemoryRepository) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range r.users {
		if user.Email == email {
			return copyUser(user), nil
		}
	}

	return nil, ErrNotFound
}

func (r *userMemoryRepository) GetByProvider(_ context.Context, provider, providerID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Provider == provider && user.ProviderID != "" && user.ProviderID == providerID {
			return copyUser(user), nil
		}
	}

	return nil, ErrNotFound
}

func (r *userMemoryRepository) GetByVerifyTokenHash(_ context.Context, tokenHash string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.VerifyTokenHash == tokenHash && user.VerifyTokenExpiresAt.After(time.Now()) {
			return copyUser(user), nil
		}
	}

	return nil, ErrNotFound
}

func (r *userMemoryRepository) GetByResetTokenHash(_ context.Context, tokenHash string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.ResetTokenHash == tokenHash && user.ResetTokenExpiresAt.After(time.Now()) {
			return copyUser(user), nil
		}
	}

	return nil, ErrNotFound
}

func (r *userMemoryRepository) Update(_ context.Context, id string, params UpdateUserParams) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}

	if params.Name != nil {
		user.Name = *params.Name
	}
	if params.Bio != nil {
		user.Bio = *params.Bio
	}
	if params.AvatarURL != nil {
		user.AvatarURL = *params.AvatarURL
	}
	if params.PasswordHash != nil {
		user.PasswordHash = *params.PasswordHash
	}
	if params.Provider != nil {
		user.Provider = *params.Provider
	}
	if params.ProviderID != nil {
		user.ProviderID = *params.ProviderID
	}
	if params.Status != nil {
		user.Status = *params.Status
	}
	if params.EmailVerified != nil {
		user.EmailVerified = *params.EmailVerified
	}
	if params.VerifyTokenHash != nil {
		user.VerifyTokenHash = *params.VerifyTokenHash
	}
	if params.VerifyTokenExpiresAt != nil {
		user.VerifyTokenExpiresAt = *params.VerifyTokenExpiresAt
	}
	if params.ResetTokenHash != nil {
		user.ResetTokenHash = *params.ResetTokenHash
	}
	if params.ResetTokenExpiresAt != nil {
		user.ResetTokenExpiresAt = *params.ResetTokenExpiresAt
	}
	if params.ClearVerifyToken {
		user.VerifyTokenHash = ""
		user.VerifyTokenExpiresAt = time.Time{}
	}
	if params.ClearResetToken {
		user.ResetTokenHash = ""
		user.ResetTokenExpiresAt = time.Time{}
	}

	user.UpdatedAt = time.Now()

	return copyUser(user), nil
}

func (r *userMemoryRepository) PushRefreshSession(_ context.Context, id string, session model.RefreshSession, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}

	user.RefreshSessions = user.RefreshSessions.Push(session, limit)
	user.UpdatedAt = time.Now()

	return nil
}

func (r *userMemoryRepository) RemoveRefreshSession(_ context.Context, id, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}

	user.RefreshSessions = user.RefreshSessions.Remove(tokenHash)
	user.UpdatedAt = time.Now()

	return nil
}

func (r *userMemoryRepository) ReplaceRefreshSessions(_ context.Context, id string, sessions model.RefreshSessionList) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}

	user.RefreshSessions = append(model.RefreshSessionList{}, sessions...)
	user.UpdatedAt = time.Now()

	return nil
}

func (r *userMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}

	delete(r.users, id)

	return nil
}

func copyUser(user *model.User) *model.User {
	out := *user
	out.RefreshSessions = append(model.RefreshSessionList{}, user.RefreshSessions...)

	return &out
}
