package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/degap/degap-api/internal/model"
	"github.com/degap/degap-api/internal/provider"
	"github.com/degap/degap-api/internal/repository"
)

// ErrOAuthFailed is returned when an external identity assertion cannot be
// reconciled to an account.
var ErrOAuthFailed = errors.New("oauth authentication failed")

// OAuthUsecase reconciles external identity assertions to local accounts,
// linking or creating records as needed. It is generic over the provider
// registry, not over concrete providers.
type OAuthUsecase interface {
	ResolveAssertion(ctx context.Context, assertion *provider.Assertion) (*model.User, error)
}

type oauthUsecase struct {
	userRepo repository.UserRepository
	logger   *zerolog.Logger
}

// NewOAuthUsecase creates a new instance of OAuthUsecase.
func NewOAuthUsecase(userRepo repository.UserRepository, logger *zerolog.Logger) OAuthUsecase {
	return &oauthUsecase{
		userRepo: userRepo,
		logger:   logger,
	}
}

func (u *oauthUsecase) ResolveAssertion(ctx context.Context, assertion *provider.Assertion) (*model.User, error) {
	if assertion == nil || assertion.ProviderID == "" {
		return nil, ErrOAuthFailed
	}

	// Exact provider identity match wins regardless of email.
	user, err := u.userRepo.GetByProvider(ctx, assertion.Provider, assertion.ProviderID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if assertion.Email == "" {
		// Without an email there is nothing to link on and no valid account
		// to create.
		return nil, ErrOAuthFailed
	}

	user, err = u.userRepo.GetByEmail(ctx, assertion.Email)
	if err == nil {
		return u.link(ctx, user, assertion)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	return u.create(ctx, assertion)
}

// link attaches the external identity to an existing account. The account
// gains a second login method; the password hash and every other field stay
// untouched.
func (u *oauthUsecase) link(ctx context.Context, user *model.User, assertion *provider.Assertion) (*model.User, error) {
	params := repository.UpdateUserParams{
		Provider:   &assertion.Provider,
		ProviderID: &assertion.ProviderID,
	}

	if user.AvatarURL == "" && assertion.AvatarURL != "" {
		params.AvatarURL = &assertion.AvatarURL
	}

	linked, err := u.userRepo.Update(ctx, user.ID.Hex(), params)
	if err != nil {
		return nil, err
	}

	u.logger.Info().
		Str("email", user.Email).
		Str("provider", assertion.Provider).
		Msg("linked external identity to existing account")

	return linked, nil
}

func (u *oauthUsecase) create(ctx context.Context, assertion *provider.Assertion) (*model.User, error) {
	user, err := u.userRepo.Create(ctx, &model.User{
		Name:          assertion.Name,
		Email:         assertion.Email,
		Provider:      assertion.Provider,
		ProviderID:    assertion.ProviderID,
		AvatarURL:     assertion.AvatarURL,
		Role:          model.RoleStudent,
		Status:        model.StatusActive,
		EmailVerified: true,
	})
	if err != nil {
		return nil, err
	}

	u.logger.Info().
		Str("email", user.Email).
		Str("provider", assertion.Provider).
		Msg("created account from external identity")

	return user, nil
}
