package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/degap/degap-api/internal/auth"
	"github.com/degap/degap-api/internal/config"
	"github.com/degap/degap-api/internal/model"
	"github.com/degap/degap-api/internal/repository"
)

// Tokens is an issued access/refresh token pair. Transport (cookie vs body) is
// the handler's concern.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// SessionUsecase manages the refresh-token session lifecycle. Each account
// holds a bounded FIFO list of active refresh sessions; minting beyond the cap
// evicts the oldest.
type SessionUsecase interface {
	MintSession(ctx context.Context, user *model.User) (*Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, userID, refreshToken string) error
	RevokeAll(ctx context.Context, userID string) error
	DeleteAccount(ctx context.Context, userID string) error
}

var (
	ErrInvalidRefreshToken = errors.New("refresh token is invalid or has been revoked")
	ErrUserNotFound        = errors.New("user not found")
)

type sessionUsecase struct {
	userRepo repository.UserRepository
	codec    *auth.TokenCodec
	logger   *zerolog.Logger
	cfg      *config.TokenConfig
}

// NewSessionUsecase creates a new instance of SessionUsecase.
func NewSessionUsecase(
	userRepo repository.UserRepository,
	codec *auth.TokenCodec,
	logger *zerolog.Logger,
	cfg *config.TokenConfig,
) SessionUsecase {
	return &sessionUsecase{
		userRepo: userRepo,
		codec:    codec,
		logger:   logger,
		cfg:      cfg,
	}
}

func (u *sessionUsecase) MintSession(ctx context.Context, user *model.User) (*Tokens, error) {
	accessToken, err := u.codec.IssueAccessToken(user.ID.Hex(), user.Email, user.Role, user.EmailVerified)
	if err != nil {
		return nil, err
	}

	refreshToken, err := u.codec.IssueRefreshToken(user.ID.Hex())
	if err != nil {
		return nil, err
	}

	// Append-and-trim in one store operation: two logins racing on the same
	// account must both end up on the list.
	now := time.Now()
	session := model.RefreshSession{
		TokenHash: auth.HashToken(refreshToken),
		CreatedAt: now,
		ExpiresAt: now.Add(u.codec.RefreshExpiresIn()),
	}
	if err := u.userRepo.PushRefreshSession(ctx, user.ID.Hex(), session, u.cfg.MaxRefreshSessions); err != nil {
		return nil, err
	}

	return &Tokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (u *sessionUsecase) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := u.codec.VerifyRefreshToken(refreshToken)
	if err != nil {
		// Expired and malformed tokens collapse to the same outcome; the
		// client re-authenticates either way.
		return "", ErrInvalidRefreshToken
	}

	user, err := u.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUserNotFound
		}

		return "", err
	}

	// The hash must match an entry still on the account. Its absence covers
	// revocation, cap eviction, and token reuse alike; the three are
	// deliberately indistinguishable to the caller.
	if !user.RefreshSessions.Contains(auth.HashToken(refreshToken)) {
		return "", ErrInvalidRefreshToken
	}

	return u.codec.IssueAccessToken(user.ID.Hex(), user.Email, user.Role, user.EmailVerified)
}

func (u *sessionUsecase) Logout(ctx context.Context, userID, refreshToken string) error {
	// Single pull by hash; removing an already revoked or evicted entry is a
	// no-op, so logout stays idempotent.
	err := u.userRepo.RemoveRefreshSession(ctx, userID, auth.HashToken(refreshToken))
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}

	return err
}

func (u *sessionUsecase) RevokeAll(ctx context.Context, userID string) error {
	return u.userRepo.ReplaceRefreshSessions(ctx, userID, model.RefreshSessionList{})
}

func (u *sessionUsecase) DeleteAccount(ctx context.Context, userID string) error {
	if err := u.userRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}

		return err
	}

	u.logger.Info().Str("user_id", userID).Msg("account deleted")

	return nil
}
