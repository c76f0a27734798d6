package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/degap/degap-api/internal/auth"
	"github.com/degap/degap-api/internal/config"
	"github.com/degap/degap-api/internal/model"
	"github.com/degap/degap-api/internal/repository"
	"github.com/degap/degap-api/internal/security"
)

// Mailer is the outbound email capability the auth flows depend on.
type Mailer interface {
	SendHTML(to []string, subject, htmlBody string) error
}

// AuthUsecase defines the credential-based authentication flows.
type AuthUsecase interface {
	Register(ctx context.Context, params RegisterParams) (*model.User, error)
	Login(ctx context.Context, params LoginParams) (*model.User, *Tokens, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	VerifyEmail(ctx context.Context, token string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
}

// RegisterParams defines the parameters for user registration.
type RegisterParams struct {
	Name     string
	Email    string
	Password string
}

// LoginParams defines the parameters for user login.
type LoginParams struct {
	Email    string
	Password string
}

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountSuspended   = errors.New("account is suspended")
	ErrAccountBanned      = errors.New("account is banned")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrOAuthAccount       = errors.New("account has no password login")
	ErrInvalidPassword    = errors.New("current password is incorrect")
)

type authUsecase struct {
	userRepo repository.UserRepository
	sessions SessionUsecase
	mailer   Mailer
	logger   *zerolog.Logger
	cfg      *config.Config
}

// NewAuthUsecase creates a new instance of AuthUsecase.
func NewAuthUsecase(
	userRepo repository.UserRepository,
	sessions SessionUsecase,
	mailer Mailer,
	logger *zerolog.Logger,
	cfg *config.Config,
) AuthUsecase {
	return &authUsecase{
		userRepo: userRepo,
		sessions: sessions,
		mailer:   mailer,
		logger:   logger,
		cfg:      cfg,
	}
}

func (u *authUsecase) Register(ctx context.Context, params RegisterParams) (*model.User, error) {
	passwordHash, err := security.HashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	verifyToken, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, err
	}

	user, err := u.userRepo.Create(ctx, &model.User{
		Name:                 params.Name,
		Email:                params.Email,
		PasswordHash:         passwordHash,
		Provider:             model.ProviderLocal,
		Role:                 model.RoleStudent,
		Status:               model.StatusActive,
		EmailVerified:        false,
		VerifyTokenHash:      auth.HashToken(verifyToken),
		VerifyTokenExpiresAt: time.Now().Add(u.cfg.Token.VerifyExpiresIn),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrUserAlreadyExists
		}

		return nil, err
	}

	if err := u.sendVerificationEmail(user, verifyToken); err != nil {
		return nil, err
	}

	return user, nil
}

func (u *authUsecase) Login(ctx context.Context, params LoginParams) (*model.User, *Tokens, error) {
	user, err := u.userRepo.GetByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}

		return nil, nil, err
	}

	switch user.Status {
	case model.StatusSuspended:
		return nil, nil, ErrAccountSuspended
	case model.StatusBanned:
		return nil, nil, ErrAccountBanned
	}

	if user.PasswordHash == "" {
		// External-identity-only account. Same response as a wrong password so
		// the login form does not leak which providers an email uses.
		return nil, nil, ErrInvalidCredentials
	}

	if ok, err := security.VerifyPassword(params.Password, user.PasswordHash); err != nil {
		return nil, nil, err
	} else if !ok {
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := u.sessions.MintSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	return user, tokens, nil
}

func (u *authUsecase) ForgotPassword(ctx context.Context, email string) error {
	user, err := u.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// To prevent email enumeration, do not reveal that the email does
			// not exist.
			return nil
		}

		return err
	}

	resetToken, err := auth.NewOpaqueToken()
	if err != nil {
		return err
	}

	tokenHash := auth.HashToken(resetToken)
	expiresAt := time.Now().Add(u.cfg.Token.ResetExpiresIn)

	// Overwrites any outstanding reset token, invalidating it immediately.
	if _, err := u.userRepo.Update(ctx, user.ID.Hex(), repository.UpdateUserParams{
		ResetTokenHash:      &tokenHash,
		ResetTokenExpiresAt: &expiresAt,
	}); err != nil {
		return err
	}

	return u.sendPasswordResetEmail(user, resetToken)
}

func (u *authUsecase) ResetPassword(ctx context.Context, token, newPassword string) error {
	user, err := u.userRepo.GetByResetTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}

		return err
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if _, err := u.userRepo.Update(ctx, user.ID.Hex(), repository.UpdateUserParams{
		PasswordHash:    &passwordHash,
		ClearResetToken: true,
	}); err != nil {
		return err
	}

	u.logger.Info().Str("email", user.Email).Msg("password reset successful")

	return nil
}

func (u *authUsecase) VerifyEmail(ctx context.Context, token string) error {
	user, err := u.userRepo.GetByVerifyTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}

		return err
	}

	verified := true
	if _, err := u.userRepo.Update(ctx, user.ID.Hex(), repository.UpdateUserParams{
		EmailVerified:    &verified,
		ClearVerifyToken: true,
	}); err != nil {
		return err
	}

	// The verification already succeeded; a failed welcome email should not
	// surface as an error to the user.
	if err := u.sendWelcomeEmail(user); err != nil {
		u.logger.Warn().Err(err).Str("email", user.Email).Msg("failed to send welcome email")
	}

	u.logger.Info().Str("email", user.Email).Msg("email verified")

	return nil
}

func (u *authUsecase) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := u.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}

		return err
	}

	if user.PasswordHash == "" {
		return ErrOAuthAccount
	}

	if ok, err := security.VerifyPassword(currentPassword, user.PasswordHash); err != nil {
		return err
	} else if !ok {
		return ErrInvalidPassword
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if _, err := u.userRepo.Update(ctx, user.ID.Hex(), repository.UpdateUserParams{
		PasswordHash: &passwordHash,
	}); err != nil {
		return err
	}

	return nil
}

func (u *authUsecase) sendVerificationEmail(user *model.User, token string) error {
	verifyLink := fmt.Sprintf("%s/verify-email/%s", u.cfg.FrontendURL, token)
	htmlBody := fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>Welcome to Degap! Please verify your email address by clicking the link below:</p>
		<p><a href="%s">%s</a></p>
		<p>This link will expire in %s.</p>
		<p>If you didn't create an account, please ignore this email.</p>
	`, user.Name, verifyLink, verifyLink, u.cfg.Token.VerifyExpiresIn)

	return u.mailer.SendHTML([]string{user.Email}, "Verify Your Email - Degap", htmlBody)
}

func (u *authUsecase) sendPasswordResetEmail(user *model.User, token string) error {
	resetLink := fmt.Sprintf("%s/reset-password/%s", u.cfg.FrontendURL, token)
	htmlBody := fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>You requested to reset your password. Click the link below to reset it:</p>
		<p><a href="%s">%s</a></p>
		<p>This link will expire in %s.</p>
		<p>If you didn't request this, please ignore this email.</p>
	`, user.Name, resetLink, resetLink, u.cfg.Token.ResetExpiresIn)

	return u.mailer.SendHTML([]string{user.Email}, "Reset Your Password - Degap", htmlBody)
}

func (u *authUsecase) sendWelcomeEmail(user *model.User) error {
	coursesLink := fmt.Sprintf("%s/courses", u.cfg.FrontendURL)
	htmlBody := fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>Your email has been verified! Welcome to Degap.</p>
		<p>Start exploring learning roadmaps at: <a href="%s">%s</a></p>
	`, user.Name, coursesLink, coursesLink)

	return u.mailer.SendHTML([]string{user.Email}, "Welcome to Degap!", htmlBody)
}
