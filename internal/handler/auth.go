package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/degap/degap-api/internal/config"
	"github.com/degap/degap-api/internal/provider"
	"github.com/degap/degap-api/internal/repository"
	"github.com/degap/degap-api/internal/usecase"
)

// AuthHandler exposes the authentication endpoints over HTTP.
type AuthHandler struct {
	authUsecase    usecase.AuthUsecase
	sessionUsecase usecase.SessionUsecase
	oauthUsecase   usecase.OAuthUsecase
	providers      *provider.Registry
	userRepo       repository.UserRepository
	validator      *requestValidator
	cookies        cookieWriter
	logger         *zerolog.Logger
	cfg            *config.Config
}

// NewAuthHandler creates a new AuthHandler instance.
func NewAuthHandler(
	authUsecase usecase.AuthUsecase,
	sessionUsecase usecase.SessionUsecase,
	oauthUsecase usecase.OAuthUsecase,
	providers *provider.Registry,
	userRepo repository.UserRepository,
	logger *zerolog.Logger,
	cfg *config.Config,
) *AuthHandler {
	return &AuthHandler{
		authUsecase:    authUsecase,
		sessionUsecase: sessionUsecase,
		oauthUsecase:   oauthUsecase,
		providers:      providers,
		userRepo:       userRepo,
		validator:      newRequestValidator(),
		cookies:        cookieWriter{cfg: cfg},
		logger:         logger,
		cfg:            cfg,
	}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.authUsecase.Register(r.Context(), usecase.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondUsecaseError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusCreated,
		"Registration successful! Please check your email to verify your account.",
		map[string]any{"user": user.PublicProfile()},
	)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}

	user, tokens, err := h.authUsecase.Login(r.Context(), usecase.LoginParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondUsecaseError(w, h.logger, err)
		return
	}

	h.cookies.setAccessToken(w, tokens.AccessToken)
	h.cookies.setRefreshToken(w, tokens.RefreshToken)

	respondData(w, http.StatusOK, "Login successful", map[string]any{
		"user": user.PublicProfile(),
		// Also sent in the body for non-cookie clients.
		"accessToken": tokens.AccessToken,
	})
}

// Logout handles POST /api/auth/logout. Requires authentication.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	if cookie, err := r.Cookie(refreshTokenCookie); err == nil && cookie.Value != "" && user != nil {
		if err := h.sessionUsecase.Logout(r.Context(), user.ID, cookie.Value); err != nil {
			h.logger.Warn().Err(err).Msg("failed to revoke refresh session on logout")
		}
	}

	h.cookies.clear(w, accessTokenCookie, refreshTokenCookie)

	respondData(w, http.StatusOK, "Logout successful", nil)
}

// ForgotPassword handles POST /api/auth/forgot-password. The response is the
// same whether or not the account exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.authUsecase.ForgotPassword(r.Context(), req.Email); err != nil {
		respondUsecaseError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusOK, "If an account exists, a password reset email has been sent.", nil)
}

// ResetPassword handles POST /api/auth/reset-password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.authUsecase.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		respondUsecaseError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusOK,
		"Password reset successful. You can now login with your new password.", nil)
}

// VerifyEmail handles GET /api/auth/verify-email/{token}.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if err := h.authUsecase.VerifyEmail(r.Context(), token); err != nil {
		respondUsecaseError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusOK, "Email verified successfully! You can now login.", nil)
}

// RefreshToken handles POST /api/auth/refresh-token. It reads the refresh
// token cookie and issues a new access token; the refresh token itself is not
// rotated.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshTokenCookie)
	if err != nil || cookie.Value == "" {
		respondError(w, http.StatusUnauthorized, codeNoRefreshToken, "Refresh token not found")
		return
	}

	accessToken, err := h.sessionUsecase.Refresh(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, usecase.ErrUserNotFound) {
			respondError(w, http.StatusUnauthorized, codeUserNotFound, "User not found")
			return
		}

		respondUsecaseError(w, h.logger, err)
		return
	}

	h.cookies.setAccessToken(w, accessToken)

	respondData(w, http.StatusOK, "Token refreshed successfully", map[string]any{
		"accessToken": accessToken,
	})
}

// Me handles GET /api/auth/me. Requires authentication.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, codeNoToken, "Authentication required")
		return
	}

	account, err := h.userRepo.GetByID(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, codeUserNotFound, "User not found")
			return
		}

		respondUsecaseError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusOK, "", map[string]any{"user": account.PublicProfile()})
}

// ChangePassword handles POST /api/auth/change-password. Requires
// authentication.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, codeNoToken, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.authUsecase.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		respondUsecaseError(w, h.logger, err)
		return
	}

	respondData(w, http.StatusOK, "Password changed successfully", nil)
}

// DeleteAccount handles DELETE /api/auth/me. Requires authentication. The
// account record is destroyed along with every refresh session embedded in it.
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, codeNoToken, "Authentication required")
		return
	}

	if err := h.sessionUsecase.DeleteAccount(r.Context(), user.ID); err != nil {
		respondUsecaseError(w, h.logger, err)
		return
	}

	h.cookies.clear(w, accessTokenCookie, refreshTokenCookie)

	respondData(w, http.StatusOK, "Account deleted", nil)
}

// OAuthStart handles GET /api/auth/{provider}: it stamps a CSRF state cookie
// and redirects to the external provider's consent page.
func (h *AuthHandler) OAuthStart(w http.ResponseWriter, r *http.Request) {
	p, err := h.providers.Get(chi.URLParam(r, "provider"))
	if err != nil {
		respondError(w, http.StatusNotFound, codeNotFound, "Unknown or disabled OAuth provider")
		return
	}

	state := uuid.NewString()
	h.cookies.setOAuthState(w, state)

	http.Redirect(w, r, p.AuthCodeURL(state), http.StatusFound)
}

// OAuthCallback handles GET /api/auth/{provider}/callback: it validates the
// state, exchanges the code for an identity assertion, resolves it to an
// account, mints a session, and redirects back to the frontend.
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	p, err := h.providers.Get(chi.URLParam(r, "provider"))
	if err != nil {
		respondError(w, http.StatusNotFound, codeNotFound, "Unknown or disabled OAuth provider")
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	h.cookies.clear(w, oauthStateCookie)

	state := r.URL.Query().Get("state")
	if err != nil || state == "" || stateCookie.Value != state {
		respondError(w, http.StatusUnauthorized, codeOAuthFailed, "OAuth authentication failed")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		respondError(w, http.StatusUnauthorized, codeOAuthFailed, "OAuth authentication failed")
		return
	}

	assertion, err := p.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn().Err(err).Str("provider", p.Name()).Msg("oauth code exchange failed")
		respondError(w, http.StatusUnauthorized, codeOAuthFailed, "OAuth authentication failed")
		return
	}

	user, err := h.oauthUsecase.ResolveAssertion(r.Context(), assertion)
	if err != nil {
		respondUsecaseError(w, h.logger, err)
		return
	}

	tokens, err := h.sessionUsecase.MintSession(r.Context(), user)
	if err != nil {
		respondUsecaseError(w, h.logger, err)
		return
	}

	h.cookies.setAccessToken(w, tokens.AccessToken)
	h.cookies.setRefreshToken(w, tokens.RefreshToken)

	http.Redirect(w, r, h.cfg.FrontendURL, http.StatusFound)
}
