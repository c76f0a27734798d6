package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/degap/degap-api/internal/auth"
	"github.com/degap/degap-api/internal/model"
	"github.com/degap/degap-api/internal/repository"
)

type contextKey struct{}

var currentUserKey = contextKey{}

// CurrentUser is the minimal identity attached to authenticated requests.
// It never carries the password hash or the refresh-session list.
type CurrentUser struct {
	ID            string
	Email         string
	Role          string
	EmailVerified bool
}

// UserFromContext returns the authenticated identity attached by the auth
// middleware, if any.
func UserFromContext(ctx context.Context) (*CurrentUser, bool) {
	user, ok := ctx.Value(currentUserKey).(*CurrentUser)
	return user, ok
}

// AuthMiddleware is the per-request authorization gate: it extracts the bearer
// token, validates it, loads the account, and enforces status and role
// policies.
type AuthMiddleware struct {
	codec    *auth.TokenCodec
	userRepo repository.UserRepository
	logger   *zerolog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(codec *auth.TokenCodec, userRepo repository.UserRepository, logger *zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		codec:    codec,
		userRepo: userRepo,
		logger:   logger,
	}
}

// Authenticate requires a valid access token and an active account. The
// cookie takes precedence over the Authorization header.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractAccessToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, codeNoToken, "Authentication required. Please login.")
			return
		}

		claims, err := m.codec.VerifyAccessToken(token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				respondError(w, http.StatusUnauthorized, codeTokenExpired, "Session expired. Please login again.")
				return
			}

			respondError(w, http.StatusUnauthorized, codeInvalidToken,
				"Invalid authentication token. Please login again.")
			return
		}

		user, err := m.userRepo.GetByID(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				respondError(w, http.StatusUnauthorized, codeUserNotFound, "User not found. Please login again.")
				return
			}

			m.logger.Error().Err(err).Msg("failed to load user for authentication")
			respondError(w, http.StatusInternalServerError, codeInternalError, "Internal Server Error")
			return
		}

		if !user.IsActive() {
			respondError(w, http.StatusForbidden, codeAccountSuspended,
				"Your account has been "+user.Status+". Please contact support.")
			return
		}

		next.ServeHTTP(w, r.WithContext(withCurrentUser(r.Context(), user)))
	})
}

// OptionalAuth attaches the identity when a valid token is present but lets
// the request through anonymously on any failure. Used for endpoints that
// personalize output without requiring login.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractAccessToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.codec.VerifyAccessToken(token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.userRepo.GetByID(r.Context(), claims.UserID)
		if err != nil || !user.IsActive() {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(withCurrentUser(r.Context(), user)))
	})
}

// RequireRoles rejects authenticated requests whose role is not in the allowed
// set. It must run after Authenticate.
func (m *AuthMiddleware) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				respondError(w, http.StatusUnauthorized, codeNoToken, "Authentication required")
				return
			}

			if !allowed[user.Role] {
				respondError(w, http.StatusForbidden, codeForbidden,
					"You do not have permission to perform this action")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireVerifiedEmail rejects authenticated requests until the account's
// email has been verified. It must run after Authenticate.
func (m *AuthMiddleware) RequireVerifiedEmail(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, codeNoToken, "Authentication required")
			return
		}

		if !user.EmailVerified {
			respondError(w, http.StatusForbidden, codeEmailNotVerified,
				"Please verify your email address to access this feature")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func withCurrentUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, currentUserKey, &CurrentUser{
		ID:            user.ID.Hex(),
		Email:         user.Email,
		Role:          user.Role,
		EmailVerified: user.EmailVerified,
	})
}

// extractAccessToken reads the access token from the cookie first, falling
// back to a bearer Authorization header.
func extractAccessToken(r *http.Request) string {
	if cookie, err := r.Cookie(accessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}

	return ""
}
