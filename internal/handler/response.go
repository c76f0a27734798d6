package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/degap/degap-api/internal/usecase"
)

// Stable machine-readable error codes. Clients branch on the code, never the
// message text.
const (
	codeUserExists          = "USER_EXISTS"
	codeInvalidCredentials  = "INVALID_CREDENTIALS"
	codeAccountSuspended    = "ACCOUNT_SUSPENDED"
	codeAccountBanned       = "ACCOUNT_BANNED"
	codeNoToken             = "NO_TOKEN"
	codeTokenExpired        = "TOKEN_EXPIRED"
	codeInvalidToken        = "INVALID_TOKEN"
	codeNoRefreshToken      = "NO_REFRESH_TOKEN"
	codeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	codeUserNotFound        = "USER_NOT_FOUND"
	codeForbidden           = "FORBIDDEN"
	codeEmailNotVerified    = "EMAIL_NOT_VERIFIED"
	codeOAuthAccount        = "OAUTH_ACCOUNT"
	codeInvalidPassword     = "INVALID_PASSWORD"
	codeOAuthFailed         = "OAUTH_FAILED"
	codeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	codeValidationError     = "VALIDATION_ERROR"
	codeNotFound            = "NOT_FOUND"
	codeInternalError       = "INTERNAL_ERROR"
)

type apiError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

type envelope struct {
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

func respondData(w http.ResponseWriter, status int, message string, data any) {
	respondJSON(w, status, envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, envelope{
		Success: false,
		Error:   &apiError{Code: code, Message: message},
	})
}

func respondValidationError(w http.ResponseWriter, details []string) {
	respondJSON(w, http.StatusBadRequest, envelope{
		Success: false,
		Error: &apiError{
			Code:    codeValidationError,
			Message: "Validation Error",
			Details: details,
		},
	})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// respondUsecaseError converts usecase sentinel errors into the structured
// error responses of the API. Unexpected errors become an opaque 500; the
// detail stays in the log.
func respondUsecaseError(w http.ResponseWriter, logger *zerolog.Logger, err error) {
	switch {
	case errors.Is(err, usecase.ErrUserAlreadyExists):
		respondError(w, http.StatusConflict, codeUserExists, "User with this email already exists")
	case errors.Is(err, usecase.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, codeInvalidCredentials, "Invalid email or password")
	case errors.Is(err, usecase.ErrAccountSuspended):
		respondError(w, http.StatusForbidden, codeAccountSuspended,
			"Your account has been suspended. Please contact support.")
	case errors.Is(err, usecase.ErrAccountBanned):
		respondError(w, http.StatusForbidden, codeAccountBanned,
			"Your account has been banned. Please contact support.")
	case errors.Is(err, usecase.ErrInvalidToken):
		respondError(w, http.StatusBadRequest, codeInvalidToken, "Invalid or expired token")
	case errors.Is(err, usecase.ErrOAuthAccount):
		respondError(w, http.StatusBadRequest, codeOAuthAccount,
			"This account uses an external login provider and has no password")
	case errors.Is(err, usecase.ErrInvalidPassword):
		respondError(w, http.StatusBadRequest, codeInvalidPassword, "Current password is incorrect")
	case errors.Is(err, usecase.ErrInvalidRefreshToken):
		respondError(w, http.StatusUnauthorized, codeInvalidRefreshToken,
			"Refresh token is invalid or has been revoked")
	case errors.Is(err, usecase.ErrUserNotFound):
		respondError(w, http.StatusNotFound, codeUserNotFound, "User not found")
	case errors.Is(err, usecase.ErrOAuthFailed):
		respondError(w, http.StatusUnauthorized, codeOAuthFailed, "OAuth authentication failed")
	default:
		logger.Error().Err(err).Msg("unexpected error")
		respondError(w, http.StatusInternalServerError, codeInternalError, "Internal Server Error")
	}
}
