package handler

import (
	"net/http"
	"time"

	"github.com/degap/degap-api/internal/config"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
	oauthStateCookie   = "oauthState"
)

// cookieWriter centralizes the attributes of the auth cookies: httpOnly
// always, secure and sameSite=strict in production, sameSite=lax otherwise.
type cookieWriter struct {
	cfg *config.Config
}

func (c cookieWriter) sameSite() http.SameSite {
	if c.cfg.IsProduction() {
		return http.SameSiteStrictMode
	}

	return http.SameSiteLaxMode
}

func (c cookieWriter) setAccessToken(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.cfg.Token.AccessExpiresIn / time.Second),
		HttpOnly: true,
		Secure:   c.cfg.IsProduction(),
		SameSite: c.sameSite(),
	})
}

func (c cookieWriter) setRefreshToken(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.cfg.Token.RefreshExpiresIn / time.Second),
		HttpOnly: true,
		Secure:   c.cfg.IsProduction(),
		SameSite: c.sameSite(),
	})
}

func (c cookieWriter) setOAuthState(w http.ResponseWriter, state string) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute) / time.Second),
		HttpOnly: true,
		Secure:   c.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (c cookieWriter) clear(w http.ResponseWriter, names ...string) {
	for _, name := range names {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   c.cfg.IsProduction(),
			SameSite: c.sameSite(),
		})
	}
}
