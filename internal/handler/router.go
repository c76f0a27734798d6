package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/degap/degap-api/internal/config"
)

// Rate limits on the auth surface. Registration and login are the abuse
// targets; everything else rides the global limiter.
const (
	globalRateLimit    = 300
	globalRateWindow   = time.Minute
	registerRateLimit  = 10
	registerRateWindow = time.Hour
	loginRateLimit     = 10
	loginRateWindow    = 15 * time.Minute
)

// NewRouter wires the chi routes and middleware for the API.
func NewRouter(
	cfg *config.Config,
	logger *zerolog.Logger,
	authHandler *AuthHandler,
	authMiddleware *AuthMiddleware,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		// The frontend authenticates with cookies, so credentials must be
		// allowed and the origin cannot be a wildcard.
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(rateLimiter(globalRateLimit, globalRateWindow))

	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		respondData(w, http.StatusOK, "", map[string]any{
			"ok":      true,
			"service": "degap-api",
			"env":     cfg.Environment,
		})
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.With(rateLimiter(registerRateLimit, registerRateWindow)).Post("/register", authHandler.Register)
		r.With(rateLimiter(loginRateLimit, loginRateWindow)).Post("/login", authHandler.Login)
		r.Post("/forgot-password", authHandler.ForgotPassword)
		r.Post("/reset-password", authHandler.ResetPassword)
		r.Get("/verify-email/{token}", authHandler.VerifyEmail)
		r.Post("/refresh-token", authHandler.RefreshToken)

		r.Get("/{provider}", authHandler.OAuthStart)
		r.Get("/{provider}/callback", authHandler.OAuthCallback)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
			r.Delete("/me", authHandler.DeleteAccount)
			r.Post("/change-password", authHandler.ChangePassword)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, codeNotFound, "Route not found: "+r.Method+" "+r.URL.Path)
	})

	return r
}

// rateLimiter limits by client IP and answers over-limit requests with the
// API's error envelope instead of httprate's plain-text default.
func rateLimiter(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			respondError(w, http.StatusTooManyRequests, codeRateLimitExceeded,
				"Too many requests. Please try again later.")
		}),
	)
}

// securityHeaders sets the browser hardening headers on every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("X-DNS-Prefetch-Control", "off")

		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request with method, path, status and
// duration.
func requestLogger(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
