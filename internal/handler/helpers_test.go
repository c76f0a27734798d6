package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/degap/degap-api/internal/auth"
	"github.com/degap/degap-api/internal/config"
	"github.com/degap/degap-api/internal/model"
	"github.com/degap/degap-api/internal/provider"
	"github.com/degap/degap-api/internal/repository"
	"github.com/degap/degap-api/internal/usecase"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// nopMailer drops outbound email.
type nopMailer struct{}

func (nopMailer) SendHTML([]string, string, string) error { return nil }

// fakeProvider satisfies provider.Provider with a canned assertion.
type fakeProvider struct {
	name      string
	assertion *provider.Assertion
	err       error
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://provider.example.com/authorize?state=" + state
}

func (p *fakeProvider) Exchange(_ context.Context, _ string) (*provider.Assertion, error) {
	if p.err != nil {
		return nil, p.err
	}

	return p.assertion, nil
}

type testServer struct {
	router   http.Handler
	repo     repository.UserRepository
	codec    *auth.TokenCodec
	sessions usecase.SessionUsecase
	cfg      *config.Config
}

func newTestServer(t *testing.T, providers ...provider.Provider) *testServer {
	t.Helper()

	cfg := &config.Config{
		Environment: "test",
		FrontendURL: "http://localhost:3000",
		BackendURL:  "http://localhost:5000",
		CORSOrigin:  "http://localhost:3000",
		Token: config.TokenConfig{
			Issuer:             "degap-api",
			AccessSecret:       "access-secret-for-tests-0123",
			RefreshSecret:      "refresh-secret-for-tests-0123",
			AccessExpiresIn:    15 * time.Minute,
			RefreshExpiresIn:   7 * 24 * time.Hour,
			VerifyExpiresIn:    24 * time.Hour,
			ResetExpiresIn:     time.Hour,
			MaxRefreshSessions: 5,
		},
	}

	logger := zerolog.Nop()
	repo := repository.NewUserMemoryRepository()
	codec := auth.NewTokenCodec(
		cfg.Token.Issuer,
		cfg.Token.AccessSecret,
		cfg.Token.RefreshSecret,
		cfg.Token.AccessExpiresIn,
		cfg.Token.RefreshExpiresIn,
	)

	sessions := usecase.NewSessionUsecase(repo, codec, &logger, &cfg.Token)
	authUsecase := usecase.NewAuthUsecase(repo, sessions, nopMailer{}, &logger, cfg)
	oauthUsecase := usecase.NewOAuthUsecase(repo, &logger)

	registry := provider.NewRegistry(providers...)

	authMiddleware := NewAuthMiddleware(codec, repo, &logger)
	authHandler := NewAuthHandler(authUsecase, sessions, oauthUsecase, registry, repo, &logger, cfg)

	return &testServer{
		router:   NewRouter(cfg, &logger, authHandler, authMiddleware),
		repo:     repo,
		codec:    codec,
		sessions: sessions,
		cfg:      cfg,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, fn := range mutate {
		fn(req)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	return rec
}

func (s *testServer) registerUser(t *testing.T, name, email, password string) {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *testServer) login(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})

	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))

	return env
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error, "expected an error response, got %s", rec.Body.String())

	return env.Error.Code
}

func cookieValue(rec *httptest.ResponseRecorder, name string) string {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name && cookie.MaxAge >= 0 {
			return cookie.Value
		}
	}

	return ""
}

func withCookie(name, value string) func(*http.Request) {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func (s *testServer) mustGetUserByEmail(t *testing.T, email string) *model.User {
	t.Helper()

	user, err := s.repo.GetByEmail(context.Background(), email)
	require.NoError(t, err)

	return user
}
