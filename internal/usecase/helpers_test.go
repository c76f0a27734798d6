package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/degap/degap-api/internal/auth"
	"github.com/degap/degap-api/internal/config"
	"github.com/degap/degap-api/internal/model"
	"github.com/degap/degap-api/internal/repository"
)

type sentEmail struct {
	To      []string
	Subject string
	Body    string
}

// fakeMailer records outbound email instead of sending it.
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentEmail
}

func (m *fakeMailer) SendHTML(to []string, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, sentEmail{To: to, Subject: subject, Body: htmlBody})

	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sent)
}

func (m *fakeMailer) last() sentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sent[len(m.sent)-1]
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		FrontendURL: "http://localhost:3000",
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
}

type fixture struct {
	repo     repository.UserRepository
	mailer   *fakeMailer
	codec    *auth.TokenCodec
	auth     AuthUsecase
	sessions SessionUsecase
	oauth    OAuthUsecase
	cfg      *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := testConfig()
	logger := zerolog.Nop()
	repo := repository.NewUserMemoryRepository()
	mail := &fakeMailer{}
	codec := auth.NewTokenCodec(
		cfg.Token.Issuer,
		cfg.Token.AccessSecret,
		cfg.Token.RefreshSecret,
		cfg.Token.AccessExpiresIn,
		cfg.Token.RefreshExpiresIn,
	)

	sessions := NewSessionUsecase(repo, codec, &logger, &cfg.Token)

	return &fixture{
		repo:     repo,
		mailer:   mail,
		codec:    codec,
		auth:     NewAuthUsecase(repo, sessions, mail, &logger, cfg),
		sessions: sessions,
		oauth:    NewOAuthUsecase(repo, &logger),
		cfg:      cfg,
	}
}

func (f *fixture) register(t *testing.T, name, email, password string) *model.User {
	t.Helper()

	user, err := f.auth.Register(context.Background(), RegisterParams{
		Name:     name,
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)

	return user
}
