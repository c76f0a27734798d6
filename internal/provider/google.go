package provider

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/degap/degap-api/internal/model"
)

type googleProvider struct {
	oauthConfig *oauth2.Config
}

// NewGoogleProvider creates the Google OAuth provider. The redirect URL must
// match the one registered in the Google console.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) Provider {
	return &googleProvider{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		},
	}
}

func (p *googleProvider) Name() string {
	return model.ProviderGoogle
}

func (p *googleProvider) AuthCodeURL(state string) string {
	return p.oauthConfig.AuthCodeURL(state)
}

func (p *googleProvider) Exchange(ctx context.Context, code string) (*Assertion, error) {
	token, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange google authorization code: %w", err)
	}

	service, err := googleoauth.NewService(ctx, option.WithTokenSource(p.oauthConfig.TokenSource(ctx, token)))
	if err != nil {
		return nil, err
	}

	userInfo, err := googleoauth.NewUserinfoV2MeService(service).Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch google user info: %w", err)
	}

	if userInfo.Id == "" {
		return nil, errors.New("google user info is missing the subject id")
	}

	name := userInfo.Name
	if name == "" {
		name = "Google User"
	}

	return &Assertion{
		Provider:   model.ProviderGoogle,
		ProviderID: userInfo.Id,
		Email:      userInfo.Email,
		Name:       name,
		AvatarURL:  userInfo.Picture,
	}, nil
}
