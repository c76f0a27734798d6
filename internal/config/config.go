package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the full runtime configuration of the API. It is built once at
// startup and passed into each component; business logic never reads the
// environment directly.
type Config struct {
	Environment string `env:"APP_ENV"      envDefault:"development"`
	Port        int    `env:"PORT"         envDefault:"5000"`
	MongoURI    string `env:"MONGODB_URI"  envDefault:"mongodb://localhost:27017"`
	MongoDB     string `env:"MONGODB_NAME" envDefault:"degap"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	BackendURL  string `env:"BACKEND_URL"  envDefault:"http://localhost:5000"`
	CORSOrigin  string `env:"CORS_ORIGIN"  envDefault:"http://localhost:3000"`

	Token TokenConfig
	SMTP  SMTPConfig
	OAuth OAuthConfig
}

// TokenConfig holds the signing secrets and lifetimes for issued tokens.
// Access and refresh tokens are signed with independent secrets so a leaked
// access secret cannot mint long-lived sessions.
type TokenConfig struct {
	Issuer             string        `env:"JWT_ISSUER"         envDefault:"degap-api"`
	AccessSecret       string        `env:"JWT_SECRET,required"`
	RefreshSecret      string        `env:"JWT_REFRESH_SECRET,required"`
	AccessExpiresIn    time.Duration `env:"JWT_EXPIRE"         envDefault:"15m"`
	RefreshExpiresIn   time.Duration `env:"JWT_REFRESH_EXPIRE" envDefault:"168h"`
	VerifyExpiresIn    time.Duration `env:"EMAIL_VERIFY_EXPIRE"   envDefault:"24h"`
	ResetExpiresIn     time.Duration `env:"PASSWORD_RESET_EXPIRE" envDefault:"1h"`
	MaxRefreshSessions int           `env:"MAX_REFRESH_SESSIONS"  envDefault:"5"`
}

// SMTPConfig holds the outbound email transport settings.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM" envDefault:"Degap Support <noreply@degap.com>"`
}

// OAuthConfig holds client credentials for every supported external identity
// provider. A provider with missing credentials is disabled at startup with a
// warning rather than a crash.
type OAuthConfig struct {
	Google GoogleOAuthConfig
	GitHub GitHubOAuthConfig
}

type GoogleOAuthConfig struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
}

type GitHubOAuthConfig struct {
	ClientID     string `env:"GITHUB_CLIENT_ID"`
	ClientSecret string `env:"GITHUB_CLIENT_SECRET"`
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsProduction reports whether the API is running in production mode.
// Cookie attributes and error detail verbosity depend on it.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) validate() error {
	if len(c.Token.AccessSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if len(c.Token.RefreshSecret) < 16 {
		return fmt.Errorf("JWT_REFRESH_SECRET must be at least 16 characters")
	}
	if c.Token.AccessSecret == c.Token.RefreshSecret {
		return fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.Token.MaxRefreshSessions < 1 {
		return fmt.Errorf("MAX_REFRESH_SESSIONS must be at least 1")
	}

	return nil
}
