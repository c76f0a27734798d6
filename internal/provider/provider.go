package provider

import (
	"context"
	"errors"
)

// ErrUnknownProvider is returned when a request names a provider that is not
// configured.
var ErrUnknownProvider = errors.New("unknown oauth provider")

// Assertion is the canonical set of identity fields resolved from an external
// provider after a successful code exchange.
type Assertion struct {
	Provider   string
	ProviderID string
	Email      string
	Name       string
	AvatarURL  string
}

// Provider resolves an OAuth authorization-code flow into an identity
// assertion. Implementations cover one external provider each.
type Provider interface {
	// Name returns the provider key used in routes and stored on accounts.
	Name() string

	// AuthCodeURL returns the URL to redirect the user to, carrying the given
	// CSRF state.
	AuthCodeURL(state string) string

	// Exchange trades the authorization code for the provider's identity
	// fields.
	Exchange(ctx context.Context, code string) (*Assertion, error)
}

// Registry holds the configured providers keyed by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a registry from the given providers.
func NewRegistry(providers ...Provider) *Registry {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}

	return &Registry{providers: m}
}

// Get returns the provider with the given name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, ErrUnknownProvider
	}

	return p, nil
}

// Names returns the names of all configured providers.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}

	return names
}
