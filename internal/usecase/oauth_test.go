package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degap/degap-api/internal/model"
	"github.com/degap/degap-api/internal/provider"
	"github.com/degap/degap-api/internal/repository"
)

func googleAssertion() *provider.Assertion {
	return &provider.Assertion{
		Provider:   model.ProviderGoogle,
		ProviderID: "google-123",
		Email:      "new@x.com",
		Name:       "New User",
		AvatarURL:  "https://example.com/avatar.png",
	}
}

func TestResolveAssertionCreatesAccount(t *testing.T) {
	f := newFixture(t)

	user, err := f.oauth.ResolveAssertion(context.Background(), googleAssertion())
	require.NoError(t, err)

	assert.Equal(t, "new@x.com", user.Email)
	assert.Equal(t, model.ProviderGoogle, user.Provider)
	assert.Equal(t, "google-123", user.ProviderID)
	assert.True(t, user.EmailVerified)
	assert.Empty(t, user.PasswordHash)
	assert.Equal(t, model.RoleStudent, user.Role)

	// Exactly one account exists for the email.
	stored, err := f.repo.GetByEmail(context.Background(), "new@x.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
}

func TestResolveAssertionMatchesProviderIDFirst(t *testing.T) {
	f := newFixture(t)

	created, err := f.oauth.ResolveAssertion(context.Background(), googleAssertion())
	require.NoError(t, err)

	// Same providerId, different email: the provider match wins and no new
	// account is created.
	assertion := googleAssertion()
	assertion.Email = "changed@x.com"

	resolved, err := f.oauth.ResolveAssertion(context.Background(), assertion)
	require.NoError(t, err)
	assert.Equal(t, created.ID, resolved.ID)
	assert.Equal(t, "new@x.com", resolved.Email)
}

func TestResolveAssertionLinksExistingLocalAccount(t *testing.T) {
	f := newFixture(t)
	local := f.register(t, "Ann", "ann@x.com", "Passw0rd!")

	assertion := googleAssertion()
	assertion.Email = "ann@x.com"

	linked, err := f.oauth.ResolveAssertion(context.Background(), assertion)
	require.NoError(t, err)

	assert.Equal(t, local.ID, linked.ID)
	assert.Equal(t, model.ProviderGoogle, linked.Provider)
	assert.Equal(t, "google-123", linked.ProviderID)

	// The password hash survives the link: both login methods keep working.
	assert.Equal(t, local.PasswordHash, linked.PasswordHash)

	err = f.auth.ChangePassword(context.Background(), local.ID.Hex(), "Passw0rd!", "NewPassw0rd!")
	assert.NoError(t, err)
}

func TestResolveAssertionBackfillsMissingAvatar(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Ann", "ann@x.com", "Passw0rd!")

	assertion := googleAssertion()
	assertion.Email = "ann@x.com"

	linked, err := f.oauth.ResolveAssertion(context.Background(), assertion)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/avatar.png", linked.AvatarURL)
}

func TestResolveAssertionKeepsExistingAvatar(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "Ann", "ann@x.com", "Passw0rd!")

	avatar := "https://example.com/existing.png"
	_, err := f.repo.Update(context.Background(), user.ID.Hex(), repository.UpdateUserParams{
		AvatarURL: &avatar,
	})
	require.NoError(t, err)

	assertion := googleAssertion()
	assertion.Email = "ann@x.com"

	linked, err := f.oauth.ResolveAssertion(context.Background(), assertion)
	require.NoError(t, err)
	assert.Equal(t, avatar, linked.AvatarURL)
}

func TestResolveAssertionWithoutProviderID(t *testing.T) {
	f := newFixture(t)

	assertion := googleAssertion()
	assertion.ProviderID = ""

	_, err := f.oauth.ResolveAssertion(context.Background(), assertion)
	assert.ErrorIs(t, err, ErrOAuthFailed)
}

func TestResolveAssertionWithoutEmailAndNoMatch(t *testing.T) {
	f := newFixture(t)

	assertion := googleAssertion()
	assertion.Email = ""

	_, err := f.oauth.ResolveAssertion(context.Background(), assertion)
	assert.ErrorIs(t, err, ErrOAuthFailed)
}

func TestResolveAssertionWithoutEmailButKnownProviderID(t *testing.T) {
	f := newFixture(t)

	_, err := f.oauth.ResolveAssertion(context.Background(), googleAssertion())
	require.NoError(t, err)

	// Later assertions may omit the email; the provider identity still
	// resolves.
	assertion := googleAssertion()
	assertion.Email = ""

	resolved, err := f.oauth.ResolveAssertion(context.Background(), assertion)
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", resolved.Email)
}
