package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degap/degap-api/internal/auth"
	"github.com/degap/degap-api/internal/model"
)

func TestMintSessionAppendsEntry(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "Ann", "ann@x.com", "Passw0rd!")

	tokens, err := f.sessions.MintSession(context.Background(), user)
	require.NoError(t, err)

	stored, err := f.repo.GetByID(context.Background(), user.ID.Hex())
	require.NoError(t, err)
	require.Len(t, stored.RefreshSessions, 1)
	assert.Equal(t, auth.HashToken(tokens.RefreshToken), stored.RefreshSessions[0].TokenHash)
	assert.True(t, stored.RefreshSessions[0].ExpiresAt.After(time.Now()))
}

func TestMintSessionEvictsOldestBeyondCap(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "Ann", "ann@x.com", "Passw0rd!")

	var refreshTokens []string
	for i := 0; i < 6; i++ {
		fresh, err := f.repo.GetByID(context.Background(), user.ID.Hex())
		require.NoError(t, err)

		tokens, err := f.sessions.MintSession(context.Background(), fresh)
		require.NoError(t, err)
		refreshTokens = append(refreshTokens, tokens.RefreshToken)
	}

	stored, err := f.repo.GetByID(context.Background(), user.ID.Hex())
	require.NoError(t, err)
	require.Len(t, stored.RefreshSessions, 5)

	// The first session was evicted; its token no longer refreshes.
	assert.False(t, stored.RefreshSessions.Contains(auth.HashToken(refreshTokens[0])))

	_, err = f.sessions.Refresh(context.Background(), refreshTokens[0])
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// The newest five still do.
	for _, token := range refreshTokens[1:] {
		_, err := f.sessions.Refresh(context.Background(), token)
		assert.NoError(t, err)
	}
}

func TestMintSessionConcurrentLogins(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "Ann", "ann@x.com", "Passw0rd!")

	// Concurrent logins on one account: every minted token must survive and
	// refresh afterwards, none may be lost to a racing write.
	const logins = 5
	refreshTokens := make([]string, logins)

	var wg sync.WaitGroup
	for i := 0; i < logins; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			tokens, err := f.sessions.MintSession(context.Background(), user)
			if assert.NoError(t, err) {
				refreshTokens[i] = tokens.RefreshToken
			}
		}(i)
	}
	wg.Wait()

	stored, err := f.repo.GetByID(context.Background(), user.ID.Hex())
	require.NoError(t, err)
	require.Len(t, stored.RefreshSessions, logins)

	for _, token := range refreshTokens {
		assert.True(t, stored.RefreshSessions.Contains(auth.HashToken(token)))

		_, err := f.sessions.Refresh(context.Background(), token)
		assert.NoError(t, err)
	}
}

func TestRefreshReturnsNewAccessToken(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "Ann", "ann@x.com", "Passw0rd!")

	tokens, err := f.sessions.MintSession(context.Background(), user)
	require.NoError(t, err)

	accessToken, err := f.sessions.Refresh(context.Background(), tokens.RefreshToken)
	require.NoError(t, err)

	claims, err := f.codec.VerifyAccessToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.UserID)

	// The refresh token is not rotated; the same one refreshes again.
	_, err = f.sessions.Refresh(context.Background(), tokens.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshWithNeverIssuedToken(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "Ann", "ann@x.com", "Passw0rd!")

	// Structurally valid token for this user, but never appended to the
	// account.
	forged, err := f.codec.IssueRefreshToken(user.ID.Hex())
	require.NoError(t, err)

	_, err = f.sessions.Refresh(context.Background(), forged)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshWithGarbageToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.sessions.Refresh(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshWithExpiredTokenLeavesListUnchanged(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "Ann", "ann@x.com", "Passw0rd!")

	_, err := f.sessions.MintSession(context.Background(), user)
	require.NoError(t, err)

	// Same secrets, negative lifetime: the signature is valid but the
	// embedded expiry has passed.
	expiredCodec := auth.NewTokenCodec(
		f.cfg.Token.Issuer,
		f.cfg.Token.AccessSecret,
		f.cfg.Token.RefreshSecret,
		f.cfg.Token.AccessExpiresIn,
		-time.Minute,
	)
	expired, err := expiredCodec.IssueRefreshToken(user.ID.Hex())
	require.NoError(t, err)

	before, err := f.repo.GetByID(context.Background(), user.ID.Hex())
	require.NoError(t, err)

	_, err = f.sessions.Refresh(context.Background(), expired)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	after, err := f.repo.GetByID(context.Background(), user.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, before.RefreshSessions, after.RefreshSessions)
}

func TestRefreshAfterAccountDeleted(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "Ann", "ann@x.com", "Passw0rd!")

	tokens, err := f.sessions.MintSession(context.Background(), user)
	require.NoError(t, err)

	require.NoError(t, f.sessions.DeleteAccount(context.Background(), user.ID.Hex()))

	_, err = f.sessions.Refresh(context.Background(), tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLogoutRemovesSession(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "Ann", "ann@x.com", "Passw0rd!")

	tokens, err := f.sessions.MintSession(context.Background(), user)
	require.NoError(t, err)

	require.NoError(t, f.sessions.Logout(context.Background(), user.ID.Hex(), tokens.RefreshToken))

	stored, err := f.repo.GetByID(context.Background(), user.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, stored.RefreshSessions)

	_, err = f.sessions.Refresh(context.Background(), tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "Ann", "ann@x.com", "Passw0rd!")

	tokens, err := f.sessions.MintSession(context.Background(), user)
	require.NoError(t, err)

	require.NoError(t, f.sessions.Logout(context.Background(), user.ID.Hex(), tokens.RefreshToken))
	require.NoError(t, f.sessions.Logout(context.Background(), user.ID.Hex(), tokens.RefreshToken))
}

func TestRevokeAllClearsEverySession(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "Ann", "ann@x.com", "Passw0rd!")

	for i := 0; i < 3; i++ {
		fresh, err := f.repo.GetByID(context.Background(), user.ID.Hex())
		require.NoError(t, err)
		_, err = f.sessions.MintSession(context.Background(), fresh)
		require.NoError(t, err)
	}

	require.NoError(t, f.sessions.RevokeAll(context.Background(), user.ID.Hex()))

	stored, err := f.repo.GetByID(context.Background(), user.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, model.RefreshSessionList{}, stored.RefreshSessions)
}
