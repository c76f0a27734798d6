package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenExpired means the signature checked out but the token is past
	// its expiry. Callers should tell the client to re-authenticate.
	ErrTokenExpired = errors.New("token has expired")

	// ErrTokenInvalid means the token is malformed, tampered with, or signed
	// with the wrong key. Callers should reject it outright.
	ErrTokenInvalid = errors.New("invalid token")
)

// AccessClaims is the payload embedded in access tokens.
type AccessClaims struct {
	UserID        string `json:"uid"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload embedded in refresh tokens. It carries only the
// user id; everything else is reloaded from the store on refresh.
type RefreshClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// TokenCodec creates and verifies the JWT access and refresh tokens, and
// produces the opaque tokens used for email verification and password reset
// links. Access and refresh tokens are signed with independent secrets.
type TokenCodec struct {
	issuer           string
	accessSecret     string
	refreshSecret    string
	accessExpiresIn  time.Duration
	refreshExpiresIn time.Duration
}

// NewTokenCodec creates a new TokenCodec instance.
func NewTokenCodec(issuer, accessSecret, refreshSecret string, accessExpiresIn, refreshExpiresIn time.Duration) *TokenCodec {
	return &TokenCodec{
		issuer:           issuer,
		accessSecret:     accessSecret,
		refreshSecret:    refreshSecret,
		accessExpiresIn:  accessExpiresIn,
		refreshExpiresIn: refreshExpiresIn,
	}
}

// IssueAccessToken signs a short-lived access token for the given identity.
func (c *TokenCodec) IssueAccessToken(userID, email, role string, emailVerified bool) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID:        userID,
		Email:         email,
		Role:          role,
		EmailVerified: emailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.issuer},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessExpiresIn)),
		},
	}

	return c.sign(claims, c.accessSecret)
}

// IssueRefreshToken signs a long-lived refresh token carrying only the user id.
func (c *TokenCodec) IssueRefreshToken(userID string) (string, error) {
	now := time.Now()
	claims := RefreshClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti keeps two tokens minted in the same second distinct, so
			// their stored hashes identify exactly one session each.
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.issuer},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshExpiresIn)),
		},
	}

	return c.sign(claims, c.refreshSecret)
}

// RefreshExpiresIn reports the configured refresh token lifetime.
func (c *TokenCodec) RefreshExpiresIn() time.Duration {
	return c.refreshExpiresIn
}

// AccessExpiresIn reports the configured access token lifetime.
func (c *TokenCodec) AccessExpiresIn() time.Duration {
	return c.accessExpiresIn
}

// VerifyAccessToken validates an access token and returns its claims. The
// returned error is exactly ErrTokenExpired or ErrTokenInvalid; callers must
// branch on the two with errors.Is.
func (c *TokenCodec) VerifyAccessToken(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.verify(tokenStr, c.accessSecret, claims); err != nil {
		return nil, err
	}

	return claims, nil
}

// VerifyRefreshToken validates a refresh token and returns its claims. Error
// semantics match VerifyAccessToken.
func (c *TokenCodec) VerifyRefreshToken(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.verify(tokenStr, c.refreshSecret, claims); err != nil {
		return nil, err
	}

	return claims, nil
}

func (c *TokenCodec) sign(claims jwt.Claims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenStr, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return tokenStr, nil
}

func (c *TokenCodec) verify(tokenStr, secret string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return []byte(secret), nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}

		return ErrTokenInvalid
	}

	if !token.Valid {
		return ErrTokenInvalid
	}

	return nil
}

// NewOpaqueToken returns a cryptographically random hex string used for email
// verification and password reset links. It is never decoded, only compared by
// hash.
func NewOpaqueToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}

	return hex.EncodeToString(bytes), nil
}

// HashToken returns the hex SHA-256 digest of a token. Only the digest is
// persisted, so a compromised store does not yield usable tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
