package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret    = "test-channel-secret"
	testChannelID = "1234567890"
)

func mintToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() Claims {
	return Claims{
		Name:    "太郎",
		Picture: "https://profile.example.com/p.jpg",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    lineIssuer,
			Subject:   "U-line-123",
			Audience:  jwt.ClaimStrings{testChannelID},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestVerifyValidToken(t *testing.T) {
	v := NewVerifier(testSecret, testChannelID)

	id, err := v.Verify(mintToken(t, testSecret, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "U-line-123", id.LineUserID)
	assert.Equal(t, "太郎", id.DisplayName)
	assert.Equal(t, "https://profile.example.com/p.jpg", id.PictureURL)
}

func TestVerifyRejections(t *testing.T) {
	v := NewVerifier(testSecret, testChannelID)

	t.Run("missing token", func(t *testing.T) {
		_, err := v.Verify("")
		assert.ErrorIs(t, err, ErrMissingToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := v.Verify(mintToken(t, "other-secret", validClaims()))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		c := validClaims()
		c.Audience = jwt.ClaimStrings{"9999999999"}
		_, err := v.Verify(mintToken(t, testSecret, c))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		c := validClaims()
		c.Issuer = "https://evil.example.com"
		_, err := v.Verify(mintToken(t, testSecret, c))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		c := validClaims()
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		_, err := v.Verify(mintToken(t, testSecret, c))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing subject", func(t *testing.T) {
		c := validClaims()
		c.Subject = ""
		_, err := v.Verify(mintToken(t, testSecret, c))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
