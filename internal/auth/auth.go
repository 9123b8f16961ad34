// Package auth verifies LINE ID tokens for the LIFF web API. Tokens
// are HS256-signed with the channel secret; the audience must be the
// channel ID and the issuer LINE's token endpoint.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

const lineIssuer = "https://access.line.me"

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")
)

// Identity is the verified subject of an ID token.
type Identity struct {
	LineUserID  string
	DisplayName string
	PictureURL  string
}

// Claims are the LINE ID-token claims the API cares about.
type Claims struct {
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates LINE ID tokens.
type Verifier struct {
	channelSecret []byte
	channelID     string
}

func NewVerifier(channelSecret, channelID string) *Verifier {
	return &Verifier{
		channelSecret: []byte(channelSecret),
		channelID:     channelID,
	}
}

// Verify parses and validates an ID token, returning the identity.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return v.channelSecret, nil
		},
		jwt.WithIssuer(lineIssuer),
		jwt.WithAudience(v.channelID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &Identity{
		LineUserID:  claims.Subject,
		DisplayName: claims.Name,
		PictureURL:  claims.Picture,
	}, nil
}
