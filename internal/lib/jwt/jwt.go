// Package jwt issues and verifies the signed, expiry-bearing bearer
// tokens attached to privileged requests. Access and refresh tokens
// share the claim shape and differ only in TTL.
package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token is expired")
)

type Claims struct {
	jwtlib.RegisteredClaims
	CredentialID string `json:"credentialId"`
	Email        string `json:"email"`
}

// Issue creates an HS256 token carrying the credential id and email,
// valid from now until now+ttl.
func Issue(credentialID, email string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, Claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
		CredentialID: credentialID,
		Email:        email,
	})

	return token.SignedString(secret)
}

// Parse checks signature and expiry. Expired tokens come back as
// ErrTokenExpired, everything else wrong with the token as
// ErrTokenInvalid.
func Parse(tokenStr string, secret []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}

		return nil, ErrTokenInvalid
	}

	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
