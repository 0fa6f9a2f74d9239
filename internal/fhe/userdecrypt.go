package fhe

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalidAuth is returned when a decryption authorization token is missing,
// expired, or bound to a different user or contract.
var ErrInvalidAuth = errors.New("invalid decryption authorization")

// SignDecryptionAuth issues a time-bounded authorization token binding a user
// to a contract for user decryption. The token stands in for the wallet
// signature of the real decryption flow.
func SignDecryptionAuth(secret, user, contract string, durationDays int) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user":     user,
		"contract": contract,
		"iat":      now.Unix(),
		"exp":      now.Add(time.Duration(durationDays) * 24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyDecryptionAuth validates an authorization token against the expected
// user and contract
func VerifyDecryptionAuth(secret, tokenStr, user, contract string) error {
	parsed, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return ErrInvalidAuth
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return ErrInvalidAuth
	}
	if claims["user"] != user || claims["contract"] != contract {
		return ErrInvalidAuth
	}
	return nil
}
