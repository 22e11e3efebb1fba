// Copyright (c) 2026 NoteHub. All rights reserved.

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing, TOTP)
// from the domain logic. It acts as an Infrastructure service injected into
// the Application layer via small interfaces.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// # Token Types

// TokenType distinguishes the two recognized bearer token kinds. A token of
// one type must never be accepted where the other is expected.
type TokenType string

const (
	// TokenTypeAccess is the short-lived token presented on every API request.
	TokenTypeAccess TokenType = "access"

	// TokenTypeRefresh is the long-lived token exchanged for new access tokens.
	TokenTypeRefresh TokenType = "refresh"
)

// # Typed Failures

// Every validation failure mode is a distinct sentinel so callers can map it
// into the API error taxonomy without string matching.
var (
	// ErrTokenExpired is returned when the token's exp claim has passed.
	ErrTokenExpired = errors.New("sec: token expired")

	// ErrTokenInvalid is returned for signature or structural failures.
	ErrTokenInvalid = errors.New("sec: token invalid")

	// ErrNotRefreshToken is returned when a refresh operation receives a
	// valid token of the wrong type.
	ErrNotRefreshToken = errors.New("sec: token is not a refresh token")

	// ErrNotAccessToken is returned when an access-only endpoint receives a
	// valid token of the wrong type.
	ErrNotAccessToken = errors.New("sec: token is not an access token")
)

// TokenClaims represents the payload embedded inside a NoteHub bearer token.
//
// The claim set is deliberately minimal: subject user, type discriminator,
// and the registered iat/exp pair. Everything else (username, theme) is
// re-fetched from storage so tokens never go stale.
type TokenClaims struct {
	jwt.RegisteredClaims

	UserID string    `json:"user_id"`
	Type   TokenType `json:"type"`
}

// TokenCodec signs and verifies compact bearer tokens using HS256.
//
// # Why HMAC?
//
// A single server-held secret signs and verifies; there is no third party
// that needs to verify tokens independently, so an asymmetric scheme would
// add key management without adding security.
type TokenCodec struct {
	secret []byte
	issuer string
}

// NewTokenCodec creates a [TokenCodec] from the server-held HMAC secret.
func NewTokenCodec(secret, issuer string) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("sec: JWT secret must not be empty")
	}
	return &TokenCodec{secret: []byte(secret), issuer: issuer}, nil
}

/*
Issue mints a signed bearer token of the given type.

Parameters:
  - userID: The subject user's ID.
  - tokenType: [TokenTypeAccess] or [TokenTypeRefresh].
  - timeToLive: The duration before the token expires.

Returns:
  - A signed compact JWT string, or an error if signing fails.
*/
func (codec *TokenCodec) Issue(userID string, tokenType TokenType, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    codec.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		UserID: userID,
		Type:   tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(codec.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

/*
Validate checks the signature, expiry, and type of a bearer token.

All three failure modes return a typed sentinel, never a panic or an opaque
library error:

  - bad signature / malformed  -> [ErrTokenInvalid]
  - expired                    -> [ErrTokenExpired]
  - unrecognized type claim    -> [ErrTokenInvalid]

Returns:
  - *TokenClaims: The verified claim set.
  - error: One of the sentinels above, or nil.
*/
func (codec *TokenCodec) Validate(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return codec.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	// The type claim must be one of the two recognized kinds.
	if claims.Type != TokenTypeAccess && claims.Type != TokenTypeRefresh {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

/*
VerifyAccess validates a token AND confirms it is an access token.

A valid refresh token presented where an access token is required is rejected
with [ErrNotAccessToken]; long-lived refresh tokens must never be usable as
API credentials.
*/
func (codec *TokenCodec) VerifyAccess(tokenString string) (*TokenClaims, error) {
	claims, err := codec.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeAccess {
		return nil, ErrNotAccessToken
	}
	return claims, nil
}

/*
Refresh exchanges a valid refresh token for a fresh access token.

It revalidates the token, additionally confirms the type is refresh (a
valid-but-wrong-type token fails with [ErrNotRefreshToken]), then mints a new
access token with the given TTL.

It deliberately does NOT mint a new refresh token: there is no refresh-token
rotation in this design, which also means a leaked refresh token stays valid
for its full lifetime. Known limitation, documented in DESIGN.md.
*/
func (codec *TokenCodec) Refresh(refreshToken string, accessTTL time.Duration) (string, error) {
	claims, err := codec.Validate(refreshToken)
	if err != nil {
		return "", err
	}

	if claims.Type != TokenTypeRefresh {
		return "", ErrNotRefreshToken
	}

	return codec.Issue(claims.UserID, TokenTypeAccess, accessTTL)
}
