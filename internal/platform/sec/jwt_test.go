// Copyright (c) 2026 NoteHub. All rights reserved.

package sec_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notehub/notehub/internal/platform/sec"
)

const testSecret = "unit-test-signing-secret"

func newCodec(t *testing.T) *sec.TokenCodec {
	t.Helper()
	codec, err := sec.NewTokenCodec(testSecret, "notehub.test")
	require.NoError(t, err)
	return codec
}

/*
TestTokenCodec_IssueAndValidate covers the round trip for both token types.
*/
func TestTokenCodec_IssueAndValidate(t *testing.T) {
	codec := newCodec(t)

	tests := []struct {
		name      string
		tokenType sec.TokenType
	}{
		{"access", sec.TokenTypeAccess},
		{"refresh", sec.TokenTypeRefresh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := codec.Issue("user-123", tt.tokenType, time.Hour)
			require.NoError(t, err)
			require.NotEmpty(t, token)

			claims, err := codec.Validate(token)
			require.NoError(t, err)
			assert.Equal(t, "user-123", claims.UserID)
			assert.Equal(t, tt.tokenType, claims.Type)
		})
	}
}

/*
TestTokenCodec_Validate_Expired verifies that an expired token fails with the
typed expiry sentinel, not a generic error.
*/
func TestTokenCodec_Validate_Expired(t *testing.T) {
	codec := newCodec(t)

	token, err := codec.Issue("user-123", sec.TokenTypeAccess, -1*time.Minute)
	require.NoError(t, err)

	_, err = codec.Validate(token)
	assert.ErrorIs(t, err, sec.ErrTokenExpired)
}

/*
TestTokenCodec_Validate_BadSignature verifies that a token signed with a
different secret is rejected as invalid.
*/
func TestTokenCodec_Validate_BadSignature(t *testing.T) {
	codec := newCodec(t)

	other, err := sec.NewTokenCodec("a-completely-different-secret", "notehub.test")
	require.NoError(t, err)

	token, err := other.Issue("user-123", sec.TokenTypeAccess, time.Hour)
	require.NoError(t, err)

	_, err = codec.Validate(token)
	assert.ErrorIs(t, err, sec.ErrTokenInvalid)
}

/*
TestTokenCodec_Validate_Garbage verifies structural failures map to the
invalid sentinel.
*/
func TestTokenCodec_Validate_Garbage(t *testing.T) {
	codec := newCodec(t)

	_, err := codec.Validate("not.a.jwt")
	assert.ErrorIs(t, err, sec.ErrTokenInvalid)

	_, err = codec.Validate("")
	assert.ErrorIs(t, err, sec.ErrTokenInvalid)
}

/*
TestTokenCodec_VerifyAccess_RejectsRefresh enforces the type boundary: a valid
refresh token must never pass where an access token is required.
*/
func TestTokenCodec_VerifyAccess_RejectsRefresh(t *testing.T) {
	codec := newCodec(t)

	refresh, err := codec.Issue("user-123", sec.TokenTypeRefresh, time.Hour)
	require.NoError(t, err)

	_, err = codec.VerifyAccess(refresh)
	assert.ErrorIs(t, err, sec.ErrNotAccessToken)

	access, err := codec.Issue("user-123", sec.TokenTypeAccess, time.Hour)
	require.NoError(t, err)

	claims, err := codec.VerifyAccess(access)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
}

/*
TestTokenCodec_Refresh covers the exchange contract: refresh tokens mint new
access tokens; access tokens are rejected with the distinct wrong-type error.
*/
func TestTokenCodec_Refresh(t *testing.T) {
	codec := newCodec(t)

	refresh, err := codec.Issue("user-123", sec.TokenTypeRefresh, time.Hour)
	require.NoError(t, err)

	newAccess, err := codec.Refresh(refresh, time.Hour)
	require.NoError(t, err)

	claims, err := codec.Validate(newAccess)
	require.NoError(t, err)
	assert.Equal(t, sec.TokenTypeAccess, claims.Type)
	assert.Equal(t, "user-123", claims.UserID)

	// A valid access token is NOT a refresh token.
	access, err := codec.Issue("user-123", sec.TokenTypeAccess, time.Hour)
	require.NoError(t, err)

	_, err = codec.Refresh(access, time.Hour)
	assert.ErrorIs(t, err, sec.ErrNotRefreshToken)
}

/*
TestTokenCodec_Refresh_Expired verifies an expired refresh token cannot be
exchanged.
*/
func TestTokenCodec_Refresh_Expired(t *testing.T) {
	codec := newCodec(t)

	refresh, err := codec.Issue("user-123", sec.TokenTypeRefresh, -1*time.Minute)
	require.NoError(t, err)

	_, err = codec.Refresh(refresh, time.Hour)
	assert.ErrorIs(t, err, sec.ErrTokenExpired)
}

/*
TestNewTokenCodec_EmptySecret ensures the codec refuses to start without a key.
*/
func TestNewTokenCodec_EmptySecret(t *testing.T) {
	_, err := sec.NewTokenCodec("", "notehub.test")
	assert.Error(t, err)
}
