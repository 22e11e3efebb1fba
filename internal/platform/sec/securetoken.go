// Copyright (c) 2026 NoteHub. All rights reserved.

package sec

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// # Opaque Secure Tokens

// GenerateSecureToken returns a URL-safe random string with byteLength bytes
// of entropy from a cryptographically secure source.
//
// # Entropy
//
// Ephemeral capability tokens (password reset, invitation) use 32 bytes
// (256 bits), making online guessing infeasible regardless of rate limiting.
func GenerateSecureToken(byteLength int) (string, error) {
	buffer := make([]byte, byteLength)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("sec: failed to generate secure token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}
