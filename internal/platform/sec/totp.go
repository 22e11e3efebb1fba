// Copyright (c) 2026 NoteHub. All rights reserved.

package sec

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// # Second Factor (TOTP)

// TOTP parameters: standard 30-second time step, 6-digit codes, SHA-1.
//
// # Clock Skew
//
// Verification accepts the current step plus one step on either side
// (totpSkewSteps = 1, i.e. ±30s). This is an explicit decision: it absorbs
// the clock drift of real phones without widening the guessing window beyond
// three codes per attempt.
const (
	totpPeriodSeconds = 30
	totpSkewSteps     = 1
	totpSecretBytes   = 20
)

// totpOpts is the single source of truth for verification parameters.
var totpOpts = totp.ValidateOpts{
	Period:    totpPeriodSeconds,
	Skew:      totpSkewSteps,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// GenerateTOTPSecret returns a new random base32-encoded shared secret
// suitable for authenticator-app enrollment.
func GenerateTOTPSecret() (string, error) {
	secret := make([]byte, totpSecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("sec: failed to generate TOTP secret: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(secret), nil
}

/*
TOTPProvisioningURI builds the otpauth:// URI encoded into the enrollment QR code.

Parameters:
  - secret: The base32 shared secret.
  - accountLabel: The username shown in the authenticator app.
  - issuer: The service name shown in the authenticator app.
*/
func TOTPProvisioningURI(secret, accountLabel, issuer string) (string, error) {
	rawSecret, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("sec: invalid TOTP secret: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountLabel,
		Period:      totpPeriodSeconds,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
		Secret:      rawSecret,
	})
	if err != nil {
		return "", fmt.Errorf("sec: failed to build provisioning URI: %w", err)
	}

	return key.URL(), nil
}

/*
VerifyTOTP reports whether the submitted code matches the secret within the
tolerance window.

A principal with no enrolled secret has the second factor "not required":
verification against an empty secret trivially passes. Callers branch on
secret presence to decide whether to challenge at all, then call this
unconditionally.
*/
func VerifyTOTP(secret, submittedCode string) bool {
	if secret == "" {
		return true
	}

	valid, err := totp.ValidateCustom(submittedCode, secret, time.Now().UTC(), totpOpts)
	if err != nil {
		return false
	}
	return valid
}

// GenerateTOTPCode computes the code for the given secret at the given time.
// Exposed for enrollment confirmation flows and tests.
func GenerateTOTPCode(secret string, at time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, at.UTC(), totpOpts)
	if err != nil {
		return "", fmt.Errorf("sec: failed to generate TOTP code: %w", err)
	}
	return code, nil
}
