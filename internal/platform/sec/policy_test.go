// Copyright (c) 2026 NoteHub. All rights reserved.

package sec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notehub/notehub/internal/platform/apperr"
	"github.com/notehub/notehub/internal/platform/sec"
)

/*
TestPolicyErrors_Compliant verifies that a fully compliant password produces
zero violations.
*/
func TestPolicyErrors_Compliant(t *testing.T) {
	assert.Empty(t, sec.PolicyErrors("Str0ng!Pass#2025"))
}

/*
TestPolicyErrors_Violations checks each rule independently and verifies that
violations accumulate instead of short-circuiting.
*/
func TestPolicyErrors_Violations(t *testing.T) {
	tests := []struct {
		name     string
		password string
		count    int
	}{
		{"empty_is_length_failure", "", 5}, // length, lower, upper, digit, symbol
		{"too_short", "Ab1!x", 1},
		{"no_lowercase", "ABCDEF12345!!", 1},
		{"no_uppercase", "abcdef12345!!", 1},
		{"no_digit", "Abcdefghijk!!", 1},
		{"no_symbol", "Abcdefgh12345", 1},
		{"whitespace_inside", "Abcd efg1234!", 1},
		{"whitespace_leading", " Abcdefg1234!", 1},
		{"short_and_no_digit", "Abcdef!", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := sec.PolicyErrors(tt.password)
			assert.Len(t, violations, tt.count, "violations: %v", violations)
		})
	}
}

/*
TestPolicyErrors_SymbolClasses ensures both punctuation and symbol runes
satisfy the special-character rule.
*/
func TestPolicyErrors_SymbolClasses(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"punctuation", "Abcdefgh1234!"},
		{"math_symbol", "Abcdefgh1234+"},
		{"currency_symbol", "Abcdefgh1234$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, sec.PolicyErrors(tt.password))
		})
	}
}

/*
TestEnforcePolicy verifies the single-error contract: the first failing rule
is surfaced as a VALIDATION_ERROR, and compliant input returns nil.
*/
func TestEnforcePolicy(t *testing.T) {
	assert.NoError(t, sec.EnforcePolicy("Str0ng!Pass#2025"))

	err := sec.EnforcePolicy("short")
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeValidation, ae.Code)
	assert.Contains(t, ae.Message, "at least 12 characters")
}
