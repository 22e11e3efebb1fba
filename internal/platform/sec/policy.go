// Copyright (c) 2026 NoteHub. All rights reserved.

package sec

import (
	"fmt"
	"unicode"

	"github.com/notehub/notehub/internal/platform/apperr"
)

// PolicyMinLength is the minimum number of characters a password must have.
const PolicyMinLength = 12

// # Password Policy

/*
PolicyErrors returns every reason a password fails the policy (empty slice if
it passes).

Rules are checked independently, never short-circuited, so a caller can show
the user all violations at once:

  - at least [PolicyMinLength] characters
  - at least one lowercase letter
  - at least one uppercase letter
  - at least one digit
  - at least one punctuation or symbol character
  - no whitespace anywhere

A nil-equivalent (empty) password is reported as a length failure, not an error.
Pure function, no I/O.
*/
func PolicyErrors(password string) []string {
	var violations []string

	runes := []rune(password)
	if len(runes) < PolicyMinLength {
		violations = append(violations, fmt.Sprintf("Password must be at least %d characters long.", PolicyMinLength))
	}

	var hasLower, hasUpper, hasDigit, hasSymbol, hasSpace bool
	for _, r := range runes {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
		if unicode.IsSpace(r) {
			hasSpace = true
		}
	}

	if !hasLower {
		violations = append(violations, "Password must include at least one lowercase letter.")
	}
	if !hasUpper {
		violations = append(violations, "Password must include at least one uppercase letter.")
	}
	if !hasDigit {
		violations = append(violations, "Password must include at least one number.")
	}
	if !hasSymbol {
		violations = append(violations, "Password must include at least one special character.")
	}
	if hasSpace {
		violations = append(violations, "Password cannot contain whitespace characters.")
	}

	return violations
}

// EnforcePolicy returns a VALIDATION_ERROR [apperr.AppError] carrying the
// first failing rule, or nil if the password satisfies the policy.
//
// Policy violations are the one error family that is always itemized to the
// user: the specific rule broken is actionable, unlike credential errors.
func EnforcePolicy(password string) error {
	violations := PolicyErrors(password)
	if len(violations) == 0 {
		return nil
	}
	return apperr.ValidationError(violations[0], apperr.FieldError{
		Field:   "password",
		Message: violations[0],
	})
}
