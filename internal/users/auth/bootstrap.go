// Copyright (c) 2026 NoteHub. All rights reserved.

package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/notehub/notehub/internal/platform/sec"
	"github.com/notehub/notehub/pkg/uuid"
)

// # First-Run Bootstrap

/*
EnsureAdmin creates the initial administrator account on a pristine database.

Description: Runs once at startup. The account is created only when the user
table is completely empty, so a redeployment against an existing database is a
no-op. The bootstrap password comes from configuration and must satisfy the
same password policy as any user-chosen credential.

Parameters:
  - context: context.Context
  - username: string
  - password: string (empty skips the bootstrap with a warning)
  - logger: *slog.Logger

Returns:
  - error: Policy violations or storage failures
*/
func (service *Service) EnsureAdmin(context context.Context, username, password string, logger *slog.Logger) error {
	total, err := service.userRepository.Count(context)
	if err != nil {
		return fmt.Errorf("auth_bootstrap_count_failed: %w", err)
	}

	if total > 0 {
		return nil
	}

	if password == "" {
		logger.Warn("admin_bootstrap_skipped", slog.String("reason", "no ADMIN_PASSWORD configured"))
		return nil
	}

	if err := sec.EnforcePolicy(password); err != nil {
		return fmt.Errorf("auth_bootstrap_weak_password: %w", err)
	}

	hashedPassword, err := sec.HashPassword(password)
	if err != nil {
		return fmt.Errorf("auth_bootstrap_hash_failed: %w", err)
	}

	admin := &User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hashedPassword,
	}

	if err := service.userRepository.Create(context, admin, ""); err != nil {
		return fmt.Errorf("auth_bootstrap_create_failed: %w", err)
	}

	logger.Info("admin_bootstrap_created", slog.String("username", username))
	return nil
}
