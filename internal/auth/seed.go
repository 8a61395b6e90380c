package auth

import (
	"context"
	"fmt"

	"github.com/lumina-home/lumina-core/internal/infrastructure/logging"
)

// Default credentials created on first boot. The password must be
// changed before exposing the hub beyond the local network.
const (
	seedAdminUsername = "admin"
	seedAdminPassword = "admin123"
	seedHouseID       = "house-001"
)

// SeedAdmin creates the default admin account on first boot if no users
// exist. Subsequent boots are a no-op.
func SeedAdmin(ctx context.Context, repo UserRepository, logger *logging.Logger) error {
	count, err := repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("checking user count: %w", err)
	}

	if count > 0 {
		logger.Debug("users exist, skipping admin seed")
		return nil
	}

	hash, err := HashPassword(seedAdminPassword)
	if err != nil {
		return fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &User{
		Username:     seedAdminUsername,
		PasswordHash: hash,
		Role:         RoleAdmin,
		HouseID:      seedHouseID,
	}

	if err := repo.Create(ctx, admin); err != nil {
		return fmt.Errorf("creating seed admin: %w", err)
	}

	logger.Warn("seed admin account created",
		"username", seedAdminUsername,
		"action_required", "change the default password",
	)

	return nil
}
