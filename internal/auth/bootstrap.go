package auth

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/centre-social/backend/internal/models"
	"github.com/centre-social/backend/pkg/utils"
)

// AdminCreator is the write side of Repository used at startup.
type AdminCreator interface {
	Create(ctx context.Context, email, passwordHash, fullName string, role models.Role) (*models.Administrator, bool, error)
}

// Bootstrap makes sure a super administrator exists for email. It never changes an
// existing account. An empty email or password disables it.
func Bootstrap(ctx context.Context, repo AdminCreator, email, password, fullName string, logger *zap.Logger) error {
	if email == "" || password == "" {
		return nil
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}
	admin, created, err := repo.Create(ctx, email, hash, fullName, models.RoleSuperAdmin)
	if err != nil {
		return err
	}
	if created {
		logger.Info("bootstrap administrator created", zap.String("admin_id", admin.ID.String()))
	}
	return nil
}
