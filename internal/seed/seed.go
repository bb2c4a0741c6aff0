package seed

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/app/services"
	"github.com/kapwanet/exchange/internal/config"
	"github.com/rs/zerolog"
)

// CreateDefaultData bootstraps the configured organization admin. It is a
// no-op when no seed organization is configured and never demotes or
// reactivates an existing membership.
func CreateDefaultData(ctx context.Context, directory services.Directory, cfg *config.Config, lgr zerolog.Logger) error {
	if cfg.Seed.OrgID == "" {
		lgr.Debug().Msg("No seed organization configured, skipping default data")
		return nil
	}

	orgID, err := uuid.Parse(cfg.Seed.OrgID)
	if err != nil {
		return fmt.Errorf("invalid seed org id: %w", err)
	}
	adminID, err := uuid.Parse(cfg.Seed.AdminID)
	if err != nil {
		return fmt.Errorf("invalid seed admin id: %w", err)
	}

	lgr.Info().Str("orgID", orgID.String()).Msg("Checking/Creating default org admin...")
	membership, err := directory.EnsureMember(ctx, orgID, adminID, cfg.Seed.AdminName, models.RoleOrgAdmin)
	if err != nil {
		lgr.Error().Err(err).Msg("Error creating default org admin")
		return err
	}

	if membership.Role != models.RoleOrgAdmin {
		lgr.Warn().
			Str("userID", adminID.String()).
			Str("role", string(membership.Role)).
			Msg("Seed admin already exists with a different role, leaving it unchanged")
		return nil
	}
	lgr.Info().Str("userID", adminID.String()).Msg("Default org admin ready")
	return nil
}
