package seed

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/app/repositories/memory"
	"github.com/kapwanet/exchange/internal/app/services"
	"github.com/kapwanet/exchange/internal/config"
	"github.com/kapwanet/exchange/internal/pkg/metrics"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDefaultData(t *testing.T) {
	ctx := context.Background()
	directory := services.NewDirectory(services.Deps{
		Store:   memory.NewStore(),
		Logger:  zerolog.Nop(),
		Metrics: metrics.NewRecorder(),
	})

	cfg := &config.Config{}
	require.NoError(t, CreateDefaultData(ctx, directory, cfg, zerolog.Nop()))

	orgID, adminID := uuid.New(), uuid.New()
	cfg.Seed.OrgID = orgID.String()
	cfg.Seed.AdminID = adminID.String()
	cfg.Seed.AdminName = "Root"

	require.NoError(t, CreateDefaultData(ctx, directory, cfg, zerolog.Nop()))
	require.NoError(t, CreateDefaultData(ctx, directory, cfg, zerolog.Nop()))

	m, err := directory.GetMembership(ctx, orgID, adminID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOrgAdmin, m.Role)
	assert.Equal(t, "Root", m.DisplayName)
	assert.True(t, m.IsActive())

	staff, err := directory.HasRole(ctx, adminID, orgID, models.StaffRoles...)
	require.NoError(t, err)
	assert.True(t, staff)
}
