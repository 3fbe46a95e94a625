package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/schemajeli/schemajeli/internal/config"
)

func TestGetConfigRoundTripsThroughConfig(t *testing.T) {
	content, err := NewProjectTemplate(SQLite).GetConfig()
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(content), &cfg))
	assert.Equal(t, "sqlite", cfg.Database.Provider)
	assert.Equal(t, "DATABASE_URL", cfg.Database.URLEnv)
	assert.Equal(t, 3000, cfg.Server.Port)
	require.NoError(t, cfg.Validate())
}

func TestUnknownDatabaseTypeFallsBackToPostgres(t *testing.T) {
	pt := NewProjectTemplate("oracle")
	assert.Equal(t, PostgreSQL, pt.DatabaseType)
	assert.Contains(t, pt.GetEnvTemplate(), "postgres://")
}
