package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esmf-org/branch-summary/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
artifacts:
  url: https://github.com/esmf-org/esmf-test-artifacts
summaries:
  url: https://github.com/esmf-org/esmf-test-summary
`))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Global.LogLevel)
	assert.Equal(t, "branch-summary.log", cfg.Global.LogFile)
	assert.Equal(t, "sqlite", cfg.Archive.Driver)
	assert.Equal(t, filepath.Join("workspace", "summaries.db"), cfg.Archive.SQLite.Path)
	assert.Equal(t, filepath.Join("workspace", "artifacts"), cfg.Artifacts.Path)
	assert.Equal(t, config.KnownMachines, cfg.Jobs.Machines)
	assert.Equal(t, 1, cfg.Jobs.History)
	assert.Equal(t, config.DefaultSnapshotRepo, cfg.Jobs.SnapshotRepo)
}

func TestLoad_ExplicitValuesKept(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
global:
  log_level: debug
  workspace: /var/lib/branch-summary
jobs:
  machines: [hera, cheyenne]
  branches: [develop, release/8.3]
  history: 5
archive:
  driver: postgres
  postgres:
    host: db.internal
    port: 5432
    database: summaries
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Global.LogLevel)
	assert.Equal(t, []string{"hera", "cheyenne"}, cfg.Jobs.Machines)
	assert.Equal(t, []string{"develop", "release/8.3"}, cfg.Jobs.Branches)
	assert.Equal(t, 5, cfg.Jobs.History)
	assert.Equal(t, "postgres", cfg.Archive.Driver)
	assert.Equal(t, "db.internal", cfg.Archive.Postgres.Host)
	assert.Equal(t, filepath.Join("/var/lib/branch-summary", "summaries.db"),
		cfg.Archive.SQLite.Path)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *config.Config) {},
		},
		{
			name: "unknown machine",
			mutate: func(c *config.Config) {
				c.Jobs.Machines = []string{"hera", "atlantis"}
			},
			wantErr: true,
		},
		{
			name: "unsupported driver",
			mutate: func(c *config.Config) {
				c.Archive.Driver = "mysql"
			},
			wantErr: true,
		},
		{
			name: "s3 mirror without bucket",
			mutate: func(c *config.Config) {
				c.Reports.S3 = &config.S3MirrorConfig{Enabled: true}
			},
			wantErr: true,
		},
		{
			name: "disabled s3 mirror needs no bucket",
			mutate: func(c *config.Config) {
				c.Reports.S3 = &config.S3MirrorConfig{Enabled: false}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load(writeConfig(t, "global: {}\n"))
			require.NoError(t, err)

			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
