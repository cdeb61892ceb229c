package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightops/flight-data-server/internal/models"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		yamlContent string
		check       func(t *testing.T, cfg *Config)
		errContains string
	}{
		{
			name:        "empty file uses memory storage",
			yamlContent: "{}",
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, StorageTypeMemory, cfg.GetStorageType())
				assert.Equal(t, "flightd", cfg.GetServerName())
				assert.Equal(t, DuplicatesReject, cfg.PhasePolicy.GetDuplicates())
				assert.True(t, cfg.PhasePolicy.GetAllowNegative())
			},
		},
		{
			name: "full config",
			yamlContent: `serverName: ops
storage:
  type: memory
  snapshotPath: /var/lib/flightd/state.json
phasePolicy:
  duplicates: lowest-id
  allowNegative: false
seed:
  eventCodes:
    - {code: OUT, name: Off block, sequence: 10}
    - {code: OFF, name: Takeoff, sequence: 20}
    - {code: "ON", name: Landing, sequence: 30}
    - {code: IN, name: On block, sequence: 40}
  phases:
    - {name: Block, start: OUT, end: IN}
    - {name: Flight, start: OFF, end: "ON"}
providers:
  - name: ops
    service: http
    apiBase: https://ops.example.com/api
    schedules:
      - name: Aircraft import
        model: flight.aircraft
        intervalNumber: 30
        intervalType: minutes
        kwargs: "{'path': 'aircraft', 'items_path': 'data'}"
`,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "ops", cfg.GetServerName())
				assert.Equal(t, "/var/lib/flightd/state.json", cfg.Storage.SnapshotPath)
				assert.Equal(t, DuplicatesLowestID, cfg.PhasePolicy.GetDuplicates())
				assert.False(t, cfg.PhasePolicy.GetAllowNegative())
				require.Len(t, cfg.Seed.EventCodes, 4)
				require.Len(t, cfg.Seed.Phases, 2)
				require.Len(t, cfg.Providers, 1)
				assert.True(t, cfg.Providers[0].IsActive())

				sched := cfg.Providers[0].Schedules[0].ToModel(7)
				assert.Equal(t, int64(7), sched.ProviderID)
				assert.Equal(t, models.IntervalMinutes, sched.IntervalType)
				assert.Equal(t, 30, sched.IntervalNumber)
				assert.True(t, sched.Active)
			},
		},
		{
			name:        "unknown storage type",
			yamlContent: "storage:\n  type: redis\n",
			errContains: "storage.type",
		},
		{
			name:        "database storage without database section",
			yamlContent: "storage:\n  type: database\n",
			errContains: "requires a database section",
		},
		{
			name:        "database section missing fields",
			yamlContent: "storage:\n  type: database\ndatabase:\n  host: localhost\n",
			errContains: "port is required",
		},
		{
			name:        "bad duplicate policy",
			yamlContent: "phasePolicy:\n  duplicates: newest\n",
			errContains: "phasePolicy.duplicates",
		},
		{
			name: "phase with unknown code",
			yamlContent: `seed:
  eventCodes: [{code: OUT, name: Off block}]
  phases: [{name: Block, start: OUT, end: IN}]
`,
			errContains: "unknown end code 'IN'",
		},
		{
			name: "duplicate provider",
			yamlContent: `providers:
  - {name: a, service: dummy}
  - {name: a, service: dummy}
`,
			errContains: "duplicate provider name",
		},
		{
			name: "schedule with unsupported model",
			yamlContent: `providers:
  - name: a
    service: dummy
    schedules: [{name: s, model: flight.passenger}]
`,
			errContains: "unsupported sync model",
		},
		{
			name: "schedule with code in kwargs",
			yamlContent: `providers:
  - name: a
    service: dummy
    schedules: [{name: s, model: flight.flight, kwargs: "import os"}]
`,
			errContains: "invalid kwargs",
		},
		{
			name:        "malformed yaml",
			yamlContent: "storage: [",
			errContains: "failed to parse YAML config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yamlContent), 0600))

			cfg, err := LoadConfig(WithConfigPath(path))
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfig_PathRequired(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")

	_, err = LoadConfig(WithConfigPath(""))
	require.Error(t, err)

	_, err = LoadConfig(WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, err)
}

func TestDatabaseConfig_GetPassword(t *testing.T) {
	// Not parallel: uses t.Setenv

	dir := t.TempDir()
	file := filepath.Join(dir, "pw")
	require.NoError(t, os.WriteFile(file, []byte("  s3cret\n"), 0600))

	cfg := &DatabaseConfig{PasswordFile: file}
	pw, err := cfg.GetPassword()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)

	t.Setenv(PasswordEnvVar, "from-env")
	pw, err = (&DatabaseConfig{}).GetPassword()
	require.NoError(t, err)
	assert.Equal(t, "from-env", pw)

	t.Setenv(PasswordEnvVar, "")
	_, err = (&DatabaseConfig{}).GetPassword()
	require.Error(t, err)
}

func TestDatabaseConfig_GetConnectionString(t *testing.T) {
	t.Setenv(PasswordEnvVar, "p@ss word")

	cfg := &DatabaseConfig{Host: "db", Port: 5432, User: "flightd", Database: "flights"}
	conn, err := cfg.GetConnectionString()
	require.NoError(t, err)
	assert.Equal(t, "postgres://flightd:p%40ss+word@db:5432/flights?sslmode=require", conn)

	cfg.SSLMode = "disable"
	conn, err = cfg.GetConnectionString()
	require.NoError(t, err)
	assert.Contains(t, conn, "sslmode=disable")
}
