package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightops/flight-data-server/internal/models"
)

const cliConfig = `
storage:
  type: memory
  snapshotPath: %s
providers:
  - name: Ops
    service: dummy
    schedules:
      - {name: Crew, model: flight.crew, intervalNumber: 15, intervalType: minutes}
`

func writeConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(fmt.Sprintf(cliConfig, filepath.Join(dir, "store.json")))
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "version", "--format", "json")
	require.NoError(t, err)

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")

	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "flightd")
}

func TestSyncRunDue_PersistsAndLists(t *testing.T) {
	t.Parallel()

	path := writeConfig(t)

	out, err := execute(t, "--config", path, "schedules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Ops (dummy): Crew")
	assert.Contains(t, out, "never")

	out, err = execute(t, "--config", path, "sync", "run", "--due")
	require.NoError(t, err)
	assert.Contains(t, out, "Ran 1 due schedule(s)")

	// the schedule ran, so it is no longer due
	out, err = execute(t, "--config", path, "sync", "run", "--due")
	require.NoError(t, err)
	assert.Contains(t, out, "Ran 0 due schedule(s)")

	out, err = execute(t, "--config", path, "schedules", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "never")
}

func TestSyncRun_Arguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "nothing to run", args: []string{"sync", "run"}, wantErr: "either schedule ids or --due"},
		{name: "ids and due", args: []string{"sync", "run", "--due", "1"}, wantErr: "either schedule ids or --due"},
		{name: "invalid id", args: []string{"sync", "run", "abc"}, wantErr: `invalid schedule id "abc"`},
		{name: "negative id", args: []string{"sync", "run", "--", "-3"}, wantErr: `invalid schedule id "-3"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSyncRun_UnknownSchedule(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "--config", writeConfig(t), "sync", "run", "9999")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRegistryLookup(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "registry", "lookup", "--model", models.ModelAircraft)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "are required")

	_, err = execute(t, "--config", writeConfig(t), "registry", "lookup",
		"--provider", "1", "--model", models.ModelAircraft, "--external-id", "A-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMigrate_RequiresDatabase(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "migrate", "up", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--config is required")

	_, err = execute(t, "--config", writeConfig(t), "migrate", "down", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database configuration is required")
}

func TestParseIDs(t *testing.T) {
	t.Parallel()

	ids, err := parseIDs([]string{"3", "1", "2"})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, ids)

	_, err = parseIDs([]string{"0"})
	assert.Error(t, err)
}

func TestStepsLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "all", stepsLabel(0))
	assert.Equal(t, "2", stepsLabel(2))
}
