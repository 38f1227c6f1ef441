package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdsim/crowdsim/pkg/types"
)

func TestBuildCLI(t *testing.T) {
	root := BuildCLI()

	assert.Equal(t, "crowdsim", root.Use)
	assert.Equal(t, "1.0.0", root.Version)

	flag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "configs/default.yaml", flag.DefValue)
	assert.Equal(t, "c", flag.Shorthand)

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "generate")
}

func TestBuildCLI_RunFlags(t *testing.T) {
	root := BuildCLI()
	run, _, err := root.Find([]string{"run"})
	require.NoError(t, err)

	assert.NotNil(t, run.Flags().Lookup("workers"))
	assert.NotNil(t, run.Flags().Lookup("tasks"))
}

func TestBuildCLI_GenerateFlagDefaults(t *testing.T) {
	root := BuildCLI()
	gen, _, err := root.Find([]string{"generate"})
	require.NoError(t, err)

	out := gen.Flags().Lookup("out")
	require.NotNil(t, out)
	assert.Equal(t, ".", out.DefValue)

	workers := gen.Flags().Lookup("workers")
	require.NotNil(t, workers)
	assert.Equal(t, "50", workers.DefValue)
}

func TestLoadConfig(t *testing.T) {
	content := `
simulation:
  time_step: 5m
  strategy: composite
  completion_mode: distance
  teleport_on_complete: true
  seed: 42
strategy_params:
  lambda1: 1.0
  gamma: 0.3
  k: 15
dataset:
  workers: data/workers.csv
  tasks: data/tasks.csv
logging:
  development: true
metrics:
  enabled: false
  port: 9090
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Simulation.TimeStep)
	assert.Equal(t, "composite", cfg.Simulation.Strategy)
	assert.True(t, cfg.Simulation.Teleport)
	assert.Equal(t, int64(42), cfg.Simulation.Seed)
	assert.Equal(t, 0.3, cfg.StrategyParams.Gamma)
	assert.Equal(t, 15, cfg.StrategyParams.K)
	assert.Equal(t, "data/workers.csv", cfg.Dataset.Workers)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simulation: [not: a map"), 0o644))

	_, err := loadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config YAML")
}

func TestParseCompletionMode(t *testing.T) {
	mode, err := parseCompletionMode("instant")
	require.NoError(t, err)
	assert.Equal(t, types.CompletionInstant, mode)

	mode, err = parseCompletionMode("")
	require.NoError(t, err)
	assert.Equal(t, types.CompletionDistance, mode, "distance is the default")

	_, err = parseCompletionMode("teleport")
	assert.Error(t, err)
}

func TestParseOptionalTime(t *testing.T) {
	ts, err := parseOptionalTime("start_time", "2020-11-01T08:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 11, 1, 8, 0, 0, 0, time.UTC), ts)

	ts, err = parseOptionalTime("start_time", "")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	_, err = parseOptionalTime("end_time", "2020-11-01 08:00")
	assert.Error(t, err)
}
