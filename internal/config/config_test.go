package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaultsForMinimalYAML(t *testing.T) {
	path := writeConfig(t, "storage:\n  postgres_dsn: postgres://localhost/nfledge\n")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 100, c.Discovery.MinSample)
	assert.Equal(t, 0.01, c.Discovery.PValueThreshold)
	assert.Equal(t, 0.10, c.Decision.StakeCapFraction)
	assert.Equal(t, 8, c.Backtest.TrainYears)
}

func TestLoadRejectsLooserThanSpecPValueThreshold(t *testing.T) {
	path := writeConfig(t, "discovery:\n  p_value_threshold: 0.02\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "p_value_threshold")
}

func TestLoadRejectsStakeCapAboveTenPercent(t *testing.T) {
	path := writeConfig(t, "decision:\n  stake_cap_fraction: 0.25\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stake_cap_fraction")
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
