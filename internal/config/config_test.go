package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 0.05, cfg.Analysis.WinsorLower)
	assert.Equal(t, 0.95, cfg.Analysis.WinsorUpper)
	assert.Equal(t, 3, cfg.Analysis.MinFirmsPerCell)
	assert.Equal(t, 1, cfg.Analysis.SeasonalPeriod)
	assert.Equal(t, "aic", cfg.Analysis.Criterion)
	assert.Equal(t, "NGDP_RPCH", cfg.Sources.WEOSubject)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, filepath.IsAbs(cfg.Paths.ReportsDir))
}

func TestLoadFrom_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "firmpulse.yaml")
	content := `
analysis:
  winsor_lower: 0.01
  winsor_upper: 0.99
  max_ar: 4
  criterion: bic
sources:
  weo_subject: PCPIPCH
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 0.01, cfg.Analysis.WinsorLower)
	assert.Equal(t, 0.99, cfg.Analysis.WinsorUpper)
	assert.Equal(t, 4, cfg.Analysis.MaxAR)
	assert.Equal(t, "bic", cfg.Analysis.Criterion)
	assert.Equal(t, "PCPIPCH", cfg.Sources.WEOSubject)
}

func TestLoadFrom_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "firmpulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  max_ar: 4\n"), 0644))

	t.Setenv("FIRMPULSE_ANALYSIS_MAX_AR", "6")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Analysis.MaxAR)
}

func TestLoadFrom_InvalidBounds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "firmpulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  winsor_lower: 0.9\n  winsor_upper: 0.1\n"), 0644))

	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "winsor_lower")
}

func TestLoadFrom_InvalidCriterion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "firmpulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  criterion: hqic\n"), 0644))

	_, err := LoadFrom(path)
	require.Error(t, err)
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{}
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.CacheDir = filepath.Join(dir, "data", "cache")
	cfg.Paths.ReportsDir = filepath.Join(dir, "data", "reports")
	cfg.Paths.ChartsDir = filepath.Join(dir, "data", "reports", "charts")
	cfg.Paths.LogsDir = filepath.Join(dir, "logs")

	require.NoError(t, cfg.EnsureDirs())

	for _, p := range []string{cfg.Paths.CacheDir, cfg.Paths.ChartsDir, cfg.Paths.LogsDir} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
