package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtyper/internal/cluster"
	"subtyper/internal/cohort"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, "average", cfg.Pipeline.Linkage)
	assert.Equal(t, int64(1), cfg.Pipeline.KMeansSeed)
	assert.Equal(t, 20, cfg.Pipeline.KMeansRestarts)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "average", cfg.Pipeline.Linkage)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subtyper.yaml")
	content := `
logging:
  level: debug
pipeline:
  linkage: average
  kmeans_seed: 42
  outlier_rules:
    - trait: Glu0
      max: 126
    - trait: Ins0
      max: 300
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "average", cfg.Pipeline.Linkage)
	assert.Equal(t, int64(42), cfg.Pipeline.KMeansSeed)
	require.Len(t, cfg.Pipeline.OutlierRules, 2)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subtyper.yaml")
	content := "logging:\n  level: warn\npipeline:\n  linkage: complete\n  kmeans_seed: 42\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("SUBTYPER_LOGGING_LEVEL", "debug")
	t.Setenv("SUBTYPER_PIPELINE_KMEANS_SEED", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, int64(7), cfg.Pipeline.KMeansSeed)
	// Fields without an env override keep the file values.
	assert.Equal(t, "complete", cfg.Pipeline.Linkage)
}

func TestLoadEnvRejectsMalformedNumbers(t *testing.T) {
	t.Setenv("SUBTYPER_PIPELINE_KMEANS_SEED", "not-a-number")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUBTYPER_PIPELINE_KMEANS_SEED")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subtyper.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  linkage: single\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestPipelineConfig(t *testing.T) {
	t.Run("defaults fall back to standard outlier rules", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)

		pc, err := cfg.PipelineConfig()
		require.NoError(t, err)
		assert.Equal(t, cluster.LinkageAverage, pc.Linkage)
		assert.Equal(t, cohort.DefaultOutlierRules(), pc.OutlierRules)
	})

	t.Run("resolves trait names", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.Pipeline.OutlierRules = []OutlierRuleConfig{{Trait: "glu0", Max: 126}}

		pc, err := cfg.PipelineConfig()
		require.NoError(t, err)
		require.Len(t, pc.OutlierRules, 1)
		assert.Equal(t, cohort.Glu0, pc.OutlierRules[0].Trait)
	})

	t.Run("rejects unknown trait", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.Pipeline.OutlierRules = []OutlierRuleConfig{{Trait: "hdl", Max: 10}}

		_, err = cfg.PipelineConfig()
		assert.Error(t, err)
	})
}
