package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 80.0, cfg.Detection.SimilarityThreshold)
	assert.Equal(t, 3, cfg.Detection.MinOccurrences)
	assert.Equal(t, 0.15, cfg.Detection.AmountVariationCap)
	assert.Equal(t, 0.7, cfg.Detection.BandShare)
	assert.Equal(t, 0.5, cfg.Detection.MinConfidence)
	assert.Equal(t, 1000.0, cfg.Forecast.LowBalanceThreshold)
	assert.Equal(t, 30, cfg.Forecast.HorizonDays)
	assert.Equal(t, "subwatch", cfg.BigQuery.DatasetID)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subwatch.yaml")
	content := []byte(`
detection:
  similarity_threshold: 90
  min_occurrences: 4
forecast:
  low_balance_threshold: 2500
bigquery:
  project_id: acme-prod
gcs:
  bucket: acme-statements
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Overridden fields.
	assert.Equal(t, 90.0, cfg.Detection.SimilarityThreshold)
	assert.Equal(t, 4, cfg.Detection.MinOccurrences)
	assert.Equal(t, 2500.0, cfg.Forecast.LowBalanceThreshold)
	assert.Equal(t, "acme-prod", cfg.BigQuery.ProjectID)
	assert.Equal(t, "acme-statements", cfg.GCS.Bucket)

	// Unset fields keep defaults.
	assert.Equal(t, 0.15, cfg.Detection.AmountVariationCap)
	assert.Equal(t, 30, cfg.Forecast.HorizonDays)
	assert.Equal(t, "subwatch", cfg.BigQuery.DatasetID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("detection: ["), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
