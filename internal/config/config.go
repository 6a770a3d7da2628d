package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level subwatch.yaml configuration. Every detection and
// forecasting parameter is explicit here so tests can probe the boundaries
// instead of fighting hidden constants.
type Config struct {
	Detection DetectionConfig `yaml:"detection"`
	Forecast  ForecastConfig  `yaml:"forecast"`
	BigQuery  BigQueryConfig  `yaml:"bigquery"`
	GCS       GCSConfig       `yaml:"gcs"`
}

// DetectionConfig tunes the clusterer, classifier and synthesizer.
type DetectionConfig struct {
	// SimilarityThreshold is the 0-100 fuzzy-match score a description must
	// exceed against the cluster seed to join the cluster.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// MinOccurrences is the minimum cluster size (and minimum debit count)
	// before a cluster is considered at all.
	MinOccurrences int `yaml:"min_occurrences"`

	// AmountVariationCap is the maximum coefficient of variation
	// (stddev/mean) of absolute amounts for one recurring charge.
	AmountVariationCap float64 `yaml:"amount_variation_cap"`

	// BandShare is the fraction of gaps that must fall inside a cadence band
	// for the band to match.
	BandShare float64 `yaml:"band_share"`

	// MinConfidence is the classifier confidence a cluster must exceed to
	// qualify as a subscription.
	MinConfidence float64 `yaml:"min_confidence"`
}

// ForecastConfig tunes the balance forecaster.
type ForecastConfig struct {
	// LowBalanceThreshold flags any day whose balance falls below it.
	// Currency-unit-agnostic.
	LowBalanceThreshold float64 `yaml:"low_balance_threshold"`

	// HorizonDays is the default projection horizon.
	HorizonDays int `yaml:"horizon_days"`
}

// BigQueryConfig locates the dataset backing the store.
type BigQueryConfig struct {
	ProjectID string `yaml:"project_id"`
	DatasetID string `yaml:"dataset_id"`
}

// GCSConfig locates the bucket for uploaded CSV statements.
type GCSConfig struct {
	Bucket string `yaml:"bucket"`
}

// Default returns the stock tuning.
func Default() *Config {
	return &Config{
		Detection: DetectionConfig{
			SimilarityThreshold: 80,
			MinOccurrences:      3,
			AmountVariationCap:  0.15,
			BandShare:           0.7,
			MinConfidence:       0.5,
		},
		Forecast: ForecastConfig{
			LowBalanceThreshold: 1000,
			HorizonDays:         30,
		},
		BigQuery: BigQueryConfig{
			DatasetID: "subwatch",
		},
	}
}

// Load reads a subwatch.yaml file from disk, filling unset fields with
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}
