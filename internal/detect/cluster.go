package detect

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/dvloznov/subwatch/internal/config"
	"github.com/dvloznov/subwatch/internal/domain"
)

// clusterKeyLen is how much of the seed description becomes the cluster key.
const clusterKeyLen = 30

// Cluster is a run-scoped grouping of transactions believed to represent the
// same recurring vendor. Clusters are never persisted; they are recomputed
// from the current transaction set on every detection run.
type Cluster struct {
	Key     string
	Members []domain.Transaction
}

// Clusterer partitions transactions by fuzzy description similarity.
type Clusterer struct {
	threshold float64
	metric    *metrics.Levenshtein
}

// NewClusterer creates a Clusterer with the configured similarity threshold
// (0-100 scale).
func NewClusterer(cfg config.DetectionConfig) *Clusterer {
	return &Clusterer{
		threshold: cfg.SimilarityThreshold,
		metric:    metrics.NewLevenshtein(),
	}
}

// Cluster partitions transactions in input order using single-pass greedy
// clustering. Each unassigned transaction seeds a new cluster; every later
// unassigned transaction joins if its description scores above the threshold
// against the SEED description. Members are never re-compared against each
// other, so a cluster can end up narrower than the true vendor group when
// description phrasing drifts across occurrences.
func (c *Clusterer) Cluster(txs []domain.Transaction) []Cluster {
	assigned := make([]bool, len(txs))
	var clusters []Cluster

	for i, seed := range txs {
		if assigned[i] {
			continue
		}
		assigned[i] = true

		cluster := Cluster{
			Key:     clusterKey(seed.Description),
			Members: []domain.Transaction{seed},
		}

		for j := i + 1; j < len(txs); j++ {
			if assigned[j] {
				continue
			}
			if c.Similarity(seed.Description, txs[j].Description) > c.threshold {
				cluster.Members = append(cluster.Members, txs[j])
				assigned[j] = true
			}
		}

		clusters = append(clusters, cluster)
	}

	return clusters
}

// Similarity scores two descriptions on a 0-100 Levenshtein-ratio scale,
// case-insensitively.
func (c *Clusterer) Similarity(a, b string) float64 {
	return strutil.Similarity(strings.ToLower(a), strings.ToLower(b), c.metric) * 100
}

func clusterKey(description string) string {
	runes := []rune(description)
	if len(runes) <= clusterKeyLen {
		return description
	}
	return string(runes[:clusterKeyLen])
}
