package logai

import (
	"time"

	"github.com/bascanada/logai-mcp/pkg/log/client"
)

// Cluster groups entries sharing a mined template.
type Cluster struct {
	ID        string         `json:"id"`
	Pattern   string         `json:"pattern"`
	Size      int            `json:"size"`
	Levels    map[string]int `json:"levels,omitempty"`
	FirstSeen time.Time      `json:"firstSeen"`
	LastSeen  time.Time      `json:"lastSeen"`
	Examples  []string       `json:"examples"`
}

// ClusterOptions tunes clustering.
type ClusterOptions struct {
	// MaxExamples caps the sample messages kept per cluster.
	MaxExamples int `json:"maxExamples"`

	Miner MinerOptions `json:"miner"`
}

func (o ClusterOptions) withDefaults() ClusterOptions {
	if o.MaxExamples <= 0 {
		o.MaxExamples = 3
	}
	return o
}

// ClusterEntries assigns every entry to a template cluster. Clusters come
// back ordered by descending size.
func ClusterEntries(entries []client.LogEntry, options ClusterOptions) []Cluster {
	options = options.withDefaults()

	miner := NewMiner(options.Miner)
	examples := make(map[*Template][]string)

	for _, entry := range entries {
		tpl := miner.Add(entry)
		if tpl == nil {
			continue
		}
		if len(examples[tpl]) < options.MaxExamples {
			examples[tpl] = append(examples[tpl], entry.Message)
		}
	}

	templates := miner.Templates()
	clusters := make([]Cluster, 0, len(templates))
	for _, t := range templates {
		clusters = append(clusters, Cluster{
			ID:        t.ID,
			Pattern:   t.Pattern,
			Size:      t.Count,
			Levels:    t.Levels,
			FirstSeen: t.FirstSeen,
			LastSeen:  t.LastSeen,
			Examples:  examples[t],
		})
	}
	return clusters
}
