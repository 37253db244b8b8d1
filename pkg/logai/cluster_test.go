package logai

import (
	"fmt"
	"testing"
	"time"

	"github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterEntries(t *testing.T) {
	base := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	var entries []client.LogEntry
	for i := 0; i < 8; i++ {
		entries = append(entries, entry(base.Add(time.Duration(i)*time.Second), "info", fmt.Sprintf("request %d handled", i)))
	}
	entries = append(entries, entry(base.Add(time.Minute), "error", "payment gateway timeout"))

	clusters := ClusterEntries(entries, ClusterOptions{MaxExamples: 2})
	require.Len(t, clusters, 2)

	assert.Equal(t, "request <*> handled", clusters[0].Pattern)
	assert.Equal(t, 8, clusters[0].Size)
	assert.Len(t, clusters[0].Examples, 2)
	assert.Equal(t, "request 0 handled", clusters[0].Examples[0])

	assert.Equal(t, "payment gateway timeout", clusters[1].Pattern)
	assert.Equal(t, 1, clusters[1].Size)
	assert.Equal(t, 1, clusters[1].Levels["error"])
}

func TestStats(t *testing.T) {
	base := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	entries := []client.LogEntry{
		entry(base, "info", "service ready"),
		entry(base.Add(10*time.Second), "INFO", "request 1 handled"),
		entry(base.Add(20*time.Second), "error", "request 2 failed"),
		entry(base.Add(70*time.Second), "info", "request 3 handled"),
	}

	report := Stats(entries, StatsOptions{TopTemplates: 2})

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 3, report.ByLevel["info"])
	assert.Equal(t, 1, report.ByLevel["error"])
	assert.Equal(t, base, report.First)
	assert.Equal(t, base.Add(70*time.Second), report.Last)

	require.Len(t, report.Buckets, 2)
	assert.Equal(t, 3, report.Buckets[0].Count)
	assert.Equal(t, 1, report.Buckets[0].ErrorCount)
	assert.Equal(t, 1, report.Buckets[1].Count)

	require.Len(t, report.TopTemplates, 2)
	assert.Equal(t, "request <*> handled", report.TopTemplates[0].Pattern)
	assert.Equal(t, 2, report.TopTemplates[0].Count)
}

func TestStatsEmpty(t *testing.T) {
	report := Stats(nil, StatsOptions{})
	assert.Equal(t, 0, report.Total)
	assert.Empty(t, report.Buckets)
	assert.Empty(t, report.TopTemplates)
}
