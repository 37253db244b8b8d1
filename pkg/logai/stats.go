package logai

import (
	"sort"
	"time"

	"github.com/bascanada/logai-mcp/pkg/log/client"
)

// TimeBucket is the per interval share of a stats report.
type TimeBucket struct {
	Start      time.Time `json:"start"`
	Count      int       `json:"count"`
	ErrorCount int       `json:"errorCount"`
}

// TemplateStat is a compact template summary for reports.
type TemplateStat struct {
	ID      string `json:"id"`
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
}

// StatsReport summarizes a window of log entries.
type StatsReport struct {
	Total   int            `json:"total"`
	ByLevel map[string]int `json:"byLevel,omitempty"`

	First time.Time `json:"first,omitempty"`
	Last  time.Time `json:"last,omitempty"`

	Buckets      []TimeBucket   `json:"buckets,omitempty"`
	TopTemplates []TemplateStat `json:"topTemplates,omitempty"`
}

// StatsOptions tunes report generation.
type StatsOptions struct {
	BucketSize   time.Duration `json:"bucketSize"`
	TopTemplates int           `json:"topTemplates"`

	Miner MinerOptions `json:"miner"`
}

func (o StatsOptions) withDefaults() StatsOptions {
	if o.BucketSize <= 0 {
		o.BucketSize = time.Minute
	}
	if o.TopTemplates <= 0 {
		o.TopTemplates = 10
	}
	return o
}

// Stats builds a report over the entries: level breakdown, time buckets
// and the most frequent templates.
func Stats(entries []client.LogEntry, options StatsOptions) StatsReport {
	options = options.withDefaults()

	report := StatsReport{
		Total:   len(entries),
		ByLevel: make(map[string]int),
	}

	for _, e := range entries {
		if e.Level != "" {
			report.ByLevel[normalizeLevel(e.Level)]++
		}
		if e.Timestamp.IsZero() {
			continue
		}
		if report.First.IsZero() || e.Timestamp.Before(report.First) {
			report.First = e.Timestamp
		}
		if e.Timestamp.After(report.Last) {
			report.Last = e.Timestamp
		}
	}

	for _, b := range bucketize(entries, options.BucketSize) {
		report.Buckets = append(report.Buckets, TimeBucket{
			Start:      b.start,
			Count:      b.count,
			ErrorCount: b.errors,
		})
	}

	templates := Mine(entries, options.Miner)
	sort.Slice(templates, func(i, j int) bool {
		return templates[i].Count > templates[j].Count
	})
	for i, t := range templates {
		if i >= options.TopTemplates {
			break
		}
		report.TopTemplates = append(report.TopTemplates, TemplateStat{
			ID:      t.ID,
			Pattern: t.Pattern,
			Count:   t.Count,
		})
	}

	return report
}
