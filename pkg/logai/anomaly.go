package logai

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/bascanada/logai-mcp/pkg/log/client"
)

// Anomaly types reported by Detect.
const (
	AnomalyRareTemplate = "rare_template"
	AnomalyNewTemplate  = "new_template"
	AnomalyErrorRate    = "error_rate"
	AnomalyVolumeSpike  = "volume_spike"
)

// Anomaly severities, ordered.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Anomaly is one detected irregularity in the analyzed window.
type Anomaly struct {
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
	TemplateID  string    `json:"templateId,omitempty"`

	Metric        string  `json:"metric,omitempty"`
	ActualValue   float64 `json:"actualValue"`
	ExpectedValue float64 `json:"expectedValue"`
	Deviation     float64 `json:"deviation"`

	Example string `json:"example,omitempty"`
}

// DetectorOptions tunes anomaly detection.
type DetectorOptions struct {
	// RareRatio marks templates whose share of the total volume is below
	// this fraction.
	RareRatio float64 `json:"rareRatio"`
	// NewTemplateWindow marks templates first seen within this duration
	// of the end of the window.
	NewTemplateWindow time.Duration `json:"newTemplateWindow"`
	// BucketSize is the width of the time buckets for rate detectors.
	BucketSize time.Duration `json:"bucketSize"`
	// ErrorRateThreshold is the error fraction per bucket above which an
	// error rate anomaly is reported.
	ErrorRateThreshold float64 `json:"errorRateThreshold"`
	// SpikeFactor is the number of standard deviations above the mean
	// bucket volume that counts as a spike.
	SpikeFactor float64 `json:"spikeFactor"`

	Miner MinerOptions `json:"miner"`
}

func DefaultDetectorOptions() DetectorOptions {
	return DetectorOptions{
		RareRatio:          0.01,
		NewTemplateWindow:  5 * time.Minute,
		BucketSize:         time.Minute,
		ErrorRateThreshold: 0.5,
		SpikeFactor:        3,
	}
}

func (o DetectorOptions) withDefaults() DetectorOptions {
	def := DefaultDetectorOptions()
	if o.RareRatio <= 0 {
		o.RareRatio = def.RareRatio
	}
	if o.NewTemplateWindow <= 0 {
		o.NewTemplateWindow = def.NewTemplateWindow
	}
	if o.BucketSize <= 0 {
		o.BucketSize = def.BucketSize
	}
	if o.ErrorRateThreshold <= 0 {
		o.ErrorRateThreshold = def.ErrorRateThreshold
	}
	if o.SpikeFactor <= 0 {
		o.SpikeFactor = def.SpikeFactor
	}
	return o
}

func isErrorLevel(level string) bool {
	switch normalizeLevel(level) {
	case "error", "err", "fatal", "panic", "critical":
		return true
	}
	return false
}

// Detect mines templates from the entries and reports rare and new
// templates plus error rate and volume anomalies over time buckets.
func Detect(entries []client.LogEntry, options DetectorOptions) []Anomaly {
	options = options.withDefaults()

	var anomalies []Anomaly
	if len(entries) == 0 {
		return anomalies
	}

	templates := Mine(entries, options.Miner)
	total := 0
	var windowEnd time.Time
	for _, e := range entries {
		if e.Timestamp.After(windowEnd) {
			windowEnd = e.Timestamp
		}
	}
	for _, t := range templates {
		total += t.Count
	}

	for _, t := range templates {
		ratio := float64(t.Count) / float64(total)
		if ratio < options.RareRatio {
			anomalies = append(anomalies, Anomaly{
				Type:          AnomalyRareTemplate,
				Severity:      rareSeverity(t),
				Description:   fmt.Sprintf("template %q appeared only %d of %d times", t.Pattern, t.Count, total),
				Timestamp:     t.LastSeen,
				TemplateID:    t.ID,
				Metric:        "template_ratio",
				ActualValue:   ratio,
				ExpectedValue: options.RareRatio,
				Deviation:     options.RareRatio - ratio,
				Example:       t.Example,
			})
		}

		if !windowEnd.IsZero() && !t.FirstSeen.IsZero() &&
			windowEnd.Sub(t.FirstSeen) <= options.NewTemplateWindow {
			anomalies = append(anomalies, Anomaly{
				Type:        AnomalyNewTemplate,
				Severity:    SeverityLow,
				Description: fmt.Sprintf("template %q first appeared at %s", t.Pattern, t.FirstSeen.Format(time.RFC3339)),
				Timestamp:   t.FirstSeen,
				TemplateID:  t.ID,
				Metric:      "first_seen_age_seconds",
				ActualValue: windowEnd.Sub(t.FirstSeen).Seconds(),
				Example:     t.Example,
			})
		}
	}

	anomalies = append(anomalies, detectBucketAnomalies(entries, options)...)

	sort.Slice(anomalies, func(i, j int) bool {
		return anomalies[i].Timestamp.Before(anomalies[j].Timestamp)
	})
	return anomalies
}

func rareSeverity(t *Template) string {
	for level := range t.Levels {
		if isErrorLevel(level) {
			return SeverityHigh
		}
	}
	return SeverityMedium
}

type bucket struct {
	start  time.Time
	count  int
	errors int
}

func bucketize(entries []client.LogEntry, size time.Duration) []bucket {
	byStart := make(map[time.Time]*bucket)
	for _, e := range entries {
		if e.Timestamp.IsZero() {
			continue
		}
		start := e.Timestamp.Truncate(size)
		b, ok := byStart[start]
		if !ok {
			b = &bucket{start: start}
			byStart[start] = b
		}
		b.count++
		if isErrorLevel(e.Level) {
			b.errors++
		}
	}

	buckets := make([]bucket, 0, len(byStart))
	for _, b := range byStart {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].start.Before(buckets[j].start)
	})
	return buckets
}

func detectBucketAnomalies(entries []client.LogEntry, options DetectorOptions) []Anomaly {
	buckets := bucketize(entries, options.BucketSize)
	var anomalies []Anomaly

	for _, b := range buckets {
		rate := float64(b.errors) / float64(b.count)
		if rate >= options.ErrorRateThreshold && b.errors > 0 {
			severity := SeverityMedium
			if rate >= 0.9 {
				severity = SeverityCritical
			} else if rate >= 0.75 {
				severity = SeverityHigh
			}
			anomalies = append(anomalies, Anomaly{
				Type:          AnomalyErrorRate,
				Severity:      severity,
				Description:   fmt.Sprintf("error rate %.0f%% in bucket starting %s", rate*100, b.start.Format(time.RFC3339)),
				Timestamp:     b.start,
				Metric:        "error_rate",
				ActualValue:   rate,
				ExpectedValue: options.ErrorRateThreshold,
				Deviation:     rate - options.ErrorRateThreshold,
			})
		}
	}

	// volume spikes need a baseline, skip short windows
	if len(buckets) >= 4 {
		mean, stddev := volumeStats(buckets)
		if stddev > 0 {
			for _, b := range buckets {
				z := (float64(b.count) - mean) / stddev
				if z >= options.SpikeFactor {
					severity := SeverityMedium
					if z >= options.SpikeFactor*2 {
						severity = SeverityHigh
					}
					anomalies = append(anomalies, Anomaly{
						Type:          AnomalyVolumeSpike,
						Severity:      severity,
						Description:   fmt.Sprintf("volume %d is %.1f standard deviations above the mean %.1f", b.count, z, mean),
						Timestamp:     b.start,
						Metric:        "bucket_volume",
						ActualValue:   float64(b.count),
						ExpectedValue: mean,
						Deviation:     z,
					})
				}
			}
		}
	}

	return anomalies
}

func volumeStats(buckets []bucket) (mean, stddev float64) {
	for _, b := range buckets {
		mean += float64(b.count)
	}
	mean /= float64(len(buckets))

	var variance float64
	for _, b := range buckets {
		d := float64(b.count) - mean
		variance += d * d
	}
	variance /= float64(len(buckets))
	return mean, math.Sqrt(variance)
}
