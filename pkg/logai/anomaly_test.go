package logai

import (
	"fmt"
	"testing"
	"time"

	"github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anomaliesOfType(anomalies []Anomaly, kind string) []Anomaly {
	var out []Anomaly
	for _, a := range anomalies {
		if a.Type == kind {
			out = append(out, a)
		}
	}
	return out
}

func TestDetectRareTemplate(t *testing.T) {
	base := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	entries := make([]client.LogEntry, 0, 201)
	for i := 0; i < 200; i++ {
		entries = append(entries, entry(base.Add(time.Duration(i)*time.Second), "info", fmt.Sprintf("request %d handled", i)))
	}
	entries = append(entries, entry(base.Add(100*time.Second), "error", "segfault in worker thread"))

	anomalies := Detect(entries, DetectorOptions{NewTemplateWindow: time.Nanosecond})

	rare := anomaliesOfType(anomalies, AnomalyRareTemplate)
	require.Len(t, rare, 1)
	assert.Equal(t, SeverityHigh, rare[0].Severity)
	assert.Equal(t, "segfault in worker thread", rare[0].Example)
	assert.NotEmpty(t, rare[0].TemplateID)
}

func TestDetectNewTemplate(t *testing.T) {
	base := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	entries := []client.LogEntry{
		entry(base, "info", "service ready"),
		entry(base.Add(30*time.Minute), "info", "service ready"),
		entry(base.Add(59*time.Minute), "warn", "certificate expires soon"),
		entry(base.Add(time.Hour), "info", "service ready"),
	}

	anomalies := Detect(entries, DetectorOptions{
		NewTemplateWindow: 5 * time.Minute,
		RareRatio:         0.000001,
	})

	fresh := anomaliesOfType(anomalies, AnomalyNewTemplate)
	require.Len(t, fresh, 1)
	assert.Equal(t, "certificate expires soon", fresh[0].Example)
}

func TestDetectErrorRate(t *testing.T) {
	base := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	var entries []client.LogEntry
	for i := 0; i < 10; i++ {
		entries = append(entries, entry(base.Add(time.Duration(i)*time.Second), "info", "tick"))
	}
	for i := 0; i < 10; i++ {
		entries = append(entries, entry(base.Add(time.Minute).Add(time.Duration(i)*time.Second), "error", "db unreachable"))
	}

	anomalies := Detect(entries, DetectorOptions{NewTemplateWindow: time.Nanosecond, RareRatio: 0.000001})

	rate := anomaliesOfType(anomalies, AnomalyErrorRate)
	require.Len(t, rate, 1)
	assert.Equal(t, SeverityCritical, rate[0].Severity)
	assert.Equal(t, base.Add(time.Minute), rate[0].Timestamp)
	assert.InDelta(t, 1.0, rate[0].ActualValue, 0.001)
}

func TestDetectVolumeSpike(t *testing.T) {
	base := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	var entries []client.LogEntry
	for b := 0; b < 10; b++ {
		count := 10
		if b == 7 {
			count = 100
		}
		for i := 0; i < count; i++ {
			ts := base.Add(time.Duration(b)*time.Minute + time.Duration(i)*time.Millisecond)
			entries = append(entries, entry(ts, "info", "heartbeat ok"))
		}
	}

	anomalies := Detect(entries, DetectorOptions{NewTemplateWindow: time.Nanosecond, RareRatio: 0.000001})

	spikes := anomaliesOfType(anomalies, AnomalyVolumeSpike)
	require.Len(t, spikes, 1)
	assert.Equal(t, base.Add(7*time.Minute), spikes[0].Timestamp)
	assert.Equal(t, float64(100), spikes[0].ActualValue)
}

func TestDetectEmpty(t *testing.T) {
	assert.Empty(t, Detect(nil, DetectorOptions{}))
}
