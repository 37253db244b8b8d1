package logai

import (
	"fmt"
	"testing"
	"time"

	"github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(ts time.Time, level, message string) client.LogEntry {
	return client.LogEntry{Timestamp: ts, Level: level, Message: message}
}

func TestMineMergesVariableTokens(t *testing.T) {
	base := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	entries := []client.LogEntry{
		entry(base, "info", "user 1001 logged in"),
		entry(base.Add(time.Second), "info", "user 1002 logged in"),
		entry(base.Add(2*time.Second), "info", "user 1003 logged in"),
		entry(base.Add(3*time.Second), "error", "connection refused from 10.0.0.1:443"),
	}

	templates := Mine(entries, MinerOptions{})
	require.Len(t, templates, 2)

	assert.Equal(t, "user <*> logged in", templates[0].Pattern)
	assert.Equal(t, 3, templates[0].Count)
	assert.Equal(t, 3, templates[0].Levels["info"])
	assert.Equal(t, base, templates[0].FirstSeen)
	assert.Equal(t, base.Add(2*time.Second), templates[0].LastSeen)

	assert.Equal(t, "connection refused from <*>", templates[1].Pattern)
	assert.Equal(t, 1, templates[1].Levels["error"])
}

func TestMineDifferentLengthsNeverMerge(t *testing.T) {
	entries := []client.LogEntry{
		{Message: "cache miss"},
		{Message: "cache miss for key alpha"},
	}

	templates := Mine(entries, MinerOptions{})
	assert.Len(t, templates, 2)
}

func TestMineSimilarityThreshold(t *testing.T) {
	entries := []client.LogEntry{
		{Message: "disk usage at 81 percent"},
		{Message: "disk usage at 93 percent"},
		{Message: "disk failure on device sda"},
	}

	templates := Mine(entries, MinerOptions{})
	require.Len(t, templates, 2)
	assert.Equal(t, "disk usage at <*> percent", templates[0].Pattern)
}

func TestTemplateIDStable(t *testing.T) {
	a := Mine([]client.LogEntry{{Message: "job 12 done"}}, MinerOptions{})
	b := Mine([]client.LogEntry{{Message: "job 99 done"}}, MinerOptions{})
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].ID, b[0].ID)
	assert.Equal(t, a[0].Pattern, b[0].Pattern)
}

func TestTemplateMatches(t *testing.T) {
	templates := Mine([]client.LogEntry{
		{Message: "user 1 logged in"},
		{Message: "user 2 logged in"},
	}, MinerOptions{})
	require.Len(t, templates, 1)

	assert.True(t, templates[0].Matches("user 77 logged in"))
	assert.False(t, templates[0].Matches("user 77 logged out"))
	assert.False(t, templates[0].Matches("user logged in"))
}

func TestMineMaxChildrenOverflow(t *testing.T) {
	entries := make([]client.LogEntry, 0, 30)
	for i := 0; i < 30; i++ {
		entries = append(entries, client.LogEntry{Message: fmt.Sprintf("evt%c start worker now", 'a'+rune(i%26))})
	}

	templates := Mine(entries, MinerOptions{MaxChildren: 5})
	assert.NotEmpty(t, templates)
	total := 0
	for _, tpl := range templates {
		total += tpl.Count
	}
	assert.Equal(t, 30, total)
}
