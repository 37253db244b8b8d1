package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/bascanada/logai-mcp/pkg/log/client/config"
	"github.com/bascanada/logai-mcp/pkg/ty"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mcpTestConfig(t *testing.T, lines string) *config.ContextConfig {
	t.Helper()

	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))

	return &config.ContextConfig{
		Clients: config.Clients{
			"local": config.Client{Type: "local", Options: ty.MI{}},
		},
		Searches: config.Searches{
			"kv": {
				FieldExtraction: client.FieldExtraction{
					KvRegex: ty.OptWrap(`(\w+)=(\w+)`),
				},
			},
		},
		Contexts: config.Contexts{
			"app": {
				Client:        "local",
				Description:   "application logs",
				SearchInherit: []string{"kv"},
				Search: client.LogSearch{
					Options: ty.MI{"path": path},
				},
			},
		},
	}
}

func callTool(t *testing.T, bundle *MCPServerBundle, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	handler, ok := bundle.ToolHandlers[name]
	require.True(t, ok, "tool %s not registered", name)

	res, err := handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestMCPToolRegistration(t *testing.T) {
	bundle, err := BuildMCPServer(mcpTestConfig(t, "level=info msg=a\n"))
	require.NoError(t, err)

	for _, name := range []string{
		"list_contexts", "query_logs", "get_fields",
		"list_containers", "get_container_logs",
		"parse_templates", "detect_anomalies", "cluster_logs", "log_stats",
		"list_results", "get_result", "drop_result",
	} {
		assert.Contains(t, bundle.ToolHandlers, name)
	}
}

func TestMCPListContexts(t *testing.T) {
	bundle, err := BuildMCPServer(mcpTestConfig(t, "level=info msg=a\n"))
	require.NoError(t, err)

	res := callTool(t, bundle, "list_contexts", nil)
	require.False(t, res.IsError)

	text := resultText(t, res)
	assert.Contains(t, text, "app")
	assert.Contains(t, text, "local")
	assert.Contains(t, text, "application logs")
}

func TestMCPQueryLogs(t *testing.T) {
	bundle, err := BuildMCPServer(mcpTestConfig(t, "level=info msg=started\nlevel=error msg=boom\n"))
	require.NoError(t, err)

	res := callTool(t, bundle, "query_logs", map[string]interface{}{"context": "app"})
	require.False(t, res.IsError, resultText(t, res))

	var payload struct {
		Logs  []client.LogEntry `json:"logs"`
		Count int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &payload))
	require.Len(t, payload.Logs, 2)
	assert.Equal(t, 2, payload.Count)
	assert.Equal(t, "error", payload.Logs[1].Fields.GetString("level"))
}

func TestMCPQueryLogsUnknownContextSuggests(t *testing.T) {
	bundle, err := BuildMCPServer(mcpTestConfig(t, "level=info msg=a\n"))
	require.NoError(t, err)

	res := callTool(t, bundle, "query_logs", map[string]interface{}{"context": "ap"})
	require.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "app")
}

func TestMCPGetFields(t *testing.T) {
	bundle, err := BuildMCPServer(mcpTestConfig(t, "level=info msg=started\nlevel=error msg=boom\n"))
	require.NoError(t, err)

	res := callTool(t, bundle, "get_fields", map[string]interface{}{"context": "app"})
	require.False(t, res.IsError, resultText(t, res))

	var payload struct {
		Fields map[string][]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &payload))
	assert.ElementsMatch(t, []string{"info", "error"}, payload.Fields["level"])
}

func TestMCPAnalysisSessionFlow(t *testing.T) {
	lines := strings.Repeat("request handled in 12 ms\n", 5) +
		"disk almost full\n"
	bundle, err := BuildMCPServer(mcpTestConfig(t, lines))
	require.NoError(t, err)

	// Store the query result, then analyze from the stored key.
	res := callTool(t, bundle, "query_logs", map[string]interface{}{
		"context": "app",
		"save_as": "raw",
	})
	require.False(t, res.IsError, resultText(t, res))
	assert.Contains(t, resultText(t, res), `"savedAs": "raw"`)

	res = callTool(t, bundle, "parse_templates", map[string]interface{}{
		"from":    "raw",
		"save_as": "tpl",
	})
	require.False(t, res.IsError, resultText(t, res))

	var payload struct {
		Templates []struct {
			Pattern string `json:"pattern"`
			Count   int    `json:"count"`
		} `json:"templates"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &payload))
	require.Len(t, payload.Templates, 2)
	assert.Equal(t, 5, payload.Templates[0].Count)

	res = callTool(t, bundle, "list_results", nil)
	text := resultText(t, res)
	assert.Contains(t, text, `"raw"`)
	assert.Contains(t, text, `"tpl"`)

	res = callTool(t, bundle, "get_result", map[string]interface{}{"key": "tpl"})
	require.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "templates")

	res = callTool(t, bundle, "drop_result", map[string]interface{}{"key": "raw"})
	require.False(t, res.IsError)

	res = callTool(t, bundle, "get_result", map[string]interface{}{"key": "raw"})
	assert.True(t, res.IsError)
}

func TestMCPAnalysisRequiresSource(t *testing.T) {
	bundle, err := BuildMCPServer(mcpTestConfig(t, "level=info msg=a\n"))
	require.NoError(t, err)

	res := callTool(t, bundle, "parse_templates", nil)
	require.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "'context' or 'from'")
}

func TestMCPClusterAndStats(t *testing.T) {
	lines := strings.Repeat("cache hit for key alpha\n", 3) +
		strings.Repeat("cache miss for key beta\n", 2)
	bundle, err := BuildMCPServer(mcpTestConfig(t, lines))
	require.NoError(t, err)

	res := callTool(t, bundle, "cluster_logs", map[string]interface{}{
		"context": "app",
		"samples": float64(1),
	})
	require.False(t, res.IsError, resultText(t, res))

	var clusterPayload struct {
		Clusters []struct {
			Size     int      `json:"size"`
			Examples []string `json:"examples"`
		} `json:"clusters"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &clusterPayload))
	require.Len(t, clusterPayload.Clusters, 2)
	assert.Equal(t, 3, clusterPayload.Clusters[0].Size)
	assert.Len(t, clusterPayload.Clusters[0].Examples, 1)

	res = callTool(t, bundle, "log_stats", map[string]interface{}{"context": "app"})
	require.False(t, res.IsError, resultText(t, res))

	var statsPayload struct {
		Stats struct {
			Total int `json:"total"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &statsPayload))
	assert.Equal(t, 5, statsPayload.Stats.Total)
}

func TestMCPDetectAnomaliesBadBucket(t *testing.T) {
	bundle, err := BuildMCPServer(mcpTestConfig(t, "level=info msg=a\n"))
	require.NoError(t, err)

	res := callTool(t, bundle, "detect_anomalies", map[string]interface{}{
		"context": "app",
		"bucket":  "nope",
	})
	require.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "invalid bucket duration")
}
