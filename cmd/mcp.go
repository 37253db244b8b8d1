package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/bascanada/logai-mcp/pkg/log/client/config"
	"github.com/bascanada/logai-mcp/pkg/log/factory"
	"github.com/bascanada/logai-mcp/pkg/log/impl/docker"
	"github.com/bascanada/logai-mcp/pkg/logai"
	"github.com/bascanada/logai-mcp/pkg/session"
	"github.com/bascanada/logai-mcp/pkg/ty"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

// MCPServerBundle holds the MCP server and its tool handlers, keyed by tool
// name so tests can call them directly.
type MCPServerBundle struct {
	Server       *server.MCPServer
	ToolHandlers map[string]server.ToolHandlerFunc
	Results      *session.Store
}

// BuildMCPServer builds the MCP server with an in-memory result store.
func BuildMCPServer(cfg *config.ContextConfig) (*MCPServerBundle, error) {
	return BuildMCPServerWithStore(cfg, session.NewStore(""))
}

// BuildMCPServerWithStore builds the MCP server over an existing store.
func BuildMCPServerWithStore(cfg *config.ContextConfig, results *session.Store) (*MCPServerBundle, error) {
	backendFactory, err := factory.GetLogBackendFactory(cfg.Clients)
	if err != nil {
		return nil, err
	}
	searchFactory, err := factory.GetLogSearchFactory(backendFactory, *cfg)
	if err != nil {
		return nil, err
	}

	t := &mcpTools{
		cfg:     cfg,
		factory: searchFactory,
		results: results,
	}

	s := server.NewMCPServer(
		"logai-mcp",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	bundle := &MCPServerBundle{
		Server:       s,
		ToolHandlers: map[string]server.ToolHandlerFunc{},
		Results:      results,
	}

	register := func(tool mcp.Tool, handler server.ToolHandlerFunc) {
		s.AddTool(tool, handler)
		bundle.ToolHandlers[tool.Name] = handler
	}

	register(mcp.NewTool("list_contexts",
		mcp.WithDescription("List the configured log contexts with their client type and description."),
	), t.listContexts)

	register(mcp.NewTool("query_logs",
		mcp.WithDescription("Query log entries from a configured context."),
		mcp.WithString("context", mcp.Required(), mcp.Description("Context id to query")),
		mcp.WithNumber("size", mcp.Description("Maximum number of entries to return")),
		mcp.WithString("last", mcp.Description("Only entries from the last duration (5m, 1h)")),
		mcp.WithString("from", mcp.Description("Only entries at or after this time (RFC3339)")),
		mcp.WithString("to", mcp.Description("Only entries at or before this time (RFC3339)")),
		mcp.WithObject("fields", mcp.Description("Field filters as key/value pairs")),
		mcp.WithObject("variables", mcp.Description("Runtime variable values for the context")),
		mcp.WithString("save_as", mcp.Description("Store the entries in the session under this key")),
	), t.queryLogs)

	register(mcp.NewTool("get_fields",
		mcp.WithDescription("List the fields available in a context and their observed values."),
		mcp.WithString("context", mcp.Required(), mcp.Description("Context id to inspect")),
		mcp.WithString("last", mcp.Description("Only entries from the last duration (5m, 1h)")),
		mcp.WithObject("variables", mcp.Description("Runtime variable values for the context")),
	), t.getFields)

	register(mcp.NewTool("list_containers",
		mcp.WithDescription("List Docker containers with id, name, image and status."),
		mcp.WithString("host", mcp.Description("Docker host (unix socket, tcp or ssh url), empty for local")),
		mcp.WithBoolean("all", mcp.Description("Include stopped containers")),
		mcp.WithString("project", mcp.Description("Limit to a docker compose project")),
		mcp.WithString("save_as", mcp.Description("Store the container list in the session under this key")),
	), t.listContainers)

	register(mcp.NewTool("get_container_logs",
		mcp.WithDescription("Fetch logs from one Docker container."),
		mcp.WithString("container", mcp.Required(), mcp.Description("Container id or name")),
		mcp.WithString("host", mcp.Description("Docker host, empty for local")),
		mcp.WithNumber("tail", mcp.Description("Number of lines from the end of the logs")),
		mcp.WithString("since", mcp.Description("Only logs from the last duration (5m, 1h)")),
		mcp.WithString("save_as", mcp.Description("Store the entries in the session under this key")),
	), t.getContainerLogs)

	register(mcp.NewTool("parse_templates",
		mcp.WithDescription("Mine message templates from logs. Reads a context or a stored result."),
		mcp.WithString("context", mcp.Description("Context id to query")),
		mcp.WithString("from", mcp.Description("Session key of stored log entries to reuse instead of querying")),
		mcp.WithString("last", mcp.Description("Only entries from the last duration when querying a context")),
		mcp.WithNumber("size", mcp.Description("Maximum entries to analyze when querying a context")),
		mcp.WithNumber("depth", mcp.Description("Prefix tree depth of the miner")),
		mcp.WithNumber("similarity", mcp.Description("Similarity threshold between 0 and 1")),
		mcp.WithNumber("max_children", mcp.Description("Maximum children per tree node")),
		mcp.WithString("save_as", mcp.Description("Store the templates in the session under this key")),
	), t.parseTemplates)

	register(mcp.NewTool("detect_anomalies",
		mcp.WithDescription("Detect rare templates, error-rate and volume anomalies in logs."),
		mcp.WithString("context", mcp.Description("Context id to query")),
		mcp.WithString("from", mcp.Description("Session key of stored log entries to reuse instead of querying")),
		mcp.WithString("last", mcp.Description("Only entries from the last duration when querying a context")),
		mcp.WithNumber("size", mcp.Description("Maximum entries to analyze when querying a context")),
		mcp.WithString("bucket", mcp.Description("Time bucket size for rate anomalies (1m, 5m)")),
		mcp.WithNumber("threshold", mcp.Description("Error rate threshold between 0 and 1")),
		mcp.WithNumber("baseline", mcp.Description("Volume spike factor in standard deviations")),
		mcp.WithString("save_as", mcp.Description("Store the anomalies in the session under this key")),
	), t.detectAnomalies)

	register(mcp.NewTool("cluster_logs",
		mcp.WithDescription("Group log entries into clusters by mined template."),
		mcp.WithString("context", mcp.Description("Context id to query")),
		mcp.WithString("from", mcp.Description("Session key of stored log entries to reuse instead of querying")),
		mcp.WithString("last", mcp.Description("Only entries from the last duration when querying a context")),
		mcp.WithNumber("size", mcp.Description("Maximum entries to analyze when querying a context")),
		mcp.WithNumber("samples", mcp.Description("Example lines kept per cluster")),
		mcp.WithString("save_as", mcp.Description("Store the clusters in the session under this key")),
	), t.clusterLogs)

	register(mcp.NewTool("log_stats",
		mcp.WithDescription("Compute volume, level and template statistics over logs."),
		mcp.WithString("context", mcp.Description("Context id to query")),
		mcp.WithString("from", mcp.Description("Session key of stored log entries to reuse instead of querying")),
		mcp.WithString("last", mcp.Description("Only entries from the last duration when querying a context")),
		mcp.WithNumber("size", mcp.Description("Maximum entries to analyze when querying a context")),
		mcp.WithString("bucket", mcp.Description("Time bucket size for the volume series (1m, 5m)")),
		mcp.WithString("field", mcp.Description("Also count entries by the values of this field")),
		mcp.WithString("save_as", mcp.Description("Store the report in the session under this key")),
	), t.logStats)

	register(mcp.NewTool("list_results",
		mcp.WithDescription("List the results stored in the session scratch pad."),
	), t.listResults)

	register(mcp.NewTool("get_result",
		mcp.WithDescription("Get a stored result by key."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Session key of the result")),
	), t.getResult)

	register(mcp.NewTool("drop_result",
		mcp.WithDescription("Drop a stored result by key."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Session key of the result")),
	), t.dropResult)

	return bundle, nil
}

type mcpTools struct {
	cfg     *config.ContextConfig
	factory factory.SearchFactory
	results *session.Store
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to serialize result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func stringMapArg(request mcp.CallToolRequest, key string) map[string]string {
	out := map[string]string{}
	raw, ok := request.GetArguments()[key]
	if !ok {
		return out
	}
	if m, ok := raw.(map[string]interface{}); ok {
		for k, v := range m {
			if s, ok := v.(string); ok {
				out[k] = s
			} else {
				out[k] = fmt.Sprintf("%v", v)
			}
		}
	}
	return out
}

func (t *mcpTools) searchFromArgs(request mcp.CallToolRequest) client.LogSearch {
	search := client.LogSearch{
		Fields:          ty.MS{},
		FieldsCondition: ty.MS{},
		Options:         ty.MI{},
	}

	if size := request.GetInt("size", 0); size > 0 {
		search.Size.S(size)
	}
	if last := request.GetString("last", ""); last != "" {
		search.Range.Last.S(last)
	}
	if from := request.GetString("from", ""); from != "" {
		normalized, _ := ty.NormalizeTimeValue(from)
		search.Range.Gte.S(normalized)
	}
	if to := request.GetString("to", ""); to != "" {
		normalized, _ := ty.NormalizeTimeValue(to)
		search.Range.Lte.S(normalized)
	}
	for k, v := range stringMapArg(request, "fields") {
		search.Fields[k] = v
	}

	return search
}

func (t *mcpTools) queryContext(ctx context.Context, contextID string, search client.LogSearch, runtimeVars map[string]string) ([]client.LogEntry, error) {
	if _, ok := t.cfg.Contexts[contextID]; !ok {
		return nil, contextNotFoundError(contextID, t.cfg.ContextIds())
	}

	result, err := t.factory.GetSearchResult(ctx, contextID, nil, search, runtimeVars)
	if err != nil {
		return nil, err
	}

	entries, ch, err := result.GetEntries(ctx)
	if err != nil {
		return nil, err
	}
	if ch != nil {
		for batch := range ch {
			entries = append(entries, batch...)
		}
	}
	return entries, nil
}

// entriesForAnalysis reads log entries from a stored session result when
// "from" is given, otherwise it queries the requested context.
func (t *mcpTools) entriesForAnalysis(ctx context.Context, request mcp.CallToolRequest) ([]client.LogEntry, error) {
	if key := request.GetString("from", ""); key != "" {
		entry, ok := t.results.Get(key)
		if !ok {
			return nil, fmt.Errorf("no result stored under key '%s'", key)
		}
		if entry.Kind != "logs" {
			return nil, fmt.Errorf("result '%s' holds %s, not log entries", key, entry.Kind)
		}
		var entries []client.LogEntry
		if err := json.Unmarshal(entry.Data, &entries); err != nil {
			return nil, fmt.Errorf("failed to decode stored entries: %w", err)
		}
		return entries, nil
	}

	contextID := request.GetString("context", "")
	if contextID == "" {
		return nil, fmt.Errorf("either 'context' or 'from' is required")
	}

	return t.queryContext(ctx, contextID, t.searchFromArgs(request), stringMapArg(request, "variables"))
}

func (t *mcpTools) save(request mcp.CallToolRequest, kind, tool string, rows int, value interface{}) string {
	key := request.GetString("save_as", "")
	if key == "" {
		return ""
	}
	if _, err := t.results.Save(key, kind, tool, rows, value); err != nil {
		return ""
	}
	t.results.Persist()
	return key
}

func (t *mcpTools) listContexts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type contextInfo struct {
		Id          string                               `json:"id"`
		Client      string                               `json:"client"`
		ClientType  string                               `json:"clientType"`
		Description string                               `json:"description,omitempty"`
		Variables   map[string]client.VariableDefinition `json:"variables,omitempty"`
	}

	ids := t.cfg.ContextIds()
	sort.Strings(ids)

	contexts := make([]contextInfo, 0, len(ids))
	for _, id := range ids {
		sc := t.cfg.Contexts[id]
		contexts = append(contexts, contextInfo{
			Id:          id,
			Client:      sc.Client,
			ClientType:  t.cfg.Clients[sc.Client].Type,
			Description: sc.Description,
			Variables:   sc.Search.Variables,
		})
	}

	return jsonResult(map[string]interface{}{"contexts": contexts})
}

func (t *mcpTools) queryLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contextID, err := request.RequireString("context")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	entries, err := t.queryContext(ctx, contextID, t.searchFromArgs(request), stringMapArg(request, "variables"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"logs":    entries,
		"count":   len(entries),
		"savedAs": t.save(request, "logs", "query_logs", len(entries), entries),
	})
}

func (t *mcpTools) getFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contextID, err := request.RequireString("context")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, ok := t.cfg.Contexts[contextID]; !ok {
		return mcp.NewToolResultError(contextNotFoundError(contextID, t.cfg.ContextIds()).Error()), nil
	}

	fields, err := t.factory.GetFieldValues(ctx, contextID, nil, t.searchFromArgs(request), nil, stringMapArg(request, "variables"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{"fields": fields})
}

func (t *mcpTools) listContainers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	backend, err := docker.GetLogBackend(request.GetString("host", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	containers, err := backend.ListContainers(ctx, request.GetBool("all", false), request.GetString("project", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"containers": containers,
		"count":      len(containers),
		"savedAs":    t.save(request, "containers", "list_containers", len(containers), containers),
	})
}

func (t *mcpTools) getContainerLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	containerID, err := request.RequireString("container")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	backend, err := docker.GetLogBackend(request.GetString("host", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	search := client.LogSearch{Options: ty.MI{"container": containerID}}
	if tail := request.GetInt("tail", 0); tail > 0 {
		search.Size.S(tail)
	}
	if since := request.GetString("since", ""); since != "" {
		search.Range.Last.S(since)
	}

	result, err := backend.Get(ctx, &search)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	entries, _, err := result.GetEntries(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"logs":    entries,
		"count":   len(entries),
		"savedAs": t.save(request, "logs", "get_container_logs", len(entries), entries),
	})
}

func (t *mcpTools) minerOptionsFromArgs(request mcp.CallToolRequest) logai.MinerOptions {
	return logai.MinerOptions{
		Depth:               request.GetInt("depth", 0),
		SimilarityThreshold: request.GetFloat("similarity", 0),
		MaxChildren:         request.GetInt("max_children", 0),
	}
}

func (t *mcpTools) parseTemplates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := t.entriesForAnalysis(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	templates := logai.Mine(entries, t.minerOptionsFromArgs(request))

	return jsonResult(map[string]interface{}{
		"templates": templates,
		"count":     len(templates),
		"savedAs":   t.save(request, "templates", "parse_templates", len(templates), templates),
	})
}

func (t *mcpTools) detectAnomalies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bucket, err := durationArg(request, "bucket")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	entries, err := t.entriesForAnalysis(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	anomalies := logai.Detect(entries, logai.DetectorOptions{
		BucketSize:         bucket,
		ErrorRateThreshold: request.GetFloat("threshold", 0),
		SpikeFactor:        request.GetFloat("baseline", 0),
		Miner:              t.minerOptionsFromArgs(request),
	})

	return jsonResult(map[string]interface{}{
		"anomalies": anomalies,
		"count":     len(anomalies),
		"savedAs":   t.save(request, "anomalies", "detect_anomalies", len(anomalies), anomalies),
	})
}

func (t *mcpTools) clusterLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := t.entriesForAnalysis(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	clusters := logai.ClusterEntries(entries, logai.ClusterOptions{
		MaxExamples: request.GetInt("samples", 0),
		Miner:       t.minerOptionsFromArgs(request),
	})

	return jsonResult(map[string]interface{}{
		"clusters": clusters,
		"count":    len(clusters),
		"savedAs":  t.save(request, "clusters", "cluster_logs", len(clusters), clusters),
	})
}

func (t *mcpTools) logStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bucket, err := durationArg(request, "bucket")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	entries, err := t.entriesForAnalysis(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	stats := logai.Stats(entries, logai.StatsOptions{
		BucketSize: bucket,
		Miner:      t.minerOptionsFromArgs(request),
	})

	report := map[string]interface{}{
		"stats": stats,
	}
	if field := request.GetString("field", ""); field != "" {
		byField := map[string]int{}
		for _, entry := range entries {
			if v := entry.Fields.GetString(field); v != "" {
				byField[v]++
			}
		}
		report["byField"] = byField
	}
	report["savedAs"] = t.save(request, "stats", "log_stats", stats.Total, stats)

	return jsonResult(report)
}

func (t *mcpTools) listResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]interface{}{"results": t.results.List()})
}

func (t *mcpTools) getResult(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := request.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	entry, ok := t.results.Get(key)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no result stored under key '%s'", key)), nil
	}
	return jsonResult(entry)
}

func (t *mcpTools) dropResult(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := request.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !t.results.Drop(key) {
		return mcp.NewToolResultError(fmt.Sprintf("no result stored under key '%s'", key)), nil
	}
	t.results.Persist()
	return mcp.NewToolResultText(fmt.Sprintf("dropped '%s'", key)), nil
}

func durationArg(request mcp.CallToolRequest, key string) (time.Duration, error) {
	value := request.GetString(key, "")
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %s", key, value)
	}
	return d, nil
}

var mcpSSEAddr string

var mcpCmd = &cobra.Command{
	Use:    "mcp",
	Short:  "Start the MCP server",
	Long:   `Starts an MCP server exposing log querying and analysis as tools, over stdio by default or SSE with --sse.`,
	PreRun: onCommandStart,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadContextConfig(configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}

		results := session.NewStore(sessionStorePath())
		if err := results.Restore(); err != nil {
			fmt.Fprintln(os.Stderr, "warning: failed to restore session:", err)
		}

		bundle, err := BuildMCPServerWithStore(cfg, results)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}

		if mcpSSEAddr != "" {
			sseServer := server.NewSSEServer(bundle.Server)
			if err := sseServer.Start(mcpSSEAddr); err != nil {
				fmt.Fprintln(os.Stderr, "server error:", err)
				os.Exit(1)
			}
			return
		}

		if err := server.ServeStdio(bundle.Server); err != nil {
			fmt.Fprintln(os.Stderr, "server error:", err)
		}

		if err := results.Persist(); err != nil {
			fmt.Fprintln(os.Stderr, "warning: failed to persist session:", err)
		}
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpSSEAddr, "sse", "", "Serve over SSE on this address (:8090) instead of stdio")
}
