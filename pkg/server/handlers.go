package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/bascanada/logai-mcp/pkg/logai"
	"github.com/bascanada/logai-mcp/pkg/session"
)

// QueryRequest is the base request structure for query and analyze endpoints.
type QueryRequest struct {
	ContextID string            `json:"contextId"`
	Inherits  []string          `json:"inherits,omitempty"`
	Search    client.LogSearch  `json:"search"`
	Variables map[string]string `json:"variables,omitempty"`
}

// AnalyzeRequest extends QueryRequest with analysis tuning and an optional
// scratch-pad key to store the outcome under.
type AnalyzeRequest struct {
	QueryRequest
	SaveAs string `json:"saveAs,omitempty"`

	Depth               int     `json:"depth,omitempty"`
	SimilarityThreshold float64 `json:"similarityThreshold,omitempty"`
	MaxChildren         int     `json:"maxChildren,omitempty"`

	RareRatio          float64 `json:"rareRatio,omitempty"`
	NewTemplateWindow  string  `json:"newTemplateWindow,omitempty"`
	BucketSize         string  `json:"bucketSize,omitempty"`
	ErrorRateThreshold float64 `json:"errorRateThreshold,omitempty"`
	SpikeFactor        float64 `json:"spikeFactor,omitempty"`

	MaxExamples  int `json:"maxExamples,omitempty"`
	TopTemplates int `json:"topTemplates,omitempty"`
}

// LogsResponse is the body of /query/logs.
type LogsResponse struct {
	Logs []client.LogEntry `json:"logs,omitempty"`
	Meta QueryMetadata     `json:"meta,omitempty"`
}

// FieldsResponse is the body of /query/fields.
type FieldsResponse struct {
	Fields map[string][]string `json:"fields,omitempty"`
	Meta   QueryMetadata       `json:"meta,omitempty"`
}

// ContextsResponse is the body of /contexts.
type ContextsResponse struct {
	Contexts []ContextInfo `json:"contexts"`
}

type ContextInfo struct {
	Id            string   `json:"id"`
	Client        string   `json:"client"`
	Description   string   `json:"description,omitempty"`
	SearchInherit []string `json:"searchInherit,omitempty"`
}

// QueryMetadata describes how a query executed.
type QueryMetadata struct {
	QueryTime   string `json:"queryTime"`
	ResultCount int    `json:"resultCount"`
	ContextUsed string `json:"contextUsed"`
	ClientType  string `json:"clientType"`
}

type TemplatesResponse struct {
	Templates []*logai.Template `json:"templates"`
	SavedAs   string            `json:"savedAs,omitempty"`
	Meta      QueryMetadata     `json:"meta,omitempty"`
}

type AnomaliesResponse struct {
	Anomalies []logai.Anomaly `json:"anomalies"`
	SavedAs   string          `json:"savedAs,omitempty"`
	Meta      QueryMetadata   `json:"meta,omitempty"`
}

type ClustersResponse struct {
	Clusters []logai.Cluster `json:"clusters"`
	SavedAs  string          `json:"savedAs,omitempty"`
	Meta     QueryMetadata   `json:"meta,omitempty"`
}

type StatsResponse struct {
	Stats   logai.StatsReport `json:"stats"`
	SavedAs string            `json:"savedAs,omitempty"`
	Meta    QueryMetadata     `json:"meta,omitempty"`
}

type ResultsResponse struct {
	Results []session.EntryInfo `json:"results"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) openapiHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Only GET method is allowed")
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(s.openapiSpec)
}

func (s *Server) decodeQueryRequest(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Only POST method is allowed")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		s.writeError(w, http.StatusBadRequest, ErrCodeInvalidSearch, "Invalid request body")
		return false
	}
	return true
}

// fetchEntries resolves the context and collects its log entries, writing
// the error response itself when something fails.
func (s *Server) fetchEntries(w http.ResponseWriter, r *http.Request, req *QueryRequest) ([]client.LogEntry, string, bool) {
	if err := s.validateQueryRequest(req); err != nil {
		s.writeError(w, http.StatusBadRequest, ErrCodeValidationError, err.Error())
		return nil, "", false
	}

	searchFactory := s.currentSearchFactory()

	searchResult, err := searchFactory.GetSearchResult(r.Context(), req.ContextID, req.Inherits, req.Search, req.Variables)
	if err != nil {
		s.logger.Error("failed to get search result", "err", err, "contextId", req.ContextID)
		s.writeError(w, http.StatusBadRequest, ErrCodeInvalidSearch, err.Error())
		return nil, "", false
	}

	entries, _, err := searchResult.GetEntries(r.Context())
	if err != nil {
		s.logger.Error("failed to get log entries", "err", err)
		s.writeError(w, http.StatusInternalServerError, ErrCodeBackendError, "Failed to retrieve logs from backend")
		return nil, "", false
	}

	clientType := ""
	if sc, err := searchFactory.GetSearchContext(r.Context(), req.ContextID, req.Inherits, req.Search, req.Variables); err == nil {
		clientType = s.currentConfig().Clients[sc.Client].Type
	}

	return entries, clientType, true
}

func (s *Server) queryLogsHandler(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !s.decodeQueryRequest(w, r, &req) {
		return
	}

	startTime := time.Now()

	entries, clientType, ok := s.fetchEntries(w, r, &req)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, LogsResponse{
		Logs: entries,
		Meta: QueryMetadata{
			QueryTime:   time.Since(startTime).String(),
			ResultCount: len(entries),
			ContextUsed: req.ContextID,
			ClientType:  clientType,
		},
	})
}

func (s *Server) queryFieldsHandler(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !s.decodeQueryRequest(w, r, &req) {
		return
	}

	if err := s.validateQueryRequest(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, ErrCodeValidationError, err.Error())
		return
	}

	startTime := time.Now()
	searchFactory := s.currentSearchFactory()

	fields, err := searchFactory.GetFieldValues(r.Context(), req.ContextID, req.Inherits, req.Search, nil, req.Variables)
	if err != nil {
		s.logger.Error("failed to get fields", "err", err, "contextId", req.ContextID)
		s.writeError(w, http.StatusInternalServerError, ErrCodeBackendError, err.Error())
		return
	}

	clientType := ""
	if sc, err := searchFactory.GetSearchContext(r.Context(), req.ContextID, req.Inherits, req.Search, req.Variables); err == nil {
		clientType = s.currentConfig().Clients[sc.Client].Type
	}

	s.writeJSON(w, http.StatusOK, FieldsResponse{
		Fields: fields,
		Meta: QueryMetadata{
			QueryTime:   time.Since(startTime).String(),
			ResultCount: len(fields),
			ContextUsed: req.ContextID,
			ClientType:  clientType,
		},
	})
}

func (s *Server) contextsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Only GET method is allowed")
		return
	}

	cfg := s.currentConfig()

	path := strings.TrimPrefix(r.URL.Path, "/contexts")
	path = strings.Trim(path, "/")

	if path == "" {
		var contexts []ContextInfo
		for id, sc := range cfg.Contexts {
			contexts = append(contexts, ContextInfo{
				Id:            id,
				Client:        sc.Client,
				Description:   sc.Description,
				SearchInherit: sc.SearchInherit,
			})
		}
		s.writeJSON(w, http.StatusOK, ContextsResponse{Contexts: contexts})
		return
	}

	sc, ok := cfg.Contexts[path]
	if !ok {
		s.writeError(w, http.StatusNotFound, ErrCodeContextNotFound, "Context not found")
		return
	}

	s.writeJSON(w, http.StatusOK, ContextInfo{
		Id:            path,
		Client:        sc.Client,
		Description:   sc.Description,
		SearchInherit: sc.SearchInherit,
	})
}

func (req *AnalyzeRequest) minerOptions() logai.MinerOptions {
	return logai.MinerOptions{
		Depth:               req.Depth,
		SimilarityThreshold: req.SimilarityThreshold,
		MaxChildren:         req.MaxChildren,
	}
}

func parseOptionalDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %s", name, value)
	}
	return d, nil
}

// saveResult stores an analysis outcome in the scratch pad when requested.
func (s *Server) saveResult(key, kind, tool string, rows int, value interface{}) string {
	if key == "" {
		return ""
	}
	if _, err := s.results.Save(key, kind, tool, rows, value); err != nil {
		s.logger.Warn("failed to save result", "key", key, "err", err)
		return ""
	}
	if err := s.results.Persist(); err != nil {
		s.logger.Warn("failed to persist results", "err", err)
	}
	return key
}

func (s *Server) analyzeTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !s.decodeQueryRequest(w, r, &req) {
		return
	}

	startTime := time.Now()

	entries, clientType, ok := s.fetchEntries(w, r, &req.QueryRequest)
	if !ok {
		return
	}

	templates := logai.Mine(entries, req.minerOptions())

	s.writeJSON(w, http.StatusOK, TemplatesResponse{
		Templates: templates,
		SavedAs:   s.saveResult(req.SaveAs, "templates", "analyze/templates", len(templates), templates),
		Meta: QueryMetadata{
			QueryTime:   time.Since(startTime).String(),
			ResultCount: len(templates),
			ContextUsed: req.ContextID,
			ClientType:  clientType,
		},
	})
}

func (s *Server) analyzeAnomaliesHandler(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !s.decodeQueryRequest(w, r, &req) {
		return
	}

	window, err := parseOptionalDuration("newTemplateWindow", req.NewTemplateWindow)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, ErrCodeValidationError, err.Error())
		return
	}
	bucketSize, err := parseOptionalDuration("bucketSize", req.BucketSize)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, ErrCodeValidationError, err.Error())
		return
	}

	startTime := time.Now()

	entries, clientType, ok := s.fetchEntries(w, r, &req.QueryRequest)
	if !ok {
		return
	}

	anomalies := logai.Detect(entries, logai.DetectorOptions{
		RareRatio:          req.RareRatio,
		NewTemplateWindow:  window,
		BucketSize:         bucketSize,
		ErrorRateThreshold: req.ErrorRateThreshold,
		SpikeFactor:        req.SpikeFactor,
		Miner:              req.minerOptions(),
	})

	s.writeJSON(w, http.StatusOK, AnomaliesResponse{
		Anomalies: anomalies,
		SavedAs:   s.saveResult(req.SaveAs, "anomalies", "analyze/anomalies", len(anomalies), anomalies),
		Meta: QueryMetadata{
			QueryTime:   time.Since(startTime).String(),
			ResultCount: len(anomalies),
			ContextUsed: req.ContextID,
			ClientType:  clientType,
		},
	})
}

func (s *Server) analyzeClustersHandler(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !s.decodeQueryRequest(w, r, &req) {
		return
	}

	startTime := time.Now()

	entries, clientType, ok := s.fetchEntries(w, r, &req.QueryRequest)
	if !ok {
		return
	}

	clusters := logai.ClusterEntries(entries, logai.ClusterOptions{
		MaxExamples: req.MaxExamples,
		Miner:       req.minerOptions(),
	})

	s.writeJSON(w, http.StatusOK, ClustersResponse{
		Clusters: clusters,
		SavedAs:  s.saveResult(req.SaveAs, "clusters", "analyze/clusters", len(clusters), clusters),
		Meta: QueryMetadata{
			QueryTime:   time.Since(startTime).String(),
			ResultCount: len(clusters),
			ContextUsed: req.ContextID,
			ClientType:  clientType,
		},
	})
}

func (s *Server) analyzeStatsHandler(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !s.decodeQueryRequest(w, r, &req) {
		return
	}

	bucketSize, err := parseOptionalDuration("bucketSize", req.BucketSize)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, ErrCodeValidationError, err.Error())
		return
	}

	startTime := time.Now()

	entries, clientType, ok := s.fetchEntries(w, r, &req.QueryRequest)
	if !ok {
		return
	}

	stats := logai.Stats(entries, logai.StatsOptions{
		BucketSize:   bucketSize,
		TopTemplates: req.TopTemplates,
		Miner:        req.minerOptions(),
	})

	s.writeJSON(w, http.StatusOK, StatsResponse{
		Stats:   stats,
		SavedAs: s.saveResult(req.SaveAs, "stats", "analyze/stats", stats.Total, stats),
		Meta: QueryMetadata{
			QueryTime:   time.Since(startTime).String(),
			ResultCount: stats.Total,
			ContextUsed: req.ContextID,
			ClientType:  clientType,
		},
	})
}

func (s *Server) resultsHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/results")
	path = strings.Trim(path, "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		s.writeJSON(w, http.StatusOK, ResultsResponse{Results: s.results.List()})

	case path != "" && r.Method == http.MethodGet:
		entry, ok := s.results.Get(path)
		if !ok {
			s.writeError(w, http.StatusNotFound, ErrCodeResultNotFound, fmt.Sprintf("No result stored under key '%s'", path))
			return
		}
		s.writeJSON(w, http.StatusOK, entry)

	case path != "" && r.Method == http.MethodDelete:
		if !s.results.Drop(path) {
			s.writeError(w, http.StatusNotFound, ErrCodeResultNotFound, fmt.Sprintf("No result stored under key '%s'", path))
			return
		}
		if err := s.results.Persist(); err != nil {
			s.logger.Warn("failed to persist results", "err", err)
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"dropped": path})

	default:
		s.writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Only GET and DELETE methods are allowed")
	}
}
