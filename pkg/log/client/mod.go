package client

import (
	"context"
	"time"

	"github.com/bascanada/logai-mcp/pkg/ty"
)

// LogEntry is a single log record normalized from any backend.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	Fields    ty.MI     `json:"fields"`
	ContextID string    `json:"context_id"`
}

// Field provides case-insensitive field access for templates and filters.
// Usage: {{.Field "level"}} or {{.Field "thread"}}
func (e LogEntry) Field(key string) interface{} {
	switch key {
	case "level", "Level":
		return e.Level
	case "message", "Message":
		return e.Message
	case "timestamp", "Timestamp":
		return e.Timestamp
	}
	if val, ok := e.Fields[key]; ok {
		return val
	}
	if len(key) > 0 && key[0] >= 'a' && key[0] <= 'z' {
		capKey := string(key[0]-32) + key[1:]
		if val, ok := e.Fields[capKey]; ok {
			return val
		}
	}
	return ""
}

// LogSearchResult is the handle on a started search, may be used to get more
// log or keep updated in follow mode.
type LogSearchResult interface {
	GetSearch() *LogSearch
	GetEntries(ctx context.Context) ([]LogEntry, chan []LogEntry, error)
	GetFields(ctx context.Context) (ty.UniSet[string], chan ty.UniSet[string], error)
	GetPaginationInfo() *PaginationInfo
}

// PaginationInfo describes how to fetch the next page of a search.
type PaginationInfo struct {
	HasMore       bool
	NextPageToken string
}

// LogBackend starts log searches against one configured log source.
type LogBackend interface {
	Get(ctx context.Context, search *LogSearch) (LogSearchResult, error)
}
