package client

import (
	"context"

	"github.com/bascanada/logai-mcp/pkg/ty"
)

// BackendAdapter flattens the streaming/async nature of LogBackend results
// into synchronous slices. The analysis layer works on complete slices, so
// it always goes through this adapter.
type BackendAdapter struct {
	Backend LogBackend
}

// NewBackendAdapter creates a new adapter for the given backend.
func NewBackendAdapter(backend LogBackend) *BackendAdapter {
	return &BackendAdapter{Backend: backend}
}

// Query executes a search and collects all results into a slice, consuming
// the streaming channel until closed when the backend returns one.
func (a *BackendAdapter) Query(ctx context.Context, search LogSearch) ([]LogEntry, error) {
	result, err := a.Backend.Get(ctx, &search)
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

// GetFields executes the search and returns the set of fields with their
// observed values.
func (a *BackendAdapter) GetFields(ctx context.Context, search LogSearch) (map[string][]string, error) {
	result, err := a.Backend.Get(ctx, &search)
	if err != nil {
		return nil, err
	}

	fieldsSet, ch, err := result.GetFields(ctx)
	if err != nil {
		return nil, err
	}

	finalSet := make(ty.UniSet[string])
	for k, v := range fieldsSet {
		for _, item := range v {
			finalSet.Add(k, item)
		}
	}

	if ch != nil {
		for batch := range ch {
			for k, v := range batch {
				for _, item := range v {
					finalSet.Add(k, item)
				}
			}
		}
	}

	return finalSet, nil
}
