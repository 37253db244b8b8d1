package client

import (
	"context"
	"fmt"

	"github.com/bascanada/logai-mcp/pkg/ty"
)

// GetFieldValuesFromResult collects distinct values for the requested
// fields from a search result. It prefers the backend's own field index and
// falls back to scanning the entries for text based backends. An empty
// fields slice returns every field found.
func GetFieldValuesFromResult(ctx context.Context, result LogSearchResult, fields []string) (map[string][]string, error) {
	set, _, err := result.GetFields(ctx)
	if err != nil || len(set) == 0 {
		entries, _, entriesErr := result.GetEntries(ctx)
		if entriesErr != nil {
			if err != nil {
				return nil, err
			}
			return nil, entriesErr
		}

		set = make(ty.UniSet[string])
		for _, entry := range entries {
			if entry.Level != "" {
				set.Add("level", entry.Level)
			}
			for k, v := range entry.Fields {
				ty.AddField(k, v, &set)
			}
		}
	}

	if len(fields) == 0 {
		return set, nil
	}

	out := make(map[string][]string, len(fields))
	for _, f := range fields {
		values, ok := set[f]
		if !ok {
			return nil, fmt.Errorf("field %s not found in results", f)
		}
		out[f] = values
	}
	return out, nil
}
