package cloudwatch

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/bascanada/logai-mcp/pkg/ty"
)

// insightsTimestampLayout is the format GetQueryResults uses for @timestamp.
const insightsTimestampLayout = "2006-01-02 15:04:05.000"

type CloudWatchLogSearchResult struct {
	client  CWClient
	queryId string
	search  *client.LogSearch

	entries []client.LogEntry
	fields  ty.UniSet[string]
}

func (r *CloudWatchLogSearchResult) GetSearch() *client.LogSearch {
	return r.search
}

// GetEntries polls until the Insights query finishes and converts the rows.
func (r *CloudWatchLogSearchResult) GetEntries(ctx context.Context) ([]client.LogEntry, chan []client.LogEntry, error) {
	var results *cloudwatchlogs.GetQueryResultsOutput
	for {
		var err error
		results, err = r.client.GetQueryResults(ctx, &cloudwatchlogs.GetQueryResultsInput{
			QueryId: &r.queryId,
		})
		if err != nil {
			return nil, nil, err
		}
		if results.Status == types.QueryStatusComplete {
			break
		}
		if results.Status == types.QueryStatusFailed || results.Status == types.QueryStatusCancelled {
			return nil, nil, errors.New("query ended with status " + string(results.Status))
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}

	r.entries = make([]client.LogEntry, 0, len(results.Results))
	r.fields = make(ty.UniSet[string])
	for _, resultFields := range results.Results {
		entry := client.LogEntry{Fields: make(ty.MI)}
		for _, field := range resultFields {
			if field.Field == nil || field.Value == nil {
				continue
			}
			switch *field.Field {
			case "@timestamp":
				if ts, err := time.Parse(insightsTimestampLayout, *field.Value); err == nil {
					entry.Timestamp = ts
				}
			case "@message":
				entry.Message = *field.Value
			case "@ptr":
			default:
				entry.Fields[*field.Field] = *field.Value
				r.fields.Add(*field.Field, *field.Value)
			}
		}
		r.entries = append(r.entries, entry)
	}

	return r.entries, nil, nil
}

func (r *CloudWatchLogSearchResult) GetFields(ctx context.Context) (ty.UniSet[string], chan ty.UniSet[string], error) {
	if r.fields == nil {
		if _, _, err := r.GetEntries(ctx); err != nil {
			return nil, nil, err
		}
	}
	return r.fields, nil, nil
}

func (r *CloudWatchLogSearchResult) GetPaginationInfo() *client.PaginationInfo {
	return nil
}
