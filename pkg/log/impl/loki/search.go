package loki

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/bascanada/logai-mcp/pkg/ty"
)

type queryRangeResponse struct {
	Status string         `json:"status"`
	Data   queryRangeData `json:"data"`
}

type queryRangeData struct {
	ResultType string       `json:"resultType"`
	Result     []lokiStream `json:"result"`
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	// each value is a [unix nanoseconds, line] pair
	Values [][]string `json:"values"`
}

type labelsResponse struct {
	Status string   `json:"status"`
	Data   []string `json:"data"`
}

type LokiLogSearchResult struct {
	client   *LokiLogSearchClient
	search   *client.LogSearch
	response queryRangeResponse
}

func (r *LokiLogSearchResult) GetSearch() *client.LogSearch {
	return r.search
}

func (r *LokiLogSearchResult) GetEntries(ctx context.Context) ([]client.LogEntry, chan []client.LogEntry, error) {
	var entries []client.LogEntry

	for _, stream := range r.response.Data.Result {
		for _, value := range stream.Values {
			if len(value) != 2 {
				continue
			}
			entry := client.LogEntry{
				Message: value[1],
				Fields:  make(ty.MI, len(stream.Stream)),
			}
			if ns, err := strconv.ParseInt(value[0], 10, 64); err == nil {
				entry.Timestamp = time.Unix(0, ns)
			}
			for k, v := range stream.Stream {
				entry.Fields[k] = v
				if k == "level" || k == "severity" {
					entry.Level = v
				}
			}
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	if r.search.Size.Set && r.search.Size.Value > 0 && len(entries) > r.search.Size.Value {
		entries = entries[:r.search.Size.Value]
	}

	return entries, nil, nil
}

// GetFields lists label names and their values through the labels API.
func (r *LokiLogSearchResult) GetFields(ctx context.Context) (ty.UniSet[string], chan ty.UniSet[string], error) {
	var labels labelsResponse
	if err := r.client.client.Get(labelsPath, ty.MS{}, &labels, r.client.auth); err != nil {
		return nil, nil, err
	}

	fields := make(ty.UniSet[string])
	for _, label := range labels.Data {
		var values labelsResponse
		if err := r.client.client.Get(fmt.Sprintf(labelValuesPath, label), ty.MS{}, &values, r.client.auth); err != nil {
			return nil, nil, err
		}
		for _, v := range values.Data {
			fields.Add(label, v)
		}
	}

	return fields, nil, nil
}

func (r *LokiLogSearchResult) GetPaginationInfo() *client.PaginationInfo {
	return nil
}
