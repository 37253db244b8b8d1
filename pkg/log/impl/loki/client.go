// Package loki queries a Grafana Loki instance over its HTTP range API.
package loki

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	httpPkg "github.com/bascanada/logai-mcp/pkg/http"
	"github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/bascanada/logai-mcp/pkg/ty"
)

const (
	queryRangePath  = "/loki/api/v1/query_range"
	labelsPath      = "/loki/api/v1/labels"
	labelValuesPath = "/loki/api/v1/label/%s/values"

	defaultLimit = 1000
)

// OptionsQuery passes a raw LogQL query, overriding the generated selector.
const OptionsQuery = "query"

type LokiAuthOptions struct {
	Header ty.MS `json:"header" yaml:"header"`
}

type LokiLogSearchClientOptions struct {
	Url string `json:"url" yaml:"url"`

	Auth     LokiAuthOptions `json:"auth" yaml:"auth"`
	Headers  ty.MS           `json:"headers" yaml:"headers"`
	OrgID    string          `json:"orgId" yaml:"orgId"`
	Insecure bool            `json:"insecure" yaml:"insecure"`
}

type LokiLogSearchClient struct {
	client httpPkg.HttpClient
	auth   httpPkg.Auth

	options LokiLogSearchClientOptions
}

// buildQuery renders a LogQL query from the search: label matchers from
// Fields, line filters from the filter tree leaves on the message field.
func buildQuery(search *client.LogSearch) (string, error) {
	if raw := search.Options.GetString(OptionsQuery); raw != "" {
		return raw, nil
	}

	if len(search.Fields) == 0 {
		return "", fmt.Errorf("loki backend requires label matchers in fields or a query option")
	}

	keys := make([]string, 0, len(search.Fields))
	for k := range search.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	matchers := make([]string, 0, len(keys))
	for _, k := range keys {
		op := "="
		if search.FieldsCondition != nil {
			switch search.FieldsCondition[k] {
			case "match", "regex":
				op = "=~"
			case "notEquals":
				op = "!="
			}
		}
		matchers = append(matchers, fmt.Sprintf(`%s%s%q`, k, op, search.Fields[k]))
	}

	query := "{" + strings.Join(matchers, ",") + "}"

	if contains := search.Options.GetString("contains"); contains != "" {
		query += fmt.Sprintf(" |= %q", contains)
	}

	return query, nil
}

func rangeParams(search *client.LogSearch) (ty.MS, error) {
	end := time.Now()
	start := end.Add(-1 * time.Hour)

	if search.Range.Last.Set && search.Range.Last.Value != "" {
		d, err := time.ParseDuration(search.Range.Last.Value)
		if err != nil {
			return nil, err
		}
		start = end.Add(-d)
	} else {
		if search.Range.Gte.Set && search.Range.Gte.Value != "" {
			ts, err := time.Parse(time.RFC3339, search.Range.Gte.Value)
			if err != nil {
				return nil, err
			}
			start = ts
		}
		if search.Range.Lte.Set && search.Range.Lte.Value != "" {
			ts, err := time.Parse(time.RFC3339, search.Range.Lte.Value)
			if err != nil {
				return nil, err
			}
			end = ts
		}
	}

	limit := defaultLimit
	if search.Size.Set && search.Size.Value > 0 {
		limit = search.Size.Value
	}

	return ty.MS{
		"start":     fmt.Sprintf("%d", start.UnixNano()),
		"end":       fmt.Sprintf("%d", end.UnixNano()),
		"limit":     fmt.Sprintf("%d", limit),
		"direction": "backward",
	}, nil
}

func (s LokiLogSearchClient) Get(ctx context.Context, search *client.LogSearch) (client.LogSearchResult, error) {
	query, err := buildQuery(search)
	if err != nil {
		return nil, err
	}

	params, err := rangeParams(search)
	if err != nil {
		return nil, err
	}
	params["query"] = query

	var response queryRangeResponse
	if err := s.client.Get(queryRangePath, params, &response, s.auth); err != nil {
		return nil, err
	}

	if response.Status != "success" {
		return nil, fmt.Errorf("loki query returned status %s", response.Status)
	}

	return &LokiLogSearchResult{client: &s, search: search, response: response}, nil
}

func GetClient(options LokiLogSearchClientOptions) (client.LogBackend, error) {
	if options.Url == "" {
		return nil, fmt.Errorf("loki client url is empty")
	}

	headers := ty.MS{}
	for k, v := range options.Headers {
		headers[k] = v
	}
	for k, v := range options.Auth.Header {
		headers[k] = v
	}
	if options.OrgID != "" {
		headers["X-Scope-OrgID"] = options.OrgID
	}

	var auth httpPkg.Auth
	if len(headers) > 0 {
		auth = httpPkg.HeaderAuth{Headers: headers}
	}

	return LokiLogSearchClient{
		client:  httpPkg.GetClient(options.Url, options.Insecure),
		auth:    auth,
		options: options,
	}, nil
}
