// Package cloudwatch queries AWS CloudWatch Logs through the Insights API.
package cloudwatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/bascanada/logai-mcp/pkg/ty"
)

// CWClient is the subset of the AWS SDK client used by this backend,
// defined here so tests can mock it.
type CWClient interface {
	StartQuery(ctx context.Context, params *cloudwatchlogs.StartQueryInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.StartQueryOutput, error)
	GetQueryResults(ctx context.Context, params *cloudwatchlogs.GetQueryResultsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetQueryResultsOutput, error)
}

type CloudWatchLogBackend struct {
	client CWClient
}

// sanitizeQueryValue escapes single quotes in user provided values so they
// can be embedded in single-quoted Insights literals.
func sanitizeQueryValue(v string) string {
	return strings.ReplaceAll(v, "'", "\\'")
}

// isSafeFieldName restricts field names to letters, digits, underscore,
// at-sign and dot to keep crafted names out of the query string.
func isSafeFieldName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r == '@' || r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}

func (c *CloudWatchLogBackend) Get(ctx context.Context, search *client.LogSearch) (client.LogSearchResult, error) {
	logGroupName, ok := search.Options.GetStringOk("logGroupName")
	if !ok {
		return nil, errors.New("logGroupName is required in options for CloudWatch Logs")
	}

	var queryParts []string
	queryParts = append(queryParts, "fields @timestamp, @message")

	for key, value := range search.Fields {
		if !isSafeFieldName(key) {
			continue
		}
		sanitizedValue := sanitizeQueryValue(value)
		queryParts = append(queryParts, fmt.Sprintf(" | filter %s = '%s'", key, sanitizedValue))
	}

	queryParts = append(queryParts, " | sort @timestamp desc")
	if search.Size.Set {
		queryParts = append(queryParts, " | limit "+fmt.Sprintf("%d", search.Size.Value))
	}

	queryString := strings.Join(queryParts, "")

	endTime := time.Now()
	startTime := endTime.Add(-1 * time.Hour)

	parseAbs := func(v string) (time.Time, error) {
		if v == "" {
			return time.Time{}, errors.New("empty time string")
		}
		layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.000"}
		var lastErr error
		for _, l := range layouts {
			if ts, err := time.Parse(l, v); err == nil {
				return ts, nil
			} else {
				lastErr = err
			}
		}
		return time.Time{}, lastErr
	}

	if search.Range.Last.Set && search.Range.Last.Value != "" {
		if d, err := time.ParseDuration(search.Range.Last.Value); err == nil {
			startTime = endTime.Add(-d)
		}
	}
	if search.Range.Gte.Set && search.Range.Gte.Value != "" {
		if gte, err := parseAbs(search.Range.Gte.Value); err == nil {
			startTime = gte
		}
	}
	if search.Range.Lte.Set && search.Range.Lte.Value != "" {
		if lte, err := parseAbs(search.Range.Lte.Value); err == nil {
			endTime = lte
		}
	}
	if startTime.After(endTime) {
		startTime = endTime.Add(-1 * time.Hour)
	}

	startQueryOutput, err := c.client.StartQuery(ctx, &cloudwatchlogs.StartQueryInput{
		LogGroupName: aws.String(logGroupName),
		QueryString:  aws.String(queryString),
		StartTime:    aws.Int64(startTime.UnixMilli()),
		EndTime:      aws.Int64(endTime.UnixMilli()),
	})
	if err != nil {
		return nil, err
	}

	if startQueryOutput.QueryId == nil {
		return nil, errors.New("StartQuery did not return a QueryId")
	}

	return &CloudWatchLogSearchResult{client: c.client, queryId: *startQueryOutput.QueryId, search: search}, nil
}

// GetLogBackend creates a CloudWatch Logs backend, honoring the 'region'
// and 'profile' options when present.
func GetLogBackend(options ty.MI) (client.LogBackend, error) {
	var cfgOptions []func(*config.LoadOptions) error

	if region, ok := options.GetStringOk("region"); ok {
		cfgOptions = append(cfgOptions, config.WithRegion(region))
	}

	if profile, ok := options.GetStringOk("profile"); ok {
		cfgOptions = append(cfgOptions, config.WithSharedConfigProfile(profile))
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(), cfgOptions...)
	if err != nil {
		return nil, err
	}

	return &CloudWatchLogBackend{
		client: cloudwatchlogs.NewFromConfig(cfg),
	}, nil
}
