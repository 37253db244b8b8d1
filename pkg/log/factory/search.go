package factory

import (
	"context"

	"github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/bascanada/logai-mcp/pkg/log/client/config"
)

// SearchFactory resolves a search context by id, merges in the request
// overrides and runs the search against the configured backend.
type SearchFactory interface {
	GetSearchResult(ctx context.Context, contextId string, inherits []string, logSearch client.LogSearch, runtimeVars map[string]string) (client.LogSearchResult, error)
	GetSearchContext(ctx context.Context, contextId string, inherits []string, logSearch client.LogSearch, runtimeVars map[string]string) (*config.SearchContext, error)
	// GetFieldValues returns distinct values for the specified fields. If
	// fields is empty, returns values for all fields found in the logs.
	GetFieldValues(ctx context.Context, contextId string, inherits []string, logSearch client.LogSearch, fields []string, runtimeVars map[string]string) (map[string][]string, error)
}

type logSearchFactory struct {
	clientsFactory LogBackendFactory

	config config.ContextConfig
}

func (sf *logSearchFactory) GetSearchContext(ctx context.Context, contextId string, inherits []string, logSearch client.LogSearch, runtimeVars map[string]string) (*config.SearchContext, error) {
	searchContext, err := sf.config.GetSearchContext(contextId, inherits, logSearch, runtimeVars)
	if err != nil {
		return nil, err
	}
	return &searchContext, nil
}

func (sf *logSearchFactory) GetSearchResult(ctx context.Context, contextId string, inherits []string, logSearch client.LogSearch, runtimeVars map[string]string) (client.LogSearchResult, error) {

	searchContext, err := sf.config.GetSearchContext(contextId, inherits, logSearch, runtimeVars)
	if err != nil {
		return nil, err
	}

	logBackend, err := sf.clientsFactory.Get(searchContext.Client)
	if err != nil {
		return nil, err
	}

	sf.mergeClientOptions(&searchContext.Search, searchContext.Client)

	return (*logBackend).Get(ctx, &searchContext.Search)
}

func (sf *logSearchFactory) GetFieldValues(ctx context.Context, contextId string, inherits []string, logSearch client.LogSearch, fields []string, runtimeVars map[string]string) (map[string][]string, error) {
	result, err := sf.GetSearchResult(ctx, contextId, inherits, logSearch, runtimeVars)
	if err != nil {
		return nil, err
	}

	return client.GetFieldValuesFromResult(ctx, result, fields)
}

// mergeClientOptions copies client-level options into the search options so
// backends see client configuration (paths, hosts). Search options win.
func (sf *logSearchFactory) mergeClientOptions(search *client.LogSearch, clientName string) {
	clientConfig, ok := sf.config.Clients[clientName]
	if !ok {
		return
	}

	if search.Options == nil {
		search.Options = make(map[string]interface{})
	}

	for key, value := range clientConfig.Options {
		if _, exists := search.Options[key]; !exists {
			search.Options[key] = value
		}
	}
}

func GetLogSearchFactory(
	f LogBackendFactory,
	c config.ContextConfig,
) (SearchFactory, error) {

	factory := new(logSearchFactory)
	factory.clientsFactory = f
	factory.config = c

	return factory, nil
}
