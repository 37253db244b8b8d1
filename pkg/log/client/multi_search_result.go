package client

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/bascanada/logai-mcp/pkg/ty"
)

// OptionContextID is the internal option carrying the originating context id
// so merged entries can be attributed to their source.
const OptionContextID = "__context_id__"

// MultiLogSearchResult aggregates multiple LogSearchResult objects into a
// single, unified result for multi-context queries.
type MultiLogSearchResult struct {
	// individual LogSearchResult objects from each queried context.
	Results []LogSearchResult
	// errors encountered during the concurrent query execution.
	Errors []error
	// the original LogSearch request that initiated the multi-context query.
	Search *LogSearch

	mutex sync.Mutex
}

var _ LogSearchResult = (*MultiLogSearchResult)(nil)

// NewMultiLogSearchResult creates a new MultiLogSearchResult, rejecting
// search features that cannot be merged across contexts.
func NewMultiLogSearchResult(search *LogSearch) (*MultiLogSearchResult, error) {
	if search.PageToken.Set && search.PageToken.Valid {
		return nil, errors.New("pagination is not supported with multiple contexts; use a single context instead")
	}

	return &MultiLogSearchResult{
		Search:  search,
		Results: []LogSearchResult{},
		Errors:  []error{},
	}, nil
}

// Add appends a search result and an associated error to the aggregator.
// This method is safe for concurrent use.
func (m *MultiLogSearchResult) Add(result LogSearchResult, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
	if result != nil {
		m.Results = append(m.Results, result)
	}
}

// GetSearch returns the original LogSearch request.
func (m *MultiLogSearchResult) GetSearch() *LogSearch {
	return m.Search
}

// GetEntries merges log entries from all successful search results, sorts
// them by timestamp and tags each entry with its ContextID. Follow channels
// of the sub results are merged into a single channel.
func (m *MultiLogSearchResult) GetEntries(ctx context.Context) ([]LogEntry, chan []LogEntry, error) {
	var allEntries []LogEntry
	var mutex sync.Mutex
	var wg sync.WaitGroup
	var subChannels []chan []LogEntry
	var subChannelsResults []LogSearchResult

	for _, result := range m.Results {
		wg.Add(1)
		go func(r LogSearchResult) {
			defer wg.Done()
			entries, ch, err := r.GetEntries(ctx)
			if err != nil {
				m.Add(nil, err)
				return
			}

			contextID := contextIDOf(r)
			for i := range entries {
				entries[i].ContextID = contextID
			}

			mutex.Lock()
			allEntries = append(allEntries, entries...)
			if ch != nil {
				subChannels = append(subChannels, ch)
				subChannelsResults = append(subChannelsResults, r)
			}
			mutex.Unlock()
		}(result)
	}

	wg.Wait()

	sort.SliceStable(allEntries, func(i, j int) bool {
		return allEntries[i].Timestamp.Before(allEntries[j].Timestamp)
	})

	if m.Search.Size.Set && m.Search.Size.Value > 0 && len(allEntries) > m.Search.Size.Value {
		allEntries = allEntries[:m.Search.Size.Value]
	}

	var mergedChannel chan []LogEntry
	if len(subChannels) > 0 {
		mergedChannel = make(chan []LogEntry)

		go func() {
			var wgCh sync.WaitGroup
			for i, ch := range subChannels {
				wgCh.Add(1)
				go func(c chan []LogEntry, r LogSearchResult) {
					defer wgCh.Done()
					contextID := contextIDOf(r)
					for entries := range c {
						for k := range entries {
							entries[k].ContextID = contextID
						}
						mergedChannel <- entries
					}
				}(ch, subChannelsResults[i])
			}
			wgCh.Wait()
			close(mergedChannel)
		}()
	}

	return allEntries, mergedChannel, nil
}

// GetFields is not supported across contexts, merging fields from different
// sources is ambiguous.
func (m *MultiLogSearchResult) GetFields(context.Context) (ty.UniSet[string], chan ty.UniSet[string], error) {
	return nil, nil, errors.New("field queries are not supported with multiple contexts; use a single context instead")
}

// GetPaginationInfo returns nil, pagination is not supported for merged results.
func (m *MultiLogSearchResult) GetPaginationInfo() *PaginationInfo {
	return nil
}

func contextIDOf(r LogSearchResult) string {
	search := r.GetSearch()
	if search == nil || search.Options == nil {
		return "unknown"
	}
	if id, ok := search.Options[OptionContextID].(string); ok {
		return id
	}
	return "unknown"
}
