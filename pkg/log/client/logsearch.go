package client

import (
	"github.com/bascanada/logai-mcp/pkg/log/client/operator"
	"github.com/bascanada/logai-mcp/pkg/ty"
)

// VariableDefinition describes a dynamic parameter for a search context.
// This provides metadata to UIs and LLMs about what inputs are expected.
type VariableDefinition struct {
	Description string      `json:"description,omitempty"`
	Type        string      `json:"type,omitempty"`
	Default     interface{} `json:"default,omitempty"`
	Required    bool        `json:"required,omitempty"`
}

// SearchRange defines the time range for a search.
type SearchRange struct {
	Lte  ty.Opt[string] `json:"lte" yaml:"lte"`
	Gte  ty.Opt[string] `json:"gte" yaml:"gte"`
	Last ty.Opt[string] `json:"last" yaml:"last"`
}

// RefreshOptions defines options for auto-refreshing search results.
type RefreshOptions struct {
	Duration ty.Opt[string] `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// FieldExtraction defines regex and keys for extracting fields from log messages.
type FieldExtraction struct {
	GroupRegex     ty.Opt[string] `json:"groupRegex,omitempty" yaml:"groupRegex,omitempty"`
	KvRegex        ty.Opt[string] `json:"kvRegex,omitempty" yaml:"kvRegex,omitempty"`
	TimestampRegex ty.Opt[string] `json:"timestampRegex,omitempty" yaml:"timestampRegex,omitempty"`

	JSON             ty.Opt[bool]   `json:"json,omitempty" yaml:"json,omitempty"`
	JSONMessageKey   ty.Opt[string] `json:"jsonMessageKey,omitempty" yaml:"jsonMessageKey,omitempty"`
	JSONLevelKey     ty.Opt[string] `json:"jsonLevelKey,omitempty" yaml:"jsonLevelKey,omitempty"`
	JSONTimestampKey ty.Opt[string] `json:"jsonTimestampKey,omitempty" yaml:"jsonTimestampKey,omitempty"`
}

// PrinterOptions defines options for printing log entries (template, color, etc.).
type PrinterOptions struct {
	Template     ty.Opt[string] `json:"template,omitempty" yaml:"template,omitempty"`
	MessageRegex ty.Opt[string] `json:"messageRegex,omitempty" yaml:"messageRegex,omitempty"`
	Color        ty.Opt[bool]   `json:"color,omitempty" yaml:"color,omitempty"`
}

// LogSearch defines the criteria for a log search operation.
type LogSearch struct {
	// Fields are exact-match field requirements.
	Fields ty.MS `json:"fields,omitempty" yaml:"fields,omitempty"`
	// FieldsCondition overrides the operator for entries in Fields.
	FieldsCondition ty.MS `json:"fieldsCondition,omitempty" yaml:"fieldsCondition,omitempty"`

	// Filter is the AST-based filter supporting nested logic (AND/OR/NOT)
	Filter *Filter `json:"filter,omitempty" yaml:"filter,omitempty"`

	// Range of the log query to do , depends of the system for full availability
	Range SearchRange `json:"range,omitempty" yaml:"range,omitempty"`

	// Max size of the request
	Size ty.Opt[int] `json:"size,omitempty" yaml:"size,omitempty"`

	// Refresh options for live data
	Refresh RefreshOptions `json:"refresh,omitempty" yaml:"refresh,omitempty"`

	// Options to configure the implementation with specific configuration for the search
	Options ty.MI `json:"options,omitempty" yaml:"options,omitempty"`

	// Token for fetching the next page of results
	PageToken ty.Opt[string] `json:"pageToken,omitempty" yaml:"pageToken,omitempty"`

	// Extra fields for field extraction for system without fieldging of log entry
	FieldExtraction FieldExtraction `json:"fieldExtraction,omitempty" yaml:"fieldExtraction,omitempty"`

	PrinterOptions PrinterOptions `json:"printerOptions,omitempty" yaml:"printerOptions,omitempty"`

	// Variables defines the dynamic inputs for this search context.
	// The map key is the variable name (e.g., "sessionId").
	Variables map[string]VariableDefinition `json:"variables,omitempty"`

	// Follow indicates if the search should continuously follow logs.
	Follow bool `json:"follow,omitempty" yaml:"follow,omitempty"`
}

// GetEffectiveFilter returns a unified filter tree that combines the simple
// Fields/FieldsCondition requirements with the Filter AST.
func (s *LogSearch) GetEffectiveFilter() *Filter {
	var allFilters []Filter

	for field, value := range s.Fields {
		op := operator.Equals
		if condition, ok := s.FieldsCondition[field]; ok && condition != "" {
			op = condition
		}

		allFilters = append(allFilters, Filter{
			Field: field,
			Op:    op,
			Value: value,
		})
	}

	if s.Filter != nil {
		allFilters = append(allFilters, *s.Filter)
	}

	if len(allFilters) == 0 {
		return nil
	}

	if len(allFilters) == 1 {
		return &allFilters[0]
	}

	// Wrap everything in an implicit root "AND"
	return &Filter{
		Logic:   LogicAnd,
		Filters: allFilters,
	}
}

// MergeInto merges another LogSearch into this one.
func (s *LogSearch) MergeInto(logSearch *LogSearch) error {

	if s.Fields == nil {
		s.Fields = ty.MS{}
	}
	if s.FieldsCondition == nil {
		s.FieldsCondition = ty.MS{}
	}
	if s.Options == nil {
		s.Options = ty.MI{}
	}
	if s.Variables == nil {
		s.Variables = make(map[string]VariableDefinition)
	}

	for k, v := range logSearch.Variables {
		s.Variables[k] = v
	}

	s.Fields = ty.MergeM(s.Fields, logSearch.Fields)
	s.FieldsCondition = ty.MergeM(s.FieldsCondition, logSearch.FieldsCondition)
	s.Options = ty.MergeM(s.Options, logSearch.Options)

	// Merge Filter: AND them together if both exist
	if logSearch.Filter != nil {
		if s.Filter != nil {
			s.Filter = &Filter{
				Logic:   LogicAnd,
				Filters: []Filter{*s.Filter, *logSearch.Filter},
			}
		} else {
			s.Filter = logSearch.Filter
		}
	}

	s.Size.Merge(&logSearch.Size)
	s.Refresh.Duration.Merge(&logSearch.Refresh.Duration)
	s.FieldExtraction.GroupRegex.Merge(&logSearch.FieldExtraction.GroupRegex)
	s.FieldExtraction.KvRegex.Merge(&logSearch.FieldExtraction.KvRegex)
	s.FieldExtraction.TimestampRegex.Merge(&logSearch.FieldExtraction.TimestampRegex)
	s.FieldExtraction.JSON.Merge(&logSearch.FieldExtraction.JSON)
	s.FieldExtraction.JSONMessageKey.Merge(&logSearch.FieldExtraction.JSONMessageKey)
	s.FieldExtraction.JSONLevelKey.Merge(&logSearch.FieldExtraction.JSONLevelKey)
	s.FieldExtraction.JSONTimestampKey.Merge(&logSearch.FieldExtraction.JSONTimestampKey)
	s.PrinterOptions.Template.Merge(&logSearch.PrinterOptions.Template)
	s.PrinterOptions.MessageRegex.Merge(&logSearch.PrinterOptions.MessageRegex)
	s.PrinterOptions.Color.Merge(&logSearch.PrinterOptions.Color)
	s.Range.Gte.Merge(&logSearch.Range.Gte)
	s.Range.Lte.Merge(&logSearch.Range.Lte)
	s.Range.Last.Merge(&logSearch.Range.Last)
	s.PageToken.Merge(&logSearch.PageToken)

	if logSearch.Follow {
		s.Follow = true
	}

	return nil
}
