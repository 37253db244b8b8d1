package client

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bascanada/logai-mcp/pkg/log/client/operator"
)

type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
	LogicNot LogicOperator = "NOT"
)

// Filter represents a recursive filter AST node.
// It can be either a leaf node (condition) or a branch node (group).
type Filter struct {
	// Leaf node: if Field is set, this is a condition
	Field  string `json:"field,omitempty" yaml:"field,omitempty"`
	Op     string `json:"op,omitempty" yaml:"op,omitempty"`
	Value  string `json:"value,omitempty" yaml:"value,omitempty"`
	Negate bool   `json:"negate,omitempty" yaml:"negate,omitempty"`

	// Branch node: if Logic is set, this is a group
	Logic   LogicOperator `json:"logic,omitempty" yaml:"logic,omitempty"`
	Filters []Filter      `json:"filters,omitempty" yaml:"filters,omitempty"`
}

// Validate checks if the filter is structurally valid.
func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}

	isLeaf := f.Field != ""
	isBranch := f.Logic != ""

	if isLeaf && isBranch {
		return fmt.Errorf("filter cannot have both 'field' and 'logic' set")
	}

	// Empty filter means "match all"
	if !isLeaf && !isBranch {
		return nil
	}

	if isLeaf {
		switch f.Op {
		case "", operator.Equals, operator.Match, operator.Wildcard, operator.Exists, operator.Regex,
			operator.Gt, operator.Gte, operator.Lt, operator.Lte:
		default:
			return fmt.Errorf("invalid operator: %s", f.Op)
		}

		if f.Op != operator.Exists && f.Value == "" {
			return fmt.Errorf("filter with field '%s' requires a value (unless op is 'exists')", f.Field)
		}

		if len(f.Filters) > 0 {
			return fmt.Errorf("leaf filter (field='%s') cannot have nested filters", f.Field)
		}
	}

	if isBranch {
		switch f.Logic {
		case LogicAnd, LogicOr, LogicNot:
		default:
			return fmt.Errorf("invalid logic operator: %s", f.Logic)
		}

		if f.Logic == LogicNot && len(f.Filters) == 0 {
			return fmt.Errorf("NOT filter must have at least one child filter")
		}

		if f.Value != "" {
			return fmt.Errorf("branch filter (logic='%s') should not have a value", f.Logic)
		}

		for i, child := range f.Filters {
			if err := child.Validate(); err != nil {
				return fmt.Errorf("filter[%d]: %w", i, err)
			}
		}
	}

	return nil
}

// Match evaluates the filter against a LogEntry (client-side filtering).
func (f *Filter) Match(entry LogEntry) bool {
	if f == nil {
		return true
	}

	if f.Logic != "" {
		return f.matchBranch(entry)
	}

	if f.Field != "" {
		return f.matchLeaf(entry)
	}

	return true
}

func (f *Filter) matchBranch(entry LogEntry) bool {
	if len(f.Filters) == 0 {
		return true
	}

	switch f.Logic {
	case LogicAnd:
		for _, child := range f.Filters {
			if !child.Match(entry) {
				return false
			}
		}
		return true

	case LogicOr:
		for _, child := range f.Filters {
			if child.Match(entry) {
				return true
			}
		}
		return false

	case LogicNot:
		// NOT inverts the result of all children ANDed together
		for _, child := range f.Filters {
			if !child.Match(entry) {
				return true
			}
		}
		return false
	}

	return true
}

func (f *Filter) matchLeaf(entry LogEntry) bool {
	// "_" sentinel targets the raw message
	if f.Field == "_" {
		return f.matchValue(entry.Message)
	}

	fieldValRaw := entry.Field(f.Field)

	if f.Op == operator.Exists {
		result := fieldValRaw != "" && fieldValRaw != nil
		if f.Negate {
			return !result
		}
		return result
	}

	fieldVal := toString(fieldValRaw)

	// Missing field never matches (except exists, handled above)
	if fieldVal == "" {
		return f.Negate
	}

	return f.matchValue(fieldVal)
}

func (f *Filter) matchValue(fieldVal string) bool {
	var result bool

	switch f.Op {
	case operator.Regex:
		matched, err := regexp.MatchString(f.Value, fieldVal)
		result = err == nil && matched

	case operator.Wildcard:
		// Convert glob pattern to regex: * -> .*, ? -> .
		pattern := regexp.QuoteMeta(f.Value)
		pattern = strings.ReplaceAll(pattern, `\*`, `.*`)
		pattern = strings.ReplaceAll(pattern, `\?`, `.`)
		pattern = "^" + pattern + "$"
		matched, err := regexp.MatchString(pattern, fieldVal)
		result = err == nil && matched

	case operator.Match:
		// Match is a case-insensitive contains
		result = strings.Contains(strings.ToLower(fieldVal), strings.ToLower(f.Value))

	case operator.Gt, operator.Gte, operator.Lt, operator.Lte:
		result = f.compareNumeric(fieldVal)

	case "", operator.Equals:
		result = fieldVal == f.Value

	default:
		result = fieldVal == f.Value
	}

	if f.Negate {
		return !result
	}
	return result
}

// compareNumeric compares field value with filter value as numbers.
// Falls back to string comparison if parsing fails.
func (f *Filter) compareNumeric(fieldVal string) bool {
	fieldNum, err1 := strconv.ParseFloat(fieldVal, 64)
	valueNum, err2 := strconv.ParseFloat(f.Value, 64)

	if err1 != nil || err2 != nil {
		return f.compareString(fieldVal)
	}

	switch f.Op {
	case operator.Gt:
		return fieldNum > valueNum
	case operator.Gte:
		return fieldNum >= valueNum
	case operator.Lt:
		return fieldNum < valueNum
	case operator.Lte:
		return fieldNum <= valueNum
	}
	return false
}

func (f *Filter) compareString(fieldVal string) bool {
	switch f.Op {
	case operator.Gt:
		return fieldVal > f.Value
	case operator.Gte:
		return fieldVal >= f.Value
	case operator.Lt:
		return fieldVal < f.Value
	case operator.Lte:
		return fieldVal <= f.Value
	}
	return false
}

func toString(v interface{}) string {
	if v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}
