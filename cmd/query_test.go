package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func resetQueryFlags() {
	fields = nil
	fieldsOps = nil
	vars = nil
	from, to, last = "", "", ""
	size = 0
	groupRegex, kvRegex = "", ""
	duration = ""
	refresh = false
	template = ""
}

func TestBuildSearchRequestFields(t *testing.T) {
	resetQueryFlags()
	fields = []string{"level=error", "service=api"}
	fieldsOps = []string{"service=match"}
	size = 50
	last = "15m"

	search := buildSearchRequest()

	assert.Equal(t, "error", search.Fields["level"])
	assert.Equal(t, "api", search.Fields["service"])
	assert.Equal(t, "match", search.FieldsCondition["service"])
	assert.Equal(t, 50, search.Size.Value)
	assert.Equal(t, "15m", search.Range.Last.Value)
	assert.False(t, search.Follow)
}

func TestBuildSearchRequestFollow(t *testing.T) {
	resetQueryFlags()
	refresh = true
	duration = "5s"
	template = "{{.Message}}"

	search := buildSearchRequest()

	assert.True(t, search.Follow)
	assert.Equal(t, "5s", search.Refresh.Duration.Value)
	assert.Equal(t, "{{.Message}}", search.PrinterOptions.Template.Value)
}

func TestParseRuntimeVars(t *testing.T) {
	resetQueryFlags()
	vars = []string{"env=prod", "region=us-east-1", "novalue"}

	out := parseRuntimeVars()

	assert.Equal(t, "prod", out["env"])
	assert.Equal(t, "us-east-1", out["region"])
	assert.NotContains(t, out, "novalue")
}
