package printer

import (
	"bufio"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/bascanada/logai-mcp/pkg/log/reader"
	"github.com/bascanada/logai-mcp/pkg/ty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResult(t *testing.T, search *client.LogSearch, lines string) client.LogSearchResult {
	t.Helper()
	r := io.NopCloser(strings.NewReader(lines))
	result, err := reader.GetLogResult(search, bufio.NewScanner(r), r)
	require.NoError(t, err)
	return result
}

func TestWrapIoWriterDefaultTemplate(t *testing.T) {
	search := &client.LogSearch{}
	search.PrinterOptions.Color = ty.OptWrap(false)

	result := testResult(t, search, "first line\nsecond line\n")

	var buf strings.Builder
	follow, err := WrapIoWriter(context.Background(), result, &buf, func() {})
	require.NoError(t, err)
	assert.False(t, follow)

	out := buf.String()
	assert.Contains(t, out, "first line")
	assert.Contains(t, out, "second line")
}

func TestWrapIoWriterCustomTemplate(t *testing.T) {
	search := &client.LogSearch{}
	search.PrinterOptions.Template = ty.OptWrap("{{.Message}}|{{KV .Fields}}")
	search.PrinterOptions.Color = ty.OptWrap(false)
	search.FieldExtraction.KvRegex = ty.OptWrap(`(\w+)=(\w+)`)

	result := testResult(t, search, "level=warn slow request\n")

	var buf strings.Builder
	_, err := WrapIoWriter(context.Background(), result, &buf, func() {})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "level=warn")
}

func TestWrapIoWriterMessageRegex(t *testing.T) {
	search := &client.LogSearch{}
	search.PrinterOptions.Template = ty.OptWrap("{{.Message}}")
	search.PrinterOptions.MessageRegex = ty.OptWrap(`payload=(.*)`)
	search.PrinterOptions.Color = ty.OptWrap(false)

	result := testResult(t, search, "payload=hello world\n")

	var buf strings.Builder
	_, err := WrapIoWriter(context.Background(), result, &buf, func() {})
	require.NoError(t, err)

	assert.Equal(t, "hello world\n", buf.String())
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2025, 4, 1, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "15:04:05", FormatDate("15:04:05", ts))
}

func TestKV(t *testing.T) {
	out := KV(ty.MI{"a": 1})
	assert.Equal(t, "a=1", out)
}

func TestTrim(t *testing.T) {
	assert.Equal(t, "x", Trim("  x \n"))
}

func TestGetField(t *testing.T) {
	fields := ty.MI{"Thread": "main"}
	assert.Equal(t, "main", GetField(fields, "thread"))
	assert.Equal(t, "", GetField(fields, "missing"))
}
