package factory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/bascanada/logai-mcp/pkg/log/client/config"
	"github.com/bascanada/logai-mcp/pkg/ty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.ContextConfig {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	content := "level=info msg=started\nlevel=error msg=boom\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return config.ContextConfig{
		Clients: config.Clients{
			"local": config.Client{Type: "local", Options: ty.MI{}},
		},
		Searches: config.Searches{
			"kv": {
				FieldExtraction: client.FieldExtraction{
					KvRegex: ty.OptWrap(`(\w+)=(\w+)`),
				},
			},
		},
		Contexts: config.Contexts{
			"app": {
				Client:        "local",
				SearchInherit: []string{"kv"},
				Search: client.LogSearch{
					Options: ty.MI{"path": path},
				},
			},
		},
	}
}

func newFactory(t *testing.T, cfg config.ContextConfig) SearchFactory {
	t.Helper()
	backends, err := GetLogBackendFactory(cfg.Clients)
	require.NoError(t, err)
	sf, err := GetLogSearchFactory(backends, cfg)
	require.NoError(t, err)
	return sf
}

func TestGetSearchResult(t *testing.T) {
	sf := newFactory(t, testConfig(t))

	result, err := sf.GetSearchResult(context.Background(), "app", nil, client.LogSearch{}, nil)
	require.NoError(t, err)

	entries, _, err := result.GetEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "error", entries[1].Fields.GetString("level"))
}

func TestGetSearchResultUnknownContext(t *testing.T) {
	sf := newFactory(t, testConfig(t))

	_, err := sf.GetSearchResult(context.Background(), "nope", nil, client.LogSearch{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrContextNotFound)
}

func TestGetFieldValues(t *testing.T) {
	sf := newFactory(t, testConfig(t))

	values, err := sf.GetFieldValues(context.Background(), "app", nil, client.LogSearch{}, []string{"level"}, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"info", "error"}, values["level"])
}

func TestGetFieldValuesUnknownField(t *testing.T) {
	sf := newFactory(t, testConfig(t))

	_, err := sf.GetFieldValues(context.Background(), "app", nil, client.LogSearch{}, []string{"missing"}, nil)
	assert.Error(t, err)
}

func TestGetLogBackendFactoryInvalidType(t *testing.T) {
	_, err := GetLogBackendFactory(config.Clients{
		"bad": config.Client{Type: "carrier-pigeon"},
	})
	assert.Error(t, err)
}

func TestMergeClientOptions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Clients["local"] = config.Client{Type: "local", Options: ty.MI{"cmd": "echo hi"}}
	sf := newFactory(t, cfg)

	sc, err := sf.GetSearchContext(context.Background(), "app", nil, client.LogSearch{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "local", sc.Client)
}
