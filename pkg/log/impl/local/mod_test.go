package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/bascanada/logai-mcp/pkg/ty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCommand(t *testing.T) {
	type args struct {
		search *client.LogSearch
	}
	tests := []struct {
		name    string
		args    args
		want    string
		wantErr bool
	}{
		{
			name: "Test with simple command",
			args: args{
				search: &client.LogSearch{
					Options: ty.MI{
						"cmd": "echo 'hello'",
					},
				},
			},
			want: "echo 'hello'",
		},
		{
			name: "Test with size parameter",
			args: args{
				search: &client.LogSearch{
					Size: ty.Opt[int]{Value: 50, Set: true},
					Options: ty.MI{
						"cmd": "tail -n {{.Size.Value}} my-app.log",
					},
				},
			},
			want: "tail -n 50 my-app.log",
		},
		{
			name: "Test with GTE parameter",
			args: args{
				search: &client.LogSearch{
					Range: client.SearchRange{
						Gte: ty.Opt[string]{Value: "2023-10-27T10:00:00Z", Set: true},
					},
					Options: ty.MI{
						"cmd": `grep "{{.Range.Gte.Value}}" my-app.log`,
					},
				},
			},
			want: `grep "2023-10-27T10:00:00Z" my-app.log`,
		},
		{
			name: "Test with default value",
			args: args{
				search: &client.LogSearch{
					Options: ty.MI{
						"cmd": `tail -n {{or .Size.Value 100}}`,
					},
				},
			},
			want: `tail -n 100`,
		},
		{
			name: "Test with no command",
			args: args{
				search: &client.LogSearch{
					Options: ty.MI{},
				},
			},
			want: "",
		},
		{
			name: "Test with invalid template",
			args: args{
				search: &client.LogSearch{
					Options: ty.MI{
						"cmd": `echo "{{.Size.Value"`,
					},
				},
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := getCommand(tt.args.search)
			if (err != nil) != tt.wantErr {
				t.Errorf("getCommand() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	content := "level=info msg=started\nlevel=error msg=boom\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	backend, err := GetLogBackend()
	require.NoError(t, err)

	search := &client.LogSearch{
		Options: ty.MI{"path": path},
		FieldExtraction: client.FieldExtraction{
			KvRegex: ty.OptWrap(`(\w+)=(\w+)`),
		},
	}

	result, err := backend.Get(context.Background(), search)
	require.NoError(t, err)

	entries, _, err := result.GetEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "error", entries[1].Fields.GetString("level"))
}

func TestGetMissingOptions(t *testing.T) {
	backend, err := GetLogBackend()
	require.NoError(t, err)

	_, err = backend.Get(context.Background(), &client.LogSearch{Options: ty.MI{}})
	assert.Error(t, err)
}
