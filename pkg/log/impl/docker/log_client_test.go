package docker

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"testing"

	logclient "github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/bascanada/logai-mcp/pkg/ty"
	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockDockerClient struct {
	mock.Mock
}

func (m *MockDockerClient) ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error) {
	args := m.Called(ctx, options)
	return args.Get(0).([]container.Summary), args.Error(1)
}

func (m *MockDockerClient) ContainerLogs(ctx context.Context, c string, options container.LogsOptions) (io.ReadCloser, error) {
	args := m.Called(ctx, c, options)
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func makeLogFrame(msg string) []byte {
	header := make([]byte, 8)
	header[0] = 1 // stdout
	binary.BigEndian.PutUint32(header[4:], uint32(len(msg)))
	return append(header, []byte(msg)...)
}

func TestServiceLogs(t *testing.T) {
	mockClient := new(MockDockerClient)
	lc := DockerLogBackend{
		apiClient: mockClient,
		host:      "local",
	}

	ctx := context.Background()
	search := &logclient.LogSearch{
		Options: ty.MI{
			"service": "web-app",
		},
	}

	mockClient.On("ContainerList", ctx, mock.MatchedBy(func(opts container.ListOptions) bool {
		return opts.Filters.ExactMatch("label", "com.docker.compose.service=web-app")
	})).Return([]container.Summary{
		{ID: "container_id_1_long", Names: []string{"/web-app-1"}},
		{ID: "container_id_2_long", Names: []string{"/web-app-2"}},
	}, nil)

	logContent1 := makeLogFrame("2024-01-01T00:00:01.000000000Z log from c1\n")
	logContent2 := makeLogFrame("2024-01-01T00:00:02.000000000Z log from c2\n")

	mockClient.On("ContainerLogs", ctx, "container_id_1_long", mock.Anything).Return(io.NopCloser(bytes.NewReader(logContent1)), nil)
	mockClient.On("ContainerLogs", ctx, "container_id_2_long", mock.Anything).Return(io.NopCloser(bytes.NewReader(logContent2)), nil)

	result, err := lc.Get(ctx, search)
	assert.NoError(t, err)

	entries, _, err := result.GetEntries(ctx)
	assert.NoError(t, err)

	assert.Len(t, entries, 2)

	assert.Equal(t, "log from c1", entries[0].Message)
	assert.Equal(t, "log from c2", entries[1].Message)

	assert.Equal(t, "container_id", entries[0].ContextID)
	assert.Equal(t, "container_id", entries[1].ContextID)

	mockClient.AssertExpectations(t)
}

func TestServiceLogs_SingleContainer(t *testing.T) {
	mockClient := new(MockDockerClient)
	lc := DockerLogBackend{
		apiClient: mockClient,
		host:      "local",
	}

	ctx := context.Background()
	search := &logclient.LogSearch{
		Options: ty.MI{
			"service": "web-app",
		},
	}

	mockClient.On("ContainerList", ctx, mock.Anything).Return([]container.Summary{
		{ID: "c1", Names: []string{"/web-app-1"}},
	}, nil)

	logContent := makeLogFrame("2024-01-01T00:00:01.000000000Z single log\n")
	mockClient.On("ContainerLogs", ctx, "c1", mock.Anything).Return(io.NopCloser(bytes.NewReader(logContent)), nil)

	result, err := lc.Get(ctx, search)
	assert.NoError(t, err)

	entries, _, err := result.GetEntries(ctx)
	assert.NoError(t, err)

	assert.Len(t, entries, 1)
	assert.Equal(t, "single log", entries[0].Message)

	mockClient.AssertExpectations(t)
}

func TestGetMissingContainer(t *testing.T) {
	lc := DockerLogBackend{apiClient: new(MockDockerClient)}

	_, err := lc.Get(context.Background(), &logclient.LogSearch{Options: ty.MI{}})
	assert.Error(t, err)
}

func TestListContainers(t *testing.T) {
	mockClient := new(MockDockerClient)
	lc := DockerLogBackend{apiClient: mockClient}

	ctx := context.Background()
	mockClient.On("ContainerList", ctx, mock.MatchedBy(func(opts container.ListOptions) bool {
		return opts.All
	})).Return([]container.Summary{
		{ID: "abcdef0123456789", Names: []string{"/web"}, Image: "nginx", State: "running", Status: "Up 2 hours"},
	}, nil)

	infos, err := lc.ListContainers(ctx, true, "")
	assert.NoError(t, err)
	assert.Len(t, infos, 1)
	assert.Equal(t, "abcdef012345", infos[0].ID)
	assert.Equal(t, "nginx", infos[0].Image)

	mockClient.AssertExpectations(t)
}
