// Package docker reads container logs through the docker engine API and
// lists running containers for discovery.
package docker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/docker/cli/cli/connhelper"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	logclient "github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/bascanada/logai-mcp/pkg/log/reader"
	"github.com/bascanada/logai-mcp/pkg/ty"
)

const regexDockerTimestamp = "(([0-9]*)-([0-9]*)-([0-9]*)T([0-9]*):([0-9]*):([0-9]*).([0-9]*)Z)"

// DockerAPI is the subset of the engine client used by this backend.
type DockerAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerLogs(ctx context.Context, container string, options container.LogsOptions) (io.ReadCloser, error)
}

// ContainerInfo is the discovery view of a container.
type ContainerInfo struct {
	ID     string            `json:"id"`
	Names  []string          `json:"names"`
	Image  string            `json:"image"`
	State  string            `json:"state"`
	Status string            `json:"status"`
	Labels map[string]string `json:"labels,omitempty"`
}

type DockerLogBackend struct {
	apiClient DockerAPI
	host      string
}

func (lc DockerLogBackend) Get(ctx context.Context, search *logclient.LogSearch) (logclient.LogSearchResult, error) {

	if !search.FieldExtraction.TimestampRegex.Set {
		search.FieldExtraction.TimestampRegex.S(regexDockerTimestamp)
	}

	// a compose service name can stand in for a container id, fanning out
	// over every container of the service
	if service := search.Options.GetString("service"); service != "" {
		filterArgs := filters.NewArgs()
		filterArgs.Add("label", fmt.Sprintf("com.docker.compose.service=%s", service))

		if project := search.Options.GetString("project"); project != "" {
			filterArgs.Add("label", fmt.Sprintf("com.docker.compose.project=%s", project))
		}

		containers, err := lc.apiClient.ContainerList(ctx, container.ListOptions{
			Filters: filterArgs,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list containers for service %s: %w", service, err)
		}

		if len(containers) == 0 {
			return nil, fmt.Errorf("no running containers found for service %s", service)
		}

		if len(containers) == 1 {
			return lc.getContainerLogs(ctx, search, containers[0].ID)
		}

		multi, err := logclient.NewMultiLogSearchResult(search)
		if err != nil {
			return nil, err
		}
		for _, c := range containers {
			sub := *search
			sub.Options = ty.MergeM(ty.MI{}, search.Options)
			sub.Options[logclient.OptionContextID] = shortID(c.ID)
			result, err := lc.getContainerLogs(ctx, &sub, c.ID)
			multi.Add(result, err)
		}
		return multi, nil
	}

	containerID := search.Options.GetString("container")
	if containerID == "" {
		return nil, fmt.Errorf("docker backend requires a container or service option")
	}

	return lc.getContainerLogs(ctx, search, containerID)
}

func (lc DockerLogBackend) getContainerLogs(ctx context.Context, search *logclient.LogSearch, containerID string) (logclient.LogSearchResult, error) {
	var since, until string

	if search.Range.Last.Value != "" {
		since = search.Range.Last.Value
	} else {
		if search.Range.Gte.Value != "" {
			since = search.Range.Gte.Value
		}

		if search.Range.Lte.Value != "" {
			until = search.Range.Lte.Value
		}
	}

	tail := "all"

	if search.Size.Set {
		tail = fmt.Sprintf("%d", search.Size.Value)
	}

	options := container.LogsOptions{
		ShowStdout: search.Options.GetOr("showStdout", true).(bool),
		ShowStderr: search.Options.GetOr("showStderr", true).(bool),
		Timestamps: search.Options.GetOr("timestamps", true).(bool),
		Details:    search.Options.GetOr("details", false).(bool),
		Since:      since,
		Until:      until,
		Follow:     search.Follow,
		Tail:       tail,
	}
	out, err := lc.apiClient.ContainerLogs(ctx, containerID, options)
	if err != nil {
		return nil, err
	}

	// the engine multiplexes stdout and stderr with frame headers unless
	// the container runs with a tty
	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, pw, out)
		pw.CloseWithError(err)
	}()

	scanner := bufio.NewScanner(pr)

	return reader.GetLogResult(search, scanner, closeBoth{pr, out})
}

type closeBoth struct {
	a, b io.Closer
}

func (c closeBoth) Close() error {
	err := c.a.Close()
	if err2 := c.b.Close(); err == nil {
		err = err2
	}
	return err
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// ListContainers returns running containers, or every container when all is
// true, optionally narrowed to a compose project.
func (lc DockerLogBackend) ListContainers(ctx context.Context, all bool, project string) ([]ContainerInfo, error) {
	opts := container.ListOptions{All: all}
	if project != "" {
		filterArgs := filters.NewArgs()
		filterArgs.Add("label", fmt.Sprintf("com.docker.compose.project=%s", project))
		opts.Filters = filterArgs
	}

	containers, err := lc.apiClient.ContainerList(ctx, opts)
	if err != nil {
		return nil, err
	}

	infos := make([]ContainerInfo, 0, len(containers))
	for _, c := range containers {
		infos = append(infos, ContainerInfo{
			ID:     shortID(c.ID),
			Names:  c.Names,
			Image:  c.Image,
			State:  c.State,
			Status: c.Status,
			Labels: c.Labels,
		})
	}
	return infos, nil
}

// DefaultHost returns the platform default docker endpoint.
func DefaultHost() string {
	if runtime.GOOS == "windows" {
		return "npipe:////./pipe/docker_engine"
	}
	return "unix:///var/run/docker.sock"
}

func GetLogBackend(host string) (*DockerLogBackend, error) {
	if host == "" {
		host = DefaultHost()
	}

	opts := []client.Opt{
		client.FromEnv,
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	}

	// a helper is returned for hosts like ssh://, wiring the system ssh
	// binary into the client dialer
	helper, err := connhelper.GetConnectionHelper(host)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection helper: %w", err)
	}

	if helper != nil {
		opts = append(opts, client.WithDialContext(helper.Dialer))
	}

	apiClient, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, err
	}

	return &DockerLogBackend{
		apiClient: apiClient,
		host:      host,
	}, nil
}
