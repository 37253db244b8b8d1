// Package local reads logs from files on disk or from the output of a
// shell command.
package local

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"text/template"

	"github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/bascanada/logai-mcp/pkg/log/reader"
)

const (
	OptionsCmd  = "cmd"
	OptionsPath = "path"
)

type localLogBackend struct{}

func getCommand(search *client.LogSearch) (string, error) {
	cmdTplStr := search.Options.GetString(OptionsCmd)

	if cmdTplStr == "" {
		return "", nil
	}

	tmpl, err := template.New("cmd").Parse(cmdTplStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse command template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, search); err != nil {
		return "", fmt.Errorf("failed to execute command template: %w", err)
	}
	return buf.String(), nil
}

func (lc localLogBackend) Get(ctx context.Context, search *client.LogSearch) (client.LogSearchResult, error) {
	path := search.Options.GetString(OptionsPath)
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		return reader.GetLogResult(search, bufio.NewScanner(file), file)
	}

	cmd, err := getCommand(search)
	if err != nil {
		return nil, err
	}
	if cmd == "" {
		return nil, errors.New("local backend requires a path or cmd option")
	}

	ecmd := exec.CommandContext(ctx, "sh", "-c", cmd)

	stdout, err := ecmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err = ecmd.Start(); err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(stdout)

	return reader.GetLogResult(search, scanner, stdout)
}

func GetLogBackend() (client.LogBackend, error) {
	return localLogBackend{}, nil
}
