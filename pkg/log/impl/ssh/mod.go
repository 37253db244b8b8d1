// Package ssh runs a remote command over ssh and reads its output as a log
// stream.
package ssh

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"text/template"

	"github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/bascanada/logai-mcp/pkg/log/reader"
	sshc "golang.org/x/crypto/ssh"
	"k8s.io/client-go/util/homedir"
)

const (
	OptionsCmd = "cmd"
)

type SSHLogBackendOptions struct {
	User string `json:"user"`
	Addr string `json:"addr"`

	PrivateKey string `json:"privateKey"`
}

type sshLogBackend struct {
	conn *sshc.Client
}

func getCommand(search *client.LogSearch) (string, error) {
	cmdTplStr := search.Options.GetString(OptionsCmd)

	if cmdTplStr == "" {
		return "", errors.New("ssh backend requires a cmd option")
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

func (lc sshLogBackend) Get(ctx context.Context, search *client.LogSearch) (client.LogSearchResult, error) {
	cmd, err := getCommand(search)
	if err != nil {
		return nil, err
	}

	session, err := lc.conn.NewSession()
	if err != nil {
		return nil, err
	}

	out, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, err
	}

	if err := session.Start(cmd); err != nil {
		session.Close()
		return nil, err
	}

	scanner := bufio.NewScanner(out)

	return reader.GetLogResult(search, scanner, session)
}

func GetLogBackend(options SSHLogBackendOptions) (client.LogBackend, error) {

	if options.Addr == "" {
		return nil, errors.New("ssh address (addr) is empty")
	}
	if options.User == "" {
		return nil, errors.New("ssh user (user) is empty")
	}

	privateKeyFile := options.PrivateKey
	if privateKeyFile == "" {
		privateKeyFile = filepath.Join(homedir.HomeDir(), ".ssh", "id_rsa")
	}

	key, err := os.ReadFile(privateKeyFile)
	if err != nil {
		return nil, err
	}
	signer, err := sshc.ParsePrivateKey(key)
	if err != nil {
		return nil, err
	}

	sshConfig := &sshc.ClientConfig{
		User: options.User,
		Auth: []sshc.AuthMethod{
			sshc.PublicKeys(signer),
		},
		// host keys are not verified, remote log hosts are expected to be
		// reached over a trusted network
		HostKeyCallback: sshc.HostKeyCallback(
			func(hostname string, remote net.Addr, key sshc.PublicKey) error {
				return nil
			}),
	}

	conn, err := sshc.Dial("tcp", options.Addr, sshConfig)
	if err != nil {
		return nil, err
	}

	return sshLogBackend{conn}, nil
}
