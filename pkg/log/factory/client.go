// Package factory wires configuration to concrete log backends, lazily
// constructing each backend the first time a context needs it.
package factory

import (
	"errors"

	"github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/bascanada/logai-mcp/pkg/log/client/config"
	"github.com/bascanada/logai-mcp/pkg/log/impl/cloudwatch"
	"github.com/bascanada/logai-mcp/pkg/log/impl/docker"
	"github.com/bascanada/logai-mcp/pkg/log/impl/k8s"
	"github.com/bascanada/logai-mcp/pkg/log/impl/local"
	"github.com/bascanada/logai-mcp/pkg/log/impl/loki"
	"github.com/bascanada/logai-mcp/pkg/log/impl/ssh"
	"github.com/bascanada/logai-mcp/pkg/ty"
)

// LogBackendFactory resolves a configured client.LogBackend by name.
type LogBackendFactory interface {
	Get(name string) (*client.LogBackend, error)
	Names() []string
}

type logBackendFactory struct {
	clients ty.LazyMap[string, client.LogBackend]
}

func (lcf *logBackendFactory) Get(name string) (*client.LogBackend, error) {
	return lcf.clients.Get(name)
}

func (lcf *logBackendFactory) Names() []string {
	return lcf.clients.Keys()
}

// GetLogBackendFactory builds a LogBackendFactory from the provided
// configuration, lazily constructing backends on demand.
func GetLogBackendFactory(clients config.Clients) (LogBackendFactory, error) {

	logBackendFactory := new(logBackendFactory)
	logBackendFactory.clients = make(ty.LazyMap[string, client.LogBackend])

	for k, v := range clients {
		// shadow loop variable so each closure below captures its own copy
		v := v
		// resolve environment variables inside client option values
		v.Options = v.Options.ResolveVariables()
		switch v.Type {
		case "local":
			logBackendFactory.clients[k] = ty.GetLazy(func() (*client.LogBackend, error) {
				vv, err := local.GetLogBackend()
				if err != nil {
					return nil, err
				}

				return &vv, nil
			})
		case "k8s":
			logBackendFactory.clients[k] = ty.GetLazy(func() (*client.LogBackend, error) {
				vv, err := k8s.GetLogBackend(k8s.LogBackendOptions{
					KubeConfig:            v.Options.GetString("kubeConfig"),
					InsecureSkipTLSVerify: v.Options.GetBool("insecureSkipTLSVerify"),
				})
				if err != nil {
					return nil, err
				}

				return &vv, nil
			})
		case "ssh":
			logBackendFactory.clients[k] = ty.GetLazy(func() (*client.LogBackend, error) {
				vv, err := ssh.GetLogBackend(ssh.SSHLogBackendOptions{
					User:       v.Options.GetString("user"),
					Addr:       v.Options.GetString("addr"),
					PrivateKey: v.Options.GetString("privateKey"),
				})
				if err != nil {
					return nil, err
				}

				return &vv, nil
			})
		case "loki":
			logBackendFactory.clients[k] = ty.GetLazy(func() (*client.LogBackend, error) {
				authOptions := loki.LokiAuthOptions{}
				if authMap, ok := v.Options["auth"].(ty.MI); ok {
					authOptions.Header = authMap.GetMS("header")
				}
				vv, err := loki.GetClient(loki.LokiLogSearchClientOptions{
					Url:      v.Options.GetString("url"),
					Auth:     authOptions,
					Headers:  v.Options.GetMS("headers").ResolveVariables(),
					OrgID:    v.Options.GetString("orgId"),
					Insecure: v.Options.GetBool("insecure"),
				})
				if err != nil {
					return nil, err
				}

				return &vv, nil
			})
		case "docker":
			logBackendFactory.clients[k] = ty.GetLazy(func() (*client.LogBackend, error) {
				vv, err := docker.GetLogBackend(v.Options.GetString("host"))
				if err != nil {
					return nil, err
				}
				var backend client.LogBackend = vv
				return &backend, nil
			})
		case "cloudwatch":
			logBackendFactory.clients[k] = ty.GetLazy(func() (*client.LogBackend, error) {
				vv, err := cloudwatch.GetLogBackend(v.Options)
				if err != nil {
					return nil, err
				}
				return &vv, nil
			})
		default:
			return nil, errors.New("invalid type for client : " + v.Type)
		}
	}

	return logBackendFactory, nil
}
