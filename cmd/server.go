package cmd

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bascanada/logai-mcp/pkg/api"
	"github.com/bascanada/logai-mcp/pkg/log/client/config"
	"github.com/bascanada/logai-mcp/pkg/server"
	"github.com/bascanada/logai-mcp/pkg/session"
	"github.com/spf13/cobra"
)

var (
	port        int
	host        string
	watchConfig bool
)

func sessionStorePath() string {
	if p := os.Getenv("LOGAI_MCP_SESSION"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, config.DefaultConfigDir, "session.json")
}

var serverCmd = &cobra.Command{
	Use:    "server",
	Short:  "Start the HTTP API server",
	Long:   `Starts an HTTP server to query logs and run analysis, providing a programmatic API.`,
	PreRun: onCommandStart,
	Run: func(_ *cobra.Command, _ []string) {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

		logger.Info("loading configuration", "path", configPath)
		cfg, err := config.LoadContextConfig(configPath)
		if err != nil {
			switch {
			case errors.Is(err, config.ErrConfigParse):
				logger.Error("invalid configuration file format", "path", configPath, "err", err)
			case errors.Is(err, config.ErrNoClients):
				logger.Error("configuration missing 'clients' section", "path", configPath, "err", err)
			case errors.Is(err, config.ErrNoContexts):
				logger.Error("configuration missing 'contexts' section", "path", configPath, "err", err)
			default:
				logger.Error("failed to load configuration", "path", configPath, "err", err)
			}
			os.Exit(1)
		}

		results := session.NewStore(sessionStorePath())
		if err := results.Restore(); err != nil {
			logger.Warn("failed to restore session results", "err", err)
		}

		s, err := server.NewServer(host, strconv.Itoa(port), cfg, logger, results, api.OpenAPISpec)
		if err != nil {
			logger.Error("failed to create server", "err", err)
			os.Exit(1)
		}

		if watchConfig && configPath != "" {
			s.SetConfigPath(configPath)
		}

		if err := s.Start(); err != nil {
			logger.Error("server failed to start", "err", err)
			os.Exit(1)
		}
	},
}

func init() {
	serverCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serverCmd.Flags().StringVarP(&host, "host", "H", "0.0.0.0", "Host to bind to")
	serverCmd.Flags().BoolVar(&watchConfig, "watch-config", true, "Reload the configuration when the file changes")
}
