package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bascanada/logai-mcp/pkg/log/client/config"
	"github.com/bascanada/logai-mcp/pkg/log/factory"
	"github.com/bascanada/logai-mcp/pkg/session"
)

// Server exposes the query and analysis surface over HTTP.
type Server struct {
	mu            sync.RWMutex
	config        *config.ContextConfig
	searchFactory factory.SearchFactory

	router      *http.ServeMux
	httpServer  *http.Server
	logger      *slog.Logger
	port        string
	host        string
	configPath  string
	results     *session.Store
	eventBroker *EventBroker
	openapiSpec []byte
}

// NewServer creates a new API server instance.
func NewServer(host, port string, cfg *config.ContextConfig, logger *slog.Logger, results *session.Store, openapiSpec []byte) (*Server, error) {
	searchFactory, err := buildSearchFactory(cfg)
	if err != nil {
		return nil, err
	}

	router := http.NewServeMux()
	s := &Server{
		config:        cfg,
		router:        router,
		logger:        logger,
		port:          port,
		host:          host,
		searchFactory: searchFactory,
		results:       results,
		eventBroker:   NewEventBroker(logger),
		openapiSpec:   openapiSpec,
	}
	s.routes()
	return s, nil
}

func buildSearchFactory(cfg *config.ContextConfig) (factory.SearchFactory, error) {
	backendFactory, err := factory.GetLogBackendFactory(cfg.Clients)
	if err != nil {
		return nil, err
	}
	return factory.GetLogSearchFactory(backendFactory, *cfg)
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.healthHandler)
	s.router.HandleFunc("/query/logs", s.queryLogsHandler)
	s.router.HandleFunc("/query/fields", s.queryFieldsHandler)
	s.router.HandleFunc("/contexts", s.contextsHandler)
	s.router.HandleFunc("/contexts/", s.contextsHandler)
	s.router.HandleFunc("/analyze/templates", s.analyzeTemplatesHandler)
	s.router.HandleFunc("/analyze/anomalies", s.analyzeAnomaliesHandler)
	s.router.HandleFunc("/analyze/clusters", s.analyzeClustersHandler)
	s.router.HandleFunc("/analyze/stats", s.analyzeStatsHandler)
	s.router.HandleFunc("/results", s.resultsHandler)
	s.router.HandleFunc("/results/", s.resultsHandler)
	s.router.HandleFunc("/events", s.eventsHandler)
	s.router.HandleFunc("/openapi.yaml", s.openapiHandler)
}

// SetConfigPath enables config file watching for this server.
func (s *Server) SetConfigPath(path string) {
	s.configPath = path
}

// ReloadConfig re-reads the config file and swaps the search factory.
func (s *Server) ReloadConfig(ctx context.Context) error {
	if s.configPath == "" {
		return fmt.Errorf("no config path set, cannot reload")
	}

	cfg, err := config.LoadContextConfig(s.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	searchFactory, err := buildSearchFactory(cfg)
	if err != nil {
		return fmt.Errorf("failed to rebuild search factory: %w", err)
	}

	s.mu.Lock()
	s.config = cfg
	s.searchFactory = searchFactory
	s.mu.Unlock()

	s.logger.Info("configuration reloaded", "contexts", len(cfg.Contexts))
	return nil
}

func (s *Server) currentConfig() *config.ContextConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

func (s *Server) currentSearchFactory() factory.SearchFactory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchFactory
}

// Start runs the HTTP server and blocks until a signal is received.
func (s *Server) Start() error {
	handler := s.chainMiddleware(s.router, s.recoveryMiddleware, s.corsMiddleware, s.requestIDMiddleware, s.loggingMiddleware)

	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	// Listener first so port=0 resolves to the real assigned port.
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	actualAddr := listener.Addr().(*net.TCPAddr)
	actualPort := actualAddr.Port

	s.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "addr", listener.Addr().String())
		fmt.Printf("Server listening on port %d\n", actualPort)
		serverErrors <- s.httpServer.Serve(listener)
	}()

	var watcher *ConfigWatcher
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	if s.configPath != "" {
		watcher, err = NewConfigWatcher(s, s.configPath, s.logger)
		if err != nil {
			s.logger.Warn("config watcher unavailable", "err", err)
		} else if err := watcher.Start(watchCtx); err != nil {
			s.logger.Warn("config watcher failed to start", "err", err)
			watcher.Stop()
			watcher = nil
		}
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		s.logger.Info("shutdown signal received", "signal", sig)

		if watcher != nil {
			watcher.Stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("graceful shutdown failed", "err", err)
			return s.httpServer.Close()
		}
		s.logger.Info("server shutdown gracefully")
	}

	if err := s.results.Persist(); err != nil {
		s.logger.Warn("failed to persist session results", "err", err)
	}

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping server")
	return s.httpServer.Shutdown(ctx)
}
