package serverapp

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"medgraph-search/internal/config"
	"medgraph-search/internal/graphdb"
	"medgraph-search/internal/history"
	"medgraph-search/internal/logging"
	"medgraph-search/internal/observability"
	"medgraph-search/internal/schemacache"
	"medgraph-search/internal/tlscert"
)

// App owns runtime resources for the medgraph-search server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider

	meterProvider        *observability.MeterProvider
	searchMetrics        *observability.SearchMetrics
	schemaRefreshMetrics *observability.SchemaRefreshMetrics
	securityMetrics      *observability.SecurityMetrics
	tracerProvider       *observability.TracerProvider

	store        *graphdb.Store
	historyStore *history.Store

	manager      *schemacache.Manager
	schemaCancel context.CancelFunc

	searchHandler http.Handler
	adminHandler  http.Handler
	mux           *http.ServeMux
	handler       http.Handler

	serverAddr string
	srv        *http.Server
	tlsManager tlscert.Manager

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}
