// Package mcp exposes the advisory core as MCP tools.
// The server needs no external services: results live in a local SQLite
// file and statistics are cached in memory.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/skin-lesion-advisor/internal/cache"
	"github.com/skin-lesion-advisor/internal/config"
	"github.com/skin-lesion-advisor/internal/reporting"
	"github.com/skin-lesion-advisor/internal/results"
	"github.com/skin-lesion-advisor/internal/service"
)

const (
	serverName    = "skin-lesion-advisor"
	serverVersion = "v1.0.0"
)

// Server is a standalone MCP server over the catalog, resolver and results store.
type Server struct {
	config     *config.LiteConfig
	mcpServer  *mcp.Server
	catalog    *service.Catalog
	resolver   *service.Resolver
	store      results.Store
	cache      *cache.MemoryCache
	statistics *reporting.StatisticsService
	logger     *logrus.Logger
}

// ServerOption is a functional option for Server.
type ServerOption func(*Server) error

// WithResultsStore sets a custom results store.
func WithResultsStore(store results.Store) ServerOption {
	return func(s *Server) error {
		s.store = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// NewServer creates a new MCP server instance.
func NewServer(cfg *config.LiteConfig, opts ...ServerOption) (*Server, error) {
	server := &Server{
		config: cfg,
		logger: logrus.New(),
	}

	if cfg.LogFormat == "text" {
		server.logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		server.logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	server.logger.SetLevel(level)

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	catalog, err := service.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load condition catalog: %w", err)
	}
	server.catalog = catalog
	server.resolver = service.NewResolver(server.logger, catalog)

	memCache, err := cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	server.cache = memCache

	if server.store == nil {
		if err := cfg.EnsureDataDir(); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := results.NewSQLiteStore(cfg.ResultsDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create results store: %w", err)
		}
		server.store = store
	}

	server.statistics = reporting.NewStatisticsService(server.store, memCache, catalog, server.logger, cfg.CacheTTL)

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)
	server.registerTools()

	server.logger.WithField("conditions", catalog.Len()).Info("MCP server initialized")
	return server, nil
}

// registerTools registers every tool with the MCP SDK.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "classify_confidence",
		Description: "Map a confidence percentage (0-100) to its confidence tier, color token and five-cell bar fill.",
	}, s.handleClassifyConfidence)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "lookup_condition",
		Description: "Return the catalog record for a condition label. Labels are case-sensitive.",
	}, s.handleLookupCondition)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_conditions",
		Description: "List every condition label known to the catalog with its severity.",
	}, s.handleListConditions)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "resolve_prediction",
		Description: "Turn a classifier prediction and confidence into a display-ready advisory.",
	}, s.handleResolvePrediction)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "summarize_results",
		Description: "Compute per-label and per-period statistics over the supplied prediction results.",
	}, s.handleSummarizeResults)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "record_result",
		Description: "Save a prediction result to the local results history.",
	}, s.handleRecordResult)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "stored_statistics",
		Description: "Compute statistics over the local results history.",
	}, s.handleStoredStatistics)

	s.logger.WithField("tool_count", 7).Debug("Registered MCP tools")
}

// Start runs the server on stdio until ctx is cancelled or the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting skin lesion advisor MCP server on stdio")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close releases the results store.
func (s *Server) Close() error {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close results store")
			return err
		}
	}
	return nil
}
