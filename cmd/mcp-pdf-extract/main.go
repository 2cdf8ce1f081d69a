package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pagesift/mcp-pdf-extract/internal/ai"
	"github.com/pagesift/mcp-pdf-extract/internal/config"
	"github.com/pagesift/mcp-pdf-extract/internal/logging"
	"github.com/pagesift/mcp-pdf-extract/internal/mcp"
	"github.com/pagesift/mcp-pdf-extract/internal/pdf"
	"github.com/pagesift/mcp-pdf-extract/internal/pipeline"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// buildLogger constructs the process logger from the configured style
// and level. Every style writes to stderr, so stdio-mode MCP traffic
// on stdout stays clean.
func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(&logging.Config{
		Style: logging.Style(cfg.LogStyle),
		Level: cfg.LogLevel,
	})
}

// pipelineConfig maps the flag-level thresholds onto the extraction
// pipeline configuration.
func pipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		MinNumbersPerPage:   cfg.MinNumbersPerPage,
		MinNumberDensity:    cfg.MinNumberDensity,
		MinTableLikeness:    cfg.MinTableLikeness,
		MaxPagesPerGroup:    cfg.MaxPagesPerGroup,
		XTolerance:          cfg.XTolerance,
		MinTableRows:        cfg.MinTableRows,
		MinTableCols:        cfg.MinTableCols,
		MaxConcurrentGroups: cfg.MaxConcurrentGroups,
		AITimeout:           time.Duration(cfg.AITimeout) * time.Second,
	}
}

// buildAIClient returns the extraction client when an AI endpoint is
// configured, nil otherwise. A nil client keeps the whole pipeline on
// local extraction.
func buildAIClient(cfg *config.Config, logger *zap.Logger) pipeline.AIClient {
	if !cfg.AIEnabled() {
		return nil
	}
	return ai.NewClient(ai.Config{
		BaseURL:           cfg.AIBaseURL,
		APIKey:            cfg.AIAPIKey,
		Model:             cfg.AIModel,
		RequestTimeout:    time.Duration(cfg.AITimeout) * time.Second,
		MaxRetries:        cfg.AIMaxRetries,
		RequestsPerSecond: cfg.AIRPS,
	}, logger)
}

// runServerMode handles server mode execution with signal handling
func runServerMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server, logger *zap.Logger) {
	// Set up signal handling for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Start server in a goroutine
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-signalCh:
		logger.Info("received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
		cancel()

		// Wait for server to shutdown
		if err := <-serverErrCh; err != nil {
			logger.Error("server shutdown with error", zap.Error(err))
			os.Exit(1)
		}

	case err := <-serverErrCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("server stopped")
}

// runStdioMode handles stdio mode execution
func runStdioMode(ctx context.Context, _ context.CancelFunc, server *mcp.Server, logger *zap.Logger) {
	// The parent process owns our lifecycle in stdio mode: exit when
	// stdin closes or the server fails. The logger writes to stderr,
	// so reporting the failure cannot corrupt the protocol stream.
	if err := server.Run(ctx); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	// Load configuration from flags first
	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() {
		logger.Debug("starting with configuration", zap.String("config", cfg.String()))
	}

	// Create PDF service with the extraction pipeline behind it
	pdfService, err := pdf.NewService(cfg.MaxFileSize, cfg.PDFDirectory, pipelineConfig(cfg), buildAIClient(cfg, logger), logger)
	if err != nil {
		logger.Fatal("failed to create PDF service", zap.Error(err))
	}

	// Create MCP server
	server, err := mcp.NewServer(cfg, pdfService, logger)
	if err != nil {
		logger.Fatal("failed to create MCP server", zap.Error(err))
	}

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle different modes
	if cfg.IsServerMode() {
		runServerMode(ctx, cancel, server, logger)
	} else {
		runStdioMode(ctx, cancel, server, logger)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("MCP PDF Extract\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
