package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultLogStyle    = "terminal"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB

	// AI extraction defaults; an empty base URL leaves AI disabled
	DefaultAITimeout    = 120 // seconds
	DefaultAIMaxRetries = 3

	// Pipeline threshold defaults, mirrored from the pipeline package so
	// flags and env vars surface the same numbers the pipeline falls
	// back to
	DefaultMinNumbersPerPage   = 3
	DefaultMinNumberDensity    = 1.5
	DefaultMinTableLikeness    = 0.5
	DefaultMaxPagesPerGroup    = 5
	DefaultXTolerance          = 18.0
	DefaultMinTableRows        = 2
	DefaultMinTableCols        = 2
	DefaultMaxConcurrentGroups = 3
)

// Config holds all configuration for the PDF extraction MCP server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// PDF configuration
	PDFDirectory string
	MaxFileSize  int64 // Maximum PDF file size in bytes

	// AI extraction backend. AI extraction is enabled only when both
	// the base URL and the model are set; otherwise every document is
	// processed with the local code path.
	AIBaseURL    string
	AIAPIKey     string
	AIModel      string
	AITimeout    int // seconds per extraction call
	AIMaxRetries int
	AIRPS        float64 // requests per second, 0 = unthrottled

	// Pipeline thresholds
	MinNumbersPerPage   int
	MinNumberDensity    float64
	MinTableLikeness    float64
	MaxPagesPerGroup    int
	XTolerance          float64
	MinTableRows        int
	MinTableCols        int
	MaxConcurrentGroups int

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
	LogStyle   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}

	return &Config{
		Mode:         ModeStdio, // Default to stdio mode for MCP compatibility
		Host:         DefaultHost,
		Port:         DefaultPort,
		PDFDirectory: currentDir,
		MaxFileSize:  DefaultMaxFileSize,

		AITimeout:    DefaultAITimeout,
		AIMaxRetries: DefaultAIMaxRetries,

		MinNumbersPerPage:   DefaultMinNumbersPerPage,
		MinNumberDensity:    DefaultMinNumberDensity,
		MinTableLikeness:    DefaultMinTableLikeness,
		MaxPagesPerGroup:    DefaultMaxPagesPerGroup,
		XTolerance:          DefaultXTolerance,
		MinTableRows:        DefaultMinTableRows,
		MinTableCols:        DefaultMinTableCols,
		MaxConcurrentGroups: DefaultMaxConcurrentGroups,

		Version:    "1.0.0",
		ServerName: "mcp-pdf-extract",
		LogLevel:   DefaultLogLevel,
		LogStyle:   DefaultLogStyle,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths if needed
	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and
// defaults. Flag names map to env vars by upper-casing and replacing
// dashes, e.g. --log-level becomes MCP_PDF_LOG_LEVEL.
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("MCP_PDF")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.PDFDirectory)
	viper.SetDefault("log-level", cfg.LogLevel)
	viper.SetDefault("log-style", cfg.LogStyle)
	viper.SetDefault("max-file-size", cfg.MaxFileSize)

	viper.SetDefault("ai-base-url", cfg.AIBaseURL)
	viper.SetDefault("ai-api-key", cfg.AIAPIKey)
	viper.SetDefault("ai-model", cfg.AIModel)
	viper.SetDefault("ai-timeout", cfg.AITimeout)
	viper.SetDefault("ai-max-retries", cfg.AIMaxRetries)
	viper.SetDefault("ai-rps", cfg.AIRPS)

	viper.SetDefault("min-numbers-per-page", cfg.MinNumbersPerPage)
	viper.SetDefault("min-number-density", cfg.MinNumberDensity)
	viper.SetDefault("min-table-likeness", cfg.MinTableLikeness)
	viper.SetDefault("max-pages-per-group", cfg.MaxPagesPerGroup)
	viper.SetDefault("x-tolerance", cfg.XTolerance)
	viper.SetDefault("min-table-rows", cfg.MinTableRows)
	viper.SetDefault("min-table-cols", cfg.MinTableCols)
	viper.SetDefault("max-concurrent-groups", cfg.MaxConcurrentGroups)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.PDFDirectory, "Directory containing PDF files")
	pflag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.String("log-style", cfg.LogStyle, "Log style (terminal, json, logfmt, noop)")
	pflag.Int64("max-file-size", cfg.MaxFileSize, "Maximum PDF file size in bytes")

	pflag.String("ai-base-url", cfg.AIBaseURL, "Base URL of an OpenAI-compatible extraction endpoint (empty disables AI)")
	pflag.String("ai-api-key", cfg.AIAPIKey, "API key for the AI extraction endpoint")
	pflag.String("ai-model", cfg.AIModel, "Model name for AI extraction")
	pflag.Int("ai-timeout", cfg.AITimeout, "Timeout in seconds for one AI extraction call")
	pflag.Int("ai-max-retries", cfg.AIMaxRetries, "Retry attempts for transient AI request failures")
	pflag.Float64("ai-rps", cfg.AIRPS, "AI request rate limit in requests per second (0 = unthrottled)")

	pflag.Int("min-numbers-per-page", cfg.MinNumbersPerPage, "Minimum numeric matches for a page to count as numeric")
	pflag.Float64("min-number-density", cfg.MinNumberDensity, "Minimum numbers per 1000 characters for a page to count as numeric")
	pflag.Float64("min-table-likeness", cfg.MinTableLikeness, "Layout score above which a numeric page is classified as a probable table")
	pflag.Int("max-pages-per-group", cfg.MaxPagesPerGroup, "Maximum contiguous pages per AI extraction batch")
	pflag.Float64("x-tolerance", cfg.XTolerance, "Horizontal tolerance in points for geometric table detection")
	pflag.Int("min-table-rows", cfg.MinTableRows, "Minimum rows for an accepted geometric table")
	pflag.Int("min-table-cols", cfg.MinTableCols, "Minimum columns for an accepted geometric table")
	pflag.Int("max-concurrent-groups", cfg.MaxConcurrentGroups, "Concurrent AI extraction calls across page groups")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, key := range []string{
		"mode", "host", "port", "dir", "log-level", "log-style", "max-file-size",
		"ai-base-url", "ai-api-key", "ai-model", "ai-timeout", "ai-max-retries", "ai-rps",
		"min-numbers-per-page", "min-number-density", "min-table-likeness",
		"max-pages-per-group", "x-tolerance", "min-table-rows", "min-table-cols",
		"max-concurrent-groups",
	} {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP PDF Extract - A Model Context Protocol server that extracts tables "+
			"and numeric data from PDF files\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                         "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/pdfs                     "+
			"# stdio mode with custom directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --dir=/path/to/pdfs       # server mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --ai-base-url=https://api.example.com --ai-model=gpt-4o-mini "+
			"# enable AI extraction\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_MODE           Server mode\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_HOST           Server host\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_PORT           Server port\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_DIR            PDF directory\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_LOG_LEVEL      Log level\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_LOG_STYLE      Log style\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_MAX_FILE_SIZE  Maximum file size\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_AI_BASE_URL    AI endpoint base URL\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_AI_API_KEY     AI endpoint API key\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_AI_MODEL       AI model name\n")
		fmt.Fprintf(os.Stderr, "\nEvery flag can be set through the environment with the MCP_PDF_ prefix"+
			" (dashes become underscores).\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.PDFDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("log-level")
	cfg.LogStyle = viper.GetString("log-style")
	cfg.MaxFileSize = viper.GetInt64("max-file-size")

	cfg.AIBaseURL = viper.GetString("ai-base-url")
	cfg.AIAPIKey = viper.GetString("ai-api-key")
	cfg.AIModel = viper.GetString("ai-model")
	cfg.AITimeout = viper.GetInt("ai-timeout")
	cfg.AIMaxRetries = viper.GetInt("ai-max-retries")
	cfg.AIRPS = viper.GetFloat64("ai-rps")

	cfg.MinNumbersPerPage = viper.GetInt("min-numbers-per-page")
	cfg.MinNumberDensity = viper.GetFloat64("min-number-density")
	cfg.MinTableLikeness = viper.GetFloat64("min-table-likeness")
	cfg.MaxPagesPerGroup = viper.GetInt("max-pages-per-group")
	cfg.XTolerance = viper.GetFloat64("x-tolerance")
	cfg.MinTableRows = viper.GetInt("min-table-rows")
	cfg.MinTableCols = viper.GetInt("min-table-cols")
	cfg.MaxConcurrentGroups = viper.GetInt("max-concurrent-groups")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// Validate PDF directory. The directory is not created and not
	// required to exist yet; placeholder paths resolve at first use.
	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}
	if info, err := os.Stat(c.PDFDirectory); err == nil && !info.IsDir() {
		return fmt.Errorf("PDF directory is not a directory: %s", c.PDFDirectory)
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	// Validate log style
	validLogStyles := map[string]bool{
		"terminal": true,
		"json":     true,
		"logfmt":   true,
		"noop":     true,
	}
	if !validLogStyles[c.LogStyle] {
		return fmt.Errorf("invalid log style: %s (must be one of: terminal, json, logfmt, noop)", c.LogStyle)
	}

	// Validate AI settings. Base URL and model only make sense together.
	if (c.AIBaseURL == "") != (c.AIModel == "") {
		return errors.New("ai-base-url and ai-model must be set together")
	}
	if c.AITimeout <= 0 {
		return errors.New("ai-timeout must be positive")
	}
	if c.AIMaxRetries < 0 {
		return errors.New("ai-max-retries cannot be negative")
	}
	if c.AIRPS < 0 {
		return errors.New("ai-rps cannot be negative")
	}

	// Validate pipeline thresholds
	if c.MinNumbersPerPage <= 0 {
		return errors.New("min-numbers-per-page must be positive")
	}
	if c.MinNumberDensity <= 0 {
		return errors.New("min-number-density must be positive")
	}
	if c.MinTableLikeness <= 0 {
		return errors.New("min-table-likeness must be positive")
	}
	if c.MaxPagesPerGroup <= 0 {
		return errors.New("max-pages-per-group must be positive")
	}
	if c.XTolerance <= 0 {
		return errors.New("x-tolerance must be positive")
	}
	if c.MinTableRows <= 0 {
		return errors.New("min-table-rows must be positive")
	}
	if c.MinTableCols <= 0 {
		return errors.New("min-table-cols must be positive")
	}
	if c.MaxConcurrentGroups <= 0 {
		return errors.New("max-concurrent-groups must be positive")
	}

	return nil
}

// AIEnabled reports whether an AI extraction backend is configured
func (c *Config) AIEnabled() bool {
	return c.AIBaseURL != "" && c.AIModel != ""
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, LogLevel: %s, "+
		"MaxFileSize: %d, AIEnabled: %t}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.LogLevel, c.MaxFileSize, c.AIEnabled())
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
