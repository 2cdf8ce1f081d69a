package pdf

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/pagesift/mcp-pdf-extract/internal/descriptions"
	"github.com/pagesift/mcp-pdf-extract/internal/pdf/security"
	"github.com/pagesift/mcp-pdf-extract/internal/pipeline"
)

// Service handles PDF document operations by orchestrating the
// extraction pipeline and the supporting components
type Service struct {
	maxFileSize   int64
	pipeline      *pipeline.Pipeline
	analyzer      *pipeline.PageAnalyzer
	detector      *pipeline.GeometricDetector
	validator     *Validator
	search        *Search
	pathValidator *security.PathValidator
	aiEnabled     bool
	logger        *zap.Logger
}

// NewService creates a new PDF service with all components. A nil
// client disables AI extraction and every document is processed with
// the local code path.
func NewService(maxFileSize int64, configuredDirectory string, cfg pipeline.Config,
	client pipeline.AIClient, logger *zap.Logger,
) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pathValidator, err := security.NewPathValidator(configuredDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}

	pipe := pipeline.New(cfg,
		pipeline.WithAIClient(client),
		pipeline.WithLogger(logger),
	)

	// The preview analyzer carries the same layout scorer as the full
	// pipeline so pdf_analyze_file and pdf_process_file agree on page
	// categories.
	scorer := pipeline.NewAlignmentScorer(cfg.XTolerance)

	return &Service{
		maxFileSize:   maxFileSize,
		pipeline:      pipe,
		analyzer:      pipeline.NewPageAnalyzer(cfg, nil, scorer, logger),
		detector:      pipeline.NewGeometricDetector(cfg, logger),
		validator:     NewValidator(maxFileSize),
		search:        NewSearch(maxFileSize),
		pathValidator: pathValidator,
		aiEnabled:     client != nil,
		logger:        logger,
	}, nil
}

// PDFProcessFile runs the full extraction pipeline on a PDF file.
// Files that cannot be opened still produce a result: a single empty
// page with the failure recorded in the processing errors.
func (s *Service) PDFProcessFile(ctx context.Context, req PDFProcessFileRequest) (*PDFProcessFileResult, error) {
	if err := s.pathValidator.ValidatePath(req.Path); err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	doc, err := OpenDocument(req.Path, s.maxFileSize, s.logger)
	if err != nil {
		s.logger.Warn("processing unopenable file",
			zap.String("path", req.Path),
			zap.Error(err))
		result := s.pipeline.Process(ctx, pipeline.EmptyDocument(filepath.Base(req.Path)))
		result.ProcessingSummary.ProcessingErrors = append(result.ProcessingSummary.ProcessingErrors, err.Error())
		return &PDFProcessFileResult{Path: req.Path, DocumentResult: result}, nil
	}
	defer doc.Close()

	result := s.pipeline.Process(ctx, doc)
	return &PDFProcessFileResult{Path: req.Path, DocumentResult: result}, nil
}

// PDFAnalyzeFile classifies the pages of a PDF file without running
// extraction
func (s *Service) PDFAnalyzeFile(ctx context.Context, req PDFAnalyzeFileRequest) (*PDFAnalyzeFileResult, error) {
	if err := s.pathValidator.ValidatePath(req.Path); err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	doc, err := OpenDocument(req.Path, s.maxFileSize, s.logger)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	metrics := s.analyzer.AnalyzePages(ctx, doc)
	groups := s.analyzer.GroupNumericPages(metrics)

	complexPages := 0
	for _, m := range metrics {
		if m.Category != pipeline.CategoryNoneOrLowNumbers {
			complexPages++
		}
	}

	return &PDFAnalyzeFileResult{
		Path:         req.Path,
		TotalPages:   doc.PageCount(),
		PageMetrics:  metrics,
		NumericPages: groups,
		ComplexPages: complexPages,
	}, nil
}

// PDFTablesFile runs geometric table detection over the pages flagged
// as numerically complex
func (s *Service) PDFTablesFile(ctx context.Context, req PDFTablesFileRequest) (*PDFTablesFileResult, error) {
	if err := s.pathValidator.ValidatePath(req.Path); err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	doc, err := OpenDocument(req.Path, s.maxFileSize, s.logger)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	tables := []pipeline.Table{}
	for _, m := range s.analyzer.AnalyzePages(ctx, doc) {
		if m.Category == pipeline.CategoryNoneOrLowNumbers {
			continue
		}
		words, err := doc.PageWords(m.PageIndex)
		if err != nil || len(words) == 0 {
			continue
		}
		tables = append(tables, s.detector.DetectTables(words, m.PageIndex+1)...)
	}

	return &PDFTablesFileResult{
		Path:       req.Path,
		Tables:     tables,
		TotalCount: len(tables),
	}, nil
}

// PDFValidateFile performs validation on a PDF file
func (s *Service) PDFValidateFile(req PDFValidateFileRequest) (*PDFValidateFileResult, error) {
	if err := s.pathValidator.ValidatePath(req.Path); err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	return s.validator.ValidateFile(req)
}

// PDFSearchDirectory searches for PDF files in a directory
func (s *Service) PDFSearchDirectory(req PDFSearchDirectoryRequest) (*PDFSearchDirectoryResult, error) {
	// If no directory specified, use configured directory
	if req.Directory == "" {
		req.Directory = s.pathValidator.Root()
	}

	// Validate directory is within configured bounds
	if err := s.pathValidator.ValidateDirectory(req.Directory); err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	return s.search.SearchDirectory(req)
}

// GetMaxFileSize returns the maximum file size limit
func (s *Service) GetMaxFileSize() int64 {
	return s.maxFileSize
}

// AIEnabled reports whether an AI extraction backend is configured
func (s *Service) AIEnabled() bool {
	return s.aiEnabled
}

// IsValidPDF performs a quick validation check on a file
func (s *Service) IsValidPDF(filePath string) bool {
	return s.validator.IsValidPDF(filePath)
}

// PDFServerInfo returns comprehensive server information and usage guidance
func (s *Service) PDFServerInfo(req PDFServerInfoRequest, serverName, version,
	defaultDirectory string,
) (*PDFServerInfoResult, error) {
	// Validate the default directory is within bounds
	validatedDir := defaultDirectory
	if err := s.pathValidator.ValidateDirectory(defaultDirectory); err != nil {
		// Use the configured directory if validation fails
		validatedDir = s.pathValidator.Root()
	}

	// Get directory contents with a timeout to prevent hanging
	// Limit to first 100 files for performance
	directoryContents := []FileInfo{}

	// Create a channel to receive results
	resultChan := make(chan []FileInfo, 1)
	errorChan := make(chan error, 1)

	// Run directory search in a goroutine with timeout
	go func() {
		files, err := s.search.FindPDFsInDirectoryLimited(validatedDir, 100)
		if err != nil {
			errorChan <- err
			return
		}
		resultChan <- files
	}()

	// Wait for result with timeout
	select {
	case files := <-resultChan:
		directoryContents = files
	case <-errorChan:
		// Don't fail completely if directory scan fails, just return empty contents
		directoryContents = []FileInfo{}
	case <-time.After(5 * time.Second):
		// Timeout after 5 seconds
		directoryContents = []FileInfo{}
	}

	availableTools := []ToolInfo{
		{
			Name:        "pdf_process_file",
			Description: descriptions.GetToolDescription("pdf_process_file"),
			Usage: "Use this tool to extract tables, text sections and numeric values from a PDF. " +
				"Numeric pages are routed to AI extraction when configured, with automatic local fallback.",
			Parameters: "path (required): Full absolute path to the PDF file",
		},
		{
			Name:        "pdf_analyze_file",
			Description: descriptions.GetToolDescription("pdf_analyze_file"),
			Usage: "Use this tool to preview how a document will be processed: per-page metrics, " +
				"the page groups that would be sent for AI extraction, and the complex page count.",
			Parameters: "path (required): Full absolute path to the PDF file",
		},
		{
			Name:        "pdf_tables_file",
			Description: descriptions.GetToolDescription("pdf_tables_file"),
			Usage: "Use this tool to find table structure from word positions without any AI calls. " +
				"Works best on digitally produced PDFs with aligned columns.",
			Parameters: "path (required): Full absolute path to the PDF file",
		},
		{
			Name:        "pdf_validate_file",
			Description: descriptions.GetToolDescription("pdf_validate_file"),
			Usage:       "Use this tool to check if a file is a valid PDF before attempting to process it.",
			Parameters:  "path (required): Full absolute path to the PDF file",
		},
		{
			Name:        "pdf_search_directory",
			Description: descriptions.GetToolDescription("pdf_search_directory"),
			Usage: "Use this tool to find PDF files in the default directory or any specified " +
				"directory. Supports fuzzy search by filename.",
			Parameters: "directory (optional): Directory path to search (uses default if empty), " +
				"query (optional): Search query for fuzzy matching",
		},
		{
			Name:        "pdf_server_info",
			Description: descriptions.GetToolDescription("pdf_server_info"),
			Usage:       "Use this tool to discover available tools and the configured default directory.",
			Parameters:  "none",
		},
	}

	usageGuidance := `PDF Extract MCP Server Usage Guide:

1. START WITH DISCOVERY:
   - Use 'pdf_search_directory' to find available PDF files
   - Use 'pdf_validate_file' to check a file before processing

2. UNDERSTAND THE DOCUMENT:
   - Use 'pdf_analyze_file' to see how pages are classified:
     * "probable_table": dense numeric layout, likely tabular
     * "numeric_text": numbers embedded in running text
     * "none_or_low_numbers": prose, processed locally
   - The numeric_groups field shows which page ranges would be
     batched for AI extraction

3. EXTRACT CONTENT:
   - Use 'pdf_process_file' for the full pipeline: tables, text
     sections and extracted numeric values for every page
   - Check processing_summary for quality score and any errors
   - extraction_methods tells you whether AI or local extraction
     produced the content

4. TABLES ONLY:
   - Use 'pdf_tables_file' for fast geometric table detection
     without AI involvement

IMPORTANT NOTES:
- Always use absolute file paths
- The server can handle files up to ` + fmt.Sprintf("%d", s.maxFileSize/(1024*1024)) + `MB
- Every page of the document appears in the result even when AI
  extraction is unavailable; the pipeline falls back to local
  number extraction and never drops pages`

	result := &PDFServerInfoResult{
		ServerName:        serverName,
		Version:           version,
		DefaultDirectory:  validatedDir,
		MaxFileSize:       s.maxFileSize,
		AIEnabled:         s.aiEnabled,
		AvailableTools:    availableTools,
		DirectoryContents: directoryContents,
		UsageGuidance:     usageGuidance,
		SupportedFormats:  []string{"pdf"},
	}

	return result, nil
}

// ValidateConfiguration validates the service configuration
func (s *Service) ValidateConfiguration() error {
	if s.maxFileSize <= 0 {
		return fmt.Errorf("maxFileSize must be greater than 0")
	}

	if s.maxFileSize > 1024*1024*1024 { // 1GB limit
		return fmt.Errorf("maxFileSize cannot exceed 1GB")
	}

	return nil
}
