package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/pagesift/mcp-pdf-extract/internal/config"
	"github.com/pagesift/mcp-pdf-extract/internal/pdf"
	"github.com/pagesift/mcp-pdf-extract/internal/pipeline"
)

// Server represents the MCP server instance
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	mcpServer  *server.MCPServer
	logger     *zap.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, pdfService *pdf.Service, logger *zap.Logger) (*Server, error) {
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Create MCP server
	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		mcpServer:  mcpServer,
		logger:     logger,
	}

	// Register tools
	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	// Register PDF process file tool
	pdfProcessFileTool := mcp.NewTool(
		"pdf_process_file",
		mcp.WithDescription("Run the full extraction pipeline on a PDF file: tables, text sections and numeric values"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
		mcp.WithString("format",
			mcp.Description("Response format: 'text' (default) or 'json'"),
		),
	)
	s.mcpServer.AddTool(pdfProcessFileTool, s.handlePDFProcessFile)

	// Register PDF analyze file tool
	pdfAnalyzeFileTool := mcp.NewTool(
		"pdf_analyze_file",
		mcp.WithDescription("Classify the pages of a PDF file by numeric complexity without extracting content"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
	)
	s.mcpServer.AddTool(pdfAnalyzeFileTool, s.handlePDFAnalyzeFile)

	// Register PDF tables file tool
	pdfTablesFileTool := mcp.NewTool(
		"pdf_tables_file",
		mcp.WithDescription("Detect tables in a PDF file using geometric layout analysis only"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
	)
	s.mcpServer.AddTool(pdfTablesFileTool, s.handlePDFTablesFile)

	// Register PDF validate file tool
	pdfValidateFileTool := mcp.NewTool(
		"pdf_validate_file",
		mcp.WithDescription("Validate if a file is a readable PDF"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
	)
	s.mcpServer.AddTool(pdfValidateFileTool, s.handlePDFValidateFile)

	// Register PDF search directory tool
	pdfSearchDirectoryTool := mcp.NewTool(
		"pdf_search_directory",
		mcp.WithDescription("Search for PDF files in a directory with optional fuzzy search"),
		mcp.WithString("directory",
			mcp.Description("Directory path to search (uses default if empty)"),
		),
		mcp.WithString("query",
			mcp.Description("Optional search query for fuzzy matching"),
		),
	)
	s.mcpServer.AddTool(pdfSearchDirectoryTool, s.handlePDFSearchDirectory)

	// Register PDF server info tool
	pdfServerInfoTool := mcp.NewTool(
		"pdf_server_info",
		mcp.WithDescription("Get server information, available tools, directory contents, and usage guidance"),
	)
	s.mcpServer.AddTool(pdfServerInfoTool, s.handlePDFServerInfo)
}

// Handler functions
func (s *Server) handlePDFProcessFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	format := "text"
	if f, ok := request.GetArguments()["format"].(string); ok && f != "" {
		format = f
	}
	if format != "text" && format != "json" {
		return mcp.NewToolResultError(fmt.Sprintf("invalid format %q: must be 'text' or 'json'", format)), nil
	}

	req := pdf.PDFProcessFileRequest{Path: path}
	result, err := s.pdfService.PDFProcessFile(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if format == "json" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}

	return mcp.NewToolResultText(s.formatPDFProcessFileResult(result)), nil
}

func (s *Server) handlePDFAnalyzeFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := pdf.PDFAnalyzeFileRequest{Path: path}
	result, err := s.pdfService.PDFAnalyzeFile(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := s.formatPDFAnalyzeFileResult(result)
	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handlePDFTablesFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := pdf.PDFTablesFileRequest{Path: path}
	result, err := s.pdfService.PDFTablesFile(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := s.formatPDFTablesFileResult(result)
	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handlePDFValidateFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := pdf.PDFValidateFileRequest{Path: path}
	result, err := s.pdfService.PDFValidateFile(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var responseText string
	if result.Valid {
		responseText = fmt.Sprintf("PDF file %s is valid and readable", result.Path)
		if result.Pages > 0 {
			responseText += fmt.Sprintf(" (%d pages", result.Pages)
			if result.Version != "" {
				responseText += fmt.Sprintf(", version %s", result.Version)
			}
			responseText += fmt.Sprintf(", %d bytes)", result.SizeBytes)
		}
	} else {
		responseText = fmt.Sprintf("PDF validation failed for %s: %s", result.Path, result.Message)
	}

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handlePDFSearchDirectory(ctx context.Context, request mcp.CallToolRequest) (
	*mcp.CallToolResult, error,
) {
	args := request.GetArguments()

	directory := s.config.PDFDirectory // default
	if dir, ok := args["directory"].(string); ok && dir != "" {
		directory = dir
	}

	query := ""
	if q, ok := args["query"].(string); ok {
		query = q
	}

	req := pdf.PDFSearchDirectoryRequest{
		Directory: directory,
		Query:     query,
	}

	result, err := s.pdfService.PDFSearchDirectory(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var responseText string
	if result.TotalCount == 0 {
		responseText = fmt.Sprintf("No PDF files found in directory: %s", result.Directory)
		if result.SearchQuery != "" {
			responseText += fmt.Sprintf(" (searched for: %s)", result.SearchQuery)
		}
	} else {
		responseText = s.formatPDFSearchDirectoryResult(result)
	}

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handlePDFServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := pdf.PDFServerInfoRequest{}
	result, err := s.pdfService.PDFServerInfo(req, s.config.ServerName, s.config.Version, s.config.PDFDirectory)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := s.formatPDFServerInfoResult(result)
	return mcp.NewToolResultText(responseText), nil
}

// Formatting methods
func (s *Server) formatPDFProcessFileResult(result *pdf.PDFProcessFileResult) string {
	text := fmt.Sprintf("Successfully processed PDF: %s\n", result.Path)
	text += fmt.Sprintf("Pages: %d\n", result.DocumentMetadata.TotalPages)
	if len(result.DocumentMetadata.ExtractionMethods) > 0 {
		text += fmt.Sprintf("Extraction methods: %s\n", strings.Join(result.DocumentMetadata.ExtractionMethods, ", "))
	}
	text += fmt.Sprintf("Tables extracted: %d\n", result.ProcessingSummary.TablesExtracted)
	text += fmt.Sprintf("Text sections: %d\n", result.ProcessingSummary.TextSections)
	text += fmt.Sprintf("Numbers found: %d\n", result.ProcessingSummary.NumbersFound)
	text += fmt.Sprintf("Quality score: %.2f\n", result.ProcessingSummary.OverallQualityScore)

	if len(result.ProcessingSummary.ProcessingErrors) > 0 {
		text += "\n⚠️  Processing errors:\n"
		for _, procErr := range result.ProcessingSummary.ProcessingErrors {
			text += fmt.Sprintf("  • %s\n", procErr)
		}
	}

	if len(result.Tables.Tables) > 0 {
		text += "\nTables:\n"
		for i, table := range result.Tables.Tables {
			text += fmt.Sprintf("%d. %s (page %d, %d rows x %d columns, %s)\n",
				i+1, table.Name, table.Region.PageNumber, len(table.Rows), len(table.Columns),
				table.Metadata.DetectionMethod)
			text += s.formatTableRows(table, 10)
		}
	}

	text += "\nContent:\n"
	for _, page := range result.TextContent.Pages {
		text += fmt.Sprintf("\n--- Page %d ---\n", page.PageNumber)
		for _, section := range page.Sections {
			if section.Content != "" {
				text += section.Content + "\n"
			}
		}
		if len(page.Numbers) > 0 {
			text += fmt.Sprintf("Numbers on page: %s\n", s.formatNumberList(page.Numbers, 15))
		}
	}

	return text
}

func (s *Server) formatPDFAnalyzeFileResult(result *pdf.PDFAnalyzeFileResult) string {
	text := fmt.Sprintf("Page analysis for: %s\n", result.Path)
	text += fmt.Sprintf("Total pages: %d\n", result.TotalPages)
	text += fmt.Sprintf("Complex pages: %d\n", result.ComplexPages)

	if len(result.NumericPages) > 0 {
		groups := make([]string, 0, len(result.NumericPages))
		for _, g := range result.NumericPages {
			if g.StartPage == g.EndPage {
				groups = append(groups, fmt.Sprintf("%d", g.StartPage+1))
			} else {
				groups = append(groups, fmt.Sprintf("%d-%d", g.StartPage+1, g.EndPage+1))
			}
		}
		text += fmt.Sprintf("Numeric page groups: %s\n", strings.Join(groups, ", "))
	} else {
		text += "Numeric page groups: none\n"
	}

	text += "\nPer-page metrics:\n"
	for _, m := range result.PageMetrics {
		text += fmt.Sprintf("  Page %d: %s (%d numbers, density %.2f, table likeness %.2f)\n",
			m.PageIndex+1, m.Category, m.NumberCount, m.NumberDensity, m.Layout.TableLikeness)
	}

	return text
}

func (s *Server) formatPDFTablesFileResult(result *pdf.PDFTablesFileResult) string {
	if result.TotalCount == 0 {
		return fmt.Sprintf("No tables detected in: %s", result.Path)
	}

	text := fmt.Sprintf("Detected %d table(s) in: %s\n", result.TotalCount, result.Path)
	for i, table := range result.Tables {
		text += fmt.Sprintf("\n%d. %s\n", i+1, table.Name)
		text += fmt.Sprintf("   Page: %d\n", table.Region.PageNumber)
		text += fmt.Sprintf("   Dimensions: %d rows x %d columns\n", len(table.Rows), len(table.Columns))
		text += fmt.Sprintf("   Confidence: %.2f\n", table.Metadata.Confidence)
		text += s.formatTableRows(table, 10)
	}

	return text
}

// formatTableRows renders table rows as pipe separated cells, truncated
// for readability
func (s *Server) formatTableRows(table pipeline.Table, limit int) string {
	text := ""
	for i, row := range table.Rows {
		if i >= limit {
			text += fmt.Sprintf("   ... and %d more rows\n", len(table.Rows)-limit)
			break
		}
		text += fmt.Sprintf("   %s\n", strings.Join(row, " | "))
	}
	return text
}

func (s *Server) formatNumberList(numbers []pipeline.NumberMatch, limit int) string {
	values := make([]string, 0, len(numbers))
	for i, n := range numbers {
		if i >= limit {
			values = append(values, fmt.Sprintf("and %d more", len(numbers)-limit))
			break
		}
		values = append(values, n.OriginalText)
	}
	return strings.Join(values, ", ")
}

func (s *Server) formatPDFSearchDirectoryResult(result *pdf.PDFSearchDirectoryResult) string {
	text := fmt.Sprintf("Found %d PDF file(s) in directory: %s\n", result.TotalCount, result.Directory)
	if result.SearchQuery != "" {
		text += fmt.Sprintf("Search query: %s\n", result.SearchQuery)
	}
	text += "\nFiles:\n"

	for i, file := range result.Files {
		text += fmt.Sprintf("%d. %s\n", i+1, file.Name)
		text += fmt.Sprintf("   Path: %s\n", file.Path)
		text += fmt.Sprintf("   Size: %d bytes\n", file.Size)
		text += fmt.Sprintf("   Modified: %s\n", file.ModifiedTime)
		if i < len(result.Files)-1 {
			text += "\n"
		}
	}

	return text
}

func (s *Server) formatPDFServerInfoResult(result *pdf.PDFServerInfoResult) string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", result.ServerName, result.Version)
	text += fmt.Sprintf("📁 Default Directory: %s\n", result.DefaultDirectory)
	text += fmt.Sprintf("📏 Max File Size: %d MB\n", result.MaxFileSize/(1024*1024))
	text += fmt.Sprintf("🤖 AI Extraction: %s\n\n", map[bool]string{true: "enabled", false: "disabled (local extraction only)"}[result.AIEnabled])

	// Directory contents
	if len(result.DirectoryContents) > 0 {
		text += fmt.Sprintf("📂 Directory Contents (%d PDF files found):\n", len(result.DirectoryContents))
		for i, file := range result.DirectoryContents {
			if i >= 10 { // Limit to first 10 files for readability
				text += fmt.Sprintf("   ... and %d more files\n", len(result.DirectoryContents)-10)
				break
			}
			text += fmt.Sprintf("   %d. %s (%d bytes)\n", i+1, file.Name, file.Size)
		}
		text += "\n"
	} else {
		text += "📂 Directory Contents: No PDF files found in default directory\n\n"
	}

	// Available tools
	text += "🛠️  Available Tools:\n"
	for _, tool := range result.AvailableTools {
		text += fmt.Sprintf("\n• %s\n", tool.Name)
		text += fmt.Sprintf("  Description: %s\n", tool.Description)
		text += fmt.Sprintf("  Usage: %s\n", tool.Usage)
		text += fmt.Sprintf("  Parameters: %s\n", tool.Parameters)
	}

	// Supported formats
	if len(result.SupportedFormats) > 0 {
		text += "\n📄 Supported Formats:\n"
		for _, format := range result.SupportedFormats {
			text += fmt.Sprintf("  • %s\n", format)
		}
	}

	// Usage guidance
	text += "\n" + result.UsageGuidance

	return text
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	} else {
		return s.runStdioMode(ctx)
	}
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(_ context.Context) error {
	s.logger.Debug("starting PDF extraction MCP server in stdio mode",
		zap.String("pdf_directory", s.config.PDFDirectory),
		zap.Bool("ai_enabled", s.pdfService.AIEnabled()))

	// Use the mark3labs/mcp-go server.ServeStdio function
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode runs the server in HTTP server mode
func (s *Server) runServerMode(ctx context.Context) error {
	// For now, we'll just use stdio mode since the mark3labs library
	// handles the transport differently
	s.logger.Warn("server mode not yet implemented with mark3labs/mcp-go, falling back to stdio mode",
		zap.String("address", s.config.Address()))
	return s.runStdioMode(ctx)
}
