package pdf

import (
	"github.com/pagesift/mcp-pdf-extract/internal/pipeline"
)

// FileInfo represents information about a PDF file
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// Request Types

// PDFProcessFileRequest represents a request to run the full extraction
// pipeline on a PDF file
type PDFProcessFileRequest struct {
	Path string `json:"path"`
}

// PDFAnalyzeFileRequest represents a request to classify the pages of a
// PDF file without extracting content
type PDFAnalyzeFileRequest struct {
	Path string `json:"path"`
}

// PDFTablesFileRequest represents a request to detect tables in a PDF
// file using geometric analysis only
type PDFTablesFileRequest struct {
	Path string `json:"path"`
}

// PDFValidateFileRequest represents a request to validate a PDF file
type PDFValidateFileRequest struct {
	Path string `json:"path"`
}

// PDFSearchDirectoryRequest represents a request to search for PDF files in a directory
type PDFSearchDirectoryRequest struct {
	Directory string `json:"directory"`
	Query     string `json:"query"`
}

// PDFServerInfoRequest represents a request to get server information and capabilities
type PDFServerInfoRequest struct {
	// No parameters needed for server info
}

// Response Types

// PDFProcessFileResult represents the result of a full pipeline run.
// The embedded document result carries metadata, tables, text content
// and the processing summary.
type PDFProcessFileResult struct {
	Path string `json:"path"`
	pipeline.DocumentResult
}

// PDFAnalyzeFileResult represents the result of page classification
type PDFAnalyzeFileResult struct {
	Path         string                `json:"path"`
	TotalPages   int                   `json:"total_pages"`
	PageMetrics  []pipeline.PageMetric `json:"page_metrics"`
	NumericPages []pipeline.PageGroup  `json:"numeric_groups"`
	ComplexPages int                   `json:"complex_pages"`
}

// PDFTablesFileResult represents the result of geometric table detection
type PDFTablesFileResult struct {
	Path       string           `json:"path"`
	Tables     []pipeline.Table `json:"tables"`
	TotalCount int              `json:"total_count"`
}

// PDFValidateFileResult represents the result of a PDF validation operation
type PDFValidateFileResult struct {
	Valid     bool   `json:"valid"`
	Path      string `json:"path"`
	Message   string `json:"message,omitempty"`
	Pages     int    `json:"pages,omitempty"`
	Version   string `json:"version,omitempty"`
	Encrypted bool   `json:"encrypted,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// PDFSearchDirectoryResult represents the result of a PDF search operation
type PDFSearchDirectoryResult struct {
	Files       []FileInfo `json:"files"`
	TotalCount  int        `json:"total_count"`
	Directory   string     `json:"directory"`
	SearchQuery string     `json:"search_query,omitempty"`
}

// PDFServerInfoResult represents server information and usage guidance
type PDFServerInfoResult struct {
	ServerName        string     `json:"server_name"`
	Version           string     `json:"version"`
	DefaultDirectory  string     `json:"default_directory"`
	MaxFileSize       int64      `json:"max_file_size"`
	AIEnabled         bool       `json:"ai_enabled"`
	AvailableTools    []ToolInfo `json:"available_tools"`
	DirectoryContents []FileInfo `json:"directory_contents"`
	UsageGuidance     string     `json:"usage_guidance"`
	SupportedFormats  []string   `json:"supported_formats"`
}

// ToolInfo represents information about an available tool
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
	Parameters  string `json:"parameters"`
}
