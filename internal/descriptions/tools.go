package descriptions

// Comprehensive tool descriptions with practical examples and use cases

const (
	PDFProcessFileDescription = `Run the full extraction pipeline on a PDF document: tables, text sections and numeric values.

**When to use:** Need structured data out of a PDF, especially financial reports, invoices, or any document mixing prose with numbers.

**Why it's useful:** Classifies every page by numeric complexity, routes dense numeric pages to AI extraction when configured, and always falls back to local extraction so every page of the document appears in the result.

**Examples:**
• Process a financial report: "Extract all tables and figures from q3-results.pdf"
• Digest an invoice batch: "Pull line items and totals out of invoice-2024-001.pdf"
• Mine a dataset: "Get every numeric value with its surrounding context from survey-data.pdf"

**Common workflows:**
1. Report Analysis: Process PDF → Inspect tables → Cross-check numbers against text sections
2. Data Ingestion: Process PDF → Feed structured JSON to downstream systems
3. Quality Review: Process PDF → Check processing_summary for quality score and errors

**Best practices:** Check extraction_methods in the response to see whether AI or local extraction produced the content; a low overall_quality_score usually means the document is mostly prose.`

	PDFAnalyzeFileDescription = `Classify the pages of a PDF by numeric complexity without extracting content.

**When to use:** Want to preview how a document will be processed, or need page-level metrics for routing decisions of your own.

**Why it's useful:** Shows per-page number counts, density and layout signals, plus the exact page groups that would be batched for AI extraction, before any expensive processing runs.

**Examples:**
• Preview processing: "How many pages of annual-report.pdf are numerically complex?"
• Plan extraction: "Which page ranges of ledger.pdf would go to AI extraction?"
• Triage documents: "Classify the pages of these PDFs to find the table-heavy ones"

**Common workflows:**
1. Cost Estimation: Analyze → Count complex pages → Estimate AI usage before processing
2. Routing: Analyze → Process only documents with numeric content
3. Debugging: Analyze → Understand why a page was or wasn't sent for AI extraction

**Best practices:** Pages categorized "none_or_low_numbers" are always processed locally; "probable_table" and "numeric_text" pages form the numeric_groups.`

	PDFTablesFileDescription = `Detect tables in a PDF using geometric analysis of word positions only.

**When to use:** Need table structure fast, without AI involvement, from digitally produced PDFs with aligned columns.

**Why it's useful:** Reconstructs rows and columns purely from text coordinates, so it works offline, costs nothing, and is deterministic.

**Examples:**
• Quick table scan: "Find the tables in price-list.pdf"
• Offline extraction: "Get table grids from statement.pdf without calling the AI backend"
• Verification: "Compare geometric table detection against the AI extraction for audit.pdf"

**Common workflows:**
1. Fast Path: Detect tables geometrically → Use directly when structure is simple
2. Fallback Check: Run after pdf_process_file to see what local detection alone would find
3. Layout Debugging: Inspect detected cell positions to understand a document's column structure

**Best practices:** Detection needs positioned word data; scanned PDFs without a text layer yield no tables. Confidence is fixed for geometric detection, so judge quality by row and column counts.`

	PDFValidateFileDescription = `Verify PDF file integrity and structure before processing.

**When to use:** Before attempting to process any PDF file, especially in automated workflows or when handling user uploads.

**Why it's useful:** Prevents processing errors, identifies corrupted files early, and reports page count, PDF version and encryption status from a structural parse.

**Examples:**
• Batch processing safety: "Validate all PDFs in /invoices/ before bulk extraction"
• Upload handling: "Check uploaded-file.pdf is a real PDF before queueing it"
• Encryption check: "Is contract.pdf encrypted?"

**Common workflows:**
1. Pre-flight: Validate → Process only files that pass
2. Intake: Validate uploads → Reject garbage early with the validation message
3. Inventory: Validate a directory of files → Record page counts and versions

**Best practices:** Validation failures come back in the result message rather than as errors, so always check the valid field.`

	PDFSearchDirectoryDescription = `Find PDF files in a directory with optional fuzzy filename matching.

**When to use:** Need to discover what PDF documents are available before processing them.

**Why it's useful:** Recursively walks the directory, skips unreadable and oversized files, and supports word-based fuzzy matching on filenames.

**Examples:**
• Discovery: "List all PDFs in the reports directory"
• Fuzzy search: "Find files matching 'quarterly revenue' in /documents"
• Filtered processing: "Search for invoice PDFs, then process each match"

**Common workflows:**
1. Discover → Validate → Process
2. Search with query → Present matches → Let the user pick
3. Periodic scan → Diff against processed list → Process new arrivals

**Best practices:** Leave directory empty to search the server's configured default directory; queries match against filename words split on common separators.`

	PDFServerInfoDescription = `Get server capabilities, configuration and usage guidance.

**When to use:** First contact with the server, or when you need the default directory, file size limits, or whether AI extraction is configured.

**Why it's useful:** Returns the available tools with usage notes, the contents of the default directory, and whether an AI extraction backend is enabled, all in one call.

**Examples:**
• Orientation: "What can this PDF server do?"
• Configuration check: "Is AI extraction enabled and what is the max file size?"
• Directory preview: "What PDFs are in the default directory?"

**Common workflows:**
1. Connect → Get server info → Choose tools based on capabilities
2. Check ai_enabled → Decide between pdf_process_file and pdf_tables_file
3. Read directory_contents → Pick a file → Process it

**Best practices:** Directory contents are limited to the first 100 files; use pdf_search_directory for a complete listing.`
)

// ToolDescriptions maps tool names to their comprehensive descriptions
var ToolDescriptions = map[string]string{
	"pdf_process_file":     PDFProcessFileDescription,
	"pdf_analyze_file":     PDFAnalyzeFileDescription,
	"pdf_tables_file":      PDFTablesFileDescription,
	"pdf_validate_file":    PDFValidateFileDescription,
	"pdf_search_directory": PDFSearchDirectoryDescription,
	"pdf_server_info":      PDFServerInfoDescription,
}

// GetToolDescription returns the comprehensive description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns a list of all available tool names
func GetAllToolNames() []string {
	var names []string
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	return names
}
