package pipeline

import (
	"context"
	"time"
)

// NumberFormat identifies which pattern family matched a numeric token
type NumberFormat string

const (
	FormatCurrency   NumberFormat = "currency"
	FormatPercentage NumberFormat = "percentage"
	FormatDecimal    NumberFormat = "decimal"
	FormatScientific NumberFormat = "scientific_notation"
	FormatInteger    NumberFormat = "integer"
)

// PageCategory classifies how numerically complex a page is
type PageCategory string

const (
	CategoryNoneOrLowNumbers PageCategory = "none_or_low_numbers"
	CategoryProbableTable    PageCategory = "probable_table"
	CategoryNumericText      PageCategory = "numeric_text"
)

// Extraction method identifiers recorded on tables and document metadata
const (
	MethodAIExtraction     = "ai_extraction"
	MethodNumberExtraction = "number_extraction"
	MethodGeometricGrid    = "geometric_grid"
)

// Word is a positioned token on a page. Coordinates are PDF points with
// the origin at the lower left; LineID groups words that share a visual line.
type Word struct {
	Text   string  `json:"text"`
	X0     float64 `json:"x0"`
	Y0     float64 `json:"y0"`
	X1     float64 `json:"x1"`
	Y1     float64 `json:"y1"`
	LineID int     `json:"line_id"`
}

// Rectangle represents a rectangular region on a page
type Rectangle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NumberMatch is a single numeric literal recognized in raw text
type NumberMatch struct {
	Value        float64      `json:"value"`
	OriginalText string       `json:"original_text"`
	Context      string       `json:"context"`
	Format       NumberFormat `json:"format"`
	Confidence   float64      `json:"confidence"`
}

// LayoutSignals carries layout-derived evidence about a page
type LayoutSignals struct {
	TableLikeness float64 `json:"table_likeness"`
}

// PageMetric is the analyzer's per-page classification record.
// PageIndex is 0-based. Metrics are produced once and never mutated.
type PageMetric struct {
	PageIndex     int           `json:"page_index"`
	NumberCount   int           `json:"number_count"`
	CharCount     int           `json:"char_count"`
	NumberDensity float64       `json:"number_density"`
	Layout        LayoutSignals `json:"layout_signals"`
	Category      PageCategory  `json:"category"`
}

// PageGroup is an inclusive 0-based range of contiguous complex pages
type PageGroup struct {
	StartPage int `json:"start_page"`
	EndPage   int `json:"end_page"`
}

// Len returns the number of pages covered by the group
func (g PageGroup) Len() int {
	return g.EndPage - g.StartPage + 1
}

// Section is a unit of extracted text within a page. Sections are
// append-only: once constructed they are never mutated.
type Section struct {
	SectionID string        `json:"section_id"`
	Content   string        `json:"content"`
	WordCount int           `json:"word_count"`
	LLMReady  bool          `json:"llm_ready"`
	Numbers   []NumberMatch `json:"numbers"`
}

// Page is one unit of the reconstructed document, identified by its
// 1-based page number
type Page struct {
	PageNumber int           `json:"page_number"`
	Sections   []Section     `json:"sections"`
	Numbers    []NumberMatch `json:"numbers"`
}

// TableRegion locates a table on a specific page
type TableRegion struct {
	PageNumber      int       `json:"page_number"`
	BoundingBox     Rectangle `json:"bounding_box"`
	DetectionMethod string    `json:"detection_method"`
}

// HeaderInfo describes the header row of a table
type HeaderInfo struct {
	Cells    []string `json:"cells"`
	RowIndex int      `json:"row_index"`
}

// TableMetadata carries provenance and quality facts about a table
type TableMetadata struct {
	DetectionMethod string  `json:"detection_method"`
	CellCount       int     `json:"cell_count"`
	Confidence      float64 `json:"confidence"`
}

// Table is a reconstructed tabular structure. Rows include the header
// row; HeaderInfo.RowIndex marks which row it is.
type Table struct {
	TableID  string        `json:"table_id"`
	Name     string        `json:"name"`
	Region   TableRegion   `json:"region"`
	Header   HeaderInfo    `json:"header_info"`
	Columns  []string      `json:"columns"`
	Rows     [][]string    `json:"rows"`
	Metadata TableMetadata `json:"metadata"`
}

// PagePayload is one page of an AI extraction request
type PagePayload struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// Extraction is the normalized shape of an AI extraction response.
// Sections is keyed by 1-based page number.
type Extraction struct {
	Tables   []Table           `json:"tables"`
	Sections map[int][]Section `json:"sections"`
	Summary  string            `json:"summary"`
}

// BatchResult is the router's output for one page group
type BatchResult struct {
	Group   PageGroup `json:"group"`
	Method  string    `json:"method"`
	Tables  []Table   `json:"tables"`
	Pages   []Page    `json:"pages"`
	Summary string    `json:"summary"`
}

// DocumentMetadata describes the processed document as a whole
type DocumentMetadata struct {
	Filename          string   `json:"filename"`
	TotalPages        int      `json:"total_pages"`
	ExtractionMethods []string `json:"extraction_methods"`
}

// TableContent aggregates every table extracted from the document
type TableContent struct {
	Tables []Table `json:"tables"`
}

// TextContent aggregates the ordered page list
type TextContent struct {
	Pages []Page `json:"pages"`
}

// ProcessingSummary carries document-level counters and quality facts
type ProcessingSummary struct {
	TablesExtracted     int      `json:"tables_extracted"`
	TextSections        int      `json:"text_sections"`
	NumbersFound        int      `json:"numbers_found"`
	OverallQualityScore float64  `json:"overall_quality_score"`
	ProcessingErrors    []string `json:"processing_errors"`
}

// DocumentResult is the terminal aggregate produced by the pipeline.
// Pages are ordered by page number and unique; tables keep provenance
// via their metadata.
type DocumentResult struct {
	DocumentMetadata  DocumentMetadata  `json:"document_metadata"`
	Tables            TableContent      `json:"tables"`
	TextContent       TextContent       `json:"text_content"`
	ProcessingSummary ProcessingSummary `json:"processing_summary"`
}

// Document is the paginated page source the pipeline consumes. Page
// indices are 0-based. PageWords may return (nil, nil) when positioned
// tokens are unavailable; that silently disables geometric detection
// for the page.
type Document interface {
	Filename() string
	PageCount() int
	PageText(index int) (string, error)
	PageWords(index int) ([]Word, error)
}

// AIClient is the boundary to the external AI extraction capability.
// Available is a hint, not a guarantee: Extract may still fail and the
// caller must be ready to fall back.
type AIClient interface {
	Available(ctx context.Context) bool
	Extract(ctx context.Context, pages []PagePayload) (*Extraction, error)
}

// LayoutScorer produces the table-likeness signal used for page
// classification. Implementations must be pure and reentrant.
type LayoutScorer interface {
	Score(words []Word, text string) float64
}

// Config holds every pipeline threshold and tolerance. It is passed at
// construction and immutable for the lifetime of a Pipeline.
type Config struct {
	MinNumbersPerPage   int
	MinNumberDensity    float64
	MinTableLikeness    float64
	MaxPagesPerGroup    int
	XTolerance          float64
	MinTableRows        int
	MinTableCols        int
	MaxConcurrentGroups int
	AITimeout           time.Duration
}

// DefaultConfig returns the pipeline defaults
func DefaultConfig() Config {
	return Config{
		MinNumbersPerPage:   3,
		MinNumberDensity:    1.5,
		MinTableLikeness:    0.5,
		MaxPagesPerGroup:    5,
		XTolerance:          18.0,
		MinTableRows:        2,
		MinTableCols:        2,
		MaxConcurrentGroups: 3,
		AITimeout:           120 * time.Second,
	}
}

// normalized returns a copy with zero or negative values replaced by
// defaults so a partially filled Config cannot stall the pipeline
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.MinNumbersPerPage <= 0 {
		c.MinNumbersPerPage = def.MinNumbersPerPage
	}
	if c.MinNumberDensity <= 0 {
		c.MinNumberDensity = def.MinNumberDensity
	}
	if c.MinTableLikeness <= 0 {
		c.MinTableLikeness = def.MinTableLikeness
	}
	if c.MaxPagesPerGroup <= 0 {
		c.MaxPagesPerGroup = def.MaxPagesPerGroup
	}
	if c.XTolerance <= 0 {
		c.XTolerance = def.XTolerance
	}
	if c.MinTableRows <= 0 {
		c.MinTableRows = def.MinTableRows
	}
	if c.MinTableCols <= 0 {
		c.MinTableCols = def.MinTableCols
	}
	if c.MaxConcurrentGroups <= 0 {
		c.MaxConcurrentGroups = def.MaxConcurrentGroups
	}
	if c.AITimeout <= 0 {
		c.AITimeout = def.AITimeout
	}
	return c
}

// emptyDocument is the degenerate single-empty-page document used when
// a source cannot be opened
type emptyDocument struct {
	filename string
}

// EmptyDocument returns a minimal valid document with one empty page.
// It stands in for an unopenable source so downstream consumers always
// receive a structurally valid result.
func EmptyDocument(filename string) Document {
	return &emptyDocument{filename: filename}
}

func (d *emptyDocument) Filename() string {
	return d.filename
}

func (d *emptyDocument) PageCount() int {
	return 1
}

func (d *emptyDocument) PageText(index int) (string, error) {
	return "", nil
}

func (d *emptyDocument) PageWords(index int) ([]Word, error) {
	return nil, nil
}
