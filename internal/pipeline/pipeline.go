package pipeline

import (
	"context"

	"go.uber.org/zap"
)

// Pipeline is the document processing orchestrator. It analyzes page
// complexity, routes complex page groups through the AI client with
// local failover, fills in code-only pages, runs geometric table
// detection when nothing else produced tables, and merges everything
// into a single DocumentResult.
//
// Process is total: it always returns a structurally valid result and
// never returns an error. All configuration is fixed at construction.
type Pipeline struct {
	cfg           Config
	extractor     *NumberExtractor
	analyzer      *PageAnalyzer
	detector      *GeometricDetector
	router        *FailoverRouter
	reconstructor *Reconstructor
	logger        *zap.Logger
}

// Option configures a Pipeline at construction time
type Option func(*options)

type options struct {
	client AIClient
	scorer LayoutScorer
	logger *zap.Logger
}

// WithAIClient wires the AI extraction client. Without it every group
// is handled by local number extraction.
func WithAIClient(client AIClient) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithLayoutScorer replaces the default alignment-based table-likeness
// scorer
func WithLayoutScorer(scorer LayoutScorer) Option {
	return func(o *options) {
		o.scorer = scorer
	}
}

// WithLogger sets the pipeline logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates a pipeline with the given thresholds. Zero or negative
// config values fall back to defaults.
func New(cfg Config, opts ...Option) *Pipeline {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	cfg = cfg.normalized()
	extractor := NewNumberExtractor()

	scorer := o.scorer
	if scorer == nil {
		scorer = NewAlignmentScorer(cfg.XTolerance)
	}

	return &Pipeline{
		cfg:           cfg,
		extractor:     extractor,
		analyzer:      NewPageAnalyzer(cfg, extractor, scorer, o.logger),
		detector:      NewGeometricDetector(cfg, o.logger),
		router:        NewFailoverRouter(o.client, cfg, extractor, o.logger),
		reconstructor: NewReconstructor(o.logger),
		logger:        o.logger,
	}
}

// Process runs the full pipeline over one document
func (p *Pipeline) Process(ctx context.Context, doc Document) DocumentResult {
	if doc == nil {
		doc = EmptyDocument("")
	}

	metrics := p.analyzer.AnalyzePages(ctx, doc)
	groups := p.analyzer.GroupNumericPages(metrics)
	batches := p.router.ProcessGroups(ctx, doc, groups)

	grouped := groupedPageSet(groups)
	codeOnly := p.buildCodeOnlyPages(doc, grouped)

	if totalBatchPages(batches) == 0 {
		// No page came back from routing at all. Rebuild every page
		// locally, ignoring the grouped set, so none is silently
		// dropped.
		p.logger.Debug("routing produced no pages, rebuilding all pages locally",
			zap.Int("page_count", doc.PageCount()))
		codeOnly = p.buildCodeOnlyPages(doc, nil)
	}

	var native []Table
	if totalBatchTables(batches) == 0 {
		native = p.detectNativeTables(doc, groups, metrics)
	}

	pages, tables := p.reconstructor.Merge(batches, codeOnly, native)

	result := DocumentResult{
		DocumentMetadata: DocumentMetadata{
			Filename:          doc.Filename(),
			TotalPages:        doc.PageCount(),
			ExtractionMethods: extractionMethods(batches, codeOnly, native),
		},
		Tables:            TableContent{Tables: tables},
		TextContent:       TextContent{Pages: pages},
		ProcessingSummary: buildSummary(pages, tables),
	}

	p.logger.Info("document processed",
		zap.String("filename", result.DocumentMetadata.Filename),
		zap.Int("pages", len(pages)),
		zap.Int("tables", len(tables)),
		zap.Int("groups", len(groups)))

	return result
}

// buildCodeOnlyPages extracts every page whose 0-based index is not in
// skip. A nil skip set rebuilds all pages.
func (p *Pipeline) buildCodeOnlyPages(doc Document, skip map[int]struct{}) []Page {
	var pages []Page
	for i := 0; i < doc.PageCount(); i++ {
		if _, ok := skip[i]; ok {
			continue
		}
		text, err := doc.PageText(i)
		if err != nil {
			p.logger.Debug("page text unavailable",
				zap.Int("page_index", i),
				zap.Error(err))
			text = ""
		}
		pages = append(pages, buildLocalPage(p.extractor, i+1, text))
	}
	return pages
}

// detectNativeTables runs geometric detection over grouped pages, or
// over complex-classified pages when no groups exist. Pages without
// positioned words are skipped.
func (p *Pipeline) detectNativeTables(doc Document, groups []PageGroup, metrics []PageMetric) []Table {
	var candidates []int
	if len(groups) > 0 {
		for _, g := range groups {
			for i := g.StartPage; i <= g.EndPage; i++ {
				candidates = append(candidates, i)
			}
		}
	} else {
		for _, m := range metrics {
			if isComplexCategory(m.Category) {
				candidates = append(candidates, m.PageIndex)
			}
		}
	}

	var tables []Table
	for _, idx := range candidates {
		words, err := doc.PageWords(idx)
		if err != nil || len(words) == 0 {
			continue
		}
		tables = append(tables, p.detector.DetectTables(words, idx+1)...)
	}
	return tables
}

func groupedPageSet(groups []PageGroup) map[int]struct{} {
	set := make(map[int]struct{})
	for _, g := range groups {
		for i := g.StartPage; i <= g.EndPage; i++ {
			set[i] = struct{}{}
		}
	}
	return set
}

func totalBatchPages(batches []BatchResult) int {
	n := 0
	for _, b := range batches {
		n += len(b.Pages)
	}
	return n
}

func totalBatchTables(batches []BatchResult) int {
	n := 0
	for _, b := range batches {
		n += len(b.Tables)
	}
	return n
}

// extractionMethods lists every method that contributed to the result,
// deduplicated in encounter order
func extractionMethods(batches []BatchResult, codeOnly []Page, native []Table) []string {
	seen := make(map[string]struct{})
	var methods []string
	add := func(m string) {
		if m == "" {
			return
		}
		if _, ok := seen[m]; ok {
			return
		}
		seen[m] = struct{}{}
		methods = append(methods, m)
	}

	for _, b := range batches {
		add(b.Method)
	}
	if len(codeOnly) > 0 {
		add(MethodNumberExtraction)
	}
	if len(native) > 0 {
		add(MethodGeometricGrid)
	}
	if methods == nil {
		methods = []string{MethodNumberExtraction}
	}
	return methods
}

func buildSummary(pages []Page, tables []Table) ProcessingSummary {
	sections := 0
	numbers := 0
	for _, page := range pages {
		sections += len(page.Sections)
		numbers += len(page.Numbers)
	}

	score := 0.5
	if len(tables) > 0 {
		score += 0.2
	}
	if numbers > 0 {
		score += 0.2
	}
	if sections > 0 {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}

	return ProcessingSummary{
		TablesExtracted:     len(tables),
		TextSections:        sections,
		NumbersFound:        numbers,
		OverallQualityScore: score,
		ProcessingErrors:    []string{},
	}
}
