package pipeline

import (
	"sort"

	"go.uber.org/zap"
)

// Reconstructor merges batch output, code-only pages, and natively
// detected tables into one ordered document model
type Reconstructor struct {
	logger *zap.Logger
}

// NewReconstructor creates a reconstructor
func NewReconstructor(logger *zap.Logger) *Reconstructor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconstructor{logger: logger}
}

// Merge builds the final page list and table list. Pages are keyed by
// page number with first insertion winning: batch pages are inserted
// before code-only pages, so a batch-produced page always beats a
// code-only page with the same number. The page list comes back sorted
// ascending. Tables are native detections first, then batch tables in
// batch order, with no deduplication.
func (r *Reconstructor) Merge(batches []BatchResult, codeOnly []Page, native []Table) ([]Page, []Table) {
	pageMap := make(map[int]Page)

	for _, batch := range batches {
		for _, page := range batch.Pages {
			if _, exists := pageMap[page.PageNumber]; exists {
				r.logger.Debug("duplicate batch page ignored",
					zap.Int("page_number", page.PageNumber))
				continue
			}
			pageMap[page.PageNumber] = page
		}
	}

	for _, page := range codeOnly {
		if _, exists := pageMap[page.PageNumber]; exists {
			continue
		}
		pageMap[page.PageNumber] = page
	}

	numbers := make([]int, 0, len(pageMap))
	for n := range pageMap {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	pages := make([]Page, 0, len(numbers))
	for _, n := range numbers {
		pages = append(pages, pageMap[n])
	}

	tables := make([]Table, 0, len(native))
	tables = append(tables, native...)
	for _, batch := range batches {
		tables = append(tables, batch.Tables...)
	}

	return pages, tables
}
