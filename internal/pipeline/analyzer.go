package pipeline

import (
	"context"
	"math"
	"unicode/utf8"

	"go.uber.org/zap"
)

// PageAnalyzer classifies pages by numeric density and layout signals
// and groups contiguous complex pages into bounded batches
type PageAnalyzer struct {
	cfg       Config
	extractor *NumberExtractor
	scorer    LayoutScorer
	logger    *zap.Logger
}

// NewPageAnalyzer creates a page analyzer. A nil scorer disables the
// layout signal, which degrades classification to the numeric
// thresholds alone.
func NewPageAnalyzer(cfg Config, extractor *NumberExtractor, scorer LayoutScorer, logger *zap.Logger) *PageAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.normalized()
	if extractor == nil {
		extractor = NewNumberExtractor()
	}
	return &PageAnalyzer{
		cfg:       cfg,
		extractor: extractor,
		scorer:    scorer,
		logger:    logger,
	}
}

// AnalyzePages produces one PageMetric per page in page order. Page
// read failures degrade to empty input for that page; a cancelled
// context stops scanning but still emits a metric per remaining page so
// downstream coverage is preserved.
func (a *PageAnalyzer) AnalyzePages(ctx context.Context, doc Document) []PageMetric {
	count := doc.PageCount()
	metrics := make([]PageMetric, 0, count)

	for i := 0; i < count; i++ {
		if ctx.Err() != nil {
			metrics = append(metrics, PageMetric{PageIndex: i, Category: CategoryNoneOrLowNumbers})
			continue
		}

		text, err := doc.PageText(i)
		if err != nil {
			a.logger.Debug("page text unavailable",
				zap.Int("page_index", i),
				zap.Error(err))
			text = ""
		}

		numberCount := len(a.extractor.Extract(text))
		charCount := utf8.RuneCountInString(text)
		density := float64(numberCount) / math.Max(float64(charCount), 1) * 1000

		likeness := 0.0
		if a.scorer != nil {
			words, werr := doc.PageWords(i)
			if werr != nil {
				words = nil
			}
			likeness = a.scorer.Score(words, text)
		}

		metrics = append(metrics, PageMetric{
			PageIndex:     i,
			NumberCount:   numberCount,
			CharCount:     charCount,
			NumberDensity: density,
			Layout:        LayoutSignals{TableLikeness: likeness},
			Category:      a.classify(numberCount, density, likeness),
		})
	}

	a.logger.Debug("page analysis complete",
		zap.Int("pages", count),
		zap.Int("complex", countComplex(metrics)))

	return metrics
}

func (a *PageAnalyzer) classify(numberCount int, density, tableLikeness float64) PageCategory {
	if numberCount < a.cfg.MinNumbersPerPage && density < a.cfg.MinNumberDensity {
		return CategoryNoneOrLowNumbers
	}
	if tableLikeness >= a.cfg.MinTableLikeness {
		return CategoryProbableTable
	}
	return CategoryNumericText
}

// GroupNumericPages groups contiguous complex pages into batches no
// longer than MaxPagesPerGroup. A non-complex category or a gap in
// page indices closes the current run; chunking never merges across a
// run boundary, so complex pages [0,1,2] with cap 2 yield (0,1),(2,2).
func (a *PageAnalyzer) GroupNumericPages(metrics []PageMetric) []PageGroup {
	var groups []PageGroup
	runStart := -1
	prev := -1

	flush := func() {
		if runStart < 0 {
			return
		}
		for s := runStart; s <= prev; s += a.cfg.MaxPagesPerGroup {
			end := s + a.cfg.MaxPagesPerGroup - 1
			if end > prev {
				end = prev
			}
			groups = append(groups, PageGroup{StartPage: s, EndPage: end})
		}
		runStart = -1
	}

	for _, m := range metrics {
		if !isComplexCategory(m.Category) {
			flush()
			continue
		}
		if runStart >= 0 && m.PageIndex == prev+1 {
			prev = m.PageIndex
			continue
		}
		flush()
		runStart = m.PageIndex
		prev = m.PageIndex
	}
	flush()

	return groups
}

func isComplexCategory(c PageCategory) bool {
	return c == CategoryNumericText || c == CategoryProbableTable
}

func countComplex(metrics []PageMetric) int {
	n := 0
	for _, m := range metrics {
		if isComplexCategory(m.Category) {
			n++
		}
	}
	return n
}

// alignmentScorer derives table-likeness from how many words share
// left-edge columns across lines
type alignmentScorer struct {
	xTolerance float64
}

// NewAlignmentScorer creates the default layout scorer. Words whose
// left edges snap to the same xTolerance-wide bucket on at least half
// the lines count as aligned; the score is the aligned fraction.
func NewAlignmentScorer(xTolerance float64) LayoutScorer {
	if xTolerance <= 0 {
		xTolerance = DefaultConfig().XTolerance
	}
	return &alignmentScorer{xTolerance: xTolerance}
}

func (s *alignmentScorer) Score(words []Word, text string) float64 {
	if len(words) == 0 {
		return 0
	}

	lines := make(map[int]struct{})
	for _, w := range words {
		lines[w.LineID] = struct{}{}
	}
	if len(lines) < 2 {
		return 0
	}

	colCounts := make(map[int]int)
	for _, w := range words {
		colCounts[int(math.Round(w.X0/s.xTolerance))]++
	}

	minCount := len(lines) / 2
	if minCount < 2 {
		minCount = 2
	}

	alignedCols := 0
	alignedWords := 0
	for _, c := range colCounts {
		if c >= minCount {
			alignedCols++
			alignedWords += c
		}
	}
	if alignedCols < 2 {
		return 0
	}

	score := float64(alignedWords) / float64(len(words))
	if score > 1 {
		score = 1
	}
	return score
}

// NopLayoutScorer always reports zero table-likeness, restricting
// classification to the numeric thresholds
type NopLayoutScorer struct{}

func (NopLayoutScorer) Score(words []Word, text string) float64 {
	return 0
}
