package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FailoverRouter dispatches page groups to the AI client and downgrades
// to local number extraction whenever the client is missing, declines,
// errors, or times out. It never fails a group: every group yields a
// BatchResult.
type FailoverRouter struct {
	client      AIClient
	extractor   *NumberExtractor
	timeout     time.Duration
	maxInFlight int
	logger      *zap.Logger
}

// NewFailoverRouter creates a router. A nil client routes every group
// through the local fallback.
func NewFailoverRouter(client AIClient, cfg Config, extractor *NumberExtractor, logger *zap.Logger) *FailoverRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if extractor == nil {
		extractor = NewNumberExtractor()
	}
	cfg = cfg.normalized()
	return &FailoverRouter{
		client:      client,
		extractor:   extractor,
		timeout:     cfg.AITimeout,
		maxInFlight: cfg.MaxConcurrentGroups,
		logger:      logger,
	}
}

// ProcessGroups produces one BatchResult per group, in group order.
// Group calls run concurrently up to the configured limit; ordering of
// the returned slice is independent of completion order. Page payloads
// are read from the document up front so the document is never accessed
// from more than one goroutine.
func (r *FailoverRouter) ProcessGroups(ctx context.Context, doc Document, groups []PageGroup) []BatchResult {
	if len(groups) == 0 {
		return nil
	}

	payloads := make([][]PagePayload, len(groups))
	for i, group := range groups {
		payloads[i] = r.buildPayloads(doc, group)
	}

	results := make([]BatchResult, len(groups))
	sem := make(chan struct{}, r.maxInFlight)
	var wg sync.WaitGroup

	for i := range groups {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = r.fallback(groups[i], payloads[i])
				return
			}
			results[i] = r.processGroup(ctx, groups[i], payloads[i])
		}(i)
	}
	wg.Wait()

	return results
}

// buildPayloads reads raw text for every page in the group. A page that
// cannot be read contributes an empty payload rather than dropping the
// page.
func (r *FailoverRouter) buildPayloads(doc Document, group PageGroup) []PagePayload {
	payloads := make([]PagePayload, 0, group.Len())
	for idx := group.StartPage; idx <= group.EndPage; idx++ {
		text, err := doc.PageText(idx)
		if err != nil {
			r.logger.Debug("page text unavailable for payload",
				zap.Int("page_index", idx),
				zap.Error(err))
			text = ""
		}
		payloads = append(payloads, PagePayload{PageNumber: idx + 1, Text: text})
	}
	return payloads
}

func (r *FailoverRouter) processGroup(ctx context.Context, group PageGroup, payloads []PagePayload) BatchResult {
	if r.client == nil {
		return r.fallback(group, payloads)
	}
	if !r.client.Available(ctx) {
		r.logger.Debug("ai client unavailable, using local extraction",
			zap.Int("start_page", group.StartPage),
			zap.Int("end_page", group.EndPage))
		return r.fallback(group, payloads)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	extraction, err := r.client.Extract(callCtx, payloads)
	if err != nil || extraction == nil {
		r.logger.Warn("ai extraction failed, using local extraction",
			zap.Int("start_page", group.StartPage),
			zap.Int("end_page", group.EndPage),
			zap.Error(err))
		return r.fallback(group, payloads)
	}

	return r.normalize(group, payloads, extraction)
}

// fallback builds the group result from local number extraction alone.
// The fallback path never produces tables.
func (r *FailoverRouter) fallback(group PageGroup, payloads []PagePayload) BatchResult {
	pages := make([]Page, 0, len(payloads))
	for _, payload := range payloads {
		pages = append(pages, buildLocalPage(r.extractor, payload.PageNumber, payload.Text))
	}

	return BatchResult{
		Group:   group,
		Method:  MethodNumberExtraction,
		Pages:   pages,
		Summary: fmt.Sprintf("Local extraction of pages %d-%d", group.StartPage+1, group.EndPage+1),
	}
}

// normalize makes a well-formed BatchResult out of a raw extraction.
// Missing identifiers, methods, sections, and the summary are filled
// in; fields the client did populate pass through unchanged.
func (r *FailoverRouter) normalize(group PageGroup, payloads []PagePayload, extraction *Extraction) BatchResult {
	tables := extraction.Tables
	if tables == nil {
		tables = []Table{}
	}
	for i := range tables {
		if tables[i].TableID == "" {
			tables[i].TableID = fmt.Sprintf("ai_g%d_t%d", group.StartPage, i)
		}
		if tables[i].Metadata.DetectionMethod == "" {
			tables[i].Metadata.DetectionMethod = MethodAIExtraction
		}
		if tables[i].Region.DetectionMethod == "" {
			tables[i].Region.DetectionMethod = MethodAIExtraction
		}
	}

	pages := make([]Page, 0, len(payloads))
	for _, payload := range payloads {
		sections := extraction.Sections[payload.PageNumber]
		if len(sections) == 0 {
			pages = append(pages, buildLocalPage(r.extractor, payload.PageNumber, payload.Text))
			continue
		}
		pages = append(pages, r.normalizePage(payload.PageNumber, sections))
	}

	summary := strings.TrimSpace(extraction.Summary)
	if summary == "" {
		summary = fmt.Sprintf("AI extraction of pages %d-%d", group.StartPage+1, group.EndPage+1)
	}

	return BatchResult{
		Group:   group,
		Method:  MethodAIExtraction,
		Tables:  tables,
		Pages:   pages,
		Summary: summary,
	}
}

func (r *FailoverRouter) normalizePage(pageNumber int, sections []Section) Page {
	normalized := make([]Section, 0, len(sections))
	var numbers []NumberMatch

	for i, section := range sections {
		if section.SectionID == "" {
			section.SectionID = fmt.Sprintf("page_%d_section_%d", pageNumber, i)
		}
		if section.WordCount == 0 {
			section.WordCount = len(strings.Fields(section.Content))
		}
		if section.Numbers == nil {
			section.Numbers = r.extractor.Extract(section.Content)
		}
		numbers = append(numbers, section.Numbers...)
		normalized = append(normalized, section)
	}

	return Page{PageNumber: pageNumber, Sections: normalized, Numbers: numbers}
}

// buildLocalPage wraps a page's raw text in a single section carrying
// the numbers the extractor recognized in it
func buildLocalPage(extractor *NumberExtractor, pageNumber int, text string) Page {
	numbers := extractor.Extract(text)
	section := Section{
		SectionID: fmt.Sprintf("page_%d_text", pageNumber),
		Content:   text,
		WordCount: len(strings.Fields(text)),
		LLMReady:  text != "",
		Numbers:   numbers,
	}
	return Page{
		PageNumber: pageNumber,
		Sections:   []Section{section},
		Numbers:    numbers,
	}
}
