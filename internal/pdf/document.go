package pdf

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/pagesift/mcp-pdf-extract/internal/pipeline"
)

const (
	// rowTolerance is the Y distance within which characters belong to
	// the same visual line
	rowTolerance = 3.0
	// wordSpaceMultiplier scales font size into the X gap that splits
	// words; minWordGap is the fallback when font size is unknown
	wordSpaceMultiplier = 0.3
	minWordGap          = 3.0
)

// Document is an open PDF serving per-page text and positioned words
// to the pipeline. Page reads are cached; the cache and the underlying
// reader are guarded by a mutex, so a Document is safe for concurrent
// use. Close releases the file handle.
type Document struct {
	path   string
	file   *os.File
	reader *pdf.Reader
	logger *zap.Logger

	mu        sync.Mutex
	textCache map[int]string
	wordCache map[int][]pipeline.Word
}

// OpenDocument opens a PDF for pipeline processing. It rejects
// directories, files without a .pdf extension, and files above
// maxFileSize before parsing.
func OpenDocument(path string, maxFileSize int64, logger *zap.Logger) (*Document, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}
	if fileInfo.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return nil, fmt.Errorf("file is not a PDF: %s", path)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max: %d bytes)",
			fileInfo.Size(), maxFileSize)
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	return &Document{
		path:      path,
		file:      f,
		reader:    reader,
		logger:    logger,
		textCache: make(map[int]string),
		wordCache: make(map[int][]pipeline.Word),
	}, nil
}

// Close releases the underlying file handle
func (d *Document) Close() error {
	return d.file.Close()
}

// Filename returns the base name of the document
func (d *Document) Filename() string {
	return filepath.Base(d.path)
}

// PageCount returns the number of pages
func (d *Document) PageCount() int {
	return d.reader.NumPage()
}

// PageText extracts plain text for the 0-based page index. Parse
// panics from malformed content streams are recovered and surfaced as
// errors.
func (d *Document) PageText(index int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if text, ok := d.textCache[index]; ok {
		return text, nil
	}
	if index < 0 || index >= d.reader.NumPage() {
		return "", fmt.Errorf("page index %d out of range", index)
	}

	page := d.reader.Page(index + 1)
	if page.V.IsNull() {
		d.textCache[index] = ""
		return "", nil
	}

	text, err := safePageText(page)
	if err != nil {
		d.logger.Warn("page text extraction failed",
			zap.String("file", d.path),
			zap.Int("page_index", index),
			zap.Error(err))
		return "", err
	}

	d.textCache[index] = text
	return text, nil
}

// PageWords extracts positioned word tokens for the 0-based page
// index. Pages without usable character positions yield nil, which
// disables geometric detection for the page.
func (d *Document) PageWords(index int) ([]pipeline.Word, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if words, ok := d.wordCache[index]; ok {
		return words, nil
	}
	if index < 0 || index >= d.reader.NumPage() {
		return nil, fmt.Errorf("page index %d out of range", index)
	}

	page := d.reader.Page(index + 1)
	if page.V.IsNull() {
		d.wordCache[index] = nil
		return nil, nil
	}

	texts, err := safePageContent(page)
	if err != nil {
		d.logger.Warn("page content extraction failed",
			zap.String("file", d.path),
			zap.Int("page_index", index),
			zap.Error(err))
		return nil, err
	}

	words := assembleWords(texts)
	d.wordCache[index] = words
	return words, nil
}

// safePageText wraps GetPlainText with panic recovery; ledongthuc
// panics on some malformed content streams
func safePageText(page pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page parsing panic: %v", r)
		}
	}()
	return page.GetPlainText(nil)
}

// safePageContent wraps Content with the same panic recovery
func safePageContent(page pdf.Page) (texts []pdf.Text, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page parsing panic: %v", r)
		}
	}()
	return page.Content().Text, nil
}

// assembleWords turns raw character runs into positioned words: group
// into visual lines by Y, sort each line by X, and merge characters
// whose gap stays under the font-scaled word threshold
func assembleWords(texts []pdf.Text) []pipeline.Word {
	chars := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		chars = append(chars, t)
	}
	if len(chars) == 0 {
		return nil
	}

	// Top to bottom. PDF Y grows upward.
	sort.Slice(chars, func(i, j int) bool {
		return chars[i].Y > chars[j].Y
	})

	var lines [][]pdf.Text
	line := []pdf.Text{chars[0]}
	for _, c := range chars[1:] {
		if math.Abs(c.Y-line[len(line)-1].Y) > rowTolerance {
			lines = append(lines, line)
			line = nil
		}
		line = append(line, c)
	}
	lines = append(lines, line)

	var words []pipeline.Word
	for lineID, line := range lines {
		sort.Slice(line, func(i, j int) bool {
			return line[i].X < line[j].X
		})
		words = append(words, mergeLineChars(line, lineID)...)
	}
	return words
}

// mergeLineChars joins an X-sorted line of characters into words
func mergeLineChars(line []pdf.Text, lineID int) []pipeline.Word {
	var words []pipeline.Word
	var cur *pipeline.Word

	flush := func() {
		if cur != nil {
			words = append(words, *cur)
			cur = nil
		}
	}

	for _, c := range line {
		if cur != nil {
			gap := c.X - cur.X1
			threshold := wordSpaceMultiplier * c.FontSize
			if threshold <= 0 {
				threshold = minWordGap
			}
			if gap <= threshold {
				cur.Text += c.S
				cur.X1 = c.X + c.W
				cur.Y0 = math.Min(cur.Y0, c.Y)
				cur.Y1 = math.Max(cur.Y1, c.Y+c.FontSize)
				continue
			}
			flush()
		}
		cur = &pipeline.Word{
			Text:   c.S,
			X0:     c.X,
			Y0:     c.Y,
			X1:     c.X + c.W,
			Y1:     c.Y + c.FontSize,
			LineID: lineID,
		}
	}
	flush()
	return words
}

var _ pipeline.Document = (*Document)(nil)
