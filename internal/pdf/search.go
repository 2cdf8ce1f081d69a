package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/pagesift/mcp-pdf-extract/internal/pdf/security"
)

// Search discovers PDF files on disk for the search and server-info
// tools. Walks skip unreadable entries, hidden directories and anything
// a symlink would carry outside the requested root; none of those abort
// the walk.
type Search struct {
	maxFileSize int64
	validator   *Validator
}

// NewSearch creates a search that reports only files the validator
// would accept, so discovery never lists a file processing would refuse
func NewSearch(maxFileSize int64) *Search {
	return &Search{
		maxFileSize: maxFileSize,
		validator:   NewValidator(maxFileSize),
	}
}

// SearchDirectory returns every valid PDF under req.Directory whose
// file name matches the optional query
func (s *Search) SearchDirectory(req PDFSearchDirectoryRequest) (*PDFSearchDirectoryResult, error) {
	query := strings.ToLower(strings.TrimSpace(req.Query))
	files, root, err := s.walkPDFs(req.Directory, 0, func(name string) bool {
		return matchesQuery(name, query)
	})
	if err != nil {
		return nil, err
	}

	return &PDFSearchDirectoryResult{
		Files:       files,
		TotalCount:  len(files),
		Directory:   root,
		SearchQuery: req.Query,
	}, nil
}

// FindPDFsInDirectoryLimited returns up to limit PDFs under directory
// in walk order. A limit of zero or less returns everything.
func (s *Search) FindPDFsInDirectoryLimited(directory string, limit int) ([]FileInfo, error) {
	files, _, err := s.walkPDFs(directory, limit, nil)
	return files, err
}

// walkPDFs collects valid PDFs under root in walk order. A nil accept
// takes every file name.
func (s *Search) walkPDFs(root string, limit int, accept func(name string) bool) ([]FileInfo, string, error) {
	if root == "" {
		return nil, "", fmt.Errorf("search directory is required")
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, "", fmt.Errorf("directory does not exist: %s", root)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, "", fmt.Errorf("resolving directory %s: %w", root, err)
	}

	// The fence keeps symlinked entries from carrying the walk outside
	// the tree being searched.
	fence, err := security.NewPathValidator(absRoot)
	if err != nil {
		return nil, "", err
	}

	var files []FileInfo
	err = filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if inside, err := fence.IsWithinRoot(path); err != nil || !inside {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != absRoot && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if limit > 0 && len(files) >= limit {
			return filepath.SkipAll
		}
		if !isPDFFile(d.Name()) {
			return nil
		}
		if accept != nil && !accept(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr // entry vanished mid-walk
		}
		if err := s.validator.ValidateFileInfo(path, info); err != nil {
			return nil //nolint:nilerr // empty or oversized, skip
		}

		files = append(files, FileInfo{
			Path:         path,
			Name:         d.Name(),
			Size:         info.Size(),
			ModifiedTime: info.ModTime().UTC().Format(time.RFC3339),
		})
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("walking %s: %w", absRoot, err)
	}

	return files, absRoot, nil
}

// isPDFFile matches on the extension alone; content checks belong to
// the validator
func isPDFFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// matchesQuery reports whether a file name satisfies the query. An
// empty query matches everything. A direct substring hit wins;
// otherwise every query token must appear inside some token of the
// name, so "q3 revenue" still finds "Revenue_Report_Q3.pdf".
func matchesQuery(name, query string) bool {
	if query == "" {
		return true
	}

	lower := strings.ToLower(name)
	if strings.Contains(lower, query) {
		return true
	}

	nameTokens := queryTokens(strings.TrimSuffix(lower, ".pdf"))
	for _, want := range queryTokens(query) {
		if !anyTokenContains(nameTokens, want) {
			return false
		}
	}
	return true
}

// queryTokens lowercases and splits on every non-alphanumeric rune
func queryTokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func anyTokenContains(tokens []string, want string) bool {
	for _, tok := range tokens {
		if strings.Contains(tok, want) {
			return true
		}
	}
	return false
}
