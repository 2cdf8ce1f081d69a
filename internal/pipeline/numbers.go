package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const contextWindow = 50

// numberPattern pairs a format with its compiled expression and the
// fixed confidence assigned to its matches
type numberPattern struct {
	format     NumberFormat
	re         *regexp.Regexp
	confidence float64
}

// The five pattern families are applied independently: a single token
// such as "$1,500.00" may be reported under currency and again under
// integer or decimal. That redundancy is intentional lax recall;
// consumers that need uniqueness dedupe downstream.
var numberPatterns = []numberPattern{
	{FormatCurrency, regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d+)?`), 0.95},
	{FormatPercentage, regexp.MustCompile(`-?\d+(?:\.\d+)?\s?%`), 0.95},
	{FormatScientific, regexp.MustCompile(`-?\d+(?:\.\d+)?[eE][+-]?\d+`), 0.90},
	{FormatDecimal, regexp.MustCompile(`-?\d{1,3}(?:,\d{3})+\.\d+|-?\d+\.\d+`), 0.85},
	{FormatInteger, regexp.MustCompile(`\b\d{1,3}(?:,\d{3})+\b|\b\d+\b`), 0.75},
}

var numberNormalizer = strings.NewReplacer("$", "", ",", "", "%", "", " ", "")

// NumberExtractor recognizes numeric literals in raw text. It holds no
// page or document state and is safe for concurrent use.
type NumberExtractor struct{}

// NewNumberExtractor creates a new number extractor
func NewNumberExtractor() *NumberExtractor {
	return &NumberExtractor{}
}

// Extract applies every pattern family against the text and returns
// all matches with their surrounding context. Malformed tokens are
// never dropped: a failed numeric conversion yields Value 0.0 so
// callers need not special-case parse errors.
func (e *NumberExtractor) Extract(text string) []NumberMatch {
	if text == "" {
		return nil
	}

	var matches []NumberMatch
	for _, p := range numberPatterns {
		locs := p.re.FindAllStringIndex(text, -1)
		for _, loc := range locs {
			token := text[loc[0]:loc[1]]
			matches = append(matches, NumberMatch{
				Value:        parseNumericValue(token),
				OriginalText: token,
				Context:      contextAround(text, loc[0], loc[1]),
				Format:       p.format,
				Confidence:   p.confidence,
			})
		}
	}

	return matches
}

// parseNumericValue strips currency, separator and percent characters
// before float conversion; failures degrade to 0.0
func parseNumericValue(token string) float64 {
	cleaned := numberNormalizer.Replace(token)
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0.0
	}
	return value
}

// contextAround returns the text surrounding a match, clamped to the
// text bounds. The byte offsets are walked onto rune boundaries before
// slicing so multibyte text never yields a context with a split rune.
func contextAround(text string, start, end int) string {
	from := start - contextWindow
	if from < 0 {
		from = 0
	}
	to := end + contextWindow
	if to > len(text) {
		to = len(text)
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return text[from:to]
}
