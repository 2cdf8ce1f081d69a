// Package ai implements the chat-completions client used for AI-backed
// page extraction. It targets any OpenAI-compatible endpoint.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pagesift/mcp-pdf-extract/internal/pipeline"
)

const (
	defaultTimeout = 120 * time.Second
	defaultRetries = 3
	baseRetryDelay = 2 * time.Second

	systemPrompt = `You are a document data extraction engine. You receive the raw text of one or more document pages and return structured data as a single JSON object with this shape:
{"tables":[{"table_id":"string","name":"string","page_number":1,"columns":["..."],"rows":[["..."]],"confidence":0.0}],"pages":[{"page_number":1,"sections":[{"section_id":"string","content":"string"}]}],"summary":"string"}
Extract every table you can identify and split each page's prose into coherent sections. Respond with JSON only.`
)

// Config holds the connection settings for the extraction endpoint. An
// empty BaseURL or Model leaves the client unavailable, which routes
// all work to local extraction.
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	RequestTimeout    time.Duration
	MaxRetries        int
	RequestsPerSecond float64
	Burst             int
}

// Client calls an OpenAI-compatible chat-completions endpoint and maps
// the reply onto the pipeline extraction model. It satisfies
// pipeline.AIClient.
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a client. Zero timeout and retry values fall back
// to defaults; a zero rate leaves requests unthrottled.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultRetries
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		limiter: limiter,
		logger:  logger,
	}
}

// Available reports whether the client is configured well enough to
// attempt a call. It is a hint: Extract can still fail afterwards.
func (c *Client) Available(ctx context.Context) bool {
	return c.cfg.BaseURL != "" && c.cfg.Model != ""
}

// Extract sends the page texts to the model and parses the structured
// reply. The caller's context bounds the whole call including retries.
func (c *Client) Extract(ctx context.Context, pages []pipeline.PagePayload) (*pipeline.Extraction, error) {
	if !c.Available(ctx) {
		return nil, fmt.Errorf("ai client is not configured")
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages to extract")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	body := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: renderPages(pages)},
		},
		Temperature:    0,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	respBody, err := c.doPost(ctx, "/v1/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	payload, err := parseExtractionJSON(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("ai extraction response parsed",
		zap.Int("pages_sent", len(pages)),
		zap.Int("tables", len(payload.Tables)),
		zap.Int("response_pages", len(payload.Pages)))

	return payload.toExtraction(), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Model string `json:"model"`
}

// extractionPayload is the wire shape the model is instructed to emit
type extractionPayload struct {
	Tables []struct {
		TableID    string     `json:"table_id"`
		Name       string     `json:"name"`
		PageNumber int        `json:"page_number"`
		Columns    []string   `json:"columns"`
		Rows       [][]string `json:"rows"`
		Confidence float64    `json:"confidence"`
	} `json:"tables"`
	Pages []struct {
		PageNumber int `json:"page_number"`
		Sections   []struct {
			SectionID string `json:"section_id"`
			Content   string `json:"content"`
		} `json:"sections"`
	} `json:"pages"`
	Summary string `json:"summary"`
}

func (p *extractionPayload) toExtraction() *pipeline.Extraction {
	ex := &pipeline.Extraction{
		Sections: make(map[int][]pipeline.Section),
		Summary:  p.Summary,
	}

	for _, t := range p.Tables {
		rows := t.Rows
		cols := len(t.Columns)
		if cols == 0 && len(rows) > 0 {
			cols = len(rows[0])
		}
		ex.Tables = append(ex.Tables, pipeline.Table{
			TableID: t.TableID,
			Name:    t.Name,
			Region: pipeline.TableRegion{
				PageNumber:      t.PageNumber,
				DetectionMethod: pipeline.MethodAIExtraction,
			},
			Header:  pipeline.HeaderInfo{Cells: t.Columns, RowIndex: 0},
			Columns: t.Columns,
			Rows:    rows,
			Metadata: pipeline.TableMetadata{
				DetectionMethod: pipeline.MethodAIExtraction,
				CellCount:       len(rows) * cols,
				Confidence:      t.Confidence,
			},
		})
	}

	for _, page := range p.Pages {
		sections := make([]pipeline.Section, 0, len(page.Sections))
		for _, s := range page.Sections {
			sections = append(sections, pipeline.Section{
				SectionID: s.SectionID,
				Content:   s.Content,
				LLMReady:  s.Content != "",
			})
		}
		ex.Sections[page.PageNumber] = sections
	}

	return ex
}

// renderPages lays the group's pages out as delimited text blocks
func renderPages(pages []pipeline.PagePayload) string {
	var b strings.Builder
	for _, page := range pages {
		fmt.Fprintf(&b, "--- Page %d ---\n%s\n\n", page.PageNumber, page.Text)
	}
	return b.String()
}

// parseExtractionJSON parses the model's reply, tolerating markdown
// fences and surrounding prose around the JSON object
func parseExtractionJSON(content string) (*extractionPayload, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("parsing model response: %w", err)
	}
	return &payload, nil
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

// doPost posts JSON to the endpoint with retries on transient failures.
// 429 responses honor Retry-After when it is longer than the backoff.
func (c *Client) doPost(ctx context.Context, path string, body interface{}) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + path

	var lastErr error
	var retryAfter time.Duration
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := baseRetryDelay * time.Duration(1<<(attempt-1))
			if retryAfter > delay {
				delay = retryAfter
			}
			retryAfter = 0
			c.logger.Warn("retrying ai request",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("request to %s failed: %w", url, err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading response body: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return respBody, nil
		}

		lastErr = fmt.Errorf("ai api error %d: %s", resp.StatusCode, string(respBody))
		if !retryableStatusCode(resp.StatusCode) {
			return nil, lastErr
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
					retryAfter = time.Duration(seconds) * time.Second
					c.logger.Warn("rate limited by ai endpoint",
						zap.String("url", url),
						zap.Duration("retry_after", retryAfter))
				}
			}
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

var _ pipeline.AIClient = (*Client)(nil)
