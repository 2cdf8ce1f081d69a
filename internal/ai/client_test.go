package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagesift/mcp-pdf-extract/internal/pipeline"
)

const extractionJSON = `{
	"tables": [{
		"table_id": "revenue_q3",
		"name": "Q3 Revenue",
		"page_number": 2,
		"columns": ["Metric", "Value"],
		"rows": [["Metric", "Value"], ["Revenue", "$1,000"]],
		"confidence": 0.9
	}],
	"pages": [{
		"page_number": 2,
		"sections": [{"section_id": "page_2_overview", "content": "Revenue grew to $1,000."}]
	}],
	"summary": "Quarterly revenue summary"
}`

func chatReply(t *testing.T, content string) []byte {
	t.Helper()
	reply := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]interface{}{"content": content}},
		},
		"model": "test-model",
	}
	data, err := json.Marshal(reply)
	require.NoError(t, err)
	return data
}

func testPages() []pipeline.PagePayload {
	return []pipeline.PagePayload{{PageNumber: 2, Text: "Revenue grew to $1,000."}}
}

func TestClientAvailable(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"fully_configured", Config{BaseURL: "http://localhost:1234", Model: "m"}, true},
		{"missing_model", Config{BaseURL: "http://localhost:1234"}, false},
		{"missing_base_url", Config{Model: "m"}, false},
		{"empty", Config{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(tt.cfg, nil)
			assert.Equal(t, tt.want, c.Available(context.Background()))
		})
	}
}

func TestClientExtractSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "--- Page 2 ---")
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)

		w.Write(chatReply(t, extractionJSON))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key", Model: "test-model"}, nil)

	extraction, err := client.Extract(context.Background(), testPages())
	require.NoError(t, err)
	require.NotNil(t, extraction)

	require.Len(t, extraction.Tables, 1)
	table := extraction.Tables[0]
	assert.Equal(t, "revenue_q3", table.TableID)
	assert.Equal(t, 2, table.Region.PageNumber)
	assert.Equal(t, pipeline.MethodAIExtraction, table.Metadata.DetectionMethod)
	assert.Equal(t, 4, table.Metadata.CellCount)
	assert.Equal(t, 0.9, table.Metadata.Confidence)

	sections := extraction.Sections[2]
	require.Len(t, sections, 1)
	assert.Equal(t, "page_2_overview", sections[0].SectionID)
	assert.True(t, sections[0].LLMReady)

	assert.Equal(t, "Quarterly revenue summary", extraction.Summary)
}

func TestClientExtractRetriesOn429(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(chatReply(t, extractionJSON))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "test-model", MaxRetries: 2}, nil)

	extraction, err := client.Extract(context.Background(), testPages())
	require.NoError(t, err)
	require.NotNil(t, extraction)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClientExtractHonorsRetryAfter(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(chatReply(t, extractionJSON))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "test-model", MaxRetries: 2}, nil)

	start := time.Now()
	extraction, err := client.Extract(context.Background(), testPages())
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.NotNil(t, extraction)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	// The 3s Retry-After beats the 2s backoff and is the whole wait,
	// not an addition to it.
	assert.GreaterOrEqual(t, elapsed, 3*time.Second)
	assert.Less(t, elapsed, 4*time.Second)
}

func TestClientExtractRateLimiterPacing(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write(chatReply(t, extractionJSON))
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL:           server.URL,
		Model:             "test-model",
		RequestsPerSecond: 50,
		Burst:             1,
	}, nil)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Extract(context.Background(), testPages())
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	// The burst covers the first call; the other two each wait a 20ms
	// token at 50 req/s.
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestClientExtractRateLimiterCancelledContext(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write(chatReply(t, extractionJSON))
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL:           server.URL,
		Model:             "test-model",
		RequestsPerSecond: 1,
		Burst:             1,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Extract(ctx, testPages())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "no request should reach the endpoint")
}

func TestClientExtractNoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "test-model", MaxRetries: 3}, nil)

	_, err := client.Extract(context.Background(), testPages())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientExtractMalformedContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatReply(t, "the model refused to answer with data"))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "test-model"}, nil)

	_, err := client.Extract(context.Background(), testPages())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no JSON object")
}

func TestClientExtractFencedJSON(t *testing.T) {
	fenced := "```json\n" + extractionJSON + "\n```"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatReply(t, fenced))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "test-model"}, nil)

	extraction, err := client.Extract(context.Background(), testPages())
	require.NoError(t, err)
	require.Len(t, extraction.Tables, 1)
	assert.Equal(t, "revenue_q3", extraction.Tables[0].TableID)
}

func TestClientExtractNotConfigured(t *testing.T) {
	client := NewClient(Config{}, nil)

	_, err := client.Extract(context.Background(), testPages())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestClientExtractNoPages(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://localhost:9", Model: "m"}, nil)

	_, err := client.Extract(context.Background(), nil)
	require.Error(t, err)
}

func TestParseExtractionJSONSurroundingProse(t *testing.T) {
	payload, err := parseExtractionJSON("Here is the extraction:\n" + extractionJSON + "\nLet me know if you need more.")
	require.NoError(t, err)
	require.Len(t, payload.Tables, 1)
	assert.Equal(t, "revenue_q3", payload.Tables[0].TableID)
	assert.Equal(t, "Quarterly revenue summary", payload.Summary)
}

func TestParseExtractionJSONEmptyObject(t *testing.T) {
	payload, err := parseExtractionJSON("{}")
	require.NoError(t, err)
	assert.Empty(t, payload.Tables)
	assert.Empty(t, payload.Pages)

	ex := payload.toExtraction()
	assert.NotNil(t, ex.Sections)
	assert.Nil(t, ex.Tables)
}
