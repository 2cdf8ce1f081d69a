package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// fakePage is one page of a fakeDocument
type fakePage struct {
	text  string
	words []Word
}

// fakeDocument is an in-memory Document for tests
type fakeDocument struct {
	filename string
	pages    []fakePage
	textErr  map[int]error
}

func (d *fakeDocument) Filename() string {
	return d.filename
}

func (d *fakeDocument) PageCount() int {
	return len(d.pages)
}

func (d *fakeDocument) PageText(index int) (string, error) {
	if err, ok := d.textErr[index]; ok {
		return "", err
	}
	if index < 0 || index >= len(d.pages) {
		return "", fmt.Errorf("page index %d out of range", index)
	}
	return d.pages[index].text, nil
}

func (d *fakeDocument) PageWords(index int) ([]Word, error) {
	if index < 0 || index >= len(d.pages) {
		return nil, fmt.Errorf("page index %d out of range", index)
	}
	return d.pages[index].words, nil
}

// stubClient is a scriptable AIClient for router and pipeline tests
type stubClient struct {
	available  bool
	extraction *Extraction
	err        error
	delay      time.Duration
	calls      int32
	perCall    func(pages []PagePayload) (*Extraction, error)
}

func (c *stubClient) Available(ctx context.Context) bool {
	return c.available
}

func (c *stubClient) Extract(ctx context.Context, pages []PagePayload) (*Extraction, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.perCall != nil {
		return c.perCall(pages)
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.extraction, nil
}

// gridWords builds a rows x cols word grid with left edges aligned per
// column, one LineID per row
func gridWords(rows, cols int) []Word {
	words := make([]Word, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x := 100.0 + float64(c)*200.0
			y := 700.0 - float64(r)*20.0
			words = append(words, Word{
				Text:   fmt.Sprintf("r%dc%d", r, c),
				X0:     x,
				Y0:     y,
				X1:     x + 40.0,
				Y1:     y + 10.0,
				LineID: r,
			})
		}
	}
	return words
}

const numericPageText = "Revenue $1,500.00 increased 25.5% to 1.23e6 units from 1,200 previously."

const prosePageText = "This page describes the methodology in plain language without figures."
