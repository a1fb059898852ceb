// Package parser reads statute documents in several formats and turns them
// into law records.
package parser

import (
	"context"
	"errors"
	"strings"

	"github.com/brunobiangulo/lawqa/lawdata"
)

// ErrNoText is returned when a document yields no extractable text.
var ErrNoText = errors.New("parser: no text found")

// ParseResult is what a parser produces from a document file. Structured
// formats fill Records directly; text formats fill Sections, which
// SplitStatute turns into records.
type ParseResult struct {
	Sections []Section
	Records  []lawdata.LawRecord
	Method   string // "native", "table", "records"
	Metadata map[string]string
}

// Section represents a block of text in document order.
type Section struct {
	Heading    string
	Content    string
	Level      int // Heading level (1=top, 2=sub, etc.)
	PageNumber int
	Type       string // "section", "table", "paragraph"
	Metadata   map[string]string
}

// Text joins headings and content of all sections, one block per line
// group, for statute splitting.
func (r *ParseResult) Text() string {
	var b strings.Builder
	for _, s := range r.Sections {
		if s.Type == "table" {
			continue
		}
		if h := strings.TrimSpace(s.Heading); h != "" {
			b.WriteString(h)
			b.WriteByte('\n')
		}
		if c := strings.TrimSpace(s.Content); c != "" {
			b.WriteString(c)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Parser can parse a specific document format.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}
