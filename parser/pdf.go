package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFParser extracts the text layer of a PDF, one section per page.
// Scanned statutes without a text layer yield ErrNoText.
type PDFParser struct{}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

func (p *PDFParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	sections := make([]Section, 0, totalPages)

	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Debug("pdf: skipping page", "path", path, "page", i, "error", err)
			continue
		}

		text = dropRunningHeader(strings.TrimSpace(text))
		if text == "" {
			continue
		}

		sections = append(sections, Section{
			Content:    text,
			PageNumber: i,
			Type:       "paragraph",
		})
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoText, path)
	}

	return &ParseResult{
		Sections: sections,
		Method:   "native",
		Metadata: map[string]string{"pages": strconv.Itoa(totalPages)},
	}, nil
}

// dropRunningHeader removes a leading or trailing bare page number line, which
// would otherwise be glued onto section text.
func dropRunningHeader(text string) string {
	lines := strings.Split(text, "\n")
	isPageNo := func(s string) bool {
		s = strings.Trim(strings.TrimSpace(s), "-– ")
		if s == "" {
			return false
		}
		_, err := strconv.Atoi(s)
		return err == nil
	}
	if len(lines) > 1 && isPageNo(lines[0]) {
		lines = lines[1:]
	}
	if len(lines) > 1 && isPageNo(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
