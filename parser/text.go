package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brunobiangulo/lawqa/lawdata"
)

// TextParser handles plain text and markdown files.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt", "md"} }

func (p *TextParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}

	content := string(data)
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoText, path)
	}
	if FormatOf(path) == "md" {
		content = stripMarkdown(content)
	}

	return &ParseResult{
		Sections: []Section{
			{
				Content: content,
				Level:   1,
				Type:    "paragraph",
			},
		},
		Method:   "native",
		Metadata: map[string]string{"filename": filepath.Base(path)},
	}, nil
}

// stripMarkdown removes heading markers and emphasis so statute headings
// converted to markdown read like the printed text.
func stripMarkdown(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		line = strings.TrimLeft(line, "#")
		line = strings.ReplaceAll(line, "**", "")
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}

// JSONParser reads law record exports: a JSON array of records.
type JSONParser struct{}

func (p *JSONParser) SupportedFormats() []string { return []string{"json"} }

func (p *JSONParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	records, err := lawdata.Load(path)
	if err != nil {
		return nil, err
	}
	return &ParseResult{Records: records, Method: "records"}, nil
}
