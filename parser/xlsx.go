package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/lawqa/lawdata"
)

// XLSXParser reads spreadsheets. A sheet whose header row names law record
// fields (section_no_en, content, ...) becomes records; other sheets are kept
// as table sections.
type XLSXParser struct{}

func (p *XLSXParser) SupportedFormats() []string { return []string{"xlsx"} }

func (p *XLSXParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	result := &ParseResult{Method: "table"}

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			slog.Debug("xlsx: skipping sheet", "sheet", sheet, "error", err)
			continue
		}
		if len(rows) == 0 {
			continue
		}

		records, err := lawdata.FromRows(rows[0], rows[1:])
		switch {
		case err == nil:
			result.Records = append(result.Records, records...)
			continue
		case !errors.Is(err, lawdata.ErrUnknownColumn):
			return nil, fmt.Errorf("sheet %s: %w", sheet, err)
		}

		var content strings.Builder
		for _, row := range rows {
			content.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
		result.Sections = append(result.Sections, Section{
			Heading: sheet,
			Content: content.String(),
			Type:    "table",
			Level:   1,
			Metadata: map[string]string{
				"sheet_name": sheet,
				"row_count":  fmt.Sprintf("%d", len(rows)),
			},
		})
	}

	if len(result.Records) > 0 {
		result.Method = "records"
	}
	if len(result.Records) == 0 && len(result.Sections) == 0 {
		return nil, fmt.Errorf("no data found in XLSX")
	}
	return result, nil
}
