package lawdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	// ErrMalformedRecord marks a record that has neither section_no_en nor
	// section_no_bn and therefore cannot be indexed.
	ErrMalformedRecord = errors.New("lawdata: record has no section number")

	// ErrUnknownColumn is returned by FromRows for a header it cannot map.
	ErrUnknownColumn = errors.New("lawdata: unknown column")
)

// Load reads a JSON array of law records from path.
func Load(path string) ([]LawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening law file: %w", err)
	}
	defer f.Close()

	records, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return records, nil
}

// Decode reads a JSON array of law records.
func Decode(r io.Reader) ([]LawRecord, error) {
	var records []LawRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}

// setters maps a column name (the record's JSON key) to its field.
var setters = map[string]func(*LawRecord, string){
	"law_name_en":     func(r *LawRecord, v string) { r.LawNameEN = Text(v) },
	"law_name_bn":     func(r *LawRecord, v string) { r.LawNameBN = Text(v) },
	"part_no_en":      func(r *LawRecord, v string) { r.PartNoEN = Text(v) },
	"part_no_bn":      func(r *LawRecord, v string) { r.PartNoBN = Text(v) },
	"part_name_en":    func(r *LawRecord, v string) { r.PartNameEN = Text(v) },
	"part_name_bn":    func(r *LawRecord, v string) { r.PartNameBN = Text(v) },
	"chapter_no_en":   func(r *LawRecord, v string) { r.ChapterNoEN = Text(v) },
	"chapter_no_bn":   func(r *LawRecord, v string) { r.ChapterNoBN = Text(v) },
	"chapter_name_en": func(r *LawRecord, v string) { r.ChapterNameEN = Text(v) },
	"chapter_name_bn": func(r *LawRecord, v string) { r.ChapterNameBN = Text(v) },
	"section_no_en":   func(r *LawRecord, v string) { r.SectionNoEN = Text(v) },
	"section_no_bn":   func(r *LawRecord, v string) { r.SectionNoBN = Text(v) },
	"section_name_en": func(r *LawRecord, v string) { r.SectionNameEN = Text(v) },
	"section_name_bn": func(r *LawRecord, v string) { r.SectionNameBN = Text(v) },
	"content":         func(r *LawRecord, v string) { r.Content = Text(v) },
	"ref_url":         func(r *LawRecord, v string) { r.RefURL = Text(v) },
}

// FromRows builds records from a table whose header row names the record
// fields (e.g. a spreadsheet export). Header matching ignores case and
// surrounding spaces. Fully blank rows are skipped.
func FromRows(header []string, rows [][]string) ([]LawRecord, error) {
	cols := make([]func(*LawRecord, string), len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if key == "" {
			continue
		}
		set, ok := setters[key]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, h)
		}
		cols[i] = set
	}

	var records []LawRecord
	for _, row := range rows {
		var rec LawRecord
		blank := true
		for i, cell := range row {
			if i >= len(cols) || cols[i] == nil {
				continue
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			blank = false
			cols[i](&rec, cell)
		}
		if !blank {
			records = append(records, rec)
		}
	}
	return records, nil
}
