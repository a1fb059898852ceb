// Package lawdata loads statute section records and indexes them by
// section number.
package lawdata

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/brunobiangulo/lawqa/bangla"
)

// LawRecord is one section of a statute. Every field is optional; the
// English and Bangla variants are independent and either may be missing.
type LawRecord struct {
	LawNameEN     Text `json:"law_name_en,omitempty" yaml:"law_name_en,omitempty"`
	LawNameBN     Text `json:"law_name_bn,omitempty" yaml:"law_name_bn,omitempty"`
	PartNoEN      Text `json:"part_no_en,omitempty" yaml:"part_no_en,omitempty"`
	PartNoBN      Text `json:"part_no_bn,omitempty" yaml:"part_no_bn,omitempty"`
	PartNameEN    Text `json:"part_name_en,omitempty" yaml:"part_name_en,omitempty"`
	PartNameBN    Text `json:"part_name_bn,omitempty" yaml:"part_name_bn,omitempty"`
	ChapterNoEN   Text `json:"chapter_no_en,omitempty" yaml:"chapter_no_en,omitempty"`
	ChapterNoBN   Text `json:"chapter_no_bn,omitempty" yaml:"chapter_no_bn,omitempty"`
	ChapterNameEN Text `json:"chapter_name_en,omitempty" yaml:"chapter_name_en,omitempty"`
	ChapterNameBN Text `json:"chapter_name_bn,omitempty" yaml:"chapter_name_bn,omitempty"`
	SectionNoEN   Text `json:"section_no_en,omitempty" yaml:"section_no_en,omitempty"`
	SectionNoBN   Text `json:"section_no_bn,omitempty" yaml:"section_no_bn,omitempty"`
	SectionNameEN Text `json:"section_name_en,omitempty" yaml:"section_name_en,omitempty"`
	SectionNameBN Text `json:"section_name_bn,omitempty" yaml:"section_name_bn,omitempty"`
	Content       Text `json:"content,omitempty" yaml:"content,omitempty"`
	RefURL        Text `json:"ref_url,omitempty" yaml:"ref_url,omitempty"`
}

// SectionID returns the lookup key for the record: section_no_en when
// present, otherwise section_no_bn with its digits folded to ASCII.
// An empty result means the record cannot be indexed.
func (r LawRecord) SectionID() string {
	if id := bangla.Normalize(strings.TrimSpace(string(r.SectionNoEN))); id != "" {
		return id
	}
	return bangla.Normalize(strings.TrimSpace(string(r.SectionNoBN)))
}

// LawName returns the English law name, falling back to the Bangla one.
func (r LawRecord) LawName() string { return pick(r.LawNameEN, r.LawNameBN) }

// PartNo returns the English part number, falling back to the Bangla one.
func (r LawRecord) PartNo() string { return pick(r.PartNoEN, r.PartNoBN) }

// PartName returns the English part name, falling back to the Bangla one.
func (r LawRecord) PartName() string { return pick(r.PartNameEN, r.PartNameBN) }

// ChapterNo returns the English chapter number, falling back to the Bangla one.
func (r LawRecord) ChapterNo() string { return pick(r.ChapterNoEN, r.ChapterNoBN) }

// ChapterName returns the English chapter name, falling back to the Bangla one.
func (r LawRecord) ChapterName() string { return pick(r.ChapterNameEN, r.ChapterNameBN) }

// SectionNo returns the English section number, falling back to the Bangla one.
func (r LawRecord) SectionNo() string { return pick(r.SectionNoEN, r.SectionNoBN) }

// SectionName returns the English section name, falling back to the Bangla one.
func (r LawRecord) SectionName() string { return pick(r.SectionNameEN, r.SectionNameBN) }

func pick(en, bn Text) string {
	if s := strings.TrimSpace(string(en)); s != "" {
		return s
	}
	return strings.TrimSpace(string(bn))
}

// Text is a string field that also accepts JSON numbers and null. Some law
// exports write section and chapter numbers as bare integers.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = Text(n.String())
	return nil
}
