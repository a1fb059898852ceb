package parser

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/brunobiangulo/lawqa/bangla"
	"github.com/brunobiangulo/lawqa/lawdata"
)

// StatuteMeta carries what the document text itself may not say.
type StatuteMeta struct {
	LawNameEN string
	LawNameBN string
	RefURL    string
}

// headingPattern recognises one kind of heading at the start of a line.
// Submatch 1 is the number, 2 the title, 3 text following the title on the
// same line (sections only).
type headingPattern struct {
	kind string // "part", "chapter", "section"
	re   *regexp.Regexp
}

// Bangladesh Code and Bangla gazette layouts:
//
//	PART II
//	CHAPTER IV.—OF THE TIME OF PRESENTATION
//	23. Time for presenting documents.—Subject to ...
//	Section 23. Time for presenting documents
//	ভাগ ২
//	অধ্যায় ৪
//	২৩। দলিল দাখিলের সময়।—(১) ...
//	ধারা ২৩। দলিল দাখিলের সময়
var headingPatterns = []headingPattern{
	{"part", regexp.MustCompile(`^(?:PART|Part)\s+([IVXLC]+|\d+[A-Z]?)\b[\s.:—–-]*(.*)$`)},
	{"part", regexp.MustCompile(`^(?:ভাগ|খণ্ড)\s+([০-৯0-9]+|[IVXLC]+)[\s।.:—–-]*(.*)$`)},
	{"chapter", regexp.MustCompile(`^(?:CHAPTER|Chapter)\s+([IVXLC]+|\d+[A-Z]?)\b[\s.:—–-]*(.*)$`)},
	{"chapter", regexp.MustCompile(`^অধ্যায়\s+([০-৯0-9]+|[IVXLC]+)[\s।.:—–-]*(.*)$`)},
	{"section", regexp.MustCompile(`^(\d+[A-Z]{0,2})\.\s+([^—–]+?)[.\s]*[—–]\s*(.*)$`)},
	{"section", regexp.MustCompile(`^(?:Section|SECTION|Sec\.)\s+(\d+[A-Z]{0,2})\s*[.:—–-]\s*([^—–]*?)[.\s]*(?:[—–]\s*(.*))?$`)},
	{"section", regexp.MustCompile(`^([০-৯]+[ক-হ]?)।\s+([^—–]+?)[।\s]*[—–]\s*(.*)$`)},
	{"section", regexp.MustCompile(`^ধারা\s+([০-৯0-9]+[ক-হ]?)\s*[।.:—–-]\s*([^—–]*?)[।\s]*(?:[—–]\s*(.*))?$`)},
}

type heading struct {
	kind, number, title, rest string
}

func matchHeading(line string) (heading, bool) {
	for _, p := range headingPatterns {
		m := p.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		h := heading{kind: p.kind, number: m[1], title: strings.TrimSpace(m[2])}
		if len(m) > 3 {
			h.rest = strings.TrimSpace(m[3])
		}
		return h, true
	}
	return heading{}, false
}

// SplitStatute splits statute text into one record per section. Part and
// chapter headings apply to the sections that follow them. Bangla headings
// fill the _bn fields; section_no_en is always set to the ASCII-digit form so
// the records index the same way in either language. When meta carries no
// law name, the first non-heading line is used.
func SplitStatute(text string, meta StatuteMeta) []lawdata.LawRecord {
	var (
		records     []lawdata.LawRecord
		current     *lawdata.LawRecord
		body        []string
		part        heading
		chapter     heading
		needTitleOf *heading // part or chapter whose title is on the next line
		lawName     = meta
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Content = lawdata.Text(strings.TrimSpace(strings.Join(body, "\n")))
		records = append(records, *current)
		current, body = nil, nil
	}

	for _, raw := range strings.Split(text, "\n") {
		// Canonical composition keeps the Bangla keywords matching when
		// a PDF emits precomposed nukta letters.
		line := norm.NFC.String(strings.TrimSpace(raw))
		if line == "" {
			continue
		}

		h, ok := matchHeading(line)
		if !ok {
			switch {
			case needTitleOf != nil:
				needTitleOf.title = strings.Trim(line, " .।")
				needTitleOf = nil
			case current != nil:
				body = append(body, line)
			case lawName.LawNameEN == "" && lawName.LawNameBN == "":
				if bangla.ContainsBangla(line) {
					lawName.LawNameBN = line
				} else {
					lawName.LawNameEN = line
				}
			}
			continue
		}
		needTitleOf = nil

		switch h.kind {
		case "part":
			flush()
			part, chapter = h, heading{}
			if part.title == "" {
				needTitleOf = &part
			}
		case "chapter":
			flush()
			chapter = h
			if chapter.title == "" {
				needTitleOf = &chapter
			}
		case "section":
			flush()
			rec := newRecord(lawName, part, chapter, h)
			current = &rec
			if h.rest != "" {
				body = append(body, h.rest)
			}
		}
	}
	flush()
	return records
}

func newRecord(meta StatuteMeta, part, chapter, section heading) lawdata.LawRecord {
	rec := lawdata.LawRecord{
		LawNameEN: lawdata.Text(meta.LawNameEN),
		LawNameBN: lawdata.Text(meta.LawNameBN),
		RefURL:    lawdata.Text(meta.RefURL),
	}

	set := func(en, bn *lawdata.Text, value string) {
		if value == "" {
			return
		}
		if bangla.ContainsBangla(value) {
			*bn = lawdata.Text(value)
		} else {
			*en = lawdata.Text(value)
		}
	}
	set(&rec.PartNoEN, &rec.PartNoBN, part.number)
	set(&rec.PartNameEN, &rec.PartNameBN, part.title)
	set(&rec.ChapterNoEN, &rec.ChapterNoBN, chapter.number)
	set(&rec.ChapterNameEN, &rec.ChapterNameBN, chapter.title)
	set(&rec.SectionNameEN, &rec.SectionNameBN, section.title)

	rec.SectionNoEN = lawdata.Text(bangla.ToArabicDigits(section.number))
	if bangla.ContainsBangla(section.number) {
		rec.SectionNoBN = lawdata.Text(section.number)
	}
	return rec
}
