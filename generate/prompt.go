package generate

import (
	"fmt"
	"strings"

	"github.com/brunobiangulo/lawqa/lawdata"
)

// qaPrompt asks for question-answer pairs about one statute section. The
// header lines are filled by Prompt and left out when a field is empty.
const qaPrompt = `You are a legal QA generator for Bangladeshi law.

Given the following law section, generate %d unique QA pairs that a citizen might ask about this law. Each answer must include the section number and a clear, human-friendly explanation.

Write %d of the pairs in English and %d in Bangla. A Bangla question gets a Bangla answer.

%s
CONTENT:
%s

The output must be a JSON object even if there is only one QA pair:
{"output": [{"question": "...", "answer": "...", "law_reference": "Act name, Part, Chapter, Section number"}]}
Leave out any part of law_reference that is not known instead of writing null or None.
Do NOT include any text outside the JSON object.`

// Prompt renders the generation prompt for rec.
func Prompt(rec lawdata.LawRecord, opts Options) string {
	opts = opts.withDefaults()

	var header strings.Builder
	line := func(label, no, name string) {
		switch {
		case no != "" && name != "":
			fmt.Fprintf(&header, "%s: %s - (%s)\n", label, no, name)
		case no != "":
			fmt.Fprintf(&header, "%s: %s\n", label, no)
		case name != "":
			fmt.Fprintf(&header, "%s: %s\n", label, name)
		}
	}
	line("LAW NAME", "", rec.LawName())
	line("PART", rec.PartNo(), rec.PartName())
	line("CHAPTER", rec.ChapterNo(), rec.ChapterName())
	line("SECTION NO", rec.SectionNo(), "")
	line("SECTION NAME", "", rec.SectionName())

	return fmt.Sprintf(qaPrompt,
		opts.English+opts.Bangla, opts.English, opts.Bangla,
		strings.TrimRight(header.String(), "\n"),
		strings.TrimSpace(string(rec.Content)))
}

// Reference builds a law_reference for rec, used when the model leaves it
// out: "Registration Act, 1908, Part II, Section 28".
func Reference(rec lawdata.LawRecord) string {
	var parts []string
	if v := rec.LawName(); v != "" {
		parts = append(parts, v)
	}
	if v := rec.PartNo(); v != "" {
		parts = append(parts, "Part "+v)
	}
	if v := rec.ChapterNo(); v != "" {
		parts = append(parts, "Chapter "+v)
	}
	if v := rec.SectionNo(); v != "" {
		if rec.SectionNoEN == "" {
			parts = append(parts, "ধারা "+v)
		} else {
			parts = append(parts, "Section "+v)
		}
	}
	return strings.Join(parts, ", ")
}
