package dataset

import (
	"strings"
	"unicode"

	"github.com/brunobiangulo/lawqa/bangla"
)

// Findings holds the outcome of reviewing one pair.
type Findings struct {
	Issues []string
}

// OK reports whether the pair passed every check.
func (f Findings) OK() bool { return len(f.Issues) == 0 }

// externalKnowledge are phrases that suggest the model answered from outside
// the section text.
var externalKnowledge = []string{
	"based on my knowledge",
	"it is commonly known",
	"as an ai",
	"i cannot confidently answer",
}

// Check runs the structural and content checks on a generated pair.
func Check(p QAPair) Findings {
	var f Findings
	q := strings.TrimSpace(p.Question)
	a := strings.TrimSpace(p.Answer)

	if q == "" {
		f.Issues = append(f.Issues, "missing question")
	}
	if a == "" {
		f.Issues = append(f.Issues, "missing answer")
	}
	if strings.TrimSpace(p.LawReference) == "" {
		f.Issues = append(f.Issues, "missing law reference")
	}
	if q != "" && a != "" && bangla.ContainsBangla(q) != bangla.ContainsBangla(a) {
		f.Issues = append(f.Issues, "question and answer are in different languages")
	}

	lower := strings.ToLower(a)
	for _, phrase := range externalKnowledge {
		if strings.Contains(lower, phrase) {
			f.Issues = append(f.Issues, "answer does not appear grounded in the section text")
			break
		}
	}
	return f
}

// Review checks every pair, flags the ones with issues and returns how many
// were flagged. Issues are added to the pair's diagnostics.
func Review(pairs []QAPair) int {
	flagged := 0
	for i := range pairs {
		f := Check(pairs[i])
		if f.OK() {
			continue
		}
		pairs[i].NeedsReview = true
		pairs[i].Diagnostics = append(pairs[i].Diagnostics, f.Issues...)
		flagged++
	}
	return flagged
}

// QuestionKey folds a question for duplicate detection: NFC, Arabic digits,
// lower case, punctuation dropped, whitespace collapsed.
func QuestionKey(q string) string {
	q = strings.ToLower(bangla.Normalize(q))
	fields := strings.FieldsFunc(q, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || r == '।'
	})
	return strings.Join(fields, " ")
}

// DedupeExact drops pairs whose question repeats an earlier one under
// QuestionKey. It returns the kept pairs and the number removed.
func DedupeExact(pairs []QAPair) ([]QAPair, int) {
	seen := make(map[string]struct{}, len(pairs))
	kept := make([]QAPair, 0, len(pairs))
	for _, p := range pairs {
		key := QuestionKey(p.Question)
		if key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		kept = append(kept, p)
	}
	return kept, len(pairs) - len(kept)
}
