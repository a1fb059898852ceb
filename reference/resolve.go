package reference

import (
	"errors"
	"strings"

	"github.com/brunobiangulo/lawqa/lawdata"
)

// DefaultSeparator joins the content of matched records.
const DefaultSeparator = "\n---\n"

// Match is one law record found for a cited section.
type Match struct {
	Section string
	Record  lawdata.LawRecord
}

// Result is the resolution of one citation.
type Result struct {
	Citation    string
	Rule        string
	Sections    []string
	Matches     []Match
	Missing     []string
	Context     string
	Diagnostics []Diagnostic
}

// NeedsReview reports whether anything about the citation could not be
// resolved.
func (r Result) NeedsReview() bool { return len(r.Diagnostics) > 0 }

// Err joins all diagnostics into a single error, or returns nil.
func (r Result) Err() error {
	if len(r.Diagnostics) == 0 {
		return nil
	}
	errs := make([]error, len(r.Diagnostics))
	for i, d := range r.Diagnostics {
		errs[i] = d
	}
	return errors.Join(errs...)
}

// Resolver resolves citations against an index of law records. The index is
// read-only, so a Resolver may be shared between goroutines.
type Resolver struct {
	parser    *Parser
	index     *lawdata.Index
	separator string
}

// NewResolver returns a resolver over index. An empty separator selects
// DefaultSeparator.
func NewResolver(index *lawdata.Index, opts Options, separator string) *Resolver {
	if separator == "" {
		separator = DefaultSeparator
	}
	return &Resolver{parser: NewParser(opts), index: index, separator: separator}
}

// Resolve parses citation, looks up every section id and assembles the
// content of all matches in section order. Sections without a record are
// listed in Missing and reported as ErrUnmatchedSection diagnostics; their
// content is omitted. Every record sharing a section id is included.
func (r *Resolver) Resolve(citation string) Result {
	parsed := r.parser.Parse(citation)
	res := Result{
		Citation: citation,
		Rule:     parsed.Rule,
		Sections: parsed.Sections,
	}
	if len(parsed.Sections) == 0 {
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Kind:     ErrUnresolvableCitation,
			Citation: citation,
		})
		return res
	}

	var parts []string
	for _, id := range parsed.Sections {
		records := r.index.Lookup(id)
		if len(records) == 0 {
			res.Missing = append(res.Missing, id)
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Kind:     ErrUnmatchedSection,
				Section:  id,
				Citation: citation,
			})
			continue
		}
		for _, rec := range records {
			res.Matches = append(res.Matches, Match{Section: id, Record: rec})
			if content := string(rec.Content); strings.TrimSpace(content) != "" {
				parts = append(parts, content)
			}
		}
	}
	res.Context = strings.Join(parts, r.separator)
	return res
}
