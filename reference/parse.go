// Package reference turns free-text statute citations such as
// "Registration Act, Sections 23, 28 and 78A(b)" or "আইন, ধারা ২৩ ও ২৮"
// into normalized section ids and resolves them against law records.
package reference

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/brunobiangulo/lawqa/bangla"
	"github.com/brunobiangulo/lawqa/lawdata"
)

// Rule selects the section-list segment of a citation. The segment is the
// text after the last match of Marker.
type Rule struct {
	Name   string
	Marker *regexp.Regexp
}

// Extract returns the text following the last marker match, and whether the
// marker occurs at all.
func (r Rule) Extract(citation string) (string, bool) {
	locs := r.Marker.FindAllStringIndex(citation, -1)
	if len(locs) == 0 {
		return "", false
	}
	return citation[locs[len(locs)-1][1]:], true
}

// DefaultRules are tried in order; the first rule whose marker is present
// wins. Bangla comes first, then the English plural, then the singular. The
// leading class on the English markers keeps "sub-section" from matching.
var DefaultRules = []Rule{
	{Name: "bangla", Marker: regexp.MustCompile(`ধারা(?:সমূহের|সমূহ|র)?`)},
	{Name: "english", Marker: regexp.MustCompile(`(?i)(?:^|[\s,;(])sections\b`)},
	{Name: "english-singular", Marker: regexp.MustCompile(`(?i)(?:^|[\s,;(])(?:section\b|sec\.)`)},
}

// FallbackRule is the name reported when no marker matched and the last
// comma-separated clause was used as the section list. Citations resolved
// this way deserve a second look: not every act name keeps the sections in
// its final clause.
const FallbackRule = "last-clause"

var (
	tokenSplit    = regexp.MustCompile(`ও|\band\b|,|&`)
	parenthetical = regexp.MustCompile(`\([^)]*\)`)
)

// Options tunes section-id normalization.
type Options struct {
	// KeepSuffix keeps a letter suffix glued to the section number
	// ("78A(b)" gives "78A", "২৩ক" gives "23ক"). By default only the
	// leading digit run is kept ("78").
	KeepSuffix bool

	// Rules overrides DefaultRules.
	Rules []Rule
}

// Parser extracts section ids from citations. It holds no mutable state and
// is safe for concurrent use.
type Parser struct {
	rules      []Rule
	keepSuffix bool
}

// NewParser returns a parser configured by opts.
func NewParser(opts Options) *Parser {
	rules := opts.Rules
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Parser{rules: rules, keepSuffix: opts.KeepSuffix}
}

// Parsed is the outcome of parsing one citation.
type Parsed struct {
	Rule     string   // rule that selected the segment, or FallbackRule
	Segment  string   // the section-list text the ids were read from
	Sections []string // distinct ids in natural order
}

// Fallback reports whether no section marker was found.
func (p Parsed) Fallback() bool { return p.Rule == FallbackRule }

// Parse extracts the normalized section ids from citation.
func (p *Parser) Parse(citation string) Parsed {
	citation = bangla.Normalize(citation)
	rule, segment := p.segment(citation)

	seen := make(map[string]struct{})
	var ids []string
	for _, token := range tokenSplit.Split(segment, -1) {
		token = normalizeToken(token)
		for _, piece := range strings.Split(token, "-") {
			id := p.sectionID(piece)
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	lawdata.SortSectionIDs(ids)
	return Parsed{Rule: rule, Segment: segment, Sections: ids}
}

// Sections is Parse without the bookkeeping.
func (p *Parser) Sections(citation string) []string {
	return p.Parse(citation).Sections
}

func (p *Parser) segment(citation string) (string, string) {
	for _, r := range p.rules {
		if seg, ok := r.Extract(citation); ok {
			return r.Name, seg
		}
	}
	if i := strings.LastIndex(citation, ", "); i >= 0 {
		return FallbackRule, citation[i+2:]
	}
	return FallbackRule, citation
}

// normalizeToken trims, drops parenthesized qualifiers and folds Bangla
// digits.
func normalizeToken(token string) string {
	token = strings.TrimSpace(token)
	token = parenthetical.ReplaceAllString(token, "")
	return bangla.ToArabicDigits(token)
}

func (p *Parser) sectionID(piece string) string {
	piece = strings.TrimSpace(piece)
	if piece == "" || !isASCIIDigit(rune(piece[0])) {
		return piece
	}
	end := 0
	for end < len(piece) && isASCIIDigit(rune(piece[end])) {
		end++
	}
	if p.keepSuffix {
		for _, r := range piece[end:] {
			if !unicode.IsLetter(r) {
				break
			}
			end += utf8.RuneLen(r)
		}
	}
	return piece[:end]
}

func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }

var defaultParser = NewParser(Options{})

// Sections returns the normalized section ids cited by citation using the
// default rules and options.
func Sections(citation string) []string {
	return defaultParser.Sections(citation)
}
