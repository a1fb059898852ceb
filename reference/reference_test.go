package reference

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/brunobiangulo/lawqa/lawdata"
)

func TestRuleExtract(t *testing.T) {
	bn, en, sg := DefaultRules[0], DefaultRules[1], DefaultRules[2]

	tests := []struct {
		name    string
		rule    Rule
		input   string
		want    string
		wantHit bool
	}{
		{"bangla marker", bn, "আইন, ধারা ২৩ ও ২৮", " ২৩ ও ২৮", true},
		{"bangla genitive", bn, "আইনের ধারার ৫", " ৫", true},
		{"bangla last occurrence", bn, "ধারা ৪ এর অধীনে ধারা ৫", " ৫", true},
		{"bangla absent", bn, "Registration Act, Sections 23", "", false},
		{"english plural", en, "Registration Act, Sections 23, 28", " 23, 28", true},
		{"english case-insensitive", en, "Act, sections 1 and 2", " 1 and 2", true},
		{"plural rule skips singular", en, "Act, Section 54", "", false},
		{"english singular", sg, "Act, Section 54", " 54", true},
		{"singular keeps trailing list", sg, "Registration Act, Section 23, 28", " 23, 28", true},
		{"singular abbreviation", sg, "Act, Sec. 9", " 9", true},
		{"singular skips sub-section", sg, "Act, sub-section (2)", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.rule.Extract(tt.input)
			if ok != tt.wantHit {
				t.Fatalf("Extract(%q) hit = %v, want %v", tt.input, ok, tt.wantHit)
			}
			if got != tt.want {
				t.Errorf("Extract(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSections(t *testing.T) {
	tests := []struct {
		name     string
		citation string
		want     []string
	}{
		{"plural with qualifier", "Registration Act, Sections 23, 28 and 78A(b)", []string{"23", "28", "78"}},
		{"bangla digits", "আইন, ধারা ২৩ ও ২৮", []string{"23", "28"}},
		{"singular", "Transfer of Property Act, Section 54", []string{"54"}},
		{"singular list", "Registration Act, Section 23, 28", []string{"23", "28"}},
		{"singular ampersand", "Act, Section 10 & 11", []string{"10", "11"}},
		{"singular with trailing clause", "Registration Act, Section 17, Part II", []string{"17", "Part II"}},
		{"range", "Act, Section 23-24", []string{"23", "24"}},
		{"act with year", "The Registration Act, 1908, Part II, Section 28", []string{"28"}},
		{"ampersand", "Act, Sections 17 & 18", []string{"17", "18"}},
		{"duplicates collapse", "Act, Sections 23, 23(1) and 23(2)", []string{"23"}},
		{"sub-section wording", "State Acquisition Act, sub-section (2) of Section 5", []string{"5"}},
		{"bangla genitive", "আইনের ধারার ২৩ ও ২৪", []string{"23", "24"}},
		{"bare clause", "Registration Act, 52", []string{"52"}},
		{"only qualifier", "Registration Act, Sections (b)", nil},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sections(tt.citation)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Sections(%q) mismatch (-want +got):\n%s", tt.citation, diff)
			}
		})
	}
}

func TestKeepSuffix(t *testing.T) {
	p := NewParser(Options{KeepSuffix: true})
	got := p.Sections("Registration Act, Sections 23, 28 and 78A(b)")
	want := []string{"23", "28", "78A"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("KeepSuffix mismatch (-want +got):\n%s", diff)
	}
}

func TestKeepSuffixBangla(t *testing.T) {
	p := NewParser(Options{KeepSuffix: true})
	got := p.Sections("আইন, ধারা ২৩ক ও ২৪")
	if diff := cmp.Diff([]string{"23ক", "24"}, got); diff != "" {
		t.Errorf("KeepSuffix mismatch (-want +got):\n%s", diff)
	}
	if got := NewParser(Options{}).Sections("আইন, ধারা ২৩ক"); !cmp.Equal(got, []string{"23"}) {
		t.Errorf("default Sections = %v, want [23]", got)
	}
}

func TestResolveKeepSuffixBangla(t *testing.T) {
	ix := lawdata.NewIndex([]lawdata.LawRecord{
		{SectionNoBN: "২৩", Content: "plain 23"},
		{SectionNoBN: "২৩ক", Content: "section 23ka"},
	})
	r := NewResolver(ix, Options{KeepSuffix: true}, "")

	res := r.Resolve("আইন, ধারা ২৩ক")
	if diff := cmp.Diff([]string{"23ক"}, res.Sections); diff != "" {
		t.Errorf("Sections mismatch (-want +got):\n%s", diff)
	}
	if res.Context != "section 23ka" {
		t.Errorf("Context = %q, want %q", res.Context, "section 23ka")
	}
}

func TestParseReportsRule(t *testing.T) {
	tests := []struct {
		citation     string
		wantRule     string
		wantFallback bool
	}{
		{"আইন, ধারা ২৩", "bangla", false},
		{"Act, Sections 1 and 2", "english", false},
		{"Act, Section 54", "english-singular", false},
		{"Registration Act, Section 23, 28", "english-singular", false},
		{"Registration Act, 52", FallbackRule, true},
	}
	for _, tt := range tests {
		p := defaultParser.Parse(tt.citation)
		if p.Rule != tt.wantRule || p.Fallback() != tt.wantFallback {
			t.Errorf("Parse(%q) rule = %q fallback = %v, want %q %v",
				tt.citation, p.Rule, p.Fallback(), tt.wantRule, tt.wantFallback)
		}
	}
}

func TestSectionsIdempotent(t *testing.T) {
	citations := []string{
		"Registration Act, Sections 23, 28 and 78A(b)",
		"আইন, ধারা ২৩ ও ২৮",
		"Act, Section 23-24",
	}
	for _, c := range citations {
		first := Sections(c)
		second := Sections(c)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("Sections(%q) not idempotent:\n%s", c, diff)
		}
	}
}

func newTestResolver(records ...lawdata.LawRecord) *Resolver {
	return NewResolver(lawdata.NewIndex(records), Options{}, "")
}

func TestResolveSingleMatch(t *testing.T) {
	r := newTestResolver(lawdata.LawRecord{SectionNoEN: "23", Content: "X"})

	res := r.Resolve("Registration Act, Section 23")
	if res.Context != "X" {
		t.Errorf("Context = %q, want %q", res.Context, "X")
	}
	if res.NeedsReview() || res.Err() != nil {
		t.Errorf("unexpected diagnostics: %v", res.Err())
	}
	if len(res.Matches) != 1 || res.Matches[0].Section != "23" {
		t.Errorf("Matches = %+v", res.Matches)
	}
}

func TestResolveJoinsInSectionOrder(t *testing.T) {
	r := newTestResolver(
		lawdata.LawRecord{SectionNoEN: "28", Content: "Y"},
		lawdata.LawRecord{SectionNoEN: "23", Content: "X"},
		lawdata.LawRecord{SectionNoBN: "৭৮", Content: "Z"},
	)
	res := r.Resolve("Registration Act, Sections 78, 28 and 23")
	want := "X\n---\nY\n---\nZ"
	if res.Context != want {
		t.Errorf("Context = %q, want %q", res.Context, want)
	}
}

func TestResolveMultipleRecordsPerSection(t *testing.T) {
	r := newTestResolver(
		lawdata.LawRecord{SectionNoEN: "23", Content: "first"},
		lawdata.LawRecord{SectionNoEN: "23", Content: "second"},
	)
	res := r.Resolve("Act, Section 23")
	if res.Context != "first\n---\nsecond" {
		t.Errorf("Context = %q", res.Context)
	}
}

func TestResolveMissingSection(t *testing.T) {
	r := newTestResolver(lawdata.LawRecord{SectionNoEN: "23", Content: "X"})

	res := r.Resolve("Act, Sections 23 and 99")
	if res.Context != "X" {
		t.Errorf("Context = %q, want %q", res.Context, "X")
	}
	if diff := cmp.Diff([]string{"99"}, res.Missing); diff != "" {
		t.Errorf("Missing mismatch (-want +got):\n%s", diff)
	}
	if !res.NeedsReview() {
		t.Error("expected NeedsReview for a missing section")
	}
	if !errors.Is(res.Err(), ErrUnmatchedSection) {
		t.Errorf("Err() = %v, want ErrUnmatchedSection", res.Err())
	}
	if res.Diagnostics[0].Section != "99" {
		t.Errorf("diagnostic section = %q", res.Diagnostics[0].Section)
	}
}

func TestResolveSingularKeepsEverySection(t *testing.T) {
	r := newTestResolver(
		lawdata.LawRecord{SectionNoEN: "23", Content: "X"},
		lawdata.LawRecord{SectionNoEN: "28", Content: "Y"},
		lawdata.LawRecord{SectionNoEN: "17", Content: "Z"},
	)

	res := r.Resolve("Registration Act, Section 23, 28")
	if res.Context != "X\n---\nY" {
		t.Errorf("Context = %q, want both sections", res.Context)
	}
	if res.NeedsReview() {
		t.Errorf("unexpected diagnostics: %v", res.Err())
	}

	res = r.Resolve("Registration Act, Section 17, Part II")
	if res.Context != "Z" {
		t.Errorf("Context = %q, want %q", res.Context, "Z")
	}
	if diff := cmp.Diff([]string{"Part II"}, res.Missing); diff != "" {
		t.Errorf("Missing mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveNothingMatches(t *testing.T) {
	r := newTestResolver()
	res := r.Resolve("Act, Section 7")
	if res.Context != "" {
		t.Errorf("Context = %q, want empty", res.Context)
	}
	if !errors.Is(res.Err(), ErrUnmatchedSection) {
		t.Errorf("Err() = %v", res.Err())
	}
}

func TestResolveUnresolvable(t *testing.T) {
	r := newTestResolver(lawdata.LawRecord{SectionNoEN: "23", Content: "X"})
	res := r.Resolve("Registration Act, Sections (b)")
	if len(res.Sections) != 0 || res.Context != "" {
		t.Errorf("expected no sections and empty context, got %+v", res)
	}
	if !errors.Is(res.Err(), ErrUnresolvableCitation) {
		t.Errorf("Err() = %v, want ErrUnresolvableCitation", res.Err())
	}
}

func TestResolveCustomSeparator(t *testing.T) {
	ix := lawdata.NewIndex([]lawdata.LawRecord{
		{SectionNoEN: "1", Content: "a"},
		{SectionNoEN: "2", Content: "b"},
	})
	r := NewResolver(ix, Options{}, "\n\n")
	if got := r.Resolve("Act, Sections 1 and 2").Context; got != "a\n\nb" {
		t.Errorf("Context = %q", got)
	}
}

func TestResolveConcurrent(t *testing.T) {
	r := newTestResolver(
		lawdata.LawRecord{SectionNoEN: "23", Content: "X"},
		lawdata.LawRecord{SectionNoEN: "28", Content: "Y"},
	)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := r.Resolve("আইন, ধারা ২৩ ও ২৮").Context; got != "X\n---\nY" {
				t.Errorf("Context = %q", got)
			}
		}()
	}
	wg.Wait()
}

func TestDiagnosticError(t *testing.T) {
	d := Diagnostic{Kind: ErrUnmatchedSection, Section: "9", Citation: "Act, Section 9"}
	want := `reference: section not found in law records: section "9" in "Act, Section 9"`
	if d.Error() != want {
		t.Errorf("Error() = %q, want %q", d.Error(), want)
	}
}
