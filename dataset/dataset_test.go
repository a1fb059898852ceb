package dataset

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/brunobiangulo/lawqa/lawdata"
	"github.com/brunobiangulo/lawqa/reference"
)

func TestQAPairPreservesUnknownKeys(t *testing.T) {
	in := `{"question":"Q?","answer":"A","law_reference":"Act, Section 5","input_context":"","difficulty":"hard","tags":["x"]}`
	var p QAPair
	if err := json.Unmarshal([]byte(in), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.Question != "Q?" || p.LawReference != "Act, Section 5" {
		t.Errorf("known fields not decoded: %+v", p)
	}
	if len(p.Extra) != 2 {
		t.Fatalf("Extra = %v, want 2 keys", p.Extra)
	}

	out, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal back: %v", err)
	}
	if back["difficulty"] != "hard" {
		t.Errorf("difficulty lost: %s", out)
	}
	if _, ok := back["needs_review"]; ok {
		t.Errorf("needs_review should be omitted when false: %s", out)
	}
}

func TestWriteKeepsTextReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qa.json")
	if err := WriteJSON(path, []QAPair{{Question: "ধারা ২৩ <কি>?", Answer: "a & b"}}); err != nil {
		t.Fatal(err)
	}
	raw, _ := os.ReadFile(path)
	s := string(raw)
	if !strings.Contains(s, "ধারা ২৩ <কি>?") || !strings.Contains(s, "a & b") {
		t.Errorf("text was escaped: %s", s)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	pairs := []QAPair{
		{Question: "q1", Answer: "a1", LawReference: "Act, Section 1"},
		{Question: "প্রশ্ন", Answer: "উত্তর", LawReference: "আইন, ধারা ২"},
	}

	jsonPath := filepath.Join(dir, "qa.json")
	if err := WriteJSON(jsonPath, pairs); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	got, err := ReadJSON[QAPair](jsonPath)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if diff := cmp.Diff(pairs, got); diff != "" {
		t.Errorf("json round trip (-want +got):\n%s", diff)
	}

	jsonlPath := filepath.Join(dir, "qa.jsonl")
	if err := WriteJSONL(jsonlPath, pairs[:1]); err != nil {
		t.Fatalf("WriteJSONL: %v", err)
	}
	if err := AppendJSONL(jsonlPath, pairs[1:]); err != nil {
		t.Fatalf("AppendJSONL: %v", err)
	}
	got, err = ReadJSONL[QAPair](jsonlPath)
	if err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	if diff := cmp.Diff(pairs, got); diff != "" {
		t.Errorf("jsonl round trip (-want +got):\n%s", diff)
	}

	raw, _ := os.ReadFile(jsonlPath)
	if n := strings.Count(string(raw), "\n"); n != 2 {
		t.Errorf("jsonl has %d lines, want 2", n)
	}
}

func TestWriteJSONEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := WriteJSON[QAPair](path, nil); err != nil {
		t.Fatal(err)
	}
	raw, _ := os.ReadFile(path)
	if string(raw) != "[]" {
		t.Errorf("empty output = %q, want []", raw)
	}
}

func TestDecodeJSONLReportsLine(t *testing.T) {
	_, err := DecodeJSONL[QAPair](strings.NewReader("{\"question\":\"a\"}\n\n{bad\n"))
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Errorf("expected line 3 error, got %v", err)
	}
}

func testResolver() *reference.Resolver {
	records := []lawdata.LawRecord{
		{SectionNoEN: "23", Content: "twenty-three"},
		{SectionNoEN: "28", Content: "twenty-eight"},
		{SectionNoBN: "৫৪", Content: "fifty-four"},
	}
	return reference.NewResolver(lawdata.NewIndex(records), reference.Options{}, "")
}

func TestSetInputContext(t *testing.T) {
	pairs := []QAPair{
		{Question: "q0", LawReference: "Registration Act, Sections 23, 28"},
		{Question: "q1", LawReference: "আইন, ধারা ৫৪"},
		{Question: "q2", LawReference: "Registration Act, Sections 23 and 99"},
		{Question: "q3", LawReference: "Registration Act, Sections (b)"},
		{Question: "q4", LawReference: "Some Act, 28", Diagnostics: []string{"stale"}},
	}

	got, report, err := SetInputContext(context.Background(), pairs, testResolver(), ContextOptions{Concurrency: 2})
	if err != nil {
		t.Fatalf("SetInputContext: %v", err)
	}

	wantContext := []string{
		"twenty-three\n---\ntwenty-eight",
		"fifty-four",
		"twenty-three",
		"",
		"twenty-eight",
	}
	for i, p := range got {
		if p.Question != pairs[i].Question {
			t.Fatalf("order changed at %d: %q", i, p.Question)
		}
		if p.InputContext != wantContext[i] {
			t.Errorf("pair %d context = %q, want %q", i, p.InputContext, wantContext[i])
		}
	}

	if got[0].NeedsReview || got[1].NeedsReview || got[4].NeedsReview {
		t.Error("fully resolved pairs should not need review")
	}
	if !got[2].NeedsReview || len(got[2].Diagnostics) != 1 {
		t.Errorf("missing section not flagged: %+v", got[2])
	}
	if got[4].Diagnostics != nil {
		t.Errorf("stale diagnostics kept: %v", got[4].Diagnostics)
	}
	if pairs[0].InputContext != "" {
		t.Error("input slice was modified")
	}

	want := Report{Records: 5, Resolved: 4, Unresolvable: 1, UnmatchedSections: 1, Flagged: 2, Fallback: 1}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Errorf("report (-want +got):\n%s", diff)
	}
}

func TestSetInputContextReviewFallback(t *testing.T) {
	pairs := []QAPair{
		{LawReference: "Some Act, 28"},
		{LawReference: "Registration Act, Section 23"},
		{LawReference: "Registration Act, Section 23, 28"},
	}
	got, report, err := SetInputContext(context.Background(), pairs, testResolver(), ContextOptions{ReviewFallback: true})
	if err != nil {
		t.Fatal(err)
	}
	if !got[0].NeedsReview {
		t.Errorf("fallback citation not flagged: %+v", got[0])
	}
	for _, p := range got[1:] {
		if p.NeedsReview {
			t.Errorf("singular Section citation %q flagged: %v", p.LawReference, p.Diagnostics)
		}
	}
	if got[2].InputContext != "twenty-three\n---\ntwenty-eight" {
		t.Errorf("context = %q, want both sections", got[2].InputContext)
	}
	if report.Flagged != 1 || report.Fallback != 1 {
		t.Errorf("report = %+v, want one fallback flagged", report)
	}
}

func TestSetInputContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := SetInputContext(ctx, []QAPair{{LawReference: "Act, Section 23"}}, testResolver(), ContextOptions{})
	if err == nil {
		t.Error("expected context error")
	}
}

func TestTemplate(t *testing.T) {
	pairs := []QAPair{
		{Question: " What? ", Answer: "This.", LawReference: "Act, Section 5", InputContext: "ctx"},
		{Question: "", Answer: "orphan"},
	}
	texts, skipped := Template(pairs, TemplateOptions{SystemPrompt: "Be brief."})
	if skipped != 1 || len(texts) != 1 {
		t.Fatalf("texts=%d skipped=%d", len(texts), skipped)
	}
	want := "<|im_start|>system\nBe brief.\n<|im_end|>\n" +
		"<|im_start|>user\nContext:\nctx\nQuestion:\nWhat?<|im_end|>\n" +
		"<|im_start|>assistant\nThis. (Act, Section 5)<|im_end|>"
	if diff := cmp.Diff(want, texts[0].Text); diff != "" {
		t.Errorf("text (-want +got):\n%s", diff)
	}
}

func TestTemplateDefaultPrompt(t *testing.T) {
	texts, _ := Template([]QAPair{{Question: "q", Answer: "a"}}, TemplateOptions{})
	if !strings.Contains(texts[0].Text, "legal assistant trained on the laws of Bangladesh") {
		t.Error("default system prompt not used")
	}
	if strings.Contains(texts[0].Text, "a ()") {
		t.Error("empty reference rendered")
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name   string
		pair   QAPair
		issues int
	}{
		{"clean english", QAPair{Question: "What is the fee?", Answer: "100 taka.", LawReference: "Act, Section 78"}, 0},
		{"clean bangla", QAPair{Question: "ফি কত?", Answer: "১০০ টাকা।", LawReference: "আইন, ধারা ৭৮"}, 0},
		{"empty", QAPair{}, 3},
		{"mixed language", QAPair{Question: "ফি কত?", Answer: "100 taka.", LawReference: "x"}, 1},
		{"ungrounded", QAPair{Question: "Why?", Answer: "Based on my knowledge, yes.", LawReference: "x"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Check(tt.pair)
			if len(f.Issues) != tt.issues {
				t.Errorf("issues = %v, want %d", f.Issues, tt.issues)
			}
			if f.OK() != (tt.issues == 0) {
				t.Errorf("OK() = %v", f.OK())
			}
		})
	}
}

func TestReviewFlagsPairs(t *testing.T) {
	pairs := []QAPair{
		{Question: "q", Answer: "a", LawReference: "r"},
		{Question: "q", LawReference: "r"},
	}
	if n := Review(pairs); n != 1 {
		t.Fatalf("flagged = %d, want 1", n)
	}
	if pairs[0].NeedsReview || !pairs[1].NeedsReview {
		t.Errorf("wrong pair flagged: %+v", pairs)
	}
}

func TestDedupeExact(t *testing.T) {
	pairs := []QAPair{
		{Question: "What is Section 23?"},
		{Question: "what is  section 23"},
		{Question: "ধারা ২৩ কী?"},
		{Question: "ধারা 23 কী"},
		{Question: "Something else"},
	}
	kept, removed := DedupeExact(pairs)
	if removed != 2 || len(kept) != 3 {
		t.Errorf("kept=%d removed=%d", len(kept), removed)
	}
}
