package generate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/brunobiangulo/lawqa/dataset"
	"github.com/brunobiangulo/lawqa/lawdata"
	"github.com/brunobiangulo/lawqa/llm"
)

// fakeChat answers by section number found in the prompt.
type fakeChat struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) (string, error)
}

func (f *fakeChat) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	prompt := req.Messages[0].Content
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	content, err := f.reply(prompt)
	if err != nil {
		return nil, err
	}
	return &llm.ChatResponse{Content: content, Model: "gemma3:4b"}, nil
}

func (f *fakeChat) Embed(context.Context, []string) ([][]float32, error) { return nil, nil }

func record(no, content string) lawdata.LawRecord {
	return lawdata.LawRecord{
		LawNameEN:     "The Registration Act, 1908",
		SectionNoEN:   lawdata.Text(no),
		SectionNameEN: "Fees",
		Content:       lawdata.Text(content),
	}
}

func TestPrompt(t *testing.T) {
	rec := record("78", "Fees for registration.")
	rec.PartNoEN = "XI"
	rec.PartNameEN = "Of the duties of registering officers"
	p := Prompt(rec, Options{})

	for _, want := range []string{
		"generate 3 unique QA pairs",
		"Write 2 of the pairs in English and 1 in Bangla",
		"LAW NAME: The Registration Act, 1908",
		"PART: XI - (Of the duties of registering officers)",
		"SECTION NO: 78",
		"CONTENT:\nFees for registration.",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(p, "CHAPTER") {
		t.Error("empty chapter should be left out")
	}
}

func TestReference(t *testing.T) {
	tests := []struct {
		rec  lawdata.LawRecord
		want string
	}{
		{lawdata.LawRecord{LawNameEN: "Registration Act", PartNoEN: "II", SectionNoEN: "28"}, "Registration Act, Part II, Section 28"},
		{lawdata.LawRecord{LawNameBN: "রেজিস্ট্রেশন আইন", SectionNoBN: "২৮"}, "রেজিস্ট্রেশন আইন, ধারা ২৮"},
		{lawdata.LawRecord{}, ""},
	}
	for _, tt := range tests {
		if got := Reference(tt.rec); got != tt.want {
			t.Errorf("Reference = %q, want %q", got, tt.want)
		}
	}
}

func TestGenerate(t *testing.T) {
	chat := &fakeChat{reply: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "SECTION NO: 23"):
			return "```json\n{\"output\":[{\"question\":\"Q23a\",\"answer\":\"A23a\",\"law_reference\":\"Registration Act, Section 23\"},{\"question\":\"\",\"answer\":\"dropped\"}]}\n```", nil
		case strings.Contains(prompt, "SECTION NO: 28"):
			return `{"output":[{"question":"Q28","answer":"A28","difficulty":"easy"}]}`, nil
		default:
			return "I cannot do that", nil
		}
	}}

	var (
		mu    sync.Mutex
		saved = map[string]int{}
	)
	g := New(chat, Options{Concurrency: 2, Source: "registration-act"})
	g.OnRecord = func(rec lawdata.LawRecord, pairs []dataset.QAPair) error {
		mu.Lock()
		defer mu.Unlock()
		saved[rec.SectionID()] = len(pairs)
		return nil
	}

	records := []lawdata.LawRecord{
		record("23", "Time for presentation."),
		record("24", ""),
		record("28", "Place for registering."),
		record("30", "Bad reply section."),
	}
	res, err := g.Generate(context.Background(), records)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if res.Records != 4 || res.Skipped != 1 || res.Failed != 1 {
		t.Errorf("counts = %+v", res)
	}
	if len(res.Pairs) != 2 {
		t.Fatalf("pairs = %d, want 2", len(res.Pairs))
	}
	if len(chat.prompts) != 3 {
		t.Errorf("chat called %d times, want 3", len(chat.prompts))
	}

	first, second := res.Pairs[0], res.Pairs[1]
	if first.Question != "Q23a" || second.Question != "Q28" {
		t.Errorf("pairs out of record order: %q, %q", first.Question, second.Question)
	}
	if first.ID == "" || first.ID == second.ID {
		t.Errorf("ids not assigned: %q %q", first.ID, second.ID)
	}
	if first.Section != "23" || first.Source != "registration-act" || first.Model != "gemma3:4b" {
		t.Errorf("labels = %+v", first)
	}
	if first.InputContext != "Time for presentation." {
		t.Errorf("input_context = %q", first.InputContext)
	}
	if second.LawReference != "The Registration Act, 1908, Section 28" {
		t.Errorf("missing reference not filled: %q", second.LawReference)
	}
	if second.Extra != nil {
		t.Errorf("extra keys kept: %v", second.Extra)
	}
	if saved["23"] != 1 || saved["28"] != 1 {
		t.Errorf("OnRecord saw %v", saved)
	}
}

func TestGenerateAllFailed(t *testing.T) {
	chat := &fakeChat{reply: func(string) (string, error) { return "", errors.New("connection refused") }}
	_, err := New(chat, Options{}).Generate(context.Background(), []lawdata.LawRecord{record("1", "x")})
	if !errors.Is(err, ErrAllFailed) {
		t.Errorf("expected ErrAllFailed, got %v", err)
	}
}

func TestGenerateNothingEligible(t *testing.T) {
	chat := &fakeChat{reply: func(string) (string, error) { t.Fatal("unexpected chat call"); return "", nil }}
	res, err := New(chat, Options{}).Generate(context.Background(), []lawdata.LawRecord{record("1", "  ")})
	if err != nil || res.Skipped != 1 {
		t.Errorf("res=%+v err=%v", res, err)
	}
}

func TestGenerateRecordEmptyContent(t *testing.T) {
	g := New(&fakeChat{}, Options{})
	if _, err := g.GenerateRecord(context.Background(), record("1", "")); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("expected ErrEmptyContent, got %v", err)
	}
}

func TestGenerateSaveFailureDropsPairs(t *testing.T) {
	chat := &fakeChat{reply: func(prompt string) (string, error) {
		if strings.Contains(prompt, "SECTION NO: 23") {
			return `{"output":[{"question":"Q23","answer":"A23"}]}`, nil
		}
		return `{"output":[{"question":"Q28","answer":"A28"}]}`, nil
	}}
	g := New(chat, Options{Concurrency: 1})
	g.OnRecord = func(rec lawdata.LawRecord, _ []dataset.QAPair) error {
		if rec.SectionID() == "28" {
			return errors.New("database is locked")
		}
		return nil
	}

	res, err := g.Generate(context.Background(), []lawdata.LawRecord{
		record("23", "Time for presentation."),
		record("28", "Place for registering."),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Failed != 1 {
		t.Errorf("Failed = %d, want 1", res.Failed)
	}
	if len(res.Pairs) != 1 || res.Pairs[0].Question != "Q23" {
		t.Errorf("pairs = %+v, want only the saved section", res.Pairs)
	}
}
