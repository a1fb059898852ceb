package lawqa

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/brunobiangulo/lawqa/dataset"
	"github.com/brunobiangulo/lawqa/lawdata"
	"github.com/brunobiangulo/lawqa/parser"
	"github.com/brunobiangulo/lawqa/reference"
)

// SetContext resolves every pair's law reference and writes the result.
func (p *pipeline) SetContext(ctx context.Context, lawFile, qaFile, out string) (*dataset.Report, error) {
	resolver, err := p.Resolver(ctx, lawFile)
	if err != nil {
		return nil, err
	}
	pairs, err := ReadPairs(qaFile)
	if err != nil {
		return nil, err
	}

	updated, report, err := dataset.SetInputContext(ctx, pairs, resolver, dataset.ContextOptions{
		Concurrency:    p.cfg.Context.Concurrency,
		ReviewFallback: p.cfg.Context.ReviewFallback,
	})
	if err != nil {
		return nil, err
	}
	if err := WritePairs(out, updated); err != nil {
		return nil, err
	}

	slog.Info("context: done",
		"records", report.Records, "resolved", report.Resolved,
		"unresolvable", report.Unresolvable, "flagged", report.Flagged, "out", out)
	return &report, nil
}

// TemplateResult reports how many training texts were written.
type TemplateResult struct {
	Written int `json:"written"`
	Skipped int `json:"skipped"`
}

// Template renders a QA file as ChatML training texts in JSONL.
func (p *pipeline) Template(ctx context.Context, in, out string) (*TemplateResult, error) {
	pairs, err := ReadPairs(in)
	if err != nil {
		return nil, err
	}

	var opts dataset.TemplateOptions
	if f := p.cfg.Template.SystemPromptFile; f != "" {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading system prompt: %w", err)
		}
		opts.SystemPrompt = string(data)
	}

	texts, skipped := dataset.Template(pairs, opts)
	if err := dataset.WriteJSONL(out, texts); err != nil {
		return nil, err
	}
	if skipped > 0 {
		slog.Warn("template: pairs without question or answer skipped", "skipped", skipped)
	}
	return &TemplateResult{Written: len(texts), Skipped: skipped}, nil
}

// Export writes stored pairs to a JSON or JSONL file.
func (p *pipeline) Export(ctx context.Context, source, out string) (int, error) {
	var sourceID int64
	if source != "" {
		src, err := p.source(ctx, source)
		if err != nil {
			return 0, err
		}
		sourceID = src.ID
	}

	stored, err := p.store.ListPairs(ctx, sourceID)
	if err != nil {
		return 0, fmt.Errorf("listing pairs: %w", err)
	}
	pairs := make([]dataset.QAPair, len(stored))
	for i, sp := range stored {
		pairs[i] = sp.QAPair
	}
	return len(pairs), WritePairs(out, pairs)
}

// Laws returns the records of laws, which is either a law document path or
// the name of an ingested source.
func (p *pipeline) Laws(ctx context.Context, laws string) ([]lawdata.LawRecord, error) {
	if _, err := os.Stat(laws); err == nil {
		records, _, err := p.parseLaws(ctx, laws, parser.StatuteMeta{})
		return records, err
	}
	src, err := p.source(ctx, laws)
	if err != nil {
		return nil, err
	}
	records, err := p.store.ListLaws(ctx, src.ID)
	if err != nil {
		return nil, fmt.Errorf("listing laws: %w", err)
	}
	return records, nil
}

// Resolver builds a resolver over the records named by laws.
func (p *pipeline) Resolver(ctx context.Context, laws string) (*reference.Resolver, error) {
	records, err := p.Laws(ctx, laws)
	if err != nil {
		return nil, err
	}
	return NewResolver(records, p.cfg.Context), nil
}

// NewResolver indexes records and returns a resolver configured by cfg.
func NewResolver(records []lawdata.LawRecord, cfg ContextConfig) *reference.Resolver {
	return reference.NewResolver(lawdata.NewIndex(records),
		reference.Options{KeepSuffix: cfg.KeepSuffix}, cfg.Separator)
}

// ReadPairs reads a QA file; ".jsonl" files hold one pair per line, anything
// else is a JSON array.
func ReadPairs(path string) ([]dataset.QAPair, error) {
	if isJSONL(path) {
		return dataset.ReadJSONL[dataset.QAPair](path)
	}
	return dataset.ReadJSON[dataset.QAPair](path)
}

// WritePairs writes pairs in the format chosen by the file extension.
func WritePairs(path string, pairs []dataset.QAPair) error {
	if isJSONL(path) {
		return dataset.WriteJSONL(path, pairs)
	}
	return dataset.WriteJSON(path, pairs)
}

func isJSONL(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".jsonl")
}
