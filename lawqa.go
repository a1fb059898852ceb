// Package lawqa builds question-answer datasets from Bangladeshi statutes:
// it ingests law documents, synthesizes QA pairs with a chat model, resolves
// each pair's law reference into its input context, flags duplicates and
// renders training texts.
package lawqa

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brunobiangulo/lawqa/dataset"
	"github.com/brunobiangulo/lawqa/generate"
	"github.com/brunobiangulo/lawqa/lawdata"
	"github.com/brunobiangulo/lawqa/llm"
	"github.com/brunobiangulo/lawqa/parser"
	"github.com/brunobiangulo/lawqa/reference"
	"github.com/brunobiangulo/lawqa/store"
)

// Pipeline is the main entry point for building a statute QA dataset.
type Pipeline interface {
	// Ingest parses a statute document and stores its law records under a
	// source name. Skips parsing if the file hash is unchanged.
	Ingest(ctx context.Context, path string, opts ...IngestOption) (*IngestResult, error)

	// Generate synthesizes QA pairs for the sections of an ingested source.
	// Sections that already have pairs from the configured chat model are
	// skipped unless WithRestart is given.
	Generate(ctx context.Context, source string, opts ...GenerateOption) (*GenerateResult, error)

	// Dedupe embeds the questions of new pairs and flags exact and near
	// duplicates, along with pairs that fail the content checks.
	Dedupe(ctx context.Context) (*DedupeResult, error)

	// SetContext resolves the law_reference of every pair in qaFile against
	// the laws in lawFile and writes the pairs with input_context to out.
	SetContext(ctx context.Context, lawFile, qaFile, out string) (*dataset.Report, error)

	// Template renders the pairs in a QA file as training texts.
	Template(ctx context.Context, in, out string) (*TemplateResult, error)

	// Export writes the stored pairs of a source (all sources when empty).
	Export(ctx context.Context, source, out string) (int, error)

	// Laws returns the records of a law file or ingested source.
	Laws(ctx context.Context, laws string) ([]lawdata.LawRecord, error)

	// Resolver builds a citation resolver over a law file or source name.
	Resolver(ctx context.Context, laws string) (*reference.Resolver, error)

	// Stats returns counts of the stored objects.
	Stats(ctx context.Context) (*store.Stats, error)

	// Store returns the underlying store for diagnostic access.
	Store() *store.Store

	// Close cleanly shuts down the pipeline.
	Close() error
}

// IngestResult reports the outcome of an ingest.
type IngestResult struct {
	SourceID  int64  `json:"source_id"`
	Source    string `json:"source"`
	Format    string `json:"format"`
	Method    string `json:"method"`
	Changed   bool   `json:"changed"`
	Records   int    `json:"records"`
	Sections  int    `json:"sections"`
	Malformed int    `json:"malformed"`
}

// GenerateResult reports the outcome of a generation run.
type GenerateResult struct {
	Source  string `json:"source"`
	RunID   int64  `json:"run_id"`
	Model   string `json:"model"`
	Records int    `json:"records"`
	Resumed int    `json:"resumed"` // sections skipped because they already had pairs
	Skipped int    `json:"skipped"` // sections without content
	Failed  int    `json:"failed"`
	Pairs   int    `json:"pairs"`
}

// IngestOption configures ingestion behavior.
type IngestOption func(*ingestOptions)

type ingestOptions struct {
	forceReparse bool
	name         string
	meta         parser.StatuteMeta
}

// WithForceReparse forces re-parsing even if the hash hasn't changed.
func WithForceReparse() IngestOption {
	return func(o *ingestOptions) { o.forceReparse = true }
}

// WithSourceName stores the records under name instead of the file's base
// name without extension.
func WithSourceName(name string) IngestOption {
	return func(o *ingestOptions) { o.name = name }
}

// WithStatuteMeta supplies the law name and URL for documents that are split
// from running text.
func WithStatuteMeta(meta parser.StatuteMeta) IngestOption {
	return func(o *ingestOptions) { o.meta = meta }
}

// GenerateOption configures generation behavior.
type GenerateOption func(*generateOptions)

type generateOptions struct {
	restart bool
	limit   int
	export  string
}

// WithRestart regenerates every section, even those that already have pairs.
func WithRestart() GenerateOption {
	return func(o *generateOptions) { o.restart = true }
}

// WithLimit caps the number of sections sent to the model in this run.
func WithLimit(n int) GenerateOption {
	return func(o *generateOptions) { o.limit = n }
}

// WithExport appends every finished section's pairs to a JSONL file.
func WithExport(path string) GenerateOption {
	return func(o *generateOptions) { o.export = path }
}

// pipeline is the concrete implementation of Pipeline.
type pipeline struct {
	cfg      Config
	store    *store.Store
	chatLLM  llm.Provider
	embedLLM llm.Provider
	parsers  *parser.Registry
}

// New creates a new pipeline with the given configuration.
func New(cfg Config) (Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dbPath := cfg.resolveDBPath()

	s, err := store.New(dbPath, cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	chatLLM, err := llm.NewProvider(cfg.Chat)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating chat provider: %w", err)
	}

	var embedLLM llm.Provider
	if cfg.Embedding.Provider != "" {
		embedLLM, err = llm.NewProvider(cfg.Embedding)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating embedding provider: %w", err)
		}
	}

	return newPipeline(cfg, s, chatLLM, embedLLM), nil
}

func newPipeline(cfg Config, s *store.Store, chat, embed llm.Provider) *pipeline {
	return &pipeline{
		cfg:      cfg,
		store:    s,
		chatLLM:  chat,
		embedLLM: embed,
		parsers:  parser.NewRegistry(),
	}
}

// Ingest parses a document and stores its law records.
func (p *pipeline) Ingest(ctx context.Context, path string, opts ...IngestOption) (*IngestResult, error) {
	options := &ingestOptions{}
	for _, o := range opts {
		o(options)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	hash, err := fileHash(absPath)
	if err != nil {
		return nil, fmt.Errorf("hashing file: %w", err)
	}

	name := options.name
	if name == "" {
		name = sourceName(absPath)
	}
	res := &IngestResult{Source: name, Format: parser.FormatOf(absPath)}

	if !options.forceReparse {
		existing, err := p.store.GetSource(ctx, name)
		if err == nil && existing.ContentHash == hash {
			laws, err := p.store.ListLaws(ctx, existing.ID)
			if err != nil {
				return nil, err
			}
			res.SourceID, res.Records = existing.ID, len(laws)
			slog.Info("ingest: source unchanged", "source", name, "records", len(laws))
			return res, nil
		}
	}

	records, method, err := p.parseLaws(ctx, absPath, options.meta)
	if err != nil {
		return nil, err
	}
	res.Method, res.Records = method, len(records)

	ix := lawdata.NewIndex(records)
	res.Sections, res.Malformed = ix.Len(), len(ix.Malformed())

	src := store.Source{Name: name, Path: absPath, Format: res.Format, ContentHash: hash}
	res.SourceID, res.Changed, err = p.store.UpsertLaws(ctx, src, records)
	if err != nil {
		return nil, fmt.Errorf("storing laws: %w", err)
	}
	if !res.Changed {
		// Forced re-parse of an unchanged file still refreshes the rows.
		if err := p.store.ReplaceLaws(ctx, res.SourceID, records); err != nil {
			return nil, fmt.Errorf("storing laws: %w", err)
		}
	}

	slog.Info("ingest: source ready",
		"source", name, "format", res.Format, "method", method,
		"records", res.Records, "sections", res.Sections, "malformed", res.Malformed)
	return res, nil
}

func (p *pipeline) parseLaws(ctx context.Context, path string, meta parser.StatuteMeta) ([]lawdata.LawRecord, string, error) {
	return parseLaws(ctx, p.parsers, path, meta)
}

// LoadLaws reads the law records of a document with the built-in parsers.
func LoadLaws(ctx context.Context, path string, meta parser.StatuteMeta) ([]lawdata.LawRecord, error) {
	records, _, err := parseLaws(ctx, parser.NewRegistry(), path, meta)
	return records, err
}

// parseLaws turns a document into law records. Structured formats carry
// records directly; everything else is split from its text.
func parseLaws(ctx context.Context, reg *parser.Registry, path string, meta parser.StatuteMeta) ([]lawdata.LawRecord, string, error) {
	prs, format, err := reg.ForPath(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	start := time.Now()
	parsed, err := prs.Parse(ctx, path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	records := parsed.Records
	method := parsed.Method
	if len(records) == 0 {
		records = parser.SplitStatute(parsed.Text(), meta)
		method += "+split"
	}
	slog.Info("ingest: parsing complete",
		"file", filepath.Base(path), "method", method,
		"records", len(records), "elapsed", time.Since(start).Round(time.Millisecond))

	if len(records) == 0 {
		return nil, "", fmt.Errorf("%w: %s", ErrNoRecords, path)
	}
	return records, method, nil
}

// Generate synthesizes pairs for a stored source.
func (p *pipeline) Generate(ctx context.Context, source string, opts ...GenerateOption) (*GenerateResult, error) {
	options := &generateOptions{}
	for _, o := range opts {
		o(options)
	}

	src, err := p.source(ctx, source)
	if err != nil {
		return nil, err
	}
	laws, err := p.store.ListLaws(ctx, src.ID)
	if err != nil {
		return nil, fmt.Errorf("listing laws: %w", err)
	}

	model := p.cfg.Chat.Model
	res := &GenerateResult{Source: src.Name, Model: model, Records: len(laws)}

	pending := laws
	if !options.restart {
		done, err := p.store.SectionsWithPairs(ctx, src.ID, model)
		if err != nil {
			return nil, fmt.Errorf("checking generated sections: %w", err)
		}
		pending = pending[:0:0]
		for _, rec := range laws {
			if id := rec.SectionID(); id != "" && done[id] {
				res.Resumed++
				continue
			}
			pending = append(pending, rec)
		}
	}
	if options.limit > 0 && len(pending) > options.limit {
		pending = pending[:options.limit]
	}
	if len(pending) == 0 {
		slog.Info("generate: nothing to do", "source", src.Name, "resumed", res.Resumed)
		return res, nil
	}

	runID, err := p.store.StartRun(ctx, src.ID, model)
	if err != nil {
		return nil, fmt.Errorf("starting run: %w", err)
	}
	res.RunID = runID

	genOpts := p.cfg.Generation
	genOpts.Model = model
	genOpts.Source = src.Name
	gen := generate.New(p.chatLLM, genOpts)
	gen.OnRecord = func(rec lawdata.LawRecord, pairs []dataset.QAPair) error {
		if len(pairs) == 0 {
			return nil
		}
		if _, err := p.store.InsertPairs(ctx, src.ID, runID, pairs); err != nil {
			return err
		}
		if options.export != "" {
			return dataset.AppendJSONL(options.export, pairs)
		}
		return nil
	}

	genRes, genErr := gen.Generate(ctx, pending)
	res.Skipped, res.Failed, res.Pairs = genRes.Skipped, genRes.Failed, len(genRes.Pairs)

	status := store.RunComplete
	if genErr != nil {
		status = store.RunFailed
	}
	// The run row is closed even when ctx was cancelled.
	if err := p.store.FinishRun(context.WithoutCancel(ctx), runID, status,
		len(pending), res.Pairs, res.Failed); err != nil {
		slog.Warn("generate: recording run outcome failed", "run_id", runID, "error", err)
	}
	if genErr != nil {
		return res, genErr
	}

	slog.Info("generate: run complete",
		"source", src.Name, "run_id", runID, "pairs", res.Pairs,
		"failed", res.Failed, "skipped", res.Skipped, "resumed", res.Resumed)
	return res, nil
}

// Stats returns counts of the stored objects.
func (p *pipeline) Stats(ctx context.Context) (*store.Stats, error) {
	return p.store.Stats(ctx)
}

// Store returns the underlying store for diagnostic access.
func (p *pipeline) Store() *store.Store {
	return p.store
}

// Close shuts down the pipeline.
func (p *pipeline) Close() error {
	return p.store.Close()
}

func (p *pipeline) source(ctx context.Context, name string) (*store.Source, error) {
	src, err := p.store.GetSource(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, name)
	}
	return src, err
}

// sourceName derives a source name from a file path.
func sourceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// fileHash computes the SHA-256 hash of a file's content.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
