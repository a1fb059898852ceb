// Package generate synthesizes question-answer pairs from statute sections
// with a chat model.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brunobiangulo/lawqa/dataset"
	"github.com/brunobiangulo/lawqa/lawdata"
	"github.com/brunobiangulo/lawqa/llm"
)

var (
	// ErrEmptyContent is returned for a record with no section text.
	ErrEmptyContent = errors.New("generate: record has no content")

	// ErrAllFailed is returned when no eligible record produced a response.
	ErrAllFailed = errors.New("generate: every record failed")
)

const (
	defaultEnglish     = 2
	defaultBangla      = 1
	defaultConcurrency = 4
	defaultTimeout     = 180 * time.Second
)

// Options tunes generation.
type Options struct {
	// English and Bangla set how many pairs of each language are requested
	// per section.
	English int `json:"english" yaml:"english"`
	Bangla  int `json:"bangla" yaml:"bangla"`

	Temperature float64 `json:"temperature" yaml:"temperature"`

	// Concurrency bounds parallel chat calls.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// Timeout caps one record's chat call.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Model and Source label the generated pairs.
	Model  string `json:"model" yaml:"model"`
	Source string `json:"source" yaml:"source"`
}

func (o Options) withDefaults() Options {
	if o.English <= 0 && o.Bangla <= 0 {
		o.English, o.Bangla = defaultEnglish, defaultBangla
	}
	if o.English < 0 {
		o.English = 0
	}
	if o.Bangla < 0 {
		o.Bangla = 0
	}
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return o
}

// Generator turns law records into QA pairs.
type Generator struct {
	chat llm.Provider
	opts Options

	// OnRecord, when set, receives the pairs of each finished record. Calls
	// are serialized.
	OnRecord func(rec lawdata.LawRecord, pairs []dataset.QAPair) error
}

// New creates a generator that talks to chat.
func New(chat llm.Provider, opts Options) *Generator {
	return &Generator{chat: chat, opts: opts.withDefaults()}
}

// Result summarizes a Generate call.
type Result struct {
	Pairs   []dataset.QAPair
	Records int
	Skipped int
	Failed  int
}

// Generate asks the model for pairs about each record. Records without
// content are skipped. A record whose call or reply fails is logged and
// counted; the rest carry on. Pairs come back in record order.
func (g *Generator) Generate(ctx context.Context, records []lawdata.LawRecord) (Result, error) {
	res := Result{Records: len(records)}

	var eligible []int
	for i, rec := range records {
		if strings.TrimSpace(string(rec.Content)) == "" {
			slog.Debug("generate: skipping record without content", "section", rec.SectionID())
			res.Skipped++
			continue
		}
		eligible = append(eligible, i)
	}
	if len(eligible) == 0 {
		return res, nil
	}

	slog.Info("generate: processing sections", "total", len(records), "eligible", len(eligible),
		"skipped", res.Skipped, "concurrency", g.opts.Concurrency, "model", g.opts.Model)

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		sem       = make(chan struct{}, g.opts.Concurrency)
		perRecord = make([][]dataset.QAPair, len(records))
		errs      []string
		completed int
		start     = time.Now()
	)

	for _, idx := range eligible {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			rec := records[idx]

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				errs = append(errs, fmt.Sprintf("section %s: %v", rec.SectionID(), ctx.Err()))
				mu.Unlock()
				return
			}

			recCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
			defer cancel()

			recStart := time.Now()
			pairs, err := g.GenerateRecord(recCtx, rec)

			mu.Lock()
			defer mu.Unlock()
			completed++
			if err != nil {
				slog.Warn("generate: section failed",
					"section", rec.SectionID(), "error", err,
					"elapsed", time.Since(recStart).Round(time.Millisecond))
				errs = append(errs, fmt.Sprintf("section %s: %v", rec.SectionID(), err))
				return
			}
			if g.OnRecord != nil {
				if err := g.OnRecord(rec, pairs); err != nil {
					slog.Warn("generate: saving section failed", "section", rec.SectionID(), "error", err)
					errs = append(errs, fmt.Sprintf("section %s: %v", rec.SectionID(), err))
					return
				}
			}
			perRecord[idx] = pairs
			slog.Info("generate: section processed",
				"progress", fmt.Sprintf("%d/%d", completed, len(eligible)),
				"section", rec.SectionID(),
				"pairs", len(pairs),
				"elapsed", time.Since(recStart).Round(time.Millisecond),
				"total_elapsed", time.Since(start).Round(time.Millisecond))
		}(idx)
	}
	wg.Wait()

	for _, pairs := range perRecord {
		res.Pairs = append(res.Pairs, pairs...)
	}
	res.Failed = len(errs)

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if len(errs) == len(eligible) {
		return res, fmt.Errorf("%w: %d records; first error: %s", ErrAllFailed, len(eligible), errs[0])
	}
	if len(errs) > 0 {
		slog.Warn("generate: completed with failures",
			"succeeded", len(eligible)-len(errs), "failed", len(errs), "total", len(eligible))
	}
	return res, nil
}

// qaResult is the JSON shape the model is asked to return.
type qaResult struct {
	Output []dataset.QAPair `json:"output"`
}

// GenerateRecord asks the model for the pairs of a single record. Pairs
// without a question or an answer are dropped.
func (g *Generator) GenerateRecord(ctx context.Context, rec lawdata.LawRecord) ([]dataset.QAPair, error) {
	content := strings.TrimSpace(string(rec.Content))
	if content == "" {
		return nil, ErrEmptyContent
	}

	resp, err := g.chat.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "user", Content: Prompt(rec, g.opts)},
		},
		Temperature:    g.opts.Temperature,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return nil, fmt.Errorf("qa generation llm chat: %w", err)
	}

	jsonStr, err := llm.ExtractJSON(resp.Content)
	if err != nil {
		slog.Debug("generate: unparseable response", "section", rec.SectionID(), "response", resp.Content)
		return nil, fmt.Errorf("parsing qa result: %w", err)
	}

	var result qaResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		slog.Debug("generate: unparseable response", "section", rec.SectionID(), "response", resp.Content)
		return nil, fmt.Errorf("unmarshalling qa result: %w", err)
	}

	model := g.opts.Model
	if model == "" {
		model = resp.Model
	}

	pairs := make([]dataset.QAPair, 0, len(result.Output))
	for _, p := range result.Output {
		p.Question = strings.TrimSpace(p.Question)
		p.Answer = strings.TrimSpace(p.Answer)
		if p.Question == "" || p.Answer == "" {
			continue
		}
		p.LawReference = strings.TrimSpace(p.LawReference)
		if p.LawReference == "" {
			p.LawReference = Reference(rec)
		}
		p.InputContext = content
		p.ID = uuid.NewString()
		p.Section = rec.SectionID()
		p.Source = g.opts.Source
		p.Model = model
		p.Extra = nil
		pairs = append(pairs, p)
	}
	return pairs, nil
}
