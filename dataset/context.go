package dataset

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/lawqa/reference"
)

// fallbackNote is recorded on pairs whose citation carried no section marker.
const fallbackNote = "reference: section list taken from the last clause of the citation"

// ContextOptions tunes SetInputContext.
type ContextOptions struct {
	// Concurrency bounds the number of pairs resolved at once. Zero or less
	// means 4.
	Concurrency int

	// ReviewFallback flags pairs whose citation was split on its last comma
	// clause because neither section marker was present.
	ReviewFallback bool
}

// Report summarizes one SetInputContext run.
type Report struct {
	Records           int `json:"records"`
	Resolved          int `json:"resolved"`
	Unresolvable      int `json:"unresolvable"`
	UnmatchedSections int `json:"unmatched_sections"`
	Flagged           int `json:"flagged"`
	Fallback          int `json:"fallback"`
}

// SetInputContext resolves every pair's law_reference and stores the joined
// section content in input_context. Output order equals input order and the
// input slice is not modified. A failed citation flags its pair and the run
// moves on; only context cancellation stops it early.
func SetInputContext(ctx context.Context, pairs []QAPair, r *reference.Resolver, opts ContextOptions) ([]QAPair, Report, error) {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = 4
	}

	out := make([]QAPair, len(pairs))
	results := make([]reference.Result, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range pairs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.Resolve(pairs[i].LawReference)
			out[i] = applyResult(pairs[i], results[i], opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Report{}, err
	}

	report := Report{Records: len(pairs)}
	for i, res := range results {
		if len(res.Matches) > 0 {
			report.Resolved++
		}
		if len(res.Sections) == 0 {
			report.Unresolvable++
			slog.Warn("context: unresolvable citation", "index", i, "citation", res.Citation)
		}
		for _, id := range res.Missing {
			slog.Warn("context: no record for section", "index", i, "section", id, "citation", res.Citation)
		}
		report.UnmatchedSections += len(res.Missing)
		if res.Rule == reference.FallbackRule {
			report.Fallback++
		}
		if out[i].NeedsReview {
			report.Flagged++
		}
	}

	slog.Info("context: input context set",
		"records", report.Records,
		"resolved", report.Resolved,
		"unresolvable", report.Unresolvable,
		"unmatched_sections", report.UnmatchedSections,
		"flagged", report.Flagged)

	return out, report, nil
}

func applyResult(p QAPair, res reference.Result, opts ContextOptions) QAPair {
	p.InputContext = res.Context
	p.Diagnostics = nil
	for _, d := range res.Diagnostics {
		p.Diagnostics = append(p.Diagnostics, d.Error())
	}
	if opts.ReviewFallback && res.Rule == reference.FallbackRule {
		p.Diagnostics = append(p.Diagnostics, fallbackNote)
	}
	p.NeedsReview = len(p.Diagnostics) > 0
	return p
}
