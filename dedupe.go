package lawqa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brunobiangulo/lawqa/dataset"
	"github.com/brunobiangulo/lawqa/store"
)

// DedupeResult reports what a Dedupe pass found.
type DedupeResult struct {
	Checked  int `json:"checked"`  // pairs not seen by an earlier pass
	Embedded int `json:"embedded"` // questions embedded in this pass
	Exact    int `json:"exact"`
	Near     int `json:"near"`
	Reviewed int `json:"reviewed"` // pairs flagged by the content checks
}

const embedBatchSize = 32

// Dedupe checks every pair whose question has not been embedded yet. The
// first pair of a duplicate group stays clean; later ones are flagged with a
// diagnostic naming it.
func (p *pipeline) Dedupe(ctx context.Context) (*DedupeResult, error) {
	if p.embedLLM == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", ErrInvalidConfig)
	}

	pairs, err := p.store.ListPairs(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("listing pairs: %w", err)
	}

	res := &DedupeResult{}
	seen := make(map[string]string, len(pairs)) // question key -> uuid
	exact := make(map[int64]bool)
	var fresh []store.Pair
	for _, sp := range pairs {
		has, err := p.store.PairHasEmbedding(ctx, sp.ID)
		if err != nil {
			return nil, err
		}
		key := dataset.QuestionKey(sp.Question)
		first, dup := seen[key]
		if key != "" && !dup {
			seen[key] = sp.QAPair.ID
		}
		if has {
			continue
		}

		fresh = append(fresh, sp)
		res.Checked++

		if key != "" && dup {
			if err := p.store.FlagPair(ctx, sp.ID, "duplicate of question "+first); err != nil {
				return nil, err
			}
			exact[sp.ID] = true
			res.Exact++
		}
		if f := dataset.Check(sp.QAPair); !f.OK() {
			if err := p.store.FlagPair(ctx, sp.ID, "review: "+strings.Join(f.Issues, "; ")); err != nil {
				return nil, err
			}
			res.Reviewed++
		}
	}
	if len(fresh) == 0 {
		slog.Info("dedupe: no new pairs")
		return res, nil
	}

	embeddings, err := p.embedQuestions(ctx, fresh)
	if err != nil {
		return res, err
	}
	res.Embedded = len(embeddings)

	threshold := p.cfg.Dedupe.Threshold
	k := p.cfg.Dedupe.Neighbors + 1 // the pair itself comes back first
	for _, sp := range fresh {
		emb, ok := embeddings[sp.ID]
		if !ok || exact[sp.ID] {
			continue
		}
		neighbors, err := p.store.NearestQuestions(ctx, emb, k)
		if err != nil {
			return res, fmt.Errorf("searching neighbors: %w", err)
		}
		for _, n := range neighbors {
			if n.PairID >= sp.ID || n.Score < threshold {
				continue
			}
			diag := fmt.Sprintf("near duplicate of question %s (similarity %.3f)", n.UUID, n.Score)
			if err := p.store.FlagPair(ctx, sp.ID, diag); err != nil {
				return res, err
			}
			res.Near++
			break
		}
	}

	slog.Info("dedupe: done",
		"checked", res.Checked, "embedded", res.Embedded,
		"exact", res.Exact, "near", res.Near, "reviewed", res.Reviewed)
	return res, nil
}

// embedQuestions embeds and stores the questions of pairs in batches.
// A failed batch falls back to one text at a time so a single bad question
// does not lose the whole batch.
func (p *pipeline) embedQuestions(ctx context.Context, pairs []store.Pair) (map[int64][]float32, error) {
	out := make(map[int64][]float32, len(pairs))
	var failed int

	save := func(pairID int64, emb []float32) {
		if err := p.store.InsertQuestionEmbedding(ctx, pairID, emb); err != nil {
			slog.Warn("dedupe: storing embedding failed", "pair_id", pairID, "error", err)
			failed++
			return
		}
		out[pairID] = emb
	}

	for i := 0; i < len(pairs); i += embedBatchSize {
		end := min(i+embedBatchSize, len(pairs))
		batch := pairs[i:end]

		texts := make([]string, len(batch))
		for j, sp := range batch {
			texts[j] = sp.Question
		}

		embeddings, err := p.embedLLM.Embed(ctx, texts)
		if err == nil && len(embeddings) == len(batch) {
			for j, emb := range embeddings {
				save(batch[j].ID, emb)
			}
			continue
		}
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		slog.Warn("dedupe: embedding batch failed, falling back to individual",
			"batch_start", i, "batch_end", end, "error", err)
		for j, text := range texts {
			single, serr := p.embedLLM.Embed(ctx, []string{text})
			if serr != nil || len(single) == 0 || len(single[0]) == 0 {
				slog.Warn("dedupe: embedding single question failed",
					"pair_id", batch[j].ID, "error", serr)
				failed++
				continue
			}
			save(batch[j].ID, single[0])
		}
	}

	if failed == len(pairs) {
		return out, fmt.Errorf("%w: all %d questions", ErrEmbeddingFailed, len(pairs))
	}
	if failed > 0 {
		slog.Warn("dedupe: some embeddings failed", "failed", failed, "total", len(pairs))
	}
	return out, nil
}
