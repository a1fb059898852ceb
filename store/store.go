// Package store persists law sources, statute sections, generated QA pairs
// and question embeddings in SQLite.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/brunobiangulo/lawqa/dataset"
	"github.com/brunobiangulo/lawqa/lawdata"
)

func init() {
	sqlite_vec.Auto()
}

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("store: not found")

// Source represents a row in the sources table.
type Source struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Format      string `json:"format"`
	ContentHash string `json:"content_hash"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Pair is a stored QA pair.
type Pair struct {
	ID       int64  `json:"id"`
	SourceID int64  `json:"source_id"`
	RunID    *int64 `json:"run_id,omitempty"`
	dataset.QAPair
}

// Run represents a row in the generation_runs table.
type Run struct {
	ID         int64  `json:"id"`
	SourceID   int64  `json:"source_id"`
	Model      string `json:"model"`
	Status     string `json:"status"`
	Records    int    `json:"records"`
	Pairs      int    `json:"pairs"`
	Failed     int    `json:"failed"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// Run statuses.
const (
	RunRunning  = "running"
	RunComplete = "complete"
	RunFailed   = "failed"
)

// Neighbor is a stored question close to a query embedding.
type Neighbor struct {
	PairID   int64   `json:"pair_id"`
	UUID     string  `json:"uuid"`
	Question string  `json:"question"`
	Score    float64 `json:"score"`
}

// Store wraps the SQLite database for all lawqa persistence.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including the sqlite-vec virtual table.
func New(dbPath string, embeddingDim int) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// --- Source operations ---

// UpsertSource inserts or updates a source by name. changed is true when the
// source is new or its content hash differs from the stored one.
func (s *Store) UpsertSource(ctx context.Context, src Source) (id int64, changed bool, err error) {
	var oldHash string
	err = s.db.QueryRowContext(ctx,
		"SELECT id, content_hash FROM sources WHERE name = ?", src.Name).Scan(&id, &oldHash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO sources (name, path, format, content_hash) VALUES (?, ?, ?, ?)
		`, src.Name, src.Path, src.Format, src.ContentHash)
		if err != nil {
			return 0, false, err
		}
		id, err = res.LastInsertId()
		return id, true, err
	case err != nil:
		return 0, false, err
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE sources SET path = ?, format = ?, content_hash = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, src.Path, src.Format, src.ContentHash, id); err != nil {
		return 0, false, err
	}
	return id, oldHash != src.ContentHash, nil
}

// GetSource retrieves a source by name.
func (s *Store) GetSource(ctx context.Context, name string) (*Source, error) {
	src := &Source{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, path, format, content_hash, created_at, updated_at
		FROM sources WHERE name = ?
	`, name).Scan(&src.ID, &src.Name, &src.Path, &src.Format,
		&src.ContentHash, &src.CreatedAt, &src.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: source %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

// ListSources returns all sources ordered by name.
func (s *Store) ListSources(ctx context.Context) ([]Source, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, path, format, content_hash, created_at, updated_at
		FROM sources ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.ID, &src.Name, &src.Path, &src.Format,
			&src.ContentHash, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// --- Law operations ---

// UpsertLaws stores the records of a source. When the source's content hash
// is unchanged the stored laws are kept and changed is false; otherwise the
// source's laws are replaced in file order.
func (s *Store) UpsertLaws(ctx context.Context, src Source, records []lawdata.LawRecord) (sourceID int64, changed bool, err error) {
	sourceID, changed, err = s.UpsertSource(ctx, src)
	if err != nil || !changed {
		return sourceID, changed, err
	}
	return sourceID, true, s.ReplaceLaws(ctx, sourceID, records)
}

// ReplaceLaws deletes the laws of a source and inserts records in order.
func (s *Store) ReplaceLaws(ctx context.Context, sourceID int64, records []lawdata.LawRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM laws WHERE source_id = ?", sourceID); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO laws (source_id, position, section_id, record, content_hash)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, rec := range records {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encoding law %d: %w", i, err)
			}
			if _, err := stmt.ExecContext(ctx, sourceID, i, rec.SectionID(), string(data),
				contentHash(string(rec.Content))); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListLaws returns a source's records in file order.
func (s *Store) ListLaws(ctx context.Context, sourceID int64) ([]lawdata.LawRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT record FROM laws WHERE source_id = ? ORDER BY position", sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []lawdata.LawRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec lawdata.LawRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decoding law record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// --- Generation runs ---

// StartRun records the start of a generation run.
func (s *Store) StartRun(ctx context.Context, sourceID int64, model string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO generation_runs (source_id, model, status) VALUES (?, ?, ?)",
		sourceID, model, RunRunning)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishRun records the outcome of a run.
func (s *Store) FinishRun(ctx context.Context, runID int64, status string, records, pairs, failed int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE generation_runs
		SET status = ?, records = ?, pairs = ?, failed = ?, finished_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, status, records, pairs, failed, runID)
	return err
}

// ListRuns returns the runs of a source, newest first.
func (s *Store) ListRuns(ctx context.Context, sourceID int64) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, model, status, records, pairs, failed, started_at, finished_at
		FROM generation_runs WHERE source_id = ? ORDER BY id DESC
	`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullString
		if err := rows.Scan(&r.ID, &r.SourceID, &r.Model, &r.Status,
			&r.Records, &r.Pairs, &r.Failed, &r.StartedAt, &finished); err != nil {
			return nil, err
		}
		r.FinishedAt = finished.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// --- QA pair operations ---

// SectionsWithPairs returns the section ids of a source that already have
// pairs from model, so an interrupted generation can resume.
func (s *Store) SectionsWithPairs(ctx context.Context, sourceID int64, model string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT section_id FROM qa_pairs WHERE source_id = ? AND model = ?
	`, sourceID, model)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		done[id] = true
	}
	return done, rows.Err()
}

// InsertPairs stores pairs for a source and returns their row ids. A zero
// runID stores the pairs without a run.
func (s *Store) InsertPairs(ctx context.Context, sourceID, runID int64, pairs []dataset.QAPair) ([]int64, error) {
	ids := make([]int64, len(pairs))
	var run *int64
	if runID != 0 {
		run = &runID
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO qa_pairs (uuid, source_id, run_id, section_id, question, answer,
				law_reference, input_context, model, needs_review, diagnostics, extra)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, p := range pairs {
			diagnostics, err := nullJSON(p.Diagnostics)
			if err != nil {
				return err
			}
			extra, err := nullJSON(p.Extra)
			if err != nil {
				return err
			}
			res, err := stmt.ExecContext(ctx, p.ID, sourceID, run, p.Section,
				p.Question, p.Answer, p.LawReference, p.InputContext, p.Model,
				p.NeedsReview, diagnostics, extra)
			if err != nil {
				return fmt.Errorf("inserting pair %s: %w", p.ID, err)
			}
			if ids[i], err = res.LastInsertId(); err != nil {
				return err
			}
		}
		return nil
	})
	return ids, err
}

// ListPairs returns the pairs of a source in insertion order. A zero
// sourceID lists every pair.
func (s *Store) ListPairs(ctx context.Context, sourceID int64) ([]Pair, error) {
	query := `
		SELECT p.id, p.uuid, p.source_id, p.run_id, p.section_id, p.question, p.answer,
			p.law_reference, p.input_context, p.model, p.needs_review, p.diagnostics, p.extra,
			src.name
		FROM qa_pairs p JOIN sources src ON src.id = p.source_id`
	var args []any
	if sourceID != 0 {
		query += " WHERE p.source_id = ?"
		args = append(args, sourceID)
	}
	query += " ORDER BY p.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []Pair
	for rows.Next() {
		var (
			p                  Pair
			ref, input, model  sql.NullString
			diagnostics, extra sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.QAPair.ID, &p.SourceID, &p.RunID, &p.Section,
			&p.Question, &p.Answer, &ref, &input, &model, &p.NeedsReview,
			&diagnostics, &extra, &p.Source); err != nil {
			return nil, err
		}
		p.LawReference = ref.String
		p.InputContext = input.String
		p.Model = model.String
		if diagnostics.Valid {
			if err := json.Unmarshal([]byte(diagnostics.String), &p.Diagnostics); err != nil {
				return nil, fmt.Errorf("decoding diagnostics of pair %d: %w", p.ID, err)
			}
		}
		if extra.Valid {
			if err := json.Unmarshal([]byte(extra.String), &p.Extra); err != nil {
				return nil, fmt.Errorf("decoding extra of pair %d: %w", p.ID, err)
			}
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// FlagPair marks a pair for review and appends a diagnostic.
func (s *Store) FlagPair(ctx context.Context, pairID int64, diagnostic string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var raw sql.NullString
		err := tx.QueryRowContext(ctx, "SELECT diagnostics FROM qa_pairs WHERE id = ?", pairID).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: pair %d", ErrNotFound, pairID)
		}
		if err != nil {
			return err
		}
		var diagnostics []string
		if raw.Valid {
			if err := json.Unmarshal([]byte(raw.String), &diagnostics); err != nil {
				return err
			}
		}
		diagnostics = append(diagnostics, diagnostic)
		data, err := json.Marshal(diagnostics)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE qa_pairs SET needs_review = 1, diagnostics = ? WHERE id = ?", string(data), pairID)
		return err
	})
}

// --- Embedding operations ---

// InsertQuestionEmbedding stores the embedding of a pair's question.
func (s *Store) InsertQuestionEmbedding(ctx context.Context, pairID int64, embedding []float32) error {
	if len(embedding) != s.embeddingDim {
		return fmt.Errorf("embedding has %d dimensions, store expects %d", len(embedding), s.embeddingDim)
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_questions (pair_id, embedding) VALUES (?, ?)",
		pairID, serializeFloat32(embedding))
	return err
}

// PairHasEmbedding checks if a pair's question has been embedded.
func (s *Store) PairHasEmbedding(ctx context.Context, pairID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vec_questions WHERE pair_id = ?", pairID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// NearestQuestions performs a KNN search returning the k stored questions
// closest to embedding. Score is cosine similarity.
func (s *Store) NearestQuestions(ctx context.Context, embedding []float32, k int) ([]Neighbor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.pair_id, v.distance, p.uuid, p.question
		FROM vec_questions v
		JOIN qa_pairs p ON p.id = v.pair_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(embedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Neighbor
	for rows.Next() {
		var n Neighbor
		var distance float64
		if err := rows.Scan(&n.PairID, &distance, &n.UUID, &n.Question); err != nil {
			return nil, err
		}
		n.Score = 1.0 - distance
		results = append(results, n)
	}
	return results, rows.Err()
}

// --- Stats ---

// Stats holds counts of key database objects.
type Stats struct {
	Sources    int `json:"sources"`
	Laws       int `json:"laws"`
	Pairs      int `json:"pairs"`
	Flagged    int `json:"flagged"`
	Embeddings int `json:"embeddings"`
	Runs       int `json:"runs"`
}

// Stats returns counts of sources, laws, pairs, flagged pairs, embeddings
// and runs.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM sources", &stats.Sources},
		{"SELECT COUNT(*) FROM laws", &stats.Laws},
		{"SELECT COUNT(*) FROM qa_pairs", &stats.Pairs},
		{"SELECT COUNT(*) FROM qa_pairs WHERE needs_review = 1", &stats.Flagged},
		{"SELECT COUNT(*) FROM vec_questions", &stats.Embeddings},
		{"SELECT COUNT(*) FROM generation_runs", &stats.Runs},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ContentHash returns the hex SHA-256 of data, used for change detection.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func contentHash(s string) string { return ContentHash([]byte(s)) }

// nullJSON encodes v, or returns nil for an empty slice or map.
func nullJSON[T any](v T) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	switch string(data) {
	case "null", "[]", "{}":
		return nil, nil
	}
	return string(data), nil
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
