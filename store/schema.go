package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimension.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Law sources (one per ingested statute file) with hash-based change detection
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    path TEXT NOT NULL,
    format TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Statute sections in file order. A section id may repeat within a source.
CREATE TABLE IF NOT EXISTS laws (
    id INTEGER PRIMARY KEY,
    source_id INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    section_id TEXT NOT NULL,
    record JSON NOT NULL,
    content_hash TEXT NOT NULL,
    UNIQUE(source_id, position)
);

-- Generation runs: one per (source, model) invocation
CREATE TABLE IF NOT EXISTS generation_runs (
    id INTEGER PRIMARY KEY,
    source_id INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
    model TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'running',
    records INTEGER DEFAULT 0,
    pairs INTEGER DEFAULT 0,
    failed INTEGER DEFAULT 0,
    started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    finished_at DATETIME
);

-- Generated question-answer pairs
CREATE TABLE IF NOT EXISTS qa_pairs (
    id INTEGER PRIMARY KEY,
    uuid TEXT NOT NULL UNIQUE,
    source_id INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
    run_id INTEGER REFERENCES generation_runs(id) ON DELETE SET NULL,
    section_id TEXT NOT NULL,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    law_reference TEXT,
    input_context TEXT,
    model TEXT,
    needs_review INTEGER NOT NULL DEFAULT 0,
    diagnostics JSON,
    extra JSON,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Question embeddings via sqlite-vec, keyed by qa_pairs.id
CREATE VIRTUAL TABLE IF NOT EXISTS vec_questions USING vec0(
    pair_id INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_laws_source ON laws(source_id);
CREATE INDEX IF NOT EXISTS idx_laws_section ON laws(section_id);
CREATE INDEX IF NOT EXISTS idx_pairs_source_section ON qa_pairs(source_id, section_id);
CREATE INDEX IF NOT EXISTS idx_pairs_review ON qa_pairs(needs_review);
CREATE INDEX IF NOT EXISTS idx_runs_source ON generation_runs(source_id);
`, embeddingDim)
}
