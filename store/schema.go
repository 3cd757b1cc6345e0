package store

// schemaSQL is the DDL for all tables. Nodes are unique per (label, key)
// and edges per (src, type, dst), which is what makes graph upserts
// idempotent.
const schemaSQL = `
-- Knowledge graph: nodes keyed by their natural key
CREATE TABLE IF NOT EXISTS nodes (
    id INTEGER PRIMARY KEY,
    label TEXT NOT NULL,
    key TEXT NOT NULL,
    props JSON NOT NULL DEFAULT '{}',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(label, key)
);

-- Knowledge graph: directed typed edges
CREATE TABLE IF NOT EXISTS edges (
    id INTEGER PRIMARY KEY,
    src_id INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    rel_type TEXT NOT NULL,
    dst_id INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    UNIQUE(src_id, rel_type, dst_id)
);

-- Retrievable case text, one row per (case, chunk)
CREATE TABLE IF NOT EXISTS doc_chunks (
    id INTEGER PRIMARY KEY,
    case_id TEXT NOT NULL,
    chunk_id TEXT NOT NULL,
    text TEXT NOT NULL,
    page INTEGER NOT NULL DEFAULT 0,
    section TEXT NOT NULL DEFAULT '',
    seq INTEGER NOT NULL DEFAULT 0, -- bumped on every write; orders cases by last ingest
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(case_id, chunk_id)
);

-- Provider embeddings keyed by model and sha256 of the text
CREATE TABLE IF NOT EXISTS embedding_cache (
    model TEXT NOT NULL,
    text_hash TEXT NOT NULL,
    dim INTEGER NOT NULL,
    embedding BLOB NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (model, text_hash)
);

-- Query audit log
CREATE TABLE IF NOT EXISTS query_log (
    id INTEGER PRIMARY KEY,
    query TEXT NOT NULL,
    case_id TEXT,
    operation TEXT,
    mode TEXT,
    top_k INTEGER,
    hits INTEGER,
    elapsed_ms INTEGER,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_nodes_label ON nodes(label);
CREATE INDEX IF NOT EXISTS idx_edges_src ON edges(src_id, rel_type);
CREATE INDEX IF NOT EXISTS idx_doc_chunks_case ON doc_chunks(case_id);
CREATE INDEX IF NOT EXISTS idx_doc_chunks_seq ON doc_chunks(seq);
`
