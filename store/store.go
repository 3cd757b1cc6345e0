package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

var (
	// ErrMissingEndpoint is returned by MergeEdge when either endpoint node
	// does not exist. Nothing is written.
	ErrMissingEndpoint = errors.New("store: edge endpoint not found")

	// ErrClosed is returned for operations on a closed store.
	ErrClosed = errors.New("store: closed")
)

// Node represents a row in the nodes table.
type Node struct {
	ID    int64             `json:"id"`
	Label string            `json:"label"`
	Key   string            `json:"key"`
	Props map[string]string `json:"props,omitempty"`
}

// Edge identifies a directed edge by the natural keys of its endpoints.
type Edge struct {
	SrcLabel string `json:"src_label"`
	SrcKey   string `json:"src_key"`
	Type     string `json:"type"`
	DstLabel string `json:"dst_label"`
	DstKey   string `json:"dst_key"`
}

// DocChunk represents a row in the doc_chunks table.
type DocChunk struct {
	ID      int64  `json:"-"`
	CaseID  string `json:"caseId"`
	ChunkID string `json:"chunkId"`
	Text    string `json:"text"`
	Page    int    `json:"page"`
	Section string `json:"section"`
}

// QueryLog represents a row in the query_log table.
type QueryLog struct {
	Query     string `json:"query"`
	CaseID    string `json:"case_id"`
	Operation string `json:"operation"`
	Mode      string `json:"mode"`
	TopK      int    `json:"top_k"`
	Hits      int    `json:"hits"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// Stats holds row counts.
type Stats struct {
	Nodes      int `json:"nodes"`
	Edges      int `json:"edges"`
	Chunks     int `json:"chunks"`
	Embeddings int `json:"embeddings"`
	Cases      int `json:"cases"`
}

// Store wraps the SQLite database holding the case graph, doc chunks and
// the embedding cache.
type Store struct {
	db     *sql.DB
	closed atomic.Bool
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// --- Graph operations ---

// MergeNode inserts the node or, when (label, key) already exists, merges
// props into the stored ones. Existing keys not present in props are kept.
func (s *Store) MergeNode(ctx context.Context, n Node) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	props, err := marshalProps(n.Props)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO nodes (label, key, props)
		VALUES (?, ?, ?)
		ON CONFLICT(label, key) DO UPDATE SET
			props = json_patch(nodes.props, excluded.props),
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`, n.Label, n.Key, props).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("merging node %s/%s: %w", n.Label, n.Key, err)
	}
	return id, nil
}

// MergeEdge creates the edge unless it already exists. Both endpoints are
// resolved in the same transaction; if either is missing ErrMissingEndpoint
// is returned and nothing is written.
func (s *Store) MergeEdge(ctx context.Context, e Edge) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		src, err := nodeID(ctx, tx, e.SrcLabel, e.SrcKey)
		if err != nil {
			return err
		}
		dst, err := nodeID(ctx, tx, e.DstLabel, e.DstKey)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO edges (src_id, rel_type, dst_id) VALUES (?, ?, ?)
			ON CONFLICT(src_id, rel_type, dst_id) DO NOTHING
		`, src, e.Type, dst)
		return err
	})
}

func nodeID(ctx context.Context, tx *sql.Tx, label, key string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, "SELECT id FROM nodes WHERE label = ? AND key = ?", label, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s/%s", ErrMissingEndpoint, label, key)
	}
	return id, err
}

// GetNode returns the node with the given label and key.
func (s *Store) GetNode(ctx context.Context, label, key string) (*Node, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var n Node
	var props string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, label, key, props FROM nodes WHERE label = ? AND key = ?", label, key,
	).Scan(&n.ID, &n.Label, &n.Key, &props)
	if err != nil {
		return nil, err
	}
	n.Props, err = unmarshalProps(props)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// NodesByLabel returns every node with the given label in insertion order.
func (s *Store) NodesByLabel(ctx context.Context, label string) ([]Node, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, label, key, props FROM nodes WHERE label = ? ORDER BY id", label)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		var props string
		if err := rows.Scan(&n.ID, &n.Label, &n.Key, &props); err != nil {
			return nil, err
		}
		if n.Props, err = unmarshalProps(props); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// HasEdge reports whether the edge exists.
func (s *Store) HasEdge(ctx context.Context, e Edge) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM edges e
		JOIN nodes a ON a.id = e.src_id
		JOIN nodes b ON b.id = e.dst_id
		WHERE a.label = ? AND a.key = ? AND e.rel_type = ? AND b.label = ? AND b.key = ?
	`, e.SrcLabel, e.SrcKey, e.Type, e.DstLabel, e.DstKey).Scan(&n)
	return n > 0, err
}

// --- Doc chunk operations ---

// MergeChunk upserts a chunk on (case_id, chunk_id). Re-ingesting replaces
// text, page and section but keeps the row id, so insertion order is stable.
func (s *Store) MergeChunk(ctx context.Context, c DocChunk) error {
	if s.closed.Load() {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO doc_chunks (case_id, chunk_id, text, page, section, seq)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM doc_chunks))
		ON CONFLICT(case_id, chunk_id) DO UPDATE SET
			text = excluded.text,
			page = excluded.page,
			section = excluded.section,
			seq = excluded.seq,
			updated_at = CURRENT_TIMESTAMP
	`, c.CaseID, c.ChunkID, c.Text, c.Page, c.Section)
	if err != nil {
		return fmt.Errorf("merging chunk %s/%s: %w", c.CaseID, c.ChunkID, err)
	}
	return nil
}

// QueryChunks returns the chunks of caseID in insertion order, or every
// chunk when caseID is empty.
func (s *Store) QueryChunks(ctx context.Context, caseID string) ([]DocChunk, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, case_id, chunk_id, text, page, section
		FROM doc_chunks
		WHERE ? = '' OR case_id = ?
		ORDER BY id
	`, caseID, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []DocChunk
	for rows.Next() {
		var c DocChunk
		if err := rows.Scan(&c.ID, &c.CaseID, &c.ChunkID, &c.Text, &c.Page, &c.Section); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// --- Query log ---

// LogQuery writes an entry to the query audit log.
func (s *Store) LogQuery(ctx context.Context, q QueryLog) error {
	if s.closed.Load() {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_log (query, case_id, operation, mode, top_k, hits, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, q.Query, q.CaseID, q.Operation, q.Mode, q.TopK, q.Hits, q.ElapsedMs)
	return err
}

// --- Stats ---

// Stats returns row counts for nodes, edges, chunks, cached embeddings and
// court cases.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	stats := &Stats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM nodes", &stats.Nodes},
		{"SELECT COUNT(*) FROM edges", &stats.Edges},
		{"SELECT COUNT(*) FROM doc_chunks", &stats.Chunks},
		{"SELECT COUNT(*) FROM embedding_cache", &stats.Embeddings},
		{"SELECT COUNT(*) FROM nodes WHERE label = 'CourtCase'", &stats.Cases},
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

func repeatPlaceholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += ", ?"
	}
	return s
}

func marshalProps(props map[string]string) (string, error) {
	if len(props) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("encoding props: %w", err)
	}
	return string(b), nil
}

func unmarshalProps(raw string) (map[string]string, error) {
	if raw == "" || raw == "{}" {
		return nil, nil
	}
	var generic map[string]any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return nil, fmt.Errorf("decoding props: %w", err)
	}
	props := make(map[string]string, len(generic))
	for k, v := range generic {
		switch tv := v.(type) {
		case string:
			props[k] = tv
		case nil:
		default:
			props[k] = fmt.Sprint(tv)
		}
	}
	return props, nil
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeFloat32(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
