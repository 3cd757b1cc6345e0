//go:build cgo

package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ---------------------------------------------------------------------------
// Schema / construction
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	s := newTestStore(t)
	v, err := s.schemaVersion(context.Background())
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("schema version = %d, want %d", v, len(migrations))
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	s, err := New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	s.Close()
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := New(path)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	if _, err := s.MergeNode(ctx, Node{Label: "Person", Key: "โจทก์"}); err != nil {
		t.Fatalf("merging node: %v", err)
	}
	s.Close()

	s, err = New(path)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer s.Close()
	if _, err := s.GetNode(ctx, "Person", "โจทก์"); err != nil {
		t.Fatalf("node lost after reopen: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Nodes and edges
// ---------------------------------------------------------------------------

func TestMergeNodeIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, err := s.MergeNode(ctx, Node{Label: "Person", Key: "โจทก์", Props: map[string]string{"role": "Plaintiff"}})
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}
	id2, err := s.MergeNode(ctx, Node{Label: "Person", Key: "โจทก์"})
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if id1 != id2 {
		t.Errorf("ids differ: %d vs %d", id1, id2)
	}

	n, err := s.GetNode(ctx, "Person", "โจทก์")
	if err != nil {
		t.Fatalf("get node: %v", err)
	}
	if n.Props["role"] != "Plaintiff" {
		t.Errorf("role lost on re-merge: %v", n.Props)
	}

	stats, _ := s.Stats(ctx)
	if stats.Nodes != 1 {
		t.Errorf("nodes = %d, want 1", stats.Nodes)
	}
}

func TestMergeNodePatchesProps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.MergeNode(ctx, Node{Label: "CourtCase", Key: "C1", Props: map[string]string{"caseId": "C1"}})
	s.MergeNode(ctx, Node{Label: "CourtCase", Key: "C1", Props: map[string]string{"name": "คดี C1"}})

	n, err := s.GetNode(ctx, "CourtCase", "C1")
	if err != nil {
		t.Fatalf("get node: %v", err)
	}
	if n.Props["caseId"] != "C1" || n.Props["name"] != "คดี C1" {
		t.Errorf("props = %v, want both keys", n.Props)
	}
}

func TestSameKeyDifferentLabels(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.MergeNode(ctx, Node{Label: "Chapter", Key: "หมวด 1"})
	s.MergeNode(ctx, Node{Label: "Group", Key: "หมวด 1"})

	stats, _ := s.Stats(ctx)
	if stats.Nodes != 2 {
		t.Errorf("nodes = %d, want 2", stats.Nodes)
	}
}

func TestMergeEdgeIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.MergeNode(ctx, Node{Label: "Person", Key: "โจทก์"})
	s.MergeNode(ctx, Node{Label: "CourtCase", Key: "C1"})

	e := Edge{SrcLabel: "Person", SrcKey: "โจทก์", Type: "PARTY", DstLabel: "CourtCase", DstKey: "C1"}
	for i := 0; i < 3; i++ {
		if err := s.MergeEdge(ctx, e); err != nil {
			t.Fatalf("merge edge %d: %v", i, err)
		}
	}

	stats, _ := s.Stats(ctx)
	if stats.Edges != 1 {
		t.Errorf("edges = %d, want 1", stats.Edges)
	}
	ok, err := s.HasEdge(ctx, e)
	if err != nil || !ok {
		t.Errorf("HasEdge = %v, %v", ok, err)
	}
}

func TestMergeEdgeMissingEndpoint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.MergeNode(ctx, Node{Label: "Person", Key: "โจทก์"})

	err := s.MergeEdge(ctx, Edge{SrcLabel: "Person", SrcKey: "โจทก์", Type: "PARTY", DstLabel: "CourtCase", DstKey: "missing"})
	if !errors.Is(err, ErrMissingEndpoint) {
		t.Fatalf("err = %v, want ErrMissingEndpoint", err)
	}
	stats, _ := s.Stats(ctx)
	if stats.Edges != 0 {
		t.Errorf("edges = %d, want 0", stats.Edges)
	}
}

// ---------------------------------------------------------------------------
// Doc chunks
// ---------------------------------------------------------------------------

func TestMergeChunkUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.MergeChunk(ctx, DocChunk{CaseID: "C1", ChunkID: "C1-1", Text: "first", Page: 1})
	s.MergeChunk(ctx, DocChunk{CaseID: "C1", ChunkID: "C1-2", Text: "second", Page: 2})
	if err := s.MergeChunk(ctx, DocChunk{CaseID: "C1", ChunkID: "C1-1", Text: "first v2", Page: 1, Section: "มาตรา 118"}); err != nil {
		t.Fatalf("re-merge chunk: %v", err)
	}

	chunks, err := s.QueryChunks(ctx, "C1")
	if err != nil {
		t.Fatalf("query chunks: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if chunks[0].ChunkID != "C1-1" || chunks[0].Text != "first v2" {
		t.Errorf("chunk[0] = %+v, want updated C1-1 first", chunks[0])
	}
	if chunks[0].Section != "มาตรา 118" {
		t.Errorf("section = %q", chunks[0].Section)
	}
}

func TestQueryChunksScoping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.MergeChunk(ctx, DocChunk{CaseID: "A", ChunkID: "A-1", Text: "a"})
	s.MergeChunk(ctx, DocChunk{CaseID: "B", ChunkID: "B-1", Text: "b"})

	all, _ := s.QueryChunks(ctx, "")
	if len(all) != 2 {
		t.Errorf("all chunks = %d, want 2", len(all))
	}
	b, _ := s.QueryChunks(ctx, "B")
	if len(b) != 1 || b[0].CaseID != "B" {
		t.Errorf("case B chunks = %+v", b)
	}
	none, _ := s.QueryChunks(ctx, "Z")
	if len(none) != 0 {
		t.Errorf("unknown case chunks = %d, want 0", len(none))
	}
}

// ---------------------------------------------------------------------------
// Facts
// ---------------------------------------------------------------------------

func seedCase(t *testing.T, s *Store, caseID string) {
	t.Helper()
	ctx := context.Background()
	nodes := []Node{
		{Label: "CourtCase", Key: caseID, Props: map[string]string{"caseId": caseID}},
		{Label: "Person", Key: "โจทก์", Props: map[string]string{"role": "Plaintiff"}},
		{Label: "LegalRole", Key: "โจทก์", Props: map[string]string{"value": "Plaintiff"}},
		{Label: "MoneyAmount", Key: "10,000 บาท"},
		{Label: "Date", Key: "2014-11-01"},
		{Label: "Section", Key: "มาตรา 118"},
		{Label: "Section_desc", Key: "ให้นายจ้างจ่ายค่าชดเชย"},
	}
	for _, n := range nodes {
		if _, err := s.MergeNode(ctx, n); err != nil {
			t.Fatalf("merge node: %v", err)
		}
	}
	edges := []Edge{
		{"Person", "โจทก์", "PARTY", "CourtCase", caseID},
		{"Person", "โจทก์", "HAS_ROLE", "LegalRole", "โจทก์"},
		{"CourtCase", caseID, "HAS_AMOUNT", "MoneyAmount", "10,000 บาท"},
		{"CourtCase", caseID, "OCCURRED_ON", "Date", "2014-11-01"},
		{"CourtCase", caseID, "CITES", "Section", "มาตรา 118"},
		{"Section", "มาตรา 118", "HAS_DESC", "Section_desc", "ให้นายจ้างจ่ายค่าชดเชย"},
	}
	for _, e := range edges {
		if err := s.MergeEdge(ctx, e); err != nil {
			t.Fatalf("merge edge %+v: %v", e, err)
		}
	}
}

func TestQueryFacts(t *testing.T) {
	s := newTestStore(t)
	seedCase(t, s, "C1")

	facts, err := s.QueryFacts(context.Background(), "C1", 20)
	if err != nil {
		t.Fatalf("query facts: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("facts = %d, want 1: %+v", len(facts), facts)
	}
	want := Fact{
		Person:      "โจทก์",
		Role:        "Plaintiff",
		CaseID:      "C1",
		Date:        "2014-11-01",
		Amount:      "10,000 บาท",
		Section:     "มาตรา 118",
		SectionDesc: "ให้นายจ้างจ่ายค่าชดเชย",
	}
	if facts[0] != want {
		t.Errorf("fact = %+v, want %+v", facts[0], want)
	}
}

func TestQueryFactsCaseScoping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedCase(t, s, "C1")
	s.MergeNode(ctx, Node{Label: "CourtCase", Key: "C2"})
	s.MergeNode(ctx, Node{Label: "Date", Key: "2020-01-01"})
	s.MergeEdge(ctx, Edge{"CourtCase", "C2", "OCCURRED_ON", "Date", "2020-01-01"})

	facts, _ := s.QueryFacts(ctx, "C2", 20)
	for _, f := range facts {
		if f.CaseID != "C2" {
			t.Errorf("fact from wrong case: %+v", f)
		}
	}
	if len(facts) != 1 || facts[0].Date != "2020-01-01" || facts[0].Person != "" {
		t.Errorf("C2 facts = %+v", facts)
	}

	all, _ := s.QueryFacts(ctx, "", 0)
	if len(all) != 2 {
		t.Errorf("all facts = %d, want 2", len(all))
	}
	none, _ := s.QueryFacts(ctx, "missing", 20)
	if len(none) != 0 {
		t.Errorf("missing case facts = %d, want 0", len(none))
	}
}

func TestQueryFactsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedCase(t, s, "C1")
	for _, d := range []string{"2015-01-01", "2016-01-01", "2017-01-01"} {
		s.MergeNode(ctx, Node{Label: "Date", Key: d})
		s.MergeEdge(ctx, Edge{"CourtCase", "C1", "OCCURRED_ON", "Date", d})
	}

	facts, _ := s.QueryFacts(ctx, "C1", 2)
	if len(facts) != 2 {
		t.Errorf("facts = %d, want 2", len(facts))
	}
}

func TestRecentCaseIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	merge := func(caseID, chunkID string) {
		t.Helper()
		if err := s.MergeChunk(ctx, DocChunk{CaseID: caseID, ChunkID: chunkID, Text: "x", Page: 1}); err != nil {
			t.Fatalf("merge chunk: %v", err)
		}
	}
	merge("C1", "C1-1")
	merge("C1", "C1-2")
	merge("C2", "C2-1")
	merge("C3", "C3-1")
	// Re-ingesting C1 makes it the most recent case.
	merge("C1", "C1-1")

	ids, err := s.RecentCaseIDs(ctx, 10)
	if err != nil {
		t.Fatalf("recent case ids: %v", err)
	}
	if strings.Join(ids, ",") != "C2,C3,C1" {
		t.Errorf("ids = %v, want [C2 C3 C1]", ids)
	}

	ids, _ = s.RecentCaseIDs(ctx, 2)
	if strings.Join(ids, ",") != "C3,C1" {
		t.Errorf("limited ids = %v, want [C3 C1]", ids)
	}

	chunks, _ := s.QueryChunks(ctx, "C1")
	if len(chunks) != 2 || chunks[0].ChunkID != "C1-1" {
		t.Errorf("re-ingest changed chunk order: %+v", chunks)
	}
}

// ---------------------------------------------------------------------------
// Embedding cache
// ---------------------------------------------------------------------------

func TestEmbeddingCacheRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vecs := map[string][]float32{
		"h1": {0.1, 0.2, 0.3, 0.4},
		"h2": {1, 0, 0, 0},
	}
	if err := s.PutEmbeddings(ctx, "m", vecs); err != nil {
		t.Fatalf("put embeddings: %v", err)
	}

	got, err := s.GetEmbeddings(ctx, "m", []string{"h1", "h2", "h3"})
	if err != nil {
		t.Fatalf("get embeddings: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d vectors, want 2", len(got))
	}
	for i, v := range vecs["h1"] {
		if got["h1"][i] != v {
			t.Errorf("h1[%d] = %v, want %v", i, got["h1"][i], v)
		}
	}

	other, _ := s.GetEmbeddings(ctx, "other-model", []string{"h1"})
	if len(other) != 0 {
		t.Error("cache must be keyed by model")
	}
}

// ---------------------------------------------------------------------------
// Query log / stats / close
// ---------------------------------------------------------------------------

func TestLogQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.LogQuery(ctx, QueryLog{Query: "ค่าจ้าง", CaseID: "C1", Operation: "search", Mode: "lexical", TopK: 5, Hits: 2}); err != nil {
		t.Fatalf("log query: %v", err)
	}
	var n int
	s.db.QueryRow("SELECT COUNT(*) FROM query_log").Scan(&n)
	if n != 1 {
		t.Errorf("query_log rows = %d, want 1", n)
	}
}

func TestClosedStore(t *testing.T) {
	s := newTestStore(t)
	s.Close()

	if _, err := s.MergeNode(context.Background(), Node{Label: "Person", Key: "x"}); !errors.Is(err, ErrClosed) {
		t.Errorf("MergeNode after close: %v, want ErrClosed", err)
	}
	if _, err := s.QueryChunks(context.Background(), ""); !errors.Is(err, ErrClosed) {
		t.Errorf("QueryChunks after close: %v, want ErrClosed", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
