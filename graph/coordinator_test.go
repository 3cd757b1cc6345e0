//go:build cgo

package graph

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/StartGackt/coj-backend/extract"
	"github.com/StartGackt/coj-backend/store"
)

const sampleText = "เมื่อวันที่ 1 พฤศจิกายน 2557 จำเลยได้จ้างโจทก์เข้าทำงานเป็นลูกจ้าง อัตราค่าจ้างสุดท้ายเดือนละ 10,000 บาท ตามมาตรา 118 ให้นายจ้างจ่ายค่าชดเชย"

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func extractSample(t *testing.T) *extract.Bundle {
	t.Helper()
	b, err := extract.Extract(sampleText)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	return b
}

// ---------------------------------------------------------------------------
// UpsertGraph
// ---------------------------------------------------------------------------

func TestUpsertGraphIdempotent(t *testing.T) {
	s := newTestStore(t)
	c := NewCoordinator(s)
	ctx := context.Background()
	b := extractSample(t)

	if _, err := c.UpsertGraph(ctx, "C1", b); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	first, _ := s.Stats(ctx)

	sum, err := c.UpsertGraph(ctx, "C1", b)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	second, _ := s.Stats(ctx)

	if first.Nodes != second.Nodes || first.Edges != second.Edges {
		t.Errorf("counts changed: %+v -> %+v", first, second)
	}
	if sum.EntitiesWritten == 0 || sum.RelationsWritten == 0 {
		t.Errorf("summary = %+v, want non-zero", sum)
	}
}

func TestUpsertGraphPartyStructure(t *testing.T) {
	s := newTestStore(t)
	c := NewCoordinator(s)
	ctx := context.Background()

	if _, err := c.UpsertGraph(ctx, "C1", extractSample(t)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	edges := []store.Edge{
		{SrcLabel: "Person", SrcKey: "โจทก์", Type: "HAS_ROLE", DstLabel: "LegalRole", DstKey: "โจทก์"},
		{SrcLabel: "Person", SrcKey: "โจทก์", Type: "PARTY", DstLabel: "CourtCase", DstKey: "C1"},
		{SrcLabel: "Person", SrcKey: "โจทก์", Type: "CLAIMS", DstLabel: "CourtCase", DstKey: "C1"},
		{SrcLabel: "Person", SrcKey: "จำเลย", Type: "PARTY", DstLabel: "CourtCase", DstKey: "C1"},
		{SrcLabel: "CourtCase", SrcKey: "C1", Type: "HAS_AMOUNT", DstLabel: "MoneyAmount", DstKey: "10,000 บาท"},
		{SrcLabel: "CourtCase", SrcKey: "C1", Type: "OCCURRED_ON", DstLabel: "Date", DstKey: "2014-11-01"},
		{SrcLabel: "CourtCase", SrcKey: "C1", Type: "CITES", DstLabel: "Section", DstKey: "มาตรา 118"},
	}
	for _, e := range edges {
		ok, err := s.HasEdge(ctx, e)
		if err != nil {
			t.Fatalf("HasEdge: %v", err)
		}
		if !ok {
			t.Errorf("missing edge %s -%s-> %s", e.SrcKey, e.Type, e.DstKey)
		}
	}

	defendantClaims, _ := s.HasEdge(ctx, store.Edge{SrcLabel: "Person", SrcKey: "จำเลย", Type: "CLAIMS", DstLabel: "CourtCase", DstKey: "C1"})
	if defendantClaims {
		t.Error("defendant must not CLAIM")
	}

	role, err := s.GetNode(ctx, "LegalRole", "จำเลย")
	if err != nil {
		t.Fatalf("get role: %v", err)
	}
	if role.Props["value"] != "Defendant" {
		t.Errorf("role value = %q, want Defendant", role.Props["value"])
	}
}

func TestUpsertGraphFacts(t *testing.T) {
	s := newTestStore(t)
	c := NewCoordinator(s)
	ctx := context.Background()

	c.UpsertGraph(ctx, "C1", extractSample(t))

	facts, err := s.QueryFacts(ctx, "C1", 20)
	if err != nil {
		t.Fatalf("query facts: %v", err)
	}
	var plaintiff bool
	for _, f := range facts {
		if f.CaseID != "C1" {
			t.Errorf("fact for wrong case: %+v", f)
		}
		if f.Person == "โจทก์" && f.Role == "Plaintiff" && f.Amount == "10,000 บาท" && f.Date == "2014-11-01" {
			plaintiff = true
		}
	}
	if !plaintiff {
		t.Errorf("no plaintiff fact with amount and date: %+v", facts)
	}
}

func TestUpsertGraphSharedNodesAcrossCases(t *testing.T) {
	s := newTestStore(t)
	c := NewCoordinator(s)
	ctx := context.Background()
	b := extractSample(t)

	c.UpsertGraph(ctx, "C1", b)
	c.UpsertGraph(ctx, "C2", b)

	stats, _ := s.Stats(ctx)
	if stats.Cases != 2 {
		t.Errorf("cases = %d, want 2", stats.Cases)
	}
	persons, _ := s.NodesByLabel(ctx, "Person")
	if len(persons) != 2 {
		t.Errorf("persons = %d, want 2 shared nodes", len(persons))
	}
}

func TestUpsertGraphEmptyBundle(t *testing.T) {
	s := newTestStore(t)
	c := NewCoordinator(s)
	ctx := context.Background()

	sum, err := c.UpsertGraph(ctx, "C1", &extract.Bundle{})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if sum.EntitiesWritten != 1 || sum.RelationsWritten != 0 {
		t.Errorf("summary = %+v, want only the case node", sum)
	}
}

// ---------------------------------------------------------------------------
// IndexDocChunks
// ---------------------------------------------------------------------------

func TestIndexDocChunksIdempotent(t *testing.T) {
	s := newTestStore(t)
	c := NewCoordinator(s)
	ctx := context.Background()

	chunks := extract.AssignChunkIDs("C1", []extract.Chunk{{Text: "หนึ่ง"}, {Text: "สอง", Section: "มาตรา 118"}})
	for i := 0; i < 2; i++ {
		n, err := c.IndexDocChunks(ctx, chunks)
		if err != nil {
			t.Fatalf("index %d: %v", i, err)
		}
		if n != 2 {
			t.Errorf("indexed = %d, want 2", n)
		}
	}

	got, _ := s.QueryChunks(ctx, "C1")
	if len(got) != 2 {
		t.Fatalf("chunks = %d, want 2", len(got))
	}
	if got[1].ChunkID != "C1-2" || got[1].Page != 2 || got[1].Section != "มาตรา 118" {
		t.Errorf("chunk[1] = %+v", got[1])
	}
}
