// Package graph writes extracted case facts into the graph store. Every
// write is a merge on natural keys, so replaying an ingest leaves the store
// unchanged.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/StartGackt/coj-backend/extract"
	"github.com/StartGackt/coj-backend/store"
)

// Store is the graph persistence the coordinator and the ranker need.
// *store.Store implements it.
type Store interface {
	MergeNode(ctx context.Context, n store.Node) (int64, error)
	MergeEdge(ctx context.Context, e store.Edge) error
	MergeChunk(ctx context.Context, c store.DocChunk) error
	QueryFacts(ctx context.Context, caseID string, limit int) ([]store.Fact, error)
	QueryChunks(ctx context.Context, caseID string) ([]store.DocChunk, error)
}

// Summary counts the merge operations issued by one UpsertGraph call. A
// merge that hit an existing node or edge still counts.
type Summary struct {
	EntitiesWritten  int `json:"entities_written"`
	RelationsWritten int `json:"relations_written"`
}

// Coordinator maps extraction bundles onto idempotent store merges.
type Coordinator struct {
	store Store
}

// NewCoordinator creates a coordinator writing to s.
func NewCoordinator(s Store) *Coordinator {
	return &Coordinator{store: s}
}

// UpsertGraph merges the facts of bundles under caseID. Nodes are written
// first, then the CourtCase and the party structure around it, then the
// bundle relations, so every edge finds both endpoints.
func (c *Coordinator) UpsertGraph(ctx context.Context, caseID string, bundles ...*extract.Bundle) (Summary, error) {
	var sum Summary
	start := time.Now()

	caseRef := extract.NodeRef{Label: extract.LabelCourtCase, Key: caseID}

	mergeNode := func(label, key string, props map[string]string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.store.MergeNode(ctx, store.Node{Label: extract.NormalizeLabel(label), Key: key, Props: props}); err != nil {
			return err
		}
		sum.EntitiesWritten++
		return nil
	}
	mergeEdge := func(from extract.NodeRef, typ string, to extract.NodeRef) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.store.MergeEdge(ctx, store.Edge{
			SrcLabel: extract.NormalizeLabel(from.Label), SrcKey: from.Key,
			Type:     typ,
			DstLabel: extract.NormalizeLabel(to.Label), DstKey: to.Key,
		})
		if err != nil {
			return fmt.Errorf("%s -%s-> %s: %w", from.Key, typ, to.Key, err)
		}
		sum.RelationsWritten++
		return nil
	}

	if err := mergeNode(extract.LabelCourtCase, caseID, map[string]string{"caseId": caseID}); err != nil {
		return sum, fmt.Errorf("merging case %s: %w", caseID, err)
	}

	for _, b := range bundles {
		if b == nil {
			continue
		}
		for _, n := range b.Nodes {
			if err := mergeNode(n.Label, n.Key, n.Props); err != nil {
				return sum, fmt.Errorf("merging node %s/%s: %w", n.Label, n.Key, err)
			}
		}

		for _, n := range b.Nodes {
			var err error
			switch n.Label {
			case extract.LabelPerson:
				err = c.linkParty(n, caseRef, mergeNode, mergeEdge)
			case extract.LabelMoneyAmount:
				err = mergeEdge(caseRef, extract.RelHasAmount, n.Ref())
			case extract.LabelDate:
				err = mergeEdge(caseRef, extract.RelOccurredOn, n.Ref())
			case extract.LabelSection:
				err = mergeEdge(caseRef, extract.RelCites, n.Ref())
			}
			if err != nil {
				return sum, err
			}
		}

		for _, r := range b.Relations {
			if err := mergeEdge(r.From, r.Type, r.To); err != nil {
				return sum, err
			}
		}
	}

	slog.Info("graph: upsert complete",
		"case_id", caseID,
		"entities", sum.EntitiesWritten,
		"relations", sum.RelationsWritten,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return sum, nil
}

// linkParty gives a person with a role hint its LegalRole node and ties it
// to the case. Plaintiffs additionally CLAIM against the case.
func (c *Coordinator) linkParty(
	person extract.Node,
	caseRef extract.NodeRef,
	mergeNode func(label, key string, props map[string]string) error,
	mergeEdge func(from extract.NodeRef, typ string, to extract.NodeRef) error,
) error {
	role := person.Props["role"]
	if role == "" {
		return nil
	}
	roleRef := extract.NodeRef{Label: extract.LabelLegalRole, Key: person.Key}
	if err := mergeNode(roleRef.Label, roleRef.Key, map[string]string{"value": role}); err != nil {
		return fmt.Errorf("merging role %s: %w", person.Key, err)
	}
	if err := mergeEdge(person.Ref(), extract.RelHasRole, roleRef); err != nil {
		return err
	}
	if err := mergeEdge(person.Ref(), extract.RelParty, caseRef); err != nil {
		return err
	}
	if role == extract.RolePlaintiff {
		return mergeEdge(person.Ref(), extract.RelClaims, caseRef)
	}
	return nil
}

// IndexDocChunks upserts chunks on (caseId, chunkId) and returns how many
// were written.
func (c *Coordinator) IndexDocChunks(ctx context.Context, chunks []extract.Chunk) (int, error) {
	n := 0
	for _, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		err := c.store.MergeChunk(ctx, store.DocChunk{
			CaseID:  ch.CaseID,
			ChunkID: ch.ChunkID,
			Text:    ch.Text,
			Page:    ch.Page,
			Section: ch.Section,
		})
		if err != nil {
			return n, err
		}
		n++
	}
	slog.Debug("graph: chunks indexed", "count", n)
	return n, nil
}
