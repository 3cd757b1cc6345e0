// Package extract turns raw Thai court-case text into typed graph facts
// using a table of independent pattern rules. Extraction is deterministic
// and never calls out to external services.
package extract

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalidText is returned for input that is not valid UTF-8 text.
var ErrInvalidText = errors.New("extract: input is not valid UTF-8 text")

// Node is a graph node identified by its label and natural key.
type Node struct {
	Label string            `json:"label"`
	Key   string            `json:"key"`
	Props map[string]string `json:"props,omitempty"`
}

// Ref returns the node's identity.
func (n Node) Ref() NodeRef { return NodeRef{Label: n.Label, Key: n.Key} }

// NodeRef identifies a node by (label, natural key).
type NodeRef struct {
	Label string `json:"label"`
	Key   string `json:"key"`
}

// Relation is a directed, typed edge between two nodes.
type Relation struct {
	From NodeRef `json:"from"`
	Type string  `json:"type"`
	To   NodeRef `json:"to"`
}

// Chunk is a retrievable slice of case text. CaseID, ChunkID and Page are
// assigned at ingest time by AssignChunkIDs.
type Chunk struct {
	CaseID  string `json:"caseId"`
	ChunkID string `json:"chunkId"`
	Text    string `json:"text"`
	Page    int    `json:"page"`
	Section string `json:"section"`
}

// Bundle is the output of Extract.
type Bundle struct {
	Nodes     []Node     `json:"nodes"`
	Relations []Relation `json:"relations"`
	Chunks    []Chunk    `json:"chunks"`
	// Misses lists rule classes that matched nothing.
	Misses []string `json:"misses,omitempty"`
}

// Extract runs every rule over text and returns the facts found, plus a
// single chunk holding the text. Empty input yields an empty bundle.
func Extract(text string) (*Bundle, error) {
	return ExtractWithLimit(text, 0)
}

// ExtractWithLimit is Extract with the text split into chunks of at most
// maxRunes runes (see SplitChunks).
func ExtractWithLimit(text string, maxRunes int) (*Bundle, error) {
	if !utf8.ValidString(text) {
		return nil, ErrInvalidText
	}
	text = norm.NFC.String(text)
	if strings.TrimSpace(text) == "" {
		return &Bundle{}, nil
	}

	s := NormalizeDigits(text)
	b := newBuilder()
	var misses []string
	for _, r := range rules {
		if !r.Apply(s, b) {
			misses = append(misses, r.Name)
		}
	}

	bundle := &Bundle{
		Nodes:     b.nodes,
		Relations: b.rels,
		Misses:    misses,
	}
	for _, piece := range SplitChunks(text, maxRunes) {
		bundle.Chunks = append(bundle.Chunks, Chunk{
			Text:    piece,
			Section: SectionLabel(piece),
		})
	}
	return bundle, nil
}

// builder accumulates nodes and relations, de-duplicating on identity
// while preserving insertion order.
type builder struct {
	nodes    []Node
	index    map[NodeRef]int
	rels     []Relation
	relIndex map[Relation]bool
}

func newBuilder() *builder {
	return &builder{
		index:    make(map[NodeRef]int),
		relIndex: make(map[Relation]bool),
	}
}

func (b *builder) node(label, key string, props map[string]string) NodeRef {
	ref := NodeRef{Label: NormalizeLabel(label), Key: strings.TrimSpace(key)}
	if i, ok := b.index[ref]; ok {
		for k, v := range props {
			if v == "" {
				continue
			}
			if b.nodes[i].Props == nil {
				b.nodes[i].Props = make(map[string]string)
			}
			b.nodes[i].Props[k] = v
		}
		return ref
	}
	var cp map[string]string
	if len(props) > 0 {
		cp = make(map[string]string, len(props))
		for k, v := range props {
			cp[k] = v
		}
	}
	b.index[ref] = len(b.nodes)
	b.nodes = append(b.nodes, Node{Label: ref.Label, Key: ref.Key, Props: cp})
	return ref
}

func (b *builder) has(label, key string) bool {
	_, ok := b.index[NodeRef{Label: label, Key: key}]
	return ok
}

func (b *builder) link(from NodeRef, typ string, to NodeRef) {
	r := Relation{From: from, Type: typ, To: to}
	if b.relIndex[r] {
		return
	}
	b.relIndex[r] = true
	b.rels = append(b.rels, r)
}
