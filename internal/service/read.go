package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/starford/onto/internal/apperr"
	"github.com/starford/onto/internal/graph"
	"github.com/starford/onto/internal/index"
	"github.com/starford/onto/internal/model"
	"github.com/starford/onto/internal/query"
)

// EdgeView is an edge as returned to callers.
type EdgeView struct {
	From       string            `json:"from"`
	Relation   string            `json:"relation"`
	To         string            `json:"to"`
	Qualifiers map[string]string `json:"qualifiers,omitempty"`
	SourceFile string            `json:"source_file"`
	Implicit   bool              `json:"implicit,omitempty"`
}

// InstanceDetail is one instance with its edges in both directions.
type InstanceDetail struct {
	index.InstanceRow
	Checksum  string     `json:"checksum"`
	Outgoing  []EdgeView `json:"outgoing"`
	Backlinks []EdgeView `json:"backlinks"`
}

// Search parses and evaluates q against the current graph.
func (s *Service) Search(ctx context.Context, q string) ([]query.Result, error) {
	g, err := s.Graph(ctx)
	if err != nil {
		return nil, err
	}
	return query.Search(q, g)
}

// Traverse walks outward from id up to depth.
func (s *Service) Traverse(ctx context.Context, id string, depth int) (*graph.View, []graph.Step, error) {
	g, err := s.Graph(ctx)
	if err != nil {
		return nil, nil, err
	}
	if depth < 0 {
		return nil, nil, fmt.Errorf("service: depth %d: %w", depth, apperr.ErrInvalidInput)
	}
	view, steps, err := graph.Neighbourhood(g, id, depth)
	if errors.Is(err, graph.ErrStartNotFound) {
		return nil, nil, fmt.Errorf("service: %w: %w", err, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}
	return view, steps, nil
}

// Instance returns the instance registered under id.
func (s *Service) Instance(ctx context.Context, id string) (*InstanceDetail, error) {
	snap, _, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	inst, ok := snap.Graph.Instance(id)
	if !ok {
		return nil, fmt.Errorf("service: instance %q: %w", id, apperr.ErrNotFound)
	}
	d := &InstanceDetail{
		InstanceRow: index.NewInstanceRow(inst),
		Outgoing:    edgeViews(snap.Graph.Outgoing(id)),
		Backlinks:   edgeViews(snap.Graph.Incoming(id)),
	}
	for _, f := range snap.Files {
		if f.Path == inst.SourceFile {
			d.Checksum = f.Checksum
			break
		}
	}
	return d, nil
}

func edgeViews(edges []*model.Edge) []EdgeView {
	out := make([]EdgeView, 0, len(edges))
	for _, e := range edges {
		v := EdgeView{
			From:       e.From,
			Relation:   e.Relation,
			To:         e.To,
			SourceFile: e.SourceFile,
			Implicit:   e.Implicit,
		}
		if len(e.Qualifiers) > 0 {
			v.Qualifiers = make(map[string]string, len(e.Qualifiers))
			for k, q := range e.Qualifiers {
				v.Qualifiers[k] = q.String()
			}
		}
		out = append(out, v)
	}
	return out
}

// ListInstances returns a page of instances ordered by id, optionally
// restricted to one class, together with the total.
func (s *Service) ListInstances(ctx context.Context, class string, limit, offset int) ([]index.InstanceRow, int, error) {
	if s.db != nil {
		if _, _, err := s.current(ctx); err != nil {
			return nil, 0, err
		}
		return s.db.ListInstances(class, limit, offset)
	}

	g, err := s.Graph(ctx)
	if err != nil {
		return nil, 0, err
	}
	seen := make(map[string]struct{})
	var all []index.InstanceRow
	for _, inst := range g.Instances {
		if _, dup := seen[inst.ID]; dup || inst.ID == "" {
			continue
		}
		seen[inst.ID] = struct{}{}
		if class == "" || inst.Class == class {
			all = append(all, index.NewInstanceRow(inst))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return append([]index.InstanceRow{}, all[offset:end]...), total, nil
}

// ClassCounts returns the number of instances of each class, by class name.
// Classes declared in the schema but without instances are omitted.
func (s *Service) ClassCounts(ctx context.Context) ([]index.ClassCount, error) {
	if s.db != nil {
		if _, _, err := s.current(ctx); err != nil {
			return nil, err
		}
		return s.db.ClassCounts()
	}

	rows, _, err := s.ListInstances(ctx, "", math.MaxInt32, 0)
	if err != nil {
		return nil, err
	}
	byClass := make(map[string]int)
	for _, r := range rows {
		byClass[r.Class]++
	}
	out := make([]index.ClassCount, 0, len(byClass))
	for class, n := range byClass {
		out = append(out, index.ClassCount{Class: class, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Class < out[j].Class })
	return out, nil
}

// Hit kinds.
const (
	HitClass    = "class"
	HitRelation = "relation"
)

// Hit is a transport-friendly search result.
type Hit struct {
	Kind       string                `json:"kind"`
	ID         string                `json:"id"`
	Class      string                `json:"class"`
	SourceFile string                `json:"source_file"`
	Matches    []query.PropertyMatch `json:"matches,omitempty"`
	Edge       *EdgeView             `json:"edge,omitempty"`
	Qualifier  string                `json:"qualifier,omitempty"`
	Value      string                `json:"value,omitempty"`
}

// NewHits converts evaluator results into hits, keeping their order.
func NewHits(results []query.Result) []Hit {
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		inst := r.Subject()
		h := Hit{ID: inst.ID, Class: inst.Class, SourceFile: inst.SourceFile}
		switch r := r.(type) {
		case *query.ClassResult:
			h.Kind = HitClass
			h.Matches = r.Matches
		case *query.RelationResult:
			h.Kind = HitRelation
			h.Edge = &edgeViews([]*model.Edge{r.Edge})[0]
			h.Qualifier = r.Qualifier
			h.Value = r.Value
		}
		hits = append(hits, h)
	}
	return hits
}

// SearchHits is Search with results converted by NewHits.
func (s *Service) SearchHits(ctx context.Context, q string) ([]Hit, error) {
	results, err := s.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	return NewHits(results), nil
}

// ReadFile returns the raw content of a store file.
func (s *Service) ReadFile(_ context.Context, p string) ([]byte, error) {
	data, err := s.store.Read(p)
	if err != nil {
		return nil, fmt.Errorf("service: %s: %w", p, apperr.ErrNotFound)
	}
	return data, nil
}
