// Package graph walks outgoing edges from an instance for relationship
// visualisation.
package graph

import (
	"errors"
	"fmt"

	"github.com/starford/onto/internal/model"
)

// ErrStartNotFound is returned when the walk's start id is not a loaded instance.
var ErrStartNotFound = errors.New("graph: start instance not found")

// Step is one traversed edge, labelled with the depth of its source node.
type Step struct {
	ID       string `json:"id"`
	Relation string `json:"relation"`
	Target   string `json:"target"`
	Depth    int    `json:"depth"`
}

type queued struct {
	id    string
	depth int
}

// Walk runs a breadth-first traversal from startID over outgoing edges.
//
// A node is marked visited when dequeued and is never expanded again, so the
// first arrival wins. Every outgoing edge of a dequeued node is reported at
// that node's depth; only enqueuing its target is bounded by maxDepth. With
// maxDepth 0 the start node's own edges are reported and nothing more.
func Walk(g *model.Graph, startID string, maxDepth int) ([]Step, error) {
	if _, ok := g.Instance(startID); !ok {
		return nil, fmt.Errorf("%w: %q", ErrStartNotFound, startID)
	}

	adj := make(map[string][]*model.Edge)
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e)
	}

	steps := []Step{}
	visited := make(map[string]bool)
	queue := []queued{{id: startID}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur.id] {
			continue
		}
		visited[cur.id] = true

		for _, e := range adj[cur.id] {
			steps = append(steps, Step{ID: cur.id, Relation: e.Relation, Target: e.To, Depth: cur.depth})
			if cur.depth+1 <= maxDepth && !visited[e.To] {
				queue = append(queue, queued{id: e.To, depth: cur.depth + 1})
			}
		}
	}
	return steps, nil
}

// Node is an instance in a visualised neighbourhood. Missing marks edge
// targets that are not loaded instances.
type Node struct {
	ID      string `json:"id"`
	Class   string `json:"class,omitempty"`
	Depth   int    `json:"depth"`
	Missing bool   `json:"missing,omitempty"`
}

// Link is a directed, typed edge between two nodes.
type Link struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
}

// View is the node/link form of a walk, ready for a force-directed renderer.
type View struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Neighbourhood walks from startID and folds the steps into a View. Nodes
// appear in discovery order with the depth at which they were first seen.
func Neighbourhood(g *model.Graph, startID string, maxDepth int) (*View, []Step, error) {
	steps, err := Walk(g, startID, maxDepth)
	if err != nil {
		return nil, nil, err
	}

	v := &View{Nodes: []Node{}, Links: []Link{}}
	seen := make(map[string]bool)
	add := func(id string, depth int) {
		if seen[id] {
			return
		}
		seen[id] = true
		n := Node{ID: id, Depth: depth}
		if inst, ok := g.Instance(id); ok {
			n.Class = inst.Class
		} else {
			n.Missing = true
		}
		v.Nodes = append(v.Nodes, n)
	}

	add(startID, 0)
	for _, s := range steps {
		add(s.ID, s.Depth)
		add(s.Target, s.Depth+1)
		v.Links = append(v.Links, Link{Source: s.ID, Target: s.Target, Relation: s.Relation})
	}
	return v, steps, nil
}
