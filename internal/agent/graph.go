package agent

import (
	"context"
	"fmt"
)

// NodeID names one node of the agent graph.
type NodeID string

// End terminates graph traversal.
const End NodeID = "__end__"

const (
	NodeQueryRewriter    NodeID = "query_rewriter"
	NodeDocRetriever     NodeID = "doc_retriever"
	NodeDocGrader        NodeID = "doc_grader"
	NodeAnswerGeneration NodeID = "answer_generation"
	NodeFallbackAgent    NodeID = "fallback_agent"
)

// NodeFunc mutates the state in place. An error aborts the invocation and
// skips that node's checkpoint commit.
type NodeFunc func(ctx context.Context, s *State) error

// Predicate maps a state to a route label for a conditional edge.
type Predicate func(s *State) string

type conditionalEdge struct {
	predicate Predicate
	targets   map[string]NodeID
}

// Graph is the compiled control flow: a node registry, one outgoing edge
// per node (plain or conditional), and an entry point.
type Graph struct {
	nodes       map[NodeID]NodeFunc
	edges       map[NodeID]NodeID
	conditional map[NodeID]conditionalEdge
	entry       NodeID
}

// Builder accumulates nodes and edges; Compile validates the result.
type Builder struct {
	graph *Graph
	errs  []error
}

func NewBuilder() *Builder {
	return &Builder{graph: &Graph{
		nodes:       map[NodeID]NodeFunc{},
		edges:       map[NodeID]NodeID{},
		conditional: map[NodeID]conditionalEdge{},
	}}
}

func (b *Builder) AddNode(id NodeID, fn NodeFunc) *Builder {
	if id == "" || id == End {
		b.errs = append(b.errs, fmt.Errorf("invalid node id %q", id))
		return b
	}
	if fn == nil {
		b.errs = append(b.errs, fmt.Errorf("node %s: nil func", id))
		return b
	}
	if _, dup := b.graph.nodes[id]; dup {
		b.errs = append(b.errs, fmt.Errorf("node %s: already registered", id))
		return b
	}
	b.graph.nodes[id] = fn
	return b
}

func (b *Builder) AddEdge(from, to NodeID) *Builder {
	if b.hasOutgoing(from) {
		b.errs = append(b.errs, fmt.Errorf("node %s: multiple outgoing edges", from))
		return b
	}
	b.graph.edges[from] = to
	return b
}

func (b *Builder) AddConditionalEdges(from NodeID, predicate Predicate, targets map[string]NodeID) *Builder {
	if b.hasOutgoing(from) {
		b.errs = append(b.errs, fmt.Errorf("node %s: multiple outgoing edges", from))
		return b
	}
	if predicate == nil || len(targets) == 0 {
		b.errs = append(b.errs, fmt.Errorf("node %s: conditional edge needs a predicate and targets", from))
		return b
	}
	b.graph.conditional[from] = conditionalEdge{predicate: predicate, targets: targets}
	return b
}

func (b *Builder) SetEntry(id NodeID) *Builder {
	b.graph.entry = id
	return b
}

func (b *Builder) hasOutgoing(from NodeID) bool {
	_, plain := b.graph.edges[from]
	_, cond := b.graph.conditional[from]
	return plain || cond
}

// Compile checks that the entry exists, every node has exactly one outgoing
// edge, and every edge lands on a registered node or End.
func (b *Builder) Compile() (*Graph, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	g := b.graph

	if g.entry == "" {
		return nil, fmt.Errorf("graph: entry not set")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, fmt.Errorf("graph: entry %s not registered", g.entry)
	}

	checkTarget := func(from, to NodeID) error {
		if to == End {
			return nil
		}
		if _, ok := g.nodes[to]; !ok {
			return fmt.Errorf("graph: edge %s -> %s targets unknown node", from, to)
		}
		return nil
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("graph: edge from unknown node %s", from)
		}
		if err := checkTarget(from, to); err != nil {
			return nil, err
		}
	}
	for from, cond := range g.conditional {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("graph: conditional edge from unknown node %s", from)
		}
		for route, to := range cond.targets {
			if err := checkTarget(from, to); err != nil {
				return nil, fmt.Errorf("route %q: %w", route, err)
			}
		}
	}
	for id := range g.nodes {
		if _, plain := g.edges[id]; plain {
			continue
		}
		if _, cond := g.conditional[id]; cond {
			continue
		}
		return nil, fmt.Errorf("graph: node %s has no outgoing edge", id)
	}
	return g, nil
}

// Next resolves the node following from for the given state.
func (g *Graph) Next(from NodeID, s *State) (NodeID, error) {
	if to, ok := g.edges[from]; ok {
		return to, nil
	}
	if cond, ok := g.conditional[from]; ok {
		route := cond.predicate(s)
		to, ok := cond.targets[route]
		if !ok {
			return End, fmt.Errorf("graph: node %s: predicate returned unknown route %q", from, route)
		}
		return to, nil
	}
	return End, fmt.Errorf("graph: node %s has no outgoing edge", from)
}

func (g *Graph) node(id NodeID) (NodeFunc, error) {
	fn, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("graph: unknown node %s", id)
	}
	return fn, nil
}
