// Package cover builds the nonlinear interaction graph of a problem and
// selects the discretization variable set by solving a minimum vertex
// cover over it with a 0-1 program oracle.
package cover

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ampsolve/ampsolve/model"
)

// A Graph is the term-interaction graph: nodes are variables appearing in
// nonlinear terms (plus declared integer variables), arcs are the groups
// of variables that must be covered together. Most arcs are unordered
// pairs; unary terms yield self-loops, and IntLin terms yield one arc
// spanning all operands as a single coupling unit.
type Graph struct {
	Nodes []int
	Arcs  [][]int

	nodes map[int]bool
	arcs  map[string]bool
}

func newGraph() *Graph {
	return &Graph{nodes: make(map[int]bool), arcs: make(map[string]bool)}
}

func (g *Graph) addNode(v int) {
	if !g.nodes[v] {
		g.nodes[v] = true
		g.Nodes = append(g.Nodes, v)
	}
}

// addArc records a deduplicated, undirected arc over the given variables.
// A single variable yields a self-loop.
func (g *Graph) addArc(vars ...int) {
	members := map[int]bool{}
	for _, v := range vars {
		members[v] = true
	}
	arc := make([]int, 0, len(members))
	for v := range members {
		arc = append(arc, v)
	}
	sort.Ints(arc)
	key := arcKey(arc)
	for _, v := range arc {
		g.addNode(v)
	}
	if g.arcs[key] {
		return
	}
	g.arcs[key] = true
	g.Arcs = append(g.Arcs, arc)
}

func arcKey(arc []int) string {
	parts := make([]string, len(arc))
	for i, v := range arc {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// Covers reports whether a node touches every arc of the graph.
func (g *Graph) Covers(nodes map[int]bool) bool {
	for _, arc := range g.Arcs {
		touched := false
		for _, v := range arc {
			if nodes[v] {
				touched = true
				break
			}
		}
		if !touched {
			return false
		}
	}
	return true
}

// Build derives the interaction graph from the term registry. Arc rules by
// term kind: products (Bilinear, Multilinear, IntProd) couple every
// operand pair; unary terms (Monomial, Sin, Cos) need their variable
// covered and get a self-loop; IntLin operands form one coupling unit;
// binary-anchored products (BinLin, BinInt, BinProd) are linear once the
// binaries are fixed and are excluded. Declared integer variables that
// appear in no term get a defensive self-loop so they are never lost by
// the selection.
func Build(pb *model.Problem) (*Graph, error) {
	g := newGraph()
	for i := range pb.Terms {
		t := &pb.Terms[i]
		switch t.Kind {
		case model.Bilinear, model.Multilinear, model.IntProd:
			for a := 0; a < len(t.Operands); a++ {
				for b := a + 1; b < len(t.Operands); b++ {
					g.addArc(t.Operands[a], t.Operands[b])
				}
			}
			if len(t.Operands) == 1 {
				g.addArc(t.Operands[0])
			}
		case model.Monomial, model.Sin, model.Cos:
			g.addArc(t.Operands[0])
		case model.IntLin:
			g.addArc(t.Operands...)
		case model.BinLin, model.BinInt, model.BinProd:
			// Linear after the binaries are fixed: no discretization needed.
		default:
			return nil, errors.Wrapf(model.ErrUnknownTermKind, "term %d kind tag %d", i, byte(t.Kind))
		}
	}
	for v := 0; v < pb.NbOriginal(); v++ {
		if pb.Vars[v].Kind == model.Integer && !g.nodes[v] {
			g.addArc(v)
		}
	}
	sort.Ints(g.Nodes)
	return g, nil
}
