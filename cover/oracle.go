package cover

import (
	"math"
	"sort"

	"github.com/crillab/gophersat/solver"
	"github.com/pkg/errors"
)

// pbScale converts fractional cover weights into pseudo-boolean
// coefficients; weight ratios are preserved up to this resolution.
const pbScale = 10000

// An Oracle solves the 0-1 covering program over an interaction graph:
// minimize the weighted sum of selected nodes subject to one covering
// constraint per arc. Implementations are expected to be exact.
type Oracle interface {
	MinCover(g *Graph, weights map[int]float64) ([]int, error)
}

// PBOracle solves covers with the gophersat pseudo-boolean engine. It is
// the default oracle and handles both unit and fractional weights.
type PBOracle struct{}

// MinCover returns a minimum-weight vertex cover of g, sorted by variable
// index. Nil weights mean unit weights.
func (PBOracle) MinCover(g *Graph, weights map[int]float64) ([]int, error) {
	if len(g.Nodes) == 0 || len(g.Arcs) == 0 {
		return nil, nil
	}
	ids := make(map[int]int, len(g.Nodes)) // variable -> 1-based PB var
	for i, v := range g.Nodes {
		ids[v] = i + 1
	}
	constrs := make([]solver.PBConstr, len(g.Arcs))
	for i, arc := range g.Arcs {
		lits := make([]int, len(arc))
		for j, v := range arc {
			lits[j] = ids[v]
		}
		constrs[i] = solver.AtLeast(lits, 1)
	}
	pb := solver.ParsePBConstrs(constrs)
	lits := make([]solver.Lit, len(g.Nodes))
	costs := make([]int, len(g.Nodes))
	for i, v := range g.Nodes {
		lits[i] = solver.IntToLit(int32(i + 1))
		costs[i] = pbWeight(weights, v)
	}
	pb.SetCostFunc(lits, costs)
	s := solver.New(pb)
	if cost := s.Minimize(); cost < 0 {
		return nil, errors.New("cover: the covering program is unsatisfiable")
	}
	bindings := s.Model()
	var selected []int
	for i, v := range g.Nodes {
		if bindings[i] {
			selected = append(selected, v)
		}
	}
	sort.Ints(selected)
	return selected, nil
}

func pbWeight(weights map[int]float64, v int) int {
	if weights == nil {
		return 1
	}
	w := weights[v]
	if w <= 0 || math.IsInf(w, 0) || math.IsNaN(w) {
		return 1
	}
	scaled := int(math.Round(w * pbScale))
	if scaled < 1 {
		return 1
	}
	return scaled
}
