package cover

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/ampsolve/ampsolve/model"
)

// Mode selects how the discretization variable set is chosen.
type Mode byte

const (
	// AllCandidates discretizes every variable of the interaction graph.
	AllCandidates = Mode(iota)
	// VertexCover solves an unweighted minimum vertex cover.
	VertexCover
	// WeightedVertexCover weights nodes by the inverse of a supplied
	// per-variable distance metric before solving the cover.
	WeightedVertexCover
)

func (m Mode) String() string {
	switch m {
	case AllCandidates:
		return "all-candidates"
	case VertexCover:
		return "vertex-cover"
	case WeightedVertexCover:
		return "weighted-vertex-cover"
	default:
		panic("invalid selection mode")
	}
}

// ErrUnknownMode is returned for selection mode identifiers outside the
// configuration surface.
var ErrUnknownMode = errors.New("cover: unknown selection mode")

// ParseMode maps a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "all-candidates":
		return AllCandidates, nil
	case "vertex-cover":
		return VertexCover, nil
	case "weighted-vertex-cover":
		return WeightedVertexCover, nil
	default:
		return AllCandidates, errors.Wrap(ErrUnknownMode, s)
	}
}

// Select returns the sorted discretization variable set for the graph.
// distances supplies the per-variable metric consumed by the weighted
// mode and is ignored otherwise. Selected variables whose tightened bound
// width is below tol are degenerate and dropped.
func Select(pb *model.Problem, g *Graph, mode Mode, oracle Oracle, distances []float64, tol float64) ([]int, error) {
	var chosen []int
	var err error
	switch mode {
	case AllCandidates:
		chosen = append([]int(nil), g.Nodes...)
	case VertexCover:
		chosen, err = oracle.MinCover(g, nil)
	case WeightedVertexCover:
		chosen, err = oracle.MinCover(g, distanceWeights(g.Nodes, distances, tol))
	default:
		return nil, errors.Wrapf(ErrUnknownMode, "mode tag %d", byte(mode))
	}
	if err != nil {
		return nil, err
	}
	selected := chosen[:0]
	for _, v := range chosen {
		vr := pb.Vars[v]
		if vr.TightUb-vr.TightLb >= tol {
			selected = append(selected, v)
		}
	}
	sort.Ints(selected)
	return selected, nil
}

// distanceWeights maps distances to cover weights: weight = 1/distance,
// normalized so the largest weight is 1. Variables at distance zero (on a
// breakpoint) receive the maximum weight among the non-zero distances.
func distanceWeights(nodes []int, distances []float64, tol float64) map[int]float64 {
	weights := make(map[int]float64, len(nodes))
	maxW := 0.0
	for _, v := range nodes {
		if v >= len(distances) {
			continue
		}
		if d := distances[v]; d > tol {
			w := 1 / d
			weights[v] = w
			if w > maxW {
				maxW = w
			}
		}
	}
	if maxW == 0 {
		maxW = 1
	}
	for _, v := range nodes {
		if _, ok := weights[v]; !ok {
			weights[v] = maxW
		}
	}
	for v, w := range weights {
		weights[v] = w / maxW
	}
	return weights
}
