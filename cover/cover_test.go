package cover

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ampsolve/ampsolve/model"
)

func bilinearProblem(t *testing.T) (*model.Problem, []int) {
	t.Helper()
	pb := model.NewProblem(model.Minimize)
	x := pb.AddVariable(model.Continuous, 0, 1)
	y := pb.AddVariable(model.Continuous, 0, 1)
	z := pb.AddVariable(model.Continuous, 0, 1)
	_, err := pb.RegisterTerm(model.Bilinear, []int{x, y}, func(v []float64) float64 { return v[x] * v[y] })
	require.NoError(t, err)
	_, err = pb.RegisterTerm(model.Bilinear, []int{y, z}, func(v []float64) float64 { return v[y] * v[z] })
	require.NoError(t, err)
	return pb, []int{x, y, z}
}

func TestBuildArcRules(t *testing.T) {
	pb := model.NewProblem(model.Minimize)
	x := pb.AddVariable(model.Continuous, 0, 1)
	y := pb.AddVariable(model.Continuous, 0, 1)
	b := pb.AddVariable(model.Binary, 0, 1)
	n := pb.AddVariable(model.Integer, 0, 5)
	lone := pb.AddVariable(model.Integer, 0, 3)

	_, err := pb.RegisterTerm(model.Bilinear, []int{x, y}, func(v []float64) float64 { return v[x] * v[y] })
	require.NoError(t, err)
	_, err = pb.RegisterTerm(model.Monomial, []int{x, x}, func(v []float64) float64 { return v[x] * v[x] })
	require.NoError(t, err)
	_, err = pb.RegisterTerm(model.BinLin, []int{b, y}, func(v []float64) float64 { return v[b] * v[y] })
	require.NoError(t, err)
	_, err = pb.RegisterTerm(model.IntLin, []int{n, lone}, func(v []float64) float64 { return v[n] + v[lone] })
	require.NoError(t, err)

	g, err := Build(pb)
	require.NoError(t, err)

	require.ElementsMatch(t, []int{x, y, n, lone}, g.Nodes, "binary-anchored operands must be excluded")
	require.ElementsMatch(t, [][]int{{x, y}, {x}, {n, lone}}, g.Arcs)
}

func TestBuildIntegerSelfLoop(t *testing.T) {
	pb := model.NewProblem(model.Minimize)
	n := pb.AddVariable(model.Integer, 0, 5)
	pb.AddVariable(model.Continuous, 0, 1)
	g, err := Build(pb)
	require.NoError(t, err)
	require.Equal(t, []int{n}, g.Nodes)
	require.Equal(t, [][]int{{n}}, g.Arcs)
}

func TestBuildDedup(t *testing.T) {
	pb, _ := bilinearProblem(t)
	// Multilinear over the same pair as an existing bilinear arc.
	_, err := pb.RegisterTerm(model.Multilinear, []int{0, 1, 2}, func(v []float64) float64 { return v[0] * v[1] * v[2] })
	require.NoError(t, err)
	g, err := Build(pb)
	require.NoError(t, err)
	require.Len(t, g.Arcs, 3, "arcs must be deduplicated: (0,1), (1,2), (0,2)")
}

func TestMinCoverPath(t *testing.T) {
	// 3-node path: arcs {(1,2), (2,3)}; the minimum cover is node 2 alone.
	g := newGraph()
	g.addArc(1, 2)
	g.addArc(2, 3)
	selected, err := PBOracle{}.MinCover(g, nil)
	require.NoError(t, err)
	require.Equal(t, []int{2}, selected)
}

func TestMinCoverSelfLoop(t *testing.T) {
	g := newGraph()
	g.addArc(4)
	g.addArc(1, 4)
	selected, err := PBOracle{}.MinCover(g, nil)
	require.NoError(t, err)
	require.Equal(t, []int{4}, selected)
}

func TestMinCoverWeighted(t *testing.T) {
	// Star around node 2; heavy weight on 2 makes the leaves cheaper.
	g := newGraph()
	g.addArc(1, 2)
	g.addArc(2, 3)
	weights := map[int]float64{1: 0.1, 2: 1.0, 3: 0.1}
	selected, err := PBOracle{}.MinCover(g, weights)
	require.NoError(t, err)
	require.Equal(t, []int{1, 3}, selected)
}

func TestSelectModes(t *testing.T) {
	pb, vars := bilinearProblem(t)
	g, err := Build(pb)
	require.NoError(t, err)

	all, err := Select(pb, g, AllCandidates, PBOracle{}, nil, 1e-6)
	require.NoError(t, err)
	require.Equal(t, vars, all)

	mvc, err := Select(pb, g, VertexCover, PBOracle{}, nil, 1e-6)
	require.NoError(t, err)
	require.Equal(t, []int{vars[1]}, mvc, "y covers both bilinear arcs")
}

func TestSelectWeightedFollowsDistances(t *testing.T) {
	pb := model.NewProblem(model.Minimize)
	x := pb.AddVariable(model.Continuous, 0, 1)
	y := pb.AddVariable(model.Continuous, 0, 1)
	_, err := pb.RegisterTerm(model.Bilinear, []int{x, y}, func(v []float64) float64 { return v[x] * v[y] })
	require.NoError(t, err)
	g, err := Build(pb)
	require.NoError(t, err)
	// x is far from its breakpoints (cheap), y close (expensive).
	distances := make([]float64, len(pb.Vars))
	distances[x] = 1.0
	distances[y] = 0.1
	selected, err := Select(pb, g, WeightedVertexCover, PBOracle{}, distances, 1e-6)
	require.NoError(t, err)
	require.Equal(t, []int{x}, selected)
}

func TestSelectDropsDegenerate(t *testing.T) {
	pb, vars := bilinearProblem(t)
	y := vars[1]
	require.NoError(t, pb.Tighten(y, 0.5, 0.5))
	g, err := Build(pb)
	require.NoError(t, err)
	selected, err := Select(pb, g, VertexCover, PBOracle{}, nil, 1e-6)
	require.NoError(t, err)
	require.NotContains(t, selected, y, "degenerate-width selections are dropped")
}

func TestParseMode(t *testing.T) {
	for _, name := range []string{"all-candidates", "vertex-cover", "weighted-vertex-cover"} {
		m, err := ParseMode(name)
		require.NoError(t, err)
		require.Equal(t, name, m.String())
	}
	_, err := ParseMode("branch-and-price")
	require.ErrorIs(t, err, ErrUnknownMode)
}

func TestDistanceWeights(t *testing.T) {
	w := distanceWeights([]int{0, 1, 2}, []float64{0.5, 0, 0.25}, 1e-6)
	require.InDelta(t, 0.5, w[0], 1e-9)
	require.InDelta(t, 1.0, w[1], 1e-9, "zero distance takes the maximum weight among non-zero distances")
	require.InDelta(t, 1.0, w[2], 1e-9)
	require.True(t, !math.IsInf(w[1], 0))
}

func TestCovers(t *testing.T) {
	g := newGraph()
	g.addArc(1, 2)
	g.addArc(2, 3)
	if !g.Covers(map[int]bool{2: true}) {
		t.Errorf("node 2 covers the path")
	}
	if g.Covers(map[int]bool{1: true}) {
		t.Errorf("node 1 does not cover arc (2,3)")
	}
}
