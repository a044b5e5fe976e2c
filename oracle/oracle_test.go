package oracle

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ampsolve/ampsolve/model"
	"github.com/ampsolve/ampsolve/partition"
)

func TestNewOracleRegistry(t *testing.T) {
	if _, err := NewMIP("simplex"); err != nil {
		t.Errorf("unexpected error for the simplex oracle: %v", err)
	}
	if _, err := NewNLP("coordinate"); err != nil {
		t.Errorf("unexpected error for the coordinate oracle: %v", err)
	}
	if _, err := NewMIP("cplex"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for an unsupported identifier, got %v", err)
	}
	if _, err := NewNLP("ipopt"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for an unsupported identifier, got %v", err)
	}
}

func TestSimplexLP(t *testing.T) {
	// min -x - y s.t. x + y <= 1.5, x, y in [0, 1]: continuous optimum -1.5.
	r := &Relaxation{NbCols: 2}
	r.C = []float64{-1, -1}
	r.Lb = []float64{0, 0}
	r.Ub = []float64{1, 1}
	r.IsInt = []bool{false, false}
	r.ParentVar = []int{-1, -1}
	r.addLe(map[int]float64{0: 1, 1: 1}, 1.5)

	res, err := NewSimplexMIP().SolveRelaxation(context.Background(), r)
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	require.InDelta(t, -1.5, res.Objective, 1e-6)
}

func TestSimplexMIPBranches(t *testing.T) {
	// Same model with integrality: optimum drops to -1 at a lattice point.
	r := &Relaxation{NbCols: 2}
	r.C = []float64{-1, -1}
	r.Lb = []float64{0, 0}
	r.Ub = []float64{1, 1}
	r.IsInt = []bool{true, true}
	r.ParentVar = []int{-1, -1}
	r.addLe(map[int]float64{0: 1, 1: 1}, 1.5)

	mip := NewSimplexMIP()
	res, err := mip.SolveRelaxation(context.Background(), r)
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	require.InDelta(t, -1, res.Objective, 1e-6)
	require.True(t, mip.SupportsSolutionPool())
	require.NotEmpty(t, res.Pool, "improving incumbents populate the pool")
}

func TestSimplexInfeasible(t *testing.T) {
	r := &Relaxation{NbCols: 1}
	r.C = []float64{1}
	r.Lb = []float64{0}
	r.Ub = []float64{1}
	r.IsInt = []bool{false}
	r.ParentVar = []int{-1}
	r.addGe(map[int]float64{0: 1}, 2) // x >= 2 with x <= 1

	res, err := NewSimplexMIP().SolveRelaxation(context.Background(), r)
	require.NoError(t, err)
	require.Equal(t, Infeasible, res.Status)
}

func TestSimplexMaximize(t *testing.T) {
	r := &Relaxation{NbCols: 1, Maximize: true}
	r.C = []float64{1}
	r.Lb = []float64{0}
	r.Ub = []float64{3}
	r.IsInt = []bool{false}
	r.ParentVar = []int{-1}

	res, err := NewSimplexMIP().SolveRelaxation(context.Background(), r)
	require.NoError(t, err)
	require.InDelta(t, 3, res.Objective, 1e-6)
}

func TestCoordinateNLPBowl(t *testing.T) {
	// min (x-1)^2 on [0, 3], lifted as a monomial of the shifted variable.
	pb := model.NewProblem(model.Minimize)
	x := pb.AddVariable(model.Continuous, 0, 3)
	sq, err := pb.RegisterTerm(model.Monomial, []int{x, x}, func(v []float64) float64 {
		return (v[x] - 1) * (v[x] - 1)
	})
	require.NoError(t, err)
	pb.SetObjective(sq, nil)

	nlp := NewCoordinateNLP()
	nlp.SetTimeLimit(10 * time.Second)
	res, err := nlp.SolveLocal(context.Background(), pb, []float64{0}, []float64{3}, nil)
	require.NoError(t, err)
	require.Equal(t, Feasible, res.Status)
	require.InDelta(t, 1.0, res.Solution[x], 1e-3)
	require.InDelta(t, 0.0, res.Objective, 1e-5)
}

func TestCoordinateNLPPenalty(t *testing.T) {
	// min x on [0, 2] with x >= 1: the penalty keeps the iterate feasible.
	pb := model.NewProblem(model.Minimize)
	x := pb.AddVariable(model.Continuous, 0, 2)
	pb.SetObjective(x, nil)
	pb.AddConstraint(model.GtEq, 1, 0, map[int]float64{x: 1})

	res, err := NewCoordinateNLP().SolveLocal(context.Background(), pb, []float64{0}, []float64{2}, []float64{2})
	require.NoError(t, err)
	require.Equal(t, Feasible, res.Status)
	require.InDelta(t, 1.0, res.Solution[x], 1e-2)
}

func TestBuilderBilinear(t *testing.T) {
	pb := model.NewProblem(model.Minimize)
	x := pb.AddVariable(model.Continuous, 0, 1)
	y := pb.AddVariable(model.Continuous, 0, 1)
	z, err := pb.RegisterTerm(model.Bilinear, []int{x, y}, func(v []float64) float64 { return v[x] * v[y] })
	require.NoError(t, err)
	pb.SetObjective(z, nil)
	pb.AddConstraint(model.GtEq, 1, 0, map[int]float64{x: 1, y: 1})

	store := partition.New(pb, partition.DefaultRatio, 1e-6, nil)
	store.Refine([]float64{0.5, 0.5, 0.25}, []int{x})

	b := NewPiecewiseBuilder(nil)
	r, err := b.Build(pb, store, []int{x})
	require.NoError(t, err)
	require.True(t, pb.Terms[0].Convexified)
	require.Greater(t, r.NbCols, len(pb.Vars), "indicator binaries appended for the partitioned variable")
	require.InDelta(t, 0, r.Lb[z], 1e-9, "interval arithmetic bounds the lifted product")
	require.InDelta(t, 1, r.Ub[z], 1e-9)

	res, err := NewSimplexMIP().SolveRelaxation(context.Background(), r)
	require.NoError(t, err)
	// McCormick is exact at the corner optimum: min xy s.t. x+y >= 1 is 0.
	require.InDelta(t, 0, res.Objective, 1e-6)
}

func TestBuilderMonomialTangents(t *testing.T) {
	pb := model.NewProblem(model.Minimize)
	x := pb.AddVariable(model.Continuous, -2, 2)
	sq, err := pb.RegisterTerm(model.Monomial, []int{x, x}, func(v []float64) float64 { return v[x] * v[x] })
	require.NoError(t, err)
	pb.SetObjective(sq, nil)

	store := partition.New(pb, partition.DefaultRatio, 1e-6, nil)
	b := NewPiecewiseBuilder(nil)
	coarse, err := b.Build(pb, store, nil)
	require.NoError(t, err)
	require.True(t, pb.Terms[0].Convexified)

	// More breakpoints mean more tangent rows.
	store.Refine([]float64{1.0, 0}, []int{x})
	fine, err := b.Build(pb, store, nil)
	require.NoError(t, err)
	require.Greater(t, len(fine.Ain), len(coarse.Ain))
}

func TestBuilderUnconvexifiedTrig(t *testing.T) {
	pb := model.NewProblem(model.Minimize)
	x := pb.AddVariable(model.Continuous, 0, math.Pi)
	sn, err := pb.RegisterTerm(model.Sin, []int{x}, func(v []float64) float64 { return math.Sin(v[x]) })
	require.NoError(t, err)
	pb.SetObjective(sn, nil)

	store := partition.New(pb, partition.DefaultRatio, 1e-6, nil)
	r, err := NewPiecewiseBuilder(nil).Build(pb, store, nil)
	require.NoError(t, err, "unconvexified terms are a warning, not an abort")
	require.False(t, pb.Terms[0].Convexified)
	require.InDelta(t, -1, r.Lb[sn], 1e-9)
	require.InDelta(t, 1, r.Ub[sn], 1e-9)
}
