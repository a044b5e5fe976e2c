package amp

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ampsolve/ampsolve/cover"
	"github.com/ampsolve/ampsolve/model"
	"github.com/ampsolve/ampsolve/oracle"
)

// bilinearCorner builds min xy with x, y in [0,1] and x+y >= 1. The
// optimum is 0 at either corner; the local search alone stalls on the
// (0.5, 0.5) saddle, so closing the gap needs the relaxation's reference
// solution.
func bilinearCorner(t *testing.T) *model.Problem {
	t.Helper()
	pb := model.NewProblem(model.Minimize)
	x := pb.AddVariable(model.Continuous, 0, 1)
	y := pb.AddVariable(model.Continuous, 0, 1)
	z, err := pb.RegisterTerm(model.Bilinear, []int{x, y}, func(v []float64) float64 {
		return v[x] * v[y]
	})
	require.NoError(t, err)
	pb.SetObjective(z, nil)
	pb.AddConstraint(model.GtEq, 1, 0, map[int]float64{x: 1, y: 1})
	return pb
}

func TestSolveBilinearConverges(t *testing.T) {
	pb := bilinearCorner(t)
	s, err := NewWithOracles(pb, "simplex", "coordinate",
		WithTimeout(30*time.Second),
		WithMaxIters(20),
	)
	require.NoError(t, err)

	inc, err := s.Solve(context.Background())
	require.NoError(t, err)
	require.Equal(t, Converged, s.Stats.Status)
	require.True(t, inc.HasSolution())
	require.InDelta(t, 0, inc.BestObj, 1e-4)
	require.LessOrEqual(t, inc.RelGap, DefaultRelGapTol)
	require.GreaterOrEqual(t, s.Stats.MIPCalls, 1)
	require.GreaterOrEqual(t, s.Stats.NLPCalls, 2, "initial local solve plus one per iteration")
}

func TestSolveIterationBudget(t *testing.T) {
	// max xy with x+y <= 1: the optimum 0.25 sits strictly inside the
	// box, so the overestimator gap closes slowly and the budget of two
	// iterations runs out first.
	pb := model.NewProblem(model.Maximize)
	x := pb.AddVariable(model.Continuous, 0, 1)
	y := pb.AddVariable(model.Continuous, 0, 1)
	z, err := pb.RegisterTerm(model.Bilinear, []int{x, y}, func(v []float64) float64 {
		return v[x] * v[y]
	})
	require.NoError(t, err)
	pb.SetObjective(z, nil)
	pb.AddConstraint(model.LtEq, 0, 1, map[int]float64{x: 1, y: 1})

	s, err := NewWithOracles(pb, "", "",
		WithMaxIters(2),
		WithStallLimit(10),
	)
	require.NoError(t, err)

	inc, err := s.Solve(context.Background())
	require.NoError(t, err)
	require.Equal(t, IterLimit, s.Stats.Status)
	require.Equal(t, 2, s.Stats.Iterations)
	require.InDelta(t, 0.25, inc.BestObj, 1e-2)
	// The bound stays on the far side of the incumbent while the gap is
	// open.
	require.GreaterOrEqual(t, inc.BestBound, inc.BestObj-1e-9)
}

func TestSolveSelectionModes(t *testing.T) {
	for _, mode := range []cover.Mode{cover.AllCandidates, cover.VertexCover, cover.WeightedVertexCover} {
		pb := bilinearCorner(t)
		s, err := NewWithOracles(pb, "simplex", "coordinate",
			WithMaxIters(20),
			WithSelectionMode(mode),
		)
		require.NoError(t, err)
		inc, err := s.Solve(context.Background())
		require.NoError(t, err)
		require.InDeltaf(t, 0, inc.BestObj, 1e-4, "mode %v", mode)
	}
}

func TestSolveHonorsContext(t *testing.T) {
	pb := bilinearCorner(t)
	s, err := NewWithOracles(pb, "simplex", "coordinate", WithMaxIters(1000))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Solve(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, TimeLimit, s.Stats.Status)
}

// stubMIP returns a canned relaxation result, optionally after a delay.
type stubMIP struct {
	res   oracle.Result
	delay time.Duration
}

func (m *stubMIP) SetTimeLimit(time.Duration) {}
func (m *stubMIP) SupportsSolutionPool() bool { return false }
func (m *stubMIP) SetBranchPriority([]int)    {}

func (m *stubMIP) SolveRelaxation(ctx context.Context, r *oracle.Relaxation) (oracle.Result, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return m.res, nil
}

// stubNLP records the calls and time limits it receives.
type stubNLP struct {
	calls  int
	limits []time.Duration
}

func (n *stubNLP) SetTimeLimit(d time.Duration) { n.limits = append(n.limits, d) }

func (n *stubNLP) SolveLocal(ctx context.Context, pb *model.Problem, lb, ub, warm []float64) (oracle.Result, error) {
	n.calls++
	return oracle.Result{Status: oracle.Infeasible}, nil
}

func TestTruncatedRelaxationKeepsBound(t *testing.T) {
	// A search cut short reports its incumbent, a primal value; for a
	// minimization it can overshoot the true bound, so it must never be
	// recorded as one.
	pb := bilinearCorner(t)
	mip := &stubMIP{res: oracle.Result{
		Status:    oracle.Feasible,
		Objective: -8,
		Solution:  make([]float64, len(pb.Vars)),
	}}
	s, err := New(pb, mip, &stubNLP{}, WithMaxIters(3), WithStallLimit(100))
	require.NoError(t, err)

	inc, err := s.Solve(context.Background())
	require.NoError(t, err)
	require.True(t, math.IsInf(inc.BestBound, -1), "a truncated search must not move the bound")
	require.NotEqual(t, Converged, s.Stats.Status)
}

func TestCompletedRelaxationMovesBound(t *testing.T) {
	pb := bilinearCorner(t)
	mip := &stubMIP{res: oracle.Result{
		Status:    oracle.Optimal,
		Objective: -8,
		Solution:  make([]float64, len(pb.Vars)),
	}}
	s, err := New(pb, mip, &stubNLP{}, WithMaxIters(1), WithStallLimit(100))
	require.NoError(t, err)

	inc, err := s.Solve(context.Background())
	require.NoError(t, err)
	require.Equal(t, -8.0, inc.BestBound)
}

func TestExhaustedBudgetSkipsSubsolves(t *testing.T) {
	// The relaxation call eats the whole budget, so the following local
	// search must not start; only the warm-up runs, and under the
	// configured budget rather than an oracle default.
	pb := bilinearCorner(t)
	mip := &stubMIP{
		delay: 80 * time.Millisecond,
		res: oracle.Result{
			Status:    oracle.Optimal,
			Objective: 0,
			Solution:  make([]float64, len(pb.Vars)),
		},
	}
	nlp := &stubNLP{}
	s, err := New(pb, mip, nlp, WithTimeout(40*time.Millisecond), WithMaxIters(10))
	require.NoError(t, err)

	_, err = s.Solve(context.Background())
	require.NoError(t, err)
	require.Equal(t, TimeLimit, s.Stats.Status)
	require.Equal(t, 1, nlp.calls, "only the warm-up local solve fits the budget")
	require.NotEmpty(t, nlp.limits)
	for _, d := range nlp.limits {
		require.LessOrEqual(t, d, 40*time.Millisecond)
	}
}

func TestNewWithOraclesRejectsUnknown(t *testing.T) {
	pb := bilinearCorner(t)
	if _, err := NewWithOracles(pb, "gurobi", ""); err == nil {
		t.Errorf("unknown MIP identifier must be rejected")
	}
	if _, err := NewWithOracles(pb, "", "knitro"); err == nil {
		t.Errorf("unknown NLP identifier must be rejected")
	}
}

func TestFinalStatusString(t *testing.T) {
	tests := []struct {
		st   FinalStatus
		want string
	}{
		{Converged, "CONVERGED"},
		{IterLimit, "ITERLIMIT"},
		{TimeLimit, "TIMELIMIT"},
		{Stalled, "STALLED"},
		{Infeasible, "INFEASIBLE"},
	}
	for _, tt := range tests {
		if got := tt.st.String(); got != tt.want {
			t.Errorf("String(%d) = %s, want %s", tt.st, got, tt.want)
		}
	}
	defer func() {
		if recover() == nil {
			t.Errorf("invalid status must panic")
		}
	}()
	_ = FinalStatus(200).String()
}
