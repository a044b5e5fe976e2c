package oracle

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	// bigBound substitutes infinite relaxation bounds; the simplex
	// standard form needs every column bounded.
	bigBound = 1e7
	intTol   = 1e-6
	maxNodes = 50000
	poolCap  = 10
)

// SimplexMIP is the reference MIP oracle: depth-first branch-and-bound
// over gonum's simplex. It supports solution pools (the improving
// incumbents met during the search) and branch priorities.
type SimplexMIP struct {
	limit    time.Duration
	priority map[int]bool
}

// NewSimplexMIP returns a SimplexMIP with a one-hour soft time limit.
func NewSimplexMIP() *SimplexMIP {
	return &SimplexMIP{limit: time.Hour, priority: map[int]bool{}}
}

// SetTimeLimit sets the soft time limit of the next solve.
func (s *SimplexMIP) SetTimeLimit(d time.Duration) {
	if d > 0 {
		s.limit = d
	}
}

// SupportsSolutionPool reports that improving incumbents are collected.
func (s *SimplexMIP) SupportsSolutionPool() bool { return true }

// SetBranchPriority asks the search to branch on the columns of the given
// model variables first.
func (s *SimplexMIP) SetBranchPriority(vars []int) {
	s.priority = make(map[int]bool, len(vars))
	for _, v := range vars {
		s.priority[v] = true
	}
}

type bnbNode struct {
	lb, ub []float64
}

// SolveRelaxation solves the MILP relaxation and returns the best
// solution met along the way. Only an Optimal status certifies the
// objective as a bound on the relaxation: a truncated search reports
// Feasible and its objective is the incumbent's value, a primal quantity.
func (s *SimplexMIP) SolveRelaxation(ctx context.Context, r *Relaxation) (Result, error) {
	deadline := time.Now().Add(s.limit)
	c := make([]float64, r.NbCols)
	copy(c, r.C)
	if r.Maximize {
		floats.Scale(-1, c)
	}
	root := bnbNode{lb: clampBounds(r.Lb, -1), ub: clampBounds(r.Ub, 1)}
	stack := []bnbNode{root}
	best := math.Inf(1)
	var bestSol []float64
	var pool []PoolSolution
	nodes := 0
	timedOut := false

	for len(stack) > 0 {
		if nodes >= maxNodes || time.Now().After(deadline) || ctx.Err() != nil {
			timedOut = true
			break
		}
		nodes++
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		obj, x, err := solveLP(c, r, nd.lb, nd.ub)
		if err != nil {
			continue // infeasible or degenerate node
		}
		if obj >= best-1e-9 {
			continue
		}
		col := s.branchColumn(r, x)
		if col < 0 {
			best = obj
			bestSol = x
			resObj := obj
			if r.Maximize {
				resObj = -obj
			}
			pool = append(pool, PoolSolution{Solution: x, Objective: resObj})
			if len(pool) > poolCap {
				pool = pool[len(pool)-poolCap:]
			}
			continue
		}
		floor := math.Floor(x[col])
		up := bnbNode{lb: cloneWith(nd.lb, col, floor+1), ub: nd.ub}
		down := bnbNode{lb: nd.lb, ub: cloneWith(nd.ub, col, floor)}
		stack = append(stack, up, down) // explore the floor side first
	}

	if bestSol == nil {
		if timedOut {
			return Result{Status: TimeLimit}, nil
		}
		return Result{Status: Infeasible}, nil
	}
	objective := best
	if r.Maximize {
		objective = -best
	}
	status := Optimal
	if timedOut {
		status = Feasible
	}
	return Result{Status: status, Objective: objective, Solution: bestSol, Pool: pool}, nil
}

// branchColumn returns a fractional integer column to branch on, favoring
// prioritized variables and their indicator columns, or -1 when the point
// is integer feasible.
func (s *SimplexMIP) branchColumn(r *Relaxation, x []float64) int {
	bestCol, bestFrac := -1, 0.0
	for i := 0; i < r.NbCols; i++ {
		if !r.IsInt[i] {
			continue
		}
		frac := math.Abs(x[i] - math.Round(x[i]))
		if frac <= intTol {
			continue
		}
		if s.priority[i] || (r.ParentVar[i] >= 0 && s.priority[r.ParentVar[i]]) {
			return i
		}
		if frac > bestFrac {
			bestCol, bestFrac = i, frac
		}
	}
	return bestCol
}

// solveLP solves min c.x s.t. the relaxation rows and the node bounds,
// through the standard-form simplex: columns are shifted by their lower
// bound and upper bounds become slack rows.
func solveLP(c []float64, r *Relaxation, lb, ub []float64) (float64, []float64, error) {
	n := r.NbCols
	nEq := len(r.Aeq)
	nIn := len(r.Ain)
	nCols := n + nIn + n // shifted vars, inequality slacks, upper-bound slacks
	nRows := nEq + nIn + n

	a := mat.NewDense(nRows, nCols, nil)
	b := make([]float64, nRows)
	cStd := make([]float64, nCols)
	copy(cStd, c)

	for i, row := range r.Aeq {
		rhs := r.Beq[i]
		for j, v := range row {
			a.Set(i, j, v)
			rhs -= v * lb[j]
		}
		b[i] = rhs
	}
	for i, row := range r.Ain {
		rhs := r.Bin[i]
		for j, v := range row {
			a.Set(nEq+i, j, v)
			rhs -= v * lb[j]
		}
		a.Set(nEq+i, n+i, 1)
		b[nEq+i] = rhs
	}
	for j := 0; j < n; j++ {
		width := ub[j] - lb[j]
		if width < 0 {
			return 0, nil, lp.ErrInfeasible
		}
		a.Set(nEq+nIn+j, j, 1)
		a.Set(nEq+nIn+j, n+nIn+j, 1)
		b[nEq+nIn+j] = width
	}

	_, y, err := lp.Simplex(cStd, a, b, 0, nil)
	if err != nil {
		return 0, nil, err
	}
	x := make([]float64, n)
	for j := 0; j < n; j++ {
		x[j] = y[j] + lb[j]
	}
	return floats.Dot(c, x), x, nil
}

func clampBounds(bounds []float64, sign int) []float64 {
	out := make([]float64, len(bounds))
	for i, v := range bounds {
		switch {
		case math.IsInf(v, 0):
			out[i] = float64(sign) * bigBound
		default:
			out[i] = v
		}
	}
	return out
}

func cloneWith(bounds []float64, col int, v float64) []float64 {
	out := make([]float64, len(bounds))
	copy(out, bounds)
	out[col] = v
	return out
}
