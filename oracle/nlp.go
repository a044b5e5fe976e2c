package oracle

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/ampsolve/ampsolve/model"
)

const (
	defaultSweeps  = 200
	penaltyWeight  = 1e4
	shrinkFactor   = 0.5
	minStepDefault = 1e-9
)

// CoordinateNLP is the reference local-search oracle: projected cyclic
// coordinate descent over the original variables, with a quadratic penalty
// on constraint violation. It only needs the model's evaluator closures,
// which is all the term registry guarantees.
type CoordinateNLP struct {
	limit     time.Duration
	MaxSweeps int
	feasTol   float64
}

// NewCoordinateNLP returns a CoordinateNLP with a one-hour soft limit.
func NewCoordinateNLP() *CoordinateNLP {
	return &CoordinateNLP{limit: time.Hour, MaxSweeps: defaultSweeps, feasTol: 1e-6}
}

// SetTimeLimit sets the soft time limit of the next solve.
func (o *CoordinateNLP) SetTimeLimit(d time.Duration) {
	if d > 0 {
		o.limit = d
	}
}

// SolveLocal searches a local optimum of pb within the fixed bound pairs,
// starting from warm (or the box midpoint when warm is nil). The returned
// solution covers the original variables only; lifted values follow by
// resolution.
func (o *CoordinateNLP) SolveLocal(ctx context.Context, pb *model.Problem, lb, ub, warm []float64) (Result, error) {
	norig := pb.NbOriginal()
	if len(lb) < norig || len(ub) < norig {
		return Result{}, errors.Errorf("oracle: bound pairs cover %d variables, want %d", len(lb), norig)
	}
	deadline := time.Now().Add(o.limit)

	x := make([]float64, norig)
	for i := 0; i < norig; i++ {
		switch {
		case warm != nil && i < len(warm):
			x[i] = project(warm[i], lb[i], ub[i])
		default:
			x[i] = midpoint(lb[i], ub[i])
		}
	}

	merit := func(p []float64) (float64, float64, bool) {
		full, err := pb.ResolveLifted(p)
		if err != nil {
			return 0, 0, false
		}
		viol := 0.0
		for i := range pb.Constrs {
			viol += violation(&pb.Constrs[i], full)
		}
		obj := pb.ObjValue(full)
		if pb.Sense == model.Maximize {
			obj = -obj
		}
		return obj + penaltyWeight*viol*viol, viol, true
	}

	cur, _, ok := merit(x)
	if !ok {
		return Result{Status: Infeasible}, nil
	}
	steps := make([]float64, norig)
	for i := range steps {
		steps[i] = (ub[i] - lb[i]) / 4
	}

	for sweep := 0; sweep < o.MaxSweeps; sweep++ {
		if time.Now().After(deadline) || ctx.Err() != nil {
			break
		}
		moved := false
		for i := 0; i < norig; i++ {
			if steps[i] < minStepDefault {
				continue
			}
			for _, trial := range []float64{x[i] - steps[i], x[i] + steps[i]} {
				trial = project(trial, lb[i], ub[i])
				if trial == x[i] {
					continue
				}
				old := x[i]
				x[i] = trial
				if m, _, ok := merit(x); ok && m < cur-1e-12 {
					cur = m
					moved = true
				} else {
					x[i] = old
				}
			}
		}
		if !moved {
			allTiny := true
			for i := range steps {
				steps[i] *= shrinkFactor
				if steps[i] >= minStepDefault {
					allTiny = false
				}
			}
			if allTiny {
				break
			}
		}
	}

	full, err := pb.ResolveLifted(x)
	if err != nil {
		return Result{}, err
	}
	_, viol, _ := merit(x)
	status := Feasible
	if viol > o.feasTol {
		status = Infeasible
	}
	return Result{Status: status, Objective: pb.ObjValue(full), Solution: x}, nil
}

func violation(c *model.Constraint, full []float64) float64 {
	val := c.Value(full)
	switch c.Kind {
	case model.Eq:
		return math.Abs(val - c.Lb)
	default:
		v := 0.0
		if !math.IsInf(c.Lb, 0) && val < c.Lb {
			v += c.Lb - val
		}
		if !math.IsInf(c.Ub, 0) && val > c.Ub {
			v += val - c.Ub
		}
		return v
	}
}

func project(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func midpoint(lo, hi float64) float64 {
	switch {
	case math.IsInf(lo, 0) && math.IsInf(hi, 0):
		return 0
	case math.IsInf(lo, 0):
		return hi
	case math.IsInf(hi, 0):
		return lo
	default:
		return (lo + hi) / 2
	}
}
