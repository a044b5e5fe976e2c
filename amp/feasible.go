package amp

import (
	"fmt"
	"math"

	"github.com/ampsolve/ampsolve/model"
)

// Round snaps a full assignment to the variable kinds: Binary values go
// to 0 or 1 at the 0.5 threshold, Integer values to the nearest integer,
// Continuous values are untouched. Round is idempotent and returns a new
// slice.
func Round(pb *model.Problem, x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	for i := range out {
		if i >= len(pb.Vars) {
			break
		}
		switch pb.Vars[i].Kind {
		case model.Binary:
			if out[i] >= 0.5 {
				out[i] = 1
			} else {
				out[i] = 0
			}
		case model.Integer:
			out[i] = math.Round(out[i])
		}
	}
	return out
}

// IsFeasible validates a full assignment against the model: kind
// integrality, tightened bounds and every constraint, each within tol.
// It short-circuits on the first violation and names it in the returned
// reason; an empty reason means feasible.
func IsFeasible(pb *model.Problem, x []float64, tol float64) (bool, string) {
	if len(x) != len(pb.Vars) {
		return false, fmt.Sprintf("assignment has %d values, model has %d variables", len(x), len(pb.Vars))
	}
	for i, vr := range pb.Vars {
		switch vr.Kind {
		case model.Binary:
			if math.Abs(x[i]) > tol && math.Abs(x[i]-1) > tol {
				return false, fmt.Sprintf("binary variable %d = %g", i, x[i])
			}
		case model.Integer:
			if math.Abs(x[i]-math.Round(x[i])) > tol {
				return false, fmt.Sprintf("integer variable %d = %g", i, x[i])
			}
		}
		if x[i] < vr.TightLb-tol {
			return false, fmt.Sprintf("variable %d = %g below bound %g", i, x[i], vr.TightLb)
		}
		if x[i] > vr.TightUb+tol {
			return false, fmt.Sprintf("variable %d = %g above bound %g", i, x[i], vr.TightUb)
		}
	}
	for ci := range pb.Constrs {
		c := &pb.Constrs[ci]
		val := c.Value(x)
		switch c.Kind {
		case model.Eq:
			if math.Abs(val-c.Lb) > tol {
				return false, fmt.Sprintf("equality %d off target: %g vs %g", ci, val, c.Lb)
			}
		default:
			if !math.IsInf(c.Lb, 0) && val < c.Lb-tol {
				return false, fmt.Sprintf("constraint %d = %g below %g", ci, val, c.Lb)
			}
			if !math.IsInf(c.Ub, 0) && val > c.Ub+tol {
				return false, fmt.Sprintf("constraint %d = %g above %g", ci, val, c.Ub)
			}
		}
	}
	return true, ""
}
