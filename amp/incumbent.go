package amp

import (
	"math"

	"github.com/ampsolve/ampsolve/model"
)

// An Incumbent tracks the best feasible objective and solution seen so
// far, the best relaxation bound, and the convergence gaps derived from
// them.
type Incumbent struct {
	BestObj   float64
	BestSol   []float64
	BestBound float64
	RelGap    float64
	AbsGap    float64

	sense model.Sense
	tol   float64
}

// NewIncumbent returns an empty tracker: no incumbent, a trivial bound
// and an infinite gap.
func NewIncumbent(sense model.Sense, tol float64) *Incumbent {
	inc := &Incumbent{sense: sense, tol: tol, RelGap: math.Inf(1), AbsGap: math.Inf(1)}
	if sense == model.Minimize {
		inc.BestObj = math.Inf(1)
		inc.BestBound = math.Inf(-1)
	} else {
		inc.BestObj = math.Inf(-1)
		inc.BestBound = math.Inf(1)
	}
	return inc
}

// HasSolution reports whether a feasible incumbent was recorded.
func (inc *Incumbent) HasSolution() bool {
	return inc.BestSol != nil
}

// Update replaces the incumbent iff objective is strictly better per the
// optimization sense. It reports whether the incumbent improved.
func (inc *Incumbent) Update(objective float64, solution []float64) bool {
	better := objective < inc.BestObj
	if inc.sense == model.Maximize {
		better = objective > inc.BestObj
	}
	if !better {
		return false
	}
	inc.BestObj = objective
	inc.BestSol = make([]float64, len(solution))
	copy(inc.BestSol, solution)
	return true
}

// UpdateBound records a new relaxation bound, keeping the tightest one:
// bounds only move toward the incumbent.
func (inc *Incumbent) UpdateBound(bound float64) bool {
	improved := bound > inc.BestBound
	if inc.sense == model.Maximize {
		improved = bound < inc.BestBound
	}
	if !improved {
		return false
	}
	inc.BestBound = bound
	return true
}

// UpdateGap recomputes both gaps. The absolute gap is always recomputed;
// the relative gap stays infinite until the incumbent is finite, and is
// forced to zero when both the absolute gap and the incumbent round to
// zero at the configured tolerance.
func (inc *Incumbent) UpdateGap() {
	inc.AbsGap = math.Abs(inc.BestObj - inc.BestBound)
	if math.IsInf(inc.BestObj, 0) || math.IsNaN(inc.BestObj) {
		inc.RelGap = math.Inf(1)
		return
	}
	inc.RelGap = inc.AbsGap / (inc.tol + math.Abs(inc.BestObj))
	if inc.AbsGap < inc.tol && math.Abs(inc.BestObj) < inc.tol {
		inc.RelGap = 0
	}
}
