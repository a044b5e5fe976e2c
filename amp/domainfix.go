package amp

import (
	"math"

	"github.com/pkg/errors"

	"github.com/ampsolve/ampsolve/model"
	"github.com/ampsolve/ampsolve/partition"
)

// FixDomains produces the bound pairs handed to the local-search oracle
// for a reference solution: each discretized Continuous variable is
// pinned to the endpoints of the partition cell holding its reference
// value, Binary and Integer variables are fixed to the rounded reference,
// everything else keeps its tightened bounds. Only original variables are
// covered; lifted values follow from resolution.
func FixDomains(pb *model.Problem, store *partition.Store, ref []float64) (lb, ub []float64, err error) {
	norig := pb.NbOriginal()
	if len(ref) < norig {
		return nil, nil, errors.Errorf("amp: reference covers %d variables, want %d", len(ref), norig)
	}
	lb = make([]float64, norig)
	ub = make([]float64, norig)
	for i := 0; i < norig; i++ {
		vr := &pb.Vars[i]
		switch {
		case vr.Kind == model.Continuous && vr.Discretized:
			j := store.ActiveInterval(i, ref[i])
			if j > store.NbIntervals(i) {
				return nil, nil, errors.Errorf("amp: variable %d: interval %d past final breakpoint", i, j)
			}
			pts := store.Points(i)
			lb[i] = pts[j-1]
			ub[i] = pts[j]
		case vr.Kind == model.Binary:
			v := 0.0
			if ref[i] >= 0.5 {
				v = 1
			}
			lb[i], ub[i] = v, v
		case vr.Kind == model.Integer:
			v := math.Round(ref[i])
			lb[i], ub[i] = v, v
		default:
			lb[i], ub[i] = vr.TightLb, vr.TightUb
		}
	}
	return lb, ub, nil
}
