package oracle

import (
	"io"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/ampsolve/ampsolve/model"
	"github.com/ampsolve/ampsolve/partition"
)

// A Relaxation is a MILP-representable over-approximation of the
// nonconvex feasible region. Columns 0..len(pb.Vars)-1 are the model's
// original and lifted variables; further columns are the per-cell
// indicator binaries of discretized variables.
type Relaxation struct {
	NbCols   int
	C        []float64
	Maximize bool

	Aeq [][]float64
	Beq []float64
	Ain [][]float64 // Ain x <= Bin
	Bin []float64

	Lb, Ub []float64
	IsInt  []bool

	// ParentVar maps indicator columns back to the model variable they
	// partition; -1 for model columns.
	ParentVar []int
	// Priority lists model variables whose columns should be branched
	// first.
	Priority []int
}

func (r *Relaxation) row(coeffs map[int]float64) []float64 {
	row := make([]float64, r.NbCols)
	for c, v := range coeffs {
		row[c] = v
	}
	return row
}

func (r *Relaxation) addEq(coeffs map[int]float64, rhs float64) {
	r.Aeq = append(r.Aeq, r.row(coeffs))
	r.Beq = append(r.Beq, rhs)
}

func (r *Relaxation) addLe(coeffs map[int]float64, rhs float64) {
	r.Ain = append(r.Ain, r.row(coeffs))
	r.Bin = append(r.Bin, rhs)
}

func (r *Relaxation) addGe(coeffs map[int]float64, rhs float64) {
	neg := make(map[int]float64, len(coeffs))
	for c, v := range coeffs {
		neg[c] = -v
	}
	r.addLe(neg, -rhs)
}

// A Builder assembles a relaxation from the partition store and the term
// registry. The concrete under/over-estimator math is owned by the
// builder, not by the core loop.
type Builder interface {
	Build(pb *model.Problem, store *partition.Store, selected []int) (*Relaxation, error)
}

// An Envelope emits the convex estimator rows of one term into the
// relaxation and reports whether it applied.
type Envelope func(r *Relaxation, pb *model.Problem, store *partition.Store, t *model.Term) bool

// PiecewiseBuilder is the default relaxation builder: indicator binaries
// couple every discretized variable to its partition cells, and per-kind
// envelopes relax the registered terms. Kinds without an applicable
// envelope are skipped with a warning; the relaxation stays valid, only
// looser.
type PiecewiseBuilder struct {
	Log       logrus.FieldLogger
	envelopes map[model.TermKind]Envelope
}

// NewPiecewiseBuilder returns a builder with the default envelopes.
func NewPiecewiseBuilder(log logrus.FieldLogger) *PiecewiseBuilder {
	if log == nil {
		quiet := logrus.New()
		quiet.SetOutput(io.Discard)
		log = quiet
	}
	return &PiecewiseBuilder{
		Log: log,
		envelopes: map[model.TermKind]Envelope{
			model.Bilinear: envMcCormick,
			model.BinLin:   envMcCormick,
			model.BinInt:   envMcCormick,
			model.IntProd:  envMcCormick,
			model.Monomial: envMonomial,
			model.IntLin:   envIntLin,
			model.BinProd:  envBinProd,
		},
	}
}

// Build assembles the relaxation for the current partitions.
func (b *PiecewiseBuilder) Build(pb *model.Problem, store *partition.Store, selected []int) (*Relaxation, error) {
	n0 := len(pb.Vars)
	r := &Relaxation{Priority: append([]int(nil), selected...)}

	// Indicator binaries first, so the column count is fixed before any
	// row is emitted.
	type block struct {
		v     int
		first int
		cells int
	}
	var blocks []block
	cols := n0
	for _, v := range selected {
		if cells := store.NbIntervals(v); cells > 1 {
			blocks = append(blocks, block{v: v, first: cols, cells: cells})
			cols += cells
		}
	}
	r.NbCols = cols
	r.C = make([]float64, cols)
	r.Lb = make([]float64, cols)
	r.Ub = make([]float64, cols)
	r.IsInt = make([]bool, cols)
	r.ParentVar = make([]int, cols)

	for i := 0; i < n0; i++ {
		vr := pb.Vars[i]
		r.Lb[i], r.Ub[i] = vr.TightLb, vr.TightUb
		r.IsInt[i] = vr.Kind != model.Continuous
		r.ParentVar[i] = -1
	}
	for i := range pb.Terms {
		t := &pb.Terms[i]
		lo, hi := liftedBounds(pb, t)
		if lo > r.Lb[t.Lifted] {
			r.Lb[t.Lifted] = lo
		}
		if hi < r.Ub[t.Lifted] {
			r.Ub[t.Lifted] = hi
		}
	}
	for _, bl := range blocks {
		pts := store.Points(bl.v)
		one := map[int]float64{}
		upper := map[int]float64{bl.v: 1}
		lower := map[int]float64{bl.v: -1}
		for j := 0; j < bl.cells; j++ {
			col := bl.first + j
			r.Lb[col], r.Ub[col] = 0, 1
			r.IsInt[col] = true
			r.ParentVar[col] = bl.v
			one[col] = 1
			upper[col] = -pts[j+1] // x_v <= sum u_j z_j
			lower[col] = pts[j]    // x_v >= sum l_j z_j
		}
		r.addEq(one, 1)
		r.addLe(upper, 0)
		r.addLe(lower, 0)
	}

	for i := range pb.Constrs {
		c := &pb.Constrs[i]
		if c.Coeffs == nil {
			b.Log.WithField("constraint", i).Warn("relaxation: non-linear row without coefficients, dropped from the relaxation")
			continue
		}
		switch c.Kind {
		case model.Eq:
			r.addEq(c.Coeffs, c.Lb)
		case model.LtEq:
			r.addLe(c.Coeffs, c.Ub)
		case model.GtEq:
			r.addGe(c.Coeffs, c.Lb)
		case model.Range:
			r.addLe(c.Coeffs, c.Ub)
			r.addGe(c.Coeffs, c.Lb)
		}
	}

	for i := range pb.Terms {
		t := &pb.Terms[i]
		env, ok := b.envelopes[t.Kind]
		if !ok || !env(r, pb, store, t) {
			b.Log.WithFields(logrus.Fields{
				"term": i,
				"kind": t.Kind.String(),
			}).Warn("relaxation: term not convexified, continuing best effort")
			continue
		}
		t.Convexified = true
	}

	if pb.ObjVar >= 0 {
		r.C[pb.ObjVar] = 1
	}
	r.Maximize = pb.Sense == model.Maximize
	return r, nil
}

// liftedBounds derives finite bounds for a lifted variable from its
// operands' tightened bounds by interval arithmetic.
func liftedBounds(pb *model.Problem, t *model.Term) (float64, float64) {
	switch t.Kind {
	case model.Sin, model.Cos:
		return -1, 1
	case model.IntLin:
		lo, hi := 0.0, 0.0
		for _, op := range t.Operands {
			lo += pb.Vars[op].TightLb
			hi += pb.Vars[op].TightUb
		}
		return lo, hi
	default:
		lo, hi := 1.0, 1.0
		for _, op := range t.Operands {
			l, u := pb.Vars[op].TightLb, pb.Vars[op].TightUb
			a, b := math.Min(math.Min(lo*l, lo*u), math.Min(hi*l, hi*u)),
				math.Max(math.Max(lo*l, lo*u), math.Max(hi*l, hi*u))
			lo, hi = a, b
		}
		return lo, hi
	}
}

// envMcCormick emits the four McCormick inequalities of a two-operand
// product. Requires finite operand bounds.
func envMcCormick(r *Relaxation, pb *model.Problem, store *partition.Store, t *model.Term) bool {
	if len(t.Operands) != 2 {
		return false
	}
	x1, x2, y := t.Operands[0], t.Operands[1], t.Lifted
	l1, u1 := pb.Vars[x1].TightLb, pb.Vars[x1].TightUb
	l2, u2 := pb.Vars[x2].TightLb, pb.Vars[x2].TightUb
	if math.IsInf(l1, 0) || math.IsInf(u1, 0) || math.IsInf(l2, 0) || math.IsInf(u2, 0) {
		return false
	}
	r.addGe(map[int]float64{y: 1, x1: -l2, x2: -l1}, -l1*l2)
	r.addGe(map[int]float64{y: 1, x1: -u2, x2: -u1}, -u1*u2)
	r.addLe(map[int]float64{y: 1, x1: -u2, x2: -l1}, -l1*u2)
	r.addLe(map[int]float64{y: 1, x1: -l2, x2: -u1}, -u1*l2)
	return true
}

// envMonomial relaxes y = x^k when the power is convex on the domain:
// tangent cuts at every breakpoint under-estimate, the secant over the
// domain over-estimates. Tangents tighten as the partition refines.
func envMonomial(r *Relaxation, pb *model.Problem, store *partition.Store, t *model.Term) bool {
	k := len(t.Operands)
	if k < 2 {
		return false
	}
	x, y := t.Operands[0], t.Lifted
	l, u := pb.Vars[x].TightLb, pb.Vars[x].TightUb
	if math.IsInf(l, 0) || math.IsInf(u, 0) {
		return false
	}
	if k%2 != 0 && l < 0 {
		return false // odd power over a sign change is not convex
	}
	for _, bp := range store.Points(x) {
		slope := float64(k) * math.Pow(bp, float64(k-1))
		r.addGe(map[int]float64{y: 1, x: -slope}, -float64(k-1)*math.Pow(bp, float64(k)))
	}
	if u-l > 1e-12 {
		secant := (math.Pow(u, float64(k)) - math.Pow(l, float64(k))) / (u - l)
		r.addLe(map[int]float64{y: 1, x: -secant}, math.Pow(l, float64(k))-secant*l)
	}
	return true
}

// envIntLin couples the lifted variable to the linear sum of its
// operands; the relaxation is exact for this kind.
func envIntLin(r *Relaxation, pb *model.Problem, store *partition.Store, t *model.Term) bool {
	coeffs := map[int]float64{t.Lifted: 1}
	for _, op := range t.Operands {
		coeffs[op] -= 1
	}
	r.addEq(coeffs, 0)
	return true
}

// envBinProd linearizes a product of binaries exactly:
// y <= x_i for every operand, y >= sum x_i - (k-1).
func envBinProd(r *Relaxation, pb *model.Problem, store *partition.Store, t *model.Term) bool {
	y := t.Lifted
	coeffs := map[int]float64{y: 1}
	for _, op := range t.Operands {
		r.addLe(map[int]float64{y: 1, op: -1}, 0)
		coeffs[op] -= 1
	}
	r.addGe(coeffs, -float64(len(t.Operands)-1))
	return true
}
