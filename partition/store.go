// Package partition implements the per-variable breakpoint sequences that
// drive the piecewise relaxation. The store owns one ordered breakpoint
// sequence per variable, answers interval lookups with a tolerance, and
// refines partitions around a reference solution between iterations.
// Breakpoints are only inserted, never removed, so cells narrow
// monotonically across iterations.
package partition

import (
	"io"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/ampsolve/ampsolve/model"
)

// DefaultRatio controls how wide the cells inserted around a reference
// value are, as a fraction of the active cell.
const DefaultRatio = 4.0

// A Store holds the breakpoint sequence of every variable. Sequences are
// strictly increasing, at least two points long, and their first and last
// points equal the variable's tightened bounds.
type Store struct {
	points [][]float64
	ratio  float64
	tol    float64
	log    logrus.FieldLogger
}

// New builds the initial store for a problem: every variable starts with
// the two-point partition made of its tightened bounds.
func New(pb *model.Problem, ratio, tol float64, log logrus.FieldLogger) *Store {
	if log == nil {
		quiet := logrus.New()
		quiet.SetOutput(io.Discard)
		log = quiet
	}
	if ratio <= 1 {
		ratio = DefaultRatio
	}
	points := make([][]float64, len(pb.Vars))
	for i, vr := range pb.Vars {
		points[i] = []float64{vr.TightLb, vr.TightUb}
	}
	return &Store{points: points, ratio: ratio, tol: tol, log: log}
}

// NbVars returns the number of partitioned variables.
func (s *Store) NbVars() int { return len(s.points) }

// Points returns the breakpoint sequence of a variable.
// The slice is owned by the store and must not be modified.
func (s *Store) Points(v int) []float64 { return s.points[v] }

// NbIntervals returns the number of cells of a variable's partition.
func (s *Store) NbIntervals(v int) int { return len(s.points[v]) - 1 }

// ActiveInterval returns the 1-based index of the first interval j with
// points[j-1]-tol <= x <= points[j]+tol. When no interval matches, it
// defaults to interval 1 and emits a diagnostic: the fallback keeps the
// iteration alive but may silently loosen the relaxation, so the event is
// always logged.
func (s *Store) ActiveInterval(v int, x float64) int {
	pts := s.points[v]
	for j := 0; j+1 < len(pts); j++ {
		if pts[j]-s.tol <= x && x <= pts[j+1]+s.tol {
			return j + 1
		}
	}
	s.log.WithFields(logrus.Fields{
		"var":   v,
		"value": x,
		"low":   pts[0],
		"high":  pts[len(pts)-1],
	}).Warn("partition: value outside every interval, defaulting to interval 1")
	return 1
}

// Candidates returns the 1-based indices of the intervals that survive a
// refinement of variable v around the value x. Pass active <= 0 to have
// the active interval looked up.
//
// With a single interval the only candidate is interval 1. When the
// active interval is the first or the last, the two extreme intervals
// survive. Otherwise the interval neighboring the closest breakpoint
// joins the active one; an exact tie keeps both neighbors.
func (s *Store) Candidates(v int, x float64, active int) []int {
	n := s.NbIntervals(v)
	if n <= 1 {
		return []int{1}
	}
	if active <= 0 {
		active = s.ActiveInterval(v, x)
	}
	if active == 1 || active == n {
		return []int{1, n}
	}
	lower := s.points[v][active-1]
	upper := s.points[v][active]
	dl := math.Abs(x - lower)
	du := math.Abs(x - upper)
	switch {
	case scalar.EqualWithinAbs(dl, du, s.tol):
		return []int{active - 1, active, active + 1}
	case dl < du:
		return []int{active - 1, active}
	default:
		return []int{active, active + 1}
	}
}

// Deactivated returns the interval indices of v discarded by a refinement
// around x, i.e. the complement of Candidates. Pool entries anchored in a
// deactivated cell are no longer representable by the relaxation.
func (s *Store) Deactivated(v int, x float64) map[int]bool {
	keep := make(map[int]bool)
	for _, j := range s.Candidates(v, x, 0) {
		keep[j] = true
	}
	dead := make(map[int]bool)
	for j := 1; j <= s.NbIntervals(v); j++ {
		if !keep[j] {
			dead[j] = true
		}
	}
	return dead
}

// Refine narrows the partitions of the selected variables around the
// reference solution: inside the cell containing ref[v], two breakpoints
// are inserted at ref[v] +/- radius, where radius is the cell width over
// 2*ratio. Insertions within tolerance of an existing breakpoint are
// skipped, so sequences stay strictly increasing and the endpoints keep
// equal to the tightened bounds. Non-selected variables are unchanged.
func (s *Store) Refine(ref []float64, selected []int) {
	for _, v := range selected {
		if v < 0 || v >= len(s.points) || v >= len(ref) {
			continue
		}
		pts := s.points[v]
		x := math.Min(math.Max(ref[v], pts[0]), pts[len(pts)-1])
		active := s.ActiveInterval(v, x)
		lower := pts[active-1]
		upper := pts[active]
		radius := (upper - lower) / (2 * s.ratio)
		s.insert(v, x-radius)
		s.insert(v, x+radius)
	}
}

func (s *Store) insert(v int, p float64) {
	pts := s.points[v]
	if p <= pts[0]+s.tol || p >= pts[len(pts)-1]-s.tol {
		return
	}
	at := sort.SearchFloat64s(pts, p)
	if at < len(pts) && scalar.EqualWithinAbs(pts[at], p, s.tol) {
		return
	}
	if at > 0 && scalar.EqualWithinAbs(pts[at-1], p, s.tol) {
		return
	}
	pts = append(pts, 0)
	copy(pts[at+1:], pts[at:])
	pts[at] = p
	s.points[v] = pts
}
