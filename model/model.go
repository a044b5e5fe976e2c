// Package model describes mixed-integer nonlinear problems as seen by the
// partitioning engine: variables with original and tightened bounds,
// constraint descriptors, and the registry of lifted nonlinear terms.
// The expression front-end that classifies terms lives outside this module;
// it feeds the registry through RegisterTerm.
package model

import (
	"math"

	"github.com/pkg/errors"
)

// VarKind is the kind of a model variable.
type VarKind byte

const (
	// Continuous variables take any value within their bounds.
	Continuous = VarKind(iota)
	// Binary variables take values in {0, 1}.
	Binary
	// Integer variables take integral values within their bounds.
	Integer
)

func (k VarKind) String() string {
	switch k {
	case Continuous:
		return "CONTINUOUS"
	case Binary:
		return "BINARY"
	case Integer:
		return "INTEGER"
	default:
		panic("invalid variable kind")
	}
}

// Sense is the optimization direction of a problem.
type Sense byte

const (
	// Minimize means smaller objectives are better.
	Minimize = Sense(iota)
	// Maximize means greater objectives are better.
	Maximize
)

func (s Sense) String() string {
	if s == Maximize {
		return "MAXIMIZE"
	}
	return "MINIMIZE"
}

// A Variable is a single decision variable.
// Lb/Ub are the bounds declared by the front-end; TightLb/TightUb start
// equal to them and may be narrowed by presolve bound tightening.
// Discretized is set by the variable selector when the variable belongs to
// the current discretization set.
type Variable struct {
	Kind             VarKind
	Lb, Ub           float64
	TightLb, TightUb float64
	Discretized      bool
}

// ConstrKind is the kind of a constraint descriptor.
type ConstrKind byte

const (
	// Eq constrains the row value to equal its target.
	Eq = ConstrKind(iota)
	// LtEq constrains the row value from above.
	LtEq
	// GtEq constrains the row value from below.
	GtEq
	// Range constrains the row value on both sides.
	Range
)

// A Constraint restricts the value of a row over the full (original plus
// lifted) assignment. Coeffs holds the sparse linear coefficients of the
// row in the lifted space; front-ends that cannot express a row linearly
// may instead supply Eval, in which case the row cannot contribute to the
// relaxation and is only checked for feasibility.
type Constraint struct {
	Kind   ConstrKind
	Lb, Ub float64
	Coeffs map[int]float64
	Eval   func(x []float64) float64
}

// Value evaluates the constraint row at the given full assignment.
func (c *Constraint) Value(x []float64) float64 {
	if c.Eval != nil {
		return c.Eval(x)
	}
	val := 0.0
	for i, coeff := range c.Coeffs {
		val += coeff * x[i]
	}
	return val
}

// A Problem aggregates the variables, constraints and lifted terms of one
// model instance. Terms are registered once by the front-end and immutable
// afterwards.
type Problem struct {
	Vars    []Variable
	Constrs []Constraint
	Terms   []Term
	Sense   Sense

	// ObjVar is the variable whose value the relaxation optimizes
	// (front-ends lift the objective into a variable). Objective, when
	// non-nil, evaluates the true objective on a full assignment;
	// otherwise the objective is the value of ObjVar.
	ObjVar    int
	Objective func(x []float64) float64

	norig  int            // vars declared before the first term; -1 until then
	owners map[int]int    // lifted var index -> position in Terms
	keys   map[string]int // term signature -> position in Terms
	order  []int          // term replay order, fixed at registration
}

// NewProblem returns an empty problem with the given sense.
func NewProblem(sense Sense) *Problem {
	return &Problem{
		Sense:  sense,
		ObjVar: -1,
		norig:  -1,
		owners: make(map[int]int),
		keys:   make(map[string]int),
	}
}

// AddVariable appends a variable and returns its index.
// All original variables must be declared before the first term is
// registered; variables appended afterwards are not resolvable and will
// make ResolveLifted fail.
func (pb *Problem) AddVariable(kind VarKind, lb, ub float64) int {
	pb.Vars = append(pb.Vars, Variable{Kind: kind, Lb: lb, Ub: ub, TightLb: lb, TightUb: ub})
	return len(pb.Vars) - 1
}

// AddConstraint appends a constraint descriptor. For LtEq only ub is
// meaningful, for GtEq only lb, for Eq lb is the target.
func (pb *Problem) AddConstraint(kind ConstrKind, lb, ub float64, coeffs map[int]float64) {
	c := Constraint{Kind: kind, Lb: lb, Ub: ub, Coeffs: coeffs}
	switch kind {
	case Eq:
		c.Ub = lb
	case LtEq:
		c.Lb = math.Inf(-1)
	case GtEq:
		c.Ub = math.Inf(1)
	}
	pb.Constrs = append(pb.Constrs, c)
}

// SetObjective declares the objective variable and, optionally, the true
// objective evaluator over the full assignment.
func (pb *Problem) SetObjective(objVar int, eval func(x []float64) float64) {
	pb.ObjVar = objVar
	pb.Objective = eval
}

// ObjValue evaluates the objective at a full assignment.
func (pb *Problem) ObjValue(x []float64) float64 {
	if pb.Objective != nil {
		return pb.Objective(x)
	}
	if pb.ObjVar >= 0 && pb.ObjVar < len(x) {
		return x[pb.ObjVar]
	}
	return math.NaN()
}

// NbOriginal returns the number of variables declared by the front-end,
// i.e. all variables that are not lifted term outputs.
func (pb *Problem) NbOriginal() int {
	if pb.norig < 0 {
		return len(pb.Vars)
	}
	return pb.norig
}

// Tighten narrows the tightened bounds of a variable. Widening requests
// are ignored.
func (pb *Problem) Tighten(v int, lb, ub float64) error {
	if v < 0 || v >= len(pb.Vars) {
		return errors.Errorf("model: no variable %d", v)
	}
	vr := &pb.Vars[v]
	if lb > vr.TightLb {
		vr.TightLb = lb
	}
	if ub < vr.TightUb {
		vr.TightUb = ub
	}
	return nil
}
