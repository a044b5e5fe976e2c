// Package oracle defines the external-solver surface of the partitioning
// engine: the MILP relaxation oracle, the NLP local-search oracle, and the
// builder that assembles a MILP-representable relaxation from the term
// registry and the partition store. Core code only ever talks to the
// capability interfaces; in-process reference adapters are provided so the
// engine runs without third-party binaries.
package oracle

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ampsolve/ampsolve/model"
)

// Status is the outcome of an oracle call.
type Status byte

const (
	// Optimal means the oracle proved its answer optimal.
	Optimal = Status(iota)
	// Feasible means a solution was found without an optimality proof.
	Feasible
	// Infeasible means the subproblem admits no solution.
	Infeasible
	// TimeLimit means the soft time limit expired first.
	TimeLimit
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "OPTIMAL"
	case Feasible:
		return "FEASIBLE"
	case Infeasible:
		return "INFEASIBLE"
	case TimeLimit:
		return "TIMELIMIT"
	default:
		panic("invalid oracle status")
	}
}

// A PoolSolution is one near-optimal solution reported by a MIP oracle
// supporting solution pools.
type PoolSolution struct {
	Solution  []float64
	Objective float64
}

// A Result is the outcome of one oracle solve.
type Result struct {
	Status    Status
	Objective float64
	Solution  []float64
	Pool      []PoolSolution
}

// MIPOracle is the capability interface of a mixed-integer linear solver.
// Implementations advertise their capabilities instead of being matched on
// display names.
type MIPOracle interface {
	SetTimeLimit(d time.Duration)
	SupportsSolutionPool() bool
	SetBranchPriority(vars []int)
	SolveRelaxation(ctx context.Context, r *Relaxation) (Result, error)
}

// NLPOracle is the capability interface of a local nonlinear solver. It
// receives the bound pairs produced by domain fixing and a warm start over
// the original variables.
type NLPOracle interface {
	SetTimeLimit(d time.Duration)
	SolveLocal(ctx context.Context, pb *model.Problem, lb, ub, warm []float64) (Result, error)
}

// ErrConfiguration is returned for unsupported oracle identifiers or
// malformed options. It is fatal: the caller must not retry.
var ErrConfiguration = errors.New("oracle: unsupported oracle identifier")

// NewMIP maps a configured identifier to a MIP oracle.
func NewMIP(name string) (MIPOracle, error) {
	switch name {
	case "", "simplex":
		return NewSimplexMIP(), nil
	default:
		return nil, errors.Wrap(ErrConfiguration, name)
	}
}

// NewNLP maps a configured identifier to an NLP oracle.
func NewNLP(name string) (NLPOracle, error) {
	switch name {
	case "", "coordinate":
		return NewCoordinateNLP(), nil
	default:
		return nil, errors.Wrap(ErrConfiguration, name)
	}
}
