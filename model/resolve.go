package model

import "github.com/pkg/errors"

// ResolveLifted extends an assignment of the original variables with the
// value of every lifted variable, replaying term evaluators in the
// dependency order fixed at registration time. The input is not modified.
//
// The call fails with ErrUnresolvedTerm when a variable past the original
// block is owned by no term: such a variable cannot be computed and its
// presence is an upstream defect.
func (pb *Problem) ResolveLifted(x []float64) ([]float64, error) {
	norig := pb.NbOriginal()
	if len(x) < norig {
		return nil, errors.Errorf("model: assignment has %d values, want %d original variables", len(x), norig)
	}
	full := make([]float64, len(pb.Vars))
	copy(full, x[:norig])
	for i := norig; i < len(pb.Vars); i++ {
		if _, ok := pb.owners[i]; !ok {
			return nil, errors.Wrapf(ErrUnresolvedTerm, "variable %d", i)
		}
	}
	for _, pos := range pb.order {
		t := &pb.Terms[pos]
		full[t.Lifted] = t.Eval(full)
	}
	return full, nil
}

// TermOf returns the term owning the given lifted variable, or nil when
// the variable is original or unowned.
func (pb *Problem) TermOf(lifted int) *Term {
	pos, ok := pb.owners[lifted]
	if !ok {
		return nil
	}
	return &pb.Terms[pos]
}
