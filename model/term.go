package model

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// TermKind is the closed set of nonlinear term shapes the engine knows how
// to lift. Dispatch sites must handle every kind and fail loudly on
// anything else; see ErrUnknownTermKind.
type TermKind byte

const (
	// Bilinear is a product of two distinct variables.
	Bilinear = TermKind(iota)
	// Multilinear is a product of three or more distinct variables.
	Multilinear
	// Monomial is a power of a single variable; the operand list repeats
	// the variable, so the degree is the operand count.
	Monomial
	// IntLin combines integer operands as a single linear coupling unit.
	IntLin
	// IntProd is a product of integer variables.
	IntProd
	// Sin is the sine of a single variable.
	Sin
	// Cos is the cosine of a single variable.
	Cos
	// BinLin is a product of a binary and a continuous variable.
	BinLin
	// BinInt is a product of a binary and an integer variable.
	BinInt
	// BinProd is a product of binary variables.
	BinProd
)

func (k TermKind) String() string {
	switch k {
	case Bilinear:
		return "BILINEAR"
	case Multilinear:
		return "MULTILINEAR"
	case Monomial:
		return "MONOMIAL"
	case IntLin:
		return "INTLIN"
	case IntProd:
		return "INTPROD"
	case Sin:
		return "SIN"
	case Cos:
		return "COS"
	case BinLin:
		return "BINLIN"
	case BinInt:
		return "BININT"
	case BinProd:
		return "BINPROD"
	default:
		panic("invalid term kind")
	}
}

// A Term is one registered nonlinear subexpression. Its value is carried
// by the lifted variable at index Lifted. Terms are immutable once
// registered. Eval computes the term value from a full assignment; an
// operand may itself be another term's lifted variable.
type Term struct {
	Kind        TermKind
	Operands    []int
	Lifted      int
	Eval        func(x []float64) float64
	Convexified bool
}

// RegisterTerm records a nonlinear term, allocates its lifted variable and
// returns the lifted variable's index. Registering the same kind and
// operand list twice returns the existing lifted index.
func (pb *Problem) RegisterTerm(kind TermKind, operands []int, eval func(x []float64) float64) (int, error) {
	if len(operands) == 0 {
		return -1, errors.Errorf("model: term of kind %s without operands", kind)
	}
	for _, op := range operands {
		if op < 0 || op >= len(pb.Vars) {
			return -1, errors.Errorf("model: term operand %d out of range", op)
		}
	}
	key := termKey(kind, operands)
	if pos, ok := pb.keys[key]; ok {
		return pb.Terms[pos].Lifted, nil
	}
	opKinds := make([]VarKind, len(operands))
	for i, op := range operands {
		opKinds[i] = pb.Vars[op].Kind
	}
	vk, err := liftedKind(kind, opKinds)
	if err != nil {
		return -1, err
	}
	if pb.norig < 0 {
		pb.norig = len(pb.Vars)
	}
	lb, ub := math.Inf(-1), math.Inf(1)
	if vk == Binary {
		lb, ub = 0, 1
	}
	lifted := pb.AddVariable(vk, lb, ub)
	ops := make([]int, len(operands))
	copy(ops, operands)
	pb.Terms = append(pb.Terms, Term{Kind: kind, Operands: ops, Lifted: lifted, Eval: eval})
	pos := len(pb.Terms) - 1
	pb.owners[lifted] = pos
	pb.keys[key] = pos
	pb.order = append(pb.order, pos) // operands always precede their term
	return lifted, nil
}

func termKey(kind TermKind, operands []int) string {
	parts := make([]string, 0, len(operands)+1)
	parts = append(parts, kind.String())
	for _, op := range operands {
		parts = append(parts, strconv.Itoa(op))
	}
	return strings.Join(parts, ":")
}

// liftedKind infers the kind of a term's lifted variable from the kinds of
// its operands.
//
// Sum combinations are Integer when every operand is Integer or Binary,
// and Binary only when the single operand is itself Binary. Product
// combinations are Binary when every operand is Binary, Integer when every
// operand is Integer or Binary, and Continuous otherwise. Trigonometric
// terms are always Continuous.
func liftedKind(kind TermKind, operands []VarKind) (VarKind, error) {
	switch kind {
	case IntLin:
		return sumKind(operands), nil
	case Bilinear, Multilinear, Monomial, IntProd, BinLin, BinInt, BinProd:
		return productKind(operands), nil
	case Sin, Cos:
		return Continuous, nil
	default:
		return Continuous, errors.Wrapf(ErrUnknownTermKind, "kind tag %d", byte(kind))
	}
}

func sumKind(operands []VarKind) VarKind {
	if len(operands) == 1 && operands[0] == Binary {
		return Binary
	}
	for _, k := range operands {
		if k == Continuous {
			return Continuous
		}
	}
	return Integer
}

func productKind(operands []VarKind) VarKind {
	allBin := true
	for _, k := range operands {
		switch k {
		case Continuous:
			return Continuous
		case Integer:
			allBin = false
		}
	}
	if allBin {
		return Binary
	}
	return Integer
}

