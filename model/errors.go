package model

import "github.com/pkg/errors"

var (
	// ErrUnresolvedTerm is returned when a lifted variable is owned by no
	// registered term. It signals a front-end defect and is not locally
	// recoverable.
	ErrUnresolvedTerm = errors.New("model: lifted variable owned by no term")

	// ErrUnknownTermKind is returned by dispatch sites that meet a term
	// kind outside the closed TermKind set.
	ErrUnknownTermKind = errors.New("model: unknown term kind")
)
