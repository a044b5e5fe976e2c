// Package pool retains relaxation solutions across iterations. Entries are
// appended every iteration and carry a liveness flag: once the partition is
// refined, cells that were discarded are no longer representable by the
// relaxation, so solutions anchored there are marked Dead and never used as
// restart points again. Dead is terminal.
package pool

import (
	"sort"

	"github.com/mitchellh/hashstructure"

	"github.com/ampsolve/ampsolve/model"
)

// An Entry is one relaxation solution kept across iterations.
type Entry struct {
	Solution  []float64
	Objective float64
	// Active maps each tracked variable to the 1-based partition interval
	// the solution sat in at the last merge.
	Active map[int]int
	Alive  bool
	// Iteration is the outer iteration the entry originated from.
	Iteration int
	// UBRestart marks entries already consumed as upper-bound restarts.
	UBRestart bool

	hash uint64
}

// NewEntry copies the solution vector and fingerprints it for merge-time
// deduplication.
func NewEntry(solution []float64, objective float64, iteration int) *Entry {
	sol := make([]float64, len(solution))
	copy(sol, solution)
	h, err := hashstructure.Hash(sol, nil)
	if err != nil {
		h = 0 // unhashable entries simply skip deduplication
	}
	return &Entry{
		Solution:  sol,
		Objective: objective,
		Active:    make(map[int]int),
		Alive:     true,
		Iteration: iteration,
		hash:      h,
	}
}

// A Pool is the cross-iteration solution pool. Entries are only appended;
// they are marked Dead, never physically removed.
type Pool struct {
	Entries []*Entry
	tracked map[int]bool
}

// New returns an empty pool.
func New() *Pool {
	return &Pool{tracked: make(map[int]bool)}
}

// Tracked returns the sorted set of variables whose partition membership
// the pool tracks.
func (p *Pool) Tracked() []int {
	vars := make([]int, 0, len(p.tracked))
	for v := range p.tracked {
		vars = append(vars, v)
	}
	sort.Ints(vars)
	return vars
}

// Len returns the total number of entries, Dead included.
func (p *Pool) Len() int { return len(p.Entries) }

// NbAlive returns the number of Alive entries.
func (p *Pool) NbAlive() int {
	alive := 0
	for _, e := range p.Entries {
		if e.Alive {
			alive++
		}
	}
	return alive
}

// Merge folds the entries found this iteration into the pool. The tracked
// variable set becomes the union of the previous set and tracked. classify
// reports, for a tracked variable and a solution value, the value's active
// interval in the current partition and whether that interval was
// deactivated by the latest refinement. Every entry, old or new, whose
// value sits in a deactivated interval for any tracked variable is marked
// Dead; there is no resurrection. Alive entries sharing a fingerprint
// collapse to the earliest one.
func (p *Pool) Merge(entries []*Entry, tracked []int, classify func(v int, x float64) (interval int, deactivated bool)) {
	for _, v := range tracked {
		p.tracked[v] = true
	}
	p.Entries = append(p.Entries, entries...)
	seen := make(map[uint64]bool)
	for _, e := range p.Entries {
		if !e.Alive {
			continue
		}
		for v := range p.tracked {
			if v >= len(e.Solution) {
				continue
			}
			interval, deactivated := classify(v, e.Solution[v])
			e.Active[v] = interval
			if deactivated {
				e.Alive = false
				break
			}
		}
		if e.Alive && e.hash != 0 {
			if seen[e.hash] {
				e.Alive = false
			}
			seen[e.hash] = true
		}
	}
}

// BestAlive returns the best Alive entry per optimization sense that has
// not been consumed as a restart yet, or nil.
func (p *Pool) BestAlive(sense model.Sense) *Entry {
	var best *Entry
	for _, e := range p.Entries {
		if !e.Alive || e.UBRestart {
			continue
		}
		if best == nil {
			best = e
			continue
		}
		if sense == model.Maximize {
			if e.Objective > best.Objective {
				best = e
			}
		} else if e.Objective < best.Objective {
			best = e
		}
	}
	return best
}
