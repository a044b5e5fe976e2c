package amp

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ampsolve/ampsolve/cover"
	"github.com/ampsolve/ampsolve/model"
	"github.com/ampsolve/ampsolve/oracle"
	"github.com/ampsolve/ampsolve/partition"
	"github.com/ampsolve/ampsolve/pool"
)

// FinalStatus is the reason the outer loop stopped.
type FinalStatus byte

const (
	// Converged means the relative gap closed below the tolerance.
	Converged = FinalStatus(iota)
	// IterLimit means the iteration budget ran out first.
	IterLimit
	// TimeLimit means the time budget ran out first.
	TimeLimit
	// Stalled means the bound repeated for too many iterations with no
	// restart point left in the pool.
	Stalled
	// Infeasible means the relaxation was proven infeasible before any
	// incumbent was found.
	Infeasible
)

func (st FinalStatus) String() string {
	switch st {
	case Converged:
		return "CONVERGED"
	case IterLimit:
		return "ITERLIMIT"
	case TimeLimit:
		return "TIMELIMIT"
	case Stalled:
		return "STALLED"
	case Infeasible:
		return "INFEASIBLE"
	default:
		panic("invalid final status")
	}
}

// Stats counts the work done by one solve.
type Stats struct {
	Iterations int
	MIPCalls   int
	NLPCalls   int
	Restarts   int
	Status     FinalStatus
}

// A Solver runs the sequential outer loop: relaxation bound, pool merge,
// domain fixing, local search, incumbent and gap update, partition
// refinement. The partition store and the pool are owned by the loop and
// never mutated concurrently.
type Solver struct {
	pb      *model.Problem
	store   *partition.Store
	pool    *pool.Pool
	inc     *Incumbent
	graph   *cover.Graph
	builder oracle.Builder
	mip     oracle.MIPOracle
	nlp     oracle.NLPOracle
	cfg     Config
	log     logrus.FieldLogger

	selected   []int
	stallCount int
	Stats      Stats
}

// New builds a solver around explicit oracle implementations.
func New(pb *model.Problem, mip oracle.MIPOracle, nlp oracle.NLPOracle, opts ...Option) (*Solver, error) {
	cfg := defaulted(opts)
	g, err := cover.Build(pb)
	if err != nil {
		return nil, err
	}
	return &Solver{
		pb:      pb,
		store:   partition.New(pb, cfg.Ratio, cfg.Tol, cfg.Log),
		pool:    pool.New(),
		inc:     NewIncumbent(pb.Sense, cfg.Tol),
		graph:   g,
		builder: oracle.NewPiecewiseBuilder(nil),
		mip:     mip,
		nlp:     nlp,
		cfg:     cfg,
		log:     cfg.Log,
	}, nil
}

// NewWithOracles builds a solver from configured oracle identifiers.
func NewWithOracles(pb *model.Problem, mipName, nlpName string, opts ...Option) (*Solver, error) {
	mip, err := oracle.NewMIP(mipName)
	if err != nil {
		return nil, err
	}
	nlp, err := oracle.NewNLP(nlpName)
	if err != nil {
		return nil, err
	}
	return New(pb, mip, nlp, opts...)
}

// Incumbent returns the tracker; valid during and after Solve.
func (s *Solver) Incumbent() *Incumbent { return s.inc }

// Pool returns the cross-iteration solution pool.
func (s *Solver) Pool() *pool.Pool { return s.pool }

// Store returns the partition store.
func (s *Solver) Store() *partition.Store { return s.store }

// Solve runs the outer loop until the gap closes or a budget runs out.
// Oracle timeouts and infeasible subsolves count as iterations without
// improvement; only configuration and modeling errors abort the solve.
func (s *Solver) Solve(ctx context.Context) (*Incumbent, error) {
	start := time.Now()
	if rem := s.remaining(start); rem > 0 {
		s.nlp.SetTimeLimit(rem)
		s.localSolve(ctx, s.tightBounds(), nil)
	}

	for iter := 1; s.cfg.MaxIters <= 0 || iter <= s.cfg.MaxIters; iter++ {
		if s.remaining(start) <= 0 {
			s.Stats.Status = TimeLimit
			return s.inc, nil
		}
		if ctx.Err() != nil {
			s.Stats.Status = TimeLimit
			return s.inc, ctx.Err()
		}
		s.Stats.Iterations = iter

		if err := s.reselect(iter); err != nil {
			return s.inc, err
		}

		r, err := s.builder.Build(s.pb, s.store, s.selected)
		if err != nil {
			return s.inc, err
		}
		s.mip.SetTimeLimit(s.remaining(start))
		s.mip.SetBranchPriority(s.selected)
		s.Stats.MIPCalls++
		res, err := s.mip.SolveRelaxation(ctx, r)
		if err != nil {
			return s.inc, err
		}

		boundImproved := false
		switch res.Status {
		case oracle.Optimal:
			// Only a completed search certifies a dual bound; a
			// truncated search reports its incumbent, a primal value
			// that may sit on the wrong side of the true bound.
			boundImproved = s.inc.UpdateBound(res.Objective)
		case oracle.Infeasible:
			if !s.inc.HasSolution() {
				s.Stats.Status = Infeasible
				return s.inc, nil
			}
		}

		if res.Solution != nil {
			ref := res.Solution
			s.mergePool(iter, ref, res.Pool)
			if rem := s.remaining(start); rem > 0 {
				if lb, ub, err := FixDomains(s.pb, s.store, ref); err == nil {
					s.nlp.SetTimeLimit(rem)
					s.localSolve(ctx, bounds{lb, ub}, ref[:s.pb.NbOriginal()])
				} else {
					s.log.WithError(err).Warn("domain fixing failed, skipping local search")
				}
			}
			s.store.Refine(ref, s.selected)
		}
		s.inc.UpdateGap()

		s.log.WithFields(logrus.Fields{
			"iter":      iter,
			"bound":     s.inc.BestBound,
			"incumbent": s.inc.BestObj,
			"relgap":    s.inc.RelGap,
			"alive":     s.pool.NbAlive(),
			"entries":   s.pool.Len(),
		}).Info("iteration finished")

		if s.inc.RelGap <= s.cfg.RelGapTol {
			s.Stats.Status = Converged
			return s.inc, nil
		}
		if stop := s.checkStall(ctx, boundImproved, s.remaining(start)); stop {
			s.Stats.Status = Stalled
			return s.inc, nil
		}
	}
	s.Stats.Status = IterLimit
	return s.inc, nil
}

type bounds struct {
	lb, ub []float64
}

func (s *Solver) tightBounds() bounds {
	norig := s.pb.NbOriginal()
	b := bounds{make([]float64, norig), make([]float64, norig)}
	for i := 0; i < norig; i++ {
		b.lb[i] = s.pb.Vars[i].TightLb
		b.ub[i] = s.pb.Vars[i].TightUb
	}
	return b
}

func (s *Solver) remaining(start time.Time) time.Duration {
	if s.cfg.Timeout <= 0 {
		return time.Hour
	}
	return s.cfg.Timeout - time.Since(start)
}

// reselect refreshes the discretization set on the configured period and
// flags the selected variables on the model.
func (s *Solver) reselect(iter int) error {
	period := s.cfg.SelectEvery
	if period < 1 {
		period = 1
	}
	if iter > 1 && (iter-1)%period != 0 {
		return nil
	}
	selected, err := cover.Select(s.pb, s.graph, s.cfg.SelectionMode, cover.PBOracle{}, s.breakpointDistances(), s.cfg.Tol)
	if err != nil {
		return err
	}
	s.selected = selected
	for i := range s.pb.Vars {
		s.pb.Vars[i].Discretized = false
	}
	for _, v := range selected {
		s.pb.Vars[v].Discretized = true
	}
	return nil
}

// breakpointDistances measures, per variable, how far the current
// reference point sits from its nearest breakpoint. The incumbent serves
// as reference; without one the box midpoint does.
func (s *Solver) breakpointDistances() []float64 {
	d := make([]float64, len(s.pb.Vars))
	for v := range s.pb.Vars {
		ref := (s.pb.Vars[v].TightLb + s.pb.Vars[v].TightUb) / 2
		if s.inc.BestSol != nil && v < len(s.inc.BestSol) {
			ref = s.inc.BestSol[v]
		}
		if math.IsInf(ref, 0) || math.IsNaN(ref) {
			ref = 0
		}
		best := math.Inf(1)
		for _, p := range s.store.Points(v) {
			if dist := math.Abs(ref - p); dist < best {
				best = dist
			}
		}
		d[v] = best
	}
	return d
}

// mergePool folds this iteration's relaxation solutions into the pool.
// Entries are classified against the current partition at merge time, so
// indices stored in earlier iterations are never trusted across
// refinements.
func (s *Solver) mergePool(iter int, ref []float64, sols []oracle.PoolSolution) {
	entries := make([]*pool.Entry, 0, len(sols))
	for _, ps := range sols {
		entries = append(entries, pool.NewEntry(ps.Solution, ps.Objective, iter))
	}
	deactivated := make(map[int]map[int]bool, len(s.selected))
	for _, v := range s.selected {
		if v < len(ref) {
			deactivated[v] = s.store.Deactivated(v, ref[v])
		}
	}
	s.pool.Merge(entries, s.selected, func(v int, x float64) (int, bool) {
		j := s.store.ActiveInterval(v, x)
		return j, deactivated[v][j]
	})
}

// localSolve runs the NLP oracle inside the given box and promotes the
// result to incumbent when the rounded solution verifies feasibility on
// the full model.
func (s *Solver) localSolve(ctx context.Context, b bounds, warm []float64) bool {
	s.Stats.NLPCalls++
	res, err := s.nlp.SolveLocal(ctx, s.pb, b.lb, b.ub, warm)
	if err != nil || res.Status != oracle.Feasible {
		return false
	}
	rounded := Round(s.pb, res.Solution)
	full, err := s.pb.ResolveLifted(rounded)
	if err != nil {
		return false
	}
	ok, reason := IsFeasible(s.pb, full, s.cfg.Tol)
	if !ok {
		s.log.WithField("reason", reason).Debug("local solution rejected")
		return false
	}
	return s.inc.Update(s.pb.ObjValue(full), full)
}

// checkStall counts consecutive iterations without bound movement. At the
// stall limit it first tries an upper-bound restart from the best Alive
// pool entry not consumed yet; with the pool exhausted the solve stops.
// With the time budget exhausted no restart starts and the time check
// decides instead.
func (s *Solver) checkStall(ctx context.Context, boundImproved bool, remaining time.Duration) bool {
	if boundImproved {
		s.stallCount = 0
		return false
	}
	s.stallCount++
	if s.cfg.StallLimit <= 0 || s.stallCount < s.cfg.StallLimit {
		return false
	}
	if remaining <= 0 {
		return false
	}
	e := s.pool.BestAlive(s.pb.Sense)
	if e == nil {
		return true
	}
	e.UBRestart = true
	s.Stats.Restarts++
	s.stallCount = 0
	norig := s.pb.NbOriginal()
	warm := e.Solution
	if len(warm) > norig {
		warm = warm[:norig]
	}
	s.log.WithFields(logrus.Fields{
		"objective": e.Objective,
		"iteration": e.Iteration,
	}).Info("restarting local search from pool entry")
	s.nlp.SetTimeLimit(remaining)
	s.localSolve(ctx, s.tightBounds(), warm)
	return false
}
