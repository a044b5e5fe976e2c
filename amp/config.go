package amp

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ampsolve/ampsolve/cover"
	"github.com/ampsolve/ampsolve/partition"
)

// Default tolerances of the outer loop.
const (
	DefaultRelGapTol = 1e-4
	DefaultTol       = 1e-6
	DefaultMaxIters  = 100
	DefaultStall     = 5
)

// A Config gathers the knobs of the outer loop. Zero values are replaced
// by defaults in New; verbosity affects output only, never control flow.
type Config struct {
	// RelGapTol is the relative gap below which the solve converges.
	RelGapTol float64
	// Tol is the numeric tolerance shared by feasibility checks,
	// partition lookups and gap normalization.
	Tol float64
	// Timeout bounds the whole solve; zero means no limit.
	Timeout time.Duration
	// MaxIters bounds the number of outer iterations.
	MaxIters int
	// StallLimit is the number of consecutive iterations with an
	// unchanged bound tolerated before the solve stops.
	StallLimit int
	// Ratio controls the width of refined partition cells.
	Ratio float64
	// SelectionMode drives the discretization variable selector.
	SelectionMode cover.Mode
	// SelectEvery re-runs selection every that many iterations;
	// zero or one reselects every iteration.
	SelectEvery int
	// Log receives the per-iteration diagnostics.
	Log logrus.FieldLogger
}

// An Option mutates the configuration of a solver under construction.
type Option func(*Config)

// WithRelGapTol sets the convergence gap tolerance.
func WithRelGapTol(tol float64) Option {
	return func(c *Config) { c.RelGapTol = tol }
}

// WithTol sets the shared numeric tolerance.
func WithTol(tol float64) Option {
	return func(c *Config) { c.Tol = tol }
}

// WithTimeout sets the overall time budget.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithMaxIters sets the outer iteration budget.
func WithMaxIters(n int) Option {
	return func(c *Config) { c.MaxIters = n }
}

// WithStallLimit sets the consecutive-repeat-iteration stall limit.
func WithStallLimit(n int) Option {
	return func(c *Config) { c.StallLimit = n }
}

// WithRatio sets the partition refinement ratio.
func WithRatio(r float64) Option {
	return func(c *Config) { c.Ratio = r }
}

// WithSelectionMode sets the discretization selection mode.
func WithSelectionMode(m cover.Mode) Option {
	return func(c *Config) { c.SelectionMode = m }
}

// WithSelectEvery sets the selection refresh period.
func WithSelectEvery(n int) Option {
	return func(c *Config) { c.SelectEvery = n }
}

// WithLogger sets the diagnostic logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Config) { c.Log = log }
}

func defaulted(opts []Option) Config {
	cfg := Config{
		RelGapTol:     DefaultRelGapTol,
		Tol:           DefaultTol,
		MaxIters:      DefaultMaxIters,
		StallLimit:    DefaultStall,
		Ratio:         partition.DefaultRatio,
		SelectionMode: cover.VertexCover,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Log == nil {
		quiet := logrus.New()
		quiet.SetOutput(io.Discard)
		cfg.Log = quiet
	}
	return cfg
}
