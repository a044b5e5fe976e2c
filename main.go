package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ampsolve/ampsolve/amp"
	"github.com/ampsolve/ampsolve/cover"
	"github.com/ampsolve/ampsolve/model"
)

func main() {
	var (
		verbose bool
		mode    string
		iters   int
		timeout time.Duration
	)
	flag.BoolVar(&verbose, "verbose", false, "sets verbose mode on")
	flag.StringVar(&mode, "selection", "vertex-cover", "discretization selection mode (all-candidates|vertex-cover|weighted-vertex-cover)")
	flag.IntVar(&iters, "iters", 50, "outer iteration budget")
	flag.DurationVar(&timeout, "timeout", time.Minute, "overall time budget")
	flag.Parse()
	if len(flag.Args()) != 0 {
		fmt.Fprintf(os.Stderr, "Syntax : %s [options]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}
	selMode, err := cover.ParseMode(mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid selection mode: %v\n", err)
		os.Exit(1)
	}
	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}

	pb := samplePb()
	s, err := amp.NewWithOracles(pb, "simplex", "coordinate",
		amp.WithSelectionMode(selMode),
		amp.WithMaxIters(iters),
		amp.WithTimeout(timeout),
		amp.WithLogger(log),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not build solver: %v\n", err)
		os.Exit(1)
	}
	inc, err := s.Solve(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "solve failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("c status     %s\n", s.Stats.Status)
	fmt.Printf("c iterations %d\n", s.Stats.Iterations)
	if inc.HasSolution() {
		fmt.Printf("o %g\n", inc.BestObj)
		fmt.Printf("c bound %g gap %g\n", inc.BestBound, inc.RelGap)
		fmt.Print("v")
		for i := 0; i < pb.NbOriginal(); i++ {
			fmt.Printf(" %g", inc.BestSol[i])
		}
		fmt.Println()
	} else {
		fmt.Println("s UNKNOWN")
	}
}

// samplePb builds a small nonconvex demonstration model:
// minimize xy + z^2 with x + y >= 1, x - z <= 0.5 over the unit box.
// The objective is lifted into the epigraph variable t.
func samplePb() *model.Problem {
	pb := model.NewProblem(model.Minimize)
	x := pb.AddVariable(model.Continuous, 0, 1)
	y := pb.AddVariable(model.Continuous, 0, 1)
	z := pb.AddVariable(model.Continuous, 0, 1)
	t := pb.AddVariable(model.Continuous, 0, 2)
	xy, err := pb.RegisterTerm(model.Bilinear, []int{x, y}, func(v []float64) float64 {
		return v[x] * v[y]
	})
	fatalIf(err)
	zz, err := pb.RegisterTerm(model.Monomial, []int{z, z}, func(v []float64) float64 {
		return v[z] * v[z]
	})
	fatalIf(err)
	pb.SetObjective(t, nil)
	pb.AddConstraint(model.Eq, 0, 0, map[int]float64{t: 1, xy: -1, zz: -1})
	pb.AddConstraint(model.GtEq, 1, 0, map[int]float64{x: 1, y: 1})
	pb.AddConstraint(model.LtEq, 0, 0.5, map[int]float64{x: 1, z: -1})
	return pb
}

func fatalIf(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not build model: %v\n", err)
		os.Exit(1)
	}
}
