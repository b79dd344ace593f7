// Command hjr-sweep runs the local solver over ranges of neighbour distance,
// time step and tolerance and writes one CSV row per combination.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/refinencbf/localhjr/internal/config"
	"github.com/refinencbf/localhjr/internal/grid"
	"github.com/refinencbf/localhjr/internal/localsolver"
	"github.com/refinencbf/localhjr/internal/monitoring"
	"github.com/refinencbf/localhjr/internal/problems"
	"github.com/refinencbf/localhjr/internal/security"
	"github.com/refinencbf/localhjr/internal/sweep"
	"github.com/refinencbf/localhjr/internal/timeutil"
	"github.com/refinencbf/localhjr/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Base solver config JSON (defaults when empty)")
	system := flag.String("system", "", "System name, overrides the config")
	shapeFlag := flag.String("shape", "", "Grid shape like 3,51,51, overrides the config")
	kind := flag.String("kind", "", "Solver kind, overrides the config")
	neighbors := flag.String("neighbor-distances", "", "Neighbour distances: min:max:step or comma list")
	timeSteps := flag.String("time-steps", "", "Time steps: min:max:step or comma list")
	tolerances := flag.String("tolerances", "", "Value change tolerances (atol and rtol): min:max:step or comma list")
	output := flag.String("output", "", "CSV output file (stdout when empty)")
	outputDir := flag.String("output-dir", "", "Write a timestamped CSV into this directory instead of -output")
	quiet := flag.Bool("quiet", false, "Suppress per-iteration solver diagnostics")
	flag.Parse()

	if *quiet {
		monitoring.SetLogger(nil)
	}

	cfg := config.DefaultSolverConfig()
	if *configPath != "" {
		loaded, err := config.LoadSolverConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *system != "" {
		cfg.System = system
	}
	if *shapeFlag != "" {
		cfg.GridShape = shapeFlag
	}
	if *kind != "" {
		cfg.SolverKind = kind
	}
	base, err := localsolver.OptionsFromConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	req := sweep.Request{Kind: localsolver.Kind(cfg.GetSolverKind()), Base: base}
	for _, p := range []struct {
		name string
		spec string
		dst  *[]float64
	}{
		{"neighbor-distances", *neighbors, &req.NeighborDistances},
		{"time-steps", *timeSteps, &req.TimeSteps},
		{"tolerances", *tolerances, &req.Tolerances},
	} {
		vals, err := sweep.ParseParamList(p.spec)
		if err != nil {
			log.Fatalf("Invalid -%s: %v", p.name, err)
		}
		*p.dst = vals
	}

	var shape grid.Shape
	if s := cfg.GetGridShape(); s != "" {
		if shape, err = grid.ParseShape(s); err != nil {
			log.Fatalf("Invalid grid shape: %v", err)
		}
	}
	problem, err := problems.Build(cfg.GetSystem(), shape)
	if err != nil {
		log.Fatalf("Failed to build problem: %v", err)
	}

	filename := *output
	if *outputDir != "" {
		name := fmt.Sprintf("sweep-%s-%s-%s.csv", problem.Name, cfg.GetSolverKind(), time.Now().Format("20060102-150405"))
		filename = filepath.Join(*outputDir, security.SanitizeFilename(name))
	}
	var out io.Writer = os.Stdout
	if filename != "" {
		if err := security.ValidateOutputPath(filename); err != nil {
			log.Fatalf("Invalid output path: %v", err)
		}
		f, err := os.Create(filename)
		if err != nil {
			log.Fatalf("Could not create output file %s: %v", filename, err)
		}
		defer f.Close()
		out = f
		log.Printf("Writing results to %s", filename)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("hjr-sweep %s: %s on grid %s", version.String(), problem.Name, problem.Setup.Grid.Shape())
	start := time.Now()
	results, runErr := sweep.NewRunner(timeutil.RealClock{}).Run(ctx, problem, req)
	if err := sweep.WriteCSV(out, results); err != nil {
		log.Fatalf("Failed to write results: %v", err)
	}
	if runErr != nil {
		log.Printf("Sweep incomplete: %v", runErr)
		fmt.Fprintf(os.Stderr, "wrote %d partial results\n", len(results))
		os.Exit(1)
	}
	log.Printf("Sweep of %d combinations finished in %s", len(results), time.Since(start).Round(time.Millisecond))
}
