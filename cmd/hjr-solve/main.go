// Command hjr-solve builds a reachability problem, runs the local active-set
// solver on it and persists the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/refinencbf/localhjr/internal/config"
	"github.com/refinencbf/localhjr/internal/grid"
	"github.com/refinencbf/localhjr/internal/localsolver"
	"github.com/refinencbf/localhjr/internal/monitoring"
	"github.com/refinencbf/localhjr/internal/problems"
	"github.com/refinencbf/localhjr/internal/security"
	"github.com/refinencbf/localhjr/internal/store"
	"github.com/refinencbf/localhjr/internal/version"
)

var (
	configPath   = flag.String("config", "", "Solver config JSON (defaults when empty)")
	system       = flag.String("system", "", "System name, overrides the config")
	shapeFlag    = flag.String("shape", "", "Grid shape like 3,101,101, overrides the config")
	kindFlag     = flag.String("kind", "", "Solver kind: classic, boundary, boundary_only_decrease, benchmark")
	maxIters     = flag.Int("max-iterations", 0, "Iteration limit, overrides the config when positive")
	dbPath       = flag.String("db", "", "SQLite run store to save the result in")
	snapshotPath = flag.String("snapshot", "", "Write a gob+gzip snapshot of the result to this path")
	resumePath   = flag.String("resume", "", "Continue from a snapshot file")
	resumeRun    = flag.String("resume-run", "", "Continue from a run ID in -db")
	listRuns     = flag.Bool("list", false, "List runs stored in -db and exit")
	metricsAddr  = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address while solving")
	verbose      = flag.Bool("verbose", false, "Log every iteration")
	quiet        = flag.Bool("quiet", false, "Suppress solver diagnostics")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func loadConfig() *config.SolverConfig {
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
	if *kindFlag != "" {
		cfg.SolverKind = kindFlag
	}
	if *maxIters > 0 {
		cfg.MaxIterations = maxIters
	}
	if *verbose {
		cfg.Verbose = verbose
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println("hjr-solve", version.String())
		return
	}
	if *quiet {
		monitoring.SetLogger(nil)
	}

	var runs *store.RunStore
	if *dbPath != "" {
		var err error
		runs, err = store.OpenRunStore(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open run store: %v", err)
		}
		defer runs.Close()
	}
	if *listRuns {
		if runs == nil {
			log.Fatalf("-list requires -db")
		}
		printRuns(runs)
		return
	}

	cfg := loadConfig()
	if *snapshotPath != "" {
		if err := security.ValidateOutputPath(*snapshotPath); err != nil {
			log.Fatalf("Invalid -snapshot: %v", err)
		}
	}
	var shape grid.Shape
	if s := cfg.GetGridShape(); s != "" {
		var err error
		if shape, err = grid.ParseShape(s); err != nil {
			log.Fatalf("Invalid grid shape: %v", err)
		}
	}
	problem, err := problems.Build(cfg.GetSystem(), shape)
	if err != nil {
		log.Fatalf("Failed to build problem: %v", err)
	}
	solver, err := localsolver.FromConfig(cfg, problem.Setup, problem.AvoidSet, problem.ReachSet)
	if err != nil {
		log.Fatalf("Failed to build solver: %v", err)
	}

	if *metricsAddr != "" {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		go serveMetrics(ctx, *metricsAddr)
	}

	log.Printf("hjr-solve %s: %s on grid %s, %s solver", version.String(), problem.Name, problem.Setup.Grid.Shape(), cfg.GetSolverKind())
	start := time.Now()
	var result *localsolver.Result
	if previous := loadPrevious(runs); previous != nil {
		result, err = solver.SolveFrom(previous)
	} else {
		result, err = problem.Solve(solver)
	}
	if err != nil {
		log.Fatalf("Solve failed: %v", err)
	}
	log.Printf("Run %s finished in %s: %d iterations, stop reason %q, %d active cells",
		result.ID, time.Since(start).Round(time.Millisecond), result.NumIterations(),
		result.StopReason, result.LastActiveSet().Count())

	if *snapshotPath != "" {
		if err := store.SaveSnapshot(result, *snapshotPath); err != nil {
			log.Fatalf("Failed to write snapshot: %v", err)
		}
		log.Printf("Snapshot written to %s", *snapshotPath)
	}
	if runs != nil {
		meta := store.RunMeta{SolverKind: cfg.GetSolverKind(), Params: cfg}
		if err := runs.SaveRun(result, meta); err != nil {
			log.Fatalf("Failed to save run: %v", err)
		}
		log.Printf("Run %s saved to %s", result.ID, *dbPath)
	}
}

// loadPrevious returns the result named by -resume or -resume-run, or nil.
func loadPrevious(runs *store.RunStore) *localsolver.Result {
	switch {
	case *resumePath != "" && *resumeRun != "":
		log.Fatalf("Use only one of -resume and -resume-run")
	case *resumePath != "":
		previous, err := store.LoadSnapshot(*resumePath)
		if err != nil {
			log.Fatalf("Failed to load snapshot: %v", err)
		}
		log.Printf("Resuming from run %s (%s)", previous.ID, *resumePath)
		return previous
	case *resumeRun != "":
		if runs == nil {
			log.Fatalf("-resume-run requires -db")
		}
		previous, err := runs.LoadRun(*resumeRun)
		if err != nil {
			log.Fatalf("Failed to load run: %v", err)
		}
		log.Printf("Resuming from run %s", previous.ID)
		return previous
	}
	return nil
}

func printRuns(runs *store.RunStore) {
	list, err := runs.ListRuns(*system)
	if err != nil {
		log.Fatalf("Failed to list runs: %v", err)
	}
	fmt.Fprintf(os.Stdout, "%-36s  %-24s  %-22s  %-14s  %5s  %8s  %s\n",
		"run_id", "system", "kind", "shape", "iters", "active", "stop_reason")
	for _, r := range list {
		fmt.Fprintf(os.Stdout, "%-36s  %-24s  %-22s  %-14s  %5d  %8d  %s\n",
			r.ID, r.System, r.SolverKind, r.GridShape, r.NumIterations, r.FinalActive, r.StopReason)
	}
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("Serving metrics on %s/metrics", addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
}
