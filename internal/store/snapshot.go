package store

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/refinencbf/localhjr/internal/dynamics"
	"github.com/refinencbf/localhjr/internal/grid"
	"github.com/refinencbf/localhjr/internal/localsolver"
)

// snapshotVersion is bumped whenever the gob layout changes.
const snapshotVersion = 1

// ErrSnapshotVersion is returned for snapshots written by a newer layout.
var ErrSnapshotVersion = errors.New("store: unsupported snapshot version")

type snapshot struct {
	Version    int
	ID         string
	ParentID   string
	StopReason string
	StartedAt  time.Time
	System     string
	Grid       grid.Spec

	Avoid      []bool
	Reach      []bool
	Seed       []bool
	Initial    []float64
	Iterations []snapshotIteration
}

type snapshotIteration struct {
	PreFiltered  []bool
	Expanded     []bool
	Values       []float64
	PostFiltered []bool
	StepDuration time.Duration
}

func newSnapshot(r *localsolver.Result) snapshot {
	rec := r.Record()
	s := snapshot{
		Version:    snapshotVersion,
		ID:         rec.ID,
		ParentID:   rec.ParentID,
		StopReason: rec.StopReason,
		StartedAt:  rec.StartedAt,
		System:     r.Setup().Dynamics.Name(),
		Grid:       r.Grid().Spec(),
		Avoid:      rec.AvoidSet.Cells(),
		Reach:      rec.ReachSet.Cells(),
		Seed:       rec.SeedSet.Cells(),
		Initial:    rec.InitialValues.Values(),
		Iterations: make([]snapshotIteration, len(rec.Iterations)),
	}
	for i, it := range rec.Iterations {
		s.Iterations[i] = snapshotIteration{
			PreFiltered:  it.PreFiltered.Cells(),
			Expanded:     it.Expanded.Cells(),
			Values:       it.Values.Values(),
			PostFiltered: it.PostFiltered.Cells(),
			StepDuration: it.StepDuration,
		}
	}
	return s
}

// result rebuilds the Result, binding the dynamics by system name with
// default parameters.
func (s snapshot) result() (*localsolver.Result, error) {
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrSnapshotVersion, s.Version)
	}
	g, err := grid.FromSpec(s.Grid)
	if err != nil {
		return nil, fmt.Errorf("snapshot grid: %w", err)
	}
	dyn, err := dynamics.Lookup(s.System)
	if err != nil {
		return nil, err
	}
	shape := g.Shape()

	var errs []error
	mask := func(cells []bool) grid.Mask {
		m, err := grid.MaskFromCells(shape, cells)
		errs = append(errs, err)
		return m
	}
	table := func(values []float64) grid.Table {
		t, err := grid.TableFromValues(shape, values)
		errs = append(errs, err)
		return t
	}

	rec := localsolver.Record{
		ID:            s.ID,
		ParentID:      s.ParentID,
		StopReason:    s.StopReason,
		StartedAt:     s.StartedAt,
		AvoidSet:      mask(s.Avoid),
		ReachSet:      mask(s.Reach),
		SeedSet:       mask(s.Seed),
		InitialValues: table(s.Initial),
		Iterations:    make([]localsolver.Iteration, len(s.Iterations)),
	}
	for i, it := range s.Iterations {
		rec.Iterations[i] = localsolver.Iteration{
			PreFiltered:  mask(it.PreFiltered),
			Expanded:     mask(it.Expanded),
			Values:       table(it.Values),
			PostFiltered: mask(it.PostFiltered),
			StepDuration: it.StepDuration,
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", s.ID, err)
	}
	return localsolver.Restore(localsolver.Setup{Grid: g, Dynamics: dyn}, rec)
}

// EncodeSnapshot writes r to w as gzip-compressed gob.
func EncodeSnapshot(w io.Writer, r *localsolver.Result) error {
	zw := gzip.NewWriter(w)
	if err := gob.NewEncoder(zw).Encode(newSnapshot(r)); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return zw.Close()
}

// DecodeSnapshot reads a Result written by EncodeSnapshot.
func DecodeSnapshot(rd io.Reader) (*localsolver.Result, error) {
	zr, err := gzip.NewReader(rd)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer zr.Close()

	var s snapshot
	if err := gob.NewDecoder(zr).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return s.result()
}

// SaveSnapshot writes r to path. The file is written next to path and
// renamed into place.
func SaveSnapshot(r *localsolver.Result, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := EncodeSnapshot(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot file written by SaveSnapshot.
func LoadSnapshot(path string) (*localsolver.Result, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()
	return DecodeSnapshot(f)
}
