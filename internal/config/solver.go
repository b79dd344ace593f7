package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical solver defaults file.
const DefaultConfigPath = "config/solver.defaults.json"

// Defaults used by the Get* accessors when a field is unset.
const (
	DefaultSolverKind         = "classic"
	DefaultSystem             = "active_cruise_control"
	DefaultNeighborDistance   = 1.0
	DefaultBoundaryDistance   = 1.0
	DefaultTimeStep           = -0.1
	DefaultValueChangeAtol    = 1e-3
	DefaultValueChangeRtol    = 1e-3
	DefaultMaxIterations      = 100
	DefaultAccuracy           = "medium"
	DefaultValuePostprocessor = "identity"
)

var (
	solverKinds    = []string{"classic", "boundary", "boundary_only_decrease", "benchmark"}
	accuracies     = []string{"low", "medium", "high", "very_high"}
	postprocessors = []string{"identity", "backwards_reachable_tube"}
)

// SolverConfig is the JSON configuration of one local HJR solve. Every
// field is optional; unset fields fall back to the defaults above.
type SolverConfig struct {
	// Problem
	System    *string `json:"system,omitempty"`
	GridShape *string `json:"grid_shape,omitempty"` // e.g. "3,201,201"; empty uses the problem default

	// Solver composition
	SolverKind       *string  `json:"solver_kind,omitempty"`
	NeighborDistance *float64 `json:"neighbor_distance,omitempty"`
	BoundaryDistance *float64 `json:"boundary_distance,omitempty"`

	// Stepping
	TimeStep           *float64 `json:"time_step,omitempty"`
	Accuracy           *string  `json:"accuracy,omitempty"`
	ValuePostprocessor *string  `json:"value_postprocessor,omitempty"`

	// Convergence
	ValueChangeAtol *float64 `json:"value_change_atol,omitempty"`
	ValueChangeRtol *float64 `json:"value_change_rtol,omitempty"`
	MaxIterations   *int     `json:"max_iterations,omitempty"`
	WallClockBudget *string  `json:"wall_clock_budget,omitempty"` // duration string like "10m"; empty disables

	Verbose *bool `json:"verbose,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptySolverConfig returns a SolverConfig with all fields set to nil.
func EmptySolverConfig() *SolverConfig {
	return &SolverConfig{}
}

// DefaultSolverConfig returns a SolverConfig with every field set to its default.
func DefaultSolverConfig() *SolverConfig {
	return &SolverConfig{
		System:             ptrString(DefaultSystem),
		GridShape:          ptrString(""),
		SolverKind:         ptrString(DefaultSolverKind),
		NeighborDistance:   ptrFloat64(DefaultNeighborDistance),
		BoundaryDistance:   ptrFloat64(DefaultBoundaryDistance),
		TimeStep:           ptrFloat64(DefaultTimeStep),
		Accuracy:           ptrString(DefaultAccuracy),
		ValuePostprocessor: ptrString(DefaultValuePostprocessor),
		ValueChangeAtol:    ptrFloat64(DefaultValueChangeAtol),
		ValueChangeRtol:    ptrFloat64(DefaultValueChangeRtol),
		MaxIterations:      ptrInt(DefaultMaxIterations),
		WallClockBudget:    ptrString(""),
		Verbose:            ptrBool(false),
	}
}

// LoadSolverConfig loads a SolverConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file fall back to their defaults.
func LoadSolverConfig(path string) (*SolverConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySolverConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical solver defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *SolverConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadSolverConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *SolverConfig) Validate() error {
	if c.SolverKind != nil && !contains(solverKinds, *c.SolverKind) {
		return fmt.Errorf("solver_kind must be one of %v, got %q", solverKinds, *c.SolverKind)
	}
	if c.Accuracy != nil && !contains(accuracies, *c.Accuracy) {
		return fmt.Errorf("accuracy must be one of %v, got %q", accuracies, *c.Accuracy)
	}
	if c.ValuePostprocessor != nil && !contains(postprocessors, *c.ValuePostprocessor) {
		return fmt.Errorf("value_postprocessor must be one of %v, got %q", postprocessors, *c.ValuePostprocessor)
	}
	if c.NeighborDistance != nil && *c.NeighborDistance < 0 {
		return fmt.Errorf("neighbor_distance must be non-negative, got %f", *c.NeighborDistance)
	}
	if c.BoundaryDistance != nil && *c.BoundaryDistance < 0 {
		return fmt.Errorf("boundary_distance must be non-negative, got %f", *c.BoundaryDistance)
	}
	if c.TimeStep != nil && *c.TimeStep == 0 {
		return fmt.Errorf("time_step must be non-zero")
	}
	if c.ValueChangeAtol != nil && *c.ValueChangeAtol < 0 {
		return fmt.Errorf("value_change_atol must be non-negative, got %f", *c.ValueChangeAtol)
	}
	if c.ValueChangeRtol != nil && *c.ValueChangeRtol < 0 {
		return fmt.Errorf("value_change_rtol must be non-negative, got %f", *c.ValueChangeRtol)
	}
	if c.MaxIterations != nil && *c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", *c.MaxIterations)
	}
	if c.WallClockBudget != nil && *c.WallClockBudget != "" {
		d, err := time.ParseDuration(*c.WallClockBudget)
		if err != nil {
			return fmt.Errorf("invalid wall_clock_budget '%s': %w", *c.WallClockBudget, err)
		}
		if d < 0 {
			return fmt.Errorf("wall_clock_budget must be non-negative, got %s", d)
		}
	}
	return nil
}

// GetSystem returns the system name or the default.
func (c *SolverConfig) GetSystem() string {
	if c.System == nil || *c.System == "" {
		return DefaultSystem
	}
	return *c.System
}

// GetGridShape returns the grid shape string; empty means the problem default.
func (c *SolverConfig) GetGridShape() string {
	if c.GridShape == nil {
		return ""
	}
	return *c.GridShape
}

// GetSolverKind returns the solver kind or the default.
func (c *SolverConfig) GetSolverKind() string {
	if c.SolverKind == nil || *c.SolverKind == "" {
		return DefaultSolverKind
	}
	return *c.SolverKind
}

// GetNeighborDistance returns the neighbor_distance value or the default.
func (c *SolverConfig) GetNeighborDistance() float64 {
	if c.NeighborDistance == nil {
		return DefaultNeighborDistance
	}
	return *c.NeighborDistance
}

// GetBoundaryDistance returns the boundary_distance value or the default.
func (c *SolverConfig) GetBoundaryDistance() float64 {
	if c.BoundaryDistance == nil {
		return DefaultBoundaryDistance
	}
	return *c.BoundaryDistance
}

// GetTimeStep returns the time_step value or the default.
func (c *SolverConfig) GetTimeStep() float64 {
	if c.TimeStep == nil {
		return DefaultTimeStep
	}
	return *c.TimeStep
}

// GetAccuracy returns the accuracy or the default.
func (c *SolverConfig) GetAccuracy() string {
	if c.Accuracy == nil || *c.Accuracy == "" {
		return DefaultAccuracy
	}
	return *c.Accuracy
}

// GetValuePostprocessor returns the value_postprocessor or the default.
func (c *SolverConfig) GetValuePostprocessor() string {
	if c.ValuePostprocessor == nil || *c.ValuePostprocessor == "" {
		return DefaultValuePostprocessor
	}
	return *c.ValuePostprocessor
}

// GetValueChangeAtol returns the value_change_atol value or the default.
func (c *SolverConfig) GetValueChangeAtol() float64 {
	if c.ValueChangeAtol == nil {
		return DefaultValueChangeAtol
	}
	return *c.ValueChangeAtol
}

// GetValueChangeRtol returns the value_change_rtol value or the default.
func (c *SolverConfig) GetValueChangeRtol() float64 {
	if c.ValueChangeRtol == nil {
		return DefaultValueChangeRtol
	}
	return *c.ValueChangeRtol
}

// GetMaxIterations returns the max_iterations value or the default.
func (c *SolverConfig) GetMaxIterations() int {
	if c.MaxIterations == nil {
		return DefaultMaxIterations
	}
	return *c.MaxIterations
}

// GetWallClockBudget parses and returns the budget; zero means no budget.
func (c *SolverConfig) GetWallClockBudget() time.Duration {
	if c.WallClockBudget == nil || *c.WallClockBudget == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.WallClockBudget)
	if err != nil {
		return 0 // default on parse error
	}
	return d
}

// GetVerbose returns the verbose value or the default.
func (c *SolverConfig) GetVerbose() bool {
	if c.Verbose == nil {
		return false
	}
	return *c.Verbose
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}
