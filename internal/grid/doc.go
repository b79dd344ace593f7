// Package grid owns the state-space lattice used by the reachability solver.
//
// Responsibilities: N-dimensional rectangular grids with optional periodic
// dimensions, boolean masks and value tables shaped like the grid, and the
// distance transforms used to grow and narrow active sets.
// Key types: Grid, Shape, Mask, Table.
//
// All distances are measured in grid-index units (one unit per cell step),
// with periodic dimensions wrapping around.
package grid
