// Package localsolver implements the local active-set Hamilton-Jacobi
// reachability solver.
//
// # Algorithm
//
// Instead of propagating the value function over the whole grid, the solver
// tracks an active set of cells whose values may still change. Each iteration
// runs five stages in a fixed order:
//
//  1. Pre-filter: narrow the previous active set (NoFilter, or keep only cells
//     near the zero level set with FilterWhereFarFromZeroLevelset).
//  2. Expand: grow the filtered set by a distance margin so every cell a short
//     propagation step can influence is updated (SignedDistanceNeighbors).
//  3. Step: propagate the value function by one time step over the expanded set
//     (ClassicStepper overwrites, DecreaseOnlyStepper only lowers values,
//     NoOpStepper discards the update for benchmarking).
//  4. Post-filter: drop cells whose value did not change beyond a tolerance
//     (RemoveWhereUnchanged). The survivors are the next active set.
//  5. Record the iteration and ask the BreakCriteriaChecker whether to stop.
//
// The loop stops only through the break criteria; MaxIterations bounds every
// solve. All masks and tables share the grid shape, and each iteration is
// appended to the Result, which keeps the full convergence trace.
//
// # Errors
//
// Configuration problems are reported by NewSolver and at Solve entry, before
// any iteration runs, and wrap ErrInvalidConfig or grid.ErrShapeMismatch. A
// stage failure aborts the solve with a *StageError naming the stage and the
// iteration; numerical divergence in the stepper wraps hjr.ErrNonFinite.
package localsolver
