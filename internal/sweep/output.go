package sweep

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

var csvHeader = []string{
	"neighbor_distance", "time_step", "tolerance",
	"run_id", "iterations", "stop_reason", "final_active",
	"active_mean", "active_stddev", "expanded_mean",
	"step_seconds", "elapsed_seconds", "error",
}

// WriteCSV writes one row per combination, preceded by a header row.
func WriteCSV(w io.Writer, results []ComboResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range results {
		row := []string{
			formatFloat(r.NeighborDistance),
			formatFloat(r.TimeStep),
			formatFloat(r.Tolerance),
			r.RunID,
			strconv.Itoa(r.Iterations),
			r.StopReason,
			strconv.Itoa(r.FinalActive),
			fmt.Sprintf("%.4f", r.ActiveMean),
			fmt.Sprintf("%.4f", r.ActiveStddev),
			fmt.Sprintf("%.4f", r.ExpandedMean),
			fmt.Sprintf("%.6f", r.StepSeconds),
			fmt.Sprintf("%.6f", r.Elapsed.Seconds()),
			r.Err,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
