package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/TrevorS/knngraph"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

var (
	repairInput    string
	repairOutput   string
	repairGeodesic string
	repairConfig   string
	repairK        int
	repairStrategy string
	repairMetric   string
	repairAlgo     string
	repairCycleLen int
	repairWorkers  int
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Build a neighbor graph and cut its shortcuts",
	Long: `Read points from a numeric CSV file (one point per row), build the
k-nearest-neighbor table and remove shortcut edges.

Examples:
  knngraph repair --input points.csv --k 10
  knngraph repair --input points.csv --strategy betweenness --output table.csv
  knngraph repair --input points.csv --config knngraph.yaml --geodesic geo.csv`,
	RunE: runRepair,
}

func init() {
	rootCmd.AddCommand(repairCmd)

	repairCmd.Flags().StringVarP(&repairInput, "input", "i", "", "CSV file of points (required)")
	repairCmd.Flags().StringVarP(&repairOutput, "output", "o", "", "Write the repaired neighbor table as CSV")
	repairCmd.Flags().StringVar(&repairGeodesic, "geodesic", "", "Write the geodesic distance matrix as CSV")
	repairCmd.Flags().StringVarP(&repairConfig, "config", "c", "", "YAML config file")
	repairCmd.Flags().IntVarP(&repairK, "k", "k", 0, "Neighbors per point (overrides config)")
	repairCmd.Flags().StringVarP(&repairStrategy, "strategy", "s", "", "cyclecut, betweenness or none (overrides config)")
	repairCmd.Flags().StringVarP(&repairMetric, "metric", "m", "", "Distance metric (overrides config)")
	repairCmd.Flags().StringVarP(&repairAlgo, "algorithm", "a", "", "auto, brute, kdtree or balltree (overrides config)")
	repairCmd.Flags().IntVar(&repairCycleLen, "cycle-len", 0, "Atomic cycle length treated as a shortcut (overrides config)")
	repairCmd.Flags().IntVarP(&repairWorkers, "workers", "w", 0, "Goroutines used to fill the table (overrides config)")
	_ = repairCmd.MarkFlagRequired("input")
}

// buildConfig merges the config file and command line flags.
func buildConfig(cmd *cobra.Command) (knngraph.Config, error) {
	cfg := knngraph.DefaultConfig()
	if repairConfig != "" {
		var err error
		if cfg, err = knngraph.LoadConfig(repairConfig); err != nil {
			return cfg, err
		}
	}
	if cmd.Flags().Changed("k") {
		cfg.K = repairK
	}
	if cmd.Flags().Changed("strategy") {
		cfg.Strategy = knngraph.Strategy(repairStrategy)
	}
	if cmd.Flags().Changed("metric") {
		cfg.Metric = repairMetric
	}
	if cmd.Flags().Changed("algorithm") {
		cfg.Algorithm = knngraph.Algorithm(repairAlgo)
	}
	if cmd.Flags().Changed("cycle-len") {
		cfg.CycleThreshold = repairCycleLen
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = repairWorkers
	}
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	cfg.Logger = knngraph.NewTextLogger(cmd.ErrOrStderr(), level)
	return cfg, cfg.Validate()
}

func runRepair(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	f, err := os.Open(repairInput)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	points, err := readPoints(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", repairInput, err)
	}

	res, err := knngraph.Repair(cmd.Context(), points, cfg)
	if err != nil && !errors.Is(err, knngraph.ErrDisconnectedGraph) {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "points:      %d\n", res.Table.Len())
	fmt.Fprintf(out, "k:           %d\n", res.Table.K())
	fmt.Fprintf(out, "algorithm:   %s\n", res.Algorithm)
	fmt.Fprintf(out, "strategy:    %s\n", cfg.Strategy)
	fmt.Fprintf(out, "cuts:        %d\n", res.Cuts)
	fmt.Fprintf(out, "connected:   %t -> %t\n", res.ConnectedBefore, res.ConnectedAfter)
	fmt.Fprintf(out, "components:  %d\n", res.Components)
	if err != nil {
		fmt.Fprintf(out, "warning:     %v\n", err)
	}

	if repairOutput != "" {
		if err := writeFile(repairOutput, func(w io.Writer) error { return writeTable(w, res.Table) }); err != nil {
			return err
		}
	}
	if repairGeodesic != "" {
		geo, err := knngraph.GeodesicDistances(res.Table)
		if err != nil {
			return fmt.Errorf("geodesic distances: %w", err)
		}
		if err := writeFile(repairGeodesic, func(w io.Writer) error { return writeGeodesic(w, geo) }); err != nil {
			return err
		}
	}
	return nil
}

// readPoints parses a CSV file of numbers. A first row that does not parse
// is treated as a header and skipped. Empty fields become NaN.
func readPoints(r io.Reader) ([][]float64, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	var points [][]float64
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row, err := parseRow(rec)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		points = append(points, row)
	}
	if len(points) == 0 {
		return nil, errors.New("no points")
	}
	return points, nil
}

func parseRow(rec []string) ([]float64, error) {
	row := make([]float64, len(rec))
	for i, s := range rec {
		s = strings.TrimSpace(s)
		if s == "" || s == "?" {
			row[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// writeTable writes one row per point: the neighbor indices (-1 for cut
// slots) followed by their distances.
func writeTable(w io.Writer, t *knngraph.NeighborTable) error {
	cw := csv.NewWriter(w)
	rec := make([]string, 2*t.K())
	for i := 0; i < t.Len(); i++ {
		row, dists := t.Row(i), t.Dists(i)
		for j := range row {
			rec[j] = strconv.Itoa(row[j])
			rec[t.K()+j] = strconv.FormatFloat(dists[j], 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeGeodesic writes the full symmetric distance matrix, one row per point.
func writeGeodesic(w io.Writer, geo mat.Symmetric) error {
	n := geo.SymmetricDim()
	cw := csv.NewWriter(w)
	rec := make([]string, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			rec[j] = strconv.FormatFloat(geo.At(i, j), 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
