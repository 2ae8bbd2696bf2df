package consensusservice

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Bundle file names.
const (
	FileCommits     = "merged_commits.csv"
	FileReveals     = "merged_reveals.csv"
	FileLeaderboard = "class_leaderboard.csv"
	FileResults     = "class_results.txt"
	FileWorkbook    = "class_leaderboard.xlsx"
	FileChart       = "distribution.png"
)

// ResultsHeader opens the results text.
const ResultsHeader = "=== CLASS RESULTS (Latest-Attempt Consensus) ==="

// NoWinnersMessage replaces the winner block when nothing verified.
const NoWinnersMessage = "No valid verified reveals. Cannot compute winners."

var (
	commitColumns      = []string{"timestamp_utc", "uni_id", "commit"}
	revealColumns      = []string{"timestamp_utc", "uni_id", "number", "nonce", "preimage_hash", "verified"}
	leaderboardColumns = []string{"uni_id", "number", "verified", "reason", "distance", "commit", "nonce", "timestamp_utc"}
)

func boolCell(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func distanceCell(d *float64) string {
	if d == nil {
		return ""
	}
	return fmt.Sprintf("%.6f", *d)
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteCommitsCSV writes the chosen commitments.
func WriteCommitsCSV(w io.Writer, rows []CommitRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{r.Timestamp, r.Identity, r.Commit})
	}
	return writeCSV(w, commitColumns, out)
}

// WriteRevealsCSV writes the verified reveals.
func WriteRevealsCSV(w io.Writer, rows []RevealRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{r.Timestamp, r.Identity, r.Number, r.Nonce, r.PreimageHash, boolCell(r.Verified)})
	}
	return writeCSV(w, revealColumns, out)
}

// WriteLeaderboardCSV writes every resolved entry in leaderboard order.
func WriteLeaderboardCSV(w io.Writer, rows []LeaderboardRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.Identity, r.Number, boolCell(r.Verified), r.Reason,
			distanceCell(r.Distance), r.Commit, r.Nonce, r.Timestamp,
		})
	}
	return writeCSV(w, leaderboardColumns, out)
}

// FormatKFactor prints k the way the results file always has: the shortest
// decimal that round-trips.
func FormatKFactor(k float64) string {
	return strconv.FormatFloat(k, 'g', -1, 64)
}

// WriteResults writes the human-readable results block.
func WriteResults(w io.Writer, s Summary) error {
	var b bytes.Buffer
	fmt.Fprintln(&b, ResultsHeader)
	fmt.Fprintf(&b, "k_factor = %s\n", FormatKFactor(s.KFactor))
	if !s.HasWinners() {
		fmt.Fprintln(&b, NoWinnersMessage)
		_, err := w.Write(b.Bytes())
		return err
	}
	fmt.Fprintf(&b, "participants_counted = %d\n", s.Participants)
	fmt.Fprintf(&b, "average = %.6f\n", *s.Average)
	fmt.Fprintf(&b, "target = %.6f\n", *s.Target)
	fmt.Fprintf(&b, "min_distance = %.6f\n", *s.MinDistance)
	fmt.Fprintln(&b, "winners:")
	for _, win := range s.Winners {
		fmt.Fprintf(&b, "  - %s with %d (distance %.6f)\n", win.Identity, win.Number, win.Distance)
	}
	_, err := w.Write(b.Bytes())
	return err
}

// ResultsText renders WriteResults into a string.
func ResultsText(s Summary) string {
	var b bytes.Buffer
	_ = WriteResults(&b, s)
	return b.String()
}

// BundleOptions selects the optional outputs of WriteBundle.
type BundleOptions struct {
	Workbook bool
	Chart    bool
	// Range bounds the chart's x axis.
	RangeMin, RangeMax int
}

type bundleStep struct {
	name   string
	render func(io.Writer) error
}

// WriteBundle writes the export into dir and returns the paths written. The
// four text outputs are always produced.
func WriteBundle(dir string, exp Export, opts BundleOptions) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	write := func(name string, fn func(io.Writer) error) error {
		var buf bytes.Buffer
		if err := fn(&buf); err != nil {
			return fmt.Errorf("failed to render %s: %w", name, err)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	steps := []bundleStep{
		{FileCommits, func(w io.Writer) error { return WriteCommitsCSV(w, exp.Commits) }},
		{FileReveals, func(w io.Writer) error { return WriteRevealsCSV(w, exp.Reveals) }},
		{FileLeaderboard, func(w io.Writer) error { return WriteLeaderboardCSV(w, exp.Leaderboard) }},
		{FileResults, func(w io.Writer) error { return WriteResults(w, exp.Summary) }},
	}
	if opts.Workbook {
		steps = append(steps, bundleStep{FileWorkbook, func(w io.Writer) error { return WriteWorkbook(w, exp) }})
	}
	if opts.Chart {
		steps = append(steps, bundleStep{FileChart, func(w io.Writer) error {
			png, err := DistributionChart(exp, opts.RangeMin, opts.RangeMax, DefaultPalette)
			if err != nil {
				return err
			}
			_, err = w.Write(png)
			return err
		}})
	}

	for _, s := range steps {
		if err := write(s.name, s.render); err != nil {
			return written, err
		}
	}
	return written, nil
}
