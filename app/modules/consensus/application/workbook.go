package consensusservice

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// Workbook sheet names.
const (
	SheetLeaderboard = "Leaderboard"
	SheetCommits     = "Commits"
	SheetReveals     = "Reveals"
	SheetResults     = "Results"
)

// BuildWorkbook lays the export out as a spreadsheet. The caller closes the
// returned file.
func BuildWorkbook(exp Export) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), SheetLeaderboard); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetCommits, SheetReveals, SheetResults} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to add sheet %q: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	leaderboard := make([][]any, 0, len(exp.Leaderboard))
	for _, r := range exp.Leaderboard {
		var number, distance any
		if n, err := strconv.Atoi(r.Number); err == nil {
			number = n
		}
		if r.Distance != nil {
			distance = *r.Distance
		}
		leaderboard = append(leaderboard, []any{
			r.Identity, number, r.Verified, r.Reason, distance, r.Commit, r.Nonce, r.Timestamp,
		})
	}

	commits := make([][]any, 0, len(exp.Commits))
	for _, r := range exp.Commits {
		commits = append(commits, []any{r.Timestamp, r.Identity, r.Commit})
	}

	reveals := make([][]any, 0, len(exp.Reveals))
	for _, r := range exp.Reveals {
		var number any = r.Number
		if n, err := strconv.Atoi(r.Number); err == nil {
			number = n
		}
		reveals = append(reveals, []any{r.Timestamp, r.Identity, number, r.Nonce, r.PreimageHash, r.Verified})
	}

	sheets := []struct {
		name   string
		header []string
		rows   [][]any
	}{
		{SheetLeaderboard, leaderboardColumns, leaderboard},
		{SheetCommits, commitColumns, commits},
		{SheetReveals, revealColumns, reveals},
		{SheetResults, []string{"field", "value"}, resultsRows(exp.Summary)},
	}
	for _, s := range sheets {
		if err := writeSheet(f, s.name, s.header, s.rows, bold); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// WriteWorkbook renders the export as XLSX into w.
func WriteWorkbook(w io.Writer, exp Export) error {
	f, err := BuildWorkbook(exp)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any, headerStyle int) error {
	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &cells); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}

	for idx, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, idx+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, axis, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, idx+1, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", lastCol, 22)
}

func resultsRows(s Summary) [][]any {
	rows := [][]any{{"k_factor", s.KFactor}}
	if !s.HasWinners() {
		return append(rows, []any{"result", NoWinnersMessage})
	}
	rows = append(rows,
		[]any{"participants_counted", s.Participants},
		[]any{"average", *s.Average},
		[]any{"target", *s.Target},
		[]any{"min_distance", *s.MinDistance},
	)
	for _, w := range s.Winners {
		rows = append(rows, []any{"winner", fmt.Sprintf("%s with %d (distance %.6f)", w.Identity, w.Number, w.Distance)})
	}
	return rows
}
