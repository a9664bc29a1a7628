package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/san-kum/azisim/internal/observers"
)

const maxSheetName = 31

// ExportCSV writes the datasets of group as columns. Shorter datasets leave
// their trailing cells empty.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer, group string) error {
	a, err := s.Load(ctx, group)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := make([]string, len(a.Datasets))
	for i, d := range a.Datasets {
		header[i] = d.Name
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(a.Datasets))
	for r := range rows(a.Datasets) {
		for i, d := range a.Datasets {
			row[i] = ""
			if r < len(d.Values) {
				row[i] = strconv.FormatFloat(d.Values[r], 'g', -1, 64)
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportWorkbook writes one sheet per group: the datasets as columns, then
// the attributes and failures to their right.
func (s *Store) ExportWorkbook(ctx context.Context, path string, groups ...string) error {
	if len(groups) == 0 {
		return fmt.Errorf("no groups to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	used := map[string]bool{}
	for i, group := range groups {
		a, err := s.Load(ctx, group)
		if err != nil {
			return err
		}

		sheet := sheetName(group, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
		if err := writeSheet(f, sheet, a); err != nil {
			return fmt.Errorf("sheet %s: %w", sheet, err)
		}
	}
	f.SetActiveSheet(0)
	return f.SaveAs(path)
}

func writeSheet(f *excelize.File, sheet string, a *Archive) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	side := len(a.Datasets) + 1
	meta := [][]any{
		{"group", a.Group.Name},
		{"run_id", a.Group.RunID},
		{"kind", a.Group.Kind},
		{"trials", a.Group.Trials},
		{"completed", a.Group.Completed},
	}
	for _, at := range a.Attrs {
		meta = append(meta, []any{at.Name, cellValue(at.Value)})
	}
	for _, fl := range a.Failures {
		meta = append(meta, []any{fmt.Sprintf("failure_%d", fl.Trial), fl.Kind + ": " + fl.Message})
	}

	total := max(rows(a.Datasets)+1, len(meta))
	for r := 0; r < total; r++ {
		row := make([]any, side+2)
		if r == 0 {
			for i, d := range a.Datasets {
				row[i] = d.Name
			}
		} else {
			for i, d := range a.Datasets {
				if r-1 < len(d.Values) {
					row[i] = cellValue(d.Values[r-1])
				}
			}
		}
		if r < len(meta) {
			row[side], row[side+1] = meta[r][0], meta[r][1]
		}
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func rows(datasets []observers.Field) int {
	n := 0
	for _, d := range datasets {
		n = max(n, len(d.Values))
	}
	return n
}

// Spreadsheets cannot hold NaN or Inf; they are written as text.
func cellValue(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return v
}

func sheetName(group string, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, group)
	if name == "" {
		name = "group"
	}
	base := []rune(name)
	if len(base) > maxSheetName {
		base = base[:maxSheetName]
	}
	name = string(base)
	for k := 2; used[strings.ToLower(name)]; k++ {
		suffix := fmt.Sprintf("~%d", k)
		name = string(base[:min(len(base), maxSheetName-len(suffix))]) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}
