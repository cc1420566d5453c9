// Package sheet extracts the weekly timetable grid from an xlsx workbook.
package sheet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"coursecal/internal/config"
	appLog "coursecal/internal/log"
)

// Days is the number of weekday columns, Monday first.
const Days = 7

var ErrNoSheet = errors.New("sheet: workbook has no sheets")

// Row is one period row of the timetable.
type Row struct {
	// Number is the 1-based spreadsheet row.
	Number int
	// Header is the row header text, e.g. "第3-4节".
	Header string
	Cells  [Days]string
}

// Grid is the timetable in row order.
type Grid struct {
	Sheet string
	Rows  []Row
}

// Open reads the grid from the workbook at path.
func Open(path string, cfg config.SheetConfig) (*Grid, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("sheet: open %s: %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			appLog.Warn("sheet close failed", "path", path, "err", err)
		}
	}()
	return Read(f, cfg)
}

// Read extracts rows FirstRow..LastRow: the header column plus the seven
// day columns starting at FirstDayColumn.
func Read(f *excelize.File, cfg config.SheetConfig) (*Grid, error) {
	name := cfg.Name
	if name == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrNoSheet
		}
		name = sheets[0]
	}
	if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet: no sheet named %q", name)
	}

	headerCol, err := excelize.ColumnNameToNumber(cfg.HeaderColumn)
	if err != nil {
		return nil, fmt.Errorf("sheet: header column: %w", err)
	}
	firstDay, err := excelize.ColumnNameToNumber(cfg.FirstDayColumn)
	if err != nil {
		return nil, fmt.Errorf("sheet: first day column: %w", err)
	}
	if cfg.FirstRow < 1 || cfg.LastRow < cfg.FirstRow {
		return nil, fmt.Errorf("sheet: invalid row range %d-%d", cfg.FirstRow, cfg.LastRow)
	}

	merged, err := mergedAreas(f, name)
	if err != nil {
		return nil, err
	}

	grid := &Grid{Sheet: name}
	for r := cfg.FirstRow; r <= cfg.LastRow; r++ {
		row := Row{Number: r}
		if row.Header, err = merged.value(f, name, headerCol, r); err != nil {
			return nil, err
		}
		for d := 0; d < Days; d++ {
			if row.Cells[d], err = merged.value(f, name, firstDay+d, r); err != nil {
				return nil, err
			}
		}
		grid.Rows = append(grid.Rows, row)
	}

	appLog.Debug("sheet read", "sheet", name, "rows", len(grid.Rows))
	return grid, nil
}

// area is a merged range in 1-based cell coordinates.
type area struct {
	left, top, right, bottom int
}

type areas []area

// mergedAreas lists the merged ranges of sheet.
func mergedAreas(f *excelize.File, sheet string) (areas, error) {
	cells, err := f.GetMergeCells(sheet)
	if err != nil {
		return nil, fmt.Errorf("sheet: merged cells of %s: %w", sheet, err)
	}
	out := make(areas, 0, len(cells))
	for _, mc := range cells {
		left, top, err := excelize.CellNameToCoordinates(mc.GetStartAxis())
		if err != nil {
			return nil, fmt.Errorf("sheet: merged range start: %w", err)
		}
		right, bottom, err := excelize.CellNameToCoordinates(mc.GetEndAxis())
		if err != nil {
			return nil, fmt.Errorf("sheet: merged range end: %w", err)
		}
		out = append(out, area{left: left, top: top, right: right, bottom: bottom})
	}
	return out, nil
}

// covered reports whether (col,row) lies inside a merged range without
// being its top-left cell.
func (as areas) covered(col, row int) bool {
	for _, a := range as {
		if col < a.left || col > a.right || row < a.top || row > a.bottom {
			continue
		}
		return col != a.left || row != a.top
	}
	return false
}

// value reads one cell. Cells hidden by a merge read as empty so a merged
// entry appears only once, at its top-left cell.
func (as areas) value(f *excelize.File, sheet string, col, row int) (string, error) {
	if as.covered(col, row) {
		return "", nil
	}
	return cellValue(f, sheet, col, row)
}

func cellValue(f *excelize.File, sheet string, col, row int) (string, error) {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", fmt.Errorf("sheet: %w", err)
	}
	v, err := f.GetCellValue(sheet, ref)
	if err != nil {
		return "", fmt.Errorf("sheet: %s!%s: %w", sheet, ref, err)
	}
	return strings.TrimSpace(v), nil
}
