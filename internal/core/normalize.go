package core

import (
	"math"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Excel serial bounds accepted for date columns: 1900-01-01 through 9999-12-31.
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// Normalize restricts a table to the contract columns of rt and coerces their
// values. Columns keep the order they had in the input. Rows with no value
// before coercion are dropped. Declared numeric columns end up holding only
// number or empty cells; date columns holding Excel serials become time cells.
//
// Normalize is idempotent except for rows whose only values failed numeric
// coercion: they are kept once, all empty, and dropped by a second pass.
func Normalize(t *Table, rt RecordType) (*Table, error) {
	c, err := ContractFor(rt)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return &Table{}, nil
	}

	type projected struct {
		source string
		spec   FieldSpec
	}
	var cols []projected
	taken := make(map[string]bool)
	for _, col := range t.Columns {
		spec, ok := c.Field(col)
		if !ok || taken[spec.Name] {
			continue
		}
		taken[spec.Name] = true
		cols = append(cols, projected{source: col, spec: spec})
	}

	out := &Table{Columns: make([]string, len(cols))}
	for i, p := range cols {
		out.Columns[i] = p.spec.Name
	}
	if len(cols) == 0 {
		return out, nil
	}

	for _, row := range t.Rows {
		// Blankness is decided on the raw projected values, so a row holding
		// only unparseable numbers survives with those cells emptied.
		blank := true
		for _, p := range cols {
			if strings.TrimSpace(dropSentinel(row[p.source]).String()) != "" {
				blank = false
				break
			}
		}
		if blank {
			continue
		}

		nr := make(Row, len(cols))
		for _, p := range cols {
			nr[p.spec.Name] = coerceCell(row[p.source], p.spec.Type)
		}
		out.Rows = append(out.Rows, nr)
	}
	return out, nil
}

func coerceCell(cell Cell, ft FieldType) Cell {
	cell = dropSentinel(cell)

	switch ft {
	case FieldNumeric:
		switch cell.Kind {
		case CellNumber:
			return cell
		case CellText:
			if f, ok := ParseNumber(cell.Text); ok {
				return NumberCell(f)
			}
		}
		return Cell{}

	case FieldDate:
		if cell.Kind == CellNumber && cell.Number >= minExcelSerial && cell.Number <= maxExcelSerial {
			if tm, err := excelize.ExcelDateToTime(cell.Number, false); err == nil {
				return TimeCell(tm.UTC())
			}
		}
		return cell
	}

	return cell
}

// missingMarkers are the lower-cased texts spreadsheet exporters and
// dataframe tools write in place of a blank cell.
var missingMarkers = map[string]struct{}{
	"nan": {}, "-nan": {}, "na": {}, "n/a": {}, "<na>": {}, "#n/a": {}, "#n/a n/a": {},
	"#na": {}, "null": {}, "none": {}, "nat": {},
	"1.#ind": {}, "-1.#ind": {}, "1.#qnan": {}, "-1.#qnan": {},
}

// dropSentinel empties not-a-value cells: non-finite numbers and missing
// markers such as "NaN", "N/A", "#N/A", "null" or "None".
func dropSentinel(cell Cell) Cell {
	switch cell.Kind {
	case CellNumber:
		if math.IsNaN(cell.Number) || math.IsInf(cell.Number, 0) {
			return Cell{}
		}
	case CellText:
		s := strings.ToLower(strings.TrimSpace(cell.Text))
		if s == "" {
			return Cell{}
		}
		if _, ok := missingMarkers[s]; ok {
			return Cell{}
		}
	}
	return cell
}
