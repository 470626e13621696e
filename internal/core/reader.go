package core

// reader.go decodes uploaded bytes into typed tables.
//
// CSV input is read as UTF-8 (a leading BOM is skipped and invalid byte
// sequences are replaced). Workbooks are opened with excelize; cells are read
// as raw values so dates arrive as Excel serials and numbers keep full
// precision. The header is the first non-blank row; every header is trimmed
// and lower-cased.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SheetTable is one classified sheet of a multi-sheet workbook.
type SheetTable struct {
	Name       string
	Table      *Table
	RecordType RecordType
	Period     Period
}

// ReadSingle decodes a CSV file or the first sheet of a workbook.
// Decode failures and sheets without data rows are reported as violations.
func ReadSingle(content []byte, filename string) (*Table, []string) {
	var (
		records [][]string
		err     error
	)
	if isDelimitedText(filename) {
		records, err = parseCSV(content)
	} else {
		records, err = readFirstSheet(content)
	}
	if err != nil {
		return nil, []string{fmt.Sprintf("failed to read file: %v", err)}
	}

	table := buildTable(records)
	if table.Empty() {
		return nil, []string{"sheet has no data rows"}
	}
	return table, nil
}

// ReadAllSheets decodes every classifiable sheet of a workbook.
//
// CSV input yields no sheets. Sheets whose name carries no record type or no
// month, sheets that fail to decode, and sheets without data rows are skipped
// without failing the batch.
func ReadAllSheets(content []byte, filename string, year int) []SheetTable {
	if isDelimitedText(filename) {
		return nil
	}

	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil
	}
	defer f.Close()

	var result []SheetTable
	for _, name := range f.GetSheetList() {
		cls := Classify(name)
		if !cls.OK() {
			continue
		}
		period, err := NewPeriod(year, cls.Month)
		if err != nil {
			continue
		}

		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			continue
		}
		table := buildTable(rows)
		if table.Empty() {
			continue
		}

		result = append(result, SheetTable{
			Name:       name,
			Table:      table,
			RecordType: cls.Type,
			Period:     period,
		})
	}
	return result
}

// IsWorkbook reports whether content opens as an OOXML workbook.
func IsWorkbook(content []byte) bool {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

func readFirstSheet(content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
}

func parseCSV(data []byte) ([][]string, error) {
	data = sanitizeUTF8(bytes.TrimPrefix(data, utf8BOM))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

// buildTable turns decoded records into a Table. Rows shorter than the header
// are padded with empty cells; cells beyond the header are dropped.
func buildTable(records [][]string) *Table {
	headerIdx := findHeaderRow(records)
	if headerIdx < 0 {
		return &Table{}
	}

	columns := normalizeHeaders(records[headerIdx])
	table := &Table{Columns: columns}

	for _, rec := range records[headerIdx+1:] {
		row := make(Row, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				row[col] = InferCell(rec[i])
			} else {
				row[col] = Cell{}
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// findHeaderRow returns the index of the first record with a non-blank cell, or -1.
func findHeaderRow(records [][]string) int {
	for i, rec := range records {
		if !isEmptyRecord(rec) {
			return i
		}
	}
	return -1
}

// normalizeHeaders trims and lower-cases headers. Blank headers become
// "unnamed: N" and repeated names get ".1", ".2" suffixes.
func normalizeHeaders(header []string) []string {
	seen := make(map[string]int, len(header))
	columns := make([]string, len(header))
	for i, h := range header {
		name := normalizeColumnName(h)
		if name == "" {
			name = "unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		columns[i] = name
	}
	return columns
}

func isEmptyRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
