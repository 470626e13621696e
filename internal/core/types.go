package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// RecordType identifies a product line. Each type has its own column contract
// and its own storage partition.
type RecordType string

const (
	RecordPulp    RecordType = "pulp"
	RecordExtract RecordType = "extract"
)

// RecordTypes lists every supported record type in a stable order.
var RecordTypes = []RecordType{RecordPulp, RecordExtract}

// recordTypeAliases maps accepted spellings (including the source locale) to a RecordType.
var recordTypeAliases = map[string]RecordType{
	"pulp":    RecordPulp,
	"polpa":   RecordPulp,
	"extract": RecordExtract,
	"extrato": RecordExtract,
}

// ParseRecordType converts user input to a RecordType.
// Matching is case-insensitive and accepts the Portuguese names used in the spreadsheets.
func ParseRecordType(s string) (RecordType, error) {
	rt, ok := recordTypeAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", &UnknownTypeError{Type: s}
	}
	return rt, nil
}

// Valid reports whether rt is one of the supported record types.
func (rt RecordType) Valid() bool {
	return rt == RecordPulp || rt == RecordExtract
}

const (
	MinPeriodYear = 2000
	MaxPeriodYear = 2100
)

// Period is the year-month partition key for stored records.
type Period struct {
	Year  int
	Month int
}

// NewPeriod validates and builds a Period.
func NewPeriod(year, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("month must be between 1 and 12, got %d", month)
	}
	if year < MinPeriodYear || year > MaxPeriodYear {
		return Period{}, fmt.Errorf("year must be between %d and %d, got %d", MinPeriodYear, MaxPeriodYear, year)
	}
	return Period{Year: year, Month: month}, nil
}

// String renders the period as YYYY-MM.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// CellKind is the type tag of a Cell.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellTime
)

// Cell is a single typed spreadsheet value. The zero value is an empty cell.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
	Time   time.Time
}

// TextCell returns a text cell, or an empty cell for blank input.
func TextCell(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{}
	}
	return Cell{Kind: CellText, Text: s}
}

// NumberCell returns a number cell. NaN and infinities become empty cells.
func NumberCell(f float64) Cell {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Cell{}
	}
	return Cell{Kind: CellNumber, Number: f}
}

// TimeCell returns a time cell.
func TimeCell(t time.Time) Cell {
	return Cell{Kind: CellTime, Time: t}
}

// IsEmpty reports whether the cell holds no value.
func (c Cell) IsEmpty() bool {
	return c.Kind == CellEmpty
}

// String stringifies the cell. Empty cells render as "".
func (c Cell) String() string {
	switch c.Kind {
	case CellText:
		return c.Text
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellTime:
		return c.Time.Format(time.RFC3339)
	default:
		return ""
	}
}

// Row maps a normalized column name to its cell.
type Row map[string]Cell

// Table is an ordered set of rows sharing normalized column names.
type Table struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table has no data rows.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// HasColumn reports whether the table contains the given normalized column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// FieldType represents the expected data type for a contract column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldNumeric
	FieldDate
)

// FieldSpec declares one required spreadsheet column.
type FieldSpec struct {
	Name string    // Normalized column header (lower-case)
	Type FieldType // Expected data type
}

// Record is the persistable unit produced from one normalized row.
type Record struct {
	BatchID    string         `json:"batch_id"`
	RecordType RecordType     `json:"record_type"`
	Period     string         `json:"period"`
	Fields     map[string]any `json:"fields"`
	Revenue    *float64       `json:"revenue,omitempty"`
	SourceFile string         `json:"source_file"`
	SheetName  string         `json:"sheet_name,omitempty"`
	IngestedAt time.Time      `json:"ingested_at"`
	TenantID   string         `json:"tenant_id,omitempty"`
}

// ReplaceKey identifies the set of records a new batch supersedes.
// An empty TenantID matches records of every tenant.
type ReplaceKey struct {
	Period     string
	RecordType RecordType
	TenantID   string
}

// String renders the key for logging and lock naming.
func (k ReplaceKey) String() string {
	if k.TenantID == "" {
		return k.Period + "/" + string(k.RecordType)
	}
	return k.Period + "/" + string(k.RecordType) + "/" + k.TenantID
}

// LogEntry is the append-only audit record written once per replaced batch.
type LogEntry struct {
	ID             string     `json:"id"`
	BatchID        string     `json:"batch_id"`
	Period         string     `json:"period"`
	RecordType     RecordType `json:"record_type"`
	TenantID       string     `json:"tenant_id,omitempty"`
	SourceFile     string     `json:"source_file"`
	SheetName      string     `json:"sheet_name,omitempty"`
	IngestedAt     time.Time  `json:"ingested_at"`
	RowsInserted   int        `json:"rows_inserted"`
	RowsSuperseded int64      `json:"rows_superseded"`
}

// IngestStage is the coordinator's position in the ingestion state machine.
type IngestStage string

const (
	StageReceived         IngestStage = "received"
	StageFileGatePassed   IngestStage = "file-gate-passed"
	StageDecoded          IngestStage = "decoded"
	StageColumnsValidated IngestStage = "columns-validated"
	StageNormalized       IngestStage = "normalized"
	StageSuperseded       IngestStage = "superseded-old-records"
	StageInserted         IngestStage = "inserted-new-records"
	StageLogged           IngestStage = "logged"
)

// SingleRequest holds the parameters of a single-sheet ingestion.
type SingleRequest struct {
	FileName   string
	Content    []byte
	RecordType string
	Month      int
	Year       int
	TenantID   string
}

// SingleResult summarizes a completed single-sheet ingestion.
type SingleResult struct {
	RecordType     RecordType `json:"record_type"`
	Period         string     `json:"period"`
	RowsInserted   int        `json:"rows_inserted"`
	RowsSuperseded int64      `json:"rows_superseded"`
	Errors         []string   `json:"errors"`
}

// MultiRequest holds the parameters of a multi-sheet ingestion.
type MultiRequest struct {
	FileName string
	Content  []byte
	Year     int
	TenantID string
}

// SheetSummary reports the outcome of one processed sheet.
type SheetSummary struct {
	Sheet          string     `json:"sheet"`
	RecordType     RecordType `json:"record_type"`
	Period         string     `json:"period"`
	RowsInserted   int        `json:"rows_inserted"`
	RowsSuperseded int64      `json:"rows_superseded"`
}

// MultiResult summarizes a multi-sheet ingestion.
type MultiResult struct {
	Year      int            `json:"year"`
	Sheets    []SheetSummary `json:"sheets"`
	TotalRows int            `json:"total_rows"`
	Errors    []string       `json:"errors"`
}
