package core

import (
	"math"
	"reflect"
	"testing"
	"time"
)

func sampleRawTable() *Table {
	return &Table{
		Columns: []string{"extra", "quantidade_kg", "canal", "data_pedido"},
		Rows: []Row{
			{
				"extra":         TextCell("x"),
				"quantidade_kg": TextCell("1.234,5"),
				"canal":         TextCell("Varejo"),
				"data_pedido":   NumberCell(45488),
			},
			{
				"extra": TextCell("only outside the contract"),
			},
			{
				"quantidade_kg": TextCell("abc"),
				"canal":         TextCell("nan"),
			},
			{
				"quantidade_kg": NumberCell(10),
				"canal":         TextCell("Atacado"),
				"data_pedido":   TextCell("2024-07-15"),
			},
		},
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize(sampleRawTable(), RecordPulp)
	if err != nil {
		t.Fatal(err)
	}

	wantCols := []string{"quantidade_kg", "canal", "data_pedido"}
	if !reflect.DeepEqual(got.Columns, wantCols) {
		t.Errorf("Columns = %v, want %v", got.Columns, wantCols)
	}
	if got.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", got.Len())
	}

	first := got.Rows[0]
	if c := first["quantidade_kg"]; c.Kind != CellNumber || c.Number != 1234.5 {
		t.Errorf("quantidade_kg = %+v, want 1234.5", c)
	}
	if _, ok := first["extra"]; ok {
		t.Error("non-contract column survived projection")
	}
	wantDate := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	if c := first["data_pedido"]; c.Kind != CellTime || !c.Time.Equal(wantDate) {
		t.Errorf("data_pedido = %+v, want %v", c, wantDate)
	}

	garbage := got.Rows[1]
	if !garbage["quantidade_kg"].IsEmpty() || !garbage["canal"].IsEmpty() {
		t.Errorf("garbage row = %+v, want kept with empty cells", garbage)
	}

	third := got.Rows[2]
	if c := third["data_pedido"]; c.Kind != CellText || c.Text != "2024-07-15" {
		t.Errorf("text date = %+v, want unchanged text", c)
	}
}

func TestNormalize_UnparseableOnlyRowKept(t *testing.T) {
	table := &Table{
		Columns: []string{ColQuantityKg, "canal"},
		Rows: []Row{
			{ColQuantityKg: NumberCell(10), "canal": TextCell("Varejo")},
			{ColQuantityKg: TextCell("abc")},
			{ColQuantityKg: TextCell("  "), "canal": TextCell("N/A")},
		},
	}

	got, err := Normalize(table, RecordPulp)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (blank row dropped, unparseable row kept)", got.Len())
	}
	if c := got.Rows[1][ColQuantityKg]; !c.IsEmpty() {
		t.Errorf("unparseable quantity = %+v, want empty", c)
	}

	// The emptied row has no value left, so a second pass drops it.
	again, err := Normalize(got, RecordPulp)
	if err != nil {
		t.Fatal(err)
	}
	if again.Len() != 1 {
		t.Errorf("second pass Len() = %d, want 1", again.Len())
	}
}

func TestDropSentinel(t *testing.T) {
	tests := []struct {
		name string
		in   Cell
		want bool // emptied
	}{
		{name: "nan", in: TextCell("nan"), want: true},
		{name: "NaN", in: TextCell("NaN"), want: true},
		{name: "NA", in: TextCell("NA"), want: true},
		{name: "N/A", in: TextCell(" N/A "), want: true},
		{name: "excel #N/A", in: TextCell("#N/A"), want: true},
		{name: "null", in: TextCell("NULL"), want: true},
		{name: "None", in: TextCell("None"), want: true},
		{name: "<NA>", in: TextCell("<NA>"), want: true},
		{name: "non-finite number", in: Cell{Kind: CellNumber, Number: math.Inf(1)}, want: true},
		{name: "text", in: TextCell("Nacional"), want: false},
		{name: "zero", in: NumberCell(0), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dropSentinel(tt.in).IsEmpty(); got != tt.want {
				t.Errorf("dropSentinel(%+v) emptied = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_NumericColumnsHoldNoText(t *testing.T) {
	table := &Table{
		Columns: []string{ColQuantityKg, ColUnitPricePerKg, "lote_id"},
		Rows: []Row{
			{ColQuantityKg: TextCell("dez"), ColUnitPricePerKg: TextCell("R$ 5,50"), "lote_id": TextCell("L1")},
		},
	}

	got, err := Normalize(table, RecordPulp)
	if err != nil {
		t.Fatal(err)
	}
	numeric, _ := NumericColumns(RecordPulp)
	for _, row := range got.Rows {
		for _, col := range numeric {
			if c, ok := row[col]; ok && c.Kind != CellNumber && c.Kind != CellEmpty {
				t.Errorf("numeric column %s holds %+v", col, c)
			}
		}
	}
	if c := got.Rows[0][ColUnitPricePerKg]; c.Number != 5.5 {
		t.Errorf("price = %+v, want 5.5", c)
	}
	if !got.Rows[0][ColQuantityKg].IsEmpty() {
		t.Errorf("unparseable quantity = %+v, want empty", got.Rows[0][ColQuantityKg])
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, rt := range RecordTypes {
		t.Run(string(rt), func(t *testing.T) {
			raw := sampleRawTable()
			raw.Rows = append(raw.Rows[:2:2], raw.Rows[3])

			once, err := Normalize(raw, rt)
			if err != nil {
				t.Fatal(err)
			}
			twice, err := Normalize(once, rt)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(once, twice) {
				t.Errorf("Normalize is not idempotent:\n once  %+v\n twice %+v", once, twice)
			}
		})
	}
}

func TestNormalize_NoContractColumns(t *testing.T) {
	table := &Table{
		Columns: []string{"a", "b"},
		Rows:    []Row{{"a": TextCell("1"), "b": TextCell("2")}},
	}

	got, err := Normalize(table, RecordExtract)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Columns) != 0 || !got.Empty() {
		t.Errorf("Normalize() = %+v, want empty table", got)
	}
}

func TestNormalize_UnknownType(t *testing.T) {
	if _, err := Normalize(&Table{}, RecordType("juice")); err == nil {
		t.Error("expected error for unknown record type")
	}
}
