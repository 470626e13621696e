package core

import (
	"testing"
	"time"
)

func fixedBuilder(now time.Time) *RecordBuilder {
	n := 0
	return &RecordBuilder{
		now: func() time.Time { return now },
		newID: func() string {
			n++
			return "batch-" + string(rune('0'+n))
		},
	}
}

func TestRevenue(t *testing.T) {
	tests := []struct {
		name string
		rt   RecordType
		row  Row
		want *float64
	}{
		{
			name: "pulp full",
			rt:   RecordPulp,
			row: Row{
				ColQuantityKg: NumberCell(10), ColUnitPricePerKg: NumberCell(5.5),
				ColLogisticsCost: NumberCell(2), ColDiscount: NumberCell(1),
			},
			want: ptr(52.0),
		},
		{
			name: "pulp missing logistics and discount count as zero",
			rt:   RecordPulp,
			row:  Row{ColQuantityKg: NumberCell(3), ColUnitPricePerKg: NumberCell(1.1)},
			want: ptr(3.3),
		},
		{
			name: "pulp missing price",
			rt:   RecordPulp,
			row:  Row{ColQuantityKg: NumberCell(10), ColLogisticsCost: NumberCell(2)},
			want: nil,
		},
		{
			name: "pulp text residue yields nil",
			rt:   RecordPulp,
			row: Row{
				ColQuantityKg: NumberCell(10), ColUnitPricePerKg: NumberCell(5.5),
				ColDiscount: TextCell("n/a"),
			},
			want: nil,
		},
		{
			name: "extract",
			rt:   RecordExtract,
			row:  Row{ColQuantityLiters: NumberCell(20), ColUnitPricePerLit: NumberCell(12.5)},
			want: ptr(250.0),
		},
		{
			name: "extract rounds to cents",
			rt:   RecordExtract,
			row:  Row{ColQuantityLiters: NumberCell(3), ColUnitPricePerLit: NumberCell(0.3333)},
			want: ptr(1.0),
		},
		{
			name: "extract missing quantity",
			rt:   RecordExtract,
			row:  Row{ColUnitPricePerLit: NumberCell(12.5)},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Revenue(tt.rt, tt.row)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("Revenue() = %v, want nil", *got)
			case tt.want != nil && got == nil:
				t.Errorf("Revenue() = nil, want %v", *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Errorf("Revenue() = %v, want %v", *got, *tt.want)
			}
		})
	}
}

func TestRecordBuilder_Build(t *testing.T) {
	now := time.Date(2024, 8, 2, 15, 4, 5, 0, time.FixedZone("BRT", -3*3600))
	b := fixedBuilder(now)

	table := &Table{
		Columns: []string{"data_pedido", "canal", ColQuantityKg, ColUnitPricePerKg},
		Rows: []Row{
			{
				"data_pedido":     TimeCell(time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)),
				"canal":           TextCell("Varejo"),
				ColQuantityKg:     NumberCell(10),
				ColUnitPricePerKg: NumberCell(5.5),
			},
			{
				"canal":       TextCell("Atacado"),
				ColQuantityKg: NumberCell(1),
			},
		},
	}

	records := b.Build(table, BuildParams{
		Period:     Period{Year: 2024, Month: 7},
		SourceFile: "julho.xlsx",
		RecordType: RecordPulp,
	})

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	for _, r := range records {
		if r.BatchID != "batch-1" {
			t.Errorf("BatchID = %q, want shared batch-1", r.BatchID)
		}
		if !r.IngestedAt.Equal(now) || r.IngestedAt.Location() != time.UTC {
			t.Errorf("IngestedAt = %v, want %v in UTC", r.IngestedAt, now)
		}
		if r.Period != "2024-07" || r.RecordType != RecordPulp || r.SourceFile != "julho.xlsx" {
			t.Errorf("metadata = %+v", r)
		}
		if r.TenantID != "" || r.SheetName != "" {
			t.Errorf("unexpected tenant/sheet: %q %q", r.TenantID, r.SheetName)
		}
	}

	first := records[0]
	if first.Fields["data_pedido"] != "2024-07-15T00:00:00Z" {
		t.Errorf("date field = %#v", first.Fields["data_pedido"])
	}
	if first.Fields["canal"] != "Varejo" || first.Fields[ColQuantityKg] != 10.0 {
		t.Errorf("fields = %#v", first.Fields)
	}
	if first.Revenue == nil || *first.Revenue != 55 {
		t.Errorf("Revenue = %v, want 55", first.Revenue)
	}

	second := records[1]
	if second.Fields["canal"] != "Atacado" {
		t.Errorf("row order not preserved")
	}
	if v, ok := second.Fields["data_pedido"]; !ok || v != nil {
		t.Errorf("empty cell = %#v (present %v), want nil", v, ok)
	}
	if second.Revenue != nil {
		t.Errorf("Revenue = %v, want nil", *second.Revenue)
	}
}

func TestRecordBuilder_EmptyTable(t *testing.T) {
	if got := NewRecordBuilder().Build(&Table{}, BuildParams{RecordType: RecordPulp}); got != nil {
		t.Errorf("Build(empty) = %v, want nil", got)
	}
}

func ptr(f float64) *float64 { return &f }
