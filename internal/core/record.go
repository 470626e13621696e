package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BuildParams carries the metadata stamped onto every record of a batch.
type BuildParams struct {
	Period     Period
	SourceFile string
	SheetName  string
	RecordType RecordType
	TenantID   string
}

// RecordBuilder converts normalized rows into persistable records.
type RecordBuilder struct {
	now   func() time.Time
	newID func() string
}

// NewRecordBuilder returns a builder using the wall clock and random UUIDs.
func NewRecordBuilder() *RecordBuilder {
	return &RecordBuilder{
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// Build returns one record per row, in row order. All records share one
// batch id and one UTC ingestion timestamp.
func (b *RecordBuilder) Build(t *Table, p BuildParams) []Record {
	if t.Empty() {
		return nil
	}

	batchID := b.newID()
	ingestedAt := b.now().UTC()
	period := p.Period.String()

	records := make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		fields := make(map[string]any, len(t.Columns))
		for _, col := range t.Columns {
			fields[col] = cellScalar(row[col])
		}

		records = append(records, Record{
			BatchID:    batchID,
			RecordType: p.RecordType,
			Period:     period,
			Fields:     fields,
			Revenue:    Revenue(p.RecordType, row),
			SourceFile: p.SourceFile,
			SheetName:  p.SheetName,
			IngestedAt: ingestedAt,
			TenantID:   p.TenantID,
		})
	}
	return records
}

// cellScalar maps a cell to the plain value stored in Record.Fields.
func cellScalar(c Cell) any {
	switch c.Kind {
	case CellNumber:
		return c.Number
	case CellTime:
		return c.Time.Format(time.RFC3339)
	case CellText:
		return c.Text
	default:
		return nil
	}
}

// Revenue computes the derived revenue of a normalized row, rounded to cents.
//
//	pulp:    quantidade_kg * preco_unitario_brl_kg - logistica_brl - desconto_brl
//	extract: quantidade_litros * preco_unitario_brl_l
//
// Missing logistics or discount count as zero. A missing quantity or price, or
// any operand that is not a number, yields nil.
func Revenue(rt RecordType, row Row) *float64 {
	switch rt {
	case RecordPulp:
		qty, ok1 := requiredOperand(row, ColQuantityKg)
		price, ok2 := requiredOperand(row, ColUnitPricePerKg)
		logistics, ok3 := optionalOperand(row, ColLogisticsCost)
		discount, ok4 := optionalOperand(row, ColDiscount)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return nil
		}
		return roundCents(qty.Mul(price).Sub(logistics).Sub(discount))

	case RecordExtract:
		qty, ok1 := requiredOperand(row, ColQuantityLiters)
		price, ok2 := requiredOperand(row, ColUnitPricePerLit)
		if !ok1 || !ok2 {
			return nil
		}
		return roundCents(qty.Mul(price))
	}
	return nil
}

func requiredOperand(row Row, col string) (decimal.Decimal, bool) {
	c := row[col]
	if c.IsEmpty() {
		return decimal.Zero, false
	}
	return cellDecimal(c)
}

func optionalOperand(row Row, col string) (decimal.Decimal, bool) {
	c := row[col]
	if c.IsEmpty() {
		return decimal.Zero, true
	}
	return cellDecimal(c)
}

func cellDecimal(c Cell) (decimal.Decimal, bool) {
	switch c.Kind {
	case CellNumber:
		return decimal.NewFromFloat(c.Number), true
	case CellText:
		if f, ok := ParseNumber(c.Text); ok {
			return decimal.NewFromFloat(f), true
		}
	}
	return decimal.Zero, false
}

func roundCents(d decimal.Decimal) *float64 {
	v, _ := d.Round(2).Float64()
	return &v
}
