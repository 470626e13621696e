package core

// contract.go declares the column contract of each record type.
//
// Column names are the spreadsheet headers after normalization (trimmed,
// lower-case). Every column listed is required; numeric columns are coerced
// to float64 during normalization and date columns accept Excel serials.

// Contract is the required column set for one record type.
type Contract struct {
	Type   RecordType
	Fields []FieldSpec
}

// Columns returns the contract's column names in declaration order.
func (c Contract) Columns() []string {
	cols := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		cols[i] = f.Name
	}
	return cols
}

// ColumnsOfType returns the names of the columns declared with the given type.
func (c Contract) ColumnsOfType(ft FieldType) []string {
	var cols []string
	for _, f := range c.Fields {
		if f.Type == ft {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

// Has reports whether the normalized column name belongs to the contract.
func (c Contract) Has(name string) bool {
	_, ok := c.Field(name)
	return ok
}

// Field returns the spec of a contract column.
func (c Contract) Field(name string) (FieldSpec, bool) {
	name = normalizeColumnName(name)
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Column names referenced by revenue computation.
const (
	ColQuantityKg      = "quantidade_kg"
	ColUnitPricePerKg  = "preco_unitario_brl_kg"
	ColLogisticsCost   = "logistica_brl"
	ColDiscount        = "desconto_brl"
	ColQuantityLiters  = "quantidade_litros"
	ColUnitPricePerLit = "preco_unitario_brl_l"
)

var pulpContract = Contract{
	Type: RecordPulp,
	Fields: []FieldSpec{
		{Name: "data_pedido", Type: FieldDate},
		{Name: "canal", Type: FieldText},
		{Name: "regiao_destino", Type: FieldText},
		{Name: "cliente_segmento", Type: FieldText},
		{Name: ColQuantityKg, Type: FieldNumeric},
		{Name: ColUnitPricePerKg, Type: FieldNumeric},
		{Name: ColLogisticsCost, Type: FieldNumeric},
		{Name: ColDiscount, Type: FieldNumeric},
		{Name: "lote_id", Type: FieldText},
		{Name: "indice_qualidade_1a10", Type: FieldNumeric},
		{Name: "perda_processamento_pct", Type: FieldNumeric},
		{Name: "nps_0a10", Type: FieldNumeric},
	},
}

var extractContract = Contract{
	Type: RecordExtract,
	Fields: []FieldSpec{
		{Name: "data_pedido", Type: FieldDate},
		{Name: "canal", Type: FieldText},
		{Name: "regiao_destino", Type: FieldText},
		{Name: "cliente_segmento", Type: FieldText},
		{Name: ColQuantityLiters, Type: FieldNumeric},
		{Name: ColUnitPricePerLit, Type: FieldNumeric},
		{Name: "concentracao_ativa_pct", Type: FieldNumeric},
		{Name: "tipo_solvente", Type: FieldText},
		{Name: "indice_cor_1a10", Type: FieldNumeric},
		{Name: "indice_pureza_1a10", Type: FieldNumeric},
		{Name: "certificacao_exigida", Type: FieldText},
		{Name: "nps_0a10", Type: FieldNumeric},
	},
}
