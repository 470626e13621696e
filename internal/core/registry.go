package core

import (
	"fmt"
	"strings"
)

// contracts holds exactly one contract per record type.
var contracts = map[RecordType]Contract{
	RecordPulp:    pulpContract,
	RecordExtract: extractContract,
}

// ContractFor returns the contract of a record type.
// Returns *UnknownTypeError for any type outside {pulp, extract}.
func ContractFor(rt RecordType) (Contract, error) {
	c, ok := contracts[rt]
	if !ok {
		return Contract{}, &UnknownTypeError{Type: string(rt)}
	}
	return c, nil
}

// ColumnsFor returns the required column names of a record type.
// The returned slice is a copy and may be modified by the caller.
func ColumnsFor(rt RecordType) ([]string, error) {
	c, err := ContractFor(rt)
	if err != nil {
		return nil, err
	}
	return c.Columns(), nil
}

// NumericColumns returns the columns coerced to numbers for a record type.
func NumericColumns(rt RecordType) ([]string, error) {
	c, err := ContractFor(rt)
	if err != nil {
		return nil, err
	}
	return c.ColumnsOfType(FieldNumeric), nil
}

// Contracts returns every registered contract in RecordTypes order.
func Contracts() []Contract {
	result := make([]Contract, 0, len(RecordTypes))
	for _, rt := range RecordTypes {
		result = append(result, contracts[rt])
	}
	return result
}

// ValidateColumns checks that every contract column is present in the table.
// Header comparison is case-insensitive and ignores surrounding whitespace.
// Returns one violation per missing column, in contract order.
func ValidateColumns(t *Table, rt RecordType) ([]string, error) {
	c, err := ContractFor(rt)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(t.Columns))
	for _, col := range t.Columns {
		present[normalizeColumnName(col)] = true
	}

	var missing []string
	for _, f := range c.Fields {
		if !present[f.Name] {
			missing = append(missing, fmt.Sprintf("missing required column (%s): %s", rt, f.Name))
		}
	}
	return missing, nil
}

// normalizeColumnName trims and lower-cases a header.
func normalizeColumnName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
