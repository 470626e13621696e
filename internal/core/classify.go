package core

import "strings"

// ClassifierVersion identifies the keyword tables below. Bump it whenever a
// table changes so stored classifications can be traced to the rules that made them.
const ClassifierVersion = 1

// typeKeyword binds a sheet-name substring to a record type.
type typeKeyword struct {
	keyword string
	rt      RecordType
}

// typeKeywords is checked in order; the first substring found wins.
var typeKeywords = []typeKeyword{
	{keyword: "polpa", rt: RecordPulp},
	{keyword: "extrato", rt: RecordExtract},
}

// monthToken binds a three-letter pt-BR month abbreviation to its number.
type monthToken struct {
	token string
	month int
}

// monthTokens is checked in order; the first substring found wins. Keep
// longer or more specific tokens ahead of any token they contain.
var monthTokens = []monthToken{
	{"jan", 1}, {"fev", 2}, {"mar", 3}, {"abr", 4}, {"mai", 5}, {"jun", 6},
	{"jul", 7}, {"ago", 8}, {"set", 9}, {"out", 10}, {"nov", 11}, {"dez", 12},
}

// Classification is the best-effort reading of a sheet name.
// A zero Type or Month means that part could not be determined.
type Classification struct {
	Type  RecordType
	Month int
}

// OK reports whether both the record type and the month were recognized.
func (c Classification) OK() bool {
	return c.Type != "" && c.Month != 0
}

// Classify infers the record type and month from a sheet's display name,
// e.g. "Polpa congelada - Jul" is pulp for July.
func Classify(sheetName string) Classification {
	name := strings.ToLower(strings.TrimSpace(sheetName))
	return Classification{
		Type:  classifyType(name),
		Month: classifyMonth(name),
	}
}

func classifyType(name string) RecordType {
	for _, k := range typeKeywords {
		if strings.Contains(name, k.keyword) {
			return k.rt
		}
	}
	return ""
}

func classifyMonth(name string) int {
	for _, m := range monthTokens {
		if strings.Contains(name, m.token) {
			return m.month
		}
	}
	return 0
}
