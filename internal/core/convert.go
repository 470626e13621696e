package core

// convert.go turns raw spreadsheet text into typed cells.
//
// These functions handle the messy reality of user-provided sheets:
//   - Currency symbols (R$, $, €, £) and thousands separators
//   - pt-BR decimal commas ("5,50", "1.234,56")
//   - Accounting negatives ("(12,30)")
//   - Excel formula prefixes (="value") and stray quotes
//
// Parsing never fails loudly: a value that cannot be read as a number is
// reported with ok=false and the caller decides what "no value" means.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numericRegex validates that a string is a plain numeric literal after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// currencySymbols are stripped before numeric parsing. Longer symbols come first.
var currencySymbols = []string{"R$", "$", "€", "£"}

// ParseNumber converts user-formatted numeric text to float64.
// Returns ok=false for empty, malformed, or non-finite input.
func ParseNumber(s string) (float64, bool) {
	s = CleanCell(s)
	if s == "" {
		return 0, false
	}

	// Detect negative accounting format "(123.45)"
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.ReplaceAll(s, "\u00a0", "") // no-break space
	s = strings.ReplaceAll(s, " ", "")
	s = normalizeSeparators(s)

	if negative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// normalizeSeparators rewrites thousands and decimal separators to Go syntax.
//
// When both '.' and ',' appear, the last one is the decimal separator.
// A single ',' is a decimal comma; repeated ones are thousands separators.
// Repeated '.' are thousands separators ("1.234.567").
func normalizeSeparators(s string) string {
	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case commas == 1:
		return strings.Replace(s, ",", ".", 1)
	case commas > 1:
		return strings.ReplaceAll(s, ",", "")
	case dots > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// InferCell types a raw decoded value the way a spreadsheet reader would:
// blank text is empty, a plain numeric literal is a number, anything else is text.
// Locale-formatted numbers stay text here; the normalizer coerces them for
// declared numeric columns only.
func InferCell(raw string) Cell {
	s := CleanCell(raw)
	if s == "" {
		return Cell{}
	}
	if numericRegex.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return NumberCell(f)
		}
	}
	return TextCell(s)
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}
