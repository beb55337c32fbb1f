package zensus

import (
	"strings"
	"unicode"
)

// DefaultSampleSize is how many leading data rows are inspected to classify
// each column before the table schema is committed.
const DefaultSampleSize = 100

// ColumnType is the inferred storage class of a census data column.
// The zero value is Fractional: the safe default for columns whose samples
// carry no usable values.
type ColumnType int

const (
	// TypeFractional stores locale decimals (NUMERIC).
	TypeFractional ColumnType = iota
	// TypeIntegral stores whole counts (INTEGER).
	TypeIntegral
)

func (t ColumnType) String() string {
	if t == TypeIntegral {
		return "integral"
	}
	return "fractional"
}

// SQLType returns the Postgres column type for this classification.
// The same ColumnType value also selects the runtime parser (ParseValue),
// so the persisted schema and the parser cannot drift apart.
func (t ColumnType) SQLType() string {
	if t == TypeIntegral {
		return "INTEGER"
	}
	return "NUMERIC"
}

// ParseValue normalizes a raw field according to the column's type and
// returns a driver-ready value: int64, float64, or nil for no value.
func (t ColumnType) ParseValue(f Format, raw string) (any, ParseResult) {
	if t == TypeIntegral {
		v, res := f.Integer(raw)
		if res != ParseOK {
			return nil, res
		}
		return v, ParseOK
	}
	v, res := f.Decimal(raw)
	if res != ParseOK {
		return nil, res
	}
	return v, ParseOK
}

// InferColumn classifies a column from sample raw values. A column is
// fractional if any non-missing sample contains the decimal separator
// directly followed by a digit ("129,1"); otherwise it is integral.
// Classification is content-driven: column names are never consulted,
// because the source files name columns inconsistently across vintages.
// An all-missing sample classifies as fractional so that decimals arriving
// later are not silently dropped by the integer parser.
func (f Format) InferColumn(samples []string) ColumnType {
	seen := false
	for _, raw := range samples {
		s := strings.TrimSpace(raw)
		if _, missing := missingSentinels[s]; missing {
			continue
		}
		seen = true
		if hasDecimalContent(s, f.DecimalSep) {
			return TypeFractional
		}
	}
	if !seen {
		return TypeFractional
	}
	return TypeIntegral
}

// InferColumnType classifies a column using the German format.
func InferColumnType(samples []string) ColumnType {
	return GermanFormat.InferColumn(samples)
}

// hasDecimalContent reports whether s contains sep immediately followed by a
// digit. A bare trailing separator does not count as decimal content.
func hasDecimalContent(s string, sep rune) bool {
	if sep == 0 {
		return false
	}
	runes := []rune(s)
	for i := 0; i+1 < len(runes); i++ {
		if runes[i] == sep && unicode.IsDigit(runes[i+1]) {
			return true
		}
	}
	return false
}
