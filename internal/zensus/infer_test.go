package zensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferColumnType(t *testing.T) {
	tests := []struct {
		name    string
		samples []string
		want    ColumnType
	}{
		{"plain integers", []string{"1", "42", "900"}, TypeIntegral},
		{"decimal comma", []string{"129,1", "4,5"}, TypeFractional},
		{"one decimal among integers", []string{"1", "2", "9,6", "4"}, TypeFractional},
		{"integers with missing", []string{"–", "12", "–", "7"}, TypeIntegral},
		{"all missing", []string{"–", "–", "-", ""}, TypeFractional},
		{"no samples", nil, TypeFractional},
		{"trailing comma only", []string{"129,", "70,"}, TypeIntegral},
		{"decimal after missing", []string{"–", "0,3"}, TypeFractional},
		{"dot decimals count as integral content", []string{"1.5", "2.5"}, TypeIntegral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferColumnType(tt.samples))
		})
	}
}

func TestColumnTypeSQLType(t *testing.T) {
	assert.Equal(t, "INTEGER", TypeIntegral.SQLType())
	assert.Equal(t, "NUMERIC", TypeFractional.SQLType())
}

func TestColumnTypeString(t *testing.T) {
	assert.Equal(t, "integral", TypeIntegral.String())
	assert.Equal(t, "fractional", TypeFractional.String())
}

func TestColumnTypeParseValue(t *testing.T) {
	tests := []struct {
		name string
		typ  ColumnType
		raw  string
		want any
		res  ParseResult
	}{
		{"integral accepts count", TypeIntegral, "94", int64(94), ParseOK},
		{"integral rejects decimal", TypeIntegral, "129,1", nil, ParseNotInteger},
		{"integral missing", TypeIntegral, "–", nil, ParseMissing},
		{"integral malformed", TypeIntegral, "x", nil, ParseInvalid},
		{"fractional accepts decimal", TypeFractional, "9,64", float64(9.64), ParseOK},
		{"fractional accepts count", TypeFractional, "94", float64(94), ParseOK},
		{"fractional missing", TypeFractional, "", nil, ParseMissing},
		{"fractional malformed", TypeFractional, "x", nil, ParseInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, res := tt.typ.ParseValue(GermanFormat, tt.raw)
			assert.Equal(t, tt.res, res)
			assert.Equal(t, tt.want, got)
		})
	}
}

// The committed schema type and the runtime parser come from the same
// classification, so a column inferred integral must reject the decimal
// values it would also reject at the schema level.
func TestInferenceAndParserAgree(t *testing.T) {
	samples := []string{"12", "34", "–"}
	typ := InferColumnType(samples)
	assert.Equal(t, TypeIntegral, typ)

	v, res := typ.ParseValue(GermanFormat, "56,7")
	assert.Nil(t, v)
	assert.Equal(t, ParseNotInteger, res)

	samples = []string{"12,5", "34"}
	typ = InferColumnType(samples)
	assert.Equal(t, TypeFractional, typ)

	v, res = typ.ParseValue(GermanFormat, "56,7")
	assert.Equal(t, float64(56.7), v)
	assert.Equal(t, ParseOK, res)
}
