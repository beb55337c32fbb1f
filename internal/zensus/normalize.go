// Package zensus loads German census grid exports into Postgres fact tables.
// It handles the locale conventions of the source CSVs: semicolon delimiters,
// comma decimal separators, and dash glyphs standing in for suppressed values.
package zensus

import (
	"strconv"
	"strings"
)

// ParseResult classifies the outcome of normalizing one raw field.
type ParseResult int

const (
	// ParseOK means the field carried a usable value.
	ParseOK ParseResult = iota
	// ParseMissing means the field held a missing-value sentinel (dash, empty).
	ParseMissing
	// ParseNotInteger means the field had decimal content and was rejected by
	// the integer path. It must not be truncated to an integer.
	ParseNotInteger
	// ParseInvalid means the field was malformed numeric text.
	ParseInvalid
)

func (r ParseResult) String() string {
	switch r {
	case ParseOK:
		return "ok"
	case ParseMissing:
		return "missing"
	case ParseNotInteger:
		return "not_integer"
	case ParseInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// missingSentinels are the exact strings the census exports use for
// suppressed or absent values. The dash is U+2013.
var missingSentinels = map[string]struct{}{
	"–":    {},
	"-":    {},
	"":     {},
	"nan":  {},
	"None": {},
	"NULL": {},
}

// IsMissing reports whether the trimmed raw field is a missing-value sentinel.
func IsMissing(raw string) bool {
	_, ok := missingSentinels[strings.TrimSpace(raw)]
	return ok
}

// Format describes the numeric locale of a source file.
type Format struct {
	DecimalSep   rune // fractional separator, e.g. ',' for German exports
	ThousandsSep rune // grouping separator to strip, 0 if the source uses none
}

// GermanFormat matches the Zensus CSV exports: comma decimals, no grouping.
var GermanFormat = Format{DecimalSep: ','}

// Decimal normalizes a raw field into a float64.
// "129,1" parses to 129.1, sentinels yield ParseMissing, and anything else
// that fails to parse yields ParseInvalid. Never panics.
func (f Format) Decimal(raw string) (float64, ParseResult) {
	s := strings.TrimSpace(raw)
	if _, ok := missingSentinels[s]; ok {
		return 0, ParseMissing
	}

	if f.ThousandsSep != 0 {
		s = strings.ReplaceAll(s, string(f.ThousandsSep), "")
	}
	if f.DecimalSep != 0 && f.DecimalSep != '.' {
		s = strings.ReplaceAll(s, string(f.DecimalSep), ".")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ParseInvalid
	}
	return v, ParseOK
}

// Integer normalizes a raw field into an int64.
// A field with digits after the decimal separator ("129,1") is rejected with
// ParseNotInteger rather than truncated; a bare trailing separator ("129,")
// is tolerated. Sentinels yield ParseMissing, malformed text ParseInvalid.
func (f Format) Integer(raw string) (int64, ParseResult) {
	s := strings.TrimSpace(raw)
	if _, ok := missingSentinels[s]; ok {
		return 0, ParseMissing
	}

	if f.ThousandsSep != 0 {
		s = strings.ReplaceAll(s, string(f.ThousandsSep), "")
	}
	if f.DecimalSep != 0 {
		if i := strings.IndexRune(s, f.DecimalSep); i >= 0 {
			if strings.TrimSpace(s[i+len(string(f.DecimalSep)):]) != "" {
				return 0, ParseNotInteger
			}
			s = s[:i]
		}
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ParseInvalid
	}
	return v, ParseOK
}

// NormalizeDecimal normalizes a raw field using the German format.
func NormalizeDecimal(raw string) (float64, ParseResult) {
	return GermanFormat.Decimal(raw)
}

// NormalizeInteger normalizes a raw field using the German format.
func NormalizeInteger(raw string) (int64, ParseResult) {
	return GermanFormat.Integer(raw)
}
