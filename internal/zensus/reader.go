package zensus

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// CSVFile reads a semicolon-delimited census export, decoding the named
// charset into UTF-8. The header row is consumed on open.
type CSVFile struct {
	f      *os.File
	reader *csv.Reader
	Header []string
}

// OpenCSV opens a census CSV. charset is an IANA name ("utf-8", "latin1",
// "windows-1252"); the 2022 exports are UTF-8, some older vintages are not.
func OpenCSV(path, charset string) (*CSVFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "zensus: open %s", path)
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		f.Close()
		return nil, eris.Wrapf(err, "zensus: unsupported charset %q", charset)
	}

	reader := csv.NewReader(enc.NewDecoder().Reader(f))
	reader.Comma = ';'
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		f.Close()
		return nil, eris.Wrapf(err, "zensus: read header of %s", path)
	}

	return &CSVFile{f: f, reader: reader, Header: header}, nil
}

// Read returns the next record. io.EOF signals the end of the file.
// A *csv.ParseError marks one malformed line; the reader stays usable and
// callers skip the line, mirroring how malformed source rows are tolerated.
func (c *CSVFile) Read() ([]string, error) {
	record, err := c.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Close releases the underlying file.
func (c *CSVFile) Close() error {
	return c.f.Close()
}

// ColumnIndex maps header names to field positions.
func (c *CSVFile) ColumnIndex() map[string]int {
	idx := make(map[string]int, len(c.Header))
	for i, name := range c.Header {
		idx[name] = i
	}
	return idx
}
