package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Loader reads one tabular file format into a RowSet.
type Loader interface {
	CanLoad(filename string) bool
	Load(path string, opt Options) (*RowSet, error)
}

var registry []Loader

// Register adds a loader implementation to the registry.
func Register(l Loader) {
	registry = append(registry, l)
}

// Load selects a loader based on the file name and reads the dataset.
func Load(path string, opt Options) (*RowSet, error) {
	for _, l := range registry {
		if l.CanLoad(path) {
			rs, err := l.Load(path, opt)
			if err != nil {
				return nil, err
			}
			rs.Name = filepath.Base(path)
			return rs, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
}

func init() {
	Register(csvLoader{})
	Register(xlsxLoader{})
}

type csvLoader struct{}

func (csvLoader) CanLoad(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv")
}

func (csvLoader) Load(path string, opt Options) (*RowSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(path)
	}
	return ReadCSV(f, delim, opt)
}

// ReadCSV reads a header line followed by data rows.
func ReadCSV(r io.Reader, delim rune, opt Options) (*RowSet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if delim != 0 {
		cr.Comma = delim
	}
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return New(nil, nil)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = append([]string(nil), header...)
	var records [][]string
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(records)+1, err)
		}
		if isBlank(rec) {
			continue
		}
		if opt.MaxRows > 0 && len(records) >= opt.MaxRows {
			break
		}
		records = append(records, rec)
	}
	return FromStrings(header, records, opt)
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
