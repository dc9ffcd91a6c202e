package params

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Set is one row of a parameter table. Field values are kept as the raw
// tokens from the file and parsed on demand.
type Set struct {
	header []string
	index  map[string]int
	values []string
}

// Header returns the field names shared by every set of the table.
func (s *Set) Header() []string {
	return s.header
}

// Values returns the raw tokens in header order.
func (s *Set) Values() []string {
	return s.values
}

func (s *Set) Has(field string) bool {
	_, ok := s.index[field]
	return ok
}

// Value returns the raw token of field.
func (s *Set) Value(field string) (string, error) {
	i, ok := s.index[field]
	if !ok {
		return "", &FieldError{Field: field, Reason: "missing"}
	}
	return s.values[i], nil
}

// Float parses field as a float64.
func (s *Set) Float(field string) (float64, error) {
	v, err := s.Value(field)
	if err != nil {
		return 0, err
	}
	f, err := parseFloat(v)
	if err != nil {
		return 0, &FieldError{Field: field, Value: v, Reason: "not a number"}
	}
	return f, nil
}

// parseFloat accepts out-of-range tokens such as "1e400" as ±Inf.
func parseFloat(tok string) (float64, error) {
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil && errors.Is(err, strconv.ErrRange) {
		return f, nil
	}
	return f, err
}

type Table struct {
	Path   string
	Header []string
	Sets   []*Set
}

// NewSet builds a set from a header and its matching values.
func NewSet(header, values []string) (*Set, error) {
	if len(values) != len(header) {
		return nil, fmt.Errorf("%d values for %d fields", len(values), len(header))
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicate field %q", name)
		}
		index[name] = i
	}
	return &Set{header: header, index: index, values: values}, nil
}

// Load reads a whitespace-delimited table: one header line of field names,
// then one line of values per parameter set. Blank lines are ignored.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening parameter table: %w", err)
	}
	defer f.Close()

	t := &Table{Path: path}
	var index map[string]int
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if t.Header == nil {
			index = make(map[string]int, len(fields))
			for i, name := range fields {
				if _, dup := index[name]; dup {
					return nil, &MalformedTableError{Path: path, Line: line, Reason: fmt.Sprintf("duplicate field %q in header", name)}
				}
				index[name] = i
			}
			t.Header = fields
			continue
		}
		if len(fields) != len(t.Header) {
			return nil, &MalformedTableError{
				Path:   path,
				Line:   line,
				Reason: fmt.Sprintf("%d values for %d header fields", len(fields), len(t.Header)),
			}
		}
		t.Sets = append(t.Sets, &Set{header: t.Header, index: index, values: fields})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading parameter table %s: %w", path, err)
	}
	if t.Header == nil {
		return nil, &MalformedTableError{Path: path, Line: line, Reason: "missing header line"}
	}
	return t, nil
}
