package scdata

import (
	"fmt"
)

// Column is a named column of a Frame. The concrete types are
// *FloatColumn, *IntColumn, *BoolColumn, *StringColumn, *CategoricalColumn
// and *AnyColumn.
type Column interface {
	Name() string
	Len() int
}

// FloatColumn holds floating point values. NaN marks missing values.
type FloatColumn struct {
	Key    string
	Values []float64
}

func (c *FloatColumn) Name() string { return c.Key }
func (c *FloatColumn) Len() int     { return len(c.Values) }

// IntColumn holds integer values.
type IntColumn struct {
	Key    string
	Values []int64
}

func (c *IntColumn) Name() string { return c.Key }
func (c *IntColumn) Len() int     { return len(c.Values) }

// BoolColumn holds boolean values.
type BoolColumn struct {
	Key    string
	Values []bool
}

func (c *BoolColumn) Name() string { return c.Key }
func (c *BoolColumn) Len() int     { return len(c.Values) }

// StringColumn holds free-form strings. Valid, when non-nil, marks which
// values are present; a nil Valid means every value is present.
type StringColumn struct {
	Key    string
	Values []string
	Valid  []bool
}

func (c *StringColumn) Name() string { return c.Key }
func (c *StringColumn) Len() int     { return len(c.Values) }

// IsValid reports whether row i holds a value.
func (c *StringColumn) IsValid(i int) bool {
	return c.Valid == nil || c.Valid[i]
}

// MissingCode is the code of a missing categorical value.
const MissingCode int32 = -1

// CategoricalColumn holds codes into an ordered level dictionary. Levels
// are strings, or numbers when NumericLevels is set instead.
type CategoricalColumn struct {
	Key           string
	Codes         []int32
	Levels        []string
	NumericLevels []float64
}

func (c *CategoricalColumn) Name() string { return c.Key }
func (c *CategoricalColumn) Len() int     { return len(c.Codes) }

// Numeric reports whether the levels are numbers.
func (c *CategoricalColumn) Numeric() bool {
	return c.NumericLevels != nil
}

// NumLevels returns the size of the level dictionary.
func (c *CategoricalColumn) NumLevels() int {
	if c.Numeric() {
		return len(c.NumericLevels)
	}
	return len(c.Levels)
}

// Label returns the level of row i as a string, and false when the row is
// missing.
func (c *CategoricalColumn) Label(i int) (string, bool) {
	code := c.Codes[i]
	if code < 0 || int(code) >= c.NumLevels() {
		return "", false
	}
	if c.Numeric() {
		return formatFloat(c.NumericLevels[code]), true
	}
	return c.Levels[code], true
}

// AnyColumn holds untyped values; nil entries are missing. It is what a
// host produces for object-typed columns whose kind is not known up front.
type AnyColumn struct {
	Key    string
	Values []any
}

func (c *AnyColumn) Name() string { return c.Key }
func (c *AnyColumn) Len() int     { return len(c.Values) }

// Frame is a table of named columns keyed by a string row index.
// Column order is significant.
type Frame struct {
	Index   []string
	Columns []Column
}

// NewFrame returns a frame with the given index and no columns.
func NewFrame(index []string) *Frame {
	return &Frame{Index: index}
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int { return len(f.Index) }

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name()
	}
	return names
}

// Column returns the named column, or nil.
func (f *Frame) Column(name string) Column {
	for _, c := range f.Columns {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// Set adds col, replacing any column with the same name in place.
func (f *Frame) Set(col Column) {
	for i, c := range f.Columns {
		if c.Name() == col.Name() {
			f.Columns[i] = col
			return
		}
	}
	f.Columns = append(f.Columns, col)
}

// Drop removes the named columns.
func (f *Frame) Drop(names ...string) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := f.Columns[:0]
	for _, c := range f.Columns {
		if !drop[c.Name()] {
			kept = append(kept, c)
		}
	}
	f.Columns = kept
}

// Select returns a frame sharing f's index with only the named columns,
// in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	out := &Frame{Index: f.Index}
	for _, n := range names {
		c := f.Column(n)
		if c == nil {
			return nil, fmt.Errorf("no column %q", n)
		}
		out.Columns = append(out.Columns, c)
	}
	return out, nil
}

// Validate checks that every column is as long as the index and that
// column names are unique.
func (f *Frame) Validate() error {
	seen := make(map[string]bool, len(f.Columns))
	for _, c := range f.Columns {
		if seen[c.Name()] {
			return fmt.Errorf("duplicate column %q", c.Name())
		}
		seen[c.Name()] = true
		if c.Len() != len(f.Index) {
			return fmt.Errorf("column %q has %d rows, index has %d", c.Name(), c.Len(), len(f.Index))
		}
	}
	return nil
}

// Float64s returns a numeric column as float64 values. It reports false
// for non-numeric columns.
func Float64s(c Column) ([]float64, bool) {
	switch v := c.(type) {
	case *FloatColumn:
		return v.Values, true
	case *IntColumn:
		out := make([]float64, len(v.Values))
		for i, x := range v.Values {
			out[i] = float64(x)
		}
		return out, true
	case *BoolColumn:
		out := make([]float64, len(v.Values))
		for i, x := range v.Values {
			if x {
				out[i] = 1
			}
		}
		return out, true
	}
	return nil, false
}
