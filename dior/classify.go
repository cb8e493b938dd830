package dior

import (
	"fmt"
	"math"
	"sort"

	"github.com/robert-malhotra/go-scdior/scdata"
)

// OriginType is the host-side kind of a table column, stored in the
// origin_dtype attribute of its dataset.
type OriginType string

const (
	OriginNumber   OriginType = "number"
	OriginBool     OriginType = "bool"
	OriginString   OriginType = "string"
	OriginCategory OriginType = "category"
)

// missingCode marks a missing categorical value in the container.
const missingCode = math.MinInt32

// Classify returns the origin type of col. Booleans are recognised before
// numbers, so a column of true/false never becomes 0/1. Untyped columns
// are bool when every present value is a bool, number when every present
// value is numeric, and string otherwise. It returns "" for column types
// it does not know.
func Classify(col scdata.Column) OriginType {
	switch c := col.(type) {
	case *scdata.BoolColumn:
		return OriginBool
	case *scdata.FloatColumn, *scdata.IntColumn:
		return OriginNumber
	case *scdata.CategoricalColumn:
		return OriginCategory
	case *scdata.StringColumn:
		return OriginString
	case *scdata.AnyColumn:
		return classifyAny(c.Values)
	}
	return ""
}

func classifyAny(values []any) OriginType {
	allBool, allNumber, present := true, true, 0
	for _, v := range values {
		if v == nil {
			continue
		}
		present++
		if _, ok := v.(bool); !ok {
			allBool = false
		}
		if _, ok := toFloat(v); !ok {
			allNumber = false
		}
	}
	switch {
	case present == 0:
		return OriginString
	case allBool:
		return OriginBool
	case allNumber:
		return OriginNumber
	}
	return OriginString
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}

// encodedColumn is a column ready to be written: its origin type, the
// dataset values and, for coded columns, the level dictionary.
type encodedColumn struct {
	name   string
	origin OriginType
	values any
	levels any // []string or []float64, nil for uncoded columns
}

func encodeColumn(col scdata.Column) (*encodedColumn, error) {
	origin := Classify(col)
	enc := &encodedColumn{name: col.Name(), origin: origin}

	switch c := col.(type) {
	case *scdata.FloatColumn:
		enc.values = c.Values
	case *scdata.IntColumn:
		enc.values = c.Values
	case *scdata.BoolColumn:
		enc.values = boolsToInt8(c.Values)
	case *scdata.CategoricalColumn:
		codes, err := categoryCodes(c)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Key, err)
		}
		enc.values = codes
		if c.Numeric() {
			enc.levels = c.NumericLevels
		} else {
			enc.levels = nonNil(c.Levels)
		}
	case *scdata.StringColumn:
		enc.values, enc.levels = stableCategorical(c.Values, c.Valid)
	case *scdata.AnyColumn:
		encodeAny(enc, c.Values)
	default:
		return nil, fmt.Errorf("column %q: %w: %T", col.Name(), ErrUnknownColumnType, col)
	}
	return enc, nil
}

func encodeAny(enc *encodedColumn, values []any) {
	switch enc.origin {
	case OriginBool:
		out := make([]int8, len(values))
		for i, v := range values {
			if b, _ := v.(bool); b {
				out[i] = 1
			}
		}
		enc.values = out
	case OriginNumber:
		out := make([]float64, len(values))
		for i, v := range values {
			if f, ok := toFloat(v); ok {
				out[i] = f
			} else {
				out[i] = math.NaN()
			}
		}
		enc.values = out
	default:
		strs := make([]string, len(values))
		valid := make([]bool, len(values))
		for i, v := range values {
			if v != nil {
				strs[i] = fmt.Sprint(v)
				valid[i] = true
			}
		}
		enc.values, enc.levels = stableCategorical(strs, valid)
	}
}

func boolsToInt8(values []bool) []int8 {
	out := make([]int8, len(values))
	for i, b := range values {
		if b {
			out[i] = 1
		}
	}
	return out
}

func categoryCodes(c *scdata.CategoricalColumn) ([]int32, error) {
	n := c.NumLevels()
	codes := make([]int32, len(c.Codes))
	for i, code := range c.Codes {
		switch {
		case code < 0:
			codes[i] = missingCode
		case int(code) >= n:
			return nil, fmt.Errorf("code %d at row %d exceeds %d levels", code, i, n)
		default:
			codes[i] = code
		}
	}
	return codes, nil
}

// stableCategorical codes free-form strings against their sorted distinct
// values, so equal strings always share a code.
func stableCategorical(values []string, valid []bool) ([]int32, []string) {
	seen := make(map[string]struct{})
	for i, v := range values {
		if valid == nil || valid[i] {
			seen[v] = struct{}{}
		}
	}
	levels := make([]string, 0, len(seen))
	for v := range seen {
		levels = append(levels, v)
	}
	sort.Strings(levels)

	index := make(map[string]int32, len(levels))
	for i, v := range levels {
		index[v] = int32(i)
	}
	codes := make([]int32, len(values))
	for i, v := range values {
		if valid != nil && !valid[i] {
			codes[i] = missingCode
			continue
		}
		codes[i] = index[v]
	}
	return codes, levels
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
