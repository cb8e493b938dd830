package dior

import (
	"fmt"
	"strconv"

	"github.com/robert-malhotra/go-scdior/hdf5"
	"github.com/robert-malhotra/go-scdior/internal/message"
	"github.com/robert-malhotra/go-scdior/scdata"
)

const (
	tableIndex    = "index"
	tableColnames = "colnames"
	tableCategory = "category"

	attrOrigin = "origin_dtype"
)

// WriteTable encodes f into g: the row index, the column order, one
// dataset per column tagged with its origin type, and a category subgroup
// holding the level dictionaries of coded columns. A frame without columns
// is written as its index alone.
func WriteTable(g *hdf5.Group, f *scdata.Frame, opts ...hdf5.DatasetOption) error {
	if f == nil {
		return fmt.Errorf("%s: nil table", g.Path())
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("%s: %w", g.Path(), err)
	}

	encoded := make([]*encodedColumn, 0, len(f.Columns))
	for _, col := range f.Columns {
		switch col.Name() {
		case tableIndex, tableColnames, tableCategory, "":
			return fmt.Errorf("%s: reserved column name %q", g.Path(), col.Name())
		}
		enc, err := encodeColumn(col)
		if err != nil {
			return fmt.Errorf("%s: %w", g.Path(), err)
		}
		encoded = append(encoded, enc)
	}

	if _, err := g.CreateDataset(tableIndex, nonNil(f.Index)); err != nil {
		return err
	}
	if len(encoded) == 0 {
		return nil
	}
	if _, err := g.CreateDataset(tableColnames, f.Names()); err != nil {
		return err
	}

	var category *hdf5.Group
	for _, enc := range encoded {
		dsOpts := append([]hdf5.DatasetOption{hdf5.WithAttribute(attrOrigin, string(enc.origin))},
			bulkOptions(f.NumRows(), opts)...)
		if _, err := g.CreateDataset(enc.name, enc.values, dsOpts...); err != nil {
			return err
		}
		if enc.levels == nil {
			continue
		}
		if category == nil {
			var err error
			if category, err = g.CreateGroup(tableCategory); err != nil {
				return err
			}
		}
		if _, err := category.CreateDataset(enc.name, enc.levels); err != nil {
			return err
		}
	}
	return nil
}

// ReadTable decodes the table group g. Members without an origin_dtype
// attribute are not columns and are skipped. When a colnames dataset is
// present it fixes the order and set of the returned columns.
func ReadTable(g *hdf5.Group) (*scdata.Frame, error) {
	index, err := readIndex(g)
	if err != nil {
		return nil, err
	}
	frame := scdata.NewFrame(index)

	members, err := g.Members()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.Path(), err)
	}
	for _, name := range members {
		if name == tableIndex || name == tableColnames {
			continue
		}
		kind, err := g.Kind(name)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", g.Path(), name, err)
		}
		if kind != hdf5.KindDataset {
			continue
		}
		ds, err := g.OpenDataset(name)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", g.Path(), name, err)
		}
		if !ds.HasAttr(attrOrigin) {
			continue
		}
		col, err := decodeColumn(g, ds)
		if err != nil {
			return nil, err
		}
		if col.Len() != len(index) {
			return nil, fmt.Errorf("%s: %d rows, index has %d", ds.Path(), col.Len(), len(index))
		}
		frame.Columns = append(frame.Columns, col)
	}

	if !g.Has(tableColnames) {
		return frame, nil
	}
	ds, err := g.OpenDataset(tableColnames)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", g.Path(), tableColnames, err)
	}
	names, err := ds.ReadString()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ds.Path(), err)
	}
	ordered, err := frame.Select(names...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.Path(), err)
	}
	return ordered, nil
}

func readIndex(g *hdf5.Group) ([]string, error) {
	ds, err := g.OpenDataset(tableIndex)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", g.Path(), tableIndex, err)
	}
	labels, err := readLabels(ds)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ds.Path(), err)
	}
	return labels, nil
}

// readLabels reads a dataset as strings, formatting numbers.
func readLabels(ds *hdf5.Dataset) ([]string, error) {
	if isStringClass(ds.DtypeClass()) {
		return ds.ReadString()
	}
	nums, err := ds.ReadFloat64()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(nums))
	for i, v := range nums {
		out[i] = formatNumber(v)
	}
	return out, nil
}

func isStringClass(c message.DatatypeClass) bool {
	return c == message.ClassString || c == message.ClassVarLen
}

func decodeColumn(g *hdf5.Group, ds *hdf5.Dataset) (scdata.Column, error) {
	origin, err := ds.Attr(attrOrigin).ReadString()
	if err != nil {
		return nil, fmt.Errorf("%s: reading %s: %w", ds.Path(), attrOrigin, err)
	}
	if len(origin) != 1 {
		return nil, fmt.Errorf("%s: %w: %d origin types", ds.Path(), ErrUnknownColumnType, len(origin))
	}

	name := ds.Name()
	switch OriginType(origin[0]) {
	case OriginNumber:
		switch ds.DtypeClass() {
		case message.ClassFloatPoint:
			v, err := ds.ReadFloat64()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", ds.Path(), err)
			}
			return &scdata.FloatColumn{Key: name, Values: v}, nil
		case message.ClassFixedPoint:
			v, err := ds.ReadInt64()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", ds.Path(), err)
			}
			return &scdata.IntColumn{Key: name, Values: v}, nil
		}
		return nil, fmt.Errorf("%s: number column stored as class %d", ds.Path(), ds.DtypeClass())

	case OriginBool:
		v, err := ds.ReadInt64()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ds.Path(), err)
		}
		out := make([]bool, len(v))
		for i, x := range v {
			out[i] = x != 0
		}
		return &scdata.BoolColumn{Key: name, Values: out}, nil

	case OriginCategory:
		return readCategorical(g, ds)

	case OriginString:
		cat, err := readCategorical(g, ds)
		if err != nil {
			return nil, err
		}
		col := &scdata.StringColumn{Key: name, Values: make([]string, cat.Len()), Valid: make([]bool, cat.Len())}
		for i := range cat.Codes {
			col.Values[i], col.Valid[i] = cat.Label(i)
		}
		return col, nil
	}
	return nil, fmt.Errorf("%s: %w %q", ds.Path(), ErrUnknownColumnType, origin[0])
}

// readCategorical reads a coded column and its level dictionary. Negative
// codes, including the MinInt32 sentinel, become scdata.MissingCode.
func readCategorical(g *hdf5.Group, ds *hdf5.Dataset) (*scdata.CategoricalColumn, error) {
	raw, err := ds.ReadInt64()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ds.Path(), err)
	}
	col := &scdata.CategoricalColumn{Key: ds.Name(), Codes: make([]int32, len(raw))}

	levelsPath := tableCategory + "/" + ds.Name()
	lv, err := g.OpenDataset(levelsPath)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", g.Path(), levelsPath, err)
	}
	if isStringClass(lv.DtypeClass()) {
		if col.Levels, err = lv.ReadString(); err != nil {
			return nil, fmt.Errorf("%s: %w", lv.Path(), err)
		}
		col.Levels = nonNil(col.Levels)
	} else {
		if col.NumericLevels, err = lv.ReadFloat64(); err != nil {
			return nil, fmt.Errorf("%s: %w", lv.Path(), err)
		}
		if col.NumericLevels == nil {
			col.NumericLevels = []float64{}
		}
	}

	n := int64(col.NumLevels())
	for i, code := range raw {
		switch {
		case code < 0:
			col.Codes[i] = scdata.MissingCode
		case code >= n:
			return nil, fmt.Errorf("%s: code %d at row %d exceeds %d levels", ds.Path(), code, i, n)
		default:
			col.Codes[i] = int32(code)
		}
	}
	return col, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
