package dior

import (
	"errors"
	"fmt"
	"math"

	"github.com/robert-malhotra/go-scdior/hdf5"
	"github.com/robert-malhotra/go-scdior/scdata"
)

// Matrix tags stored in the datatype attribute of a matrix group.
const (
	TagSparse = "SparseMatrix"
	TagDense  = "Array"

	attrMatrixTag = "datatype"
)

// WriteMatrix encodes m into g. m may be any value scdata.Normalize
// accepts; compressed sparse rows are written as values/indices/indptr/dims
// and dense matrices as matrix/dims. opts apply to the bulk datasets.
func WriteMatrix(g *hdf5.Group, m any, opts ...hdf5.DatasetOption) error {
	mat, err := scdata.Normalize(m)
	if err != nil {
		if errors.Is(err, scdata.ErrNotMatrix) {
			return fmt.Errorf("%s: %w: %v", g.Path(), ErrUnsupportedMatrixType, err)
		}
		return fmt.Errorf("%s: %w", g.Path(), err)
	}

	rows, cols := mat.Shape()
	dims := []int64{int64(rows), int64(cols)}

	switch v := mat.(type) {
	case *scdata.CSR:
		bulk := bulkOptions(len(v.Data), opts)
		if _, err := g.CreateDataset("indices", v.Indices, bulk...); err != nil {
			return err
		}
		if _, err := g.CreateDataset("indptr", v.Indptr, bulkOptions(len(v.Indptr), opts)...); err != nil {
			return err
		}
		if _, err := g.CreateDataset("values", v.Data, bulk...); err != nil {
			return err
		}
		if _, err := g.CreateDataset("dims", dims); err != nil {
			return err
		}
		return g.SetAttr(attrMatrixTag, TagSparse)

	case *scdata.Dense:
		shaped := append([]hdf5.DatasetOption{hdf5.WithShape(uint64(rows), uint64(cols))}, bulkOptions(len(v.Data), opts)...)
		if _, err := g.CreateDataset("matrix", v.Data, shaped...); err != nil {
			return err
		}
		if _, err := g.CreateDataset("dims", dims); err != nil {
			return err
		}
		return g.SetAttr(attrMatrixTag, TagDense)
	}
	return fmt.Errorf("%s: %w: %T", g.Path(), ErrUnsupportedMatrixType, mat)
}

// bulkOptions drops filter options for empty datasets, which cannot be
// chunked.
func bulkOptions(n int, opts []hdf5.DatasetOption) []hdf5.DatasetOption {
	if n == 0 {
		return nil
	}
	return opts
}

// ReadMatrix decodes the matrix group g. The tag may be stored as a string
// or as a length-1 string array.
func ReadMatrix(g *hdf5.Group) (scdata.Matrix, error) {
	tag, err := matrixTag(g)
	if err != nil {
		return nil, err
	}
	switch tag {
	case TagSparse:
		return readSparse(g)
	case TagDense:
		return readDense(g)
	}
	return nil, fmt.Errorf("%s: %w %q", g.Path(), ErrUnknownMatrixTag, tag)
}

func matrixTag(g *hdf5.Group) (string, error) {
	attr := g.Attr(attrMatrixTag)
	if attr == nil {
		return "", fmt.Errorf("%s: %w: no %s attribute", g.Path(), ErrUnknownMatrixTag, attrMatrixTag)
	}
	tags, err := attr.ReadString()
	if err != nil {
		return "", fmt.Errorf("%s: reading %s: %w", g.Path(), attrMatrixTag, err)
	}
	if len(tags) != 1 {
		return "", fmt.Errorf("%s: %w: %d tags", g.Path(), ErrUnknownMatrixTag, len(tags))
	}
	return tags[0], nil
}

func readSparse(g *hdf5.Group) (*scdata.CSR, error) {
	rows, cols, err := readDims(g)
	if err != nil {
		return nil, err
	}
	m := &scdata.CSR{Rows: rows, Cols: cols}
	if m.Data, err = readFloat32(g, "values"); err != nil {
		return nil, err
	}
	if m.Indices, err = readSparseIndex(g, "indices"); err != nil {
		return nil, err
	}
	if m.Indptr, err = readSparseIndex(g, "indptr"); err != nil {
		return nil, err
	}
	if m.Data == nil {
		m.Data, m.Indices = []float32{}, []int32{}
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", g.Path(), err)
	}
	return m, nil
}

func readDense(g *hdf5.Group) (*scdata.Dense, error) {
	ds, err := g.OpenDataset("matrix")
	if err != nil {
		return nil, fmt.Errorf("%s/matrix: %w", g.Path(), err)
	}
	data, err := ds.ReadFloat32()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ds.Path(), err)
	}

	var rows, cols int
	if shape := ds.Shape(); len(shape) == 2 {
		rows, cols = int(shape[0]), int(shape[1])
	} else if rows, cols, err = readDims(g); err != nil {
		return nil, err
	}
	if rows*cols != len(data) {
		return nil, fmt.Errorf("%s: %d values do not fill (%d, %d)", ds.Path(), len(data), rows, cols)
	}
	return &scdata.Dense{Rows: rows, Cols: cols, Data: data}, nil
}

func readDims(g *hdf5.Group) (int, int, error) {
	ds, err := g.OpenDataset("dims")
	if err != nil {
		return 0, 0, fmt.Errorf("%s/dims: %w", g.Path(), err)
	}
	dims, err := ds.ReadInt64()
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", ds.Path(), err)
	}
	if len(dims) != 2 || dims[0] < 0 || dims[1] < 0 {
		return 0, 0, fmt.Errorf("%s: invalid dims %v", ds.Path(), dims)
	}
	return int(dims[0]), int(dims[1]), nil
}

func readFloat32(g *hdf5.Group, name string) ([]float32, error) {
	ds, err := g.OpenDataset(name)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", g.Path(), name, err)
	}
	v, err := ds.ReadFloat32()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ds.Path(), err)
	}
	return v, nil
}

// readSparseIndex reads an index array stored with any integer width. scipy
// writes int64 indices for large matrices; values beyond int32 are refused
// rather than truncated.
func readSparseIndex(g *hdf5.Group, name string) ([]int32, error) {
	ds, err := g.OpenDataset(name)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", g.Path(), name, err)
	}
	if ds.DtypeSize() <= 4 {
		v, err := ds.ReadInt32()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ds.Path(), err)
		}
		return v, nil
	}
	wide, err := ds.ReadInt64()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ds.Path(), err)
	}
	out := make([]int32, len(wide))
	for i, v := range wide {
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, fmt.Errorf("%s: index %d at position %d exceeds int32", ds.Path(), v, i)
		}
		out[i] = int32(v)
	}
	return out, nil
}
