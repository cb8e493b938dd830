// Package dior converts annotated single-cell objects to and from the HDF5
// interchange container read by the R side of the toolchain.
//
// The container is a fixed tree of groups: matrices under data/, graphs/
// and layers/, tables under obs/ and var/, embeddings under dimR/ and
// varm/, colour vectors under uns/ and imaging metadata under spatial/.
// Write and Read convert whole objects; WriteMatrix, ReadMatrix,
// WriteTable, ReadTable, WriteSpatial and ReadSpatial expose the codecs for
// single entities.
package dior

import "errors"

var (
	// ErrMissingFile is returned when no container path is given or the
	// path cannot be opened or created.
	ErrMissingFile = errors.New("no such file or directory")
	// ErrHostType is returned when the value to convert is not an object.
	ErrHostType = errors.New("value is not an annotated data object")
	// ErrUnsupportedMatrixType is returned when a matrix is neither dense
	// nor compressed sparse row.
	ErrUnsupportedMatrixType = errors.New("unsupported matrix type")
	// ErrUnknownMatrixTag is returned for a matrix group whose datatype
	// attribute is not SparseMatrix or Array.
	ErrUnknownMatrixTag = errors.New("unknown matrix tag")
	// ErrUnknownColumnType is returned for a table column whose
	// origin_dtype attribute is not recognised.
	ErrUnknownColumnType = errors.New("unknown column type")
	// ErrAssayNameMismatch is returned when the container's assay differs
	// from the requested one.
	ErrAssayNameMismatch = errors.New("assay name mismatch")
)
