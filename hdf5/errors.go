// Package hdf5 reads and writes HDF5 files without cgo.
//
// Reading covers the layouts R and h5py produce: old-style symbol table
// groups, compact link groups, and contiguous, compact or chunked datasets
// behind deflate, shuffle and Fletcher-32 filters. Writing produces version
// 2 superblocks and object headers with fixed array chunk indexes.
package hdf5

import "errors"

var (
	ErrNotHDF5     = errors.New("not an HDF5 file")
	ErrNotFound    = errors.New("object not found")
	ErrNotDataset  = errors.New("object is not a dataset")
	ErrNotGroup    = errors.New("object is not a group")
	ErrUnsupported = errors.New("unsupported feature")
	ErrInvalidPath = errors.New("invalid path")
	ErrClosed      = errors.New("file is closed")
	ErrLinkDepth   = errors.New("too many soft or external links")
	ErrExists      = errors.New("object already exists")
	ErrReadOnly    = errors.New("file is not writable")
)

// MaxLinkDepth bounds the soft and external links one lookup follows.
const MaxLinkDepth = 100
