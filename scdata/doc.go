// Package scdata holds the in-memory form of an annotated single-cell
// object: an observation by feature matrix, its row and column tables,
// and the embeddings, graphs, layers and unstructured metadata that
// travel with it.
//
// Matrices are either Dense or *CSR. Other layouts (CSC, lazy transposes
// and row subsets, plain row slices) are reduced to one of the two by
// Normalize before encoding.
package scdata
