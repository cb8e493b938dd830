package scdata

import (
	"fmt"
	"sort"
	"strconv"
)

// Array is a dense n-dimensional float64 array in row-major order. A nil
// Shape denotes a scalar.
type Array struct {
	Shape []int
	Data  []float64
}

// Scalar returns a scalar array.
func Scalar(v float64) Array {
	return Array{Data: []float64{v}}
}

// NewArray returns an array with the given shape, checking the data length.
func NewArray(data []float64, shape ...int) (Array, error) {
	n := 1
	for _, d := range shape {
		n *= d
	}
	if n != len(data) {
		return Array{}, fmt.Errorf("shape %v needs %d values, got %d", shape, n, len(data))
	}
	return Array{Shape: shape, Data: data}, nil
}

// IsScalar reports whether a holds a single unshaped value.
func (a Array) IsScalar() bool { return a.Shape == nil && len(a.Data) == 1 }

// Rows returns the length of the first dimension.
func (a Array) Rows() int {
	if len(a.Shape) == 0 {
		return 0
	}
	return a.Shape[0]
}

// Unwrap turns a length-1 array into a scalar and returns other arrays
// unchanged.
func (a Array) Unwrap() Array {
	if len(a.Data) == 1 && len(a.Shape) == 1 {
		return Scalar(a.Data[0])
	}
	return a
}

// Column returns column j of a 2-D array.
func (a Array) Column(j int) ([]float64, error) {
	if len(a.Shape) != 2 || j < 0 || j >= a.Shape[1] {
		return nil, fmt.Errorf("no column %d in array of shape %v", j, a.Shape)
	}
	rows, cols := a.Shape[0], a.Shape[1]
	out := make([]float64, rows)
	for i := range out {
		out[i] = a.Data[i*cols+j]
	}
	return out, nil
}

// Raw is the untransformed variant of an object's matrix, with its own
// feature table.
type Raw struct {
	X   Matrix
	Var *Frame
}

// SpatialSample is the imaging metadata of one spatial sample.
type SpatialSample struct {
	Images       map[string]Array
	ScaleFactors map[string]Array
	// Coor is the per-observation coordinate table. It only exists between
	// decoding a container and merging it into the object.
	Coor *Frame
}

// Object is an annotated matrix: an observations x features matrix with
// row and column tables and the named slots that hang off them.
type Object struct {
	X      Matrix
	Obs    *Frame
	Var    *Frame
	Raw    *Raw
	Obsm   map[string]Array  // per-observation embeddings
	Obsp   map[string]Matrix // pairwise observation graphs
	Layers map[string]Matrix // alternate matrices shaped like X
	Varm   map[string]Array  // per-feature arrays
	Uns    map[string]any
}

// New returns an object holding x with empty slot maps.
func New(x Matrix, obs, vars *Frame) *Object {
	return &Object{
		X:      x,
		Obs:    obs,
		Var:    vars,
		Obsm:   make(map[string]Array),
		Obsp:   make(map[string]Matrix),
		Layers: make(map[string]Matrix),
		Varm:   make(map[string]Array),
		Uns:    make(map[string]any),
	}
}

// Shape returns the shape of X.
func (o *Object) Shape() (int, int) {
	if o.X == nil {
		return 0, 0
	}
	return o.X.Shape()
}

// Validate checks that the tables agree with the matrix shape.
func (o *Object) Validate() error {
	if o.X == nil {
		return fmt.Errorf("object has no matrix")
	}
	if o.Obs == nil || o.Var == nil {
		return fmt.Errorf("object needs obs and var tables")
	}
	rows, cols := o.X.Shape()
	if o.Obs.NumRows() != rows {
		return fmt.Errorf("obs has %d rows, matrix has %d", o.Obs.NumRows(), rows)
	}
	if o.Var.NumRows() != cols {
		return fmt.Errorf("var has %d rows, matrix has %d columns", o.Var.NumRows(), cols)
	}
	if err := o.Obs.Validate(); err != nil {
		return fmt.Errorf("obs: %w", err)
	}
	if err := o.Var.Validate(); err != nil {
		return fmt.Errorf("var: %w", err)
	}
	return nil
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
