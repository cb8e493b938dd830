package hdf5

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-scdior/internal/message"
)

func TestCreateDatasetNumericTypes(t *testing.T) {
	f, path := createTemp(t)
	root := f.Root()

	_, err := root.CreateDataset("i8", []int8{-1, 0, 1})
	require.NoError(t, err)
	_, err = root.CreateDataset("i32", []int32{math.MinInt32, 0, 42})
	require.NoError(t, err)
	_, err = root.CreateDataset("i64", []int64{3, 1 << 40})
	require.NoError(t, err)
	_, err = root.CreateDataset("f32", []float32{0.5, -2.25})
	require.NoError(t, err)
	_, err = root.CreateDataset("f64", []float64{math.Pi, math.Inf(1)})
	require.NoError(t, err)

	r := reopen(t, f, path)

	ds, err := r.OpenDataset("i8")
	require.NoError(t, err)
	assert.Equal(t, message.ClassFixedPoint, ds.DtypeClass())
	assert.Equal(t, 1, ds.DtypeSize())
	i8, err := ds.ReadInt8()
	require.NoError(t, err)
	assert.Equal(t, []int8{-1, 0, 1}, i8)

	ds, err = r.OpenDataset("i32")
	require.NoError(t, err)
	i32, err := ds.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, []int32{math.MinInt32, 0, 42}, i32)

	ds, err = r.OpenDataset("i64")
	require.NoError(t, err)
	i64, err := ds.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1 << 40}, i64)

	ds, err = r.OpenDataset("f32")
	require.NoError(t, err)
	f32, err := ds.ReadFloat32()
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -2.25}, f32)

	ds, err = r.OpenDataset("f64")
	require.NoError(t, err)
	f64, err := ds.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, []float64{math.Pi, math.Inf(1)}, f64)
}

func TestCreateDatasetWidensOnRead(t *testing.T) {
	f, path := createTemp(t)
	_, err := f.Root().CreateDataset("counts", []int32{1, 2, 3})
	require.NoError(t, err)

	r := reopen(t, f, path)
	ds, err := r.OpenDataset("counts")
	require.NoError(t, err)
	vals, err := ds.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, vals)
}

func TestCreateDataset2D(t *testing.T) {
	f, path := createTemp(t)
	data := [][]float32{
		{1, 2, 3},
		{4, 5, 6},
	}
	_, err := f.Root().CreateDataset("matrix", data)
	require.NoError(t, err)

	r := reopen(t, f, path)
	ds, err := r.OpenDataset("matrix")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3}, ds.Shape())
	vals, err := ds.ReadFloat32()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, vals)
}

func TestCreateDatasetWithShape(t *testing.T) {
	f, path := createTemp(t)
	_, err := f.Root().CreateDataset("embedding", []float64{1, 2, 3, 4, 5, 6}, WithShape(3, 2))
	require.NoError(t, err)

	_, err = f.Root().CreateDataset("bad", []float64{1, 2, 3}, WithShape(2, 2))
	assert.Error(t, err)

	r := reopen(t, f, path)
	ds, err := r.OpenDataset("embedding")
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 2}, ds.Shape())
	assert.Equal(t, 2, ds.Rank())
}

func TestCreateDatasetScalar(t *testing.T) {
	f, path := createTemp(t)
	_, err := f.Root().CreateDataset("spot_diameter", 89.4)
	require.NoError(t, err)

	r := reopen(t, f, path)
	ds, err := r.OpenDataset("spot_diameter")
	require.NoError(t, err)
	assert.True(t, ds.IsScalar())
	vals, err := ds.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, []float64{89.4}, vals)
}

func TestCreateDatasetStrings(t *testing.T) {
	f, path := createTemp(t)
	index := []string{"AAACCTG-1", "", "AAACGGG-1", "AAACCTG-1", "细胞"}
	_, err := f.Root().CreateDataset("index", index)
	require.NoError(t, err)

	r := reopen(t, f, path)
	ds, err := r.OpenDataset("index")
	require.NoError(t, err)
	assert.Equal(t, message.ClassVarLen, ds.DtypeClass())
	got, err := ds.ReadString()
	require.NoError(t, err)
	assert.Equal(t, index, got)
}

func TestCreateDatasetEmpty(t *testing.T) {
	f, path := createTemp(t)
	_, err := f.Root().CreateDataset("values", []float32{})
	require.NoError(t, err)
	_, err = f.Root().CreateDataset("names", []string{})
	require.NoError(t, err)

	r := reopen(t, f, path)
	ds, err := r.OpenDataset("values")
	require.NoError(t, err)
	assert.Equal(t, []uint64{0}, ds.Shape())
	vals, err := ds.ReadFloat32()
	require.NoError(t, err)
	assert.Empty(t, vals)

	ds, err = r.OpenDataset("names")
	require.NoError(t, err)
	names, err := ds.ReadString()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestCreateDatasetCompressed(t *testing.T) {
	f, path := createTemp(t)

	values := make([]float32, 10000)
	for i := range values {
		values[i] = float32(i % 17)
	}
	ds, err := f.Root().CreateDataset("values", values, WithCompression(6), WithShuffle(), WithChunks(4096))
	require.NoError(t, err)
	got, err := ds.ReadFloat32()
	require.NoError(t, err)
	assert.Equal(t, values, got)

	matrix := make([][]float64, 300)
	for i := range matrix {
		matrix[i] = make([]float64, 7)
		for j := range matrix[i] {
			matrix[i][j] = float64(i*7 + j)
		}
	}
	_, err = f.Root().CreateDataset("matrix", matrix, WithCompression(4), WithFletcher32())
	require.NoError(t, err)

	r := reopen(t, f, path)

	ds, err = r.OpenDataset("values")
	require.NoError(t, err)
	got, err = ds.ReadFloat32()
	require.NoError(t, err)
	assert.Equal(t, values, got)

	ds, err = r.OpenDataset("matrix")
	require.NoError(t, err)
	assert.Equal(t, []uint64{300, 7}, ds.Shape())
	flat, err := ds.ReadFloat64()
	require.NoError(t, err)
	require.Len(t, flat, 2100)
	for i, v := range flat {
		require.Equal(t, float64(i), v)
	}
}

func TestCreateDatasetCompressedStrings(t *testing.T) {
	f, path := createTemp(t)
	levels := []string{"B cell", "T cell", "NK", "Monocyte"}
	_, err := f.Root().CreateDataset("levels", levels, WithCompression(6))
	require.NoError(t, err)

	r := reopen(t, f, path)
	ds, err := r.OpenDataset("levels")
	require.NoError(t, err)
	got, err := ds.ReadString()
	require.NoError(t, err)
	assert.Equal(t, levels, got)
}

func TestCreateDatasetChunkEdges(t *testing.T) {
	f, path := createTemp(t)
	data := make([][]int32, 5)
	for i := range data {
		data[i] = []int32{int32(i), int32(i * 10), int32(i * 100)}
	}
	_, err := f.Root().CreateDataset("grid", data, WithChunks(2, 2))
	require.NoError(t, err)

	r := reopen(t, f, path)
	ds, err := r.OpenDataset("grid")
	require.NoError(t, err)
	got, err := ds.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 0, 0, 1, 10, 100, 2, 20, 200, 3, 30, 300, 4, 40, 400}, got)
}

func TestCreateDatasetErrors(t *testing.T) {
	f, _ := createTemp(t)
	defer f.Close()
	root := f.Root()

	_, err := root.CreateDataset("x", []int32{1})
	require.NoError(t, err)
	_, err = root.CreateDataset("x", []int32{2})
	assert.ErrorIs(t, err, ErrExists)

	_, err = root.CreateDataset("ragged", [][]float64{{1, 2}, {3}})
	assert.Error(t, err)

	_, err = root.CreateDataset("nil", nil)
	assert.Error(t, err)

	_, err = root.CreateDataset("chunks", []float64{1, 2, 3}, WithChunks(1, 1))
	assert.Error(t, err)
}

func TestDatasetAttributes(t *testing.T) {
	f, path := createTemp(t)
	_, err := f.Root().CreateDataset("cell_type", []int32{0, 1, -1},
		WithAttribute("origin_dtype", "category"),
		WithAttribute("scale", []float64{0.5, 2}),
	)
	require.NoError(t, err)

	r := reopen(t, f, path)
	ds, err := r.OpenDataset("cell_type")
	require.NoError(t, err)
	assert.True(t, ds.HasAttr("origin_dtype"))
	assert.ElementsMatch(t, []string{"origin_dtype", "scale"}, ds.Attrs())

	origin, err := ds.Attr("origin_dtype").ReadScalarString()
	require.NoError(t, err)
	assert.Equal(t, "category", origin)

	scale, err := ds.Attr("scale").ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 2}, scale)
}
