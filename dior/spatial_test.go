package dior

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-scdior/hdf5"
	"github.com/robert-malhotra/go-scdior/scdata"
)

func spatialObject() *scdata.Object {
	x := &scdata.Dense{Rows: 3, Cols: 2, Data: []float32{1, 0, 0, 2, 3, 0}}
	obs := scdata.NewFrame([]string{"spot1", "spot2", "spot3"})
	obs.Columns = []scdata.Column{
		&scdata.FloatColumn{Key: "n_counts", Values: []float64{100, 200, 300}},
		&scdata.IntColumn{Key: "in_tissue", Values: []int64{1, 1, 0}},
		&scdata.IntColumn{Key: "array_row", Values: []int64{0, 1, 2}},
		&scdata.IntColumn{Key: "array_col", Values: []int64{10, 11, 12}},
	}
	vars := scdata.NewFrame([]string{"g1", "g2"})

	obj := scdata.New(x, obs, vars)
	obj.Obsm["spatial"] = scdata.Array{Shape: []int{3, 2}, Data: []float64{5, 6, 7, 8, 9, 10}}
	obj.Uns["spatial"] = map[string]*scdata.SpatialSample{
		"slice1": {
			Images: map[string]scdata.Array{
				"hires":  {Shape: []int{2, 2, 3}, Data: []float64{0, .1, .2, .3, .4, .5, .6, .7, .8, .9, 1, 1}},
				"lowres": {Shape: []int{1, 1, 3}, Data: []float64{.5, .5, .5}},
			},
			ScaleFactors: map[string]scdata.Array{
				"spot_diameter_fullres": scdata.Scalar(89.4),
				"tissue_hires_scalef":   {Shape: []int{1}, Data: []float64{0.17}},
			},
		},
	}
	return obj
}

func TestSpatialBlockLayout(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, WriteSpatial(c.group("spatial"), spatialObject(), SpatialAssay))
	r := c.reopen()

	g, err := r.OpenGroup("spatial/slice1")
	require.NoError(t, err)
	members, err := g.Members()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"image", "coor", "scalefactors"}, members)

	hires, err := r.OpenDataset("spatial/slice1/image/hires")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 2, 3}, hires.Shape())

	sf, err := r.OpenDataset("spatial/slice1/scalefactors/tissue_hires_scalef")
	require.NoError(t, err)
	assert.True(t, sf.IsScalar())

	coor, err := r.OpenGroup("spatial/slice1/coor")
	require.NoError(t, err)
	table, err := ReadTable(coor)
	require.NoError(t, err)
	assert.Equal(t, []string{"in_tissue", "array_row", "array_col", "image_1", "image_2"}, table.Names())
	assert.Equal(t, &scdata.FloatColumn{Key: "image_2", Values: []float64{6, 8, 10}}, table.Column("image_2"))
}

func TestReadSpatial(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, WriteSpatial(c.group("spatial"), spatialObject(), SpatialAssay))

	samples, err := ReadSpatial(c.openGroup("spatial"))
	require.NoError(t, err)
	require.Contains(t, samples, "slice1")
	s := samples["slice1"]

	want := spatialObject().Uns["spatial"].(map[string]*scdata.SpatialSample)["slice1"]
	assert.Equal(t, want.Images, s.Images)
	assert.Equal(t, map[string]scdata.Array{
		"spot_diameter_fullres": scdata.Scalar(89.4),
		"tissue_hires_scalef":   scdata.Scalar(0.17),
	}, s.ScaleFactors)
	require.NotNil(t, s.Coor)
	assert.Equal(t, 3, s.Coor.NumRows())
}

func TestReadSpatialMatchesBySubstring(t *testing.T) {
	c := newContainer(t)
	sg, err := c.group("spatial").CreateGroup("s1")
	require.NoError(t, err)
	images, err := sg.CreateGroup("images")
	require.NoError(t, err)
	_, err = images.CreateDataset("hires", []float64{1, 2}, hdf5.WithShape(1, 2))
	require.NoError(t, err)
	sf, err := sg.CreateGroup("scalefactors_json")
	require.NoError(t, err)
	_, err = sf.CreateDataset("fiducial", []float64{144.5})
	require.NoError(t, err)
	_, err = sg.CreateGroup("metadata")
	require.NoError(t, err)

	samples, err := ReadSpatial(c.openGroup("spatial"))
	require.NoError(t, err)
	s := samples["s1"]
	assert.Equal(t, scdata.Array{Shape: []int{1, 2}, Data: []float64{1, 2}}, s.Images["hires"])
	assert.Equal(t, scdata.Scalar(144.5), s.ScaleFactors["fiducial"])
	assert.Nil(t, s.Coor)
}

func TestWriteSpatialErrors(t *testing.T) {
	t.Run("no samples", func(t *testing.T) {
		obj := spatialObject()
		delete(obj.Uns, "spatial")
		c := newContainer(t)
		assert.Error(t, WriteSpatial(c.group("spatial"), obj, SpatialAssay))
	})

	t.Run("samples of wrong type", func(t *testing.T) {
		obj := spatialObject()
		obj.Uns["spatial"] = map[string]any{}
		c := newContainer(t)
		assert.ErrorIs(t, WriteSpatial(c.group("spatial"), obj, SpatialAssay), ErrHostType)
	})

	t.Run("missing coordinate column", func(t *testing.T) {
		obj := spatialObject()
		obj.Obs.Drop("array_col")
		c := newContainer(t)
		assert.ErrorContains(t, WriteSpatial(c.group("spatial"), obj, SpatialAssay), "array_col")
	})

	t.Run("missing pixel embedding", func(t *testing.T) {
		obj := spatialObject()
		delete(obj.Obsm, "spatial")
		c := newContainer(t)
		assert.Error(t, WriteSpatial(c.group("spatial"), obj, SpatialAssay))
	})
}

func TestSpatialObjectRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visium.h5")
	obj := spatialObject()
	require.NoError(t, Write(context.Background(), path, obj, WithAssay(SpatialAssay)))

	got, err := Read(context.Background(), path, WithAssay(SpatialAssay))
	require.NoError(t, err)

	// coordinate columns lead obs, followed by the remaining columns
	assert.Equal(t, []string{"in_tissue", "array_row", "array_col", "n_counts"}, got.Obs.Names())
	for _, name := range coorColumns {
		assert.Equal(t, obj.Obs.Column(name), got.Obs.Column(name), name)
	}
	assert.Equal(t, obj.Obsm["spatial"], got.Obsm["spatial"])

	samples, ok := got.Uns["spatial"].(map[string]*scdata.SpatialSample)
	require.True(t, ok)
	require.Contains(t, samples, "slice1")
	assert.Nil(t, samples["slice1"].Coor)
	assert.Len(t, samples["slice1"].Images, 2)
}

func TestMergeSpatialAlignsRows(t *testing.T) {
	obj := scdata.New(scdata.NewDense(2, 1), scdata.NewFrame([]string{"a", "b"}), scdata.NewFrame([]string{"g"}))
	obj.Obs.Columns = []scdata.Column{&scdata.IntColumn{Key: "in_tissue", Values: []int64{9, 9}}}

	coor := scdata.NewFrame([]string{"b", "a"})
	coor.Columns = []scdata.Column{
		&scdata.IntColumn{Key: "in_tissue", Values: []int64{1, 0}},
		&scdata.IntColumn{Key: "array_row", Values: []int64{4, 3}},
		&scdata.IntColumn{Key: "array_col", Values: []int64{8, 7}},
		&scdata.FloatColumn{Key: "image_1", Values: []float64{2.5, 1.5}},
		&scdata.FloatColumn{Key: "image_2", Values: []float64{20, 10}},
	}
	samples := map[string]*scdata.SpatialSample{"s": {Coor: coor}}
	require.NoError(t, mergeSpatial(obj, samples, SpatialAssay))

	assert.Equal(t, &scdata.IntColumn{Key: "in_tissue", Values: []int64{0, 1}}, obj.Obs.Column("in_tissue"))
	assert.Equal(t, &scdata.IntColumn{Key: "array_row", Values: []int64{3, 4}}, obj.Obs.Column("array_row"))
	assert.Len(t, obj.Obs.Columns, 3)
	assert.Equal(t, scdata.Array{Shape: []int{2, 2}, Data: []float64{1.5, 10, 2.5, 20}}, obj.Obsm["spatial"])
	assert.Nil(t, samples["s"].Coor)
	assert.Same(t, samples["s"], obj.Uns[SpatialAssay].(map[string]*scdata.SpatialSample)["s"])
}

func TestMergeSpatialMissingObservation(t *testing.T) {
	obj := scdata.New(scdata.NewDense(1, 1), scdata.NewFrame([]string{"a"}), scdata.NewFrame([]string{"g"}))
	coor := scdata.NewFrame([]string{"z"})
	err := mergeSpatial(obj, map[string]*scdata.SpatialSample{"s": {Coor: coor}}, SpatialAssay)
	assert.ErrorContains(t, err, `"a"`)
}
