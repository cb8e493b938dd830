package hdf5

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAttrPath(t *testing.T) {
	tests := []struct {
		path       string
		wantObject string
		wantAttr   string
		wantErr    bool
	}{
		{"/@root_attr", "/", "root_attr", false},
		{"/data@units", "/data", "units", false},
		{"/group/dataset@attr", "/group/dataset", "attr", false},
		{"/a/b/c@d", "/a/b/c", "d", false},
		{"data@attr", "/data", "attr", false},
		{"", "", "", true},
		{"/path/no/at", "", "", true},
		{"/path@", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			obj, attr, err := ParseAttrPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantObject, obj)
			assert.Equal(t, tt.wantAttr, attr)
		})
	}
}

func TestJoinAttrPath(t *testing.T) {
	assert.Equal(t, "/@attr", JoinAttrPath("/", "attr"))
	assert.Equal(t, "/data@units", JoinAttrPath("/data", "units"))
	assert.Equal(t, "/obs/cluster@origin_dtype", JoinAttrPath("/obs/cluster", "origin_dtype"))
}

// buildTree writes a small container-shaped file and reopens it.
func buildTree(t *testing.T) *File {
	t.Helper()
	f, path := createTemp(t)
	root := f.Root()
	require.NoError(t, root.SetAttr("assay_name", []string{"RNA"}))

	data, err := root.CreateGroup("data")
	require.NoError(t, err)
	x, err := data.CreateGroup("X")
	require.NoError(t, err)
	require.NoError(t, x.SetAttr("datatype", "Array"))
	_, err = x.CreateDataset("matrix", [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)
	_, err = x.CreateDataset("dims", []int64{2, 2})
	require.NoError(t, err)

	obs, err := root.CreateGroup("obs")
	require.NoError(t, err)
	_, err = obs.CreateDataset("index", []string{"c1", "c2"})
	require.NoError(t, err)
	_, err = obs.CreateDataset("n_counts", []float64{10, 20}, WithAttribute("origin_dtype", "number"))
	require.NoError(t, err)

	return reopen(t, f, path)
}

func TestWalk(t *testing.T) {
	r := buildTree(t)

	groups := map[string]int{}
	datasets := map[string][]uint64{}
	var order []string
	err := Walk(r.Root(), func(e Entry, err error) error {
		require.NoError(t, err)
		order = append(order, e.Path)
		switch e.Kind {
		case KindGroup:
			require.NotNil(t, e.Group)
			groups[e.Path] = e.Depth
		case KindDataset:
			require.NotNil(t, e.Dataset)
			datasets[e.Path] = e.Dataset.Shape()
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"/": 0, "/data": 1, "/data/X": 2, "/obs": 1}, groups)
	assert.Equal(t, map[string][]uint64{
		"/data/X/matrix": {2, 2},
		"/data/X/dims":   {2},
		"/obs/index":     {2},
		"/obs/n_counts":  {2},
	}, datasets)
	assert.Equal(t, []string{
		"/", "/data", "/data/X", "/data/X/dims", "/data/X/matrix",
		"/obs", "/obs/index", "/obs/n_counts",
	}, order)
}

func TestWalkSkipGroup(t *testing.T) {
	r := buildTree(t)
	var visited []string
	err := Walk(r.Root(), func(e Entry, err error) error {
		visited = append(visited, e.Path)
		if e.Path == "/data" {
			return ErrSkipGroup
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/data", "/obs", "/obs/index", "/obs/n_counts"}, visited)
}

func TestWalkStop(t *testing.T) {
	r := buildTree(t)
	visited := 0
	err := Walk(r.Root(), func(e Entry, err error) error {
		visited++
		if e.Path == "/data" {
			return ErrStopWalk
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, visited)
}

func TestWalkPropagatesCallbackError(t *testing.T) {
	r := buildTree(t)
	boom := errors.New("boom")
	err := Walk(r.Root(), func(e Entry, err error) error {
		if e.Kind == KindDataset {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestEntryAttrs(t *testing.T) {
	r := buildTree(t)

	found := map[string]interface{}{}
	err := Walk(r.Root(), func(e Entry, err error) error {
		require.NoError(t, err)
		for _, name := range e.Attrs() {
			v, err := e.Attr(name).Value()
			require.NoError(t, err)
			found[JoinAttrPath(e.Path, name)] = v
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"/@assay_name":               []string{"RNA"},
		"/data/X@datatype":           "Array",
		"/obs/n_counts@origin_dtype": "number",
	}, found)
	assert.Nil(t, Entry{}.Attr("missing"))
	assert.Empty(t, Entry{}.Attrs())
}
