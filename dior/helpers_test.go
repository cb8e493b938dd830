package dior

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-scdior/hdf5"
	"github.com/robert-malhotra/go-scdior/scdata"
)

// container is a scratch file for codec tests. Build writes through
// root, then Reopen closes it and returns the read side.
type container struct {
	t    *testing.T
	path string
	f    *hdf5.File
}

func newContainer(t *testing.T) *container {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codec.h5")
	f, err := hdf5.Create(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return &container{t: t, path: path, f: f}
}

func (c *container) root() *hdf5.Group { return c.f.Root() }

func (c *container) group(name string) *hdf5.Group {
	c.t.Helper()
	g, err := c.f.Root().CreateGroup(name)
	require.NoError(c.t, err)
	return g
}

func (c *container) reopen() *hdf5.File {
	c.t.Helper()
	require.NoError(c.t, c.f.Close())
	r, err := hdf5.Open(c.path)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { _ = r.Close() })
	return r
}

func (c *container) openGroup(name string) *hdf5.Group {
	c.t.Helper()
	g, err := c.reopen().OpenGroup(name)
	require.NoError(c.t, err)
	return g
}

func sampleCSR() *scdata.CSR {
	// [[1 0 2]
	//  [0 0 3]
	//  [4 5 6]]
	return &scdata.CSR{
		Rows:    3,
		Cols:    3,
		Data:    []float32{1, 2, 3, 4, 5, 6},
		Indices: []int32{0, 2, 2, 0, 1, 2},
		Indptr:  []int32{0, 2, 3, 6},
	}
}

func labels(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

// sampleObject returns a small object with every slot populated.
func sampleObject() *scdata.Object {
	obs := scdata.NewFrame([]string{"c1", "c2", "c3"})
	obs.Columns = []scdata.Column{
		&scdata.FloatColumn{Key: "n_counts", Values: []float64{10, 20.5, 30}},
		&scdata.CategoricalColumn{Key: "leiden", Codes: []int32{1, 0, -1}, Levels: []string{"0", "1"}},
		&scdata.BoolColumn{Key: "doublet", Values: []bool{false, true, false}},
	}
	vars := scdata.NewFrame([]string{"g1", "g2", "g3"})
	vars.Columns = []scdata.Column{
		&scdata.IntColumn{Key: "n_cells", Values: []int64{3, 1, 2}},
		&scdata.StringColumn{Key: "gene_ids", Values: []string{"ENSG1", "ENSG2", "ENSG3"}},
	}

	obj := scdata.New(sampleCSR(), obs, vars)
	obj.Obsm["X_pca"] = scdata.Array{Shape: []int{3, 2}, Data: []float64{1, 2, 3, 4, 5, 6}}
	obj.Obsm["X_umap"] = scdata.Array{Shape: []int{3, 2}, Data: []float64{0.5, 1.5, 2.5, 3.5, 4.5, 5.5}}
	obj.Obsp["distances"] = sampleCSR()
	obj.Obsp["connectivities"] = &scdata.Dense{Rows: 3, Cols: 3, Data: []float32{1, 0, 0, 0, 1, 0, 0, 0, 1}}
	obj.Layers["counts"] = &scdata.Dense{Rows: 3, Cols: 3, Data: []float32{1, 0, 2, 0, 0, 3, 4, 5, 6}}
	obj.Varm["PCs"] = scdata.Array{Shape: []int{3, 2}, Data: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}}
	obj.Uns["leiden_colors"] = []string{"#1f77b4", "#ff7f0e"}
	obj.Uns["pca_variance"] = []float64{2.5, 1.5}
	return obj
}
