package dior

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-scdior/scdata"
)

func skipIfNoTestdata(t *testing.T, filename string) string {
	t.Helper()
	path := filepath.Join("..", "testdata", filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skipf("Test file %s not found. Run 'python3 testdata/generate.py' to create test files.", filename)
	}
	return path
}

func TestReadH5pyContainer(t *testing.T) {
	path := skipIfNoTestdata(t, "diopy_rna.h5")

	got, err := Read(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, sampleCSR(), got.X)
	assert.Equal(t, sampleCSR(), got.Obsp["distances"])

	assert.Equal(t, []string{"c1", "c2", "c3"}, got.Obs.Index)
	assert.Equal(t, []string{"n_counts", "leiden", "batch", "is_doublet"}, got.Obs.Names())
	assert.Equal(t, []float64{3, 2, 7}, got.Obs.Column("n_counts").(*scdata.FloatColumn).Values)
	leiden := got.Obs.Column("leiden").(*scdata.CategoricalColumn)
	assert.Equal(t, []int32{0, 1, 0}, leiden.Codes)
	assert.Equal(t, []string{"0", "1"}, leiden.Levels)
	assert.Equal(t, []string{"a", "b", "a"}, got.Obs.Column("batch").(*scdata.StringColumn).Values)
	assert.Equal(t, []bool{false, true, false}, got.Obs.Column("is_doublet").(*scdata.BoolColumn).Values)

	assert.Equal(t, []string{"g1", "g2", "g3"}, got.Var.Index)
	assert.Equal(t, []int64{2, 1, 3}, got.Var.Column("n_cells").(*scdata.IntColumn).Values)

	require.Contains(t, got.Obsm, "X_pca")
	assert.Equal(t, []int{3, 2}, got.Obsm["X_pca"].Shape)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, got.Obsm["X_pca"].Data)

	assert.Equal(t, map[string]any{"leiden_colors": []string{"#1f77b4", "#ff7f0e"}}, got.Uns)
}
