package dior

import (
	"strings"
)

// Container group and attribute names.
const (
	groupData    = "data"
	groupObs     = "obs"
	groupVar     = "var"
	groupDimR    = "dimR"
	groupGraphs  = "graphs"
	groupLayers  = "layers"
	groupVarm    = "varm"
	groupUns     = "uns"
	groupSpatial = "spatial"

	memberX    = "X"
	memberRawX = "rawX"

	attrAssay = "assay_name"
)

// DefaultAssay is the assay written when none is given.
const DefaultAssay = "RNA"

// SpatialAssay is the assay whose containers carry a spatial/ block.
const SpatialAssay = "spatial"

// graphNames maps host pairwise graph names to their container names.
// The set is fixed.
var graphNames = []struct{ host, container string }{
	{"distances", "knn"},
	{"connectivities", "snn"},
}

// dimRKey returns the container key of an embedding: the suffix after the
// last underscore, upper-cased. X_pca becomes PCA and spatial SPATIAL.
func dimRKey(obsmKey string) string {
	if i := strings.LastIndex(obsmKey, "_"); i >= 0 {
		obsmKey = obsmKey[i+1:]
	}
	return strings.ToUpper(obsmKey)
}

// obsmKey is the inverse of dimRKey for the keys the host produces.
func obsmKey(dimRKey string) string {
	if dimRKey == "SPATIAL" {
		return "spatial"
	}
	return "X_" + strings.ToLower(dimRKey)
}

// keepUns reports whether an unstructured entry is carried in the
// container. Only colour vectors are.
func keepUns(key string) bool {
	return strings.Contains(key, "colors")
}
