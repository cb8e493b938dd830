package dior

import (
	"fmt"
	"slices"
	"strings"

	"github.com/robert-malhotra/go-scdior/hdf5"
	"github.com/robert-malhotra/go-scdior/scdata"
)

const (
	spatialImage        = "image"
	spatialScaleFactors = "scalefactors"
	spatialCoor         = "coor"

	obsmSpatial = "spatial"
)

// coorColumns are the obs columns carried in a sample's coordinate table.
var coorColumns = []string{"in_tissue", "array_row", "array_col"}

// pixelColumns name the two columns of obsm["spatial"] in the coordinate
// table.
var pixelColumns = [2]string{"image_1", "image_2"}

// SpatialSamples returns the spatial samples stored under uns[assay].
func SpatialSamples(obj *scdata.Object, assay string) (map[string]*scdata.SpatialSample, error) {
	v, ok := obj.Uns[assay]
	if !ok {
		return nil, fmt.Errorf("uns has no %q entry", assay)
	}
	samples, ok := v.(map[string]*scdata.SpatialSample)
	if !ok {
		return nil, fmt.Errorf("%w: uns[%q] is %T, not spatial samples", ErrHostType, assay, v)
	}
	return samples, nil
}

// WriteSpatial writes one subgroup of g per spatial sample of obj: its
// images verbatim, its scale factors, and a coordinate table built from
// the obs coordinate columns and obsm["spatial"].
func WriteSpatial(g *hdf5.Group, obj *scdata.Object, assay string, opts ...hdf5.DatasetOption) error {
	samples, err := SpatialSamples(obj, assay)
	if err != nil {
		return fmt.Errorf("%s: %w", g.Path(), err)
	}
	coor, err := coordinateTable(obj)
	if err != nil {
		return fmt.Errorf("%s: %w", g.Path(), err)
	}

	for _, id := range scdata.SortedKeys(samples) {
		sample := samples[id]
		sg, err := g.CreateGroup(id)
		if err != nil {
			return err
		}

		images, err := sg.CreateGroup(spatialImage)
		if err != nil {
			return err
		}
		for _, name := range scdata.SortedKeys(sample.Images) {
			if err := writeArray(images, name, sample.Images[name], false, opts...); err != nil {
				return err
			}
		}

		cg, err := sg.CreateGroup(spatialCoor)
		if err != nil {
			return err
		}
		if err := WriteTable(cg, coor); err != nil {
			return err
		}

		sf, err := sg.CreateGroup(spatialScaleFactors)
		if err != nil {
			return err
		}
		for _, name := range scdata.SortedKeys(sample.ScaleFactors) {
			if err := writeArray(sf, name, sample.ScaleFactors[name].Unwrap(), false); err != nil {
				return err
			}
		}
	}
	return nil
}

// coordinateTable builds the coor table of a spatial object.
func coordinateTable(obj *scdata.Object) (*scdata.Frame, error) {
	coor, err := obj.Obs.Select(coorColumns...)
	if err != nil {
		return nil, fmt.Errorf("obs: %w", err)
	}
	pixels, ok := obj.Obsm[obsmSpatial]
	if !ok {
		return nil, fmt.Errorf("obsm has no %q entry", obsmSpatial)
	}
	if pixels.Rows() != coor.NumRows() {
		return nil, fmt.Errorf("obsm[%q] has %d rows, obs has %d", obsmSpatial, pixels.Rows(), coor.NumRows())
	}
	for j, name := range pixelColumns {
		values, err := pixels.Column(j)
		if err != nil {
			return nil, fmt.Errorf("obsm[%q]: %w", obsmSpatial, err)
		}
		coor.Columns = append(coor.Columns, &scdata.FloatColumn{Key: name, Values: values})
	}
	return coor, nil
}

// writeArray writes a as a dataset. Scalars become scalar datasets. With
// asFloat32 the values are narrowed to float32.
func writeArray(g *hdf5.Group, name string, a scdata.Array, asFloat32 bool, opts ...hdf5.DatasetOption) error {
	if a.IsScalar() {
		var err error
		if asFloat32 {
			_, err = g.CreateDataset(name, float32(a.Data[0]))
		} else {
			_, err = g.CreateDataset(name, a.Data[0])
		}
		return err
	}

	shape := make([]uint64, len(a.Shape))
	for i, d := range a.Shape {
		shape[i] = uint64(d)
	}
	dsOpts := append([]hdf5.DatasetOption{hdf5.WithShape(shape...)}, bulkOptions(len(a.Data), opts)...)

	var data any = a.Data
	if asFloat32 {
		narrow := make([]float32, len(a.Data))
		for i, v := range a.Data {
			narrow[i] = float32(v)
		}
		data = narrow
	}
	_, err := g.CreateDataset(name, data, dsOpts...)
	return err
}

// readArray reads a numeric dataset of any rank as float64 values.
func readArray(ds *hdf5.Dataset) (scdata.Array, error) {
	data, err := ds.ReadFloat64()
	if err != nil {
		return scdata.Array{}, fmt.Errorf("%s: %w", ds.Path(), err)
	}
	if ds.IsScalar() {
		return scdata.Array{Data: data}, nil
	}
	shape := make([]int, ds.Rank())
	for i, d := range ds.Shape() {
		shape[i] = int(d)
	}
	return scdata.Array{Shape: shape, Data: data}, nil
}

// readArrays reads every dataset of g.
func readArrays(g *hdf5.Group) (map[string]scdata.Array, error) {
	members, err := g.Members()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.Path(), err)
	}
	out := make(map[string]scdata.Array, len(members))
	for _, name := range members {
		ds, err := g.OpenDataset(name)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", g.Path(), name, err)
		}
		if out[name], err = readArray(ds); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReadSpatial decodes the spatial group g into one sample per subgroup.
// Sample members are recognised by name: anything containing "image" holds
// images, "scalefactors" the scale factors and "coor" the coordinate table.
func ReadSpatial(g *hdf5.Group) (map[string]*scdata.SpatialSample, error) {
	ids, err := g.Members()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.Path(), err)
	}
	samples := make(map[string]*scdata.SpatialSample, len(ids))
	for _, id := range ids {
		sg, err := g.OpenGroup(id)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", g.Path(), id, err)
		}
		members, err := sg.Members()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sg.Path(), err)
		}

		sample := &scdata.SpatialSample{}
		for _, name := range members {
			switch {
			case strings.Contains(name, spatialImage):
				child, err := sg.OpenGroup(name)
				if err != nil {
					return nil, fmt.Errorf("%s/%s: %w", sg.Path(), name, err)
				}
				if sample.Images, err = readArrays(child); err != nil {
					return nil, err
				}
			case strings.Contains(name, spatialScaleFactors):
				child, err := sg.OpenGroup(name)
				if err != nil {
					return nil, fmt.Errorf("%s/%s: %w", sg.Path(), name, err)
				}
				factors, err := readArrays(child)
				if err != nil {
					return nil, err
				}
				for k, v := range factors {
					factors[k] = v.Unwrap()
				}
				sample.ScaleFactors = factors
			case strings.Contains(name, spatialCoor):
				child, err := sg.OpenGroup(name)
				if err != nil {
					return nil, fmt.Errorf("%s/%s: %w", sg.Path(), name, err)
				}
				if sample.Coor, err = ReadTable(child); err != nil {
					return nil, err
				}
			}
		}
		samples[id] = sample
	}
	return samples, nil
}

// mergeSpatial folds decoded spatial samples into obj: the coordinate
// columns lead obs (replacing same-named columns), the pixel columns become
// obsm["spatial"], and the samples without their tables are stored as
// uns[assay].
func mergeSpatial(obj *scdata.Object, samples map[string]*scdata.SpatialSample, assay string) error {
	for _, id := range scdata.SortedKeys(samples) {
		sample := samples[id]
		if sample.Coor == nil {
			return fmt.Errorf("spatial sample %q has no %s table", id, spatialCoor)
		}
		coor, err := alignRows(sample.Coor, obj.Obs.Index)
		if err != nil {
			return fmt.Errorf("spatial sample %q: %w", id, err)
		}

		lead, err := coor.Select(coorColumns...)
		if err != nil {
			return fmt.Errorf("spatial sample %q: %w", id, err)
		}
		obs := &scdata.Frame{Index: obj.Obs.Index, Columns: lead.Columns}
		for _, c := range obj.Obs.Columns {
			if lead.Column(c.Name()) == nil {
				obs.Columns = append(obs.Columns, c)
			}
		}
		obj.Obs = obs

		pixels, err := pixelArray(coor)
		if err != nil {
			return fmt.Errorf("spatial sample %q: %w", id, err)
		}
		obj.Obsm[obsmSpatial] = pixels
		sample.Coor = nil
	}
	obj.Uns[assay] = samples
	return nil
}

// alignRows reorders f to the given index.
func alignRows(f *scdata.Frame, index []string) (*scdata.Frame, error) {
	if slices.Equal(f.Index, index) {
		return f, nil
	}
	pos := make(map[string]int, len(f.Index))
	for i, label := range f.Index {
		pos[label] = i
	}
	rows := make([]int, len(index))
	for i, label := range index {
		p, ok := pos[label]
		if !ok {
			return nil, fmt.Errorf("no coordinates for observation %q", label)
		}
		rows[i] = p
	}
	out := &scdata.Frame{Index: index}
	for _, c := range f.Columns {
		taken, err := takeRows(c, rows)
		if err != nil {
			return nil, err
		}
		out.Columns = append(out.Columns, taken)
	}
	return out, nil
}

func takeRows(c scdata.Column, rows []int) (scdata.Column, error) {
	switch v := c.(type) {
	case *scdata.FloatColumn:
		return &scdata.FloatColumn{Key: v.Key, Values: take(v.Values, rows)}, nil
	case *scdata.IntColumn:
		return &scdata.IntColumn{Key: v.Key, Values: take(v.Values, rows)}, nil
	case *scdata.BoolColumn:
		return &scdata.BoolColumn{Key: v.Key, Values: take(v.Values, rows)}, nil
	case *scdata.StringColumn:
		out := &scdata.StringColumn{Key: v.Key, Values: take(v.Values, rows)}
		if v.Valid != nil {
			out.Valid = take(v.Valid, rows)
		}
		return out, nil
	case *scdata.CategoricalColumn:
		return &scdata.CategoricalColumn{
			Key:           v.Key,
			Codes:         take(v.Codes, rows),
			Levels:        v.Levels,
			NumericLevels: v.NumericLevels,
		}, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownColumnType, c)
}

func take[T any](values []T, rows []int) []T {
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = values[r]
	}
	return out
}

func pixelArray(coor *scdata.Frame) (scdata.Array, error) {
	n := coor.NumRows()
	data := make([]float64, 2*n)
	for j, name := range pixelColumns {
		col := coor.Column(name)
		if col == nil {
			return scdata.Array{}, fmt.Errorf("no %q column", name)
		}
		values, ok := scdata.Float64s(col)
		if !ok {
			return scdata.Array{}, fmt.Errorf("column %q is not numeric", name)
		}
		for i, v := range values {
			data[i*2+j] = v
		}
	}
	return scdata.Array{Shape: []int{n, 2}, Data: data}, nil
}
