package dior

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-scdior/hdf5"
	"github.com/robert-malhotra/go-scdior/internal/metrics"
	"github.com/robert-malhotra/go-scdior/scdata"
)

var tracer = otel.Tracer("github.com/robert-malhotra/go-scdior/dior")

// Write encodes obj into a new container at path, replacing any existing
// file. A container that fails half way is removed.
func Write(ctx context.Context, path string, obj *scdata.Object, opts ...Option) (err error) {
	o := newOptions(opts)
	ctx, span := tracer.Start(ctx, "dior.Write", trace.WithAttributes(
		attribute.String("scdior.path", path),
		attribute.String("scdior.assay", o.assay),
	))
	timer := o.metrics.Start(metrics.DirectionWrite)
	defer func() {
		timer.Stop(err)
		finishSpan(span, err)
		if err != nil {
			o.logger.Error("writing container failed", zap.String("path", path), zap.Error(err))
		}
	}()

	if path == "" {
		return ErrMissingFile
	}
	if obj == nil {
		return fmt.Errorf("%w: nil object", ErrHostType)
	}
	if err := obj.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrHostType, err)
	}

	f, err := hdf5.Create(path)
	if err != nil {
		if unopenable(err) {
			return fmt.Errorf("%w: %w", ErrMissingFile, err)
		}
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	w := &writer{root: f.Root(), obj: obj, o: o, bulk: o.datasetOptions()}
	if err := w.write(ctx); err != nil {
		return err
	}

	rows, cols := obj.Shape()
	o.metrics.SetShape(rows, cols)
	o.logger.Info("container written",
		zap.String("path", path),
		zap.String("assay", o.assay),
		zap.Int("observations", rows),
		zap.Int("features", cols))
	return nil
}

type writer struct {
	root *hdf5.Group
	obj  *scdata.Object
	o    *options
	bulk []hdf5.DatasetOption
}

func (w *writer) write(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"matrices", w.writeMatrices},
		{groupDimR, w.writeDimR},
		{groupGraphs, w.writeGraphs},
		{groupSpatial, w.writeSpatial},
		{groupUns, w.writeUns},
		{groupLayers, w.writeLayers},
		{groupVarm, w.writeVarm},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.fn(); err != nil {
			return fmt.Errorf("writing %s: %w", step.name, err)
		}
	}
	return w.root.SetAttr(attrAssay, []string{w.o.assay})
}

// writeMatrices writes data/, var/ and obs. With a raw matrix and saveX
// both X and rawX are kept, each with its own feature table; otherwise the
// raw matrix, when present, takes the place of X.
func (w *writer) writeMatrices() error {
	data, err := w.root.CreateGroup(groupData)
	if err != nil {
		return err
	}
	vars, err := w.root.CreateGroup(groupVar)
	if err != nil {
		return err
	}
	obs, err := w.root.CreateGroup(groupObs)
	if err != nil {
		return err
	}
	if err := WriteTable(obs, w.obj.Obs, w.bulk...); err != nil {
		return err
	}
	w.o.metrics.AddEntity("table")

	raw := w.obj.Raw
	switch {
	case raw != nil && w.o.saveX:
		if err := w.writePair(data, vars, memberX, w.obj.X, w.obj.Var); err != nil {
			return err
		}
		return w.writePair(data, vars, memberRawX, raw.X, raw.Var)
	case raw != nil:
		return w.writePair(data, vars, memberX, raw.X, raw.Var)
	default:
		return w.writePair(data, vars, memberX, w.obj.X, w.obj.Var)
	}
}

func (w *writer) writePair(data, vars *hdf5.Group, name string, m scdata.Matrix, table *scdata.Frame) error {
	mg, err := data.CreateGroup(name)
	if err != nil {
		return err
	}
	if err := WriteMatrix(mg, m, w.bulk...); err != nil {
		return err
	}
	tg, err := vars.CreateGroup(name)
	if err != nil {
		return err
	}
	if err := WriteTable(tg, table, w.bulk...); err != nil {
		return err
	}
	w.o.metrics.AddEntity("matrix")
	w.o.metrics.AddEntity("table")
	w.o.logger.Debug("matrix written", zap.String("group", mg.Path()))
	return nil
}

func (w *writer) writeDimR() error {
	if len(w.obj.Obsm) == 0 {
		return nil
	}
	g, err := w.root.CreateGroup(groupDimR)
	if err != nil {
		return err
	}
	written := make(map[string]string, len(w.obj.Obsm))
	for _, k := range scdata.SortedKeys(w.obj.Obsm) {
		key := dimRKey(k)
		if prev, ok := written[key]; ok {
			return fmt.Errorf("obsm keys %q and %q both map to %q", prev, k, key)
		}
		written[key] = k
		if err := writeArray(g, key, w.obj.Obsm[k], true, w.bulk...); err != nil {
			return err
		}
		w.o.metrics.AddEntity("embedding")
	}
	return nil
}

func (w *writer) writeGraphs() error {
	if !w.o.graphs || len(w.obj.Obsp) == 0 {
		return nil
	}
	g, err := w.root.CreateGroup(groupGraphs)
	if err != nil {
		return err
	}
	for _, name := range graphNames {
		m, ok := w.obj.Obsp[name.host]
		if !ok {
			w.o.logger.Debug("graph not present", zap.String("graph", name.host))
			continue
		}
		mg, err := g.CreateGroup(name.container)
		if err != nil {
			return err
		}
		if err := WriteMatrix(mg, m, w.bulk...); err != nil {
			return err
		}
		w.o.metrics.AddEntity("graph")
	}
	return nil
}

func (w *writer) writeSpatial() error {
	if w.o.assay != SpatialAssay {
		return nil
	}
	g, err := w.root.CreateGroup(groupSpatial)
	if err != nil {
		return err
	}
	if err := WriteSpatial(g, w.obj, w.o.assay, w.bulk...); err != nil {
		return err
	}
	w.o.metrics.AddEntity("spatial")
	return nil
}

// writeUns writes the colour vectors of uns. The group always exists.
func (w *writer) writeUns() error {
	g, err := w.root.CreateGroup(groupUns)
	if err != nil {
		return err
	}
	for _, k := range scdata.SortedKeys(w.obj.Uns) {
		if !keepUns(k) {
			continue
		}
		values, ok := stringValues(w.obj.Uns[k])
		if !ok {
			w.o.logger.Warn("skipping non-string uns entry", zap.String("key", k))
			continue
		}
		if _, err := g.CreateDataset(k, values); err != nil {
			return err
		}
	}
	return nil
}

func stringValues(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return nonNil(x), true
	case string:
		return []string{x}, true
	case []any:
		out := make([]string, len(x))
		for i, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// writeLayers writes the layers shaped like X. Layers only travel with the
// processed matrix.
func (w *writer) writeLayers() error {
	if !w.o.saveX || len(w.obj.Layers) == 0 {
		return nil
	}
	g, err := w.root.CreateGroup(groupLayers)
	if err != nil {
		return err
	}
	for _, k := range scdata.SortedKeys(w.obj.Layers) {
		m := w.obj.Layers[k]
		if !scdata.SameShape(m, w.obj.X) {
			w.o.logger.Warn("skipping layer with foreign shape", zap.String("layer", k))
			continue
		}
		lg, err := g.CreateGroup(k)
		if err != nil {
			return err
		}
		if err := WriteMatrix(lg, m, w.bulk...); err != nil {
			return err
		}
		w.o.metrics.AddEntity("layer")
	}
	return nil
}

func (w *writer) writeVarm() error {
	if !w.o.saveX || len(w.obj.Varm) == 0 {
		return nil
	}
	g, err := w.root.CreateGroup(groupVarm)
	if err != nil {
		return err
	}
	for _, k := range scdata.SortedKeys(w.obj.Varm) {
		if err := writeArray(g, k, w.obj.Varm[k], true, w.bulk...); err != nil {
			return err
		}
	}
	return nil
}

// Read decodes the container at path. The container's assay must match
// the requested one (RNA unless WithAssay is given); nothing is decoded
// otherwise.
func Read(ctx context.Context, path string, opts ...Option) (obj *scdata.Object, err error) {
	o := newOptions(opts)
	ctx, span := tracer.Start(ctx, "dior.Read", trace.WithAttributes(
		attribute.String("scdior.path", path),
		attribute.String("scdior.assay", o.assay),
	))
	timer := o.metrics.Start(metrics.DirectionRead)
	defer func() {
		timer.Stop(err)
		finishSpan(span, err)
		if err != nil {
			o.logger.Error("reading container failed", zap.String("path", path), zap.Error(err))
		}
	}()

	if path == "" {
		return nil, ErrMissingFile
	}
	f, err := hdf5.Open(path)
	if err != nil {
		if unopenable(err) {
			return nil, fmt.Errorf("%w: %w", ErrMissingFile, err)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if err := checkAssay(f.Root(), o.assay); err != nil {
		return nil, err
	}

	r := &reader{root: f.Root(), o: o}
	obj, err = r.read(ctx)
	if err != nil {
		return nil, err
	}

	rows, cols := obj.Shape()
	o.metrics.SetShape(rows, cols)
	o.logger.Info("container read",
		zap.String("path", path),
		zap.String("assay", o.assay),
		zap.Int("observations", rows),
		zap.Int("features", cols))
	return obj, nil
}

// ReadAssay returns the assay name stored in the container root.
func ReadAssay(g *hdf5.Group) (string, error) {
	attr := g.Attr(attrAssay)
	if attr == nil {
		return "", fmt.Errorf("no %s attribute", attrAssay)
	}
	names, err := attr.ReadString()
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", attrAssay, err)
	}
	if len(names) != 1 {
		return "", fmt.Errorf("%s holds %d names", attrAssay, len(names))
	}
	return names[0], nil
}

func checkAssay(root *hdf5.Group, want string) error {
	got, err := ReadAssay(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAssayNameMismatch, err)
	}
	if got != want {
		return fmt.Errorf("%w: container holds %q, requested %q", ErrAssayNameMismatch, got, want)
	}
	return nil
}

type reader struct {
	root *hdf5.Group
	o    *options

	data    map[string]scdata.Matrix
	obs     *scdata.Frame
	vars    map[string]*scdata.Frame
	dimR    map[string]scdata.Array
	graphs  map[string]scdata.Matrix
	layers  map[string]scdata.Matrix
	varm    map[string]scdata.Array
	uns     map[string]any
	spatial map[string]*scdata.SpatialSample
}

func (r *reader) read(ctx context.Context) (*scdata.Object, error) {
	members, err := r.root.Members()
	if err != nil {
		return nil, err
	}
	for _, name := range members {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.readGroup(name); err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
	}
	return r.assemble()
}

func (r *reader) readGroup(name string) error {
	var g *hdf5.Group
	open := func() (err error) {
		g, err = r.root.OpenGroup(name)
		return err
	}

	var err error
	switch name {
	case groupData:
		if err = open(); err == nil {
			r.data, err = readMatrices(g)
		}
	case groupObs:
		if err = open(); err == nil {
			r.obs, err = ReadTable(g)
		}
	case groupVar:
		if err = open(); err == nil {
			r.vars, err = readTables(g)
		}
	case groupDimR:
		if err = open(); err == nil {
			r.dimR, err = readArrays(g)
		}
	case groupGraphs:
		if err = open(); err == nil {
			r.graphs, err = readGraphs(g)
		}
	case groupLayers:
		if err = open(); err == nil {
			r.layers, err = readMatrices(g)
		}
	case groupVarm:
		if err = open(); err == nil {
			r.varm, err = readArrays(g)
		}
	case groupUns:
		if err = open(); err == nil {
			r.uns, err = readUns(g)
		}
	case groupSpatial:
		if err = open(); err == nil {
			r.spatial, err = ReadSpatial(g)
		}
	default:
		r.o.logger.Debug("ignoring unknown group", zap.String("group", name))
		return nil
	}
	if err == nil {
		r.o.metrics.AddEntity(name)
	}
	return err
}

func (r *reader) assemble() (*scdata.Object, error) {
	x, ok := r.data[memberX]
	if !ok {
		return nil, fmt.Errorf("container has no %s/%s matrix", groupData, memberX)
	}
	if r.obs == nil {
		return nil, fmt.Errorf("container has no %s table", groupObs)
	}
	vars, ok := r.vars[memberX]
	if !ok {
		return nil, fmt.Errorf("container has no %s/%s table", groupVar, memberX)
	}

	obj := scdata.New(x, r.obs, vars)
	if rawX, ok := r.data[memberRawX]; ok {
		rawVar, ok := r.vars[memberRawX]
		if !ok {
			return nil, fmt.Errorf("container has no %s/%s table", groupVar, memberRawX)
		}
		obj.Raw = &scdata.Raw{X: rawX, Var: rawVar}
	}

	for k, v := range r.dimR {
		obj.Obsm[obsmKey(k)] = v
	}
	for k, v := range r.graphs {
		obj.Obsp[k] = v
	}
	for k, m := range r.layers {
		if !scdata.SameShape(m, x) {
			r.o.logger.Warn("dropping layer with foreign shape", zap.String("layer", k))
			continue
		}
		obj.Layers[k] = m
	}
	for k, v := range r.varm {
		obj.Varm[k] = v
	}
	for k, v := range r.uns {
		obj.Uns[k] = v
	}

	if r.o.assay == SpatialAssay && r.spatial != nil {
		if err := mergeSpatial(obj, r.spatial, r.o.assay); err != nil {
			return nil, err
		}
	}

	if err := obj.Validate(); err != nil {
		return nil, err
	}
	return obj, nil
}

func readMatrices(g *hdf5.Group) (map[string]scdata.Matrix, error) {
	members, err := g.Members()
	if err != nil {
		return nil, err
	}
	out := make(map[string]scdata.Matrix, len(members))
	for _, name := range members {
		mg, err := g.OpenGroup(name)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", g.Path(), name, err)
		}
		if out[name], err = ReadMatrix(mg); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readTables(g *hdf5.Group) (map[string]*scdata.Frame, error) {
	members, err := g.Members()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*scdata.Frame, len(members))
	for _, name := range members {
		tg, err := g.OpenGroup(name)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", g.Path(), name, err)
		}
		if out[name], err = ReadTable(tg); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// readGraphs reads the graphs the container holds, under their host names.
func readGraphs(g *hdf5.Group) (map[string]scdata.Matrix, error) {
	out := make(map[string]scdata.Matrix, len(graphNames))
	for _, name := range graphNames {
		if !g.Has(name.container) {
			continue
		}
		mg, err := g.OpenGroup(name.container)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", g.Path(), name.container, err)
		}
		if out[name.host], err = ReadMatrix(mg); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// readUns reads every dataset of the uns group: strings as []string and
// numbers as arrays.
func readUns(g *hdf5.Group) (map[string]any, error) {
	members, err := g.Members()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(members))
	for _, name := range members {
		kind, err := g.Kind(name)
		if err != nil {
			return nil, err
		}
		if kind != hdf5.KindDataset {
			continue
		}
		ds, err := g.OpenDataset(name)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", g.Path(), name, err)
		}
		if isStringClass(ds.DtypeClass()) {
			values, err := ds.ReadString()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", ds.Path(), err)
			}
			out[name] = nonNil(values)
			continue
		}
		if out[name], err = readArray(ds); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// unopenable reports whether err comes from a path that cannot name a
// container file.
func unopenable(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.EISDIR) || errors.Is(err, syscall.ENOTDIR)
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
