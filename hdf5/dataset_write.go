package hdf5

import (
	"fmt"
	"math"
	"reflect"

	"github.com/robert-malhotra/go-scdior/internal/dtype"
	"github.com/robert-malhotra/go-scdior/internal/filter"
	"github.com/robert-malhotra/go-scdior/internal/layout"
	"github.com/robert-malhotra/go-scdior/internal/message"
	"github.com/robert-malhotra/go-scdior/internal/object"
)

// targetChunkBytes is the approximate chunk size picked when a filtered
// dataset has no explicit chunk shape.
const targetChunkBytes = 1 << 20

// CreateDataset creates a new dataset holding data and links it into g.
//
// data may be a scalar, a slice, or nested slices of a numeric type or
// string. Strings are stored as variable-length UTF-8. The dataset is
// written immediately and is readable through the returned handle.
func (g *Group) CreateDataset(name string, data interface{}, opts ...DatasetOption) (*Dataset, error) {
	if err := g.prepareLink(name); err != nil {
		return nil, err
	}

	cfg := newDatasetConfig(opts)

	val := reflect.ValueOf(data)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if !val.IsValid() {
		return nil, fmt.Errorf("dataset %q: nil data", name)
	}

	dims, flat, err := flattenValue(val)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}
	if cfg.shape != nil {
		if dims == nil {
			return nil, fmt.Errorf("dataset %q: shape given for scalar data", name)
		}
		if product(cfg.shape) != uint64(flat.Len()) {
			return nil, fmt.Errorf("dataset %q: shape %v does not hold %d elements", name, cfg.shape, flat.Len())
		}
		dims = cfg.shape
	}

	datatype, err := dtype.Of(flat.Type().Elem())
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}

	raw, err := g.file.encodeValues(datatype, flat)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: encoding data: %w", name, err)
	}

	var dataspace *message.Dataspace
	if dims == nil {
		dataspace = message.NewScalarDataspace()
	} else {
		dataspace = message.NewDataspace(dims, nil)
	}

	var dataLayout *message.DataLayout
	var pipeline *message.FilterPipeline
	if dims != nil && product(dims) > 0 && (cfg.chunks != nil || len(cfg.filters(datatype.Size)) > 0) {
		dataLayout, pipeline, err = g.writeChunked(raw, dims, datatype.Size, cfg)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", name, err)
		}
	} else {
		dataAddr := g.file.allocate(int64(len(raw)))
		if len(raw) > 0 {
			if err := g.file.writer.At(int64(dataAddr)).WriteBytes(raw); err != nil {
				return nil, fmt.Errorf("dataset %q: writing data: %w", name, err)
			}
		}
		dataLayout = message.NewContiguousLayout(dataAddr, uint64(len(raw)))
	}

	messages := object.NewDatasetHeader(dataspace, datatype, dataLayout)
	if pipeline != nil {
		messages = append(messages, pipeline)
	}
	for _, attr := range cfg.attrs {
		attrMsg, err := g.file.createAttributeMessage(attr.name, attr.value)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: creating attribute %q: %w", name, attr.name, err)
		}
		messages = append(messages, attrMsg)
	}

	datasetAddr, err := object.Write(g.file.writer, messages, 0, g.file.allocate)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: writing header: %w", name, err)
	}
	g.addLink(name, datasetAddr)

	return g.file.openDatasetAt(datasetAddr, childPath(g.path, name))
}

// writeChunked stores raw as fixed-array indexed chunks, through the
// requested filters, and returns the layout and filter pipeline messages.
func (g *Group) writeChunked(raw []byte, dims []uint64, elemSize uint32, c *datasetConfig) (*message.DataLayout, *message.FilterPipeline, error) {
	chunks := c.chunks
	if chunks == nil {
		chunks = autoChunks(dims, elemSize)
	}
	if len(chunks) != len(dims) {
		return nil, nil, fmt.Errorf("chunk rank %d does not match data rank %d", len(chunks), len(dims))
	}

	chunkDims := make([]uint32, len(chunks))
	for i, n := range chunks {
		if n == 0 {
			return nil, nil, fmt.Errorf("chunk dimension %d is zero", i)
		}
		// fixed-size dimensions cannot have chunks larger than the data
		if n > dims[i] {
			n = dims[i]
		}
		if n > math.MaxUint32 {
			return nil, nil, fmt.Errorf("chunk dimension %d too large: %d", i, n)
		}
		chunkDims[i] = uint32(n)
	}

	infos := c.filters(elemSize)
	var fp *message.FilterPipeline
	var encode func([]byte) ([]byte, error)
	if len(infos) > 0 {
		fp = message.NewFilterPipeline(infos...)
		p, err := filter.NewPipeline(fp)
		if err != nil {
			return nil, nil, err
		}
		encode = p.Encode
	}

	cw := layout.NewChunkWriter(g.file.writer, chunkDims, elemSize, encode, g.file.allocate)
	entries, err := cw.WriteChunks(layout.SplitIntoChunks(raw, dims, chunkDims, elemSize))
	if err != nil {
		return nil, nil, err
	}
	indexAddr, err := cw.WriteFixedArrayIndex(entries)
	if err != nil {
		return nil, nil, err
	}

	lm := message.NewChunkedLayout(chunkDims, elemSize, message.ChunkIndexFixedArray)
	lm.ChunkIndexAddr = indexAddr
	lm.PageBits = layout.FixedArrayPageBits(len(entries))
	return lm, fp, nil
}

// autoChunks keeps every dimension but the first whole and takes as many
// leading rows as fit in targetChunkBytes.
func autoChunks(dims []uint64, elemSize uint32) []uint64 {
	chunks := make([]uint64, len(dims))
	rowBytes := uint64(elemSize)
	for i := 1; i < len(dims); i++ {
		chunks[i] = dims[i]
		rowBytes *= dims[i]
	}
	rows := uint64(1)
	if rowBytes > 0 && rowBytes < targetChunkBytes {
		rows = targetChunkBytes / rowBytes
	}
	if rows > dims[0] {
		rows = dims[0]
	}
	chunks[0] = rows
	return chunks
}

// encodeValues encodes a flat slice into raw element bytes.
func (f *File) encodeValues(dt *message.Datatype, flat reflect.Value) ([]byte, error) {
	if dt.Class == message.ClassVarLen && dt.IsVarLenString {
		strs := make([]string, flat.Len())
		for i := range strs {
			strs[i] = flat.Index(i).String()
		}
		return f.strings.Encode(strs)
	}
	return dtype.Encode(dt, flat.Interface())
}

// flattenValue returns the dimensions of val and its elements as a flat
// slice. Scalars return nil dims and a one-element slice.
func flattenValue(val reflect.Value) ([]uint64, reflect.Value, error) {
	if val.Kind() != reflect.Slice && val.Kind() != reflect.Array {
		flat := reflect.MakeSlice(reflect.SliceOf(val.Type()), 1, 1)
		flat.Index(0).Set(val)
		return nil, flat, nil
	}

	leaf := val.Type()
	depth := 0
	for leaf.Kind() == reflect.Slice || leaf.Kind() == reflect.Array {
		leaf = leaf.Elem()
		depth++
	}

	dims := make([]uint64, depth)
	cur := val
	for d := 0; d < depth; d++ {
		dims[d] = uint64(cur.Len())
		if cur.Len() == 0 {
			break
		}
		cur = cur.Index(0)
	}

	if depth == 1 && val.Kind() == reflect.Slice {
		return dims, val, nil
	}

	flat := reflect.MakeSlice(reflect.SliceOf(leaf), 0, int(product(dims)))
	var walk func(v reflect.Value, d int) error
	walk = func(v reflect.Value, d int) error {
		if uint64(v.Len()) != dims[d] {
			return fmt.Errorf("ragged data: dimension %d has lengths %d and %d", d, dims[d], v.Len())
		}
		for i := 0; i < v.Len(); i++ {
			if d == depth-1 {
				flat = reflect.Append(flat, v.Index(i))
			} else if err := walk(v.Index(i), d+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(val, 0); err != nil {
		return nil, reflect.Value{}, err
	}
	return dims, flat, nil
}

func product(dims []uint64) uint64 {
	n := uint64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}

// createAttributeMessage creates an attribute message from a name and value.
// Strings are stored as variable-length UTF-8 strings in the global heap.
func (f *File) createAttributeMessage(name string, value interface{}) (*message.Attribute, error) {
	val := reflect.ValueOf(value)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if !val.IsValid() {
		return nil, fmt.Errorf("nil attribute value")
	}

	var attr *message.Attribute
	switch {
	case val.Kind() == reflect.String:
		refs, err := f.strings.Encode([]string{val.String()})
		if err != nil {
			return nil, err
		}
		attr = message.NewScalarAttribute(name, message.NewVarLenStringDatatype(message.CharsetUTF8), refs)

	case val.Kind() == reflect.Slice && val.Type().Elem().Kind() == reflect.String:
		strs := make([]string, val.Len())
		for i := range strs {
			strs[i] = val.Index(i).String()
		}
		refs, err := f.strings.Encode(strs)
		if err != nil {
			return nil, err
		}
		attr = message.NewAttribute(name, message.NewVarLenStringDatatype(message.CharsetUTF8),
			message.NewDataspace([]uint64{uint64(len(strs))}, nil), refs)

	default:
		dims, flat, err := flattenValue(val)
		if err != nil {
			return nil, err
		}
		if len(dims) > 1 {
			return nil, fmt.Errorf("%w: attribute of rank %d", ErrUnsupported, len(dims))
		}
		datatype, err := dtype.Of(flat.Type().Elem())
		if err != nil {
			return nil, fmt.Errorf("unsupported attribute type %v: %w", flat.Type().Elem(), err)
		}
		data, err := dtype.Encode(datatype, flat.Interface())
		if err != nil {
			return nil, fmt.Errorf("encoding attribute value: %w", err)
		}
		if dims == nil {
			attr = message.NewScalarAttribute(name, datatype, data)
		} else {
			attr = message.NewAttribute(name, datatype, message.NewDataspace(dims, nil), data)
		}
	}

	body, err := message.Encode(attr, f.writer)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", name, err)
	}
	if len(body) > maxCompactAttributeSize {
		return nil, fmt.Errorf("%w: attribute %q needs %d bytes of header space", ErrUnsupported, name, len(body))
	}
	return attr, nil
}
