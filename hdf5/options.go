package hdf5

import "github.com/robert-malhotra/go-scdior/internal/message"

// FileOption configures Create.
type FileOption func(*fileConfig)

type fileConfig struct {
	offsetSize int
	lengthSize int
}

func newFileConfig(opts []FileOption) fileConfig {
	c := fileConfig{offsetSize: 8, lengthSize: 8}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func validWidth(n int) bool { return n == 2 || n == 4 || n == 8 }

// WithOffsetSize sets the width in bytes of file addresses. Widths other
// than 2, 4 and 8 are ignored.
func WithOffsetSize(n int) FileOption {
	return func(c *fileConfig) {
		if validWidth(n) {
			c.offsetSize = n
		}
	}
}

// WithLengthSize sets the width in bytes of stored lengths. Widths other
// than 2, 4 and 8 are ignored.
func WithLengthSize(n int) FileOption {
	return func(c *fileConfig) {
		if validWidth(n) {
			c.lengthSize = n
		}
	}
}

// DatasetOption configures CreateDataset.
type DatasetOption func(*datasetConfig)

type namedValue struct {
	name  string
	value interface{}
}

type datasetConfig struct {
	shape      []uint64
	chunks     []uint64
	deflate    int // 0 leaves the data uncompressed
	shuffle    bool
	fletcher32 bool
	attrs      []namedValue
}

func newDatasetConfig(opts []DatasetOption) *datasetConfig {
	c := &datasetConfig{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// filters lists the requested filter stages in write order. Shuffle runs
// before deflate and the checksum covers the compressed bytes.
func (c *datasetConfig) filters(elemSize uint32) []message.FilterInfo {
	var infos []message.FilterInfo
	if c.shuffle {
		infos = append(infos, message.NewShuffleFilter(elemSize))
	}
	if c.deflate > 0 {
		infos = append(infos, message.NewDeflateFilter(c.deflate))
	}
	if c.fletcher32 {
		infos = append(infos, message.FilterInfo{ID: message.FilterFletcher32})
	}
	return infos
}

// WithShape stores flat data under the given dimensions. Their product
// must equal the number of values.
func WithShape(dims ...uint64) DatasetOption {
	return func(c *datasetConfig) { c.shape = dims }
}

// WithChunks stores the dataset in chunks of the given shape. A filtered
// dataset without explicit chunks gets chunks of about 1 MiB.
func WithChunks(dims ...uint64) DatasetOption {
	return func(c *datasetConfig) { c.chunks = dims }
}

// WithCompression deflates each chunk at level 1 to 9. Level 0 turns
// compression off; other levels are ignored.
func WithCompression(level int) DatasetOption {
	return func(c *datasetConfig) {
		if level >= 0 && level <= 9 {
			c.deflate = level
		}
	}
}

// WithShuffle byte-shuffles each chunk before compression.
func WithShuffle() DatasetOption {
	return func(c *datasetConfig) { c.shuffle = true }
}

// WithFletcher32 appends a Fletcher-32 checksum to each chunk.
func WithFletcher32() DatasetOption {
	return func(c *datasetConfig) { c.fletcher32 = true }
}

// WithAttribute attaches an attribute to the dataset. It may be repeated.
// value takes the same types as Group.SetAttr.
func WithAttribute(name string, value interface{}) DatasetOption {
	return func(c *datasetConfig) {
		c.attrs = append(c.attrs, namedValue{name, value})
	}
}
