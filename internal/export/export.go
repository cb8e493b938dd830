// Package export writes observation and feature tables as Arrow IPC or
// Parquet files for downstream analytics. Categorical columns are
// flattened to their labels; missing values become nulls.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/robert-malhotra/go-scdior/scdata"
)

// IndexColumn holds the row labels in exported files.
const IndexColumn = "_index"

// Format is an output file format.
type Format string

const (
	FormatArrow   Format = "arrow"
	FormatParquet Format = "parquet"
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".arrow", ".feather", ".ipc":
		return FormatArrow, nil
	case ".parquet", ".pq":
		return FormatParquet, nil
	}
	return "", fmt.Errorf("no export format for %q (use .arrow or .parquet)", path)
}

// Record converts f to a single Arrow record. The caller releases it.
func Record(mem memory.Allocator, f *scdata.Frame) (arrow.Record, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	fields := []arrow.Field{{Name: IndexColumn, Type: arrow.BinaryTypes.String}}
	for _, c := range f.Columns {
		if c.Name() == IndexColumn {
			return nil, fmt.Errorf("column name %q is reserved", IndexColumn)
		}
		typ, err := fieldType(c)
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{Name: c.Name(), Type: typ, Nullable: true})
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	b.Field(0).(*array.StringBuilder).AppendValues(f.Index, nil)
	for i, c := range f.Columns {
		appendColumn(b.Field(i+1), c)
	}
	return b.NewRecord(), nil
}

func fieldType(c scdata.Column) (arrow.DataType, error) {
	switch v := c.(type) {
	case *scdata.FloatColumn:
		return arrow.PrimitiveTypes.Float64, nil
	case *scdata.IntColumn:
		return arrow.PrimitiveTypes.Int64, nil
	case *scdata.BoolColumn:
		return arrow.FixedWidthTypes.Boolean, nil
	case *scdata.StringColumn, *scdata.AnyColumn:
		return arrow.BinaryTypes.String, nil
	case *scdata.CategoricalColumn:
		if v.Numeric() {
			return arrow.PrimitiveTypes.Float64, nil
		}
		return arrow.BinaryTypes.String, nil
	}
	return nil, fmt.Errorf("column %q: cannot export %T", c.Name(), c)
}

func appendColumn(b array.Builder, c scdata.Column) {
	switch v := c.(type) {
	case *scdata.FloatColumn:
		b.(*array.Float64Builder).AppendValues(v.Values, nil)
	case *scdata.IntColumn:
		b.(*array.Int64Builder).AppendValues(v.Values, nil)
	case *scdata.BoolColumn:
		b.(*array.BooleanBuilder).AppendValues(v.Values, nil)
	case *scdata.StringColumn:
		b.(*array.StringBuilder).AppendValues(v.Values, v.Valid)
	case *scdata.AnyColumn:
		sb := b.(*array.StringBuilder)
		for _, x := range v.Values {
			if x == nil {
				sb.AppendNull()
				continue
			}
			sb.Append(fmt.Sprint(x))
		}
	case *scdata.CategoricalColumn:
		for i, code := range v.Codes {
			if code < 0 || int(code) >= v.NumLevels() {
				b.AppendNull()
				continue
			}
			if v.Numeric() {
				b.(*array.Float64Builder).Append(v.NumericLevels[code])
				continue
			}
			label, _ := v.Label(i)
			b.(*array.StringBuilder).Append(label)
		}
	}
}

// Options tune the writers.
type Options struct {
	// Compression names the Parquet codec: snappy (default), zstd, gzip
	// or none.
	Compression string
}

// WriteArrow writes f as an Arrow IPC file.
func WriteArrow(w io.Writer, f *scdata.Frame) error {
	mem := memory.NewGoAllocator()
	rec, err := Record(mem, f)
	if err != nil {
		return err
	}
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("create arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("write record batch: %w", err)
	}
	return fw.Close()
}

// WriteParquet writes f as a Parquet file.
func WriteParquet(w io.Writer, f *scdata.Frame, opts Options) error {
	codec, err := parquetCodec(opts.Compression)
	if err != nil {
		return err
	}
	mem := memory.NewGoAllocator()
	rec, err := Record(mem, f)
	if err != nil {
		return err
	}
	defer rec.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(codec), parquet.WithAllocator(mem))
	fw, err := pqarrow.NewFileWriter(rec.Schema(), w, props, pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(mem)))
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("write row group: %w", err)
	}
	return fw.Close()
}

func parquetCodec(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "none":
		return compress.Codecs.Uncompressed, nil
	}
	return compress.Codecs.Uncompressed, fmt.Errorf("unknown parquet compression %q", name)
}

// WriteFile writes f to path in the format its extension names.
func WriteFile(path string, f *scdata.Frame, opts Options) (err error) {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	// the parquet writer closes sinks that implement io.Closer
	bw := bufio.NewWriter(out)
	if format == FormatParquet {
		err = WriteParquet(bw, f, opts)
	} else {
		err = WriteArrow(bw, f)
	}
	if err != nil {
		return err
	}
	return bw.Flush()
}
