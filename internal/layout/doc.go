// Package layout reads and writes the raw data of HDF5 datasets.
//
// A dataset's layout message says where its bytes live:
//
//   - Compact: inline in the object header ([Compact]).
//   - Contiguous: one block in the file ([Contiguous]).
//   - Chunked: fixed-shape chunks, each stored and filtered on its own,
//     found through a chunk index ([Chunked]).
//
// [New] picks the handler; Read always returns the whole dataset in
// row-major order.
//
// # Chunk indexes
//
// Layout messages up to version 3 index chunks with a version 1 B-tree,
// which is what R and h5py write by default. Version 4 messages name their
// index explicitly; single-chunk, implicit and fixed array indexes are read,
// while extensible arrays and v2 B-trees fail with [ErrUnsupportedChunkIndex].
//
// Chunks that overhang the dataset edge are clipped when scattered into the
// output, and chunks that were never allocated read as zeros.
//
// # Writing
//
// [SplitIntoChunks] cuts a row-major buffer into zero-padded chunks,
// [ChunkWriter] stores them (optionally through a filter pipeline) and
// writes the fixed array index that points at them.
package layout
