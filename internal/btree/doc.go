// Package btree walks version 1 B-trees, the "TREE" nodes that index group
// symbol tables and chunked dataset storage in files written with the
// earliest format (the default for R and h5py).
//
// Group trees lead to symbol table nodes ("SNOD") whose entries are named
// through the group's local heap; [ReadGroupEntries] flattens them. Chunk
// trees carry each chunk's origin, stored size and filter mask in their keys;
// [ReadChunkIndex] returns the leaves in key order.
package btree
