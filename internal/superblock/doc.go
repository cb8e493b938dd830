// Package superblock reads and writes the HDF5 superblock, the fixed-format
// block that names the address and length widths of a file and where its
// root group lives.
//
// [Read] looks for the signature at offsets 0, 512, 1024 and 2048 and
// decodes versions 0 to 3. Version 0 and 1 superblocks, which R and h5py
// still write by default, end in the root group's symbol table entry; when
// that entry caches its B-tree and local heap addresses they are exposed so
// the root group can be listed without its object header.
//
// [Superblock.Write] always emits a checksummed version 2 or 3 superblock.
package superblock
