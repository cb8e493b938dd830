// Package object reads and writes HDF5 object headers, the message lists
// that describe every group and dataset.
//
// [Read] accepts both header versions. Version 1 headers, written by files
// with a version 0 or 1 superblock, are recognised by their leading version
// byte; version 2 headers start with "OHDR" and are checksummed, as are the
// "OCHK" continuation blocks they chain to. Continuation messages are
// followed transparently, so [Header.Messages] lists the whole object.
//
// Messages whose body fails to parse are dropped rather than failing the
// header, so an object with one exotic attribute can still be opened.
//
// [EncodeHeader] and [Write] emit version 2 headers only.
package object
