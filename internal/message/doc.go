// Package message decodes and encodes HDF5 object header messages.
//
// [Parse] turns a message body into its typed form. Dataspaces, datatypes,
// layouts, filter pipelines, fill values, attributes, links, link and group
// info, symbol tables and continuations are decoded; any other type comes
// back as [Unknown] so headers carrying it still open.
//
// Bodies are read through a cursor that records the first overrun, so a
// parser reads its fields straight through and the error, wrapping
// [ErrTruncated], surfaces once at the end.
//
// [Encode] lays out the messages the writer emits: dataspaces, datatypes,
// layouts, filter pipelines, attributes, links, link info and group info.
// Datatypes are written as version 1, or version 3 for compound, enum and
// array types; layouts as version 3, or version 4 when chunked.
package message
