// Package inspect walks a container and renders its layout.
package inspect

import (
	"fmt"
	"io"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-scdior/hdf5"
	"github.com/robert-malhotra/go-scdior/internal/message"
)

// DefaultDepth bounds Walk when no depth is given.
const DefaultDepth = 20

// Node is one group or dataset of a container.
type Node struct {
	Name     string         `json:"name" yaml:"name"`
	Path     string         `json:"path" yaml:"path"`
	Kind     string         `json:"kind" yaml:"kind"`
	Shape    []uint64       `json:"shape,omitempty" yaml:"shape,omitempty"`
	Dtype    string         `json:"dtype,omitempty" yaml:"dtype,omitempty"`
	Size     int            `json:"size,omitempty" yaml:"size,omitempty"`
	Attrs    map[string]any `json:"attrs,omitempty" yaml:"attrs,omitempty"`
	Children []*Node        `json:"children,omitempty" yaml:"children,omitempty"`
	// Truncated is set on groups below the depth limit.
	Truncated bool   `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// nodeJSON mirrors Node with its attributes already encoded.
type nodeJSON struct {
	Name      string          `json:"name"`
	Path      string          `json:"path"`
	Kind      string          `json:"kind"`
	Shape     []uint64        `json:"shape,omitempty"`
	Dtype     string          `json:"dtype,omitempty"`
	Size      int             `json:"size,omitempty"`
	Attrs     json.RawMessage `json:"attrs,omitempty"`
	Children  []*Node         `json:"children,omitempty"`
	Truncated bool            `json:"truncated,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// MarshalJSON encodes Attrs in a call of its own. go-json dereferences nil
// when a nested map[string]any holds a slice.
func (n *Node) MarshalJSON() ([]byte, error) {
	out := nodeJSON{
		Name: n.Name, Path: n.Path, Kind: n.Kind,
		Shape: n.Shape, Dtype: n.Dtype, Size: n.Size,
		Children: n.Children, Truncated: n.Truncated, Error: n.Error,
	}
	if len(n.Attrs) > 0 {
		raw, err := json.Marshal(n.Attrs)
		if err != nil {
			return nil, fmt.Errorf("attributes of %s: %w", n.Path, err)
		}
		out.Attrs = raw
	}
	return json.Marshal(out)
}

// Summary is the tree of one container file.
type Summary struct {
	File    string `json:"file" yaml:"file"`
	Version int    `json:"superblock_version" yaml:"superblock_version"`
	Root    *Node  `json:"root" yaml:"root"`
}

// File opens path and walks it to depth levels. depth <= 0 uses
// DefaultDepth.
func File(path string, depth int) (*Summary, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return &Summary{
		File:    path,
		Version: f.Version(),
		Root:    Walk(f.Root(), depth),
	}, nil
}

// Walk describes g and its members down to depth levels. Members that
// cannot be opened are recorded with an error instead of aborting the walk.
func Walk(g *hdf5.Group, depth int) *Node {
	if depth <= 0 {
		depth = DefaultDepth
	}

	var root *Node
	// open groups by depth; the parent of an entry at depth d is parents[d-1]
	var parents []*Node
	err := hdf5.Walk(g, func(e hdf5.Entry, err error) error {
		n := entryNode(e, err)
		if e.Depth == 0 {
			root = n
		} else {
			p := parents[e.Depth-1]
			p.Children = append(p.Children, n)
		}
		if e.Group == nil || err != nil {
			return nil
		}

		parents = append(parents[:e.Depth], n)
		if e.Depth >= depth {
			n.Truncated = true
			return hdf5.ErrSkipGroup
		}
		return nil
	})
	if err != nil {
		if root == nil {
			root = &Node{Name: g.Name(), Path: g.Path(), Kind: hdf5.KindGroup.String()}
		}
		root.Error = err.Error()
	}
	return root
}

func entryNode(e hdf5.Entry, err error) *Node {
	n := &Node{Name: e.Name, Path: e.Path}
	if e.Kind != 0 {
		n.Kind = e.Kind.String()
	}
	if err != nil {
		n.Error = err.Error()
		return n
	}
	if ds := e.Dataset; ds != nil {
		n.Shape = ds.Shape()
		n.Dtype = ClassName(ds.DtypeClass())
		n.Size = ds.DtypeSize()
	}
	n.Attrs = attrValues(e)
	return n
}

func attrValues(e hdf5.Entry) map[string]any {
	names := e.Attrs()
	if len(names) == 0 {
		return nil
	}
	out := make(map[string]any, len(names))
	for _, name := range names {
		a := e.Attr(name)
		if a == nil {
			continue
		}
		v, err := a.Value()
		if err != nil {
			out[name] = fmt.Sprintf("<%s: %v>", ClassName(a.DtypeClass()), err)
			continue
		}
		out[name] = v
	}
	return out
}

// Attr reads a single attribute of the container at path. attrPath has the
// form /object/path@name, with /@name for the root group.
func Attr(path, attrPath string) (any, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return f.ReadAttr(attrPath)
}

// ClassName names a datatype class.
func ClassName(c message.DatatypeClass) string {
	switch c {
	case message.ClassFixedPoint:
		return "integer"
	case message.ClassFloatPoint:
		return "float"
	case message.ClassTime:
		return "time"
	case message.ClassString:
		return "string"
	case message.ClassBitfield:
		return "bitfield"
	case message.ClassOpaque:
		return "opaque"
	case message.ClassCompound:
		return "compound"
	case message.ClassReference:
		return "reference"
	case message.ClassEnum:
		return "enum"
	case message.ClassVarLen:
		return "vlen"
	case message.ClassArray:
		return "array"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// Format selects a rendering of a Summary.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts text, json, yaml and yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Render writes s to w in the given format.
func Render(w io.Writer, s *Summary, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		return renderText(w, s)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func renderText(w io.Writer, s *Summary) error {
	tw := &textWriter{w: w}
	tw.printf("%s (superblock v%d)\n", s.File, s.Version)
	tw.node(s.Root, "")
	return tw.err
}

type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *textWriter) node(n *Node, indent string) {
	switch {
	case n.Error != "":
		t.printf("%s%s  ERROR %s\n", indent, n.Path, n.Error)
		return
	case n.Kind == hdf5.KindDataset.String():
		t.printf("%s%s  %s %s\n", indent, n.Name, dtypeText(n), shapeText(n.Shape))
	default:
		name := n.Name
		if name != "/" {
			name += "/"
		}
		t.printf("%s%s\n", indent, name)
	}

	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t.printf("%s  @%s = %v\n", indent, k, n.Attrs[k])
	}

	if n.Truncated {
		t.printf("%s  ...\n", indent)
	}
	for _, c := range n.Children {
		t.node(c, indent+"  ")
	}
}

func dtypeText(n *Node) string {
	switch n.Dtype {
	case "integer":
		return fmt.Sprintf("int%d", n.Size*8)
	case "float":
		return fmt.Sprintf("float%d", n.Size*8)
	}
	return n.Dtype
}

func shapeText(shape []uint64) string {
	if len(shape) == 0 {
		return "scalar"
	}
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
